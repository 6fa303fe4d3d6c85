package service

import (
	"context"
	"errors"
	"math/rand/v2"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/EdrumVIOT/Back-End/internal/domain"
	"github.com/EdrumVIOT/Back-End/internal/repository"
	"github.com/EdrumVIOT/Back-End/internal/sms"
)

// Checkout-flow OTP windows. These are deliberately separate constants from
// any other OTP flow; cooldowns are per flow, not shared.
const (
	checkoutOtpTTL      = 60 * time.Second
	checkoutOtpCooldown = 60 * time.Second
)

// OtpLedger issues, rate-limits and verifies one-time codes per phone
// number. At most one valid code exists per number: every issuance deletes
// all prior records first.
type OtpLedger struct {
	repo     repository.OtpRepository
	sender   sms.Sender
	ttl      time.Duration
	cooldown time.Duration
	now      func() time.Time
}

func NewOtpLedger(repo repository.OtpRepository, sender sms.Sender) *OtpLedger {
	return &OtpLedger{
		repo:     repo,
		sender:   sender,
		ttl:      checkoutOtpTTL,
		cooldown: checkoutOtpCooldown,
		now:      time.Now,
	}
}

// Issue generates and delivers a fresh code. ErrRateLimited when the latest
// record is younger than the cooldown; ErrDeliveryFailed when the gateway
// rejects the send (the record stays persisted, a resend after the cooldown
// replaces it).
func (l *OtpLedger) Issue(ctx context.Context, number string) error {
	latest, err := l.repo.Latest(ctx, number)
	if err != nil && !errors.Is(err, repository.ErrOtpNotFound) {
		return err
	}
	if err == nil && latest.Age(l.now()) < l.cooldown {
		return ErrRateLimited
	}

	if err := l.repo.DeleteAll(ctx, number); err != nil {
		return err
	}

	code := generateOtp()
	record := domain.OtpRecord{
		Number:    number,
		Code:      code,
		CreatedAt: l.now(),
	}
	if err := l.repo.Create(ctx, record); err != nil {
		return err
	}

	if err := l.sender.Send(ctx, number, code); err != nil {
		log.Warn().Err(err).Str("number", number).Msg("otp delivery failed")
		return ErrDeliveryFailed
	}
	return nil
}

// Verify checks the code against the ledger. It is side-effect-free on
// success: the record is deleted by the checkout flow after the order is
// materialized (via Consume), not here, so a dry check stays possible.
// An expired match is deleted eagerly and fails ErrOtpExpired.
func (l *OtpLedger) Verify(ctx context.Context, number, code string) error {
	record, err := l.repo.Find(ctx, number, code)
	if err != nil {
		if errors.Is(err, repository.ErrOtpNotFound) {
			return ErrInvalidOtp
		}
		return err
	}

	if record.Age(l.now()) > l.ttl {
		if errDel := l.repo.DeleteAll(ctx, number); errDel != nil {
			log.Warn().Err(errDel).Str("number", number).Msg("failed to purge expired otp")
		}
		return ErrOtpExpired
	}
	return nil
}

// Consume removes every record for the number after a successful use.
func (l *OtpLedger) Consume(ctx context.Context, number string) error {
	return l.repo.DeleteAll(ctx, number)
}

// generateOtp returns a uniformly random 6-digit code; the range starts at
// 100000 so codes never carry a leading zero.
func generateOtp() string {
	return strconv.Itoa(100000 + rand.IntN(900000))
}
