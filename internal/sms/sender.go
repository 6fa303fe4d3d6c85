package sms

import (
	"context"
	"errors"
)

// Sender delivers a text to a phone number. The gateway reports success or
// failure only; there are no delivery receipts.
type Sender interface {
	Send(ctx context.Context, phoneNumber, text string) error
}

var ErrDeliveryFailed = errors.New("message delivery failed")
