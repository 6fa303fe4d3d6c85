package sms

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker/v2"
)

type GatewayConfig struct {
	URL         string
	Key         string
	From        string
	CountryCode string // prefix for local numbers, e.g. "+976"
}

// Gateway sends messages through the provider's HTTP API. Calls go through a
// circuit breaker so a dead provider fails fast instead of holding the
// checkout path open.
type Gateway struct {
	client  *resty.Client
	cfg     GatewayConfig
	breaker *gobreaker.CircuitBreaker[bool]
}

type gatewayResult struct {
	Result       string `json:"Result"`
	ErrorMessage string `json:"ErrorMessage"`
}

func NewGateway(cfg GatewayConfig) *Gateway {
	client := resty.New().
		SetTimeout(10 * time.Second).
		SetRetryCount(0)

	breaker := gobreaker.NewCircuitBreaker[bool](gobreaker.Settings{
		Name:    "sms-gateway",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})

	return &Gateway{client: client, cfg: cfg, breaker: breaker}
}

func (g *Gateway) Send(ctx context.Context, phoneNumber, text string) error {
	to := phoneNumber
	if !strings.HasPrefix(to, "+") {
		to = g.cfg.CountryCode + to
	}

	ok, err := g.breaker.Execute(func() (bool, error) {
		var results []gatewayResult
		resp, err := g.client.R().
			SetContext(ctx).
			SetQueryParams(map[string]string{
				"key":  g.cfg.Key,
				"text": text,
				"to":   to,
				"from": g.cfg.From,
			}).
			SetResult(&results).
			Get(g.cfg.URL)
		if err != nil {
			return false, fmt.Errorf("sms gateway request failed: %w", err)
		}
		if resp.IsError() {
			return false, fmt.Errorf("sms gateway returned %s", resp.Status())
		}
		if len(results) == 0 || results[0].Result != "SUCCESS" {
			msg := "empty gateway response"
			if len(results) > 0 {
				msg = results[0].ErrorMessage
			}
			log.Warn().Str("to", to).Str("reason", msg).Msg("sms delivery rejected")
			return false, nil
		}
		return true, nil
	})
	if err != nil {
		log.Error().Err(err).Str("to", to).Msg("sms send failed")
		return ErrDeliveryFailed
	}
	if !ok {
		return ErrDeliveryFailed
	}
	return nil
}
