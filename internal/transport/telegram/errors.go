package telegram

import (
	"context"
	"errors"
	"net"
	"time"

	tele "gopkg.in/telebot.v4"

	"relaybot/internal/transport"
)

// mapError translates telebot errors into the transport's typed signals.
// FloodError must be checked before *tele.Error because it embeds one.
func mapError(err error) error {
	if err == nil {
		return nil
	}

	var flood tele.FloodError
	if errors.As(err, &flood) {
		return &transport.RateLimitedError{RetryAfter: time.Duration(flood.RetryAfter) * time.Second}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return &transport.TimeoutError{Err: err}
	}
	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		return &transport.TimeoutError{Err: err}
	}

	var apiErr *tele.Error
	if errors.As(err, &apiErr) {
		return &transport.SendError{Code: apiErr.Code, Description: apiErr.Description}
	}

	return err
}
