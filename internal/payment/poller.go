package payment

import (
	"context"
	"log/slog"
	"time"

	"github.com/mkutano/hotspot/internal/metrics"
)

// Outcome is the poller's verdict on a payment.
type Outcome struct {
	Payment *Payment
	Err     error // Set when polling gave up without a terminal status
}

// Poller watches a payment until it reaches a terminal status or the
// deadline passes. One poller per payment; Wait consumes the single
// outcome.
type Poller struct {
	gateway  Gateway
	interval time.Duration
	timeout  time.Duration
	logger   *slog.Logger
}

// NewPoller creates a poller over the given gateway.
func NewPoller(gateway Gateway, interval, timeout time.Duration, logger *slog.Logger) *Poller {
	if interval <= 0 {
		interval = 3 * time.Second
	}
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Poller{gateway: gateway, interval: interval, timeout: timeout, logger: logger}
}

// Watch polls paymentID in a goroutine and delivers exactly one Outcome
// on the returned channel. Cancelling ctx stops the poll; transient fetch
// errors are tolerated until the deadline.
func (p *Poller) Watch(ctx context.Context, paymentID string) <-chan Outcome {
	out := make(chan Outcome, 1)

	go func() {
		defer close(out)

		ctx, cancel := context.WithTimeout(ctx, p.timeout)
		defer cancel()

		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()

		var lastSeen *Payment
		for {
			select {
			case <-ctx.Done():
				metrics.PaymentsFinishedTotal.WithLabelValues("timeout").Inc()
				out <- Outcome{Payment: lastSeen, Err: ctx.Err()}
				return
			case <-ticker.C:
			}

			pay, err := p.gateway.Status(ctx, paymentID)
			if err != nil {
				// Keep polling through transient failures; the deadline
				// bounds how long that can go on.
				p.logger.Debug("payment status poll failed",
					"payment_id", paymentID, "error", err)
				continue
			}
			lastSeen = pay

			if pay.Status.Terminal() {
				metrics.PaymentsFinishedTotal.WithLabelValues(string(pay.Status)).Inc()
				out <- Outcome{Payment: pay}
				return
			}
		}
	}()

	return out
}
