package workers

import (
	"context"
	"log/slog"
	"time"

	"github.com/mintex/exchange-core/backend/internal/core/ports"
	"github.com/mintex/exchange-core/backend/internal/usecases"
)

// SubmitDispatcher worker drains the pending order backlog into the
// lifecycle manager. It is an at-least-once caller: an order it picks up
// may already have been submitted by the API path, which submit resolves as
// a no-op.
type SubmitDispatcher struct {
	logger *slog.Logger
	orders ports.OrderLifecycle

	// How often to scan for pending orders
	dispatchInterval time.Duration
}

// NewSubmitDispatcher creates a new submit dispatcher worker
func NewSubmitDispatcher(logger *slog.Logger, orders ports.OrderLifecycle, dispatchInterval time.Duration) *SubmitDispatcher {
	return &SubmitDispatcher{
		logger:           logger,
		orders:           orders,
		dispatchInterval: dispatchInterval,
	}
}

// Start begins the periodic dispatch of pending orders
func (d *SubmitDispatcher) Start(ctx context.Context) {
	d.logger.Info("Starting submit dispatcher worker",
		"dispatch_interval", d.dispatchInterval.String())

	// Drain whatever is pending right away
	if err := d.dispatchPending(ctx); err != nil {
		d.logger.Error("Initial pending dispatch failed", "error", err)
	}

	ticker := time.NewTicker(d.dispatchInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			d.logger.Info("Submit dispatcher worker stopped")
			return
		case <-ticker.C:
			if err := d.dispatchPending(ctx); err != nil {
				d.logger.Error("Pending dispatch failed", "error", err)
			}
		}
	}
}

// dispatchPending submits every pending order of the current batch
func (d *SubmitDispatcher) dispatchPending(ctx context.Context) error {
	pending, err := d.orders.FindPending(ctx, ports.SubmitDispatchBatchSize)
	if err != nil {
		return err
	}

	if len(pending) == 0 {
		d.logger.Debug("No pending orders to dispatch")
		return nil
	}

	var applied, noop, failed int
	for _, order := range pending {
		switch d.orders.Submit(ctx, order.ID).Outcome {
		case usecases.OutcomeApplied:
			applied++
		case usecases.OutcomeNoop:
			noop++
		default:
			failed++
		}
	}

	d.logger.Info("Dispatched pending orders",
		"count", len(pending), "applied", applied, "noop", noop, "failed", failed)

	return nil
}
