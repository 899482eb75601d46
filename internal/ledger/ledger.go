// Package ledger records which notification side effects have already been
// performed, keyed by category + entity, so at-least-once webhook delivery
// produces at-most-once sends.
package ledger

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sahajverma/storeping/internal/storage"
)

// Notification categories. Each owns an independent key space.
const (
	CategoryOrderConfirmation = "order-confirmation"
	CategoryDeliveryReview    = "delivery-review"
	CategoryAbandonedCheckout = "abandoned-checkout"
	CategoryStoreCreditRefund = "store-credit-refund"
)

// Ledger is the idempotency ledger. One dataset per category, holding
// key -> processedAtMs.
type Ledger struct {
	backend storage.Backend
	horizon time.Duration // 0 disables eviction; records grow monotonically
	mu      sync.Mutex
	nowFunc func() time.Time
}

// New returns a ledger over backend with eviction disabled.
func New(backend storage.Backend) *Ledger {
	return &Ledger{backend: backend, nowFunc: time.Now}
}

// NewWithHorizon returns a ledger that drops records older than horizon on
// each MarkProcessed. Use only for categories whose trigger events cannot
// recur past the horizon.
func NewWithHorizon(backend storage.Backend, horizon time.Duration) *Ledger {
	return &Ledger{backend: backend, horizon: horizon, nowFunc: time.Now}
}

func datasetFor(category string) string {
	return "processed-" + category
}

// HasProcessed reports whether the side effect for (category, key) has
// already been performed.
func (l *Ledger) HasProcessed(ctx context.Context, category, key string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	processed := map[string]int64{}
	if err := l.backend.Load(ctx, datasetFor(category), &processed); err != nil {
		return false, fmt.Errorf("load %s ledger: %w", category, err)
	}
	_, ok := processed[key]
	return ok, nil
}

// MarkProcessed records the side effect for (category, key). Call only after
// the external send has been attempted and accepted.
func (l *Ledger) MarkProcessed(ctx context.Context, category, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	ds := datasetFor(category)
	processed := map[string]int64{}
	if err := l.backend.Load(ctx, ds, &processed); err != nil {
		return fmt.Errorf("load %s ledger: %w", category, err)
	}

	now := l.nowFunc()
	processed[key] = now.UnixMilli()
	if l.horizon > 0 {
		cutoff := now.Add(-l.horizon).UnixMilli()
		for k, at := range processed {
			if at < cutoff {
				delete(processed, k)
			}
		}
	}

	if err := l.backend.Save(ctx, ds, processed); err != nil {
		return fmt.Errorf("save %s ledger: %w", category, err)
	}
	return nil
}
