// Package debounce absorbs bursts of updates to one entity and defers a
// single verification of the final snapshot until the entity has been quiet
// for a configured delay.
package debounce

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/sahajverma/storeping/internal/storage"
)

const dataset = "debounce-checkouts"

// ErrTransient marks a verification failure caused by a collaborator
// (network, provider). The entry is kept with its original timestamp and
// retried on the next evaluation tick. Any other callback outcome consumes
// the entry.
var ErrTransient = errors.New("transient verification failure")

// Entry is the persisted snapshot for one debounced entity.
// Last write wins: every update overwrites payload and timestamp.
type Entry struct {
	Key         string          `json:"key"`
	Payload     json.RawMessage `json:"payload"`
	UpdatedAtMs int64           `json:"updatedAtMs"`
}

// VerifyFunc receives the final snapshot once the quiet period has elapsed.
type VerifyFunc func(ctx context.Context, key string, payload json.RawMessage) error

// Queue coalesces updates per key and evaluates quiet entries.
type Queue struct {
	backend storage.Backend
	delay   time.Duration
	verify  VerifyFunc
	mu      sync.Mutex
	nowFunc func() time.Time
}

// NewQueue returns a queue whose entries become eligible for verification
// once their age reaches delay.
func NewQueue(backend storage.Backend, delay time.Duration, verify VerifyFunc) *Queue {
	return &Queue{
		backend: backend,
		delay:   delay,
		verify:  verify,
		nowFunc: time.Now,
	}
}

// RecordUpdate overwrites the entry for key with the new payload and a fresh
// timestamp, restarting the quiet period.
func (q *Queue) RecordUpdate(ctx context.Context, key string, payload json.RawMessage) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	entries := map[string]Entry{}
	if err := q.backend.Load(ctx, dataset, &entries); err != nil {
		return fmt.Errorf("load debounce entries: %w", err)
	}
	entries[key] = Entry{
		Key:         key,
		Payload:     payload,
		UpdatedAtMs: q.nowFunc().UnixMilli(),
	}
	if err := q.backend.Save(ctx, dataset, entries); err != nil {
		return fmt.Errorf("save debounce entries: %w", err)
	}
	return nil
}

// Remove drops the entry for key, if any.
func (q *Queue) Remove(ctx context.Context, key string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	entries := map[string]Entry{}
	if err := q.backend.Load(ctx, dataset, &entries); err != nil {
		return fmt.Errorf("load debounce entries: %w", err)
	}
	if _, ok := entries[key]; !ok {
		return nil
	}
	delete(entries, key)
	if err := q.backend.Save(ctx, dataset, entries); err != nil {
		return fmt.Errorf("save debounce entries: %w", err)
	}
	return nil
}

// Evaluate consumes every entry whose quiet period has elapsed and invokes
// the verification callback once per entry with the final payload. Entries
// failing with ErrTransient are left in place for the next tick. Returns the
// number of entries consumed.
func (q *Queue) Evaluate(ctx context.Context) (int, error) {
	q.mu.Lock()
	entries := map[string]Entry{}
	if err := q.backend.Load(ctx, dataset, &entries); err != nil {
		q.mu.Unlock()
		return 0, fmt.Errorf("load debounce entries: %w", err)
	}

	now := q.nowFunc()
	var due []Entry
	for _, e := range entries {
		if now.Sub(time.UnixMilli(e.UpdatedAtMs)) >= q.delay {
			due = append(due, e)
		}
	}
	q.mu.Unlock()

	consumed := 0
	for _, e := range due {
		err := q.verify(ctx, e.Key, e.Payload)
		if errors.Is(err, ErrTransient) {
			log.Printf("[debounce] key=%s verification deferred: %v", e.Key, err)
			continue
		}
		if err != nil {
			log.Printf("[debounce] key=%s verification failed: %v", e.Key, err)
		}
		if rerr := q.removeIfUnchanged(ctx, e); rerr != nil {
			log.Printf("[debounce] key=%s remove: %v", e.Key, rerr)
			continue
		}
		consumed++
	}
	return consumed, nil
}

// removeIfUnchanged deletes the entry only if no newer update landed while
// the callback ran; a fresher snapshot restarts its own quiet period.
func (q *Queue) removeIfUnchanged(ctx context.Context, evaluated Entry) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	entries := map[string]Entry{}
	if err := q.backend.Load(ctx, dataset, &entries); err != nil {
		return err
	}
	current, ok := entries[evaluated.Key]
	if !ok || current.UpdatedAtMs != evaluated.UpdatedAtMs {
		return nil
	}
	delete(entries, evaluated.Key)
	return q.backend.Save(ctx, dataset, entries)
}

// Run evaluates on every tick until ctx is cancelled.
func (q *Queue) Run(ctx context.Context, tick time.Duration) {
	ticker := time.NewTicker(tick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := q.Evaluate(ctx); err != nil {
				log.Printf("[debounce] evaluate: %v", err)
			}
		}
	}
}
