// Package locks provides advisory per-key mutual exclusion backed by the
// durable dataset store. It prevents two handlers in the same process from
// running the critical section for one entity at the same time; it is not a
// distributed lock.
package locks

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/sahajverma/storeping/internal/storage"
)

const dataset = "locks"

// Lock is the persisted record for one held key.
type Lock struct {
	Key          string `json:"key"`
	AcquiredAtMs int64  `json:"acquiredAtMs"`
}

// Table is the process-wide lock table. The in-process mutex serialises the
// load-modify-save cycle on the shared dataset; the persisted record is what
// makes a crash-orphaned lock observable (and reapable) after restart.
type Table struct {
	backend storage.Backend
	lease   time.Duration // 0 disables stale-lock reaping
	mu      sync.Mutex
	nowFunc func() time.Time
}

// NewTable returns a lock table over backend. A lock older than lease is
// treated as abandoned by a crashed holder and stolen on the next acquire;
// lease 0 keeps locks forever.
func NewTable(backend storage.Backend, lease time.Duration) *Table {
	return &Table{
		backend: backend,
		lease:   lease,
		nowFunc: time.Now,
	}
}

// TryAcquire atomically creates the lock for key if absent and reports
// whether the caller now holds it. Never blocks waiting for a holder.
func (t *Table) TryAcquire(ctx context.Context, key string) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	held := map[string]Lock{}
	if err := t.backend.Load(ctx, dataset, &held); err != nil {
		return false, fmt.Errorf("load locks: %w", err)
	}

	now := t.nowFunc()
	if existing, ok := held[key]; ok {
		age := now.Sub(time.UnixMilli(existing.AcquiredAtMs))
		if t.lease <= 0 || age <= t.lease {
			return false, nil
		}
		log.Printf("[locks] reaping stale lock key=%s age=%s", key, age.Round(time.Second))
	}

	held[key] = Lock{Key: key, AcquiredAtMs: now.UnixMilli()}
	if err := t.backend.Save(ctx, dataset, held); err != nil {
		return false, fmt.Errorf("save locks: %w", err)
	}
	return true, nil
}

// Release deletes the lock for key. Releasing a lock that is not held is a
// no-op.
func (t *Table) Release(ctx context.Context, key string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	held := map[string]Lock{}
	if err := t.backend.Load(ctx, dataset, &held); err != nil {
		return fmt.Errorf("load locks: %w", err)
	}
	if _, ok := held[key]; !ok {
		return nil
	}
	delete(held, key)
	if err := t.backend.Save(ctx, dataset, held); err != nil {
		return fmt.Errorf("save locks: %w", err)
	}
	return nil
}
