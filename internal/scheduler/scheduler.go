// Package scheduler fires one action per entity at-or-after a due time. The
// durable action map is the source of truth; in-memory timers are a latency
// optimization and the periodic sweep is the recovery path after a restart
// loses them.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/sahajverma/storeping/internal/locks"
	"github.com/sahajverma/storeping/internal/storage"
)

// ErrPermanent marks an action failure that can never succeed (e.g. the
// entity has no recipient). The action is marked fired so the sweep stops
// retrying it. Any other error leaves the action unfired for the next sweep.
var ErrPermanent = errors.New("permanent action failure")

// Action is the persisted schedule record for one entity. Records are never
// deleted; a fired record doubles as the "already sent" ledger for the
// scheduled category.
type Action struct {
	EntityKey string `json:"entityKey"`
	DueAtMs   int64  `json:"dueAtMs"`
	Fired     bool   `json:"fired"`
	Attempts  int    `json:"attempts,omitempty"`
}

// ActionFunc performs the scheduled side effect for one entity.
type ActionFunc func(ctx context.Context, entityKey string) error

// Scheduler owns one action dataset and one action callback.
type Scheduler struct {
	backend storage.Backend
	dataset string
	locks   *locks.Table
	action  ActionFunc

	mu      sync.Mutex
	timers  map[string]*time.Timer
	nowFunc func() time.Time
}

// New returns a scheduler persisting to the named dataset. lockTable guards
// the action's critical section per entity; it is shared with every other
// path that handles the same entities.
func New(backend storage.Backend, dataset string, lockTable *locks.Table, action ActionFunc) *Scheduler {
	return &Scheduler{
		backend: backend,
		dataset: dataset,
		locks:   lockTable,
		action:  action,
		timers:  map[string]*time.Timer{},
		nowFunc: time.Now,
	}
}

// Schedule records that entityKey's action is due at dueAt. A later call for
// the same entity keeps the earlier of the two due times: the first
// qualifying event starts the countdown. Scheduling an already-fired entity
// is a no-op.
func (s *Scheduler) Schedule(ctx context.Context, entityKey string, dueAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	actions := map[string]Action{}
	if err := s.backend.Load(ctx, s.dataset, &actions); err != nil {
		return fmt.Errorf("load %s: %w", s.dataset, err)
	}

	dueMs := dueAt.UnixMilli()
	attempts := 0
	if existing, ok := actions[entityKey]; ok {
		if existing.Fired {
			return nil
		}
		// earliest observed qualifying time wins
		if existing.DueAtMs <= dueMs {
			return nil
		}
		attempts = existing.Attempts
	}

	actions[entityKey] = Action{EntityKey: entityKey, DueAtMs: dueMs, Attempts: attempts}
	if err := s.backend.Save(ctx, s.dataset, actions); err != nil {
		return fmt.Errorf("save %s: %w", s.dataset, err)
	}

	s.armLocked(entityKey, time.UnixMilli(dueMs))
	return nil
}

// armLocked registers the fast-path timer for entityKey. Caller holds s.mu.
func (s *Scheduler) armLocked(entityKey string, dueAt time.Time) {
	if t, ok := s.timers[entityKey]; ok {
		t.Stop()
	}
	delay := dueAt.Sub(s.nowFunc())
	if delay < 0 {
		delay = 0
	}
	s.timers[entityKey] = time.AfterFunc(delay, func() {
		s.fire(context.Background(), entityKey)
	})
}

// fire runs the action for entityKey behind the entity lock, re-checking the
// fired flag under the lock so a racing timer and sweep cannot both send.
func (s *Scheduler) fire(ctx context.Context, entityKey string) {
	held, err := s.locks.TryAcquire(ctx, entityKey)
	if err != nil {
		log.Printf("[scheduler] lock %s: %v", entityKey, err)
		return
	}
	if !held {
		// another actor is handling this entity; the sweep retries later
		return
	}
	defer func() {
		if err := s.locks.Release(ctx, entityKey); err != nil {
			log.Printf("[scheduler] release %s: %v", entityKey, err)
		}
	}()

	s.mu.Lock()
	actions := map[string]Action{}
	if err := s.backend.Load(ctx, s.dataset, &actions); err != nil {
		s.mu.Unlock()
		log.Printf("[scheduler] load %s: %v", s.dataset, err)
		return
	}
	act, ok := actions[entityKey]
	s.mu.Unlock()
	if !ok || act.Fired {
		return
	}
	if time.UnixMilli(act.DueAtMs).After(s.nowFunc()) {
		return
	}

	err = s.action(ctx, entityKey)
	if err != nil && !errors.Is(err, ErrPermanent) {
		s.recordAttempt(ctx, entityKey)
		log.Printf("[scheduler] action %s failed (will retry on sweep): %v", entityKey, err)
		return
	}
	if errors.Is(err, ErrPermanent) {
		log.Printf("[scheduler] action %s abandoned: %v", entityKey, err)
	}

	s.markFired(ctx, entityKey)
}

func (s *Scheduler) recordAttempt(ctx context.Context, entityKey string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	actions := map[string]Action{}
	if err := s.backend.Load(ctx, s.dataset, &actions); err != nil {
		return
	}
	act, ok := actions[entityKey]
	if !ok {
		return
	}
	act.Attempts++
	actions[entityKey] = act
	if err := s.backend.Save(ctx, s.dataset, actions); err != nil {
		log.Printf("[scheduler] save attempt count %s: %v", entityKey, err)
	}
}

func (s *Scheduler) markFired(ctx context.Context, entityKey string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	actions := map[string]Action{}
	if err := s.backend.Load(ctx, s.dataset, &actions); err != nil {
		log.Printf("[scheduler] load %s: %v", s.dataset, err)
		return
	}
	act, ok := actions[entityKey]
	if !ok {
		return
	}
	act.Fired = true
	act.Attempts++
	actions[entityKey] = act
	if err := s.backend.Save(ctx, s.dataset, actions); err != nil {
		log.Printf("[scheduler] save fired flag %s: %v", entityKey, err)
	}
	if t, ok := s.timers[entityKey]; ok {
		t.Stop()
		delete(s.timers, entityKey)
	}
}

// Sweep re-scans the durable map and fires every unfired past-due action.
// This is the restart-recovery path and the retry path for failed actions.
// Returns the number of actions that ended the pass fired.
func (s *Scheduler) Sweep(ctx context.Context) (int, error) {
	s.mu.Lock()
	actions := map[string]Action{}
	if err := s.backend.Load(ctx, s.dataset, &actions); err != nil {
		s.mu.Unlock()
		return 0, fmt.Errorf("load %s: %w", s.dataset, err)
	}
	now := s.nowFunc()
	var due []string
	for key, act := range actions {
		if !act.Fired && !time.UnixMilli(act.DueAtMs).After(now) {
			due = append(due, key)
		}
	}
	s.mu.Unlock()

	fired := 0
	for _, key := range due {
		s.fire(ctx, key)
		s.mu.Lock()
		check := map[string]Action{}
		if err := s.backend.Load(ctx, s.dataset, &check); err == nil {
			if act, ok := check[key]; ok && act.Fired {
				fired++
			}
		}
		s.mu.Unlock()
	}
	return fired, nil
}

// Run arms timers for every unfired action already on disk, then sweeps on
// every tick until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context, sweepInterval time.Duration) {
	s.mu.Lock()
	actions := map[string]Action{}
	if err := s.backend.Load(ctx, s.dataset, &actions); err != nil {
		log.Printf("[scheduler] load %s: %v", s.dataset, err)
	}
	for key, act := range actions {
		if !act.Fired {
			s.armLocked(key, time.UnixMilli(act.DueAtMs))
		}
	}
	s.mu.Unlock()

	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.stopTimers()
			return
		case <-ticker.C:
			if n, err := s.Sweep(ctx); err != nil {
				log.Printf("[sweep] %v", err)
			} else if n > 0 {
				log.Printf("[sweep] fired %d actions", n)
			}
		}
	}
}

func (s *Scheduler) stopTimers() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, t := range s.timers {
		t.Stop()
		delete(s.timers, key)
	}
}
