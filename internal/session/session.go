// Package session keeps per-session conversational state in memory.
package session

import (
	"context"
	"time"

	cmap "github.com/orcaman/concurrent-map"
	log "github.com/sirupsen/logrus"
)

// PendingEdit is an edit instruction waiting for the user's next image.
type PendingEdit struct {
	Prompt         string
	Model          string
	NegativePrompt string
	CreatedAt      time.Time
}

type Store struct {
	promptExtend       cmap.ConcurrentMap
	pendingEdits       cmap.ConcurrentMap
	globalPromptExtend bool
	pendingEditTimeout time.Duration
	sweepInterval      time.Duration
	now                func() time.Time
}

type Option func(*Store)

func WithPendingEditTimeout(d time.Duration) Option {
	return func(s *Store) {
		s.pendingEditTimeout = d
	}
}

func WithSweepInterval(d time.Duration) Option {
	return func(s *Store) {
		s.sweepInterval = d
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// New returns a store where sessions without their own setting use globalPromptExtend.
func New(globalPromptExtend bool, opts ...Option) *Store {
	s := &Store{
		promptExtend:       cmap.New(),
		pendingEdits:       cmap.New(),
		globalPromptExtend: globalPromptExtend,
		pendingEditTimeout: 3 * time.Minute,
		sweepInterval:      5 * time.Second,
		now:                time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) PromptExtend(session string) bool {
	if v, ok := s.promptExtend.Get(session); ok {
		return v.(bool)
	}
	return s.globalPromptExtend
}

func (s *Store) SetPromptExtend(session string, enabled bool) {
	s.promptExtend.Set(session, enabled)
	log.Infof("[session] %s prompt extend=%t", session, enabled)
}

func (s *Store) PendingEditTimeout() time.Duration {
	return s.pendingEditTimeout
}

// Arm stores a pending edit for session, replacing any earlier one and
// restarting the wait window.
func (s *Store) Arm(session string, edit PendingEdit) PendingEdit {
	edit.CreatedAt = s.now()
	s.pendingEdits.Set(session, edit)
	log.Debugf("[session] %s waiting for image until %s", session, edit.CreatedAt.Add(s.pendingEditTimeout).Format(time.RFC3339))
	return edit
}

// Pending reports whether session has a pending edit that has not expired.
func (s *Store) Pending(session string) bool {
	v, ok := s.pendingEdits.Get(session)
	return ok && !s.expired(v.(PendingEdit))
}

// Consume removes and returns the pending edit of session. Expired entries
// that have not been swept yet are discarded.
func (s *Store) Consume(session string) (PendingEdit, bool) {
	v, ok := s.pendingEdits.Pop(session)
	if !ok {
		return PendingEdit{}, false
	}
	edit := v.(PendingEdit)
	if s.expired(edit) {
		return PendingEdit{}, false
	}
	return edit, true
}

// PendingCount returns the number of stored pending edits.
func (s *Store) PendingCount() int {
	return s.pendingEdits.Count()
}

func (s *Store) expired(edit PendingEdit) bool {
	return !s.now().Before(edit.CreatedAt.Add(s.pendingEditTimeout))
}

// Sweep removes expired pending edits and returns how many were removed.
// The age is checked again under the shard lock, so an entry re-armed in the
// meantime is kept.
func (s *Store) Sweep() int {
	removed := 0
	for _, key := range s.pendingEdits.Keys() {
		ok := s.pendingEdits.RemoveCb(key, func(key string, v interface{}, exists bool) bool {
			return exists && s.expired(v.(PendingEdit))
		})
		if ok {
			removed++
			log.Infof("[session] %s pending edit expired", key)
		}
	}
	return removed
}

// Start runs Sweep periodically until ctx is done.
func (s *Store) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(s.sweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.Sweep()
			}
		}
	}()
}
