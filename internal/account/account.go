// Package account selects which of the configured API keys is used for new requests.
package account

import (
	"sync"

	"github.com/massmux/QwenImageBot/internal/errors"
	log "github.com/sirupsen/logrus"
)

// Selector is process wide. All sessions share the selected account.
type Selector struct {
	mu      sync.RWMutex
	keys    []string
	current int
}

// New starts on the first account that has a key.
func New(keys ...string) *Selector {
	s := &Selector{keys: keys, current: 1}
	for i, k := range keys {
		if k != "" {
			s.current = i + 1
			break
		}
	}
	return s
}

// Switch selects account n (1-based). Unknown or unconfigured accounts leave
// the current selection unchanged.
func (s *Selector) Switch(n int) error {
	if n < 1 || n > len(s.keys) {
		return errors.Create(errors.UnknownAccountError)
	}
	if s.keys[n-1] == "" {
		log.Warnf("[account] account %d has no api key", n)
		return errors.Create(errors.AccountNotConfiguredError)
	}
	s.mu.Lock()
	s.current = n
	s.mu.Unlock()
	log.Infof("[account] switched to account %d", n)
	return nil
}

// Current returns the selected account number and its key.
func (s *Selector) Current() (int, string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current < 1 || s.current > len(s.keys) {
		return s.current, ""
	}
	return s.current, s.keys[s.current-1]
}
