// Package workspace holds the active-workspace selection. Only the active
// workspace's configuration is compiled and served by the engine.
package workspace

import (
	"strings"
	"sync"

	"github.com/carbonmock/carbon/pkg/mock"
)

// ChangeListener is called with the previous and new workspace name after a switch.
type ChangeListener func(previous, current string)

// Selector stores the active workspace name and notifies listeners on change.
type Selector struct {
	mu        sync.RWMutex
	active    string
	listeners []ChangeListener
}

// NewSelector creates a Selector. An empty initial name selects mock.DefaultWorkspaceName.
func NewSelector(initial string) *Selector {
	initial = strings.TrimSpace(initial)
	if initial == "" {
		initial = mock.DefaultWorkspaceName
	}
	return &Selector{active: initial}
}

// Get returns the active workspace name.
func (s *Selector) Get() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active
}

// Set switches the active workspace. Listeners run synchronously, only when the
// name actually changes. Set reports whether it did.
func (s *Selector) Set(name string) bool {
	name = strings.TrimSpace(name)
	if name == "" {
		return false
	}
	s.mu.Lock()
	previous := s.active
	if previous == name {
		s.mu.Unlock()
		return false
	}
	s.active = name
	listeners := make([]ChangeListener, len(s.listeners))
	copy(listeners, s.listeners)
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(previous, name)
	}
	return true
}

// OnChange registers a listener for workspace switches.
func (s *Selector) OnChange(listener ChangeListener) {
	if listener == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, listener)
}
