package storage

import (
	"sync"
	"time"
)

// Listeners is a registry of change listeners shared by Reader implementations.
// The zero value is ready to use.
type Listeners struct {
	mu        sync.RWMutex
	listeners []ChangeListener
}

// Add registers a listener.
func (l *Listeners) Add(listener ChangeListener) {
	if listener == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.listeners = append(l.listeners, listener)
}

// Notify sends an event to every listener, each on its own goroutine.
// A panicking listener does not affect the others.
func (l *Listeners) Notify(event ChangeEvent) {
	if event.Timestamp == 0 {
		event.Timestamp = time.Now().UnixMilli()
	}
	l.mu.RLock()
	listeners := make([]ChangeListener, len(l.listeners))
	copy(listeners, l.listeners)
	l.mu.RUnlock()

	for _, fn := range listeners {
		go func(listener ChangeListener) {
			defer func() { _ = recover() }()
			listener(event)
		}(fn)
	}
}
