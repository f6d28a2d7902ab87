package distributor

import (
	"sync"

	"github.com/dyluth/downlink/pkg/status"
)

// Listener receives status items it subscribed to. Subscriptions are keyed by
// listener identity, so implementations must be comparable; pointer types are.
//
// Deliver runs on the distributor's polling goroutine. It may call
// RequestDelivery and CancelDelivery; those changes take effect when the cycle
// ends, and a listener cancelled mid-cycle gets nothing further from it.
// Deliver must not call Stop or Subscriptions, which wait for the cycle.
type Listener interface {
	Deliver(item *status.Item, id string)
}

// FuncListener adapts a function to the Listener interface. Each
// NewFuncListener call yields a distinct listener.
type FuncListener struct {
	fn func(item *status.Item, id string)
}

// NewFuncListener wraps fn.
func NewFuncListener(fn func(item *status.Item, id string)) *FuncListener {
	return &FuncListener{fn: fn}
}

// Deliver calls the wrapped function.
func (l *FuncListener) Deliver(item *status.Item, id string) {
	l.fn(item, id)
}

// Multiplexer fans one addressed item out to a set of listeners.
type Multiplexer struct {
	mu        sync.Mutex
	listeners []Listener
}

// AddListener adds l unless it is already present or its type is not
// comparable. It reports whether l was added.
func (m *Multiplexer) AddListener(l Listener) bool {
	if l == nil || !isComparable(l) {
		return false
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.listeners {
		if existing == l {
			return false
		}
	}
	m.listeners = append(m.listeners, l)
	return true
}

// RemoveListener removes l and returns how many listeners remain.
func (m *Multiplexer) RemoveListener(l Listener) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, existing := range m.listeners {
		if existing == l {
			m.listeners = append(m.listeners[:i], m.listeners[i+1:]...)
			break
		}
	}
	return len(m.listeners)
}

// Len returns the number of listeners.
func (m *Multiplexer) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.listeners)
}

// Listeners returns a copy of the current listeners.
func (m *Multiplexer) Listeners() []Listener {
	m.mu.Lock()
	defer m.mu.Unlock()

	listeners := make([]Listener, len(m.listeners))
	copy(listeners, m.listeners)
	return listeners
}

// Deliver calls every current listener once with (item, id).
func (m *Multiplexer) Deliver(item *status.Item, id string) {
	for _, l := range m.Listeners() {
		l.Deliver(item, id)
	}
}
