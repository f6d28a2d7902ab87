package status

import (
	"strconv"
	"sync"
	"sync/atomic"
)

// Kind is the variant tag of a status item.
type Kind int

const (
	// KindInteger is a 32-bit signed counter. Arithmetic wraps at 32 bits.
	KindInteger Kind = iota
	// KindLong is a 64-bit signed counter.
	KindLong
	// KindText is a free-form string value.
	KindText
)

// String returns the wire name of the kind.
func (k Kind) String() string {
	switch k {
	case KindInteger:
		return "integer"
	case KindLong:
		return "long"
	case KindText:
		return "text"
	}
	return "unknown"
}

// ParseKind is the inverse of Kind.String.
func ParseKind(s string) (Kind, bool) {
	switch s {
	case "integer":
		return KindInteger, true
	case "long":
		return KindLong, true
	case "text":
		return KindText, true
	}
	return 0, false
}

// Item is a single named, typed, independently clearable value.
//
// Items are updated by the owning stage while snapshots read them from other
// goroutines, so every accessor is safe for concurrent use.
type Item struct {
	name      string
	kind      Kind
	clearable bool

	num atomic.Int64

	mu   sync.RWMutex
	text string
}

// ItemOption customises an item at construction.
type ItemOption func(*Item)

// NotClearable makes Clear a no-op for the item.
func NotClearable() ItemOption {
	return func(i *Item) { i.clearable = false }
}

// WithClearable sets the clearable attribute explicitly.
func WithClearable(clearable bool) ItemOption {
	return func(i *Item) { i.clearable = clearable }
}

func newItem(name string, kind Kind, opts []ItemOption) *Item {
	i := &Item{name: name, kind: kind, clearable: true}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// NewInteger creates a 32-bit counter item.
func NewInteger(name string, opts ...ItemOption) *Item {
	return newItem(name, KindInteger, opts)
}

// NewLong creates a 64-bit counter item.
func NewLong(name string, opts ...ItemOption) *Item {
	return newItem(name, KindLong, opts)
}

// NewText creates a text item.
func NewText(name string, opts ...ItemOption) *Item {
	return newItem(name, KindText, opts)
}

// Name returns the display name. Names are not unique within a block.
func (i *Item) Name() string { return i.name }

// Kind returns the variant tag.
func (i *Item) Kind() Kind { return i.kind }

// Clearable reports whether Clear resets the value.
func (i *Item) Clearable() bool { return i.clearable }

// Value renders the current value: decimal for numeric kinds, raw text otherwise.
func (i *Item) Value() string {
	switch i.kind {
	case KindInteger, KindLong:
		return strconv.FormatInt(i.num.Load(), 10)
	case KindText:
		i.mu.RLock()
		defer i.mu.RUnlock()
		return i.text
	}
	return ""
}

// Clear resets the item to its zero value if it is clearable.
func (i *Item) Clear() {
	if !i.clearable {
		return
	}
	switch i.kind {
	case KindInteger, KindLong:
		i.num.Store(0)
	case KindText:
		i.mu.Lock()
		i.text = ""
		i.mu.Unlock()
	}
}

// Add increments a numeric item by delta and returns the new value.
// Integer items wrap at 32 bits. Add on a text item is a no-op returning 0.
func (i *Item) Add(delta int64) int64 {
	switch i.kind {
	case KindLong:
		return i.num.Add(delta)
	case KindInteger:
		for {
			old := i.num.Load()
			next := int64(int32(old + delta))
			if i.num.CompareAndSwap(old, next) {
				return next
			}
		}
	}
	return 0
}

// Inc is shorthand for Add(1).
func (i *Item) Inc() int64 { return i.Add(1) }

// Set stores a numeric value. Integer items are truncated to 32 bits.
func (i *Item) Set(v int64) {
	switch i.kind {
	case KindLong:
		i.num.Store(v)
	case KindInteger:
		i.num.Store(int64(int32(v)))
	}
}

// Int returns the numeric value (0 for text items).
func (i *Item) Int() int64 {
	if i.kind == KindText {
		return 0
	}
	return i.num.Load()
}

// SetText stores a text value. It is a no-op on numeric items.
func (i *Item) SetText(s string) {
	if i.kind != KindText {
		return
	}
	i.mu.Lock()
	i.text = s
	i.mu.Unlock()
}

// Clone returns a detached copy carrying the current value.
func (i *Item) Clone() *Item {
	c := &Item{name: i.name, kind: i.kind, clearable: i.clearable}
	switch i.kind {
	case KindInteger, KindLong:
		c.num.Store(i.num.Load())
	case KindText:
		i.mu.RLock()
		c.text = i.text
		i.mu.RUnlock()
	}
	return c
}
