package status

import "sync"

// Block groups the items declared by one live stage instance.
type Block struct {
	Type string
	Name string

	mu    sync.RWMutex
	items []*Item
}

// NewBlock creates a block holding items in declaration order.
func NewBlock(blockType, name string, items ...*Item) *Block {
	return &Block{Type: blockType, Name: name, items: items}
}

// ID returns the canonical id "{type}.{name}".
func (b *Block) ID() string { return BlockID(b.Type, b.Name) }

// Add appends items to the block.
func (b *Block) Add(items ...*Item) {
	b.mu.Lock()
	b.items = append(b.items, items...)
	b.mu.Unlock()
}

// Items returns the items in declaration order.
func (b *Block) Items() []*Item {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]*Item, len(b.items))
	copy(out, b.items)
	return out
}

// Item returns the first item called name, or nil.
func (b *Block) Item(name string) *Item {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, it := range b.items {
		if it.Name() == name {
			return it
		}
	}
	return nil
}

// ClearAll clears every clearable item.
func (b *Block) ClearAll() {
	for _, it := range b.Items() {
		it.Clear()
	}
}

// Clone returns a frozen copy of the block and all its current values.
func (b *Block) Clone() *Block {
	items := b.Items()
	c := &Block{Type: b.Type, Name: b.Name, items: make([]*Item, len(items))}
	for i, it := range items {
		c.items[i] = it.Clone()
	}
	return c
}
