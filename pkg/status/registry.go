package status

import (
	"context"
	"fmt"
	"sync"
)

// Registry is the in-process authoritative list of live status blocks.
// Stages register their block at assembly and release it when their pipeline
// is unloaded. Registration order is snapshot order.
type Registry struct {
	mu     sync.RWMutex
	blocks []*Block
	index  map[string]*Block
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{index: make(map[string]*Block)}
}

// Register adds a block. Canonical ids must be unique across the registry.
func (r *Registry) Register(b *Block) error {
	if err := ValidateSegment("block type", b.Type); err != nil {
		return err
	}
	if err := ValidateSegment("block name", b.Name); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	id := b.ID()
	if _, exists := r.index[id]; exists {
		return fmt.Errorf("duplicate status block '%s'", id)
	}
	r.index[id] = b
	r.blocks = append(r.blocks, b)
	return nil
}

// Unregister removes a block. Unknown blocks are ignored.
func (r *Registry) Unregister(b *Block) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := b.ID()
	if r.index[id] != b {
		return
	}
	delete(r.index, id)
	for i, existing := range r.blocks {
		if existing == b {
			r.blocks = append(r.blocks[:i], r.blocks[i+1:]...)
			break
		}
	}
}

// Block returns the live block with the given canonical id, or nil.
func (r *Registry) Block(id string) *Block {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.index[id]
}

// Len returns the number of registered blocks.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.blocks)
}

// Snapshot returns a frozen copy of every block in registration order.
// It never fails; the error return lets the registry serve as a snapshot source.
func (r *Registry) Snapshot(ctx context.Context) ([]*Block, error) {
	r.mu.RLock()
	live := make([]*Block, len(r.blocks))
	copy(live, r.blocks)
	r.mu.RUnlock()

	out := make([]*Block, len(live))
	for i, b := range live {
		out[i] = b.Clone()
	}
	return out, nil
}

// ClearAll clears every clearable item of every block.
func (r *Registry) ClearAll() {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, b := range r.blocks {
		b.ClearAll()
	}
}

// ClearItem clears every clearable item addressed by the three-part id and
// returns how many items matched. Non-clearable matches are counted but left
// untouched.
func (r *Registry) ClearItem(id string) (int, error) {
	blockType, name, itemName, err := SplitItemID(id)
	if err != nil {
		return 0, err
	}

	b := r.Block(BlockID(blockType, name))
	if b == nil {
		return 0, nil
	}

	matched := 0
	for _, it := range b.Items() {
		if it.Name() == itemName {
			it.Clear()
			matched++
		}
	}
	return matched, nil
}
