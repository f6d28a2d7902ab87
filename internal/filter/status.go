package filter

import (
	"path/filepath"

	"github.com/dyluth/downlink/pkg/status"
)

// Criteria defines filtering criteria for status blocks and items.
// All filters are ANDed together - an item must match ALL criteria to pass.
type Criteria struct {
	BlockGlob string // Glob pattern for the block id ({type}.{name}), empty = no filter
	ItemGlob  string // Glob pattern for the item name, empty = no filter
}

// Validate checks that both patterns are well-formed.
func (c *Criteria) Validate() error {
	for _, pattern := range []string{c.BlockGlob, c.ItemGlob} {
		if pattern == "" {
			continue
		}
		if _, err := filepath.Match(pattern, ""); err != nil {
			return err
		}
	}
	return nil
}

// MatchesBlock returns true if the block id matches BlockGlob.
func (c *Criteria) MatchesBlock(b *status.Block) bool {
	return globMatch(c.BlockGlob, b.ID())
}

// MatchesItem returns true if the item name matches ItemGlob.
func (c *Criteria) MatchesItem(item *status.Item) bool {
	return globMatch(c.ItemGlob, item.Name())
}

// HasFilters returns true if any filters are active.
func (c *Criteria) HasFilters() bool {
	return c.BlockGlob != "" || c.ItemGlob != ""
}

// Apply returns the blocks that match, each narrowed to its matching items.
// With an item filter, blocks left without items are dropped. The input
// blocks are not modified.
func (c *Criteria) Apply(blocks []*status.Block) []*status.Block {
	if !c.HasFilters() {
		return blocks
	}

	out := make([]*status.Block, 0, len(blocks))
	for _, b := range blocks {
		if !c.MatchesBlock(b) {
			continue
		}
		if c.ItemGlob == "" {
			out = append(out, b)
			continue
		}

		var items []*status.Item
		for _, item := range b.Items() {
			if c.MatchesItem(item) {
				items = append(items, item)
			}
		}
		if len(items) > 0 {
			out = append(out, status.NewBlock(b.Type, b.Name, items...))
		}
	}
	return out
}

func globMatch(pattern, s string) bool {
	if pattern == "" {
		return true
	}
	matched, err := filepath.Match(pattern, s)
	return err == nil && matched
}
