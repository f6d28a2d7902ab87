package status

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Serialization helpers for moving snapshots across process boundaries.
//
// Values travel in their canonical string form so that a decoded item renders
// exactly the same Value() as the live item it was taken from.

type itemJSON struct {
	Name      string `json:"name"`
	Kind      string `json:"kind"`
	Clearable bool   `json:"clearable"`
	Value     string `json:"value"`
}

type blockJSON struct {
	Type  string     `json:"type"`
	Name  string     `json:"name"`
	Items []itemJSON `json:"items"`
}

// MarshalJSON encodes the block with the current value of every item.
func (b *Block) MarshalJSON() ([]byte, error) {
	items := b.Items()
	out := blockJSON{Type: b.Type, Name: b.Name, Items: make([]itemJSON, 0, len(items))}
	for _, it := range items {
		out.Items = append(out.Items, itemJSON{
			Name:      it.Name(),
			Kind:      it.Kind().String(),
			Clearable: it.Clearable(),
			Value:     it.Value(),
		})
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes a block produced by MarshalJSON.
func (b *Block) UnmarshalJSON(data []byte) error {
	var in blockJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}

	items := make([]*Item, 0, len(in.Items))
	for _, ij := range in.Items {
		it, err := decodeItem(ij)
		if err != nil {
			return fmt.Errorf("block %s: %w", BlockID(in.Type, in.Name), err)
		}
		items = append(items, it)
	}

	b.mu.Lock()
	b.Type = in.Type
	b.Name = in.Name
	b.items = items
	b.mu.Unlock()
	return nil
}

func decodeItem(ij itemJSON) (*Item, error) {
	kind, ok := ParseKind(ij.Kind)
	if !ok {
		return nil, fmt.Errorf("item '%s': unknown kind '%s'", ij.Name, ij.Kind)
	}

	it := newItem(ij.Name, kind, []ItemOption{WithClearable(ij.Clearable)})
	switch kind {
	case KindInteger, KindLong:
		v, err := strconv.ParseInt(ij.Value, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("item '%s': invalid numeric value: %w", ij.Name, err)
		}
		it.Set(v)
	case KindText:
		it.SetText(ij.Value)
	}
	return it, nil
}

// EncodeBlocks serializes an ordered snapshot.
func EncodeBlocks(blocks []*Block) ([]byte, error) {
	data, err := json.Marshal(blocks)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal status blocks: %w", err)
	}
	return data, nil
}

// DecodeBlocks is the inverse of EncodeBlocks. Order is preserved.
func DecodeBlocks(data []byte) ([]*Block, error) {
	var blocks []*Block
	if err := json.Unmarshal(data, &blocks); err != nil {
		return nil, fmt.Errorf("failed to unmarshal status blocks: %w", err)
	}
	if blocks == nil {
		blocks = []*Block{}
	}
	return blocks, nil
}
