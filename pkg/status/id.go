package status

import (
	"fmt"
	"strings"
)

// Addressing
//
// Blocks are addressed as "{type}.{name}" and items as
// "{type}.{name}.{itemName}". Type and name never contain a dot; the item name
// is everything after the second dot, so it may contain dots and spaces.

// BlockID returns the canonical block id.
func BlockID(blockType, name string) string {
	return blockType + "." + name
}

// ItemID returns the three-part id used to subscribe to one item.
func ItemID(blockType, name, itemName string) string {
	return blockType + "." + name + "." + itemName
}

// SplitItemID splits a three-part id into its parts.
func SplitItemID(id string) (blockType, name, itemName string, err error) {
	parts := strings.SplitN(id, ".", 3)
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
		return "", "", "", fmt.Errorf("invalid item id %q: expected {type}.{name}.{item}", id)
	}
	return parts[0], parts[1], parts[2], nil
}

// SplitBlockID splits a canonical block id into type and name.
func SplitBlockID(id string) (blockType, name string, err error) {
	parts := strings.SplitN(id, ".", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" || strings.Contains(parts[1], ".") {
		return "", "", fmt.Errorf("invalid block id %q: expected {type}.{name}", id)
	}
	return parts[0], parts[1], nil
}

// ValidateSegment checks that s can be used as a block type or block name.
func ValidateSegment(kind, s string) error {
	if s == "" {
		return fmt.Errorf("%s cannot be empty", kind)
	}
	if strings.Contains(s, ".") {
		return fmt.Errorf("invalid %s '%s': must not contain '.'", kind, s)
	}
	return nil
}
