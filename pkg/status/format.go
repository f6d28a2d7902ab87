package status

import (
	"encoding/json"
	"fmt"
	"io"
)

// FormatTable writes a snapshot as a table with one row per item.
// Columns: ID, VALUE, CLEAR. Returns the number of items written.
func FormatTable(w io.Writer, blocks []*Block, instanceName string) int {
	if len(blocks) == 0 {
		fmt.Fprintf(w, "No status blocks found for instance '%s'\n", instanceName)
		return 0
	}

	fmt.Fprintf(w, "Status for instance '%s':\n\n", instanceName)
	fmt.Fprintf(w, "%-44s %-20s %s\n", "ID", "VALUE", "CLEAR")
	fmt.Fprintf(w, "%-44s %-20s %s\n",
		"--------------------------------------------", "--------------------", "-----")

	count := 0
	for _, b := range blocks {
		for _, it := range b.Items() {
			fmt.Fprintf(w, "%-44s %-20s %s\n",
				truncate(ItemID(b.Type, b.Name, it.Name()), 44),
				truncate(it.Value(), 20),
				formatClearable(it.Clearable()),
			)
			count++
		}
	}

	noun := "item"
	if count != 1 {
		noun = "items"
	}
	fmt.Fprintf(w, "\n%d %s in %d blocks\n", count, noun, len(blocks))

	return count
}

// FormatJSONL writes one JSON object per block, one per line.
func FormatJSONL(w io.Writer, blocks []*Block) error {
	for _, b := range blocks {
		data, err := json.Marshal(b)
		if err != nil {
			return fmt.Errorf("failed to marshal block to JSON: %w", err)
		}
		if _, err := fmt.Fprintf(w, "%s\n", data); err != nil {
			return fmt.Errorf("failed to write JSONL output: %w", err)
		}
	}
	return nil
}

func formatClearable(clearable bool) string {
	if clearable {
		return "yes"
	}
	return "no"
}

// truncate shortens s to max runes, marking the cut with "...".
func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	if max <= 3 {
		return string(r[:max])
	}
	return string(r[:max-3]) + "..."
}
