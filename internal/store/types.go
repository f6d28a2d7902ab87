package store

import (
	"fmt"
	"time"

	"github.com/dyluth/downlink/pkg/status"
)

// Snapshot is one published copy of the processor's status blocks.
type Snapshot struct {
	Session     string
	PublishedAt time.Time
	Blocks      []*status.Block
}

// SnapshotEvent announces a new snapshot without carrying its blocks.
type SnapshotEvent struct {
	Session     string    `json:"session"`
	PublishedAt time.Time `json:"published_at"`
	Blocks      int       `json:"blocks"`
}

// ControlState mirrors the processor's externally queryable facts.
type ControlState struct {
	ConfigName string
	Enabled    bool
	Session    string
	UpdatedAt  time.Time
}

// ClearRequest asks the processor to clear one item, or every clearable item
// when ItemID is empty.
type ClearRequest struct {
	ItemID      string    `json:"item_id,omitempty"`
	RequestedBy string    `json:"requested_by,omitempty"`
	RequestedAt time.Time `json:"requested_at"`
}

// All reports whether the request targets every item.
func (r *ClearRequest) All() bool {
	return r.ItemID == ""
}

// Validate checks that ItemID, when set, is a three-part item id.
func (r *ClearRequest) Validate() error {
	if r.All() {
		return nil
	}
	if _, _, _, err := status.SplitItemID(r.ItemID); err != nil {
		return fmt.Errorf("invalid clear request: %w", err)
	}
	return nil
}

// Control actions a client may request of a running processor.
const (
	ActionEnable  = "enable"
	ActionDisable = "disable"
	ActionUnload  = "unload"
)

// ControlRequest asks the processor to enable or disable processing, or to
// unload its configuration.
type ControlRequest struct {
	Action      string    `json:"action"`
	RequestedBy string    `json:"requested_by,omitempty"`
	RequestedAt time.Time `json:"requested_at"`
}

// Validate checks that Action is a known action.
func (r *ControlRequest) Validate() error {
	switch r.Action {
	case ActionEnable, ActionDisable, ActionUnload:
		return nil
	default:
		return fmt.Errorf("invalid control request: unknown action '%s'", r.Action)
	}
}
