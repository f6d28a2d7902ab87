package store

import (
	"fmt"
	"strconv"
	"time"

	"github.com/dyluth/downlink/pkg/status"
)

// Hash field names shared by the snapshot and control hashes.
const (
	fieldBlocks      = "blocks"
	fieldSession     = "session"
	fieldPublishedAt = "published_at"
	fieldConfigName  = "config_name"
	fieldEnabled     = "enabled"
	fieldUpdatedAt   = "updated_at"
)

// SnapshotToHash converts a snapshot to a Redis hash.
func SnapshotToHash(s *Snapshot) (map[string]interface{}, error) {
	blocks, err := status.EncodeBlocks(s.Blocks)
	if err != nil {
		return nil, fmt.Errorf("failed to encode blocks: %w", err)
	}

	return map[string]interface{}{
		fieldBlocks:      string(blocks),
		fieldSession:     s.Session,
		fieldPublishedAt: s.PublishedAt.UTC().Format(time.RFC3339Nano),
	}, nil
}

// HashToSnapshot converts a Redis hash back to a snapshot.
func HashToSnapshot(hash map[string]string) (*Snapshot, error) {
	blocks, err := status.DecodeBlocks([]byte(hash[fieldBlocks]))
	if err != nil {
		return nil, fmt.Errorf("failed to decode blocks: %w", err)
	}

	publishedAt, err := time.Parse(time.RFC3339Nano, hash[fieldPublishedAt])
	if err != nil {
		return nil, fmt.Errorf("invalid published_at: %w", err)
	}

	return &Snapshot{
		Session:     hash[fieldSession],
		PublishedAt: publishedAt,
		Blocks:      blocks,
	}, nil
}

// ControlStateToHash converts control state to a Redis hash.
func ControlStateToHash(c *ControlState) map[string]interface{} {
	return map[string]interface{}{
		fieldConfigName: c.ConfigName,
		fieldEnabled:    strconv.FormatBool(c.Enabled),
		fieldSession:    c.Session,
		fieldUpdatedAt:  c.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
}

// HashToControlState converts a Redis hash back to control state.
func HashToControlState(hash map[string]string) (*ControlState, error) {
	enabled, err := strconv.ParseBool(hash[fieldEnabled])
	if err != nil {
		return nil, fmt.Errorf("invalid enabled flag: %w", err)
	}

	updatedAt, err := time.Parse(time.RFC3339Nano, hash[fieldUpdatedAt])
	if err != nil {
		return nil, fmt.Errorf("invalid updated_at: %w", err)
	}

	return &ControlState{
		ConfigName: hash[fieldConfigName],
		Enabled:    enabled,
		Session:    hash[fieldSession],
		UpdatedAt:  updatedAt,
	}, nil
}
