// Package watch follows a processor's published status from the client side.
package watch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/dyluth/downlink/internal/distributor"
	"github.com/dyluth/downlink/internal/printer"
	"github.com/dyluth/downlink/internal/store"
	"github.com/dyluth/downlink/pkg/status"
)

// OutputFormat selects how deliveries are written.
type OutputFormat string

const (
	// OutputFormatDefault is one human-readable line per delivery.
	OutputFormatDefault OutputFormat = "default"
	// OutputFormatJSON is one JSON object per line.
	OutputFormatJSON OutputFormat = "json"
)

// Delivery is the JSON form of one item delivery.
type Delivery struct {
	Time  time.Time `json:"time"`
	ID    string    `json:"id"`
	Value string    `json:"value"`
}

// PollForSnapshot polls until the instance has a published snapshot.
// Returns the snapshot or an error if timeout occurs.
// Polls every 200ms for the specified timeout duration.
func PollForSnapshot(ctx context.Context, client *store.Client, timeout time.Duration) (*store.Snapshot, error) {
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()

	timeoutCh := time.After(timeout)

	for {
		snap, err := client.GetSnapshot(ctx)
		if err == nil {
			return snap, nil
		}
		if !store.IsNotFound(err) {
			return nil, fmt.Errorf("failed to query for snapshot: %w", err)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()

		case <-timeoutCh:
			return nil, fmt.Errorf("timeout waiting for snapshot after %v", timeout)

		case <-ticker.C:
		}
	}
}

// StreamDeliveries subscribes to ids on d, starts it, and writes each
// delivery to w until ctx is done, d stops, or count deliveries have been
// written (count <= 0 means no limit).
func StreamDeliveries(ctx context.Context, d *distributor.Distributor, ids []string, format OutputFormat, count int, w io.Writer) error {
	deliveries := make(chan Delivery, len(ids))
	stopped := make(chan struct{})

	listener := distributor.NewFuncListener(func(item *status.Item, id string) {
		select {
		case deliveries <- Delivery{Time: time.Now(), ID: id, Value: item.Value()}:
		case <-stopped:
		}
	})

	for _, id := range ids {
		if err := d.RequestDelivery(listener, id); err != nil {
			return err
		}
	}

	if err := d.Start(ctx); err != nil {
		return err
	}
	defer d.Stop()
	defer close(stopped)

	encoder := json.NewEncoder(w)
	written := 0
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-d.Done():
			return nil
		case v := <-deliveries:
			if format == OutputFormatJSON {
				if err := encoder.Encode(v); err != nil {
					return fmt.Errorf("failed to write delivery: %w", err)
				}
			} else {
				printer.Delivery(w, v.Time, v.ID, v.Value)
			}
			written++
			if count > 0 && written >= count {
				return nil
			}
		}
	}
}
