// Package pipeline composes frame-processing stages into chains.
//
// A stage has one or both of two capabilities. A Receiver accepts frames; a
// Sender is bound once to the Receiver that follows it. Sources are senders
// only and sinks are receivers only. Processing is synchronous: Receive
// returns once the frame has travelled as far down the chain as it will go.
package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/dyluth/downlink/pkg/frame"
)

// ErrAlreadyLinked is returned when a Sender that already has a successor is
// bound a second time.
var ErrAlreadyLinked = errors.New("stage already linked to a successor")

// Receiver accepts frames for processing.
type Receiver interface {
	Receive(ctx context.Context, f *frame.Frame) error
}

// Sender forwards frames to a successor bound with SetNext.
type Sender interface {
	SetNext(next Receiver) error
}

// Link is an embeddable Sender. The zero value is unlinked; Forward on an
// unlinked Link drops the frame.
type Link struct {
	next Receiver
}

// SetNext binds the successor. It may be called once.
func (l *Link) SetNext(next Receiver) error {
	if next == nil {
		return fmt.Errorf("successor cannot be nil")
	}
	if l.next != nil {
		return ErrAlreadyLinked
	}
	l.next = next
	return nil
}

// Next returns the bound successor, or nil.
func (l *Link) Next() Receiver {
	return l.next
}

// Forward passes f to the successor.
func (l *Link) Forward(ctx context.Context, f *frame.Frame) error {
	if l.next == nil {
		return nil
	}
	return l.next.Receive(ctx, f)
}

// ReceiveBatch submits frames to r one at a time, in order. Frames accepted
// before a failure stay forwarded; the error names the failing index.
func ReceiveBatch(ctx context.Context, r Receiver, frames []*frame.Frame) error {
	for i, f := range frames {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := r.Receive(ctx, f); err != nil {
			return fmt.Errorf("batch frame %d: %w", i, err)
		}
	}
	return nil
}
