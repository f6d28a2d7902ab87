// Package frame defines the unit of data that flows through a downlink
// processing pipeline: one synchronized physical frame (CADU) together with
// the sticky disposition flags that upstream stages attach to it.
package frame

import (
	"sync"
	"time"
)

// Frame is one physical frame owned by the pipeline for the duration of a
// single traversal. Stages may mutate Data in place.
//
// The deleted and fill flags are sticky: once a stage marks a frame, no later
// stage can clear the mark.
type Frame struct {
	// Data holds the raw frame bytes, starting with the attached sync marker.
	Data []byte

	// Seq is the per-stream sequence number assigned by the source (starts at 0).
	Seq uint64

	// Stream identifies the input stream that produced this frame.
	Stream string

	// ReceivedAt is the time the source acquired the frame.
	ReceivedAt time.Time

	deleted bool
	fill    bool
}

// New wraps data in a fresh frame. The frame takes ownership of data.
func New(data []byte) *Frame {
	return &Frame{Data: data, ReceivedAt: time.Now()}
}

// Deleted reports whether an upstream stage discarded this frame.
func (f *Frame) Deleted() bool { return f.deleted }

// FillFrame reports whether the frame was identified as a synthetic fill frame.
func (f *Frame) FillFrame() bool { return f.fill }

// MarkDeleted flags the frame as discarded.
func (f *Frame) MarkDeleted() { f.deleted = true }

// MarkFill flags the frame as a fill frame.
func (f *Frame) MarkFill() { f.fill = true }

// Skippable reports whether content-level work can be skipped for this frame.
func (f *Frame) Skippable() bool { return f.deleted || f.fill }

// Len returns the number of bytes in the frame.
func (f *Frame) Len() int { return len(f.Data) }

// Pool recycles fixed-size frames between traversals so a long-running source
// does not allocate one buffer per physical frame.
type Pool struct {
	size int
	pool sync.Pool
}

// NewPool creates a pool of frames whose buffers are size bytes long.
func NewPool(size int) *Pool {
	p := &Pool{size: size}
	p.pool.New = func() any {
		return &Frame{Data: make([]byte, size)}
	}
	return p
}

// Size returns the buffer length of frames handed out by this pool.
func (p *Pool) Size() int { return p.size }

// Get returns a frame with cleared flags and a buffer of Size() bytes.
// The buffer contents are undefined until the caller fills it.
func (p *Pool) Get() *Frame {
	f := p.pool.Get().(*Frame)
	f.Data = f.Data[:p.size]
	f.Seq = 0
	f.Stream = ""
	f.ReceivedAt = time.Time{}
	f.deleted = false
	f.fill = false
	return f
}

// Put returns a frame to the pool once its traversal has completed.
// Frames whose buffer capacity does not match the pool are dropped.
func (p *Pool) Put(f *Frame) {
	if f == nil || cap(f.Data) < p.size {
		return
	}
	p.pool.Put(f)
}
