// Package source feeds fixed-size frames from a byte stream into a pipeline.
package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/dyluth/downlink/internal/metrics"
	"github.com/dyluth/downlink/internal/pipeline"
	"github.com/dyluth/downlink/pkg/frame"
)

// Stats summarizes one Run.
type Stats struct {
	Frames       uint64 // frames handed to the pipeline
	Errors       uint64 // frames halted by a processing error
	PartialBytes int    // trailing bytes too short for a frame
}

// Option configures a Reader.
type Option func(*Reader)

// WithStream labels frames and metrics with the stream name.
func WithStream(name string) Option {
	return func(r *Reader) { r.stream = name }
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(r *Reader) { r.logger = logger }
}

// WithMetrics records frame errors on c.
func WithMetrics(c *metrics.Collector) Option {
	return func(r *Reader) { r.metrics = c }
}

// Reader slices an input stream into frames and pushes them, in order, into
// the Receiver it is linked to. Frames are recycled once the pipeline returns,
// so stages must not keep a frame after Receive.
type Reader struct {
	pipeline.Link

	in      io.Reader
	pool    *frame.Pool
	stream  string
	logger  *zap.Logger
	metrics *metrics.Collector
}

// NewReader creates a reader producing frames of frameSize bytes.
func NewReader(in io.Reader, frameSize int, opts ...Option) (*Reader, error) {
	if in == nil {
		return nil, fmt.Errorf("input cannot be nil")
	}
	if frameSize <= 0 {
		return nil, fmt.Errorf("frame size must be > 0, got %d", frameSize)
	}

	r := &Reader{
		in:     in,
		pool:   frame.NewPool(frameSize),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.With(zap.String("component", "source"))
	if r.stream != "" {
		r.logger = r.logger.With(zap.String("stream", r.stream))
	}
	return r, nil
}

// Run reads until end of input or until ctx is cancelled. A processing error
// drops that frame and reading continues; any other pipeline error stops the
// run and is returned.
func (r *Reader) Run(ctx context.Context) (Stats, error) {
	var stats Stats

	if r.Next() == nil {
		return stats, fmt.Errorf("reader has no successor")
	}

	for seq := uint64(0); ; seq++ {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		f := r.pool.Get()
		n, err := io.ReadFull(r.in, f.Data)
		if err != nil {
			r.pool.Put(f)
			switch {
			case errors.Is(err, io.EOF):
				return stats, nil
			case errors.Is(err, io.ErrUnexpectedEOF):
				stats.PartialBytes = n
				r.logger.Warn("discarding trailing partial frame", zap.Int("bytes", n))
				return stats, nil
			default:
				return stats, fmt.Errorf("failed to read frame %d: %w", seq, err)
			}
		}

		f.Seq = seq
		f.Stream = r.stream
		f.ReceivedAt = time.Now()
		stats.Frames++

		err = r.Forward(ctx, f)
		r.pool.Put(f)
		if err == nil {
			continue
		}

		var perr *frame.ProcessingError
		if errors.As(err, &perr) {
			stats.Errors++
			r.metrics.RecordFrameError(perr.Stage, r.stream)
			r.logger.Warn("frame dropped", zap.Error(err))
			continue
		}
		return stats, fmt.Errorf("pipeline failed at frame %d: %w", seq, err)
	}
}
