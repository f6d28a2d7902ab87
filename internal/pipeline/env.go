package pipeline

import (
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/dyluth/downlink/internal/metrics"
	"github.com/dyluth/downlink/pkg/status"
)

// Env carries the shared services a Factory may use. Each assembled pipeline
// gets its own copy, so blocks registered through it can be released with the
// pipeline.
type Env struct {
	Logger   *zap.Logger
	Metrics  *metrics.Collector
	Registry *status.Registry

	// Stream labels the input this pipeline copy serves. When set it is
	// appended to every block name so parallel copies stay distinct.
	Stream string

	// Copies is the number of pipeline copies assembled from the same
	// settings. Stages that own an external resource must give each copy
	// its own when Copies > 1.
	Copies int

	// Output overrides the destination of sink stages. Used by tests and by
	// callers that own the output themselves.
	Output io.Writer

	blocks []*status.Block
}

// BlockName returns the status block name for a stage instance.
func (e *Env) BlockName(name string) string {
	if e.Stream == "" {
		return name
	}
	return name + "-" + e.Stream
}

// RegisterBlock publishes b in the registry and tracks it for release.
func (e *Env) RegisterBlock(b *status.Block) error {
	if e.Registry == nil {
		return nil
	}
	if err := e.Registry.Register(b); err != nil {
		return fmt.Errorf("failed to register status block: %w", err)
	}
	e.blocks = append(e.blocks, b)
	return nil
}

// StageLogger returns the logger for one stage instance.
func (e *Env) StageLogger(s Settings) *zap.Logger {
	logger := e.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("stage", s.ID()))
	if e.Stream != "" {
		logger = logger.With(zap.String("stream", e.Stream))
	}
	return logger
}

func (e *Env) releaseBlocks() {
	if e.Registry == nil {
		return
	}
	for _, b := range e.blocks {
		e.Registry.Unregister(b)
	}
	e.blocks = nil
}
