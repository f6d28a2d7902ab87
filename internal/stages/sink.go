package stages

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/dyluth/downlink/internal/metrics"
	"github.com/dyluth/downlink/internal/pipeline"
	"github.com/dyluth/downlink/pkg/frame"
	"github.com/dyluth/downlink/pkg/status"
)

// StreamPlaceholder in a sink path is replaced by the pipeline's stream label.
const StreamPlaceholder = "{stream}"

// SinkParams configures a sink stage.
type SinkParams struct {
	// Path is the output file. Required unless the pipeline supplies a writer.
	Path   string `yaml:"path"`
	Append bool   `yaml:"append"`
}

// Sink writes every surviving frame to its output, in arrival order. Deleted
// and fill frames are dropped. A sink is always the last stage.
type Sink struct {
	stream  string
	logger  *zap.Logger
	metrics *metrics.Collector

	w      *bufio.Writer
	closer io.Closer

	written *status.Item
	bytes   *status.Item
}

// NewSink is the pipeline.Factory for sink stages.
func NewSink(s pipeline.Settings, env *pipeline.Env) (pipeline.Receiver, error) {
	var params SinkParams
	if err := s.Decode(&params); err != nil {
		return nil, err
	}

	st := &Sink{
		stream:  env.Stream,
		logger:  env.StageLogger(s),
		metrics: env.Metrics,
		written: status.NewInteger("Frames Written"),
		bytes:   status.NewLong("Bytes Written"),
	}

	switch {
	case env.Output != nil:
		st.w = bufio.NewWriter(env.Output)
	case params.Path != "":
		if env.Copies > 1 && !strings.Contains(params.Path, StreamPlaceholder) {
			return nil, fmt.Errorf("path '%s' must contain %s when %d streams share the pipeline",
				params.Path, StreamPlaceholder, env.Copies)
		}
		path := strings.ReplaceAll(params.Path, StreamPlaceholder, env.Stream)
		flags := os.O_CREATE | os.O_WRONLY | os.O_TRUNC
		if params.Append {
			flags = os.O_CREATE | os.O_WRONLY | os.O_APPEND
		}
		file, err := os.OpenFile(path, flags, 0o644)
		if err != nil {
			return nil, fmt.Errorf("failed to open sink output: %w", err)
		}
		st.w = bufio.NewWriter(file)
		st.closer = file
		st.logger.Info("sink writing to file", zap.String("path", path))
	default:
		return nil, fmt.Errorf("path is required")
	}

	block := status.NewBlock(TypeSink, env.BlockName(s.Name), st.written, st.bytes)
	if err := env.RegisterBlock(block); err != nil {
		_ = st.Close()
		return nil, err
	}
	return st, nil
}

// Receive writes f unless it is deleted or fill.
func (s *Sink) Receive(_ context.Context, f *frame.Frame) error {
	s.metrics.RecordFrame(TypeSink, s.stream)

	if f.Skippable() {
		return nil
	}

	n, err := s.w.Write(f.Data)
	if err != nil {
		return fmt.Errorf("failed to write frame %d: %w", f.Seq, err)
	}
	s.written.Inc()
	s.bytes.Add(int64(n))
	return nil
}

// Close flushes buffered frames and closes the output file, if the sink
// opened one.
func (s *Sink) Close() error {
	if err := s.w.Flush(); err != nil {
		if s.closer != nil {
			_ = s.closer.Close()
		}
		return fmt.Errorf("failed to flush sink: %w", err)
	}
	if s.closer != nil {
		return s.closer.Close()
	}
	return nil
}
