package stages

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/dyluth/downlink/internal/metrics"
	"github.com/dyluth/downlink/internal/pipeline"
	"github.com/dyluth/downlink/internal/pn"
	"github.com/dyluth/downlink/pkg/frame"
	"github.com/dyluth/downlink/pkg/status"
)

// PNParams configures a pn stage.
type PNParams struct {
	// Variant names a preset from the pn package.
	Variant string `yaml:"variant"`
	// First and Last override the preset's byte range.
	First *int `yaml:"first,omitempty"`
	Last  *int `yaml:"last,omitempty"`
}

// PN removes the pseudo-noise overlay from each frame. Deleted and fill frames
// are forwarded untouched.
type PN struct {
	pipeline.Link

	id      string
	stream  string
	variant pn.Variant
	logger  *zap.Logger
	metrics *metrics.Collector

	decoded *status.Item
	skipped *status.Item
	short   *status.Item
}

// NewPN is the pipeline.Factory for pn stages.
func NewPN(s pipeline.Settings, env *pipeline.Env) (pipeline.Receiver, error) {
	var params PNParams
	if err := s.Decode(&params); err != nil {
		return nil, err
	}
	if params.Variant == "" {
		return nil, fmt.Errorf("variant is required (one of: %s)", strings.Join(pn.Names(), ", "))
	}

	variant, ok := pn.Lookup(params.Variant)
	if !ok {
		return nil, fmt.Errorf("unknown variant '%s' (one of: %s)", params.Variant, strings.Join(pn.Names(), ", "))
	}
	if params.First != nil {
		variant.First = *params.First
	}
	if params.Last != nil {
		variant.Last = *params.Last
	}
	if err := variant.Validate(); err != nil {
		return nil, fmt.Errorf("invalid variant '%s': %w", params.Variant, err)
	}

	st := &PN{
		id:      s.ID(),
		stream:  env.Stream,
		variant: variant,
		logger:  env.StageLogger(s),
		metrics: env.Metrics,
		decoded: status.NewInteger("Decoded Frames"),
		skipped: status.NewInteger("Skipped Frames"),
		short:   status.NewInteger("Short Frames"),
	}

	block := status.NewBlock(TypePN, env.BlockName(s.Name), st.decoded, st.skipped, st.short)
	if err := env.RegisterBlock(block); err != nil {
		return nil, err
	}

	st.logger.Debug("pn stage ready",
		zap.String("variant", params.Variant),
		zap.Int("first", variant.First),
		zap.Int("last", variant.Last),
	)
	return st, nil
}

// Receive decodes f in place and forwards it.
func (p *PN) Receive(ctx context.Context, f *frame.Frame) error {
	p.metrics.RecordFrame(TypePN, p.stream)

	if f.Skippable() {
		p.skipped.Inc()
		return p.Forward(ctx, f)
	}

	if len(f.Data) < p.variant.Last {
		p.short.Inc()
		return frame.NewProcessingError(p.id, f,
			fmt.Sprintf("frame is %d bytes, randomized range ends at %d", len(f.Data), p.variant.Last), nil)
	}

	if err := p.variant.Decode(f.Data); err != nil {
		return frame.NewProcessingError(p.id, f, "pn decode failed", err)
	}
	p.decoded.Inc()

	return p.Forward(ctx, f)
}
