package stages

import (
	"context"
	"fmt"

	"github.com/dyluth/downlink/internal/metrics"
	"github.com/dyluth/downlink/internal/pipeline"
	"github.com/dyluth/downlink/pkg/frame"
	"github.com/dyluth/downlink/pkg/status"
)

// PathParams configures a path stage.
type PathParams struct {
	// VCID selects the virtual channel. Required.
	VCID         *int `yaml:"vcid"`
	HeaderOffset *int `yaml:"header_offset,omitempty"`
}

// Path accounts for one virtual channel: how many VCDUs arrived, how many
// carried only idle data and how many the frame counter says went missing.
// Frames of other channels are forwarded without being counted.
type Path struct {
	pipeline.Link

	id      string
	stream  string
	vcid    uint8
	offset  int
	metrics *metrics.Collector

	haveLast    bool
	lastCounter uint32

	vcdus   *status.Item
	idle    *status.Item
	missing *status.Item
}

// NewPath is the pipeline.Factory for path stages.
func NewPath(s pipeline.Settings, env *pipeline.Env) (pipeline.Receiver, error) {
	var params PathParams
	if err := s.Decode(&params); err != nil {
		return nil, err
	}
	if params.VCID == nil {
		return nil, fmt.Errorf("vcid is required")
	}
	if *params.VCID < 0 || *params.VCID >= FillVCID {
		return nil, fmt.Errorf("vcid must be in 0-%d, got %d", FillVCID-1, *params.VCID)
	}

	offset, err := headerOffset(params.HeaderOffset)
	if err != nil {
		return nil, err
	}

	st := &Path{
		id:      s.ID(),
		stream:  env.Stream,
		vcid:    uint8(*params.VCID),
		offset:  offset,
		metrics: env.Metrics,
		vcdus:   status.NewInteger("VCDUs"),
		idle:    status.NewInteger("Idle VCDUs"),
		missing: status.NewInteger("Missing VCDUs"),
	}

	block := status.NewBlock(TypePath, env.BlockName(s.Name), st.vcdus, st.idle, st.missing)
	if err := env.RegisterBlock(block); err != nil {
		return nil, err
	}
	return st, nil
}

// Receive counts f if it belongs to this channel and forwards it.
func (p *Path) Receive(ctx context.Context, f *frame.Frame) error {
	p.metrics.RecordFrame(TypePath, p.stream)

	if f.Skippable() {
		return p.Forward(ctx, f)
	}

	h, err := ParseHeader(f.Data, p.offset)
	if err != nil {
		return frame.NewProcessingError(p.id, f, "unreadable VCDU header", err)
	}
	if h.VirtualChannelID != p.vcid {
		return p.Forward(ctx, f)
	}

	p.vcdus.Inc()
	if h.Idle() {
		p.idle.Inc()
	}

	if p.haveLast {
		expected := (p.lastCounter + 1) % counterModulus
		if h.Counter != expected {
			gap := (h.Counter + counterModulus - expected) % counterModulus
			p.missing.Add(int64(gap))
		}
	}
	p.lastCounter = h.Counter
	p.haveLast = true

	return p.Forward(ctx, f)
}
