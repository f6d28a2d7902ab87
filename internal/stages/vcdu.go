package stages

import (
	"context"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"github.com/dyluth/downlink/internal/metrics"
	"github.com/dyluth/downlink/internal/pipeline"
	"github.com/dyluth/downlink/pkg/frame"
	"github.com/dyluth/downlink/pkg/status"
)

const (
	// DefaultHeaderOffset skips the 4-byte attached sync marker.
	DefaultHeaderOffset = 4

	// FillVCID marks a frame that carries no user data.
	FillVCID = 63

	// IdleFirstHeaderPointer marks an M_PDU packet zone holding only idle data.
	IdleFirstHeaderPointer = 0x7FE

	primaryHeaderLen = 6
	mpduHeaderLen    = 2
	counterModulus   = 1 << 24
)

// Header is a decoded VCDU primary header plus the M_PDU first-header pointer.
type Header struct {
	Version            uint8
	SpacecraftID       uint16
	VirtualChannelID   uint8
	Counter            uint32
	Replay             bool
	FirstHeaderPointer uint16
	HasMPDU            bool
}

// Idle reports whether the packet zone carries only idle data.
func (h Header) Idle() bool {
	return h.HasMPDU && h.FirstHeaderPointer == IdleFirstHeaderPointer
}

// ParseHeader decodes the VCDU header that starts at offset.
func ParseHeader(data []byte, offset int) (Header, error) {
	if offset < 0 || len(data) < offset+primaryHeaderLen {
		return Header{}, fmt.Errorf("frame is %d bytes, header needs %d", len(data), offset+primaryHeaderLen)
	}

	b := data[offset:]
	h := Header{
		Version:          b[0] >> 6,
		SpacecraftID:     uint16(b[0]&0x3F)<<2 | uint16(b[1]>>6),
		VirtualChannelID: b[1] & 0x3F,
		Counter:          uint32(b[2])<<16 | uint32(b[3])<<8 | uint32(b[4]),
		Replay:           b[5]&0x80 != 0,
	}

	if len(b) >= primaryHeaderLen+mpduHeaderLen {
		h.HasMPDU = true
		h.FirstHeaderPointer = uint16(b[6]&0x07)<<8 | uint16(b[7])
	}
	return h, nil
}

// VCDUParams configures a vcdu stage.
type VCDUParams struct {
	HeaderOffset *int `yaml:"header_offset,omitempty"`
	// Spacecraft, when set, deletes frames from any other spacecraft.
	Spacecraft *int `yaml:"spacecraft,omitempty"`
}

// VCDU classifies frames by their primary header. It marks fill frames and
// frames from a foreign spacecraft so later stages can skip them.
type VCDU struct {
	pipeline.Link

	id         string
	stream     string
	offset     int
	spacecraft int // -1 accepts any
	logger     *zap.Logger
	metrics    *metrics.Collector

	frames    *status.Item
	fill      *status.Item
	wrong     *status.Item
	lastCraft *status.Item
}

// NewVCDU is the pipeline.Factory for vcdu stages.
func NewVCDU(s pipeline.Settings, env *pipeline.Env) (pipeline.Receiver, error) {
	var params VCDUParams
	if err := s.Decode(&params); err != nil {
		return nil, err
	}

	offset, err := headerOffset(params.HeaderOffset)
	if err != nil {
		return nil, err
	}

	spacecraft := -1
	if params.Spacecraft != nil {
		if *params.Spacecraft < 0 || *params.Spacecraft > 0xFF {
			return nil, fmt.Errorf("spacecraft must be in 0-255, got %d", *params.Spacecraft)
		}
		spacecraft = *params.Spacecraft
	}

	st := &VCDU{
		id:         s.ID(),
		stream:     env.Stream,
		offset:     offset,
		spacecraft: spacecraft,
		logger:     env.StageLogger(s),
		metrics:    env.Metrics,
		frames:     status.NewInteger("Frames"),
		fill:       status.NewInteger("Fill Frames"),
		wrong:      status.NewInteger("Wrong Spacecraft"),
		lastCraft:  status.NewText("Last Spacecraft", status.NotClearable()),
	}

	block := status.NewBlock(TypeVCDU, env.BlockName(s.Name), st.frames, st.fill, st.wrong, st.lastCraft)
	if err := env.RegisterBlock(block); err != nil {
		return nil, err
	}
	return st, nil
}

// Receive classifies f and forwards it.
func (v *VCDU) Receive(ctx context.Context, f *frame.Frame) error {
	v.metrics.RecordFrame(TypeVCDU, v.stream)

	if f.Deleted() {
		return v.Forward(ctx, f)
	}

	h, err := ParseHeader(f.Data, v.offset)
	if err != nil {
		return frame.NewProcessingError(v.id, f, "unreadable VCDU header", err)
	}
	v.frames.Inc()
	v.lastCraft.SetText(strconv.Itoa(int(h.SpacecraftID)))

	if h.VirtualChannelID == FillVCID {
		f.MarkFill()
		v.fill.Inc()
	}

	if v.spacecraft >= 0 && int(h.SpacecraftID) != v.spacecraft {
		f.MarkDeleted()
		v.wrong.Inc()
		v.logger.Debug("frame from foreign spacecraft",
			zap.Uint64("seq", f.Seq),
			zap.Uint16("scid", h.SpacecraftID),
		)
	}

	return v.Forward(ctx, f)
}

func headerOffset(p *int) (int, error) {
	if p == nil {
		return DefaultHeaderOffset, nil
	}
	if *p < 0 {
		return 0, fmt.Errorf("header_offset must be >= 0, got %d", *p)
	}
	return *p, nil
}
