package source

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/dyluth/downlink/internal/metrics"
	"github.com/dyluth/downlink/pkg/frame"
)

// capture copies each frame it receives, since the reader recycles them.
type capture struct {
	data    [][]byte
	seqs    []uint64
	failSeq map[uint64]error
}

func (c *capture) Receive(_ context.Context, f *frame.Frame) error {
	if err, ok := c.failSeq[f.Seq]; ok {
		return err
	}
	c.data = append(c.data, append([]byte(nil), f.Data...))
	c.seqs = append(c.seqs, f.Seq)
	return nil
}

func TestReaderSlicesFrames(t *testing.T) {
	in := bytes.NewReader([]byte("aaaabbbbccccdd"))
	r, err := NewReader(in, 4, WithStream("east"), WithLogger(zap.NewNop()))
	require.NoError(t, err)

	sink := &capture{}
	require.NoError(t, r.SetNext(sink))

	stats, err := r.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, [][]byte{[]byte("aaaa"), []byte("bbbb"), []byte("cccc")}, sink.data)
	assert.Equal(t, []uint64{0, 1, 2}, sink.seqs)
	assert.Equal(t, uint64(3), stats.Frames)
	assert.Equal(t, 2, stats.PartialBytes)
}

func TestReaderContinuesAfterProcessingError(t *testing.T) {
	in := bytes.NewReader(bytes.Repeat([]byte{1}, 12))
	collector := metrics.NewCollector("test", zap.NewNop())
	r, err := NewReader(in, 4, WithMetrics(collector))
	require.NoError(t, err)

	sink := &capture{failSeq: map[uint64]error{
		1: frame.NewProcessingError("pn.main", &frame.Frame{Seq: 1}, "short frame", nil),
	}}
	require.NoError(t, r.SetNext(sink))

	stats, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []uint64{0, 2}, sink.seqs)
	assert.Equal(t, uint64(1), stats.Errors)
	assert.Equal(t, uint64(3), stats.Frames)
}

func TestReaderStopsOnOtherErrors(t *testing.T) {
	in := bytes.NewReader(bytes.Repeat([]byte{1}, 12))
	r, err := NewReader(in, 4)
	require.NoError(t, err)

	diskFull := errors.New("disk full")
	sink := &capture{failSeq: map[uint64]error{1: diskFull}}
	require.NoError(t, r.SetNext(sink))

	_, err = r.Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, diskFull)
	assert.Len(t, sink.data, 1)
}

func TestReaderHonorsCancellation(t *testing.T) {
	r, err := NewReader(bytes.NewReader(make([]byte, 64)), 4)
	require.NoError(t, err)
	sink := &capture{}
	require.NoError(t, r.SetNext(sink))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = r.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, sink.data)
}

func TestNewReaderValidation(t *testing.T) {
	_, err := NewReader(nil, 4)
	assert.Error(t, err)
	_, err = NewReader(bytes.NewReader(nil), 0)
	assert.Error(t, err)

	r, err := NewReader(bytes.NewReader(nil), 4)
	require.NoError(t, err)
	_, err = r.Run(context.Background())
	assert.Error(t, err, "unlinked reader refuses to run")
}
