package stages

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dyluth/downlink/internal/pipeline"
	"github.com/dyluth/downlink/internal/pn"
	"github.com/dyluth/downlink/internal/testutil"
	"github.com/dyluth/downlink/pkg/frame"
)

func TestPNStageDecodes(t *testing.T) {
	st, rec, reg := build(t, NewPN, TypePN, "main", PNParams{Variant: "ccsds"})

	plain := cadu(157, 1, 10, 0)
	randomized := append([]byte(nil), plain...)
	v, _ := pn.Lookup("ccsds")
	require.NoError(t, v.Decode(randomized))

	require.NoError(t, st.Receive(context.Background(), frame.New(randomized)))
	require.Len(t, rec.frames, 1)
	assert.Equal(t, plain, rec.frames[0].Data)
	assert.Equal(t, "1", value(t, reg, "pn.main", "Decoded Frames"))
}

func TestPNStagePassesSkippableFramesUntouched(t *testing.T) {
	tests := []struct {
		name string
		mark func(f *frame.Frame)
	}{
		{"deleted", (*frame.Frame).MarkDeleted},
		{"fill", (*frame.Frame).MarkFill},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st, rec, reg := build(t, NewPN, TypePN, "main", PNParams{Variant: "ccsds"})

			data := bytes.Repeat([]byte{0x5A}, testutil.CADULen)
			f := frame.New(append([]byte(nil), data...))
			tt.mark(f)

			require.NoError(t, st.Receive(context.Background(), f))
			require.Len(t, rec.frames, 1, "skipped frame must still be forwarded")
			assert.Equal(t, data, rec.frames[0].Data)
			assert.True(t, rec.frames[0].Skippable(), "flags are sticky")
			assert.Equal(t, "1", value(t, reg, "pn.main", "Skipped Frames"))
			assert.Equal(t, "0", value(t, reg, "pn.main", "Decoded Frames"))
		})
	}
}

func TestPNStageShortFrame(t *testing.T) {
	st, rec, reg := build(t, NewPN, TypePN, "main", PNParams{Variant: "ccsds"})

	data := bytes.Repeat([]byte{0x01}, 100)
	err := st.Receive(context.Background(), frame.New(data))
	require.Error(t, err)
	assert.True(t, frame.IsProcessingError(err))
	assert.Empty(t, rec.frames, "traversal halts on a processing error")
	assert.Equal(t, bytes.Repeat([]byte{0x01}, 100), data)
	assert.Equal(t, "1", value(t, reg, "pn.main", "Short Frames"))
}

func TestPNStageOverrides(t *testing.T) {
	st, rec, _ := build(t, NewPN, TypePN, "x", PNParams{Variant: "ccsds", First: intPtr(0), Last: intPtr(8)})

	require.NoError(t, st.Receive(context.Background(), frame.New(make([]byte, 10))))
	assert.Equal(t, []byte{0xFF, 0x48, 0x0E, 0xC0, 0x9A, 0x0D, 0x70, 0xBC, 0, 0}, rec.frames[0].Data)
}

func TestPNStageConfigErrors(t *testing.T) {
	tests := []struct {
		name   string
		params PNParams
		errMsg string
	}{
		{"missing variant", PNParams{}, "variant is required"},
		{"unknown variant", PNParams{Variant: "nope"}, "unknown variant 'nope'"},
		{"bad override", PNParams{Variant: "ccsds", First: intPtr(100), Last: intPtr(50)}, "must be greater than first"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env, reg := testEnv()
			s, err := pipeline.NewSettings(TypePN, "x", tt.params)
			require.NoError(t, err)

			_, err = NewPN(s, env)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
			assert.Zero(t, reg.Len())
		})
	}
}
