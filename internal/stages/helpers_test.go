package stages

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/dyluth/downlink/internal/pipeline"
	"github.com/dyluth/downlink/internal/pn"
	"github.com/dyluth/downlink/internal/testutil"
	"github.com/dyluth/downlink/pkg/frame"
	"github.com/dyluth/downlink/pkg/status"
)

// cadu builds an un-randomized CADU with the given header fields.
func cadu(scid uint16, vcid uint8, counter uint32, fhp uint16) []byte {
	return testutil.CADU(scid, vcid, counter, fhp)
}

// recorder is a terminal receiver that keeps what it was given.
type recorder struct {
	frames []*frame.Frame
}

func (r *recorder) Receive(_ context.Context, f *frame.Frame) error {
	r.frames = append(r.frames, f)
	return nil
}

func testEnv() (*pipeline.Env, *status.Registry) {
	reg := status.NewRegistry()
	return &pipeline.Env{Logger: zap.NewNop(), Registry: reg}, reg
}

// build constructs a stage through its factory and links it to a recorder.
func build(t *testing.T, f pipeline.Factory, typ, name string, params any) (pipeline.Receiver, *recorder, *status.Registry) {
	t.Helper()
	env, reg := testEnv()
	s, err := pipeline.NewSettings(typ, name, params)
	require.NoError(t, err)

	st, err := f(s, env)
	require.NoError(t, err)

	rec := &recorder{}
	if sender, ok := st.(pipeline.Sender); ok {
		require.NoError(t, sender.SetNext(rec))
	}
	return st, rec, reg
}

func value(t *testing.T, reg *status.Registry, blockID, item string) string {
	t.Helper()
	b := reg.Block(blockID)
	require.NotNil(t, b, "block %s not registered", blockID)
	it := b.Item(item)
	require.NotNil(t, it, "item %s not in block %s", item, blockID)
	return it.Value()
}

func intPtr(v int) *int { return &v }

// testRegistryPipeline runs two randomized CADUs, one idle on VC 42 and one
// fill, through a full pn -> vcdu -> path -> sink chain.
func testRegistryPipeline(t *testing.T, out *bytes.Buffer) *status.Registry {
	t.Helper()
	reg := status.NewRegistry()

	settings := make([]pipeline.Settings, 0, 4)
	for _, st := range []struct {
		typ, name string
		params    any
	}{
		{TypePN, "main", PNParams{Variant: "ccsds"}},
		{TypeVCDU, "main", VCDUParams{Spacecraft: intPtr(157)}},
		{TypePath, "vc42", PathParams{VCID: intPtr(42)}},
		{TypeSink, "out", nil},
	} {
		s, err := pipeline.NewSettings(st.typ, st.name, st.params)
		require.NoError(t, err)
		settings = append(settings, s)
	}

	p, err := pipeline.Assemble(DefaultCatalog(), settings, pipeline.Env{
		Logger:   zap.NewNop(),
		Registry: reg,
		Output:   out,
	})
	require.NoError(t, err)

	v, ok := pn.Lookup("ccsds")
	require.True(t, ok)
	for _, raw := range [][]byte{
		cadu(157, 42, 0, IdleFirstHeaderPointer),
		cadu(157, FillVCID, 1, 0),
	} {
		require.NoError(t, v.Decode(raw))
		require.NoError(t, p.Receive(context.Background(), frame.New(raw)))
	}

	// Close flushes the sink and releases the blocks, so keep a snapshot and
	// hand back a registry holding it.
	snap, err := reg.Snapshot(context.Background())
	require.NoError(t, err)
	require.NoError(t, p.Close())

	frozen := status.NewRegistry()
	for _, b := range snap {
		require.NoError(t, frozen.Register(b))
	}
	return frozen
}
