package distributor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/dyluth/downlink/internal/metrics"
	"github.com/dyluth/downlink/pkg/status"
)

// scriptedSource returns queued results in order, then repeats the last one.
type scriptedSource struct {
	mu      sync.Mutex
	results []sourceResult
	calls   int
}

type sourceResult struct {
	blocks []*status.Block
	err    error
}

func (s *scriptedSource) Snapshot(context.Context) ([]*status.Block, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r := s.results[len(s.results)-1]
	if s.calls < len(s.results) {
		r = s.results[s.calls]
	}
	s.calls++
	return r.blocks, r.err
}

func (s *scriptedSource) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func idleBlock(v int64) *status.Block {
	idle := status.NewInteger("Idle VCDUs")
	idle.Set(v)
	return status.NewBlock("path", "vc42", status.NewInteger("VCDUs"), idle)
}

func TestFetchSnapshotDeliversSubscribedItem(t *testing.T) {
	reg := status.NewRegistry()
	require.NoError(t, reg.Register(idleBlock(17)))

	d := New(reg)
	l := &recorder{}
	require.NoError(t, d.RequestDelivery(l, "path.vc42.Idle VCDUs"))

	n, err := d.FetchSnapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []string{"17"}, l.values)
	assert.Equal(t, []string{"path.vc42.Idle VCDUs"}, l.ids)
}

func TestFanOutAndCancel(t *testing.T) {
	src := &scriptedSource{results: []sourceResult{{blocks: []*status.Block{idleBlock(5)}}}}
	d := New(src)
	ctx := context.Background()
	const id = "path.vc42.Idle VCDUs"

	l1, l2 := &recorder{}, &recorder{}
	require.NoError(t, d.RequestDelivery(l1, id))
	require.NoError(t, d.RequestDelivery(l2, id))
	assert.Equal(t, 2, d.Subscriptions(id))

	_, err := d.FetchSnapshot(ctx)
	require.NoError(t, err)
	assert.Len(t, l1.ids, 1)
	assert.Len(t, l2.ids, 1)

	d.CancelDelivery(l1, id)
	_, err = d.FetchSnapshot(ctx)
	require.NoError(t, err)
	assert.Len(t, l1.ids, 1, "cancelled listener must not be called")
	assert.Len(t, l2.ids, 2)

	d.CancelDelivery(l2, id)
	assert.Zero(t, d.Subscriptions(id))
	d.mu.Lock()
	assert.Empty(t, d.table, "entry is removed once its last listener goes")
	d.mu.Unlock()
}

func TestIdempotentSubscribe(t *testing.T) {
	reg := status.NewRegistry()
	require.NoError(t, reg.Register(idleBlock(1)))
	d := New(reg)

	l := &recorder{}
	require.NoError(t, d.RequestDelivery(l, "path.vc42.VCDUs"))
	require.NoError(t, d.RequestDelivery(l, "path.vc42.VCDUs"))

	_, err := d.FetchSnapshot(context.Background())
	require.NoError(t, err)
	assert.Len(t, l.ids, 1)

	// One cancel is enough to remove it.
	d.CancelDelivery(l, "path.vc42.VCDUs")
	assert.Zero(t, d.Subscriptions("path.vc42.VCDUs"))
}

func TestCancelUnknownIsNoop(t *testing.T) {
	d := New(status.NewRegistry())
	assert.NotPanics(t, func() {
		d.CancelDelivery(&recorder{}, "path.vc42.VCDUs")
		d.CancelDelivery(&recorder{}, "nonsense")
	})
}

func TestRequestDeliveryValidatesID(t *testing.T) {
	d := New(status.NewRegistry())
	assert.Error(t, d.RequestDelivery(&recorder{}, "path.vc42"))
	assert.Error(t, d.RequestDelivery(nil, "path.vc42.VCDUs"))
}

func TestFailedCycleThenRecovery(t *testing.T) {
	src := &scriptedSource{results: []sourceResult{
		{err: ErrUnavailable},
		{blocks: []*status.Block{idleBlock(9)}},
	}}
	d := New(src)
	l := &recorder{}
	require.NoError(t, d.RequestDelivery(l, "path.vc42.Idle VCDUs"))

	_, err := d.FetchSnapshot(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Empty(t, l.ids)

	_, err = d.FetchSnapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"9"}, l.values)
}

func TestLoopSurvivesUnavailableSource(t *testing.T) {
	src := &scriptedSource{results: []sourceResult{
		{err: ErrUnavailable},
		{blocks: []*status.Block{idleBlock(2)}},
	}}
	collector := metrics.NewCollector("test", zap.NewNop())
	d := New(src, WithInterval(MinInterval), WithMetrics(collector))

	delivered := make(chan string, 8)
	l := NewFuncListener(func(item *status.Item, _ string) { delivered <- item.Value() })
	require.NoError(t, d.RequestDelivery(l, "path.vc42.Idle VCDUs"))

	require.NoError(t, d.Start(context.Background()))
	defer d.Stop()

	select {
	case v := <-delivered:
		assert.Equal(t, "2", v)
	case <-time.After(5 * time.Second):
		t.Fatal("no delivery after a failed cycle")
	}
	assert.GreaterOrEqual(t, src.Calls(), 2)
}

func TestBlockNames(t *testing.T) {
	src := &scriptedSource{results: []sourceResult{{blocks: []*status.Block{
		status.NewBlock("path", "vc1"),
		status.NewBlock("packet", "apid5"),
		status.NewBlock("path", "vc42"),
	}}}}
	d := New(src)
	ctx := context.Background()

	names, err := d.BlockNames(ctx, "path")
	require.NoError(t, err)
	assert.Equal(t, []string{"path.vc1", "path.vc42"}, names)

	names, err = d.BlockNames(ctx, "packet", "path")
	require.NoError(t, err)
	assert.Equal(t, []string{"path.vc1", "packet.apid5", "path.vc42"}, names)

	names, err = d.BlockNames(ctx)
	require.NoError(t, err)
	assert.Len(t, names, 3)

	names, err = d.BlockNames(ctx, "sink")
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestItemNames(t *testing.T) {
	reg := status.NewRegistry()
	require.NoError(t, reg.Register(idleBlock(0)))
	d := New(reg)

	names, err := d.ItemNames(context.Background(), "path.vc42")
	require.NoError(t, err)
	assert.Equal(t, []string{"VCDUs", "Idle VCDUs"}, names)

	_, err = d.ItemNames(context.Background(), "path.vc7")
	assert.Error(t, err)

	failing := New(&scriptedSource{results: []sourceResult{{err: ErrUnavailable}}})
	_, err = failing.ItemNames(context.Background(), "path.vc42")
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestResolveItemNamesUsesOneSnapshot(t *testing.T) {
	src := &scriptedSource{results: []sourceResult{
		{blocks: []*status.Block{idleBlock(0), status.NewBlock("sink", "out", status.NewInteger("Frames Written"))}},
		{blocks: nil},
	}}
	d := New(src)

	var seen []string
	id, names, err := d.ResolveItemNames(context.Background(), func(ids []string) (string, error) {
		seen = ids
		return "sink.out", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "sink.out", id)
	assert.Equal(t, []string{"Frames Written"}, names)
	assert.Equal(t, []string{"path.vc42", "sink.out"}, seen)
	assert.Equal(t, 1, src.Calls())

	t.Run("resolver error is returned unchanged", func(t *testing.T) {
		errNoMatch := errors.New("no match")
		_, _, err := New(&scriptedSource{results: []sourceResult{{}}}).ResolveItemNames(context.Background(),
			func([]string) (string, error) { return "", errNoMatch })
		assert.Same(t, errNoMatch, err)
	})

	t.Run("unavailable source", func(t *testing.T) {
		failing := New(&scriptedSource{results: []sourceResult{{err: ErrUnavailable}}})
		_, _, err := failing.ResolveItemNames(context.Background(), func([]string) (string, error) {
			t.Fatal("resolve must not run without a snapshot")
			return "", nil
		})
		assert.ErrorIs(t, err, ErrUnavailable)
	})
}

func TestLifecycle(t *testing.T) {
	d := New(status.NewRegistry())
	assert.Equal(t, StateIdle, d.State())

	require.NoError(t, d.Start(context.Background()))
	assert.Equal(t, StateRunning, d.State())
	assert.Error(t, d.Start(context.Background()), "cannot start twice")

	d.Stop()
	assert.Equal(t, StateStopped, d.State())
	d.Stop()
	assert.Error(t, d.Start(context.Background()), "a stopped distributor is terminal")
}

func TestStopInterruptsWait(t *testing.T) {
	src := &scriptedSource{results: []sourceResult{{blocks: nil}}}
	d := New(src, WithInterval(time.Hour))

	require.NoError(t, d.Start(context.Background()))
	require.Eventually(t, func() bool { return src.Calls() == 1 }, 2*time.Second, 5*time.Millisecond)

	stopped := make(chan struct{})
	go func() {
		d.Stop()
		close(stopped)
	}()

	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("stop waited out the polling interval")
	}
	assert.Equal(t, 1, src.Calls())
}

func TestContextCancelStopsLoop(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	d := New(status.NewRegistry(), WithInterval(time.Hour))
	require.NoError(t, d.Start(ctx))

	cancel()
	select {
	case <-d.Done():
	case <-time.After(time.Second):
		t.Fatal("loop did not exit on context cancellation")
	}
	assert.Equal(t, StateStopped, d.State())
	d.Stop()
}

func TestStopBeforeStart(t *testing.T) {
	d := New(status.NewRegistry())
	d.Stop()
	assert.Equal(t, StateStopped, d.State())
	<-d.Done()
}

func TestSetInterval(t *testing.T) {
	d := New(status.NewRegistry(), WithInterval(10*time.Millisecond))
	assert.Equal(t, DefaultInterval, d.Interval(), "sub-minimum option is ignored")

	assert.False(t, d.SetInterval(500*time.Millisecond))
	assert.Equal(t, DefaultInterval, d.Interval())

	assert.True(t, d.SetInterval(2*time.Second))
	assert.Equal(t, 2*time.Second, d.Interval())
}

func TestSubscribeDuringCyclesIsSerialized(t *testing.T) {
	reg := status.NewRegistry()
	require.NoError(t, reg.Register(idleBlock(4)))
	d := New(reg)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				l := &recorder{}
				_ = d.RequestDelivery(l, "path.vc42.Idle VCDUs")
				d.CancelDelivery(l, "path.vc42.Idle VCDUs")
			}
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_, _ = d.FetchSnapshot(ctx)
			}
		}()
	}
	wg.Wait()

	assert.Zero(t, d.Subscriptions("path.vc42.Idle VCDUs"))
}

// fetchWithin runs one cycle and fails the test if it does not return in time.
func fetchWithin(t *testing.T, d *Distributor, timeout time.Duration) int {
	t.Helper()
	type result struct {
		n   int
		err error
	}
	done := make(chan result, 1)
	go func() {
		n, err := d.FetchSnapshot(context.Background())
		done <- result{n, err}
	}()

	select {
	case r := <-done:
		require.NoError(t, r.err)
		return r.n
	case <-time.After(timeout):
		t.Fatal("FetchSnapshot did not return")
		return 0
	}
}

func TestListenerChangesSubscriptionsDuringDelivery(t *testing.T) {
	const id = "path.vc42.Idle VCDUs"
	const other = "path.vc42.VCDUs"

	t.Run("one-shot listener cancels itself", func(t *testing.T) {
		reg := status.NewRegistry()
		require.NoError(t, reg.Register(idleBlock(9)))
		d := New(reg)

		var got []string
		var l *FuncListener
		l = NewFuncListener(func(item *status.Item, id string) {
			got = append(got, item.Value())
			d.CancelDelivery(l, id)
		})
		require.NoError(t, d.RequestDelivery(l, id))

		assert.Equal(t, 1, fetchWithin(t, d, 2*time.Second))
		assert.Zero(t, d.Subscriptions(id))

		assert.Zero(t, fetchWithin(t, d, 2*time.Second))
		assert.Equal(t, []string{"9"}, got)
	})

	t.Run("cancelled peer gets nothing further in the cycle", func(t *testing.T) {
		reg := status.NewRegistry()
		require.NoError(t, reg.Register(idleBlock(3)))
		d := New(reg)

		second := &recorder{}
		first := NewFuncListener(func(*status.Item, string) {
			d.CancelDelivery(second, id)
		})
		require.NoError(t, d.RequestDelivery(first, id))
		require.NoError(t, d.RequestDelivery(second, id))

		assert.Equal(t, 1, fetchWithin(t, d, 2*time.Second))
		assert.Empty(t, second.values)
		assert.Equal(t, 1, d.Subscriptions(id))
	})

	t.Run("subscription made during delivery starts next cycle", func(t *testing.T) {
		reg := status.NewRegistry()
		require.NoError(t, reg.Register(idleBlock(4)))
		d := New(reg)

		late := &recorder{}
		subscribed := false
		trigger := NewFuncListener(func(*status.Item, string) {
			if !subscribed {
				subscribed = true
				assert.NoError(t, d.RequestDelivery(late, id))
			}
		})
		// VCDUs is delivered before Idle VCDUs within the block.
		require.NoError(t, d.RequestDelivery(trigger, other))

		fetchWithin(t, d, 2*time.Second)
		assert.Empty(t, late.values)
		assert.Equal(t, 1, d.Subscriptions(id))

		fetchWithin(t, d, 2*time.Second)
		assert.Equal(t, []string{"4"}, late.values)
	})
}

// valueListener is a Listener whose dynamic type cannot be compared.
type valueListener []string

func (valueListener) Deliver(*status.Item, string) {}

func TestNonComparableListenerRejected(t *testing.T) {
	d := New(status.NewRegistry())
	l := valueListener{"x"}

	err := d.RequestDelivery(l, "path.vc42.Idle VCDUs")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not comparable")

	assert.NotPanics(t, func() { d.CancelDelivery(l, "path.vc42.Idle VCDUs") })
	assert.Zero(t, d.Subscriptions("path.vc42.Idle VCDUs"))

	var m Multiplexer
	assert.False(t, m.AddListener(l))
	assert.NotPanics(t, func() { m.RemoveListener(l) })
}
