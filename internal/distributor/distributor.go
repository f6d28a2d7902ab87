// Package distributor polls a status source on a fixed interval and fans each
// item out to the listeners subscribed to its id.
//
// Subscriptions are keyed by the three-part item id
// ("{type}.{name}.{item}"). Any number of listeners may watch the same id;
// subscribing the same listener twice has no effect, and an id with no
// listeners left is forgotten. Subscription changes and delivery cycles are
// serialized: a change requested while a cycle is delivering, including one
// made by a listener from inside Deliver, is queued and applied before the
// cycle releases the table. A cancelled listener never sees another delivery
// once CancelDelivery has returned.
package distributor

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/dyluth/downlink/internal/metrics"
	"github.com/dyluth/downlink/pkg/status"
)

const (
	// MinInterval is the shortest accepted polling interval.
	MinInterval = time.Second
	// DefaultInterval is used when no interval is configured.
	DefaultInterval = 5 * time.Second
)

// ErrUnavailable is returned by a Source that cannot produce a snapshot.
var ErrUnavailable = errors.New("status source unavailable")

// Source returns the current ordered set of status blocks. It is called once
// per cycle and once per derived query.
type Source interface {
	Snapshot(ctx context.Context) ([]*status.Block, error)
}

// State is the lifecycle state of a Distributor.
type State int32

const (
	StateIdle State = iota
	StateRunning
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Option configures a Distributor.
type Option func(*Distributor)

// WithInterval sets the polling interval. Values below MinInterval are ignored.
func WithInterval(d time.Duration) Option {
	return func(dist *Distributor) {
		if d >= MinInterval {
			dist.interval = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(d *Distributor) {
		d.logger = logger
	}
}

// WithMetrics records cycle outcomes on c.
func WithMetrics(c *metrics.Collector) Option {
	return func(d *Distributor) {
		d.metrics = c
	}
}

// Distributor owns the subscription table and the background polling loop.
// A stopped Distributor cannot be restarted.
type Distributor struct {
	source  Source
	logger  *zap.Logger
	metrics *metrics.Collector

	// mu guards the subscription table and serializes delivery cycles.
	// Release it with unlock so queued changes are applied.
	mu    sync.Mutex
	table map[string]*Multiplexer

	pendingMu sync.Mutex
	pending   []tableChange

	stateMu  sync.Mutex
	state    State
	interval time.Duration
	stop     chan struct{}
	done     chan struct{}
}

// New creates an idle Distributor reading from source.
func New(source Source, opts ...Option) *Distributor {
	d := &Distributor{
		source:   source,
		logger:   zap.NewNop(),
		table:    make(map[string]*Multiplexer),
		state:    StateIdle,
		interval: DefaultInterval,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.logger = d.logger.With(zap.String("component", "distributor"))
	return d
}

// State returns the current lifecycle state.
func (d *Distributor) State() State {
	d.stateMu.Lock()
	defer d.stateMu.Unlock()
	return d.state
}

// Interval returns the current polling interval.
func (d *Distributor) Interval() time.Duration {
	d.stateMu.Lock()
	defer d.stateMu.Unlock()
	return d.interval
}

// SetInterval changes the polling interval from the next wait onwards.
// Intervals below MinInterval are ignored and the previous one is kept; the
// return value reports whether the change was applied.
func (d *Distributor) SetInterval(interval time.Duration) bool {
	if interval < MinInterval {
		d.logger.Warn("ignoring polling interval below minimum",
			zap.Duration("requested", interval),
			zap.Duration("minimum", MinInterval),
		)
		return false
	}
	d.stateMu.Lock()
	d.interval = interval
	d.stateMu.Unlock()
	return true
}

// Start launches the polling loop. The first cycle runs immediately.
func (d *Distributor) Start(ctx context.Context) error {
	d.stateMu.Lock()
	defer d.stateMu.Unlock()

	if d.state != StateIdle {
		return fmt.Errorf("cannot start distributor in state %s", d.state)
	}
	d.state = StateRunning

	go d.run(ctx)

	d.logger.Info("status distributor started", zap.Duration("interval", d.interval))
	return nil
}

// Stop halts the loop, interrupting any interval wait, and blocks until a
// cycle already in flight has finished. Stop is idempotent.
func (d *Distributor) Stop() {
	d.stateMu.Lock()
	prev := d.state
	if prev != StateStopped {
		d.state = StateStopped
		close(d.stop)
	}
	d.stateMu.Unlock()

	switch prev {
	case StateIdle:
		close(d.done)
	case StateRunning:
		<-d.done
		d.logger.Info("status distributor stopped")
	}
}

// Done is closed once the polling loop has exited.
func (d *Distributor) Done() <-chan struct{} {
	return d.done
}

func (d *Distributor) run(ctx context.Context) {
	defer close(d.done)

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-d.stop:
			return
		case <-ctx.Done():
			d.stateMu.Lock()
			if d.state != StateStopped {
				d.state = StateStopped
				close(d.stop)
			}
			d.stateMu.Unlock()
			return
		case <-timer.C:
		}

		start := time.Now()
		delivered, err := d.FetchSnapshot(ctx)
		d.metrics.RecordCycle(err, time.Since(start), delivered)
		if err != nil {
			// Non-fatal: the next cycle retries.
			d.logger.Warn("status cycle failed", zap.Error(err))
		}

		timer.Reset(d.Interval())
	}
}

// tableChange is a subscription change waiting for the table.
type tableChange struct {
	add bool
	l   Listener
	id  string
}

// RequestDelivery subscribes l to the item addressed by id. The listener's
// dynamic type must be comparable; pointer types always are.
func (d *Distributor) RequestDelivery(l Listener, id string) error {
	if l == nil {
		return fmt.Errorf("listener cannot be nil")
	}
	if !isComparable(l) {
		return fmt.Errorf("listener of type %T is not comparable", l)
	}
	if _, _, _, err := status.SplitItemID(id); err != nil {
		return err
	}

	d.change(tableChange{add: true, l: l, id: id})
	return nil
}

// CancelDelivery unsubscribes l from id. Cancelling a subscription that does
// not exist does nothing.
func (d *Distributor) CancelDelivery(l Listener, id string) {
	if l == nil || !isComparable(l) {
		return
	}
	d.change(tableChange{l: l, id: id})
}

// change applies c at once when the table is free and queues it otherwise.
// Whoever holds the table applies the queue before releasing it, so change
// never waits for a cycle and is safe to call from a listener.
func (d *Distributor) change(c tableChange) {
	d.pendingMu.Lock()
	d.pending = append(d.pending, c)
	d.pendingMu.Unlock()

	if d.mu.TryLock() {
		d.unlock()
	}
}

// unlock applies queued changes and releases mu. A change queued between the
// last apply and the release is picked up by the loop or by its own caller.
func (d *Distributor) unlock() {
	for {
		d.applyPending()
		d.mu.Unlock()
		if !d.hasPending() || !d.mu.TryLock() {
			return
		}
	}
}

func (d *Distributor) hasPending() bool {
	d.pendingMu.Lock()
	defer d.pendingMu.Unlock()
	return len(d.pending) > 0
}

// applyPending drains the queue into the table. Callers hold mu.
func (d *Distributor) applyPending() {
	d.pendingMu.Lock()
	changes := d.pending
	d.pending = nil
	d.pendingMu.Unlock()

	for _, c := range changes {
		m, ok := d.table[c.id]
		if c.add {
			if !ok {
				m = &Multiplexer{}
				d.table[c.id] = m
			}
			m.AddListener(c.l)
			continue
		}
		if ok && m.RemoveListener(c.l) == 0 {
			delete(d.table, c.id)
		}
	}
}

// cancelPending reports whether the latest queued change for (l, id) is a
// cancellation.
func (d *Distributor) cancelPending(l Listener, id string) bool {
	d.pendingMu.Lock()
	defer d.pendingMu.Unlock()

	for i := len(d.pending) - 1; i >= 0; i-- {
		c := d.pending[i]
		if c.id == id && c.l == l {
			return !c.add
		}
	}
	return false
}

func isComparable(l Listener) bool {
	return reflect.TypeOf(l).Comparable()
}

// Subscriptions returns the number of listeners registered for id. It waits
// for a running cycle, so it must not be called from a listener.
func (d *Distributor) Subscriptions(id string) int {
	d.mu.Lock()
	defer d.unlock()
	d.applyPending()

	m, ok := d.table[id]
	if !ok {
		return 0
	}
	return m.Len()
}

// FetchSnapshot runs one cycle: it takes a snapshot from the source and
// delivers every subscribed item, in source order, before returning. It
// returns the number of deliveries made.
func (d *Distributor) FetchSnapshot(ctx context.Context) (int, error) {
	d.mu.Lock()
	defer d.unlock()
	d.applyPending()

	blocks, err := d.source.Snapshot(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch status snapshot: %w", err)
	}

	if len(d.table) == 0 {
		return 0, nil
	}

	delivered := 0
	for _, b := range blocks {
		for _, item := range b.Items() {
			id := status.ItemID(b.Type, b.Name, item.Name())
			m, ok := d.table[id]
			if !ok {
				continue
			}
			for _, l := range m.Listeners() {
				if d.cancelPending(l, id) {
					continue
				}
				l.Deliver(item, id)
				delivered++
			}
		}
	}
	return delivered, nil
}

// BlockNames returns the ids of blocks whose type is one of types, in source
// order. With no types, every block id is returned.
func (d *Distributor) BlockNames(ctx context.Context, types ...string) ([]string, error) {
	blocks, err := d.source.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch status snapshot: %w", err)
	}

	want := make(map[string]bool, len(types))
	for _, t := range types {
		want[t] = true
	}

	names := make([]string, 0, len(blocks))
	for _, b := range blocks {
		if len(want) == 0 || want[b.Type] {
			names = append(names, b.ID())
		}
	}
	return names, nil
}

// ItemNames returns the item names of the block with id blockID, in block order.
func (d *Distributor) ItemNames(ctx context.Context, blockID string) ([]string, error) {
	blocks, err := d.source.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch status snapshot: %w", err)
	}

	return itemNames(blocks, blockID)
}

// ResolveItemNames takes a single snapshot, lets resolve pick one block id
// from it, and returns that id with the block's item names. An error from
// resolve is returned unchanged.
func (d *Distributor) ResolveItemNames(ctx context.Context, resolve func(ids []string) (string, error)) (string, []string, error) {
	blocks, err := d.source.Snapshot(ctx)
	if err != nil {
		return "", nil, fmt.Errorf("failed to fetch status snapshot: %w", err)
	}

	ids := make([]string, len(blocks))
	for i, b := range blocks {
		ids[i] = b.ID()
	}
	blockID, err := resolve(ids)
	if err != nil {
		return "", nil, err
	}

	names, err := itemNames(blocks, blockID)
	if err != nil {
		return "", nil, err
	}
	return blockID, names, nil
}

func itemNames(blocks []*status.Block, blockID string) ([]string, error) {
	for _, b := range blocks {
		if b.ID() != blockID {
			continue
		}
		items := b.Items()
		names := make([]string, len(items))
		for i, item := range items {
			names[i] = item.Name()
		}
		return names, nil
	}
	return nil, fmt.Errorf("status block '%s' not found", blockID)
}
