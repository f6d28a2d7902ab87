// Package processor runs configured pipelines over their input streams and
// exposes the control operations clients use: enable, disable, unload and
// clearing status items.
package processor

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dyluth/downlink/internal/config"
	"github.com/dyluth/downlink/internal/metrics"
	"github.com/dyluth/downlink/internal/pipeline"
	"github.com/dyluth/downlink/internal/stages"
	"github.com/dyluth/downlink/internal/store"
	"github.com/dyluth/downlink/pkg/frame"
	"github.com/dyluth/downlink/pkg/status"
)

// BlockType is the status block type of the processor's own counters.
const BlockType = "processor"

// Option configures a Processor.
type Option func(*Processor)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(p *Processor) { p.logger = logger }
}

// WithMetrics sets the metrics collector shared with the pipelines.
func WithMetrics(c *metrics.Collector) Option {
	return func(p *Processor) { p.metrics = c }
}

// WithCatalog replaces the built-in stage catalog.
func WithCatalog(c *pipeline.Catalog) Option {
	return func(p *Processor) { p.catalog = c }
}

// WithStore publishes status to, and takes clear requests from, client.
func WithStore(client *store.Client) Option {
	return func(p *Processor) { p.store = client }
}

// WithInput supplies the reader for a stream instead of opening its
// configured input.
func WithInput(stream string, r io.Reader) Option {
	return func(p *Processor) { p.inputs[stream] = r }
}

// Processor owns one pipeline copy per configured stream and the status
// registry they report into.
type Processor struct {
	cfg      *config.Config
	catalog  *pipeline.Catalog
	registry *status.Registry
	store    *store.Client
	inputs   map[string]io.Reader
	logger   *zap.Logger
	metrics  *metrics.Collector
	session  string

	enabled atomic.Bool
	changed chan struct{}

	// mu guards pipelines and configName. Frame traversal holds it for
	// reading so Unload waits for in-flight frames.
	mu         sync.RWMutex
	pipelines  map[string]*pipeline.Pipeline
	configName string

	dropped    *status.Item
	configItem *status.Item
	stateItem  *status.Item
}

// New assembles a pipeline copy for every stream in cfg. Assembly is
// all-or-nothing across streams.
func New(cfg *config.Config, opts ...Option) (*Processor, error) {
	p := &Processor{
		cfg:       cfg,
		registry:  status.NewRegistry(),
		inputs:    make(map[string]io.Reader),
		logger:    zap.NewNop(),
		session:   uuid.NewString(),
		changed:   make(chan struct{}, 1),
		pipelines: make(map[string]*pipeline.Pipeline),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.catalog == nil {
		p.catalog = stages.DefaultCatalog()
	}
	p.logger = p.logger.With(zap.String("component", "processor"), zap.String("config", cfg.Name))

	p.dropped = status.NewInteger("Dropped Frames")
	p.configItem = status.NewText("Config", status.NotClearable())
	p.stateItem = status.NewText("State", status.NotClearable())
	if err := p.registry.Register(status.NewBlock(BlockType, cfg.Name, p.dropped, p.configItem, p.stateItem)); err != nil {
		return nil, fmt.Errorf("failed to register processor status: %w", err)
	}

	builder := &pipeline.Builder{
		Catalog:  p.catalog,
		Settings: cfg.Pipeline,
		Env: pipeline.Env{
			Logger:   p.logger,
			Metrics:  p.metrics,
			Registry: p.registry,
			Copies:   len(cfg.Streams),
		},
	}
	for _, s := range cfg.Streams {
		pl, err := builder.Build(s.Name)
		if err != nil {
			p.closePipelines()
			return nil, fmt.Errorf("failed to assemble pipeline: %w", err)
		}
		p.pipelines[s.Name] = pl
	}

	p.configName = cfg.Name
	p.configItem.SetText(cfg.Name)
	p.setEnabled(cfg.IsEnabled())

	p.logger.Info("processor assembled",
		zap.String("session", p.session),
		zap.Int("streams", len(cfg.Streams)),
		zap.Int("stages", len(cfg.Pipeline)),
	)
	return p, nil
}

// Session returns the id stamped on everything this processor publishes.
func (p *Processor) Session() string {
	return p.session
}

// Registry returns the live status registry. It satisfies distributor.Source.
func (p *Processor) Registry() *status.Registry {
	return p.registry
}

// ConfigName returns the loaded configuration's name, or "" after Unload.
func (p *Processor) ConfigName() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.configName
}

// Enabled reports whether frames are being processed.
func (p *Processor) Enabled() bool {
	return p.enabled.Load()
}

// Enable resumes processing.
func (p *Processor) Enable() {
	p.setEnabled(true)
	p.logger.Info("processing enabled")
}

// Disable stops processing; incoming frames are dropped and counted.
func (p *Processor) Disable() {
	p.setEnabled(false)
	p.logger.Info("processing disabled")
}

func (p *Processor) setEnabled(enabled bool) {
	p.enabled.Store(enabled)
	if enabled {
		p.stateItem.SetText("enabled")
	} else {
		p.stateItem.SetText("disabled")
	}
	p.notifyChanged()
}

func (p *Processor) notifyChanged() {
	select {
	case p.changed <- struct{}{}:
	default:
	}
}

// Unload tears down every pipeline and releases their status blocks. Frames
// arriving afterwards are dropped. Unload waits for frames in flight.
func (p *Processor) Unload() error {
	p.mu.Lock()
	err := p.closePipelines()
	p.configName = ""
	p.mu.Unlock()

	p.configItem.SetText("")
	p.setEnabled(false)
	p.logger.Info("configuration unloaded")
	return err
}

func (p *Processor) closePipelines() error {
	var firstErr error
	for stream, pl := range p.pipelines {
		if err := pl.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("failed to close pipeline for stream '%s': %w", stream, err)
		}
		delete(p.pipelines, stream)
	}
	return firstErr
}

// ClearAll resets every clearable status item.
func (p *Processor) ClearAll() {
	p.registry.ClearAll()
	p.logger.Info("cleared all status items")
}

// ClearItem resets the items addressed by id that are clearable and returns
// how many items matched.
func (p *Processor) ClearItem(id string) (int, error) {
	n, err := p.registry.ClearItem(id)
	if err != nil {
		return 0, err
	}
	p.logger.Info("cleared status item", zap.String("id", id), zap.Int("matched", n))
	return n, nil
}

// Close unloads the pipelines if still loaded.
func (p *Processor) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closePipelines()
}

// streamGate is the Receiver a stream's source feeds. It drops frames while
// the processor is disabled or unloaded.
type streamGate struct {
	p      *Processor
	stream string
}

func (g *streamGate) Receive(ctx context.Context, f *frame.Frame) error {
	g.p.mu.RLock()
	defer g.p.mu.RUnlock()

	pl, ok := g.p.pipelines[g.stream]
	if !ok {
		g.p.drop("unloaded")
		return nil
	}
	if !g.p.enabled.Load() {
		g.p.drop("disabled")
		return nil
	}
	return pl.Receive(ctx, f)
}

func (p *Processor) drop(reason string) {
	p.dropped.Inc()
	p.metrics.RecordDropped(reason)
}

func (p *Processor) openInput(s config.StreamConfig) (io.Reader, io.Closer, error) {
	if r, ok := p.inputs[s.Name]; ok {
		return r, nil, nil
	}
	if s.Input == "-" {
		return os.Stdin, nil, nil
	}
	f, err := os.Open(s.Input)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open input for stream '%s': %w", s.Name, err)
	}
	return f, f, nil
}
