package processor

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/dyluth/downlink/internal/source"
	"github.com/dyluth/downlink/internal/store"
)

// Run feeds every stream through its pipeline, one goroutine per stream, and
// returns when all inputs are exhausted, a stream fails, or ctx is cancelled.
// While running it publishes status snapshots and serves clear and control
// requests when a store is configured.
func (p *Processor) Run(ctx context.Context) error {
	readers := make([]*source.Reader, 0, len(p.cfg.Streams))
	for _, s := range p.cfg.Streams {
		in, closer, err := p.openInput(s)
		if err != nil {
			return err
		}
		if closer != nil {
			defer closer.Close()
		}

		r, err := source.NewReader(in, p.cfg.Source.FrameSize,
			source.WithStream(s.Name),
			source.WithLogger(p.logger),
			source.WithMetrics(p.metrics),
		)
		if err != nil {
			return err
		}
		if err := r.SetNext(&streamGate{p: p, stream: s.Name}); err != nil {
			return err
		}
		readers = append(readers, r)
	}

	bgCtx, stopBackground := context.WithCancel(ctx)
	defer stopBackground()

	var bg errgroup.Group
	if p.store != nil {
		bg.Go(func() error { return p.publishLoop(bgCtx) })
		bg.Go(func() error { return p.clearLoop(bgCtx) })
		bg.Go(func() error { return p.controlLoop(bgCtx) })
	}

	p.logger.Info("processing started", zap.Int("streams", len(readers)))

	g, gctx := errgroup.WithContext(ctx)
	for i, r := range readers {
		r := r
		stream := p.cfg.Streams[i].Name
		g.Go(func() error {
			stats, err := r.Run(gctx)
			p.logger.Info("stream finished",
				zap.String("stream", stream),
				zap.Uint64("frames", stats.Frames),
				zap.Uint64("errors", stats.Errors),
				zap.Int("partial_bytes", stats.PartialBytes),
			)
			return err
		})
	}

	runErr := g.Wait()
	stopBackground()
	_ = bg.Wait()

	if p.store != nil {
		// Leave the final counts behind for clients.
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		p.publish(flushCtx)
		cancel()
	}

	if errors.Is(runErr, context.Canceled) {
		p.logger.Info("processing stopped")
		return nil
	}
	return runErr
}

// publishLoop writes a status snapshot and the control state every interval,
// and the control state again whenever it changes. Store errors are non-fatal.
func (p *Processor) publishLoop(ctx context.Context) error {
	ticker := time.NewTicker(p.cfg.Status.Interval)
	defer ticker.Stop()

	p.publish(ctx)

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			p.publish(ctx)
		case <-p.changed:
			if err := p.publishControl(ctx); err != nil {
				p.logger.Warn("failed to publish control state", zap.Error(err))
			}
		}
	}
}

func (p *Processor) publish(ctx context.Context) {
	blocks, err := p.registry.Snapshot(ctx)
	if err == nil {
		err = p.store.PublishSnapshot(ctx, &store.Snapshot{
			Session:     p.session,
			PublishedAt: time.Now(),
			Blocks:      blocks,
		}, p.cfg.Status.PublishTTL)
	}
	p.metrics.RecordSnapshotPublish(err)
	if err != nil {
		p.logger.Warn("failed to publish status snapshot", zap.Error(err))
	}

	if err := p.publishControl(ctx); err != nil {
		p.logger.Warn("failed to publish control state", zap.Error(err))
	}
}

func (p *Processor) publishControl(ctx context.Context) error {
	return p.store.SetControlState(ctx, &store.ControlState{
		ConfigName: p.ConfigName(),
		Enabled:    p.Enabled(),
		Session:    p.session,
		UpdatedAt:  time.Now(),
	})
}

// clearLoop applies clear requests published by clients.
func (p *Processor) clearLoop(ctx context.Context) error {
	sub, err := p.store.SubscribeClearRequests(ctx)
	if err != nil {
		p.logger.Warn("clear requests unavailable", zap.Error(err))
		return nil
	}
	defer sub.Close()

	for {
		select {
		case <-ctx.Done():
			return nil

		case req, ok := <-sub.Requests():
			if !ok {
				return nil
			}
			p.applyClear(req)

		case err, ok := <-sub.Errors():
			if !ok {
				return nil
			}
			p.logger.Warn("bad clear request", zap.Error(err))
		}
	}
}

func (p *Processor) applyClear(req *store.ClearRequest) {
	if req.All() {
		p.ClearAll()
		return
	}
	if _, err := p.ClearItem(req.ItemID); err != nil {
		p.logger.Warn("failed to clear item", zap.String("id", req.ItemID), zap.Error(err))
	}
}

// controlLoop applies enable, disable and unload requests published by clients.
func (p *Processor) controlLoop(ctx context.Context) error {
	sub, err := p.store.SubscribeControlRequests(ctx)
	if err != nil {
		p.logger.Warn("control requests unavailable", zap.Error(err))
		return nil
	}
	defer sub.Close()

	for {
		select {
		case <-ctx.Done():
			return nil

		case req, ok := <-sub.Requests():
			if !ok {
				return nil
			}
			p.applyControl(req)

		case err, ok := <-sub.Errors():
			if !ok {
				return nil
			}
			p.logger.Warn("bad control request", zap.Error(err))
		}
	}
}

func (p *Processor) applyControl(req *store.ControlRequest) {
	p.logger.Info("control request received",
		zap.String("action", req.Action),
		zap.String("requested_by", req.RequestedBy),
	)
	switch req.Action {
	case store.ActionEnable:
		if p.ConfigName() == "" {
			p.logger.Warn("ignoring enable request: no configuration loaded")
			return
		}
		p.Enable()
	case store.ActionDisable:
		p.Disable()
	case store.ActionUnload:
		if err := p.Unload(); err != nil {
			p.logger.Warn("failed to unload configuration", zap.Error(err))
		}
	}
}
