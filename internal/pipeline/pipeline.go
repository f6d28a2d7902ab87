package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/dyluth/downlink/pkg/frame"
)

// Stage is one constructed member of a pipeline.
type Stage struct {
	Settings Settings
	Receiver Receiver
}

// Pipeline is an assembled chain of stages. It owns the stages and the status
// blocks they registered.
type Pipeline struct {
	stages []Stage
	env    *Env
	closed bool
}

// Assemble constructs every stage in settings order and links each to the
// next. Assembly is all-or-nothing: on any failure, stages already built are
// closed and their status blocks released before the error is returned.
func Assemble(catalog *Catalog, settings []Settings, env Env) (*Pipeline, error) {
	if len(settings) == 0 {
		return nil, fmt.Errorf("pipeline must have at least one stage")
	}

	p := &Pipeline{env: &env}
	p.env.blocks = nil

	for i, s := range settings {
		if err := s.Validate(); err != nil {
			p.abort()
			return nil, fmt.Errorf("stage %d: %w", i, err)
		}

		factory, ok := catalog.Lookup(s.Type)
		if !ok {
			p.abort()
			return nil, fmt.Errorf("stage %d (%s): unknown stage type '%s'", i, s.Name, s.Type)
		}

		r, err := factory(s, p.env)
		if err != nil {
			p.abort()
			return nil, fmt.Errorf("failed to construct stage %s: %w", s.ID(), err)
		}
		p.stages = append(p.stages, Stage{Settings: s, Receiver: r})
	}

	for i := 0; i < len(p.stages)-1; i++ {
		cur := p.stages[i]
		sender, ok := cur.Receiver.(Sender)
		next := p.stages[i+1]
		if !ok {
			err := fmt.Errorf("stage %s cannot forward frames but is followed by %s",
				cur.Settings.ID(), next.Settings.ID())
			p.abort()
			return nil, err
		}
		if err := sender.SetNext(next.Receiver); err != nil {
			p.abort()
			return nil, fmt.Errorf("failed to link stage %s: %w", cur.Settings.ID(), err)
		}
	}

	return p, nil
}

func (p *Pipeline) abort() {
	_ = p.closeStages()
	p.env.releaseBlocks()
	p.stages = nil
}

// Receive submits f to the head stage.
func (p *Pipeline) Receive(ctx context.Context, f *frame.Frame) error {
	if p.closed {
		return fmt.Errorf("pipeline is closed")
	}
	return p.stages[0].Receiver.Receive(ctx, f)
}

// ReceiveBatch submits frames to the head stage in order.
func (p *Pipeline) ReceiveBatch(ctx context.Context, frames []*frame.Frame) error {
	return ReceiveBatch(ctx, p, frames)
}

// Stages returns the constructed stages in chain order.
func (p *Pipeline) Stages() []Stage {
	out := make([]Stage, len(p.stages))
	copy(out, p.stages)
	return out
}

// Stream returns the stream label this copy was assembled for.
func (p *Pipeline) Stream() string {
	return p.env.Stream
}

// Close closes every stage that implements io.Closer and releases the
// pipeline's status blocks. Safe to call more than once.
func (p *Pipeline) Close() error {
	if p.closed {
		return nil
	}
	p.closed = true
	err := p.closeStages()
	p.env.releaseBlocks()
	return err
}

func (p *Pipeline) closeStages() error {
	var errs []error
	for _, s := range p.stages {
		if c, ok := s.Receiver.(io.Closer); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, fmt.Errorf("failed to close stage %s: %w", s.Settings.ID(), err))
			}
		}
	}
	return errors.Join(errs...)
}

// Builder assembles independent copies of one pipeline layout, one per input
// stream. No stage state is shared between copies.
type Builder struct {
	Catalog  *Catalog
	Settings []Settings
	Env      Env
}

// Build assembles a copy labelled with stream.
func (b *Builder) Build(stream string) (*Pipeline, error) {
	env := b.Env
	env.Stream = stream
	p, err := Assemble(b.Catalog, b.Settings, env)
	if err != nil {
		if stream != "" {
			return nil, fmt.Errorf("stream %s: %w", stream, err)
		}
		return nil, err
	}
	return p, nil
}
