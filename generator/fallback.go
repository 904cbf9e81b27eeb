package generator

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

var _ Generator = &Fallback{}

// Fallback tries generators in order and returns the first packet
type Fallback struct {
	generators []Generator
	logger     *zap.Logger
}

// NewFallback creates the fallback chain
func NewFallback(logger *zap.Logger, generators ...Generator) *Fallback {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fallback{
		generators: generators,
		logger:     logger,
	}
}

// Name returns the names of the chain
func (f *Fallback) Name() string {
	names := make([]string, 0, len(f.generators))
	for _, g := range f.generators {
		names = append(names, g.Name())
	}
	return "fallback(" + strings.Join(names, ",") + ")"
}

// Generate returns the first successful packet, with Source set to the
// generator that produced it
func (f *Fallback) Generate(ctx context.Context, req Request) (*Packet, error) {
	var errs []error
	for _, g := range f.generators {
		p, err := g.Generate(ctx, req)
		if err == nil {
			if p.Source == "" {
				p.Source = g.Name()
			}
			return p, nil
		}
		f.logger.Warn("generator failed", zap.String("generator", g.Name()), zap.Error(err))
		errs = append(errs, err)
		if ctx.Err() != nil {
			break
		}
	}
	if len(errs) == 0 {
		return nil, fmt.Errorf("%w: no generator configured", ErrUnavailable)
	}
	return nil, fmt.Errorf("%w: all generators failed: %w", ErrUnavailable, errors.Join(errs...))
}
