package generator

import (
	"context"
	"fmt"
)

var _ Generator = &Static{}

// Static returns a fixed packet, or a fixed error when Err is set
type Static struct {
	Packet Packet
	Err    error
}

// Name returns the generator name
func (s *Static) Name() string {
	return "static"
}

// Generate returns a copy of the packet
func (s *Static) Generate(ctx context.Context, _ Request) (*Packet, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if s.Err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, s.Err)
	}
	p := s.Packet
	p.Candidates = append([]string(nil), s.Packet.Candidates...)
	if p.Source == "" {
		p.Source = s.Name()
	}
	return &p, nil
}
