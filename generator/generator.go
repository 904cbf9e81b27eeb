// Package generator produces candidate repairs for a broken program. The
// candidates are untrusted: nothing here decides whether a repair works.
package generator

import (
	"context"
	"errors"

	"github.com/venkatnarayana7/Python-Debugger/types"
)

// ErrUnavailable is wrapped by every generation failure
var ErrUnavailable = errors.New("generator unavailable")

// DefaultMaxCandidates is the number of candidates asked for when unset
const DefaultMaxCandidates = 3

// Request defines a generation request
type Request struct {
	Code      string
	ErrorLog  string
	ErrorType types.ErrorCategory
	// Hints are optional context such as imported libraries
	Hints         []string
	MaxCandidates int
}

// Packet is the generator output
type Packet struct {
	// Reproduction is a standalone script that imports the candidate and
	// fails the same way as the original program
	Reproduction string
	// Candidates are full file replacements, most confident first
	Candidates []string
	// Source names the generator that produced the packet
	Source string
}

// Generator produces candidate repairs
type Generator interface {
	Name() string
	Generate(context.Context, Request) (*Packet, error)
}
