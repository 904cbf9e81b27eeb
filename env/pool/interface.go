package pool

import (
	"sync"
	"sync/atomic"

	"github.com/venkatnarayana7/Python-Debugger/envexec"
	"github.com/venkatnarayana7/Python-Debugger/sandbox"
)

var _ sandbox.EnvironmentPool = &Pool{}

// Environment defines envexec.Environment with destroy
type Environment interface {
	envexec.Environment
	Reset() error
	Destroy() error
}

// EnvBuilder defines the abstract builder for isolated environment
type EnvBuilder interface {
	Build() (Environment, error)
}

// Pool keeps idle environments for reuse. Environments that fail to reset
// are destroyed instead of being put back.
type Pool struct {
	builder EnvBuilder

	env []Environment
	mu  sync.Mutex

	created atomic.Int64
	inUse   atomic.Int64
}

// NewPool returns a pool for EnvBuilder
func NewPool(builder EnvBuilder) *Pool {
	return &Pool{
		builder: builder,
	}
}

// Get returns an idle environment or builds a new one
func (p *Pool) Get() (envexec.Environment, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.env) > 0 {
		rt := p.env[len(p.env)-1]
		p.env = p.env[:len(p.env)-1]
		p.inUse.Add(1)
		return rt, nil
	}
	rt, err := p.builder.Build()
	if err != nil {
		return nil, err
	}
	p.created.Add(1)
	p.inUse.Add(1)
	return rt, nil
}

// Put resets the environment and returns it to the pool
func (p *Pool) Put(env envexec.Environment) {
	e, ok := env.(Environment)
	if !ok {
		panic("invalid environment put")
	}
	p.inUse.Add(-1)
	// If reset failed after execution, don't put it into pool
	if err := e.Reset(); err != nil {
		e.Destroy()
		p.created.Add(-1)
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.env = append(p.env, e)
}

// Shutdown destroys all idle environments
func (p *Pool) Shutdown() {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, e := range p.env {
		e.Destroy()
		p.created.Add(-1)
	}
	p.env = nil
}

// Stats returns the number of live and in use environments
func (p *Pool) Stats() (created, inUse int64) {
	return p.created.Load(), p.inUse.Load()
}
