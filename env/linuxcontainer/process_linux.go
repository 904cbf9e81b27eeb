package linuxcontainer

import (
	"github.com/criyle/go-sandbox/runner"
	"github.com/venkatnarayana7/Python-Debugger/env/runcgroup"
	"github.com/venkatnarayana7/Python-Debugger/envexec"
)

var _ envexec.Process = &process{}

type process struct {
	rt   runner.Result
	done chan struct{}
}

func newProcess(run func() runner.Result, cg *runcgroup.Run) *process {
	p := &process{
		done: make(chan struct{}),
	}
	go func() {
		defer close(p.done)
		defer cg.Destroy()
		p.rt = run()
		cg.Collect(&p.rt)
	}()
	return p
}

func (p *process) Done() <-chan struct{} {
	return p.done
}

func (p *process) Result() runner.Result {
	<-p.done
	return p.rt
}
