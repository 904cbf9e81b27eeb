package linuxrlimit

import (
	"github.com/criyle/go-sandbox/runner"
	"github.com/venkatnarayana7/Python-Debugger/envexec"
)

var _ envexec.Process = &process{}

type process struct {
	done   chan struct{}
	result runner.Result
}

func (p *process) Done() <-chan struct{} {
	return p.done
}

func (p *process) Result() runner.Result {
	<-p.done
	return p.result
}
