package orchestrator

import "fmt"

// State is a stage of one verification
type State int

// Defines verification states, in the only order they may be entered
const (
	StateIdle State = iota
	StateClassifying
	StateGenerating
	StateDispatching
	StateSelecting
	StateDone
)

var stateToString = []string{
	"idle",
	"classify",
	"generate",
	"dispatch",
	"select",
	"done",
}

func (s State) String() string {
	si := int(s)
	if si < 0 || si >= len(stateToString) {
		return "invalid"
	}
	return stateToString[si]
}

// machine moves forward only. Stages may be skipped but never re-entered.
type machine struct {
	state State
}

func (m *machine) enter(s State) {
	if s <= m.state || s > StateDone {
		panic(fmt.Sprintf("orchestrator: invalid transition %s -> %s", m.state, s))
	}
	m.state = s
}
