package pipeline

import (
	"github.com/rotisserie/eris"

	"github.com/sells-group/hubble-cli/internal/model"
)

// stageOrder is the forward path of a run.
var stageOrder = []model.RunState{
	model.RunStateIdle,
	model.RunStateQuerying,
	model.RunStateSelecting,
	model.RunStateRetrieving,
	model.RunStateExtracting,
	model.RunStateRendering,
	model.RunStateDone,
}

// IsTerminal reports whether s ends a run.
func IsTerminal(s model.RunState) bool {
	return s == model.RunStateDone || s == model.RunStateFailed
}

// CanFail reports whether a run in state s may move to failed.
func CanFail(s model.RunState) bool {
	switch s {
	case model.RunStateQuerying, model.RunStateSelecting, model.RunStateRetrieving, model.RunStateExtracting:
		return true
	default:
		return false
	}
}

// Transition validates a move from one state to the next.
func Transition(from, to model.RunState) error {
	if !isAllowedTransition(from, to) {
		return eris.Errorf("disallowed transition: %s -> %s", from, to)
	}
	return nil
}

func isAllowedTransition(from, to model.RunState) bool {
	if to == model.RunStateFailed {
		return CanFail(from)
	}
	for i := 0; i < len(stageOrder)-1; i++ {
		if stageOrder[i] == from {
			return stageOrder[i+1] == to
		}
	}
	return false
}

// machine tracks the current state of one run.
type machine struct {
	state    model.RunState
	onChange func(model.RunState)
}

func (m *machine) advance(to model.RunState) error {
	if err := Transition(m.state, to); err != nil {
		return err
	}
	m.state = to
	if m.onChange != nil {
		m.onChange(to)
	}
	return nil
}
