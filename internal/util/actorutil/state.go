package actorutil

import (
	"github.com/asynkron/protoactor-go/actor"
)

// ActorWithStates drives a behavior from named states and remembers the
// one that is active.
type ActorWithStates struct {
	Behavior actor.Behavior
	current  ActorState
}

type ActorState interface {
	Name() string
	Receive(actor.Context)
}

func (s *ActorWithStates) Become(state ActorState) {
	s.current = state
	s.Behavior.Become(state.Receive)
}

// StateName is the name of the active state, empty before the first Become.
func (s *ActorWithStates) StateName() string {
	if s.current == nil {
		return ""
	}
	return s.current.Name()
}
