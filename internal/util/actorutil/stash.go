package actorutil

import (
	"github.com/asynkron/protoactor-go/actor"
)

// Stash keeps messages an actor cannot handle in its current state,
// together with their original sender.
type Stash struct {
	stash []stashElem
}

type stashElem struct {
	msg    any
	sender *actor.PID
}

func (stash *Stash) Stash(ctx actor.Context, msg any) {
	stash.stash = append(stash.stash, stashElem{
		msg:    msg,
		sender: ctx.Sender(),
	})
}

func (stash *Stash) Len() int {
	return len(stash.stash)
}

func (stash *Stash) UnstashAll(ctx actor.Context) {
	for _, elem := range stash.stash {
		ctx.RequestWithCustomSender(ctx.Self(), elem.msg, elem.sender)
	}
	stash.stash = nil
}

func (stash *Stash) UnstashOldest(ctx actor.Context) {
	if len(stash.stash) > 0 {
		first := stash.stash[0]
		ctx.RequestWithCustomSender(ctx.Self(), first.msg, first.sender)
		stash.stash = stash.stash[1:]
	}
}

// Drain empties the stash, handing every message to fn with its original
// sender instead of redelivering it.
func (stash *Stash) Drain(fn func(msg any, sender *actor.PID)) {
	pending := stash.stash
	stash.stash = nil
	for _, elem := range pending {
		fn(elem.msg, elem.sender)
	}
}
