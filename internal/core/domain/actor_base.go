package domain

import (
	"github.com/asynkron/protoactor-go/actor"
)

type ActorRef actor.PID

type ActorRequest interface {
	ReplyTo() *ActorRef
}

type ActorRequestMixIn struct {
	ReplyToRef *ActorRef
}

func (r ActorRequestMixIn) ReplyTo() *ActorRef {
	return r.ReplyToRef
}

// RefOf converts a PID into a reply-to reference.
func RefOf(pid *actor.PID) *ActorRef {
	return (*ActorRef)(pid)
}

type ActorResponse interface {
	GetResponseError() error
	HasResponseError() bool
}

type ActorResponseMixIn struct {
	ResponseError error
}

func (r ActorResponseMixIn) GetResponseError() error {
	return r.ResponseError
}

func (r ActorResponseMixIn) HasResponseError() bool {
	return r.ResponseError != nil
}

func ErrorResponse(err error) ActorResponseMixIn {
	return ActorResponseMixIn{ResponseError: err}
}
