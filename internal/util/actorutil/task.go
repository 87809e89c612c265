package actorutil

import (
	"errors"
	"time"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/primetalk/goio/io"
)

// SafeBackgroundTask runs blocking work for an actor and hands the result back
// as a message. Panics and timeouts surface as errors.
type SafeBackgroundTask[T any] struct {
	system    *actor.ActorSystem
	fn        func() (*T, error)
	timeout   *time.Duration
	onError   func(error)
	recover   func(error) T
	onSuccess func(T)
}

func NewBackgroundTask[T any](ctx actor.Context, fn func() (*T, error)) *SafeBackgroundTask[T] {
	return &SafeBackgroundTask[T]{
		system: ctx.ActorSystem(),
		fn:     fn,
	}
}

func NewBackgroundTaskNoError[T any](ctx actor.Context, fn func() *T) *SafeBackgroundTask[T] {
	return NewBackgroundTask(ctx, func() (*T, error) {
		return fn(), nil
	})
}

func (t *SafeBackgroundTask[T]) WithTimeout(timeout time.Duration) *SafeBackgroundTask[T] {
	t.timeout = &timeout
	return t
}

// Recover turns an error into a regular result.
func (t *SafeBackgroundTask[T]) Recover(fn func(error) T) *SafeBackgroundTask[T] {
	t.recover = fn
	return t
}

// PipeToAsync runs the task on its own goroutine, so the actor keeps
// processing messages meanwhile. The result is sent through the root context
// since the actor context must not be used outside of Receive.
func (t *SafeBackgroundTask[T]) PipeToAsync(pid *actor.PID) {
	root := t.system.Root
	t.onSuccess = func(value T) {
		root.Send(pid, value)
	}
	if t.onError == nil && t.recover == nil {
		t.onError = func(error) {}
	}
	go t.Run()
}

func (t *SafeBackgroundTask[T]) Run() {
	bgFn := io.Eval(t.fn)
	bg := io.Map(bgFn, func(a *T) T {
		if a != nil {
			return *a
		}
		panic(errors.New("result is nil"))
	})
	if t.timeout != nil {
		bg = io.WithTimeout[T](*t.timeout)(bg)
	}
	result := io.RunSync(bg)
	value := result.Value
	if result.Error != nil {
		switch {
		case t.recover != nil:
			value = t.recover(result.Error)
		case t.onError != nil:
			t.onError(result.Error)
			return
		}
	}

	if t.onSuccess != nil {
		t.onSuccess(value)
	}
}
