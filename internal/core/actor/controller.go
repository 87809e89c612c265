package actor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/berfenger/eleven2mqtt/internal/config"
	"github.com/berfenger/eleven2mqtt/internal/core/domain"
	"github.com/berfenger/eleven2mqtt/internal/core/events"
	"github.com/berfenger/eleven2mqtt/internal/core/port"
	"github.com/berfenger/eleven2mqtt/internal/core/service"
	"github.com/berfenger/eleven2mqtt/internal/metrics"
	. "github.com/berfenger/eleven2mqtt/internal/util/actorutil"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/scheduler"
	"go.uber.org/zap"
)

const (
	CONTROLLER_STATE_CREATED      = "created"
	CONTROLLER_STATE_INITIALIZING = "initializing"
	CONTROLLER_STATE_POLLING      = "polling"
	CONTROLLER_STATE_TERMINATED   = "terminated"
)

var ErrControllerTerminated = errors.New("controller terminated")

type ControllerConfig struct {
	PollInterval   time.Duration
	DiscoveryRetry time.Duration
	RequestTimeout time.Duration
}

func ControllerConfigFrom(cfg *config.Config) ControllerConfig {
	return ControllerConfig{
		PollInterval:   cfg.Eleven.PollInterval(),
		DiscoveryRetry: cfg.Eleven.DiscoveryRetry(),
		RequestTimeout: cfg.Eleven.RequestTimeout(),
	}
}

// ControllerDeps are the services the controller drives.
type ControllerDeps struct {
	API        port.ElevenAPI
	Registry   *service.DeviceRegistry
	Poller     *service.Poller
	Dispatcher *service.CommandDispatcher
	Events     port.EventPublisher
	Metrics    *metrics.Metrics
}

// ControllerActor owns the lifecycle of the integration: one-shot site
// discovery, the platform readiness gate, the poll loop and command dispatch.
type ControllerActor struct {
	ActorWithStates
	config      ControllerConfig
	deps        ControllerDeps
	haDiscovery *actor.PID
	scheduler   *scheduler.TimerScheduler
	stash       *Stash

	runCtx      context.Context
	cancelRun   context.CancelFunc
	cancelTimer scheduler.CancelFunc

	logger *zap.Logger
}

type discoverTick struct {
}

type siteDiscovered struct {
	Site  domain.SiteListing
	Error error
}

type pollTick struct {
}

type pollDone struct {
	Polled int
	Error  error
}

type commandDone struct {
	ReplyTo *actor.PID
	Outcome domain.DispatchOutcome
}

func NewControllerActor(cfg ControllerConfig, deps ControllerDeps, haDiscovery *actor.PID, logger *zap.Logger) *ControllerActor {
	act := &ControllerActor{
		config:      cfg,
		deps:        deps,
		haDiscovery: haDiscovery,
		stash:       &Stash{},
		logger:      ActorLogger(domain.ACTOR_ID_CONTROLLER, logger),
		ActorWithStates: ActorWithStates{
			Behavior: actor.NewBehavior(),
		},
	}
	act.Become(CtrlCreatedState{
		actor: act,
	})
	return act
}

func (state *ControllerActor) Receive(context actor.Context) {
	state.Behavior.Receive(context)
}

func (state *ControllerActor) respondHealth(ctx actor.Context, name string, healthy bool) {
	ctx.Respond(domain.ActorHealthResponse{
		Id:      domain.ACTOR_ID_CONTROLLER,
		Healthy: healthy,
		State:   name,
	})
}

func (state *ControllerActor) respondDevices(ctx actor.Context, msg domain.GetDevicesRequest) {
	ForRequest(msg).Respond(ctx, domain.GetDevicesResponse{
		Devices: state.deps.Registry.Devices(),
	})
}

func (state *ControllerActor) schedule(delay time.Duration, ctx actor.Context, msg any) {
	state.stopTimer()
	state.cancelTimer = state.scheduler.RequestOnce(delay, ctx.Self(), msg)
}

func (state *ControllerActor) stopTimer() {
	if state.cancelTimer != nil {
		state.cancelTimer()
		state.cancelTimer = nil
	}
}

func (state *ControllerActor) terminate(ctx actor.Context) {
	state.logger.Debug("controller terminating", zap.String("from", state.StateName()),
		zap.String("trigger", fmt.Sprintf("%T", ctx.Message())))
	state.Become(CtrlTerminatedState{
		actor: state,
	}.OnEnter(ctx))
}

// Created state

type CtrlCreatedState struct {
	ActorState
	actor *ControllerActor
}

func (state CtrlCreatedState) Name() string {
	return CONTROLLER_STATE_CREATED
}

func (state CtrlCreatedState) Receive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.actor.logger.Debug("controller@created started")
		state.actor.scheduler = scheduler.NewTimerScheduler(ctx)
		state.actor.runCtx, state.actor.cancelRun = context.WithCancel(context.Background())
		state.actor.Become(CtrlInitializingState{
			actor:    state.actor,
			attached: make(map[string]bool),
		}.OnEnter(ctx))
	case *actor.Restarting, *actor.Stopping:
	default:
		state.actor.logger.Debug("controller@created stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.actor.stash.Stash(ctx, msg)
	}
}

// Initializing state

type CtrlInitializingState struct {
	ActorState
	actor    *ControllerActor
	attached map[string]bool
}

func (state CtrlInitializingState) Name() string {
	return CONTROLLER_STATE_INITIALIZING
}

func (state CtrlInitializingState) OnEnter(ctx actor.Context) CtrlInitializingState {
	state.discover(ctx)
	return state
}

func (state CtrlInitializingState) discover(ctx actor.Context) {
	api := state.actor.deps.API
	runCtx := state.actor.runCtx
	NewBackgroundTask(ctx, func() (*siteDiscovered, error) {
		site, err := api.GetSite(runCtx)
		return &siteDiscovered{Site: site, Error: err}, nil
	}).WithTimeout(state.actor.config.RequestTimeout + time.Second).Recover(func(err error) siteDiscovered {
		return siteDiscovered{Error: err}
	}).PipeToAsync(ctx.Self())
}

func (state CtrlInitializingState) Receive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case siteDiscovered:
		if msg.Error != nil {
			state.actor.logger.Warn("controller@initializing site discovery failed, retrying",
				zap.Error(msg.Error), zap.Duration("retry_in", state.actor.config.DiscoveryRetry))
			state.actor.deps.Events.PublishEvent(events.ApiOnlineUpdateEvent(false))
			state.actor.schedule(state.actor.config.DiscoveryRetry, ctx, discoverTick{})
			return
		}
		created := state.actor.deps.Registry.Discover(msg.Site)
		devices := state.actor.deps.Registry.Devices()
		state.actor.deps.Metrics.SetDevices(len(devices))
		state.actor.logger.Info("controller@initializing site discovered",
			zap.Int("created", len(created)), zap.Int("devices", len(devices)))
		state.actor.deps.Events.PublishEvent(events.ApiOnlineUpdateEvent(true))

		for _, platform := range domain.PLATFORMS {
			ctx.Send(state.actor.haDiscovery, domain.RegisterPlatformRequest{
				ActorRequestMixIn: domain.ActorRequestMixIn{ReplyToRef: domain.RefOf(ctx.Self())},
				Platform:          platform,
				Devices:           devices,
			})
		}
	case discoverTick:
		state.actor.cancelTimer = nil
		state.discover(ctx)
	case domain.PlatformAttached:
		if msg.HasResponseError() {
			state.actor.logger.Warn("controller@initializing platform not attached, retrying",
				zap.String("platform", msg.Platform), zap.Error(msg.GetResponseError()))
			state.actor.schedule(state.actor.config.DiscoveryRetry, ctx, discoverTick{})
			return
		}
		state.attached[msg.Platform] = true
		state.actor.logger.Debug("controller@initializing platform attached",
			zap.String("platform", msg.Platform), zap.Int("entities", msg.Entities),
			zap.Int("attached", len(state.attached)), zap.Int("expected", len(domain.PLATFORMS)))
		if len(state.attached) == len(domain.PLATFORMS) {
			state.actor.logger.Info("controller@initializing all platforms attached, start polling")
			state.actor.Become(CtrlPollingState{
				actor: state.actor,
				tick:  &pollTickState{},
			}.OnEnter(ctx))
			state.actor.stash.UnstashAll(ctx)
		}
	case domain.ActorHealthRequest:
		state.actor.respondHealth(ctx, state.Name(), true)
	case domain.GetDevicesRequest:
		state.actor.respondDevices(ctx, msg)
	case domain.TerminateRequest:
		state.actor.terminate(ctx)
	case *actor.Stopping, *actor.Restarting:
		state.actor.terminate(ctx)
	default:
		state.actor.logger.Debug("controller@initializing stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.actor.stash.Stash(ctx, msg)
	}
}

// Polling state

type pollTickState struct {
	inFlight bool
}

type CtrlPollingState struct {
	ActorState
	actor *ControllerActor
	tick  *pollTickState
}

func (state CtrlPollingState) Name() string {
	return CONTROLLER_STATE_POLLING
}

func (state CtrlPollingState) OnEnter(ctx actor.Context) CtrlPollingState {
	// first tick right away
	ctx.Send(ctx.Self(), pollTick{})
	return state
}

func (state CtrlPollingState) Receive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case pollTick:
		state.actor.cancelTimer = nil
		if state.tick.inFlight {
			state.actor.logger.Debug("controller@polling tick skipped, previous one still running")
			return
		}
		state.tick.inFlight = true
		poller := state.actor.deps.Poller
		runCtx := state.actor.runCtx
		NewBackgroundTaskNoError(ctx, func() *pollDone {
			polled, err := poller.PollDevices(runCtx)
			return &pollDone{Polled: polled, Error: err}
		}).Recover(func(err error) pollDone {
			return pollDone{Error: err}
		}).PipeToAsync(ctx.Self())
	case pollDone:
		state.tick.inFlight = false
		ok := msg.Error == nil
		state.actor.deps.Metrics.PollTick(ok)
		state.actor.deps.Events.PublishEvent(events.ApiOnlineUpdateEvent(ok))
		if ok {
			state.actor.logger.Debug("controller@polling tick done", zap.Int("polled", msg.Polled))
		} else {
			state.actor.logger.Warn("controller@polling tick aborted", zap.Int("polled", msg.Polled), zap.Error(msg.Error))
		}
		state.actor.schedule(state.actor.config.PollInterval, ctx, pollTick{})
	case domain.OperatingModeRequest:
		replyTo := ForRequest(msg).ReplyTo(ctx)
		cmd := msg.Command
		if cmd.Id == "" {
			cmd.Id = NewCommandId()
		}
		state.actor.logger.Info("controller@polling operating mode command",
			zap.String("command_id", cmd.Id), zap.String("mode", string(cmd.Mode)), zap.String("device_ref", cmd.HostDeviceRef))
		dispatcher := state.actor.deps.Dispatcher
		runCtx := state.actor.runCtx
		NewBackgroundTaskNoError(ctx, func() *commandDone {
			return &commandDone{ReplyTo: replyTo, Outcome: dispatcher.Dispatch(runCtx, cmd)}
		}).Recover(func(err error) commandDone {
			state.actor.logger.Error("controller@polling dispatch failed", zap.String("command_id", cmd.Id), zap.Error(err))
			return commandDone{ReplyTo: replyTo, Outcome: domain.DispatchOutcome{Kind: domain.OutcomeRetriable}}
		}).PipeToAsync(ctx.Self())
	case commandDone:
		if msg.ReplyTo != nil {
			ctx.Send(msg.ReplyTo, domain.OperatingModeResponse{Outcome: msg.Outcome})
		}
	case domain.ActorHealthRequest:
		state.actor.respondHealth(ctx, state.Name(), true)
	case domain.GetDevicesRequest:
		state.actor.respondDevices(ctx, msg)
	case domain.TerminateRequest:
		state.actor.terminate(ctx)
	case *actor.Stopping, *actor.Restarting:
		state.actor.terminate(ctx)
	default:
		state.actor.logger.Debug("controller@polling unhandled", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

// Terminated state

type CtrlTerminatedState struct {
	ActorState
	actor *ControllerActor
}

func (state CtrlTerminatedState) Name() string {
	return CONTROLLER_STATE_TERMINATED
}

// OnEnter stops the poll loop: the pending timer is cancelled and in-flight
// HTTP calls or backoff waits are abandoned through the run context.
func (state CtrlTerminatedState) OnEnter(ctx actor.Context) CtrlTerminatedState {
	state.actor.logger.Info("controller@terminated stopping poll loop")
	state.actor.stopTimer()
	if state.actor.cancelRun != nil {
		state.actor.cancelRun()
	}
	state.respondPending(ctx)
	if _, ok := ctx.Message().(domain.TerminateRequest); ok {
		state.respondTerminate(ctx)
	}
	return state
}

// respondPending fails commands stashed while initializing. They are answered
// in place since a stopping actor never processes redelivered messages.
func (state CtrlTerminatedState) respondPending(ctx actor.Context) {
	state.actor.stash.Drain(func(msg any, sender *actor.PID) {
		req, ok := msg.(domain.OperatingModeRequest)
		if !ok {
			state.actor.logger.Debug("controller@terminated dropped stashed message", zap.String("type", fmt.Sprintf("%T", msg)))
			return
		}
		replyTo := sender
		if req.ReplyTo() != nil {
			replyTo = (*actor.PID)(req.ReplyTo())
		}
		if replyTo == nil {
			return
		}
		ctx.Send(replyTo, domain.OperatingModeResponse{
			ActorResponseMixIn: domain.ErrorResponse(ErrControllerTerminated),
		})
	})
}

func (state CtrlTerminatedState) respondTerminate(ctx actor.Context) {
	ForRequest(ctx.Message().(domain.TerminateRequest)).Respond(ctx, domain.TerminateResponse{State: state.Name()})
}

func (state CtrlTerminatedState) Receive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.TerminateRequest:
		state.respondTerminate(ctx)
	case domain.OperatingModeRequest:
		ForRequest(msg).Respond(ctx, domain.OperatingModeResponse{
			ActorResponseMixIn: domain.ErrorResponse(ErrControllerTerminated),
		})
	case domain.ActorHealthRequest:
		state.actor.respondHealth(ctx, state.Name(), false)
	case domain.GetDevicesRequest:
		state.actor.respondDevices(ctx, msg)
	case commandDone:
		if msg.ReplyTo != nil {
			ctx.Send(msg.ReplyTo, domain.OperatingModeResponse{Outcome: msg.Outcome})
		}
	default:
		state.actor.logger.Debug("controller@terminated ignored", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}
