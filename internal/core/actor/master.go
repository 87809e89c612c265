package actor

import (
	"fmt"
	"log"
	"time"

	adactor "github.com/berfenger/eleven2mqtt/internal/adapter/actor"
	"github.com/berfenger/eleven2mqtt/internal/config"
	"github.com/berfenger/eleven2mqtt/internal/core/domain"
	. "github.com/berfenger/eleven2mqtt/internal/util/actorutil"

	"github.com/asynkron/protoactor-go/actor"
	"go.uber.org/zap"
)

type MQTTActorProvider func() *adactor.MQTTActor

type ControllerActorProvider func(haDiscovery *actor.PID) *ControllerActor

// SinkBinder is told where the MQTT actor lives once it is spawned.
type SinkBinder interface {
	Bind(pid *actor.PID)
}

type MasterOfPuppetsActor struct {
	config   config.Config
	behavior actor.Behavior
	stash    *Stash

	currentHealthCheck      healthCheckResult
	mqttActor               *actor.PID
	haDiscoveryActor        *actor.PID
	controllerActor         *actor.PID
	mqttActorProvider       MQTTActorProvider
	controllerActorProvider ControllerActorProvider
	sink                    SinkBinder
	logger                  *zap.Logger
}

type healthCheckResult struct {
	mqttActorHealthy       bool
	controllerActorHealthy bool
	controllerState        string
	checksReceived         int
	respondTo              *actor.PID
}

func NewMasterOfPuppetsActor(config config.Config, mqttActorProvider MQTTActorProvider,
	controllerActorProvider ControllerActorProvider, sink SinkBinder, logger *zap.Logger) *MasterOfPuppetsActor {
	act := &MasterOfPuppetsActor{
		config:                  config,
		behavior:                actor.NewBehavior(),
		stash:                   &Stash{},
		logger:                  ActorLogger(domain.ACTOR_ID_MASTER, logger),
		mqttActorProvider:       mqttActorProvider,
		controllerActorProvider: controllerActorProvider,
		sink:                    sink,
	}
	act.behavior.Become(act.StartingReceive)
	return act
}

func (state *MasterOfPuppetsActor) Receive(context actor.Context) {
	state.behavior.Receive(context)
}

func (state *MasterOfPuppetsActor) StartingReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.logger.Debug("master@starting started")

		state.currentHealthCheck = healthCheckResult{}
		state.currentHealthCheck.reset()

		// start MQTT child
		mqttActorPID, err := state.startMQTTActor(ctx)
		if err != nil {
			panic(err)
		}
		state.mqttActor = mqttActorPID
		if state.sink != nil {
			state.sink.Bind(mqttActorPID)
		}

		// start HA Discovery child
		haDiscoveryPID, err := state.startHADiscoveryActor(ctx)
		if err != nil {
			panic(err)
		}
		state.haDiscoveryActor = haDiscoveryPID

		// start Controller child
		controllerPID, err := state.startControllerActor(ctx)
		if err != nil {
			panic(err)
		}
		state.controllerActor = controllerPID

		state.behavior.Become(state.DefaultReceive)
		state.stash.UnstashAll(ctx)
	default:
		state.logger.Debug("master@starting stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *MasterOfPuppetsActor) DefaultReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.ActorHealthRequest:
		state.logger.Debug("master@default ActorHealthRequest")
		state.currentHealthCheck.reset()
		state.currentHealthCheck.respondTo = ctx.Sender()
		// MQTT Actor Request
		PipeToSelfWithRecover(ctx, ctx.RequestFuture(state.mqttActor, domain.ActorHealthRequest{}, 500*time.Millisecond), func(err error) any {
			return domain.ActorHealthResponse{
				Id:      domain.ACTOR_ID_MQTT,
				Healthy: false,
			}
		})
		// Controller Actor Request
		PipeToSelfWithRecover(ctx, ctx.RequestFuture(state.controllerActor, domain.ActorHealthRequest{}, 500*time.Millisecond), func(err error) any {
			return domain.ActorHealthResponse{
				Id:      domain.ACTOR_ID_CONTROLLER,
				Healthy: false,
			}
		})

		ctx.SetReceiveTimeout(1 * time.Second)

		state.behavior.BecomeStacked(state.HealthCheckReceive)
	case adactor.ParsedCommand:
		// redirect parsedCommand to controller
		state.logger.Debug("master@default parsedCommand", zap.Any("command", msg.Command))
		if msg.Command != nil {
			ctx.Send(state.controllerActor, ParsedMQTTCommandToCommand(*msg.Command))
		}
	case domain.OperatingModeRequest, domain.GetDevicesRequest, domain.TerminateRequest:
		ctx.Forward(state.controllerActor)
	default:
		state.logger.Debug("master@default unhandled", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

func (state *MasterOfPuppetsActor) HealthCheckReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.ReceiveTimeout:
		// if some actor does not respond to healthCheck, assume not healthy
		ctx.CancelReceiveTimeout()
		state.currentHealthCheck.respond(ctx)
		state.behavior.UnbecomeStacked()
		state.stash.UnstashAll(ctx)
	case domain.ActorHealthResponse:
		state.logger.Debug("master@healthcheck ActorHealthResponse", zap.String("sender", msg.Id), zap.Bool("healthy", msg.Healthy))
		state.currentHealthCheck.checksReceived++
		switch msg.Id {
		case domain.ACTOR_ID_MQTT:
			state.currentHealthCheck.mqttActorHealthy = msg.Healthy
		case domain.ACTOR_ID_CONTROLLER:
			state.currentHealthCheck.controllerActorHealthy = msg.Healthy
			state.currentHealthCheck.controllerState = msg.State
		}
		if state.currentHealthCheck.allReceived() {
			ctx.CancelReceiveTimeout()
			state.currentHealthCheck.respond(ctx)

			state.behavior.UnbecomeStacked()
			state.stash.UnstashAll(ctx)
		} else {
			ctx.SetReceiveTimeout(1 * time.Second)
		}
	default:
		state.logger.Debug("master@healthcheck stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *MasterOfPuppetsActor) startMQTTActor(ctx actor.Context) (*actor.PID, error) {

	supervisor := actor.NewExponentialBackoffStrategy(10*time.Second, 1*time.Second)

	mqttProps := actor.PropsFromProducer(func() actor.Actor {
		return state.mqttActorProvider()
	}, actor.WithSupervisor(supervisor))
	return ctx.SpawnNamed(mqttProps, domain.ACTOR_ID_MQTT)
}

func (state *MasterOfPuppetsActor) startHADiscoveryActor(ctx actor.Context) (*actor.PID, error) {

	haDiscProps := actor.PropsFromProducer(func() actor.Actor {
		return NewHADiscoveryActor(&state.config, state.mqttActor, state.logger)
	}, actor.WithSupervisor(oneForOne()))
	return ctx.SpawnNamed(haDiscProps, domain.ACTOR_ID_HA_DISCOVERY)
}

func (state *MasterOfPuppetsActor) startControllerActor(ctx actor.Context) (*actor.PID, error) {

	controllerProps := actor.PropsFromProducer(func() actor.Actor {
		return state.controllerActorProvider(state.haDiscoveryActor)
	}, actor.WithSupervisor(oneForOne()))
	return ctx.SpawnNamed(controllerProps, domain.ACTOR_ID_CONTROLLER)
}

func oneForOne() actor.SupervisorStrategy {
	decider := func(reason interface{}) actor.Directive {
		log.Printf("handling failure for child. reason: %v", reason)
		return actor.RestartDirective
	}
	return actor.NewOneForOneStrategy(10, 60*time.Second, decider)
}

func (state *healthCheckResult) reset() {
	state.mqttActorHealthy = false
	state.controllerActorHealthy = false
	state.controllerState = ""
	state.checksReceived = 0
}

func (state *healthCheckResult) allReceived() bool {
	return state.checksReceived == 2
}

func (state *healthCheckResult) allHealthy() bool {
	return state.mqttActorHealthy && state.controllerActorHealthy
}

func (state *healthCheckResult) respond(ctx actor.Context) {
	resp := domain.ActorHealthResponse{
		Id:      domain.ACTOR_ID_MASTER,
		Healthy: state.allHealthy(),
		State:   state.controllerState,
	}
	if state.respondTo != nil {
		ctx.Send(state.respondTo, resp)
	}
}
