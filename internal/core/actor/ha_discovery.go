package actor

import (
	"fmt"

	"github.com/berfenger/eleven2mqtt/internal/config"
	"github.com/berfenger/eleven2mqtt/internal/core/domain"
	"github.com/berfenger/eleven2mqtt/internal/core/events"
	"github.com/berfenger/eleven2mqtt/internal/util/actorutil"

	"github.com/asynkron/protoactor-go/actor"
	"go.uber.org/zap"
)

// HADiscoveryActor builds the Home Assistant entities of each platform and
// hands them to the MQTT actor, which acknowledges the requester once published.
// With discovery disabled platforms are acknowledged without publishing.
type HADiscoveryActor struct {
	config    *config.Config
	behavior  actor.Behavior
	mqttActor *actor.PID
	announced map[string]int

	logger *zap.Logger
}

func NewHADiscoveryActor(config *config.Config, mqttActor *actor.PID, logger *zap.Logger) *HADiscoveryActor {
	act := &HADiscoveryActor{
		config:    config,
		mqttActor: mqttActor,
		behavior:  actor.NewBehavior(),
		announced: make(map[string]int),
		logger:    actorutil.ActorLogger(domain.ACTOR_ID_HA_DISCOVERY, logger),
	}
	act.behavior.Become(act.DefaultReceive)
	return act
}

func (state *HADiscoveryActor) Receive(context actor.Context) {
	state.behavior.Receive(context)
}

func (state *HADiscoveryActor) DefaultReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.logger.Debug("hadiscovery@default started", zap.Bool("enabled", state.config.MQTT.HADiscoveryEnable))
	case domain.RegisterPlatformRequest:
		replyTo := actorutil.ForRequest(msg).ReplyTo(ctx)
		sensors := events.PlatformSensors(msg.Platform, state.config.MQTT.BaseTopic, msg.Devices)
		state.announced[msg.Platform] = len(sensors)

		if !state.config.MQTT.HADiscoveryEnable {
			state.logger.Debug("hadiscovery@default discovery disabled, acknowledge", zap.String("platform", msg.Platform))
			actorutil.ForRequest(msg).Respond(ctx, domain.PlatformAttached{
				Platform: msg.Platform,
			})
			return
		}

		state.logger.Debug("hadiscovery@default RegisterPlatformRequest",
			zap.String("platform", msg.Platform), zap.Int("entities", len(sensors)))
		ctx.Send(state.mqttActor, domain.PublishDiscoveryRequest{
			ActorRequestMixIn: domain.ActorRequestMixIn{ReplyToRef: domain.RefOf(replyTo)},
			Platform:          msg.Platform,
			Sensors:           sensors,
		})
	case domain.ActorHealthRequest:
		ctx.Respond(domain.ActorHealthResponse{
			Id:      domain.ACTOR_ID_HA_DISCOVERY,
			Healthy: true,
			State:   fmt.Sprintf("platforms=%d", len(state.announced)),
		})
	default:
		state.logger.Debug("hadiscovery@default unhandled", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}
