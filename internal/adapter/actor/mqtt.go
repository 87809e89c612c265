package actor

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/berfenger/eleven2mqtt/internal/config"
	"github.com/berfenger/eleven2mqtt/internal/core/domain"
	"github.com/berfenger/eleven2mqtt/internal/mqtt"
	"github.com/berfenger/eleven2mqtt/internal/util/actorutil"

	"github.com/asynkron/protoactor-go/actor"
	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"
)

type MQTTActor struct {
	config   *config.Config
	behavior actor.Behavior
	stash    *actorutil.Stash
	client   *mqtt.MQTTClient
	logger   *zap.Logger
	observe  func(any)
}

type MQTTConnected struct {
}

type MQTTSubscribed struct {
}

type MQTTConnectionLost struct {
	Error error
}

type publishResult struct {
	ReplyTo *actor.PID
	Error   error
}

type discoveryPublished struct {
	ReplyTo  *actor.PID
	Platform string
	Entities int
	Error    error
}

type ParsedCommand struct {
	Command *mqtt.ParsedMQTTCommand
}

type rawMessage struct {
	topic   string
	message string
	retain  bool
}

func NewMQTTActor(config *config.Config, logger *zap.Logger) *MQTTActor {
	act := &MQTTActor{
		config:   config,
		behavior: actor.NewBehavior(),
		stash:    &actorutil.Stash{},
		logger:   actorutil.ActorLogger(domain.ACTOR_ID_MQTT, logger),
	}
	act.behavior.Become(act.StartingReceive)
	return act
}

func (state *MQTTActor) Receive(context actor.Context) {
	state.behavior.Receive(context)
}

func (state *MQTTActor) StartingReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.logger.Debug("mqtt@starting started")

		// create MQTT client
		state.client = mqtt.CreateMQTTClient(state.config, mqtt.OptsFromConfig(state.config), func(_ pahomqtt.Client) {
		}, func(_ pahomqtt.Client, err error) {
			ctx.Send(ctx.Self(), MQTTConnectionLost{Error: err})
		})

		// connect to MQTT server
		state.client.Connect(func(err error) {
			if err != nil {
				ctx.Send(ctx.Self(), MQTTConnectionLost{Error: err})
			} else {
				ctx.Send(ctx.Self(), MQTTConnected{})
			}
		}, 10*time.Second)

	case MQTTConnected:
		state.logger.Debug("mqtt@starting connected")

		state.publishBridgeState(true)

		// subscribe to the operating mode command topic
		state.client.SubscribeToCommandTopic(func(c pahomqtt.Client, m pahomqtt.Message) {
			cmd, err := state.client.ParseMQTTCommand(m)
			if err != nil {
				if !errors.Is(err, mqtt.ErrNotACommand) {
					state.logger.Warn("mqtt: invalid command", zap.String("topic", m.Topic()), zap.Error(err))
				}
				return
			}
			ctx.Send(ctx.Self(), ParsedCommand{Command: cmd})
		}, func(err error) {
			if err != nil {
				ctx.Send(ctx.Self(), MQTTConnectionLost{Error: err})
			} else {
				ctx.Send(ctx.Self(), MQTTSubscribed{})
			}
		}, 1*time.Second)
	case MQTTSubscribed:
		// init completed, transition to default state
		state.logger.Debug("mqtt@starting subscribed")
		state.behavior.Become(state.DefaultReceive)
		state.stash.UnstashAll(ctx)
	case MQTTConnectionLost:
		// if connection lost, stop actor and let supervisor decide
		state.logger.Error("mqtt@starting connection lost", zap.Error(msg.Error))
		panic(msg.Error)
	case *actor.Restarting:
		state.stop()
	case *actor.Stopping:
		state.stop()
	case domain.ActorHealthRequest:
		ctx.Respond(domain.ActorHealthResponse{
			Id:      domain.ACTOR_ID_MQTT,
			Healthy: false,
			State:   "starting",
		})
	default:
		state.logger.Debug("mqtt@starting stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *MQTTActor) DefaultReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Restarting:
		state.stop()
	case *actor.Stopping:
		state.stop()
	case domain.ActorHealthRequest:
		state.logger.Debug("mqtt@default ActorHealthRequest")
		// respond health check request
		ctx.Respond(domain.ActorHealthResponse{
			Id:      domain.ACTOR_ID_MQTT,
			Healthy: true,
			State:   "idle",
		})
	case ParsedCommand:
		// route command to parent
		state.logger.Debug("mqtt@default parsedCommand", zap.Any("command", msg.Command))
		ctx.Send(ctx.Parent(), msg)
	case domain.PublishSensorUpdateRequest:
		state.logger.Debug("mqtt@default PublishSensorUpdateRequest", zap.String("type", fmt.Sprintf("%T", msg.Event)))
		state.publishSensorValue(ctx, msg.Event, msg.Retain, actorutil.ForRequest(msg).ReplyTo(ctx))
	case domain.PublishDiscoveryRequest:
		state.logger.Debug("mqtt@default PublishDiscoveryRequest", zap.String("platform", msg.Platform), zap.Int("entities", len(msg.Sensors)))
		state.publishHomeAssistantDiscovery(ctx, msg, actorutil.ForRequest(msg).ReplyTo(ctx))
	case discoveryPublished:
		if msg.Error != nil {
			state.logger.Error("mqtt@default discovery publish error", zap.String("platform", msg.Platform), zap.Error(msg.Error))
		}
		if msg.ReplyTo != nil {
			ctx.Send(msg.ReplyTo, domain.PlatformAttached{
				ActorResponseMixIn: domain.ErrorResponse(msg.Error),
				Platform:           msg.Platform,
				Entities:           msg.Entities,
			})
		}
	case MQTTConnectionLost:
		// if connection lost, stop actor and let supervisor decide
		state.logger.Error("mqtt@default connection lost", zap.Error(msg.Error))
		panic(msg.Error)
	default:
		state.logger.Debug("mqtt@default unhandled", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

func (state *MQTTActor) event2MQTTMessage(event any) *rawMessage {
	switch msg := event.(type) {
	case domain.FloatSensorUpdateEvent:
		return &rawMessage{
			topic:   state.client.SensorStateTopic(msg.Id),
			message: formatFloat(msg.Value),
		}
	case domain.BinarySensorUpdateEvent:
		return &rawMessage{
			topic:   state.client.BinarySensorStateTopic(msg.Id),
			message: bool2MQTTPayload(msg.Value),
		}
	case domain.TextSensorUpdateEvent:
		return &rawMessage{
			topic:   state.client.SensorStateTopic(msg.Id),
			message: msg.Value,
		}
	case domain.BridgeStateUpdateEvent:
		var stringMessage string
		if msg.Value {
			stringMessage = mqtt.MQTT_PAYLOAD_ONLINE
		} else {
			stringMessage = mqtt.MQTT_PAYLOAD_OFFLINE
		}
		return &rawMessage{
			topic:   state.client.BridgeStateTopic(),
			message: stringMessage,
			retain:  true,
		}
	default:
		return nil
	}
}

func (state *MQTTActor) publishSensorValue(ctx actor.Context, event domain.SensorUpdateEvent, retain bool, replyTo *actor.PID) {
	msg := state.event2MQTTMessage(event)
	if msg != nil {
		state.logger.Sugar().Debugf("mqtt@publish: sensor publish %s => %s", msg.topic, msg.message)
		state.client.Publish(msg.topic, msg.message, 1, msg.retain || retain, func(err error) {
			ctx.Send(ctx.Self(), publishResult{ReplyTo: replyTo, Error: err})
		}, 5*time.Second)
		state.behavior.BecomeStacked(state.EventPublishResultReceive)
	}
}

func (state *MQTTActor) EventPublishResultReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case publishResult:
		// log error and return to default state
		if msg.Error != nil {
			state.logger.Error("mqtt@publishing could not publish a sensor update", zap.Error(msg.Error))
		}
		if msg.ReplyTo != nil {
			ctx.Send(msg.ReplyTo, domain.PublishSensorUpdateResponse{
				ActorResponseMixIn: domain.ErrorResponse(msg.Error),
			})
		}
		state.behavior.UnbecomeStacked()
		state.stash.UnstashOldest(ctx)
	case MQTTConnectionLost:
		state.logger.Error("mqtt@publishing connection lost", zap.Error(msg.Error))
		panic(msg.Error)
	default:
		state.logger.Debug("mqtt@publishing stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

// publishHomeAssistantDiscovery publishes the retained config of every entity
// of a platform and reports back once the broker acknowledged all of them.
func (state *MQTTActor) publishHomeAssistantDiscovery(ctx actor.Context, req domain.PublishDiscoveryRequest, replyTo *actor.PID) {
	self := ctx.Self()
	root := ctx.ActorSystem().Root

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)
	fail := func(err error) {
		mu.Lock()
		defer mu.Unlock()
		if firstErr == nil {
			firstErr = err
		}
	}
	for i := range req.Sensors {
		msg := mqtt.GenericSensorToHADiscoveryMessage(state.client, req.Sensors[i])
		payload, err := json.Marshal(msg)
		if err != nil {
			fail(err)
			continue
		}
		topic := state.client.HADiscoverySensorTopic(req.Sensors[i])
		wg.Add(1)
		state.client.Publish(topic, payload, 0, true, func(err error) {
			defer wg.Done()
			if err != nil {
				fail(fmt.Errorf("publish %s: %w", topic, err))
			}
		}, 5*time.Second)
	}
	go func() {
		wg.Wait()
		root.Send(self, discoveryPublished{
			ReplyTo:  replyTo,
			Platform: req.Platform,
			Entities: len(req.Sensors),
			Error:    firstErr,
		})
	}()
}

func (state *MQTTActor) stop() {
	if state.client == nil {
		return
	}
	state.logger.Debug("mqtt: disconnect")
	state.publishBridgeState(false)
	state.client.Disconnect(500 * time.Millisecond)
	state.client = nil
}

// publishBridgeState marks the bridge online or offline. Fire and forget,
// the broker's last will covers a lost connection.
func (state *MQTTActor) publishBridgeState(online bool) {
	msg := state.event2MQTTMessage(domain.BridgeStateUpdateEvent{Value: online})
	state.client.Publish(msg.topic, msg.message, 0, msg.retain, func(error) {}, 500*time.Millisecond)
}

// formatFloat renders a reading in its shortest exact form.
func formatFloat(value float64) string {
	return strconv.FormatFloat(value, 'f', -1, 64)
}

func bool2MQTTPayload(value bool) string {
	if value {
		return mqtt.MQTT_PAYLOAD_ON
	} else {
		return mqtt.MQTT_PAYLOAD_OFF
	}
}

// Dummy actor. It never connects: discovery requests are acknowledged at once
// and every received message is handed to observe when set.
func NewTestMQTTActor(config *config.Config, logger *zap.Logger, observe func(any)) *MQTTActor {
	act := &MQTTActor{
		config:   config,
		behavior: actor.NewBehavior(),
		stash:    &actorutil.Stash{},
		logger:   actorutil.ActorLogger(domain.ACTOR_ID_MQTT, logger),
		observe:  observe,
	}
	act.behavior.Become(act.DummyReceive)
	return act
}

func (state *MQTTActor) DummyReceive(ctx actor.Context) {
	msg := ctx.Message()
	if state.observe != nil {
		switch msg.(type) {
		case *actor.Started, *actor.Stopping, *actor.Stopped, *actor.Restarting:
		default:
			state.observe(msg)
		}
	}
	switch msg := msg.(type) {
	case *actor.Started:
		state.client = mqtt.CreateMQTTClient(state.config, mqtt.OptsFromConfig(state.config), nil, nil)
	case domain.ActorHealthRequest:
		state.logger.Debug("mqtt@dummy ActorHealthRequest")
		// respond health check request
		ctx.Respond(domain.ActorHealthResponse{
			Id:      domain.ACTOR_ID_MQTT,
			Healthy: true,
			State:   "idle",
		})
	case domain.PublishSensorUpdateRequest:
		if msg.ReplyToRef != nil {
			actorutil.ForRequest(msg).Respond(ctx, domain.PublishSensorUpdateResponse{})
		}
	case domain.PublishDiscoveryRequest:
		actorutil.ForRequest(msg).Respond(ctx, domain.PlatformAttached{
			Platform: msg.Platform,
			Entities: len(msg.Sensors),
		})
	}
}
