package mqtt

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/berfenger/eleven2mqtt/internal/config"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

const (
	MQTT_PAYLOAD_ONLINE  = "online"
	MQTT_PAYLOAD_OFFLINE = "offline"
	MQTT_PAYLOAD_ON      = "on"
	MQTT_PAYLOAD_OFF     = "off"
)

var ErrNotACommand = errors.New("not a command topic")

func OptsFromConfig(cfg *config.Config) *mqtt.ClientOptions {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s:%d", cfg.MQTT.Host, cfg.MQTT.Port))
	opts.SetClientID(fmt.Sprintf("eleven2mqtt_%d", rand.Intn(1000)))
	if cfg.MQTT.Username != "" && cfg.MQTT.Password != "" {
		opts.SetUsername(cfg.MQTT.Username)
		opts.SetPassword(cfg.MQTT.Password)
	}
	opts.WillEnabled = true
	opts.WillPayload = []byte(MQTT_PAYLOAD_OFFLINE)
	opts.WillRetained = true
	opts.WillTopic = bridgeStateTopic(cfg.MQTT.BaseTopic)
	opts.WillQos = 0

	return opts
}

func CreateMQTTClient(cfg *config.Config, opts *mqtt.ClientOptions, onConnectHandler func(client mqtt.Client),
	onConnectionLostHandler func(mqtt.Client, error)) *MQTTClient {
	if onConnectHandler != nil {
		opts.OnConnect = onConnectHandler
	}
	if onConnectionLostHandler != nil {
		opts.OnConnectionLost = onConnectionLostHandler
	}
	return &MQTTClient{
		client: mqtt.NewClient(opts),
		cfg:    cfg.MQTT,
	}
}

type MQTTClient struct {
	client mqtt.Client
	cfg    config.MQTTConfig
}

// ParsedMQTTCommand is an operating mode change received on the command topic.
// Params holds every payload key other than mode and device_id.
type ParsedMQTTCommand struct {
	DeviceRef string
	Mode      string
	Params    map[string]any
}

func (c *MQTTClient) baseTopic() string {
	return c.cfg.BaseTopic
}

func (c *MQTTClient) BridgeStateTopic() string {
	return bridgeStateTopic(c.baseTopic())
}

func (c *MQTTClient) SensorStateTopic(sensorId string) string {
	return fmt.Sprintf("%s/sensor/%s/state", c.baseTopic(), sensorId)
}

func (c *MQTTClient) BinarySensorStateTopic(sensorId string) string {
	return fmt.Sprintf("%s/binary_sensor/%s/state", c.baseTopic(), sensorId)
}

func (c *MQTTClient) OperatingModeCommandTopic() string {
	return operatingModeCommandTopic(c.baseTopic())
}

func (c *MQTTClient) ParseMQTTCommand(msg mqtt.Message) (*ParsedMQTTCommand, error) {
	return parseOperatingModeCommand(c.baseTopic(), msg.Topic(), msg.Payload())
}

func parseOperatingModeCommand(baseTopic, topic string, payload []byte) (*ParsedMQTTCommand, error) {
	if topic != operatingModeCommandTopic(baseTopic) {
		return nil, ErrNotACommand
	}
	var body map[string]any
	if err := json.Unmarshal(payload, &body); err != nil {
		return nil, fmt.Errorf("invalid operating mode payload: %w", err)
	}
	mode, _ := body["mode"].(string)
	if strings.TrimSpace(mode) == "" {
		return nil, errors.New("invalid operating mode payload: missing mode")
	}
	deviceRef, _ := body["device_id"].(string)
	delete(body, "mode")
	delete(body, "device_id")
	return &ParsedMQTTCommand{
		DeviceRef: deviceRef,
		Mode:      mode,
		Params:    body,
	}, nil
}

func (c *MQTTClient) Publish(topic string, payload any, qos byte, retain bool, continuation func(error), timeout time.Duration) {
	token := c.client.Publish(topic, qos, retain, payload)
	go func() {
		didTO := token.WaitTimeout(timeout)
		if !didTO {
			continuation(errors.New("MQTT publish timed out"))
		} else {
			continuation(token.Error())
		}
	}()
}

func (c *MQTTClient) Subscribe(topic string, qos byte, handler mqtt.MessageHandler, continuation func(error), timeout time.Duration) {
	token := c.client.Subscribe(topic, qos, handler)
	go func() {
		didTO := token.WaitTimeout(timeout)
		if !didTO {
			continuation(errors.New("MQTT subscribe timed out"))
		} else {
			continuation(token.Error())
		}
	}()
}

func (c *MQTTClient) SubscribeToCommandTopic(handler mqtt.MessageHandler, continuation func(error), timeout time.Duration) {
	c.Subscribe(c.OperatingModeCommandTopic(), 1, handler, continuation, timeout)
}

func (c *MQTTClient) Connect(continuation func(error), timeout time.Duration) {
	token := c.client.Connect()
	go func() {
		didTO := token.WaitTimeout(timeout)
		if !didTO {
			continuation(errors.New("MQTT connect timed out"))
		} else {
			continuation(token.Error())
		}
	}()
}

func (c *MQTTClient) Disconnect(timeout time.Duration) {
	c.client.Disconnect(uint(timeout.Milliseconds()))
}

func operatingModeCommandTopic(baseTopic string) string {
	return fmt.Sprintf("%s/operating_mode/set", baseTopic)
}

func bridgeStateTopic(baseTopic string) string {
	return fmt.Sprintf("%s/bridge/state", baseTopic)
}
