package mqtt

import (
	"fmt"

	"github.com/berfenger/eleven2mqtt/internal/core/domain"
	"github.com/berfenger/eleven2mqtt/internal/core/events"
)

type HADiscoveryConfig struct {
	Device            HADiscoveryDevice `json:"device"`
	StateTopic        string            `json:"state_topic"`
	StateClass        string            `json:"state_class,omitempty"`
	DeviceClass       string            `json:"device_class,omitempty"`
	UnitOfMeasurement string            `json:"unit_of_measurement,omitempty"`
	AvTopic           string            `json:"availability_topic,omitempty"`
	EntityCategory    string            `json:"entity_category,omitempty"`
	Name              string            `json:"name"`
	UniqueId          string            `json:"unique_id"`
	ObjectId          string            `json:"object_id,omitempty"`
	Platform          string            `json:"platform"`
	PayloadOn         string            `json:"payload_on,omitempty"`
	PayloadOff        string            `json:"payload_off,omitempty"`
	Icon              string            `json:"icon,omitempty"`
	Precision         *int              `json:"suggested_display_precision,omitempty"`
}

type HADiscoveryDevice struct {
	Id           []string `json:"identifiers"`
	Manufacturer string   `json:"manufacturer,omitempty"`
	Version      string   `json:"sw_version,omitempty"`
	Model        string   `json:"model,omitempty"`
	Name         string   `json:"name,omitempty"`
	SerialNumber string   `json:"serial_number,omitempty"`
	ViaDevice    string   `json:"via_device,omitempty"`
}

// HADiscoverySensorTopic is <discovery prefix>/<component>/<node id>/<object id>/config.
func (c *MQTTClient) HADiscoverySensorTopic(sensor domain.GenericSensor) string {
	return fmt.Sprintf("%s/%s/%s/%s/config", c.cfg.HADiscoveryTopic, sensor.SensorType, events.NodeId(sensor.Device.Id), sensor.Id)
}

func GenericSensorToHADiscoveryMessage(client *MQTTClient, sensor domain.GenericSensor) HADiscoveryConfig {
	dev := device(sensor.Device)
	var topic string
	switch {
	case sensor.Id == events.SENSOR_ID_BRIDGE_STATE:
		topic = client.BridgeStateTopic()
	case sensor.SensorType == events.SENSOR_TYPE_SENSOR:
		topic = client.SensorStateTopic(sensor.Id)
	case sensor.SensorType == events.SENSOR_TYPE_BINARY:
		topic = client.BinarySensorStateTopic(sensor.Id)
	}
	disConfig := HADiscoveryConfig{
		Device:            dev,
		StateTopic:        topic,
		StateClass:        sensor.StateClass,
		DeviceClass:       sensor.DeviceClass,
		UnitOfMeasurement: sensor.UnitOfMeasurement,
		EntityCategory:    sensor.EntityCategory,
		Name:              sensor.Name,
		UniqueId:          sensor.UniqueId,
		ObjectId:          sensor.Id,
		Icon:              sensor.Icon,
		Precision:         sensor.Precision,
		Platform:          "mqtt",
	}
	if sensor.Id == events.SENSOR_ID_BRIDGE_STATE {
		disConfig.PayloadOn = MQTT_PAYLOAD_ONLINE
		disConfig.PayloadOff = MQTT_PAYLOAD_OFFLINE
	} else {
		// the bridge state sensor must stay available to report offline
		disConfig.AvTopic = client.BridgeStateTopic()
		if sensor.SensorType == events.SENSOR_TYPE_BINARY {
			disConfig.PayloadOn = MQTT_PAYLOAD_ON
			disConfig.PayloadOff = MQTT_PAYLOAD_OFF
		}
	}
	return disConfig
}

func device(d domain.HADevice) HADiscoveryDevice {
	return HADiscoveryDevice{
		Id:           []string{d.Id},
		Manufacturer: d.Manufacturer,
		Version:      d.Version,
		Model:        d.Model,
		Name:         d.Name,
		SerialNumber: d.SerialNumber,
		ViaDevice:    d.ViaDevice,
	}
}
