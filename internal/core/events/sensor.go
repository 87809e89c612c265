package events

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/berfenger/eleven2mqtt/internal/core/domain"

	"github.com/carlmjohnson/versioninfo"
	"github.com/gosimple/slug"
)

const (
	SENSOR_ID_BRIDGE_STATE       = "bridge"
	SENSOR_ID_API_ONLINE         = "api_online"
	STATE_CLASS_MEASUREMENT      = "measurement"
	STATE_CLASS_TOTAL_INCREASING = "total_increasing"
	DEVICE_CLASS_BATTERY         = "battery"
	DEVICE_CLASS_ENERGY          = "energy"
	DEVICE_CLASS_POWER           = "power"
	DEVICE_CLASS_VOLTAGE         = "voltage"
	DEVICE_CLASS_CONNECTIVITY    = "connectivity"
	ENTITY_CLASS_DIAGNOSTIC      = "diagnostic"
	SENSOR_TYPE_SENSOR           = domain.PLATFORM_SENSOR
	SENSOR_TYPE_BINARY           = domain.PLATFORM_BINARY_SENSOR
	HOST_DEVICE_PREFIX           = "eleven_"
)

func BridgeDevice(baseTopic string) domain.HADevice {
	return domain.HADevice{
		Id:           fmt.Sprintf("eleven_bridge_%s", md5HashShort(baseTopic)),
		Manufacturer: "berfenger",
		Model:        "eleven2mqtt",
		Version:      versioninfo.Short(),
		Name:         fmt.Sprintf("Eleven2MQTT %s", md5HashShort(baseTopic)),
	}
}

// HostDeviceId is the identifier Home Assistant knows an inverter by.
func HostDeviceId(deviceId string) string {
	return HOST_DEVICE_PREFIX + deviceId
}

func InverterDevice(dev domain.Device, viaDevice string) domain.HADevice {
	return domain.HADevice{
		Id:           HostDeviceId(dev.Id),
		Manufacturer: domain.MANUFACTURER,
		Model:        dev.Name,
		Name:         domain.MANUFACTURER + " " + dev.Name,
		SerialNumber: dev.SerialNumber,
		ViaDevice:    viaDevice,
	}
}

// NodeId is the discovery topic level of a HA device. The raw id stays the
// device identifier.
func NodeId(hostDeviceId string) string {
	return strings.ReplaceAll(slug.Make(hostDeviceId), "-", "_")
}

// ObjectId turns an opaque cloud id plus entity type into a topic-safe id.
func ObjectId(deviceId, entityType string) string {
	return strings.ReplaceAll(slug.Make(deviceId+"_"+entityType), "-", "_")
}

func InverterSensors(dev domain.Device, viaDevice string) []domain.GenericSensor {
	haDevice := InverterDevice(dev, viaDevice)

	var sensors []domain.GenericSensor
	for _, metric := range catalog {
		sensor := domain.GenericSensor{
			Device:            haDevice,
			Id:                ObjectId(dev.Id, metric.EntityType),
			SensorType:        SENSOR_TYPE_SENSOR,
			Name:              metric.Name,
			UniqueId:          dev.Id + "_" + metric.EntityType,
			UnitOfMeasurement: metric.Unit,
			StateClass:        metric.StateClass,
			DeviceClass:       metric.DeviceClass,
			Icon:              metric.Icon,
		}
		if metric.Precision >= 0 {
			sensor.Precision = optionalInt(metric.Precision)
		}
		// full device info only once, the rest reference it by id
		if len(sensors) > 0 {
			sensor.Device = IdDevice(haDevice)
		}
		sensors = append(sensors, sensor)
	}
	return sensors
}

func BridgeSensors(bridgeDevice domain.HADevice) []domain.GenericSensor {

	var sensors []domain.GenericSensor

	// MQTT connection state
	sensors = append(sensors, domain.GenericSensor{
		Device:         bridgeDevice,
		Id:             SENSOR_ID_BRIDGE_STATE,
		SensorType:     SENSOR_TYPE_BINARY,
		Name:           "Connection state",
		DeviceClass:    DEVICE_CLASS_CONNECTIVITY,
		EntityCategory: ENTITY_CLASS_DIAGNOSTIC,
		UniqueId:       uniqueId(bridgeDevice.Id, SENSOR_ID_BRIDGE_STATE),
	})

	// Cloud API reachability, updated after every poll
	sensors = append(sensors, domain.GenericSensor{
		Device:         IdDevice(bridgeDevice),
		Id:             SENSOR_ID_API_ONLINE,
		SensorType:     SENSOR_TYPE_BINARY,
		Name:           "Cloud API",
		DeviceClass:    DEVICE_CLASS_CONNECTIVITY,
		EntityCategory: ENTITY_CLASS_DIAGNOSTIC,
		UniqueId:       uniqueId(bridgeDevice.Id, SENSOR_ID_API_ONLINE),
	})

	return sensors
}

// PlatformSensors returns the entities a platform has to register for the given devices.
func PlatformSensors(platform string, baseTopic string, devices []domain.Device) []domain.GenericSensor {
	bridge := BridgeDevice(baseTopic)
	switch platform {
	case domain.PLATFORM_BINARY_SENSOR:
		return BridgeSensors(bridge)
	case domain.PLATFORM_SENSOR:
		var sensors []domain.GenericSensor
		for _, dev := range devices {
			sensors = append(sensors, InverterSensors(dev, bridge.Id)...)
		}
		return sensors
	}
	return nil
}

func IdDevice(device domain.HADevice) domain.HADevice {
	return domain.HADevice{
		Id:   device.Id,
		Name: device.Name,
	}
}

func uniqueId(baseId, id string) string {
	return fmt.Sprintf("uid_%s_%s", baseId, id)
}

func md5HashShort(text string) string {
	hash := md5.Sum([]byte(text))
	return hex.EncodeToString(hash[:])[0:8]
}

func optionalInt(value int) *int {
	return &value
}
