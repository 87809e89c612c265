package mqtt

import (
	"encoding/json"
	"testing"

	"github.com/berfenger/eleven2mqtt/internal/config"
	"github.com/berfenger/eleven2mqtt/internal/core/domain"
	"github.com/berfenger/eleven2mqtt/internal/core/events"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClient() *MQTTClient {
	cfg := config.Config{
		MQTT: config.MQTTConfig{
			Host:             "localhost",
			Port:             1883,
			BaseTopic:        "loremTopic",
			HADiscoveryTopic: "homeassistant",
		},
	}
	return CreateMQTTClient(&cfg, OptsFromConfig(&cfg), nil, nil)
}

func TestOperatingModeCommandParse(t *testing.T) {

	assert := assert.New(t)

	cmd, err := parseOperatingModeCommand("loremTopic", "loremTopic/operating_mode/set",
		[]byte(`{"mode":"force-charge","device_id":"eleven_inv1","target_percent":80,"target_power":3000}`))

	assert.NoError(err)
	assert.Equal("eleven_inv1", cmd.DeviceRef)
	assert.Equal("force-charge", cmd.Mode)
	assert.Equal(map[string]any{"target_percent": 80.0, "target_power": 3000.0}, cmd.Params)
}

func TestOperatingModeCommandWithoutDevice(t *testing.T) {

	cmd, err := parseOperatingModeCommand("loremTopic", "loremTopic/operating_mode/set", []byte(`{"mode":"idle_battery"}`))

	assert.NoError(t, err)
	assert.Equal(t, "", cmd.DeviceRef)
	assert.Empty(t, cmd.Params)
}

func TestOperatingModeCommandParseFail(t *testing.T) {

	assert := assert.New(t)

	_, err := parseOperatingModeCommand("loremTopic", "loremTopic/sensor/x/state", []byte(`{"mode":"idle_battery"}`))
	assert.ErrorIs(err, ErrNotACommand)

	_, err = parseOperatingModeCommand("loremTopic", "loremTopic/operating_mode/set", []byte(`not json`))
	assert.Error(err)

	_, err = parseOperatingModeCommand("loremTopic", "loremTopic/operating_mode/set", []byte(`{"device_id":"x"}`))
	assert.Error(err)
}

func TestTopics(t *testing.T) {

	assert := assert.New(t)

	c := testClient()
	assert.Equal("loremTopic/bridge/state", c.BridgeStateTopic())
	assert.Equal("loremTopic/sensor/abc_pv_power/state", c.SensorStateTopic("abc_pv_power"))
	assert.Equal("loremTopic/binary_sensor/api_online/state", c.BinarySensorStateTopic("api_online"))
	assert.Equal("loremTopic/operating_mode/set", c.OperatingModeCommandTopic())
}

func TestInverterSensorDiscoveryMessage(t *testing.T) {

	require := require.New(t)

	c := testClient()
	dev := domain.Device{Id: "inv1", Type: domain.DEVICE_TYPE_HYBRID_INVERTER, Name: "H5", SerialNumber: "SN1"}
	sensors := events.InverterSensors(dev, "eleven_bridge_x")

	first := sensors[0]
	require.Equal("homeassistant/sensor/eleven_inv1/inv1_pv_power/config", c.HADiscoverySensorTopic(first))

	payload, err := json.Marshal(GenericSensorToHADiscoveryMessage(c, first))
	require.NoError(err)

	var decoded map[string]any
	require.NoError(json.Unmarshal(payload, &decoded))
	require.Equal("loremTopic/sensor/inv1_pv_power/state", decoded["state_topic"])
	require.Equal("loremTopic/bridge/state", decoded["availability_topic"])
	require.Equal("kW", decoded["unit_of_measurement"])
	require.Equal(2.0, decoded["suggested_display_precision"])
	require.Equal("inv1_pv_power", decoded["unique_id"])

	device := decoded["device"].(map[string]any)
	require.Equal([]any{"eleven_inv1"}, device["identifiers"])
	require.Equal("SN1", device["serial_number"])
	require.Equal("eleven_bridge_x", device["via_device"])
}

func TestDiscoveryTopicWithUnsafeDeviceId(t *testing.T) {

	assert := assert.New(t)

	c := testClient()
	dev := domain.Device{Id: "site/7:INV+1#a", Type: domain.DEVICE_TYPE_HYBRID_INVERTER, Name: "H5"}
	sensors := events.PlatformSensors(domain.PLATFORM_SENSOR, "loremTopic", []domain.Device{dev})

	for _, sensor := range sensors {
		topic := c.HADiscoverySensorTopic(sensor)
		assert.Regexp(`^homeassistant/sensor/[a-z0-9_]+/[a-z0-9_]+/config$`, topic)
	}
	assert.Equal("homeassistant/sensor/eleven_site_7_inv_1_a/site_7_inv_1_a_pv_power/config", c.HADiscoverySensorTopic(sensors[0]))

	// the raw id is kept as the device identifier
	msg := GenericSensorToHADiscoveryMessage(c, sensors[0])
	assert.Equal([]string{"eleven_site/7:INV+1#a"}, msg.Device.Id)
}

func TestBridgeSensorDiscoveryMessage(t *testing.T) {

	assert := assert.New(t)

	c := testClient()
	sensors := events.BridgeSensors(events.BridgeDevice("loremTopic"))

	bridge := GenericSensorToHADiscoveryMessage(c, sensors[0])
	assert.Equal("loremTopic/bridge/state", bridge.StateTopic)
	assert.Equal(MQTT_PAYLOAD_ONLINE, bridge.PayloadOn)
	assert.Equal("", bridge.AvTopic)

	api := GenericSensorToHADiscoveryMessage(c, sensors[1])
	assert.Equal("loremTopic/binary_sensor/api_online/state", api.StateTopic)
	assert.Equal(MQTT_PAYLOAD_ON, api.PayloadOn)
	assert.Equal(MQTT_PAYLOAD_OFF, api.PayloadOff)
	assert.Equal("loremTopic/bridge/state", api.AvTopic)
}
