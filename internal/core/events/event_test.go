package events

import (
	"testing"

	"github.com/berfenger/eleven2mqtt/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCatalogLookup(t *testing.T) {

	assert := assert.New(t)

	assert.Len(Catalog(), 14, "catalog size")

	m, ok := LookupMetric("battery.stateOfCharge")
	assert.True(ok)
	assert.Equal("state_of_charge", m.EntityType)
	assert.Equal("%", m.Unit)
	assert.Equal(0, m.Precision)
	assert.Equal("battery", m.Category())

	m, ok = LookupMetric("grid.power")
	assert.True(ok)
	assert.Equal("kW", m.Unit, "power default unit")
	assert.Equal(DEVICE_CLASS_POWER, m.DeviceClass)
	assert.Equal(2, m.Precision)

	m, ok = LookupMetric("operatingMode.workMode")
	assert.True(ok)
	assert.Equal(-1, m.Precision, "text sensors have no precision")

	_, ok = LookupMetric("battery.temperature")
	assert.False(ok)
}

func TestCatalogCategoriesAreScanned(t *testing.T) {
	for _, m := range Catalog() {
		assert.Contains(t, CATEGORIES, m.Category(), m.Key)
	}
}

func TestObjectIdIsTopicSafe(t *testing.T) {
	assert.Equal(t, "abc_123_pv_power", ObjectId("ABC-123", "pv_power"))
	assert.Regexp(t, "^[a-z0-9_]+$", ObjectId("dev/+#x", "grid_power"))
}

func TestNodeIdIsTopicSafe(t *testing.T) {
	assert.Equal(t, "eleven_inv1", NodeId(HostDeviceId("inv1")))
	assert.Equal(t, "eleven_site_7_inv_1", NodeId(HostDeviceId("site/7:INV+1")))
}

func TestInverterSensors(t *testing.T) {

	require := require.New(t)

	dev := domain.Device{Id: "dev1", Type: domain.DEVICE_TYPE_HYBRID_INVERTER, Name: "H5", SerialNumber: "SN1"}
	sensors := InverterSensors(dev, "bridge")
	require.Len(sensors, 14)

	first := sensors[0]
	require.Equal("eleven_dev1", first.Device.Id)
	require.Equal("Eleven Energy H5", first.Device.Name)
	require.Equal("SN1", first.Device.SerialNumber)
	require.Equal("bridge", first.Device.ViaDevice)
	require.Equal("dev1_pv_power", first.UniqueId)
	require.NotNil(first.Precision)
	require.Equal(2, *first.Precision)

	// following sensors only reference the device
	require.Equal("eleven_dev1", sensors[1].Device.Id)
	require.Empty(sensors[1].Device.Manufacturer)

	last := sensors[len(sensors)-1]
	require.Equal("dev1_system_work_mode", last.UniqueId)
	require.Nil(last.Precision)
	require.Empty(last.UnitOfMeasurement)
}

func TestPlatformSensors(t *testing.T) {
	devices := []domain.Device{{Id: "a"}, {Id: "b"}}
	assert.Len(t, PlatformSensors(domain.PLATFORM_SENSOR, "eleven", devices), 28)
	assert.Len(t, PlatformSensors(domain.PLATFORM_BINARY_SENSOR, "eleven", devices), 2)
	assert.Empty(t, PlatformSensors("switch", "eleven", devices))
}

func TestReadingToUpdateEvent(t *testing.T) {

	assert := assert.New(t)

	soc, _ := LookupMetric("battery.stateOfCharge")
	ev, ok := ReadingToUpdateEvent("dev1", soc, 81.0)
	assert.True(ok)
	f, ok := ev.(domain.FloatSensorUpdateEvent)
	assert.True(ok)
	assert.Equal("dev1_state_of_charge", f.SensorId())
	assert.Equal(81.0, f.Value)

	mode, _ := LookupMetric("operatingMode.workMode")
	ev, ok = ReadingToUpdateEvent("dev1", mode, "selfConsumption")
	assert.True(ok)
	assert.Equal(domain.TextSensorUpdateEvent{
		SensorUpdateEventMixIn: domain.SensorUpdateEventMixIn{Id: "dev1_system_work_mode"},
		Value:                  "selfConsumption",
	}, ev)

	_, ok = ReadingToUpdateEvent("dev1", mode, []any{1})
	assert.False(ok, "non scalar")
}
