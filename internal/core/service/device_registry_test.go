package service

import (
	"testing"

	"github.com/berfenger/eleven2mqtt/internal/core/domain"
	"github.com/berfenger/eleven2mqtt/internal/core/port/portmock"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func strPtr(s string) *string {
	return &s
}

func siteWith(devices ...domain.SiteDevice) domain.SiteListing {
	return domain.SiteListing{Devices: devices}
}

func TestDiscoverSkipsUnknownTypes(t *testing.T) {

	require := require.New(t)

	r := NewDeviceRegistry(&portmock.RecordingSink{}, zap.Must(zap.NewDevelopment()))
	created := r.Discover(siteWith(
		domain.SiteDevice{DeviceId: "inv1", Type: "hybridinverter", Name: strPtr("H5"), SerialNumber: strPtr("SN1")},
		domain.SiteDevice{DeviceId: "x1", Type: "unknownType"},
	))

	require.Len(created, 1)
	require.Equal(1, r.Len())
	require.Equal(domain.Device{Id: "inv1", Type: "hybridinverter", Name: "H5", SerialNumber: "SN1"}, created[0])

	_, ok := r.Get("x1")
	require.False(ok)
}

func TestDiscoverIsIdempotent(t *testing.T) {

	assert := assert.New(t)

	r := NewDeviceRegistry(&portmock.RecordingSink{}, zap.Must(zap.NewDevelopment()))
	site := siteWith(
		domain.SiteDevice{DeviceId: "inv1", Type: "hybridinverter"},
		domain.SiteDevice{DeviceId: "inv2", Type: "hybridinverter"},
	)

	assert.Len(r.Discover(site), 2)
	assert.Empty(r.Discover(site))
	assert.Equal(2, r.Len())
}

func TestDiscoverDefaultsAndNoUpdateInPlace(t *testing.T) {

	assert := assert.New(t)

	r := NewDeviceRegistry(&portmock.RecordingSink{}, zap.Must(zap.NewDevelopment()))
	r.Discover(siteWith(domain.SiteDevice{DeviceId: "inv1", Type: "hybridinverter"}))

	dev, ok := r.Get("inv1")
	assert.True(ok)
	assert.Equal("Eleven Energy", dev.Name)
	assert.Equal("", dev.SerialNumber)

	// later listings do not rename known devices
	r.Discover(siteWith(domain.SiteDevice{DeviceId: "inv1", Type: "hybridinverter", Name: strPtr("Renamed")}))
	dev, _ = r.Get("inv1")
	assert.Equal("Eleven Energy", dev.Name)
}

func TestRegistryLookups(t *testing.T) {

	assert := assert.New(t)

	r := NewDeviceRegistry(&portmock.RecordingSink{}, zap.Must(zap.NewDevelopment()))
	_, ok := r.FirstOfType(domain.DEVICE_TYPE_HYBRID_INVERTER)
	assert.False(ok)

	r.Discover(siteWith(
		domain.SiteDevice{DeviceId: "inv1", Type: "hybridinverter"},
		domain.SiteDevice{DeviceId: "inv2", Type: "hybridinverter"},
	))

	first, ok := r.FirstOfType(domain.DEVICE_TYPE_HYBRID_INVERTER)
	assert.True(ok)
	assert.Equal("inv1", first.Id)

	id, ok := r.ResolveHostDevice("eleven_inv2")
	assert.True(ok)
	assert.Equal("inv2", id)
	id, ok = r.ResolveHostDevice("inv2")
	assert.True(ok)
	assert.Equal("inv2", id)
	_, ok = r.ResolveHostDevice("eleven_nope")
	assert.False(ok)

	m, err := r.Mapper("inv1")
	assert.NoError(err)
	assert.Equal("inv1", m.DeviceId())
	_, err = r.Mapper("nope")
	assert.ErrorIs(err, ErrUnknownDevice)
}
