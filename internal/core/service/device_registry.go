package service

import (
	"errors"
	"sync"

	"github.com/berfenger/eleven2mqtt/internal/core/domain"
	"github.com/berfenger/eleven2mqtt/internal/core/events"
	"github.com/berfenger/eleven2mqtt/internal/core/port"

	"github.com/samber/lo"
	"go.uber.org/zap"
)

var ErrUnknownDevice = errors.New("unknown device")

// DeviceRegistry tracks the hybrid inverters of the site. Devices are only
// added, never updated or removed: a device that disappears from the site
// listing keeps being polled until restart.
type DeviceRegistry struct {
	mu      sync.RWMutex
	devices []domain.Device
	mappers map[string]*TelemetryMapper

	sink   port.EntitySink
	logger *zap.Logger
}

func NewDeviceRegistry(sink port.EntitySink, logger *zap.Logger) *DeviceRegistry {
	return &DeviceRegistry{
		mappers: make(map[string]*TelemetryMapper),
		sink:    sink,
		logger:  logger,
	}
}

// Discover registers every unknown hybrid inverter of the listing and returns the new ones.
func (r *DeviceRegistry) Discover(site domain.SiteListing) []domain.Device {
	r.mu.Lock()
	defer r.mu.Unlock()

	var created []domain.Device
	for _, record := range site.Devices {
		if record.Type != domain.DEVICE_TYPE_HYBRID_INVERTER {
			r.logger.Debug("registry: skip device", zap.String("device", record.DeviceId), zap.String("type", record.Type))
			continue
		}
		if _, known := r.mappers[record.DeviceId]; known {
			continue
		}
		dev := domain.DeviceFromSite(record)
		r.devices = append(r.devices, dev)
		r.mappers[dev.Id] = NewTelemetryMapper(dev.Id, r.sink)
		created = append(created, dev)
		r.logger.Info("registry: created inverter", zap.String("device", dev.Id), zap.String("name", dev.Name))
	}
	return created
}

func (r *DeviceRegistry) Devices() []domain.Device {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]domain.Device(nil), r.devices...)
}

func (r *DeviceRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.devices)
}

func (r *DeviceRegistry) Get(id string) (domain.Device, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return lo.Find(r.devices, func(d domain.Device) bool {
		return d.Id == id
	})
}

func (r *DeviceRegistry) FirstOfType(deviceType string) (domain.Device, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return lo.Find(r.devices, func(d domain.Device) bool {
		return d.Type == deviceType
	})
}

func (r *DeviceRegistry) Mapper(id string) (*TelemetryMapper, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.mappers[id]
	if !ok {
		return nil, ErrUnknownDevice
	}
	return m, nil
}

// ResolveHostDevice accepts the Home Assistant device identifier of an
// inverter (eleven_<id>) or the plain cloud id.
func (r *DeviceRegistry) ResolveHostDevice(ref string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	dev, ok := lo.Find(r.devices, func(d domain.Device) bool {
		return events.HostDeviceId(d.Id) == ref || d.Id == ref
	})
	return dev.Id, ok
}

// ensure interface compliance
var _ port.HostDeviceResolver = (*DeviceRegistry)(nil)
