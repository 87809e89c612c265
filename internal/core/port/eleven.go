package port

import (
	"context"

	"github.com/berfenger/eleven2mqtt/internal/core/domain"
	"github.com/berfenger/eleven2mqtt/internal/core/events"
)

// ElevenAPI is the cloud API as seen by the core.
type ElevenAPI interface {
	GetSite(ctx context.Context) (domain.SiteListing, error)
	GetDeviceState(ctx context.Context, deviceId string) (domain.DeviceState, error)
	// PostOperatingMode returns the HTTP status of the answer. A transport
	// failure returns status 0 and the error.
	PostOperatingMode(ctx context.Context, deviceId string, body map[string]any) (int, error)
}

// EntitySink receives readings that changed.
type EntitySink interface {
	WriteState(deviceId string, metric events.Metric, value any)
}

// HostDeviceResolver maps a host-level device reference to a cloud device id.
type HostDeviceResolver interface {
	ResolveHostDevice(ref string) (string, bool)
}

// EventPublisher forwards bridge level updates (API reachability) to the host.
type EventPublisher interface {
	PublishEvent(event domain.SensorUpdateEvent)
}
