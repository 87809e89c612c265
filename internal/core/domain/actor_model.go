package domain

const (
	ACTOR_ID_MASTER       = "master"
	ACTOR_ID_MQTT         = "mqtt"
	ACTOR_ID_CONTROLLER   = "controller"
	ACTOR_ID_HA_DISCOVERY = "hadiscovery"
)

const (
	PLATFORM_SENSOR        = "sensor"
	PLATFORM_BINARY_SENSOR = "binary_sensor"
)

// Platforms that must attach before polling starts.
var PLATFORMS = []string{PLATFORM_BINARY_SENSOR, PLATFORM_SENSOR}

type PublishSensorUpdateRequest struct {
	ActorRequestMixIn
	Retain bool
	Event  SensorUpdateEvent
}

type PublishSensorUpdateResponse struct {
	ActorResponseMixIn
}

// RegisterPlatformRequest asks the discovery actor to announce every entity of one platform.
type RegisterPlatformRequest struct {
	ActorRequestMixIn
	Platform string
	Devices  []Device
}

type PublishDiscoveryRequest struct {
	ActorRequestMixIn
	Platform string
	Sensors  []GenericSensor
}

// PlatformAttached is the answer to RegisterPlatformRequest once the
// discovery configs of that platform were handed to the broker.
type PlatformAttached struct {
	ActorResponseMixIn
	Platform string
	Entities int
}

type OperatingModeRequest struct {
	ActorRequestMixIn
	Command OperatingModeCommand
}

type OperatingModeResponse struct {
	ActorResponseMixIn
	Outcome DispatchOutcome
}

type GetDevicesRequest struct {
	ActorRequestMixIn
}

type GetDevicesResponse struct {
	ActorResponseMixIn
	Devices []Device
}

type TerminateRequest struct {
	ActorRequestMixIn
}

type TerminateResponse struct {
	ActorResponseMixIn
	State string
}

type ActorHealthRequest struct {
	ActorRequestMixIn
}

type ActorHealthResponse struct {
	ActorResponseMixIn
	Id      string
	Healthy bool
	State   string
}
