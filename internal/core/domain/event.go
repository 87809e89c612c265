package domain

import "fmt"

type SensorUpdateEventMixIn struct {
	Id string
}

type SensorUpdateEvent interface {
	SensorUpdateEvent() string
	SensorId() string
}

func (e SensorUpdateEventMixIn) SensorUpdateEvent() string {
	return fmt.Sprintf("%T", e)
}

func (e SensorUpdateEventMixIn) SensorId() string {
	return e.Id
}

// FloatSensorUpdateEvent carries a numeric reading. It is published unrounded,
// the display precision lives in the discovery config.
type FloatSensorUpdateEvent struct {
	SensorUpdateEventMixIn
	Value float64
}

type BinarySensorUpdateEvent struct {
	SensorUpdateEventMixIn
	Value bool
}

type TextSensorUpdateEvent struct {
	SensorUpdateEventMixIn
	Value string
}

type BridgeStateUpdateEvent struct {
	SensorUpdateEventMixIn
	Value bool
}
