package service

import (
	"encoding/json"
	"slices"
	"sync"

	"github.com/berfenger/eleven2mqtt/internal/core/domain"
	"github.com/berfenger/eleven2mqtt/internal/core/events"
	"github.com/berfenger/eleven2mqtt/internal/core/port"

	"github.com/samber/lo"
)

// TelemetryMapper holds the latest reading of every catalog metric of one device
// and notifies the sink only when a reading changes.
type TelemetryMapper struct {
	deviceId string
	sink     port.EntitySink

	mu     sync.Mutex
	values map[string]any
}

func NewTelemetryMapper(deviceId string, sink port.EntitySink) *TelemetryMapper {
	return &TelemetryMapper{
		deviceId: deviceId,
		sink:     sink,
		values:   make(map[string]any),
	}
}

func (m *TelemetryMapper) DeviceId() string {
	return m.deviceId
}

// Apply feeds a device payload and returns how many readings were written.
func (m *TelemetryMapper) Apply(state domain.DeviceState) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	written := 0
	for _, category := range events.CATEGORIES {
		fields, ok := state[category]
		if !ok {
			continue
		}
		names := lo.Keys(fields)
		slices.Sort(names)
		for _, name := range names {
			metric, ok := events.LookupMetric(category + "." + name)
			if !ok {
				continue
			}
			value, ok := scalar(fields[name])
			if !ok {
				continue
			}
			if held, seen := m.values[metric.Key]; seen && held == value {
				continue
			}
			m.values[metric.Key] = value
			if m.sink != nil {
				m.sink.WriteState(m.deviceId, metric, value)
			}
			written++
		}
	}
	return written
}

// Value returns the held reading of a metric key.
func (m *TelemetryMapper) Value(key string) (any, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[key]
	return v, ok
}

func scalar(value any) (any, bool) {
	switch v := value.(type) {
	case float64, string, bool:
		return v, true
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return nil, false
		}
		return f, true
	}
	return nil, false
}
