package portmock

import (
	"context"
	"sync"

	"github.com/berfenger/eleven2mqtt/internal/core/domain"
	"github.com/berfenger/eleven2mqtt/internal/core/events"
	"github.com/berfenger/eleven2mqtt/internal/core/port"

	"github.com/stretchr/testify/mock"
)

type ElevenAPI struct {
	mock.Mock
}

func (m *ElevenAPI) GetSite(ctx context.Context) (domain.SiteListing, error) {
	args := m.Called(ctx)
	return args.Get(0).(domain.SiteListing), args.Error(1)
}

func (m *ElevenAPI) GetDeviceState(ctx context.Context, deviceId string) (domain.DeviceState, error) {
	args := m.Called(ctx, deviceId)
	state, _ := args.Get(0).(domain.DeviceState)
	return state, args.Error(1)
}

func (m *ElevenAPI) PostOperatingMode(ctx context.Context, deviceId string, body map[string]any) (int, error) {
	args := m.Called(ctx, deviceId, body)
	return args.Int(0), args.Error(1)
}

type StateWrite struct {
	DeviceId string
	Key      string
	Value    any
}

// RecordingSink keeps every WriteState call.
type RecordingSink struct {
	mu     sync.Mutex
	writes []StateWrite
}

func (s *RecordingSink) WriteState(deviceId string, metric events.Metric, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writes = append(s.writes, StateWrite{DeviceId: deviceId, Key: metric.Key, Value: value})
}

func (s *RecordingSink) Writes() []StateWrite {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]StateWrite(nil), s.writes...)
}

// RecordingPublisher keeps every published event.
type RecordingPublisher struct {
	mu     sync.Mutex
	events []domain.SensorUpdateEvent
}

func (p *RecordingPublisher) PublishEvent(event domain.SensorUpdateEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
}

func (p *RecordingPublisher) Events() []domain.SensorUpdateEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]domain.SensorUpdateEvent(nil), p.events...)
}

// ensure interface compliance
var _ port.ElevenAPI = (*ElevenAPI)(nil)
var _ port.EntitySink = (*RecordingSink)(nil)
var _ port.EventPublisher = (*RecordingPublisher)(nil)
