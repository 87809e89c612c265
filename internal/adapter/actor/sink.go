package actor

import (
	"sync"

	"github.com/berfenger/eleven2mqtt/internal/core/domain"
	"github.com/berfenger/eleven2mqtt/internal/core/events"
	"github.com/berfenger/eleven2mqtt/internal/core/port"
	"github.com/berfenger/eleven2mqtt/internal/metrics"

	"github.com/asynkron/protoactor-go/actor"
	"go.uber.org/zap"
)

// MQTTSink publishes changed readings through the MQTT actor. It is bound to
// the actor once spawned; writes before that are dropped.
type MQTTSink struct {
	root    *actor.RootContext
	metrics *metrics.Metrics
	logger  *zap.Logger

	mu     sync.RWMutex
	target *actor.PID
}

func NewMQTTSink(root *actor.RootContext, metrics *metrics.Metrics, logger *zap.Logger) *MQTTSink {
	return &MQTTSink{
		root:    root,
		metrics: metrics,
		logger:  logger.With(zap.String("component", "sink")),
	}
}

func (s *MQTTSink) Bind(pid *actor.PID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.target = pid
}

func (s *MQTTSink) WriteState(deviceId string, metric events.Metric, value any) {
	event, ok := events.ReadingToUpdateEvent(deviceId, metric, value)
	if !ok {
		s.logger.Debug("sink: unsupported reading", zap.String("device", deviceId), zap.String("metric", metric.Key))
		return
	}
	if s.send(event) {
		s.metrics.StateWrite()
	}
}

func (s *MQTTSink) PublishEvent(event domain.SensorUpdateEvent) {
	s.send(event)
}

func (s *MQTTSink) send(event domain.SensorUpdateEvent) bool {
	s.mu.RLock()
	target := s.target
	s.mu.RUnlock()
	if target == nil {
		s.logger.Debug("sink: not bound, dropping update", zap.String("sensor", event.SensorId()))
		return false
	}
	s.root.Send(target, domain.PublishSensorUpdateRequest{
		Retain: true,
		Event:  event,
	})
	return true
}

// ensure interface compliance
var _ port.EntitySink = (*MQTTSink)(nil)
var _ port.EventPublisher = (*MQTTSink)(nil)
