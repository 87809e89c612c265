package service

import (
	"context"
	"fmt"

	"github.com/berfenger/eleven2mqtt/internal/core/port"
	"github.com/berfenger/eleven2mqtt/internal/metrics"

	"go.uber.org/zap"
)

type Poller struct {
	api      port.ElevenAPI
	registry *DeviceRegistry
	metrics  *metrics.Metrics
	logger   *zap.Logger
}

func NewPoller(api port.ElevenAPI, registry *DeviceRegistry, metrics *metrics.Metrics, logger *zap.Logger) *Poller {
	return &Poller{
		api:      api,
		registry: registry,
		metrics:  metrics,
		logger:   logger,
	}
}

// PollDevices runs one tick: devices are fetched one after another and the
// first failure aborts the rest of the tick. It returns the number of devices
// that were polled successfully.
func (p *Poller) PollDevices(ctx context.Context) (int, error) {
	polled := 0
	for _, dev := range p.registry.Devices() {
		if err := ctx.Err(); err != nil {
			return polled, err
		}
		state, err := p.api.GetDeviceState(ctx, dev.Id)
		p.metrics.DevicePoll(err == nil)
		if err != nil {
			p.logger.Warn("poll: device fetch failed, skipping the rest of the tick",
				zap.String("device", dev.Id), zap.Error(err))
			return polled, fmt.Errorf("poll device %s: %w", dev.Id, err)
		}
		mapper, err := p.registry.Mapper(dev.Id)
		if err != nil {
			return polled, err
		}
		written := mapper.Apply(state)
		p.logger.Debug("poll: device updated", zap.String("device", dev.Id), zap.Int("written", written))
		polled++
	}
	return polled, nil
}
