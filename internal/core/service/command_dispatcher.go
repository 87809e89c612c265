package service

import (
	"context"
	"net/http"
	"time"

	"github.com/berfenger/eleven2mqtt/internal/core/domain"
	"github.com/berfenger/eleven2mqtt/internal/core/port"
	"github.com/berfenger/eleven2mqtt/internal/metrics"

	"go.uber.org/zap"
)

const (
	// retry delays double from 1 up to this many retry units
	MAX_RETRY_LOOPS    = 32
	DEFAULT_RETRY_UNIT = time.Second
)

// Sleeper waits for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

func ContextSleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

type paramMapping struct {
	from string
	to   string
}

type workModeSpec struct {
	workMode string
	params   []paramMapping
}

var workModes = map[domain.WorkMode]workModeSpec{
	domain.WORK_MODE_SELF_CONSUMPTION: {
		workMode: "selfConsumption",
		params:   []paramMapping{{"percent_to_battery", "targetExcessPc"}},
	},
	domain.WORK_MODE_FORCE_CHARGE: {
		workMode: "forceCharge",
		params:   []paramMapping{{"target_percent", "targetSoc"}, {"target_power", "rate"}},
	},
	domain.WORK_MODE_GRID_EXPORT: {
		workMode: "gridExport",
		params: []paramMapping{
			{"target_percent", "targetSoc"},
			{"target_power", "rate"},
			{"include_excess_solar", "addAverageExcess"},
			{"overdrive", "overdrive"},
		},
	},
	domain.WORK_MODE_PV_EXPORT: {
		workMode: "pvExportPriority",
	},
	domain.WORK_MODE_IDLE_BATTERY: {
		workMode: "idleBattery",
		params:   []paramMapping{{"allow_charging", "allowCharge"}, {"allow_discharging", "allowDischarge"}},
	},
}

// OperatingModeBody builds the POST body of a work mode. Parameters not
// accepted by the mode are dropped.
func OperatingModeBody(mode domain.WorkMode, params map[string]any) (map[string]any, bool) {
	spec, ok := workModes[mode]
	if !ok {
		return nil, false
	}
	body := map[string]any{}
	for _, p := range spec.params {
		if v, ok := params[p.from]; ok {
			body[p.to] = v
		}
	}
	body["workMode"] = spec.workMode
	return body, true
}

type CommandDispatcher struct {
	api       port.ElevenAPI
	registry  *DeviceRegistry
	resolver  port.HostDeviceResolver
	retryUnit time.Duration
	sleep     Sleeper
	metrics   *metrics.Metrics
	logger    *zap.Logger
}

type DispatcherOption func(*CommandDispatcher)

func WithSleeper(sleep Sleeper) DispatcherOption {
	return func(d *CommandDispatcher) {
		d.sleep = sleep
	}
}

func WithRetryUnit(unit time.Duration) DispatcherOption {
	return func(d *CommandDispatcher) {
		d.retryUnit = unit
	}
}

func WithResolver(resolver port.HostDeviceResolver) DispatcherOption {
	return func(d *CommandDispatcher) {
		d.resolver = resolver
	}
}

func WithMetrics(m *metrics.Metrics) DispatcherOption {
	return func(d *CommandDispatcher) {
		d.metrics = m
	}
}

func NewCommandDispatcher(api port.ElevenAPI, registry *DeviceRegistry, logger *zap.Logger, opts ...DispatcherOption) *CommandDispatcher {
	d := &CommandDispatcher{
		api:       api,
		registry:  registry,
		resolver:  registry,
		retryUnit: DEFAULT_RETRY_UNIT,
		sleep:     ContextSleep,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dispatch resolves the target inverter and posts the work mode, retrying
// non-200 answers. Failures are logged and reported in the outcome, never raised.
func (d *CommandDispatcher) Dispatch(ctx context.Context, cmd domain.OperatingModeCommand) domain.DispatchOutcome {
	logger := d.logger.With(zap.String("command_id", cmd.Id), zap.String("mode", string(cmd.Mode)))

	deviceId, ok := d.resolveTarget(cmd.HostDeviceRef, logger)
	if !ok {
		logger.Warn("dispatch: cannot change work mode, no device determined")
		return d.done(domain.DispatchOutcome{Kind: domain.OutcomeUnresolvable})
	}

	body, ok := OperatingModeBody(cmd.Mode, cmd.Params)
	if !ok {
		logger.Warn("dispatch: unable to determine work mode")
		return d.done(domain.DispatchOutcome{Kind: domain.OutcomeUnknownMode, DeviceId: deviceId})
	}

	outcome := d.sendReliable(ctx, deviceId, body, logger)
	if !outcome.Delivered() {
		logger.Warn("dispatch: unable to change work mode",
			zap.String("device", deviceId), zap.Int("status", outcome.LastStatus), zap.Int("attempts", outcome.Attempts))
	} else {
		logger.Info("dispatch: work mode changed", zap.String("device", deviceId), zap.Int("attempts", outcome.Attempts))
	}
	return d.done(outcome)
}

func (d *CommandDispatcher) resolveTarget(ref string, logger *zap.Logger) (string, bool) {
	if ref != "" {
		if id, ok := d.resolver.ResolveHostDevice(ref); ok {
			return id, true
		}
		logger.Warn("dispatch: unknown device reference, using the first inverter", zap.String("ref", ref))
	}
	dev, ok := d.registry.FirstOfType(domain.DEVICE_TYPE_HYBRID_INVERTER)
	return dev.Id, ok
}

// sendReliable posts until a 200 is received, waiting 1, 2, 4 ... 32 retry
// units after each failure. The last answer is returned either way.
func (d *CommandDispatcher) sendReliable(ctx context.Context, deviceId string, body map[string]any, logger *zap.Logger) domain.DispatchOutcome {
	outcome := domain.DispatchOutcome{Kind: domain.OutcomeRetriable, DeviceId: deviceId}
	for loops := 1; loops <= MAX_RETRY_LOOPS; loops *= 2 {
		status, err := d.api.PostOperatingMode(ctx, deviceId, body)
		d.metrics.CommandAttempt()
		outcome.Attempts++
		outcome.LastStatus = status
		if err == nil && status == http.StatusOK {
			outcome.Kind = domain.OutcomeDelivered
			return outcome
		}
		logger.Info("dispatch: set work mode failed", zap.Int("status", status), zap.Error(err), zap.Int("attempt", outcome.Attempts))
		if err := d.sleep(ctx, time.Duration(loops)*d.retryUnit); err != nil {
			logger.Warn("dispatch: retry cancelled", zap.Error(err))
			return outcome
		}
	}
	return outcome
}

func (d *CommandDispatcher) done(outcome domain.DispatchOutcome) domain.DispatchOutcome {
	d.metrics.CommandOutcome(outcome.Kind.String())
	return outcome
}
