package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/berfenger/eleven2mqtt/internal/core/domain"
	"github.com/berfenger/eleven2mqtt/internal/core/port/portmock"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recordedSleeps struct {
	waits []time.Duration
}

func (r *recordedSleeps) sleep(ctx context.Context, d time.Duration) error {
	r.waits = append(r.waits, d)
	return ctx.Err()
}

func newTestDispatcher(api *portmock.ElevenAPI, ids ...string) (*CommandDispatcher, *recordedSleeps) {
	registry := NewDeviceRegistry(&portmock.RecordingSink{}, zap.NewNop())
	devices := make([]domain.SiteDevice, 0, len(ids))
	for _, id := range ids {
		devices = append(devices, domain.SiteDevice{DeviceId: id, Type: domain.DEVICE_TYPE_HYBRID_INVERTER})
	}
	registry.Discover(siteWith(devices...))
	sleeps := &recordedSleeps{}
	return NewCommandDispatcher(api, registry, zap.NewNop(), WithSleeper(sleeps.sleep)), sleeps
}

func seconds(n ...int) []time.Duration {
	out := make([]time.Duration, 0, len(n))
	for _, s := range n {
		out = append(out, time.Duration(s)*time.Second)
	}
	return out
}

func TestDispatchRetriesUntilAccepted(t *testing.T) {

	assert := assert.New(t)

	api := &portmock.ElevenAPI{}
	api.On("PostOperatingMode", mock.Anything, "inv1", mock.Anything).Return(503, nil).Times(4)
	api.On("PostOperatingMode", mock.Anything, "inv1", mock.Anything).Return(200, nil).Once()

	d, sleeps := newTestDispatcher(api, "inv1")
	outcome := d.Dispatch(context.Background(), domain.OperatingModeCommand{
		Mode:          domain.WORK_MODE_SELF_CONSUMPTION,
		HostDeviceRef: "eleven_inv1",
	})

	assert.Equal(domain.OutcomeDelivered, outcome.Kind)
	assert.True(outcome.Delivered())
	assert.Equal(5, outcome.Attempts)
	assert.Equal(200, outcome.LastStatus)
	assert.Equal(seconds(1, 2, 4, 8), sleeps.waits)
	api.AssertNumberOfCalls(t, "PostOperatingMode", 5)
}

func TestDispatchGivesUpAfterSixAttempts(t *testing.T) {

	assert := assert.New(t)

	api := &portmock.ElevenAPI{}
	api.On("PostOperatingMode", mock.Anything, "inv1", mock.Anything).Return(500, nil)

	d, sleeps := newTestDispatcher(api, "inv1")
	outcome := d.Dispatch(context.Background(), domain.OperatingModeCommand{
		Mode:          domain.WORK_MODE_IDLE_BATTERY,
		HostDeviceRef: "eleven_inv1",
	})

	assert.Equal(domain.OutcomeRetriable, outcome.Kind)
	assert.Equal(6, outcome.Attempts)
	assert.Equal(500, outcome.LastStatus)
	assert.Equal(seconds(1, 2, 4, 8, 16, 32), sleeps.waits)
	api.AssertNumberOfCalls(t, "PostOperatingMode", 6)
}

func TestDispatchTransportErrorIsRetried(t *testing.T) {

	api := &portmock.ElevenAPI{}
	api.On("PostOperatingMode", mock.Anything, "inv1", mock.Anything).Return(0, errors.New("connection refused")).Once()
	api.On("PostOperatingMode", mock.Anything, "inv1", mock.Anything).Return(200, nil).Once()

	d, sleeps := newTestDispatcher(api, "inv1")
	outcome := d.Dispatch(context.Background(), domain.OperatingModeCommand{Mode: domain.WORK_MODE_PV_EXPORT})

	assert.True(t, outcome.Delivered())
	assert.Equal(t, 2, outcome.Attempts)
	assert.Equal(t, seconds(1), sleeps.waits)
}

func TestDispatchStopsWhenCancelled(t *testing.T) {

	api := &portmock.ElevenAPI{}
	api.On("PostOperatingMode", mock.Anything, "inv1", mock.Anything).Return(500, nil)

	d, _ := newTestDispatcher(api, "inv1")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	outcome := d.Dispatch(ctx, domain.OperatingModeCommand{Mode: domain.WORK_MODE_PV_EXPORT})

	assert.Equal(t, domain.OutcomeRetriable, outcome.Kind)
	assert.Equal(t, 1, outcome.Attempts)
}

func TestDispatchForceChargeBody(t *testing.T) {

	require := require.New(t)

	var sent map[string]any
	api := &portmock.ElevenAPI{}
	api.On("PostOperatingMode", mock.Anything, "inv1", mock.Anything).
		Run(func(args mock.Arguments) { sent = args.Get(2).(map[string]any) }).
		Return(200, nil).Once()

	d, sleeps := newTestDispatcher(api, "inv1")
	outcome := d.Dispatch(context.Background(), domain.OperatingModeCommand{
		Mode:          domain.WORK_MODE_FORCE_CHARGE,
		HostDeviceRef: "eleven_inv1",
		Params: map[string]any{
			"target_percent":    80,
			"target_power":      3000,
			"allow_discharging": true,
		},
	})

	require.True(outcome.Delivered())
	require.Empty(sleeps.waits)
	raw, err := json.Marshal(sent)
	require.NoError(err)
	require.JSONEq(`{"workMode":"forceCharge","targetSoc":80,"rate":3000}`, string(raw))
}

func TestDispatchUnknownMode(t *testing.T) {

	api := &portmock.ElevenAPI{}
	d, _ := newTestDispatcher(api, "inv1")

	outcome := d.Dispatch(context.Background(), domain.OperatingModeCommand{Mode: "turbo", HostDeviceRef: "eleven_inv1"})

	assert.Equal(t, domain.OutcomeUnknownMode, outcome.Kind)
	assert.Equal(t, 0, outcome.Attempts)
	api.AssertNotCalled(t, "PostOperatingMode", mock.Anything, mock.Anything, mock.Anything)
}

func TestDispatchWithoutInverter(t *testing.T) {

	api := &portmock.ElevenAPI{}
	d, _ := newTestDispatcher(api)

	outcome := d.Dispatch(context.Background(), domain.OperatingModeCommand{Mode: domain.WORK_MODE_PV_EXPORT, HostDeviceRef: "eleven_x"})

	assert.Equal(t, domain.OutcomeUnresolvable, outcome.Kind)
	api.AssertNotCalled(t, "PostOperatingMode", mock.Anything, mock.Anything, mock.Anything)
}

func TestDispatchFallsBackToFirstInverter(t *testing.T) {

	api := &portmock.ElevenAPI{}
	api.On("PostOperatingMode", mock.Anything, "inv1", mock.Anything).Return(200, nil).Once()

	d, _ := newTestDispatcher(api, "inv1", "inv2")
	outcome := d.Dispatch(context.Background(), domain.OperatingModeCommand{Mode: domain.WORK_MODE_GRID_EXPORT, HostDeviceRef: "eleven_unknown"})

	assert.True(t, outcome.Delivered())
	assert.Equal(t, "inv1", outcome.DeviceId)
	api.AssertExpectations(t)
}

func TestDispatchTargetsReferencedInverter(t *testing.T) {

	api := &portmock.ElevenAPI{}
	api.On("PostOperatingMode", mock.Anything, "inv2", mock.Anything).Return(200, nil).Once()

	d, _ := newTestDispatcher(api, "inv1", "inv2")
	outcome := d.Dispatch(context.Background(), domain.OperatingModeCommand{Mode: domain.WORK_MODE_GRID_EXPORT, HostDeviceRef: "eleven_inv2"})

	assert.Equal(t, "inv2", outcome.DeviceId)
	api.AssertExpectations(t)
}

func TestOperatingModeBody(t *testing.T) {

	assert := assert.New(t)

	body, ok := OperatingModeBody(domain.WORK_MODE_IDLE_BATTERY, map[string]any{"allow_charging": true, "target_percent": 50})
	assert.True(ok)
	assert.Equal(map[string]any{"workMode": "idleBattery", "allowCharge": true}, body)

	body, ok = OperatingModeBody(domain.WORK_MODE_PV_EXPORT, map[string]any{"target_power": 1})
	assert.True(ok)
	assert.Equal(map[string]any{"workMode": "pvExportPriority"}, body)

	_, ok = OperatingModeBody("nope", nil)
	assert.False(ok)
}
