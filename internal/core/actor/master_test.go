package actor

import (
	"testing"
	"time"

	adactor "github.com/berfenger/eleven2mqtt/internal/adapter/actor"
	"github.com/berfenger/eleven2mqtt/internal/core/domain"
	"github.com/berfenger/eleven2mqtt/internal/core/port/portmock"
	"github.com/berfenger/eleven2mqtt/internal/core/service"
	"github.com/berfenger/eleven2mqtt/internal/mqtt"
	"github.com/berfenger/eleven2mqtt/internal/util"
	"github.com/berfenger/eleven2mqtt/internal/util/actorutil"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestMasterActor(t *testing.T) {

	cfg := util.LoadTestConfig()
	logCfg := zap.NewDevelopmentConfig()
	logCfg.Level = zap.NewAtomicLevelAt(cfg.LogLevel)
	logger := zap.Must(logCfg.Build())

	as := actorutil.NewActorSystemWithZapLogger(logger)
	defer as.Shutdown()
	context := as.Root

	api := &portmock.ElevenAPI{}
	api.On("GetSite", mock.Anything).Return(oneInverterSite(), nil)
	api.On("GetDeviceState", mock.Anything, "inv1").Return(inverterState(), nil)
	posted := make(chan map[string]any, 1)
	api.On("PostOperatingMode", mock.Anything, "inv1", mock.Anything).Return(200, nil).Run(func(args mock.Arguments) {
		posted <- args.Get(2).(map[string]any)
	}).Once()

	sink := adactor.NewMQTTSink(context, nil, logger)
	registry := service.NewDeviceRegistry(sink, logger)
	deps := ControllerDeps{
		API:        api,
		Registry:   registry,
		Poller:     service.NewPoller(api, registry, nil, logger),
		Dispatcher: service.NewCommandDispatcher(api, registry, logger),
		Events:     sink,
	}

	props := actor.PropsFromProducer(func() actor.Actor {
		return NewMasterOfPuppetsActor(cfg, func() *adactor.MQTTActor {
			return adactor.NewTestMQTTActor(&cfg, logger, nil)
		}, func(haDiscovery *actor.PID) *ControllerActor {
			return NewControllerActor(ControllerConfigFrom(&cfg), deps, haDiscovery, logger)
		}, sink, logger)
	})
	pid, err := context.SpawnNamed(props, "master")
	require.NoError(t, err)

	healthCheck := func() domain.ActorHealthResponse {
		res, err := context.RequestFuture(pid, domain.ActorHealthRequest{}, 5*time.Second).Result()
		require.NoError(t, err)
		healthResp, ok := res.(domain.ActorHealthResponse)
		require.True(t, ok)
		return healthResp
	}

	// the test MQTT actor acknowledges discovery, so the controller reaches polling
	assert.Eventually(t, func() bool {
		res, err := context.RequestFuture(pid, domain.ActorHealthRequest{}, 5*time.Second).Result()
		if err != nil {
			return false
		}
		resp, _ := res.(domain.ActorHealthResponse)
		return resp.Healthy && resp.State == CONTROLLER_STATE_POLLING
	}, 5*time.Second, 50*time.Millisecond)

	res, err := context.RequestFuture(pid, domain.GetDevicesRequest{}, time.Second).Result()
	require.NoError(t, err)
	assert.Len(t, res.(domain.GetDevicesResponse).Devices, 1)

	// MQTT commands are routed to the controller
	context.Send(pid, adactor.ParsedCommand{Command: &mqtt.ParsedMQTTCommand{
		DeviceRef: "inv1",
		Mode:      "self_consumption",
		Params:    map[string]any{"percent_to_battery": 50},
	}})
	select {
	case body := <-posted:
		assert.Equal(t, map[string]any{"workMode": "selfConsumption", "targetExcessPc": 50}, body)
	case <-time.After(2 * time.Second):
		t.Fatal("operating mode was not posted")
	}

	res, err = context.RequestFuture(pid, domain.TerminateRequest{}, time.Second).Result()
	require.NoError(t, err)
	assert.Equal(t, CONTROLLER_STATE_TERMINATED, res.(domain.TerminateResponse).State)
	assert.False(t, healthCheck().Healthy)

	context.Stop(pid)
}
