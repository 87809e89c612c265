package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	adactor "github.com/berfenger/eleven2mqtt/internal/adapter/actor"
	"github.com/berfenger/eleven2mqtt/internal/adapter/eleven"
	"github.com/berfenger/eleven2mqtt/internal/config"
	"github.com/berfenger/eleven2mqtt/internal/core/actor"
	"github.com/berfenger/eleven2mqtt/internal/core/domain"
	"github.com/berfenger/eleven2mqtt/internal/core/service"
	"github.com/berfenger/eleven2mqtt/internal/metrics"
	"github.com/berfenger/eleven2mqtt/internal/server"
	"github.com/berfenger/eleven2mqtt/internal/util/actorutil"

	pactor "github.com/asynkron/protoactor-go/actor"
	_ "github.com/joho/godotenv/autoload"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

func gracefulShutdown(apiServer *http.Server, done chan bool) {
	// Create context that listens for the interrupt signal from the OS.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Listen for the interrupt signal.
	<-ctx.Done()

	log.Println("shutting down gracefully, press Ctrl+C again to force")

	// The context is used to inform the server it has 5 seconds to finish
	// the request it is currently handling
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := apiServer.Shutdown(ctx); err != nil {
		log.Printf("Server forced to shutdown with error: %v", err)
	}

	log.Println("Server exiting")

	// Notify the main goroutine that the shutdown is complete
	done <- true
}

func main() {

	// load and print config
	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		slog.Error("config errors", "error", err)
		os.Exit(1)
	}
	slog.Info("Using", "config", cfg.Redacted())

	// zap logger
	zapCfg := zap.NewProductionConfig()
	zapCfg.Level = zap.NewAtomicLevelAt(cfg.LogLevel)

	logger := zap.Must(zapCfg.Build())
	defer logger.Sync()

	// metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(registry)

	// cloud API client
	api := eleven.NewClient(cfg.Eleven.BaseURL, cfg.Eleven.Token, cfg.Eleven.RequestTimeout(), logger)
	if cfg.Eleven.ValidateToken {
		if err := validateToken(api, cfg.Eleven.RequestTimeout()); err != nil {
			logger.Error("eleven api token check failed", zap.Error(err))
			os.Exit(1)
		}
	}

	// init actor system
	as := actorutil.NewActorSystemWithZapLogger(logger)
	ctx := as.Root

	sink := adactor.NewMQTTSink(ctx, m, logger)
	devices := service.NewDeviceRegistry(sink, logger)
	deps := actor.ControllerDeps{
		API:      api,
		Registry: devices,
		Poller:   service.NewPoller(api, devices, m, logger),
		Dispatcher: service.NewCommandDispatcher(api, devices, logger,
			service.WithRetryUnit(cfg.Eleven.RetryUnit()), service.WithMetrics(m)),
		Events:  sink,
		Metrics: m,
	}

	props := pactor.PropsFromProducer(func() pactor.Actor {
		return actor.NewMasterOfPuppetsActor(*cfg, mqttActorProvider(cfg, logger),
			controllerActorProvider(cfg, deps, logger), sink, logger)
	})
	pid, err := ctx.SpawnNamed(props, "master")
	if err != nil {
		logger.Error("cannot spawn master actor", zap.Error(err))
		return
	}

	server := server.NewServer(*cfg, ctx, pid, registry)
	// Create a done channel to signal when the shutdown is complete
	done := make(chan bool, 1)

	// Run graceful shutdown in a separate goroutine
	go gracefulShutdown(server, done)

	err = server.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		panic(fmt.Sprintf("http server error: %s", err))
	}

	// Wait for the graceful shutdown to complete
	<-done
	log.Println("Graceful shutdown complete.")

	// stop polling before tearing down the actors
	if _, err := ctx.RequestFuture(pid, domain.TerminateRequest{}, 5*time.Second).Result(); err != nil {
		logger.Warn("controller did not confirm termination", zap.Error(err))
	}
	ctx.Stop(pid)
	as.Shutdown()
}

func validateToken(api *eleven.Client, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	ok, err := api.CheckToken(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return errors.New("token rejected by the eleven api")
	}
	return nil
}

func mqttActorProvider(cfg *config.Config, logger *zap.Logger) actor.MQTTActorProvider {
	return func() *adactor.MQTTActor {
		return adactor.NewMQTTActor(cfg, logger)
	}
}

func controllerActorProvider(cfg *config.Config, deps actor.ControllerDeps, logger *zap.Logger) actor.ControllerActorProvider {
	return func(haDiscovery *pactor.PID) *actor.ControllerActor {
		return actor.NewControllerActor(actor.ControllerConfigFrom(cfg), deps, haDiscovery, logger)
	}
}
