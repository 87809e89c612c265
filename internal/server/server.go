package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/berfenger/eleven2mqtt/internal/config"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/prometheus/client_golang/prometheus"
)

type Server struct {
	port           uint
	httpLog        bool
	rootContext    *actor.RootContext
	masterActor    *actor.PID
	gatherer       prometheus.Gatherer
	commandTimeout time.Duration
}

// CommandTimeout bounds a dispatch: six attempts with 1+2+...+32 retry units
// of backoff in between.
func CommandTimeout(cfg config.ElevenConfig) time.Duration {
	return 63*cfg.RetryUnit() + 6*cfg.RequestTimeout() + 5*time.Second
}

func NewServer(cfg config.Config, rootContext *actor.RootContext, masterActor *actor.PID, gatherer prometheus.Gatherer) *http.Server {
	NewServer := &Server{
		port:           cfg.Port,
		rootContext:    rootContext,
		masterActor:    masterActor,
		httpLog:        cfg.HttpLog,
		gatherer:       gatherer,
		commandTimeout: CommandTimeout(cfg.Eleven),
	}

	// Declare Server config
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", NewServer.port),
		Handler:      NewServer.RegisterRoutes(),
		IdleTimeout:  time.Minute,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: NewServer.commandTimeout + 5*time.Second,
	}

	return server
}
