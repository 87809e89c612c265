package actorutil

import (
	"log/slog"
	"time"

	"github.com/berfenger/eleven2mqtt/internal/core/domain"
	"github.com/berfenger/eleven2mqtt/internal/mqtt"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/google/uuid"
	"github.com/lmittmann/tint"
	"go.uber.org/zap"
)

func PipeToSelfWithRecover(ctx actor.Context, future *actor.Future, mapFn func(error) any) {
	ctx.ReenterAfter(future, func(msg any, err error) {
		if err != nil {
			ctx.Send(ctx.Self(), mapFn(err))
			return
		}
		ctx.Send(ctx.Self(), msg)
	})
}

// NewActorSystemWithZapLogger routes the actor system slog output through zap.
func NewActorSystemWithZapLogger(logger *zap.Logger) *actor.ActorSystem {
	stdOutLogger := zap.NewStdLog(logger)

	var slogLevel slog.Level = slog.LevelInfo

	switch logger.Level() {
	case zap.DebugLevel:
		slogLevel = slog.LevelDebug
	case zap.InfoLevel:
		slogLevel = slog.LevelInfo
	case zap.WarnLevel:
		slogLevel = slog.LevelWarn
	case zap.ErrorLevel, zap.PanicLevel, zap.FatalLevel:
		slogLevel = slog.LevelError
	}

	return actor.NewActorSystem(actor.WithLoggerFactory(func(system *actor.ActorSystem) *slog.Logger {
		return slog.New(tint.NewHandler(stdOutLogger.Writer(), &tint.Options{
			Level:      slogLevel,
			TimeFormat: time.DateTime,
			NoColor:    true,
		}))
	}))
}

func ActorLogger(actorName string, logger *zap.Logger) *zap.Logger {
	return logger.With(zap.String("actor", actorName))
}

// NewCommandId returns a correlation id for a command.
func NewCommandId() string {
	return uuid.NewString()
}

// ParsedMQTTCommandToCommand turns a command received over MQTT into a controller request.
func ParsedMQTTCommandToCommand(cmd mqtt.ParsedMQTTCommand) domain.OperatingModeRequest {
	return domain.OperatingModeRequest{
		Command: domain.OperatingModeCommand{
			Id:            NewCommandId(),
			Mode:          domain.ParseWorkMode(cmd.Mode),
			HostDeviceRef: cmd.DeviceRef,
			Params:        cmd.Params,
		},
	}
}
