package shutdown

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
)

func CreateGracefulShutdownChannel() chan os.Signal {
	gracefulShutdown := make(chan os.Signal, 1)
	signal.Notify(gracefulShutdown, syscall.SIGTERM, syscall.SIGINT)

	return gracefulShutdown
}

// ListenForShutdown blocks until a termination signal arrives or ctx is done, then
// cancels the processing context and waits up to timeToWait for stopped to close
// before calling cleanup.
func ListenForShutdown(
	ctx context.Context,
	signalChan chan os.Signal,
	cancel context.CancelFunc,
	stopped <-chan struct{},
	cleanup func(),
	timeToWait time.Duration,
	l *zap.Logger,
) {
	select {
	case sig := <-signalChan:
		l.Sugar().Infow("Caught signal", zap.String("signal", sig.String()))
	case <-ctx.Done():
		l.Sugar().Infow("Context cancelled, shutting down")
	}
	cancel()

	l.Sugar().Infow("Waiting for in-flight work to drain", zap.Duration("timeToWait", timeToWait))
	select {
	case <-stopped:
	case <-time.After(timeToWait):
		l.Sugar().Warnw("In-flight work did not drain in time")
	}

	cleanup()
	l.Sugar().Infow("Exiting")
}
