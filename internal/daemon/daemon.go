// Package daemon implements the run loop shared by the relique server and
// client: a tick-driven call into the application's loop function, signal
// polling between ticks, and coordinated teardown of the HTTP listener.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
)

const (
	// TickPeriod is the interval between loop function invocations. The
	// schedule evaluator uses the same constant as its edge-detection
	// look-back, so a schedule boundary is seen by exactly one tick.
	TickPeriod = 10 * time.Second

	// DrainTimeout bounds how long the HTTP listener may spend finishing
	// in-flight requests during shutdown.
	DrainTimeout = 10 * time.Second
)

// Stopping tells the run loop whether to halt.
type Stopping bool

const (
	// Continue keeps the run loop going.
	Continue Stopping = false

	// Stop makes the run loop exit after the current iteration.
	Stop Stopping = true
)

// App is the domain-specific half of a daemon. The run loop drives it; the
// HTTP router shares state with it under the app's own lock.
type App interface {
	// LoopFunc is called once per tick. Errors halt the run loop.
	LoopFunc(ctx context.Context) (Stopping, error)

	// ReceivedSignal is called for each pending INT or TERM between ticks.
	ReceivedSignal(sig os.Signal) Stopping

	// Shutdown is called once, after the run loop exits and before the
	// HTTP listener drains.
	Shutdown() error
}

// Run drives app until it stops, a signal arrives, ctx is cancelled, or the
// HTTP listener fails. srv may be nil for loop-only operation (tests). When
// certFile is set the listener serves TLS, otherwise plain HTTP.
//
// The first loop iteration runs immediately; subsequent ones follow the
// ticker. Pending signals are drained non-blockingly after every iteration
// so a signal that arrived during a long loop run is not delayed by the tick
// sleep.
func Run(ctx context.Context, app App, srv *http.Server, certFile, keyFile string, logger *zap.Logger) error {
	sigCh := make(chan os.Signal, 4)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	serverErr := make(chan error, 1)
	if srv != nil {
		go func() {
			var err error
			if certFile != "" {
				err = srv.ListenAndServeTLS(certFile, keyFile)
			} else {
				err = srv.ListenAndServe()
			}
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				serverErr <- err
			}
		}()
		logger.Info("HTTP listener started", zap.String("addr", srv.Addr))
	}

	ticker := time.NewTicker(TickPeriod)
	defer ticker.Stop()

	var runErr error

loop:
	for {
		stopping, err := app.LoopFunc(ctx)
		if err != nil {
			runErr = fmt.Errorf("run loop: %w", err)
			break
		}
		if stopping == Stop {
			break
		}

		// Handle any and all pending signals.
	drain:
		for {
			select {
			case sig := <-sigCh:
				if app.ReceivedSignal(sig) == Stop {
					logger.Info("Signal received. Shutting down", zap.String("signal", sig.String()))
					break loop
				}
			default:
				break drain
			}
		}

		select {
		case <-ticker.C:
		case sig := <-sigCh:
			if app.ReceivedSignal(sig) == Stop {
				logger.Info("Signal received. Shutting down", zap.String("signal", sig.String()))
				break loop
			}
		case <-ctx.Done():
			break loop
		case err := <-serverErr:
			runErr = fmt.Errorf("http listener: %w", err)
			break loop
		}
	}

	if err := app.Shutdown(); err != nil {
		logger.Error("Error during app shutdown", zap.Error(err))
		if runErr == nil {
			runErr = err
		}
	}

	if srv != nil {
		drainCtx, cancel := context.WithTimeout(context.Background(), DrainTimeout)
		defer cancel()
		if err := srv.Shutdown(drainCtx); err != nil {
			logger.Warn("HTTP listener drain interrupted", zap.Error(err))
		}
	}

	return runErr
}
