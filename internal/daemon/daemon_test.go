package daemon

import (
	"context"
	"errors"
	"os"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type fakeApp struct {
	mu        sync.Mutex
	loops     int
	signals   []os.Signal
	shutdowns int

	stopAfter int
	loopErr   error
}

func (a *fakeApp) LoopFunc(ctx context.Context) (Stopping, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.loops++
	if a.loopErr != nil {
		return Continue, a.loopErr
	}
	if a.stopAfter > 0 && a.loops >= a.stopAfter {
		return Stop, nil
	}
	return Continue, nil
}

func (a *fakeApp) ReceivedSignal(sig os.Signal) Stopping {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.signals = append(a.signals, sig)
	return Stop
}

func (a *fakeApp) Shutdown() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.shutdowns++
	return nil
}

func (a *fakeApp) counts() (loops, signals, shutdowns int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.loops, len(a.signals), a.shutdowns
}

func TestRunStopsWhenLoopFuncSaysSo(t *testing.T) {
	app := &fakeApp{stopAfter: 1}

	err := Run(context.Background(), app, nil, "", "", zaptest.NewLogger(t))
	require.NoError(t, err)

	loops, _, shutdowns := app.counts()
	assert.Equal(t, 1, loops)
	assert.Equal(t, 1, shutdowns, "shutdown runs exactly once")
}

func TestRunPropagatesLoopError(t *testing.T) {
	app := &fakeApp{loopErr: errors.New("boom")}

	err := Run(context.Background(), app, nil, "", "", zaptest.NewLogger(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")

	_, _, shutdowns := app.counts()
	assert.Equal(t, 1, shutdowns, "shutdown still runs on loop errors")
}

func TestRunStopsOnSignal(t *testing.T) {
	app := &fakeApp{}

	done := make(chan error, 1)
	go func() {
		done <- Run(context.Background(), app, nil, "", "", zaptest.NewLogger(t))
	}()

	// Give the loop time to pass its first iteration and block on the tick.
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, syscall.Kill(os.Getpid(), syscall.SIGTERM))

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("daemon did not stop on SIGTERM")
	}

	_, signals, shutdowns := app.counts()
	assert.Equal(t, 1, signals)
	assert.Equal(t, 1, shutdowns)
}

func TestRunStopsOnContextCancel(t *testing.T) {
	app := &fakeApp{}
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		done <- Run(ctx, app, nil, "", "", zaptest.NewLogger(t))
	}()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("daemon did not stop on context cancellation")
	}
}
