package cmd

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

type fakeApp struct {
	mu      sync.Mutex
	stopped bool
	quit    chan struct{}
}

func newFakeApp() *fakeApp {
	return &fakeApp{quit: make(chan struct{})}
}

func (a *fakeApp) Start() {
	<-a.quit
}

func (a *fakeApp) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.stopped {
		a.stopped = true
		close(a.quit)
	}
}

func (a *fakeApp) isStopped() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.stopped
}

func TestWaitForShutdownStopsAllWhenAnAppExits(t *testing.T) {
	am := NewAppsManager(zap.NewNop())
	failing, healthy := newFakeApp(), newFakeApp()
	am.Register("failing", failing)
	am.Register(RestApp, healthy)
	am.RunAll()

	done := make(chan struct{})
	go func() {
		am.WaitForShutdown()
		close(done)
	}()

	failing.Stop()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("manager did not shut down")
	}
	assert.True(t, healthy.isStopped())
}

func TestStopUnknownAppIsNoop(t *testing.T) {
	am := NewAppsManager(zap.NewNop())
	am.Stop("missing")
}
