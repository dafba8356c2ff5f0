package cmd

import (
	"os"
	"os/signal"
	"sort"
	"sync"
	"syscall"

	"go.uber.org/zap"
)

const RestApp = "rest"

// App is a long-running component. Start blocks until the app stops.
type App interface {
	Start()
	Stop()
}

type AppsManager struct {
	apps map[string]App
	wg   *sync.WaitGroup

	// exited receives the name of every app whose Start returned
	exited chan string

	logger *zap.Logger
}

func NewAppsManager(logger *zap.Logger) *AppsManager {
	return &AppsManager{
		apps:   make(map[string]App),
		wg:     &sync.WaitGroup{},
		exited: make(chan string, 8),
		logger: logger,
	}
}

func (am *AppsManager) Register(name string, app App) {
	am.apps[name] = app
}

func (am *AppsManager) Stop(name string) {
	app, ok := am.apps[name]
	if !ok {
		return
	}
	app.Stop()
	am.logger.Info("App stopped", zap.String("name", name))
}

func (am *AppsManager) RunAll() {
	for name, app := range am.apps {
		am.wg.Add(1)
		go func(name string, app App) {
			defer am.wg.Done()
			am.logger.Info("App started", zap.String("name", name))
			app.Start()
			select {
			case am.exited <- name:
			default:
			}
		}(name, app)
	}
}

// StopAll stops the apps in reverse name order.
func (am *AppsManager) StopAll() {
	names := make([]string, 0, len(am.apps))
	for name := range am.apps {
		names = append(names, name)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(names)))
	for _, name := range names {
		am.Stop(name)
	}
}

// WaitForShutdown blocks until a termination signal arrives or any app exits
// on its own, then stops everything.
func (am *AppsManager) WaitForShutdown() {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(stop)

	select {
	case sig := <-stop:
		am.logger.Info("Shutting down", zap.String("signal", sig.String()))
	case name := <-am.exited:
		am.logger.Warn("App exited, shutting down", zap.String("name", name))
	}

	am.StopAll()
	am.wg.Wait()
}
