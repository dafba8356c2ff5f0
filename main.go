package main

import (
	"log"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/Icerzack/codecollab/cmd"
	"github.com/Icerzack/codecollab/internal/rest"
	"github.com/Icerzack/codecollab/internal/utils"
)

func main() {
	bootstrap, err := utils.NewCustomLogger(zapcore.InfoLevel, false)
	if err != nil {
		log.Fatal(err)
	}

	config, err := cmd.LoadConfig(cmd.DefaultConfigPath, bootstrap)
	if err != nil {
		bootstrap.Error("Failed to load config", zap.Error(err))
		os.Exit(1)
	}

	level, ok := utils.ParseLevel(config.Apps.LogLevel)
	if !ok {
		bootstrap.Warn("Unknown log level, using info", zap.String("level", config.Apps.LogLevel))
	}
	logger, err := utils.NewCustomLogger(level, config.Apps.LogToFiles)
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	restApp := rest.NewRest(config.RestConfig(logger))

	appsManager := cmd.NewAppsManager(logger)

	appsManager.Register(cmd.RestApp, restApp)
	appsManager.RunAll()
	appsManager.WaitForShutdown()
}
