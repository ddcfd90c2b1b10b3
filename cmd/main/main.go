package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"iot-observer/src/auth"
	"iot-observer/src/config"
	"iot-observer/src/interfaces"
	"iot-observer/src/logger"
	"iot-observer/src/models"
	"iot-observer/src/network"
	"iot-observer/src/server"
	"iot-observer/src/session"
	"iot-observer/src/transport"
)

// -----------------------------------------------------------------------------

func main() {

	// Parse command line flags
	configPath := flag.String("config", "../../config/default.yaml", "path to config file")
	flag.Parse()

	// Load config from YAML file
	config, err := config.NewConfig(*configPath)
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}

	// Setup logger
	appLogger := logger.NewLogger(config.LogLevel, config.Name)

	// 2. Setup Components
	var netMgr interfaces.INetworkManager = network.NewAsyncNetworkManager(config.MConfig, appLogger)
	var tokens interfaces.ITokenProvider = auth.NewTokenProvider(config.MConfig, netMgr)
	var wsTransport interfaces.ITransport = transport.NewWSTransport(config.LogLevel)

	// 3. Session (connection controller + caches)
	var core interfaces.ISyncCore = session.NewController(config.MConfig, wsTransport, tokens)

	// 4. Initial connection and default subscription
	if err := core.Connect(); err != nil {
		appLogger.Warning("Initial connect failed: %v (retry through the gateway)", err)
	}
	if config.Auth.Username != "" {
		if err := core.Subscribe(models.MSubscription{
			GroupType: models.GroupTypeUser,
			Username:  config.Auth.Username,
		}); err != nil {
			appLogger.Warning("Default subscription failed: %v", err)
		}
	}

	// 5. Start Gateway
	gateway := server.NewGateway(config.MConfig, core, appLogger)
	go func() {
		if err := gateway.Start(); err != nil {
			appLogger.Critical("Gateway failed: %v", err)
		}
	}()

	// 6. Wait for shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down...")
	core.Logout()
}
