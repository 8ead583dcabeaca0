package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/shyam-habarakada/agent-md/internal/api"
	"github.com/shyam-habarakada/agent-md/internal/bus"
	"github.com/shyam-habarakada/agent-md/internal/config"
	"github.com/shyam-habarakada/agent-md/internal/invoker"
	"github.com/shyam-habarakada/agent-md/internal/logger"
	"github.com/shyam-habarakada/agent-md/internal/manifest"
	"github.com/shyam-habarakada/agent-md/internal/mcp"
	"github.com/shyam-habarakada/agent-md/internal/relay"
	"github.com/shyam-habarakada/agent-md/pkg/utils"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "Path to configuration file")
	logLevel := flag.String("log-level", "", "Log level (debug, info, warn, error)")
	origin := flag.String("origin", "", "Fallback application origin, e.g. http://localhost:3000")
	flag.Parse()

	bootLogger := logrus.New()
	bootLogger.SetOutput(os.Stderr)

	appConfig, err := config.LoadConfig(*configPath, bootLogger)
	if err != nil {
		bootLogger.Fatalf("Failed to load configuration: %v", err)
	}

	if *logLevel != "" {
		appConfig.Logging.Level = *logLevel
	} else if appConfig.Logging.Level == "" {
		appConfig.Logging.Level = utils.GetEnv("LOG_LEVEL", "info")
	}
	if *origin != "" {
		appConfig.Bridge.Origin = *origin
	}

	log := utils.ConfigureLogger(appConfig.Logging)
	log.Infof("Starting %s...", appConfig.Bridge.Name)

	eventBus := bus.NewEventBus(log)
	log.AddHook(logger.NewBridgeLogHook(eventBus, appConfig.Bridge.Name))
	defer eventBus.Stop()

	// Inner channel to the browser-side relay
	var dialer relay.Dialer
	switch appConfig.Relay.Transport {
	case "websocket":
		dialer = relay.WebSocketDialer(appConfig.Relay.URL)
	default:
		network := appConfig.Relay.Network
		if network == "" {
			network = "tcp"
		}
		dialer = relay.SocketDialer(network, appConfig.Relay.Address, appConfig.Relay.MaxFrameBytes)
	}

	conn := relay.NewConn(dialer, relay.Options{
		ReconnectDelay: appConfig.Relay.ReconnectDelay(),
		CallTimeout:    appConfig.Relay.RequestTimeout(),
		MaxFrameBytes:  appConfig.Relay.MaxFrameBytes,
		OnConnect: func() {
			eventBus.PublishRelayState(true, "")
		},
		OnDisconnect: func(err error) {
			eventBus.PublishRelayState(false, err.Error())
		},
	}, log)
	conn.Start()
	defer conn.Close()

	// Contract resolution pipeline
	cache := manifest.NewCache(log)
	parser := manifest.NewParser(log)
	fetcher := manifest.NewFetcher(appConfig.Manifest.Path, appConfig.Manifest.FetchTimeout(), log)
	resolver := manifest.NewResolver(fetcher, parser, cache, log)

	target := relay.NewPageTarget(conn, appConfig.Bridge.Origin, log)
	dispatcher := mcp.NewDispatcher(appConfig.Bridge.ToolPrefix, resolver, invoker.New(log), target, eventBus, log)

	apiServer := api.NewServer(&appConfig.HTTP, dispatcher, cache, conn, target, eventBus, log)
	if err := apiServer.Start(); err != nil {
		log.Fatalf("Failed to start HTTP API: %v", err)
	}
	defer apiServer.Shutdown()

	// Outer channel: JSON-RPC over stdio
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	server := mcp.NewStdioServer(dispatcher, log)
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.Serve(ctx)
	}()

	log.Infof("Bridge session %s running", dispatcher.SessionID())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Infof("Received signal %s, shutting down", sig)
	case err := <-serveErr:
		if err != nil {
			log.Errorf("RPC channel closed: %v", err)
		} else {
			log.Info("RPC channel closed")
		}
	}
}
