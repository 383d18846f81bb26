package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"stationsems/internal/api"
	"stationsems/internal/config"
	"stationsems/internal/events"
	"stationsems/internal/live"
	"stationsems/internal/station"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var (
		configPath string
		port       uint16
		logLevel   string
		mqttBroker string
		enableLive bool
	)

	cmd := &cobra.Command{
		Use:   "stationsems",
		Short: "Station energy management core: allocator, HTTP API, and optional telemetry",
		RunE: func(cmd *cobra.Command, args []string) error {
			v := viper.New()
			v.BindPFlag("server.port", cmd.Flags().Lookup("port"))
			v.BindPFlag("log.level", cmd.Flags().Lookup("log-level"))
			v.BindPFlag("mqtt.broker", cmd.Flags().Lookup("mqtt-broker"))

			cfg, err := config.Load(v)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			return run(cmd.Context(), configPath, cfg, enableLive)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&configPath, "config", "c", "", "path to the station configuration JSON file (required)")
	flags.Uint16VarP(&port, "port", "p", 3000, "HTTP listen port")
	flags.StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn, error")
	flags.StringVar(&mqttBroker, "mqtt-broker", "", "MQTT broker URL for session telemetry (disabled if empty)")
	flags.BoolVar(&enableLive, "enable-live", false, "expose GET /station/status/stream for websocket status push")
	cmd.MarkFlagRequired("config")

	return cmd
}

func run(ctx context.Context, configPath string, cfg *config.Config, enableLive bool) error {
	logger := logrus.New()
	level, err := logrus.ParseLevel(cfg.Log.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	stationCfg, err := station.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("failed to load station config: %w", err)
	}
	logger.Infof("Loaded station config for %s: gridCapacity=%dkW, %d chargers", stationCfg.StationID, stationCfg.GridCapacity, len(stationCfg.Chargers))

	st := station.New(stationCfg)

	publisher, err := events.NewPublisher(events.Config{Broker: cfg.MQTT.Broker, Username: cfg.MQTT.Username, Password: cfg.MQTT.Password}, stationCfg.StationID, logger)
	if err != nil {
		return fmt.Errorf("failed to create MQTT publisher: %w", err)
	}
	defer publisher.Disconnect()

	var broadcaster *live.Broadcaster
	if enableLive {
		broadcaster = live.NewBroadcaster(st, logger)
	}

	st.OnSessionEvent = func(event station.SessionEvent, session station.Session) {
		if publisher != nil {
			publisher.Handle(event, session)
		}
		if broadcaster != nil {
			broadcaster.Handle(event, session)
		}
	}

	apiServer := api.NewServer(st, logger)
	if broadcaster != nil {
		apiServer.LiveHandler = broadcaster.Handler
	}

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      apiServer.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Infof("Listening on %s", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serveErr <- err
		}
	}()

	sigCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	select {
	case <-sigCtx.Done():
		logger.Info("Received shutdown signal")
	case err := <-serveErr:
		logger.Errorf("HTTP server error: %v", err)
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("Graceful shutdown failed: %v", err)
		return err
	}

	logger.Info("Shutdown complete")
	return nil
}
