package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aramirez92/gprs-sim900/at"
	"github.com/aramirez92/gprs-sim900/sim900"
)

func main() {
	flag.String("serial-port", "/dev/ttyAMA0", "Serial port to connect to the modem")
	flag.Int("baud-rate", 115200, "Baud rate for serial communication")
	flag.String("bind-address", "0.0.0.0:8080", "Bind address for the HTTP server")
	flag.String("log-level", "info", "Log level (debug, info, warn, error)")
	flag.Int("power-pin", -1, "GPIO number of the modem power line (negative disables power cycling)")
	flag.String("mqtt-broker", "", "MQTT broker URL (empty disables MQTT)")
	flag.Parse()

	config, err := LoadConfig(WithDefaults(), WithEnv(), WithFlags(flag.CommandLine))
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	logLevel := slog.LevelInfo
	switch config.LogLevel {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	}

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))

	builder := sim900.NewConfigBuilder().
		WithDialer(sim900.SerialDialer{
			PortName: config.SerialPort,
			BaudRate: config.BaudRate,
		}).
		WithLogger(logger.With("component", "sim900"))

	if config.PowerPin >= 0 {
		pin, err := openPowerPin(config.PowerPin)
		if err != nil {
			logger.Error("Failed to open power pin", "error", err, "pin", config.PowerPin)
			os.Exit(1)
		}
		builder = builder.WithPowerLine(pin)
	}

	modemConfig, err := builder.Build()
	if err != nil {
		logger.Error("Failed to create modem config", "error", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	modem, err := sim900.New(ctx, modemConfig)
	if err != nil {
		logger.Error("Failed to create modem", "error", err)
		os.Exit(1)
	}

	go func() {
		if err := modem.Loop(ctx); err != nil && err != context.Canceled {
			logger.Error("Engine loop exited", "error", err)
		}
	}()

	contactCtx, contactCancel := context.WithTimeout(ctx, 2*time.Minute)
	if err := modem.EstablishContact(contactCtx); err != nil {
		contactCancel()
		logger.Error("Failed to establish modem contact", "error", err)
		os.Exit(1)
	}
	contactCancel()

	modem.RegisterNotification(at.UrcNewMsg, func(frame string) {
		logger.Info("New SMS stored on modem", "frame", frame)
	})
	modem.RegisterNotification(at.UrcRing, func(frame string) {
		logger.Info("Incoming call", "frame", frame)
	})
	modem.RegisterWildcard(func(frame string) {
		logger.Debug("Unsolicited frame", "frame", frame)
	})

	startMQTT(ctx, config, logger.With("component", "mqtt"), modem)

	httpServer := &http.Server{
		Addr: config.BindAddress,
		Handler: &Server{
			Logger: logger.With("component", "server"),
			Modem:  modem,
		},
	}

	go func() {
		logger.Info("Starting HTTP server", "address", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("HTTP server failed", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("Received shutdown signal")

	logger.Info("Closing modem connection")
	if err := modem.Close(); err != nil {
		logger.Error("Failed to close modem", "error", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	logger.Info("Closing HTTP server")
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("Failed to gracefully shutdown server", "error", err)
		os.Exit(1)
	}
}
