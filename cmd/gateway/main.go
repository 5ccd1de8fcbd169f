package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/mowthos/mowthos-gateway/internal/api"
	"github.com/mowthos/mowthos-gateway/internal/cloud"
	"github.com/mowthos/mowthos-gateway/internal/models"
	"github.com/mowthos/mowthos-gateway/internal/registry"
	"github.com/mowthos/mowthos-gateway/internal/services"
	"github.com/mowthos/mowthos-gateway/internal/utils"
	"github.com/mowthos/mowthos-gateway/pkg/file"
	"github.com/mowthos/mowthos-gateway/pkg/mammotion"
	"github.com/mowthos/mowthos-gateway/pkg/mqtt"
)

func main() {
	// Set up structured logging with JSON output
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	// Load configuration from file
	fileClient := file.NewFileService()
	config, err := utils.LoadConfig("configs/config.yaml", fileClient)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to load configuration")
	}

	policy := utils.BackoffPolicy{
		MaxRetries:   config.Retry.MaxRetries,
		InitialDelay: config.Retry.InitialDelay * time.Second,
		MaxDelay:     config.Retry.MaxDelay * time.Second,
		Jitter:       true,
	}

	// Concrete protocol clients behind the collaborator interfaces
	loginClient := mammotion.NewLoginClient(config.Cloud.LoginURL, config.Cloud.AppKey, 30*time.Second, logger)
	gatewayFactory := cloud.GatewayFactory(func(login *models.LoginInfo) cloud.GatewayClient {
		return mammotion.NewGatewayClient(config.Cloud.GatewayURL, config.Cloud.AppKey, 30*time.Second, login, logger)
	})
	// Core state owners
	sessionStore := registry.NewSessionStore()
	deviceRegistry := registry.NewDeviceRegistry(logger)

	// Device reports flow straight into the registry so /status serves the
	// freshest state without a cloud round trip.
	reportHandler := cloud.ReportHandler(func(report models.DeviceReport) {
		if handle, ok := deviceRegistry.Find(report.DeviceName); ok {
			handle.ApplyReport(report)
		}
	})
	transportFactory := cloud.TransportFactory(func(session *models.CloudSession) cloud.Transport {
		return mqtt.NewTransport(session, config.Transport.QOS, config.Transport.ResponseTimeout*time.Second, reportHandler, logger)
	})

	// Core services
	handshakeService := services.NewHandshakeService(
		loginClient,
		gatewayFactory,
		policy,
		config.Cloud.CourtesyDelay*time.Second,
		config.Cloud.SettleDelay*time.Millisecond,
		logger,
	)
	transportService := services.NewTransportService(
		transportFactory,
		config.Transport.ReadyTimeout*time.Second,
		config.Transport.PollInterval*time.Second,
		logger,
	)
	bootstrapService := services.NewBootstrapService(policy, config.Bootstrap.PacingDelay*time.Second, logger)
	recoveryService := services.NewRecoveryService(sessionStore, deviceRegistry, handshakeService, transportService, logger)
	sessionService := services.NewSessionService(sessionStore, deviceRegistry, handshakeService, transportService, logger)
	dispatchService := services.NewDispatchService(
		deviceRegistry,
		sessionStore,
		transportService,
		bootstrapService,
		recoveryService,
		loginClient,
		config.Dispatch.MaxAttempts,
		logger,
	)

	handler := api.NewHandler(sessionService, dispatchService, logger)
	server := &http.Server{
		Addr:    config.Server.Address,
		Handler: api.NewRouter(handler),
	}

	go func() {
		logger.Info().Str("address", config.Server.Address).Msg("Gateway listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	// Handle graceful shutdown
	stopCh := make(chan os.Signal, 1)
	signal.Notify(stopCh, syscall.SIGINT, syscall.SIGTERM)
	<-stopCh

	logger.Info().Msg("Shutting down gracefully...")
	ctx, cancel := context.WithTimeout(context.Background(), config.Server.ShutdownTimeout*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("HTTP server shutdown failed")
	}
}
