package services

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/mowthos/mowthos-gateway/internal/cloud"
	"github.com/mowthos/mowthos-gateway/internal/models"
	"github.com/mowthos/mowthos-gateway/internal/utils"
)

// TransportService constructs publish/subscribe transports from established
// cloud sessions and exposes readiness polling.
type TransportService struct {
	factory      cloud.TransportFactory
	readyTimeout time.Duration
	pollInterval time.Duration
	logger       zerolog.Logger
}

// NewTransportService initializes and returns a new TransportService instance.
func NewTransportService(factory cloud.TransportFactory, readyTimeout, pollInterval time.Duration, logger zerolog.Logger) *TransportService {
	return &TransportService{
		factory:      factory,
		readyTimeout: readyTimeout,
		pollInterval: pollInterval,
		logger:       logger,
	}
}

// Bind builds a transport from the session fields and initiates an
// asynchronous connect. Connection progress is observed through WaitReady.
func (ts *TransportService) Bind(ctx context.Context, session *models.CloudSession) cloud.Transport {
	transport := ts.factory(session)
	if err := transport.Connect(ctx); err != nil {
		ts.logger.Warn().Err(err).Str("region", session.RegionID).Msg("Initial transport connect attempt failed")
	}
	return transport
}

// WaitReady polls the transport until it is connected and ready, re-triggering
// a connect whenever the connection is down. It returns false, not an error,
// if the transport does not become ready within the timeout; the caller
// decides whether that is fatal.
func (ts *TransportService) WaitReady(ctx context.Context, transport cloud.Transport) bool {
	deadline := time.Now().Add(ts.readyTimeout)

	for {
		if transport.IsConnected() && transport.IsReady() {
			return true
		}
		if !transport.IsConnected() {
			if err := transport.Connect(ctx); err != nil {
				ts.logger.Warn().Err(err).Msg("Transport reconnect attempt failed")
			}
		}
		if time.Now().After(deadline) {
			ts.logger.Warn().Dur("timeout", ts.readyTimeout).Msg("Transport did not become ready within timeout")
			return false
		}
		if err := utils.Sleep(ctx, ts.pollInterval); err != nil {
			return false
		}
	}
}
