package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/mowthos/mowthos-gateway/internal/cloud"
	"github.com/mowthos/mowthos-gateway/internal/models"
	"github.com/mowthos/mowthos-gateway/internal/registry"
)

// commandNames maps logical commands to the transport-level command names the
// device cloud expects.
var commandNames = map[models.CommandKind]string{
	models.CommandStart:        "start_job",
	models.CommandStop:         "cancel_job",
	models.CommandPause:        "pause_execute_task",
	models.CommandResume:       "resume_execute_task",
	models.CommandReturnToDock: "return_to_dock",
}

// DispatchService is the public command entry point. It validates the device,
// ensures transport readiness and bootstrap completion, sends the command and
// classifies failures into the two recovery tiers: a full session recovery
// for identity invalidation (code 29003) and a lightweight token refresh for
// every other cloud error.
type DispatchService struct {
	devices     *registry.DeviceRegistry
	sessions    *registry.SessionStore
	transport   *TransportService
	bootstrap   *BootstrapService
	recovery    *RecoveryService
	loginClient cloud.LoginClient
	maxAttempts int
	logger      zerolog.Logger
}

// NewDispatchService initializes and returns a new DispatchService instance.
func NewDispatchService(
	devices *registry.DeviceRegistry,
	sessions *registry.SessionStore,
	transport *TransportService,
	bootstrap *BootstrapService,
	recovery *RecoveryService,
	loginClient cloud.LoginClient,
	maxAttempts int,
	logger zerolog.Logger,
) *DispatchService {
	if maxAttempts <= 0 {
		maxAttempts = 2
	}
	return &DispatchService{
		devices:     devices,
		sessions:    sessions,
		transport:   transport,
		bootstrap:   bootstrap,
		recovery:    recovery,
		loginClient: loginClient,
		maxAttempts: maxAttempts,
		logger:      logger,
	}
}

// Execute dispatches a logical command to a device. Caller input errors fail
// fast without touching any collaborator. Recovery is bounded: at most one
// extra full attempt after one recovery, nothing retries indefinitely.
func (ds *DispatchService) Execute(ctx context.Context, deviceName string, kind models.CommandKind, params map[string]any) (*models.CommandResult, error) {
	handle, ok := ds.devices.Find(deviceName)
	if !ok {
		return nil, fmt.Errorf("%w: %s", cloud.ErrDeviceNotFound, deviceName)
	}

	commandName, ok := commandNames[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %q", cloud.ErrUnknownCommand, kind)
	}

	logger := ds.logger.With().Str("device", deviceName).Str("command", commandName).Logger()

	var lastErr error
	for attempt := 1; attempt <= ds.maxAttempts; attempt++ {
		if !ds.transport.WaitReady(ctx, handle.Transport()) {
			return nil, fmt.Errorf("%w: device %s", cloud.ErrConnectionNotReady, deviceName)
		}

		if !handle.BootstrapDone() {
			if err := ds.bootstrap.EnsureBootstrapped(ctx, handle); err != nil {
				if ctx.Err() != nil {
					return nil, ctx.Err()
				}
				// Bootstrap failure is advisory; the device frequently
				// accepts commands regardless.
				logger.Warn().Err(err).Msg("Proceeding to command send despite incomplete bootstrap")
			}
		}

		ack, err := handle.Transport().SendCommand(ctx, commandName, params)
		if err == nil {
			logger.Info().Int("attempt", attempt).Msg("Command acknowledged")
			return &models.CommandResult{
				DeviceName:  deviceName,
				CommandSent: commandName,
				Success:     true,
				Message:     ack.Message,
			}, nil
		}
		lastErr = err

		var cloudErr *cloud.Error
		if !errors.As(err, &cloudErr) {
			// Not a classified cloud error; the dispatcher does not retry.
			return nil, fmt.Errorf("%w: %w", cloud.ErrCommandFailed, err)
		}

		if attempt == ds.maxAttempts {
			break
		}

		if cloudErr.IdentityInvalidated() {
			logger.Warn().Int("code", cloudErr.Code).Msg("Session identity invalidated, running full recovery")
			if rerr := ds.recovery.Reestablish(ctx, handle.AccountID); rerr != nil {
				return nil, fmt.Errorf("%w: please login again: %w", cloud.ErrAuthenticationFailed, rerr)
			}
			// Recovery reset the bootstrap flag; the retry loop re-runs the
			// sequence before the next send.
			continue
		}

		logger.Warn().Int("code", cloudErr.Code).Msg("Cloud error during command send, attempting token refresh")
		entry, ok := ds.sessions.Get(handle.AccountID)
		if !ok {
			return nil, fmt.Errorf("%w: no session for account %s", cloud.ErrAuthenticationFailed, handle.AccountID)
		}
		if rerr := ds.loginClient.RefreshToken(ctx, entry.Credential.Account); rerr != nil {
			return nil, fmt.Errorf("%w: token refresh after cloud error %d: %w", cloud.ErrAuthenticationFailed, cloudErr.Code, rerr)
		}
	}

	var cloudErr *cloud.Error
	if errors.As(lastErr, &cloudErr) && cloudErr.IdentityInvalidated() {
		return nil, fmt.Errorf("%w: please login again: %w", cloud.ErrAuthenticationFailed, lastErr)
	}
	return nil, fmt.Errorf("%w: %w", cloud.ErrCommandFailed, lastErr)
}
