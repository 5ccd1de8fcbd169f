package services

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/mowthos/mowthos-gateway/internal/cloud"
	"github.com/mowthos/mowthos-gateway/internal/registry"
)

// RecoveryService re-establishes an account's cloud session after the server
// invalidates its identity. Recovery is coalesced per account: concurrent
// dispatch failures share a single handshake instead of each starting their
// own against a rate-limited upstream.
type RecoveryService struct {
	sessions  *registry.SessionStore
	devices   *registry.DeviceRegistry
	handshake *HandshakeService
	transport *TransportService

	group  singleflight.Group
	logger zerolog.Logger
}

// NewRecoveryService initializes and returns a new RecoveryService instance.
func NewRecoveryService(
	sessions *registry.SessionStore,
	devices *registry.DeviceRegistry,
	handshake *HandshakeService,
	transport *TransportService,
	logger zerolog.Logger,
) *RecoveryService {
	return &RecoveryService{
		sessions:  sessions,
		devices:   devices,
		handshake: handshake,
		transport: transport,
		logger:    logger,
	}
}

// Reestablish re-runs the full handshake and transport bind for the account
// using its stored credential, then rebinds every device previously known
// under the account with its bootstrap state reset. The session entry is
// replaced as a whole, never patched.
func (rs *RecoveryService) Reestablish(ctx context.Context, accountID string) error {
	_, err, shared := rs.group.Do(accountID, func() (any, error) {
		return nil, rs.reestablish(ctx, accountID)
	})
	if shared {
		rs.logger.Debug().Str("account", accountID).Msg("Joined in-flight session recovery")
	}
	return err
}

func (rs *RecoveryService) reestablish(ctx context.Context, accountID string) error {
	credential, ok := rs.sessions.Credential(accountID)
	if !ok || credential.Secret == "" {
		return fmt.Errorf("%w: no password available for %s", cloud.ErrAuthenticationFailed, accountID)
	}

	rs.logger.Info().Str("account", accountID).Msg("Re-establishing cloud session")

	session, _, _, err := rs.handshake.Establish(ctx, credential.Account, credential.Secret)
	if err != nil {
		rs.logger.Error().Err(err).Str("account", accountID).Msg("Session recovery handshake failed")
		return err
	}

	transport := rs.transport.Bind(ctx, session)
	if !rs.sessions.ReplaceSession(accountID, session, transport) {
		return fmt.Errorf("%w: session for %s disappeared during recovery", cloud.ErrAuthenticationFailed, accountID)
	}

	for _, handle := range rs.devices.ForAccount(accountID) {
		rs.devices.Upsert(accountID, handle.Descriptor(), session, transport)
		// The cloud has no memory of the old session's sync state.
		handle.SetBootstrapDone(false)
	}

	rs.logger.Info().Str("account", accountID).Msg("Cloud session recovered")
	return nil
}
