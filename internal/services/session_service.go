package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/mowthos/mowthos-gateway/internal/cloud"
	"github.com/mowthos/mowthos-gateway/internal/models"
	"github.com/mowthos/mowthos-gateway/internal/registry"
)

// SessionService is the authentication boundary of the gateway. It drives the
// handshake, binds the transport, discovers the account's devices and hands
// out gateway session tokens.
type SessionService struct {
	sessions  *registry.SessionStore
	devices   *registry.DeviceRegistry
	handshake *HandshakeService
	transport *TransportService
	logger    zerolog.Logger
}

// NewSessionService initializes and returns a new SessionService instance.
func NewSessionService(
	sessions *registry.SessionStore,
	devices *registry.DeviceRegistry,
	handshake *HandshakeService,
	transport *TransportService,
	logger zerolog.Logger,
) *SessionService {
	return &SessionService{
		sessions:  sessions,
		devices:   devices,
		handshake: handshake,
		transport: transport,
		logger:    logger,
	}
}

// Authenticate logs the account into the device cloud, populates the device
// registry and returns a session token. The credential is retained in memory
// for the lifetime of the session so recovery can re-authenticate without
// user interaction. If deviceNameHint is non-empty the named device must
// exist under the account.
func (ss *SessionService) Authenticate(ctx context.Context, account, secret, deviceNameHint string) (string, error) {
	session, loginInfo, gateway, err := ss.handshake.Establish(ctx, account, secret)
	if err != nil {
		return "", err
	}
	if !session.Valid() {
		return "", fmt.Errorf("%w: %w", cloud.ErrAuthenticationFailed, cloud.ErrIdentityMissing)
	}

	transport := ss.transport.Bind(ctx, session)
	if !ss.transport.WaitReady(ctx, transport) {
		// Not fatal at login time; dispatch verifies readiness per command.
		ss.logger.Warn().Str("account", account).Msg("Transport not ready yet after login")
	}

	descriptors, err := gateway.ListBindings(ctx)
	if err != nil {
		return "", fmt.Errorf("%w: list device bindings: %w", cloud.ErrHandshakeFailed, err)
	}
	if len(descriptors) == 0 {
		return "", fmt.Errorf("%w: no devices bound to account", cloud.ErrDeviceNotFound)
	}

	if deviceNameHint != "" {
		found := false
		for _, desc := range descriptors {
			if desc.DeviceName == deviceNameHint {
				found = true
				break
			}
		}
		if !found {
			return "", fmt.Errorf("%w: %s", cloud.ErrDeviceNotFound, deviceNameHint)
		}
	}

	token := uuid.New().String()
	ss.sessions.Put(&registry.AccountSession{
		AccountID:  account,
		Token:      token,
		Credential: models.Credential{Account: account, Secret: secret},
		LoginInfo:  loginInfo,
		Session:    session,
		Transport:  transport,
		CreatedAt:  time.Now(),
	})

	for _, desc := range descriptors {
		ss.devices.Upsert(account, desc, session, transport)
	}

	ss.logger.Info().Str("account", account).Int("devices", len(descriptors)).Msg("Account authenticated")
	return token, nil
}

// AccountForToken resolves a gateway session token to its account id.
func (ss *SessionService) AccountForToken(token string) (string, bool) {
	entry, ok := ss.sessions.GetByToken(token)
	if !ok {
		return "", false
	}
	return entry.AccountID, true
}

// ListDevices returns summaries for every device known under the account.
func (ss *SessionService) ListDevices(accountID string) []models.DeviceSummary {
	handles := ss.devices.ForAccount(accountID)
	summaries := make([]models.DeviceSummary, 0, len(handles))
	for _, handle := range handles {
		summaries = append(summaries, handle.Summary())
	}
	return summaries
}

// DeviceStatus returns the last reported state of a device.
func (ss *SessionService) DeviceStatus(deviceName string) (*models.DeviceStatus, error) {
	handle, ok := ss.devices.Find(deviceName)
	if !ok {
		return nil, fmt.Errorf("%w: %s", cloud.ErrDeviceNotFound, deviceName)
	}
	status := handle.Status()
	return &status, nil
}

// Logout destroys the session identified by the token along with the device
// handles it owns. Credentials are dropped with the session.
func (ss *SessionService) Logout(token string) bool {
	entry, ok := ss.sessions.GetByToken(token)
	if !ok {
		return false
	}
	ss.devices.RemoveAccount(entry.AccountID)
	removed := ss.sessions.Remove(entry.AccountID)
	if removed {
		ss.logger.Info().Str("account", entry.AccountID).Msg("Account logged out")
	}
	return removed
}
