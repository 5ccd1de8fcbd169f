package cloud

import (
	"context"

	"github.com/mowthos/mowthos-gateway/internal/models"
)

// LoginClient is the HTTP login collaborator of the device cloud.
type LoginClient interface {
	// Login authenticates the account and returns the login payload. A nil
	// payload without an error is treated as an authentication failure by
	// the handshake.
	Login(ctx context.Context, account, secret string) (*models.LoginInfo, error)

	// RefreshToken performs a lightweight re-login using only the account
	// identifier observed at login time. It is the first recovery tier for
	// cloud errors that do not invalidate the session identity.
	RefreshToken(ctx context.Context, account string) error
}

// GatewayClient drives the per-account cloud gateway handshake. Implementations
// are stateful: each step builds on the artifacts of the previous one, and the
// step order of the handshake state machine must be respected by callers.
type GatewayClient interface {
	ResolveRegion(ctx context.Context, countryCode string) (string, error)
	Connect(ctx context.Context) error
	LoginByOAuth(ctx context.Context, countryCode string) error
	HandshakeAEP(ctx context.Context) (*models.AEPResponse, error)
	EstablishSession(ctx context.Context) (*models.SessionInfo, error)

	// ListBindings enumerates the devices bound to the authenticated account.
	ListBindings(ctx context.Context) ([]models.DeviceDescriptor, error)
}

// GatewayFactory builds a fresh gateway client for one handshake run.
type GatewayFactory func(login *models.LoginInfo) GatewayClient
