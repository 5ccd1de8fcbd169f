package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/mowthos/mowthos-gateway/internal/cloud"
	"github.com/mowthos/mowthos-gateway/internal/models"
	"github.com/mowthos/mowthos-gateway/internal/utils"
)

// HandshakeService performs the ordered sequence of calls that turns an
// account and password into an authenticated cloud session. The step order is
// a protocol contract: login, region resolution, gateway connect, OAuth
// exchange, AEP provisioning, session establishment. No step may be skipped
// or reordered, and each step is paced to respect upstream rate limits.
type HandshakeService struct {
	loginClient    cloud.LoginClient
	gatewayFactory cloud.GatewayFactory

	policy        utils.BackoffPolicy
	courtesyDelay time.Duration
	settleDelay   time.Duration

	logger zerolog.Logger
}

// NewHandshakeService initializes and returns a new HandshakeService instance.
func NewHandshakeService(
	loginClient cloud.LoginClient,
	gatewayFactory cloud.GatewayFactory,
	policy utils.BackoffPolicy,
	courtesyDelay time.Duration,
	settleDelay time.Duration,
	logger zerolog.Logger,
) *HandshakeService {
	return &HandshakeService{
		loginClient:    loginClient,
		gatewayFactory: gatewayFactory,
		policy:         policy,
		courtesyDelay:  courtesyDelay,
		settleDelay:    settleDelay,
		logger:         logger,
	}
}

// Establish runs the full handshake for the given credential. On success it
// returns a fully populated, valid cloud session together with the login
// payload and the gateway client used, so the caller can continue with device
// discovery on the same authenticated gateway. No partial session is ever
// returned.
func (hs *HandshakeService) Establish(ctx context.Context, account, secret string) (*models.CloudSession, *models.LoginInfo, cloud.GatewayClient, error) {
	hs.logger.Info().Str("account", account).Msg("Starting cloud handshake")

	// The login endpoint throttles aggressively; give it a moment before the
	// first attempt.
	if err := utils.Sleep(ctx, hs.courtesyDelay); err != nil {
		return nil, nil, nil, err
	}

	loginInfo, err := utils.Retry(ctx, hs.logger, "login", hs.policy, func(ctx context.Context) (*models.LoginInfo, error) {
		return hs.loginClient.Login(ctx, account, secret)
	})
	if err != nil {
		return nil, nil, nil, fmt.Errorf("%w: %w", cloud.ErrAuthenticationFailed, err)
	}
	if loginInfo == nil {
		return nil, nil, nil, fmt.Errorf("%w: no login payload returned", cloud.ErrAuthenticationFailed)
	}
	if err := utils.Sleep(ctx, hs.settleDelay); err != nil {
		return nil, nil, nil, err
	}
	hs.logger.Debug().Str("country_code", loginInfo.CountryCode).Msg("Login complete")

	gateway := hs.gatewayFactory(loginInfo)

	regionID, err := utils.Retry(ctx, hs.logger, "resolve_region", hs.policy, func(ctx context.Context) (string, error) {
		return gateway.ResolveRegion(ctx, loginInfo.CountryCode)
	})
	if err != nil {
		return nil, nil, nil, fmt.Errorf("%w: resolve region: %w", cloud.ErrHandshakeFailed, err)
	}
	if err := utils.Sleep(ctx, hs.settleDelay); err != nil {
		return nil, nil, nil, err
	}

	if _, err = utils.Retry(ctx, hs.logger, "gateway_connect", hs.policy, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, gateway.Connect(ctx)
	}); err != nil {
		return nil, nil, nil, fmt.Errorf("%w: gateway connect: %w", cloud.ErrHandshakeFailed, err)
	}
	if err := utils.Sleep(ctx, hs.settleDelay); err != nil {
		return nil, nil, nil, err
	}

	if _, err = utils.Retry(ctx, hs.logger, "oauth_login", hs.policy, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, gateway.LoginByOAuth(ctx, loginInfo.CountryCode)
	}); err != nil {
		return nil, nil, nil, fmt.Errorf("%w: oauth login: %w", cloud.ErrHandshakeFailed, err)
	}
	if err := utils.Sleep(ctx, hs.settleDelay); err != nil {
		return nil, nil, nil, err
	}

	aep, err := utils.Retry(ctx, hs.logger, "aep_handshake", hs.policy, func(ctx context.Context) (*models.AEPResponse, error) {
		return gateway.HandshakeAEP(ctx)
	})
	if err != nil {
		return nil, nil, nil, fmt.Errorf("%w: aep handshake: %w", cloud.ErrHandshakeFailed, err)
	}
	if err := utils.Sleep(ctx, hs.settleDelay); err != nil {
		return nil, nil, nil, err
	}

	sessionInfo, err := utils.Retry(ctx, hs.logger, "establish_session", hs.policy, func(ctx context.Context) (*models.SessionInfo, error) {
		return gateway.EstablishSession(ctx)
	})
	if err != nil {
		return nil, nil, nil, fmt.Errorf("%w: establish session: %w", cloud.ErrHandshakeFailed, err)
	}
	if err := utils.Sleep(ctx, hs.settleDelay); err != nil {
		return nil, nil, nil, err
	}

	// A handshake that completes every step but yields a blank identity is a
	// recoverable failure mode of its own, not a success.
	if sessionInfo == nil || sessionInfo.IdentityID == "" {
		hs.logger.Error().Str("account", account).Msg("Handshake completed but session identity is blank")
		return nil, nil, nil, fmt.Errorf("%w: %w", cloud.ErrAuthenticationFailed, cloud.ErrIdentityMissing)
	}

	session := &models.CloudSession{
		RegionID:          regionID,
		ProductKey:        aep.ProductKey,
		ProductSecret:     aep.ProductSecret,
		DeviceCloudName:   aep.DeviceCloudName,
		DeviceCloudSecret: aep.DeviceCloudSecret,
		IoTToken:          sessionInfo.IoTToken,
		IdentityID:        sessionInfo.IdentityID,
		RefreshToken:      sessionInfo.RefreshToken,
		ClientID:          uuid.New().String(),
	}

	hs.logger.Info().Str("account", account).Str("region", regionID).Msg("Cloud session established")
	return session, loginInfo, gateway, nil
}
