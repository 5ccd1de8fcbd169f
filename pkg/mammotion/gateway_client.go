package mammotion

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/mowthos/mowthos-gateway/internal/cloud"
	"github.com/mowthos/mowthos-gateway/internal/models"
)

// GatewayClient drives the cloud gateway handshake over HTTP. It is stateful:
// each handshake step stores the artifacts the next step depends on, so one
// client instance serves exactly one handshake run.
type GatewayClient struct {
	baseURL    string
	appKey     string
	httpClient *http.Client
	logger     zerolog.Logger

	login    *models.LoginInfo
	regionID string
	oauthOK  bool
	aep      *models.AEPResponse
	session  *models.SessionInfo
}

// NewGatewayClient creates a gateway client bound to one login payload.
func NewGatewayClient(baseURL, appKey string, timeout time.Duration, login *models.LoginInfo, logger zerolog.Logger) *GatewayClient {
	return &GatewayClient{
		baseURL:    baseURL,
		appKey:     appKey,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
		login:      login,
	}
}

type gatewayResponse struct {
	Code int             `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

// ResolveRegion resolves the gateway region for the account's country code.
func (gc *GatewayClient) ResolveRegion(ctx context.Context, countryCode string) (string, error) {
	var data struct {
		RegionID string `json:"region_id"`
	}
	err := gc.post(ctx, "/api/v1/region", map[string]any{
		"country_code": countryCode,
		"auth_code":    gc.login.AuthorizationCode,
	}, &data)
	if err != nil {
		return "", err
	}
	gc.regionID = data.RegionID
	return data.RegionID, nil
}

// Connect opens the gateway-side connection for the resolved region.
func (gc *GatewayClient) Connect(ctx context.Context) error {
	return gc.post(ctx, "/api/v1/connect", map[string]any{
		"region_id": gc.regionID,
		"app_key":   gc.appKey,
	}, nil)
}

// LoginByOAuth exchanges the authorization code for an OAuth-style grant.
func (gc *GatewayClient) LoginByOAuth(ctx context.Context, countryCode string) error {
	err := gc.post(ctx, "/api/v1/oauth/login", map[string]any{
		"country_code": countryCode,
		"auth_code":    gc.login.AuthorizationCode,
	}, nil)
	if err != nil {
		return err
	}
	gc.oauthOK = true
	return nil
}

// HandshakeAEP performs the device-provisioning handshake.
func (gc *GatewayClient) HandshakeAEP(ctx context.Context) (*models.AEPResponse, error) {
	var data models.AEPResponse
	if err := gc.post(ctx, "/api/v1/aep/handshake", map[string]any{"region_id": gc.regionID}, &data); err != nil {
		return nil, err
	}
	gc.aep = &data
	return &data, nil
}

// EstablishSession exchanges the accumulated handshake artifacts for a
// session identity and iot token.
func (gc *GatewayClient) EstablishSession(ctx context.Context) (*models.SessionInfo, error) {
	var data models.SessionInfo
	err := gc.post(ctx, "/api/v1/session", map[string]any{
		"auth_code": gc.login.AuthorizationCode,
		"region_id": gc.regionID,
	}, &data)
	if err != nil {
		return nil, err
	}
	gc.session = &data
	return &data, nil
}

// ListBindings enumerates the devices bound to the authenticated account.
func (gc *GatewayClient) ListBindings(ctx context.Context) ([]models.DeviceDescriptor, error) {
	var data struct {
		Devices []models.DeviceDescriptor `json:"devices"`
	}
	if err := gc.post(ctx, "/api/v1/devices", map[string]any{"region_id": gc.regionID}, &data); err != nil {
		return nil, err
	}
	return data.Devices, nil
}

func (gc *GatewayClient) post(ctx context.Context, path string, body any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to serialize request for %s: %w", path, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, gc.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if gc.session != nil {
		req.Header.Set("X-IoT-Token", gc.session.IoTToken)
	}

	resp, err := gc.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request to %s failed: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		gc.logger.Warn().Str("path", path).Msg("Gateway endpoint throttled the request")
		return fmt.Errorf("%w: %s", cloud.ErrRateLimited, path)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("request to %s returned status %d", path, resp.StatusCode)
	}

	var envelope gatewayResponse
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("failed to parse response from %s: %w", path, err)
	}
	if envelope.Code != 0 {
		return &cloud.Error{Code: envelope.Code, Message: envelope.Msg}
	}
	if out != nil && len(envelope.Data) > 0 {
		if err := json.Unmarshal(envelope.Data, out); err != nil {
			return fmt.Errorf("failed to parse payload from %s: %w", path, err)
		}
	}
	return nil
}
