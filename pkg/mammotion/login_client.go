// Package mammotion implements the HTTP side of the device-cloud protocol:
// account login, token refresh, and the gateway handshake endpoints. The core
// only consumes these through the cloud collaborator interfaces.
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

// LoginClient talks to the device cloud's HTTP login endpoints.
type LoginClient struct {
	baseURL    string
	appKey     string
	httpClient *http.Client
	logger     zerolog.Logger
}

// NewLoginClient creates a login client for the given base URL.
func NewLoginClient(baseURL, appKey string, timeout time.Duration, logger zerolog.Logger) *LoginClient {
	return &LoginClient{
		baseURL:    baseURL,
		appKey:     appKey,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

type loginRequest struct {
	Account  string `json:"account"`
	Password string `json:"password"`
	AppKey   string `json:"app_key"`
}

type loginResponse struct {
	Code int               `json:"code"`
	Msg  string            `json:"msg"`
	Data *models.LoginInfo `json:"data"`
}

// Login authenticates the account against the HTTP login endpoint.
func (lc *LoginClient) Login(ctx context.Context, account, secret string) (*models.LoginInfo, error) {
	var response loginResponse
	if err := lc.post(ctx, "/api/v1/user/login", loginRequest{Account: account, Password: secret, AppKey: lc.appKey}, &response); err != nil {
		return nil, err
	}
	if response.Code != 0 {
		return nil, &cloud.Error{Code: response.Code, Message: response.Msg}
	}
	return response.Data, nil
}

// RefreshToken performs a lightweight re-login using only the account
// identifier observed at login time.
func (lc *LoginClient) RefreshToken(ctx context.Context, account string) error {
	var response loginResponse
	if err := lc.post(ctx, "/api/v1/user/refresh", loginRequest{Account: account, AppKey: lc.appKey}, &response); err != nil {
		return err
	}
	if response.Code != 0 {
		return &cloud.Error{Code: response.Code, Message: response.Msg}
	}
	return nil
}

func (lc *LoginClient) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to serialize request for %s: %w", path, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, lc.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := lc.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request to %s failed: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		lc.logger.Warn().Str("path", path).Msg("Login endpoint throttled the request")
		return fmt.Errorf("%w: %s", cloud.ErrRateLimited, path)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("request to %s returned status %d", path, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to parse response from %s: %w", path, err)
	}
	return nil
}
