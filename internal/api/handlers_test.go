package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/mowthos/mowthos-gateway/internal/api"
	"github.com/mowthos/mowthos-gateway/internal/cloud"
	"github.com/mowthos/mowthos-gateway/internal/models"
)

type mockAuthenticator struct {
	mock.Mock
}

func (m *mockAuthenticator) Authenticate(ctx context.Context, account, secret, deviceNameHint string) (string, error) {
	args := m.Called(ctx, account, secret, deviceNameHint)
	return args.String(0), args.Error(1)
}

func (m *mockAuthenticator) AccountForToken(token string) (string, bool) {
	args := m.Called(token)
	return args.String(0), args.Bool(1)
}

func (m *mockAuthenticator) ListDevices(accountID string) []models.DeviceSummary {
	args := m.Called(accountID)
	var summaries []models.DeviceSummary
	if v := args.Get(0); v != nil {
		summaries = v.([]models.DeviceSummary)
	}
	return summaries
}

func (m *mockAuthenticator) DeviceStatus(deviceName string) (*models.DeviceStatus, error) {
	args := m.Called(deviceName)
	var status *models.DeviceStatus
	if v := args.Get(0); v != nil {
		status = v.(*models.DeviceStatus)
	}
	return status, args.Error(1)
}

func (m *mockAuthenticator) Logout(token string) bool {
	args := m.Called(token)
	return args.Bool(0)
}

type mockDispatcher struct {
	mock.Mock
}

func (m *mockDispatcher) Execute(ctx context.Context, deviceName string, kind models.CommandKind, params map[string]any) (*models.CommandResult, error) {
	args := m.Called(ctx, deviceName, kind, params)
	var result *models.CommandResult
	if v := args.Get(0); v != nil {
		result = v.(*models.CommandResult)
	}
	return result, args.Error(1)
}

func newTestRouter(auth *mockAuthenticator, dispatch *mockDispatcher) http.Handler {
	return api.NewRouter(api.NewHandler(auth, dispatch, zerolog.Nop()))
}

func postJSON(router http.Handler, path string, body any) *httptest.ResponseRecorder {
	payload, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestLoginRoute_Success(t *testing.T) {
	auth := new(mockAuthenticator)
	auth.On("Authenticate", mock.Anything, "alice", "pw", "Luba-1").Return("tok-1", nil)
	router := newTestRouter(auth, new(mockDispatcher))

	rec := postJSON(router, "/login", map[string]string{
		"account": "alice", "password": "pw", "device_name": "Luba-1",
	})

	assert.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "tok-1", body["session_id"])
}

func TestLoginRoute_MissingCredentials(t *testing.T) {
	auth := new(mockAuthenticator)
	router := newTestRouter(auth, new(mockDispatcher))

	rec := postJSON(router, "/login", map[string]string{"account": "alice"})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	auth.AssertNotCalled(t, "Authenticate", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestLoginRoute_AuthFailure(t *testing.T) {
	auth := new(mockAuthenticator)
	auth.On("Authenticate", mock.Anything, "alice", "bad", "").Return("", cloud.ErrAuthenticationFailed)
	router := newTestRouter(auth, new(mockDispatcher))

	rec := postJSON(router, "/login", map[string]string{"account": "alice", "password": "bad"})

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCommandRoute_Success(t *testing.T) {
	dispatch := new(mockDispatcher)
	dispatch.On("Execute", mock.Anything, "Luba-1", models.CommandStart, mock.Anything).
		Return(&models.CommandResult{DeviceName: "Luba-1", CommandSent: "start_job", Success: true}, nil)
	router := newTestRouter(new(mockAuthenticator), dispatch)

	rec := postJSON(router, "/start-mow", map[string]string{"device_name": "Luba-1"})

	assert.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "start_job", body["command_sent"])
}

func TestCommandRoute_MissingDeviceName(t *testing.T) {
	dispatch := new(mockDispatcher)
	router := newTestRouter(new(mockAuthenticator), dispatch)

	rec := postJSON(router, "/stop-mow", map[string]string{})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	dispatch.AssertNotCalled(t, "Execute", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

// TestCommandRoute_ErrorStatusMapping covers the translation of the core
// error taxonomy into HTTP statuses.
func TestCommandRoute_ErrorStatusMapping(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
	}{
		{"device not found", cloud.ErrDeviceNotFound, http.StatusNotFound},
		{"auth failed", cloud.ErrAuthenticationFailed, http.StatusUnauthorized},
		{"not ready", cloud.ErrConnectionNotReady, http.StatusServiceUnavailable},
		{"rate limited", cloud.ErrRateLimited, http.StatusTooManyRequests},
		{"command failed", cloud.ErrCommandFailed, http.StatusBadGateway},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			dispatch := new(mockDispatcher)
			dispatch.On("Execute", mock.Anything, "Luba-1", models.CommandReturnToDock, mock.Anything).Return(nil, tc.err)
			router := newTestRouter(new(mockAuthenticator), dispatch)

			rec := postJSON(router, "/return-to-dock", map[string]string{"device_name": "Luba-1"})

			assert.Equal(t, tc.status, rec.Code)
		})
	}
}

func TestDevicesRoute(t *testing.T) {
	auth := new(mockAuthenticator)
	auth.On("AccountForToken", "tok-1").Return("alice", true)
	auth.On("ListDevices", "alice").Return([]models.DeviceSummary{{Name: "Luba-1", Model: "HM030060LBAWD"}})
	router := newTestRouter(auth, new(mockDispatcher))

	req := httptest.NewRequest(http.MethodGet, "/devices", nil)
	req.Header.Set("X-Session-ID", "tok-1")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Devices []models.DeviceSummary `json:"devices"`
	}
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Len(t, body.Devices, 1)
	assert.Equal(t, "Luba-1", body.Devices[0].Name)
}

func TestDevicesRoute_InvalidSession(t *testing.T) {
	auth := new(mockAuthenticator)
	auth.On("AccountForToken", "").Return("", false)
	router := newTestRouter(auth, new(mockDispatcher))

	req := httptest.NewRequest(http.MethodGet, "/devices", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestStatusRoute(t *testing.T) {
	auth := new(mockAuthenticator)
	auth.On("DeviceStatus", "Luba-1").Return(&models.DeviceStatus{
		DeviceName:   "Luba-1",
		Online:       true,
		WorkMode:     "mowing",
		WorkModeCode: 16,
		BatteryLevel: 84,
		WorkProgress: 37,
	}, nil)
	router := newTestRouter(auth, new(mockDispatcher))

	req := httptest.NewRequest(http.MethodGet, "/status?device_name=Luba-1", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	var body models.DeviceStatus
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "Luba-1", body.DeviceName)
	assert.Equal(t, "mowing", body.WorkMode)
	assert.Equal(t, 84, body.BatteryLevel)
}

func TestStatusRoute_MissingDeviceName(t *testing.T) {
	auth := new(mockAuthenticator)
	router := newTestRouter(auth, new(mockDispatcher))

	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	auth.AssertNotCalled(t, "DeviceStatus", mock.Anything)
}

func TestStatusRoute_DeviceNotFound(t *testing.T) {
	auth := new(mockAuthenticator)
	auth.On("DeviceStatus", "Ghost-9").Return(nil, cloud.ErrDeviceNotFound)
	router := newTestRouter(auth, new(mockDispatcher))

	req := httptest.NewRequest(http.MethodGet, "/status?device_name=Ghost-9", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestLogoutRoute(t *testing.T) {
	auth := new(mockAuthenticator)
	auth.On("Logout", "tok-1").Return(true)
	router := newTestRouter(auth, new(mockDispatcher))

	req := httptest.NewRequest(http.MethodPost, "/logout", nil)
	req.Header.Set("X-Session-ID", "tok-1")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHealthRoute(t *testing.T) {
	router := newTestRouter(new(mockAuthenticator), new(mockDispatcher))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
}
