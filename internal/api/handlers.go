package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/mowthos/mowthos-gateway/internal/cloud"
	"github.com/mowthos/mowthos-gateway/internal/models"
)

// serviceName identifies the gateway in health responses.
const serviceName = "Mowthos Mower Control Gateway"

// sessionHeader carries the gateway session token on authenticated routes.
const sessionHeader = "X-Session-ID"

// Authenticator is the session boundary consumed by the HTTP layer.
type Authenticator interface {
	Authenticate(ctx context.Context, account, secret, deviceNameHint string) (string, error)
	AccountForToken(token string) (string, bool)
	ListDevices(accountID string) []models.DeviceSummary
	DeviceStatus(deviceName string) (*models.DeviceStatus, error)
	Logout(token string) bool
}

// Dispatcher is the command boundary consumed by the HTTP layer.
type Dispatcher interface {
	Execute(ctx context.Context, deviceName string, kind models.CommandKind, params map[string]any) (*models.CommandResult, error)
}

// Handler serves the gateway's HTTP routes.
type Handler struct {
	auth     Authenticator
	dispatch Dispatcher
	logger   zerolog.Logger
}

// NewHandler initializes a new Handler instance.
func NewHandler(auth Authenticator, dispatch Dispatcher, logger zerolog.Logger) *Handler {
	return &Handler{
		auth:     auth,
		dispatch: dispatch,
		logger:   logger,
	}
}

// Login authenticates the account against the device cloud and returns a
// gateway session token.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Account == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "account and password are required")
		return
	}

	token, err := h.auth.Authenticate(r.Context(), req.Account, req.Password, req.DeviceName)
	if err != nil {
		h.logger.Error().Err(err).Str("account", req.Account).Msg("Login failed")
		writeError(w, statusForError(err), "Login failed: "+err.Error())
		return
	}

	writeJSON(w, http.StatusOK, loginResponse{
		Success:    true,
		Message:    "Login successful",
		DeviceName: req.DeviceName,
		SessionID:  token,
	})
}

// Logout destroys the session named by the session header.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	token := r.Header.Get(sessionHeader)
	if token == "" || !h.auth.Logout(token) {
		writeError(w, http.StatusUnauthorized, "invalid session")
		return
	}
	writeJSON(w, http.StatusOK, commandResponse{Success: true, Message: "Logged out"})
}

// ListDevices returns the devices known under the caller's account.
func (h *Handler) ListDevices(w http.ResponseWriter, r *http.Request) {
	accountID, ok := h.auth.AccountForToken(r.Header.Get(sessionHeader))
	if !ok {
		writeError(w, http.StatusUnauthorized, "invalid session")
		return
	}
	writeJSON(w, http.StatusOK, deviceListResponse{Devices: h.auth.ListDevices(accountID)})
}

// Command returns a handler dispatching the given logical command, mirroring
// one route per command.
func (h *Handler) Command(kind models.CommandKind, successMessage string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req commandRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.DeviceName == "" {
			writeError(w, http.StatusBadRequest, "device_name is required")
			return
		}

		result, err := h.dispatch.Execute(r.Context(), req.DeviceName, kind, req.Params)
		if err != nil {
			h.logger.Error().Err(err).Str("device", req.DeviceName).Str("kind", string(kind)).Msg("Command dispatch failed")
			writeError(w, statusForError(err), err.Error())
			return
		}

		writeJSON(w, http.StatusOK, commandResponse{
			Success:     true,
			Message:     successMessage,
			CommandSent: result.CommandSent,
		})
	}
}

// Status returns the last reported state of the device named by the
// device_name query parameter.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	deviceName := r.URL.Query().Get("device_name")
	if deviceName == "" {
		writeError(w, http.StatusBadRequest, "device_name is required")
		return
	}

	status, err := h.auth.DeviceStatus(deviceName)
	if err != nil {
		writeError(w, statusForError(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, status)
}

// Health reports the gateway's liveness.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:    "healthy",
		Timestamp: time.Now().Format(time.RFC3339),
		Service:   serviceName,
	})
}

// statusForError maps the core error taxonomy onto HTTP status codes.
func statusForError(err error) int {
	switch {
	case errors.Is(err, cloud.ErrDeviceNotFound):
		return http.StatusNotFound
	case errors.Is(err, cloud.ErrUnknownCommand):
		return http.StatusBadRequest
	case errors.Is(err, cloud.ErrAuthenticationFailed):
		return http.StatusUnauthorized
	case errors.Is(err, cloud.ErrConnectionNotReady):
		return http.StatusServiceUnavailable
	case errors.Is(err, cloud.ErrRateLimited):
		return http.StatusTooManyRequests
	default:
		return http.StatusBadGateway
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Success: false, Message: message})
}
