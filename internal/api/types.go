package api

import "github.com/mowthos/mowthos-gateway/internal/models"

type loginRequest struct {
	Account    string `json:"account"`
	Password   string `json:"password"`
	DeviceName string `json:"device_name,omitempty"`
}

type loginResponse struct {
	Success    bool   `json:"success"`
	Message    string `json:"message"`
	DeviceName string `json:"device_name,omitempty"`
	SessionID  string `json:"session_id,omitempty"`
}

type commandRequest struct {
	DeviceName string         `json:"device_name"`
	Params     map[string]any `json:"params,omitempty"`
}

type commandResponse struct {
	Success     bool   `json:"success"`
	Message     string `json:"message"`
	CommandSent string `json:"command_sent,omitempty"`
}

type deviceListResponse struct {
	Devices []models.DeviceSummary `json:"devices"`
}

type healthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Service   string `json:"service"`
}

type errorResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}
