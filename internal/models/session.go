// Package models defines the domain data structures shared across the
// gateway: credentials, handshake artifacts, sessions and commands.
package models

// Credential is an account login pair. The secret is kept in memory for the
// lifetime of the session so a recovery can re-authenticate without user
// interaction. It is never persisted or logged.
type Credential struct {
	Account string
	Secret  string
}

// LoginInfo is the payload returned by the account login endpoint. The
// authorization code feeds the subsequent gateway handshake steps.
type LoginInfo struct {
	UserID            string `json:"user_id"`
	Email             string `json:"email,omitempty"`
	CountryCode       string `json:"country_code"`
	AuthorizationCode string `json:"authorization_code"`
}

// AEPResponse is the payload of the device-provisioning handshake step.
type AEPResponse struct {
	ProductKey        string `json:"product_key"`
	ProductSecret     string `json:"product_secret"`
	DeviceCloudName   string `json:"device_name"`
	DeviceCloudSecret string `json:"device_secret"`
}

// SessionInfo is the payload of the final session-establishment step.
type SessionInfo struct {
	IdentityID   string `json:"identity_id"`
	IoTToken     string `json:"iot_token"`
	RefreshToken string `json:"refresh_token"`
}

// CloudSession aggregates everything the handshake produced for one account.
// Instances are immutable once built; a recovery constructs a replacement
// rather than patching fields.
type CloudSession struct {
	RegionID          string
	ProductKey        string
	ProductSecret     string
	DeviceCloudName   string
	DeviceCloudSecret string
	IoTToken          string
	IdentityID        string
	RefreshToken      string
	ClientID          string
}

// Valid reports whether the session carries every artifact command dispatch
// depends on. A session failing this check must never be stored.
func (s *CloudSession) Valid() bool {
	return s != nil && s.IdentityID != "" && s.IoTToken != "" && s.RefreshToken != ""
}
