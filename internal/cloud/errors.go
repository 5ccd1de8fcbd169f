package cloud

import (
	"errors"
	"fmt"
)

// CodeIdentityMissing is returned by the device cloud when the session
// identity backing a request has been invalidated server-side. It requires a
// full re-handshake; a token refresh is not sufficient.
const CodeIdentityMissing = 29003

// Sentinel errors for the failure taxonomy of the session and dispatch core.
var (
	// ErrAuthenticationFailed means credentials were rejected, or recovery
	// was impossible or failed. The session is unusable and the user must
	// log in again.
	ErrAuthenticationFailed = errors.New("authentication failed")

	// ErrHandshakeFailed means a post-login handshake step exhausted its
	// retries.
	ErrHandshakeFailed = errors.New("cloud handshake failed")

	// ErrIdentityMissing means the handshake completed every step but the
	// cloud returned a blank session identity.
	ErrIdentityMissing = errors.New("identityId is missing")

	// ErrRateLimited signals transient upstream throttling. It is absorbed
	// by the backoff executor and only visible when retries exhaust.
	ErrRateLimited = errors.New("rate limited by upstream")

	// ErrConnectionNotReady means the transport did not become ready within
	// its timeout. The caller may retry the whole operation later.
	ErrConnectionNotReady = errors.New("transport connection not ready")

	// ErrDeviceNotFound and ErrUnknownCommand are caller input errors and
	// fail fast without any network calls.
	ErrDeviceNotFound = errors.New("device not found")
	ErrUnknownCommand = errors.New("unknown command")

	// ErrCommandFailed wraps any other transport or cloud failure during a
	// command send. The underlying cause is preserved in the chain.
	ErrCommandFailed = errors.New("command failed")
)

// Error is a classified device-cloud error carrying the upstream error code
// and the device the request targeted. The dispatcher branches on Code to
// select its recovery tier.
type Error struct {
	Code     int
	DeviceID string
	Message  string
}

func (e *Error) Error() string {
	if e.DeviceID != "" {
		return fmt.Sprintf("cloud error %d for device %s: %s", e.Code, e.DeviceID, e.Message)
	}
	return fmt.Sprintf("cloud error %d: %s", e.Code, e.Message)
}

// IdentityInvalidated reports whether the error signals a server-side
// invalidation of the whole session identity.
func (e *Error) IdentityInvalidated() bool {
	return e.Code == CodeIdentityMissing
}
