package cloud

import (
	"context"

	"github.com/mowthos/mowthos-gateway/internal/models"
)

// Transport is the publish/subscribe connection to the device cloud. One
// transport exists per cloud session and is shared by every device bound to
// that session.
type Transport interface {
	// Connect initiates the connection. It returns once the attempt has been
	// started; readiness is observed through IsConnected and IsReady.
	Connect(ctx context.Context) error

	// IsConnected reports whether the underlying connection is open.
	IsConnected() bool

	// IsReady reports whether the connection has completed its internal
	// negotiation and is safe to send commands on.
	IsReady() bool

	// SendCommand publishes a command and waits for the correlated
	// acknowledgement. Cloud-side rejections are returned as *Error.
	SendCommand(ctx context.Context, name string, params map[string]any) (*models.CommandAck, error)

	// Disconnect closes the connection, waiting up to quiesce milliseconds
	// for in-flight work.
	Disconnect(quiesce uint)
}

// TransportFactory builds a transport from an established cloud session.
type TransportFactory func(session *models.CloudSession) Transport

// ReportHandler consumes state snapshots the devices push over the report
// topic. Implementations must not block; reports arrive on the transport's
// receive path.
type ReportHandler func(report models.DeviceReport)
