package registry

import (
	"sync"
	"time"

	cmap "github.com/orcaman/concurrent-map/v2"
	"github.com/rs/zerolog"

	"github.com/mowthos/mowthos-gateway/internal/cloud"
	"github.com/mowthos/mowthos-gateway/internal/models"
)

// DeviceHandle is the per-device state tracked by the gateway. A handle is
// created when the device is first discovered under an account and updated in
// place when the same device is rediscovered. Handles are never removed while
// the owning account session is alive.
type DeviceHandle struct {
	Name      string
	IoTID     string
	AccountID string
	Model     string

	mu              sync.RWMutex
	transport       cloud.Transport
	sessionIdentity string
	suspended       bool
	bootstrapDone   bool
	lastReport      *models.DeviceReport
	lastReportAt    time.Time

	// bootstrapMu serializes bootstrap runs so concurrent first commands to
	// the same device execute the sequence at most once.
	bootstrapMu sync.Mutex
}

// Transport returns the transport the handle is currently bound to.
func (h *DeviceHandle) Transport() cloud.Transport {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.transport
}

// Suspended reports whether the device is still blocked from receiving
// commands. Devices start suspended until the bootstrap sequence enables them.
func (h *DeviceHandle) Suspended() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.suspended
}

// SetSuspended updates the suspension flag.
func (h *DeviceHandle) SetSuspended(suspended bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.suspended = suspended
}

// BootstrapDone reports whether the device has completed its per-session
// synchronization sequence.
func (h *DeviceHandle) BootstrapDone() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.bootstrapDone
}

// SetBootstrapDone updates the bootstrap flag.
func (h *DeviceHandle) SetBootstrapDone(done bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.bootstrapDone = done
}

// LockBootstrap acquires the per-device bootstrap lock.
func (h *DeviceHandle) LockBootstrap() { h.bootstrapMu.Lock() }

// UnlockBootstrap releases the per-device bootstrap lock.
func (h *DeviceHandle) UnlockBootstrap() { h.bootstrapMu.Unlock() }

// Descriptor reconstructs the discovery descriptor for the handle, used when
// rebinding devices after a session recovery.
func (h *DeviceHandle) Descriptor() models.DeviceDescriptor {
	return models.DeviceDescriptor{
		DeviceName: h.Name,
		IoTID:      h.IoTID,
		Model:      h.Model,
	}
}

// Summary returns the API view of the handle.
func (h *DeviceHandle) Summary() models.DeviceSummary {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return models.DeviceSummary{
		Name:          h.Name,
		IoTID:         h.IoTID,
		Model:         h.Model,
		BootstrapDone: h.bootstrapDone,
		Suspended:     h.suspended,
	}
}

// ApplyReport stores the latest state snapshot pushed by the device.
func (h *DeviceHandle) ApplyReport(report models.DeviceReport) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.lastReport = &report
	h.lastReportAt = time.Now()
}

// Status returns the API view of the device's last reported state. Before the
// first report arrives only the name and transport liveness are populated.
func (h *DeviceHandle) Status() models.DeviceStatus {
	h.mu.RLock()
	defer h.mu.RUnlock()

	status := models.DeviceStatus{
		DeviceName: h.Name,
		Online:     h.transport != nil && h.transport.IsConnected(),
	}
	if h.lastReport != nil {
		status.WorkModeCode = h.lastReport.SysStatus
		status.WorkMode = models.WorkModeName(h.lastReport.SysStatus)
		status.BatteryLevel = h.lastReport.BatteryLevel
		status.ChargingState = h.lastReport.ChargeState
		status.BladeStatus = h.lastReport.BladeStatus
		status.WorkProgress = h.lastReport.WorkProgress
		status.WorkArea = h.lastReport.WorkArea
		status.Location = h.lastReport.Location
		status.LastUpdated = h.lastReportAt
	}
	return status
}

func (h *DeviceHandle) rebind(session *models.CloudSession, transport cloud.Transport) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.transport = transport
	if h.sessionIdentity != session.IdentityID {
		// The cloud has no memory of the old session's sync state, so the
		// bootstrap sequence must run again under the new identity.
		h.bootstrapDone = false
		h.sessionIdentity = session.IdentityID
	}
}

// DeviceRegistry tracks known devices by device name and binds each one to a
// cloud session and transport.
type DeviceRegistry struct {
	devices cmap.ConcurrentMap[string, *DeviceHandle]
	logger  zerolog.Logger
}

// NewDeviceRegistry creates an empty registry.
func NewDeviceRegistry(logger zerolog.Logger) *DeviceRegistry {
	return &DeviceRegistry{
		devices: cmap.New[*DeviceHandle](),
		logger:  logger,
	}
}

// Upsert registers a device under an account or, if the device name is
// already known, replaces its transport binding. Bootstrap state is preserved
// only when the session identity is unchanged.
func (r *DeviceRegistry) Upsert(accountID string, desc models.DeviceDescriptor, session *models.CloudSession, transport cloud.Transport) *DeviceHandle {
	if handle, ok := r.devices.Get(desc.DeviceName); ok {
		handle.rebind(session, transport)
		r.logger.Debug().Str("device", desc.DeviceName).Msg("Rebound existing device handle")
		return handle
	}

	handle := &DeviceHandle{
		Name:            desc.DeviceName,
		IoTID:           desc.IoTID,
		AccountID:       accountID,
		Model:           desc.Model,
		transport:       transport,
		sessionIdentity: session.IdentityID,
		suspended:       true,
		bootstrapDone:   false,
	}
	r.devices.Set(desc.DeviceName, handle)
	r.logger.Info().Str("device", desc.DeviceName).Str("account", accountID).Msg("Registered new device handle")
	return handle
}

// Find returns the handle for a device name via direct indexed lookup.
func (r *DeviceRegistry) Find(deviceName string) (*DeviceHandle, bool) {
	return r.devices.Get(deviceName)
}

// ForAccount returns every handle bound to the given account.
func (r *DeviceRegistry) ForAccount(accountID string) []*DeviceHandle {
	var handles []*DeviceHandle
	for _, handle := range r.devices.Items() {
		if handle.AccountID == accountID {
			handles = append(handles, handle)
		}
	}
	return handles
}

// RemoveAccount drops every handle bound to the given account. Called on
// logout, when the owning session is destroyed.
func (r *DeviceRegistry) RemoveAccount(accountID string) {
	for name, handle := range r.devices.Items() {
		if handle.AccountID == accountID {
			r.devices.Remove(name)
		}
	}
}
