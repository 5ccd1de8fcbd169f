package registry_test

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"github.com/mowthos/mowthos-gateway/internal/mocks"
	"github.com/mowthos/mowthos-gateway/internal/models"
	"github.com/mowthos/mowthos-gateway/internal/registry"
)

func testSession(identity string) *models.CloudSession {
	return &models.CloudSession{
		RegionID:     "eu-central-1",
		IdentityID:   identity,
		IoTToken:     "iot-token",
		RefreshToken: "refresh-token",
	}
}

// TestDeviceRegistry_Upsert_NewDevice verifies a freshly discovered device
// starts suspended with bootstrap pending.
func TestDeviceRegistry_Upsert_NewDevice(t *testing.T) {
	r := registry.NewDeviceRegistry(zerolog.Nop())
	transport := new(mocks.MockTransport)

	handle := r.Upsert("alice", models.DeviceDescriptor{DeviceName: "Luba-1", IoTID: "iot-1"}, testSession("id-1"), transport)

	assert.True(t, handle.Suspended())
	assert.False(t, handle.BootstrapDone())
	assert.Equal(t, "alice", handle.AccountID)

	found, ok := r.Find("Luba-1")
	assert.True(t, ok)
	assert.Same(t, handle, found)
}

// TestDeviceRegistry_Upsert_SameIdentityPreservesBootstrap verifies a re-login
// under the same session identity keeps accumulated bootstrap state.
func TestDeviceRegistry_Upsert_SameIdentityPreservesBootstrap(t *testing.T) {
	r := registry.NewDeviceRegistry(zerolog.Nop())
	session := testSession("id-1")

	handle := r.Upsert("alice", models.DeviceDescriptor{DeviceName: "Luba-1"}, session, new(mocks.MockTransport))
	handle.SetBootstrapDone(true)

	replacement := new(mocks.MockTransport)
	rebound := r.Upsert("alice", models.DeviceDescriptor{DeviceName: "Luba-1"}, session, replacement)

	assert.Same(t, handle, rebound)
	assert.True(t, rebound.BootstrapDone())
	assert.Same(t, replacement, rebound.Transport())
}

// TestDeviceRegistry_Upsert_NewIdentityResetsBootstrap verifies a full
// re-authentication resets bootstrap state, since the cloud side has no memory
// of the old session's sync state.
func TestDeviceRegistry_Upsert_NewIdentityResetsBootstrap(t *testing.T) {
	r := registry.NewDeviceRegistry(zerolog.Nop())

	handle := r.Upsert("alice", models.DeviceDescriptor{DeviceName: "Luba-1"}, testSession("id-1"), new(mocks.MockTransport))
	handle.SetBootstrapDone(true)

	rebound := r.Upsert("alice", models.DeviceDescriptor{DeviceName: "Luba-1"}, testSession("id-2"), new(mocks.MockTransport))

	assert.Same(t, handle, rebound)
	assert.False(t, rebound.BootstrapDone())
}

// TestDeviceHandle_StatusBeforeFirstReport verifies the status surface is
// usable before any report arrives: name and liveness only.
func TestDeviceHandle_StatusBeforeFirstReport(t *testing.T) {
	r := registry.NewDeviceRegistry(zerolog.Nop())
	transport := new(mocks.MockTransport)
	transport.On("IsConnected").Return(true)

	handle := r.Upsert("alice", models.DeviceDescriptor{DeviceName: "Luba-1"}, testSession("id-1"), transport)
	status := handle.Status()

	assert.Equal(t, "Luba-1", status.DeviceName)
	assert.True(t, status.Online)
	assert.Empty(t, status.WorkMode)
	assert.True(t, status.LastUpdated.IsZero())
}

// TestDeviceHandle_ApplyReport verifies a pushed report is reflected in the
// status view, including the work mode name resolution.
func TestDeviceHandle_ApplyReport(t *testing.T) {
	r := registry.NewDeviceRegistry(zerolog.Nop())
	transport := new(mocks.MockTransport)
	transport.On("IsConnected").Return(false)

	handle := r.Upsert("alice", models.DeviceDescriptor{DeviceName: "Luba-1"}, testSession("id-1"), transport)
	handle.ApplyReport(models.DeviceReport{
		DeviceName:   "Luba-1",
		SysStatus:    16,
		BatteryLevel: 84,
		ChargeState:  0,
		BladeStatus:  true,
		WorkProgress: 37,
		WorkArea:     120,
		Location:     &models.DeviceLocation{Latitude: 48.13, Longitude: 11.57, PositionType: 1, Orientation: 90},
	})

	status := handle.Status()
	assert.False(t, status.Online)
	assert.Equal(t, 16, status.WorkModeCode)
	assert.Equal(t, "mowing", status.WorkMode)
	assert.Equal(t, 84, status.BatteryLevel)
	assert.True(t, status.BladeStatus)
	assert.Equal(t, 37, status.WorkProgress)
	assert.Equal(t, 120, status.WorkArea)
	assert.NotNil(t, status.Location)
	assert.InDelta(t, 48.13, status.Location.Latitude, 0.001)
	assert.False(t, status.LastUpdated.IsZero())
}

// TestDeviceRegistry_Find_NotFound verifies the indexed lookup misses cleanly.
func TestDeviceRegistry_Find_NotFound(t *testing.T) {
	r := registry.NewDeviceRegistry(zerolog.Nop())

	_, ok := r.Find("Ghost-9")
	assert.False(t, ok)
}

// TestDeviceRegistry_ForAccount verifies per-account enumeration and removal.
func TestDeviceRegistry_ForAccount(t *testing.T) {
	r := registry.NewDeviceRegistry(zerolog.Nop())
	session := testSession("id-1")

	r.Upsert("alice", models.DeviceDescriptor{DeviceName: "Luba-1"}, session, new(mocks.MockTransport))
	r.Upsert("alice", models.DeviceDescriptor{DeviceName: "Luba-2"}, session, new(mocks.MockTransport))
	r.Upsert("bob", models.DeviceDescriptor{DeviceName: "Yuka-1"}, session, new(mocks.MockTransport))

	assert.Len(t, r.ForAccount("alice"), 2)
	assert.Len(t, r.ForAccount("bob"), 1)

	r.RemoveAccount("alice")
	assert.Empty(t, r.ForAccount("alice"))
	_, ok := r.Find("Yuka-1")
	assert.True(t, ok)
}
