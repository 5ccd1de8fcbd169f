package services_test

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/mowthos/mowthos-gateway/internal/mocks"
	"github.com/mowthos/mowthos-gateway/internal/models"
	"github.com/mowthos/mowthos-gateway/internal/registry"
	"github.com/mowthos/mowthos-gateway/internal/services"
)

func newHandleWith(transport *mocks.MockTransport) *registry.DeviceHandle {
	r := registry.NewDeviceRegistry(zerolog.Nop())
	session := &models.CloudSession{IdentityID: "id-1", IoTToken: "t", RefreshToken: "r"}
	return r.Upsert("alice", models.DeviceDescriptor{DeviceName: "Luba-1"}, session, transport)
}

// TestBootstrap_RunsFixedSequence verifies the nine synchronization commands
// run in their exact order and the device ends enabled.
func TestBootstrap_RunsFixedSequence(t *testing.T) {
	transport := new(mocks.MockTransport)
	transport.On("SendCommand", mock.Anything, mock.Anything, mock.Anything).Return(okAck, nil)
	handle := newHandleWith(transport)

	bs := services.NewBootstrapService(fastPolicy, 0, zerolog.Nop())
	err := bs.EnsureBootstrapped(context.Background(), handle)

	assert.NoError(t, err)
	assert.True(t, handle.BootstrapDone())
	assert.False(t, handle.Suspended())
	assert.Equal(t, []string{
		"sync", "stop_report_cfg", "get_report_cfg", "rtk_pairing",
		"sync", "rtk_pairing", "rtk_pairing", "sync", "rtk_pairing",
	}, transport.SentCommands())
}

// TestBootstrap_Idempotent verifies a second call sends nothing.
func TestBootstrap_Idempotent(t *testing.T) {
	transport := new(mocks.MockTransport)
	transport.On("SendCommand", mock.Anything, mock.Anything, mock.Anything).Return(okAck, nil)
	handle := newHandleWith(transport)

	bs := services.NewBootstrapService(fastPolicy, 0, zerolog.Nop())
	assert.NoError(t, bs.EnsureBootstrapped(context.Background(), handle))
	assert.NoError(t, bs.EnsureBootstrapped(context.Background(), handle))

	assert.Len(t, transport.SentCommands(), 9)
}

// TestBootstrap_FailureLeavesBootstrapPending verifies an aborted sequence
// does not mark the device as bootstrapped.
func TestBootstrap_FailureLeavesBootstrapPending(t *testing.T) {
	transport := new(mocks.MockTransport)
	transport.On("SendCommand", mock.Anything, "sync", mock.Anything).Return(okAck, nil)
	transport.On("SendCommand", mock.Anything, "stop_report_cfg", mock.Anything).Return(nil, assert.AnError)
	handle := newHandleWith(transport)

	bs := services.NewBootstrapService(fastPolicy, 0, zerolog.Nop())
	err := bs.EnsureBootstrapped(context.Background(), handle)

	assert.Error(t, err)
	assert.False(t, handle.BootstrapDone())
	// The failing step was retried to exhaustion before aborting.
	transport.AssertNumberOfCalls(t, "SendCommand", 1+fastPolicy.MaxRetries)
}

// TestBootstrap_CancellationDoesNotMarkDone verifies a cancelled run leaves
// the handle eligible for another attempt.
func TestBootstrap_CancellationDoesNotMarkDone(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	transport := new(mocks.MockTransport)
	transport.On("SendCommand", mock.Anything, mock.Anything, mock.Anything).Run(func(mock.Arguments) {
		cancel()
	}).Return(okAck, nil)
	handle := newHandleWith(transport)

	bs := services.NewBootstrapService(fastPolicy, time.Hour, zerolog.Nop())
	err := bs.EnsureBootstrapped(ctx, handle)

	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, handle.BootstrapDone())
}
