// Package mocks provides hand-written testify doubles for the cloud
// collaborator interfaces.
package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/mowthos/mowthos-gateway/internal/models"
)

// MockLoginClient is a mock implementation of the cloud.LoginClient interface.
type MockLoginClient struct {
	mock.Mock
}

func (m *MockLoginClient) Login(ctx context.Context, account, secret string) (*models.LoginInfo, error) {
	args := m.Called(ctx, account, secret)
	var info *models.LoginInfo
	if v := args.Get(0); v != nil {
		info = v.(*models.LoginInfo)
	}
	return info, args.Error(1)
}

func (m *MockLoginClient) RefreshToken(ctx context.Context, account string) error {
	args := m.Called(ctx, account)
	return args.Error(0)
}

// MockGatewayClient is a mock implementation of the cloud.GatewayClient interface.
type MockGatewayClient struct {
	mock.Mock
}

func (m *MockGatewayClient) ResolveRegion(ctx context.Context, countryCode string) (string, error) {
	args := m.Called(ctx, countryCode)
	return args.String(0), args.Error(1)
}

func (m *MockGatewayClient) Connect(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockGatewayClient) LoginByOAuth(ctx context.Context, countryCode string) error {
	args := m.Called(ctx, countryCode)
	return args.Error(0)
}

func (m *MockGatewayClient) HandshakeAEP(ctx context.Context) (*models.AEPResponse, error) {
	args := m.Called(ctx)
	var aep *models.AEPResponse
	if v := args.Get(0); v != nil {
		aep = v.(*models.AEPResponse)
	}
	return aep, args.Error(1)
}

func (m *MockGatewayClient) EstablishSession(ctx context.Context) (*models.SessionInfo, error) {
	args := m.Called(ctx)
	var info *models.SessionInfo
	if v := args.Get(0); v != nil {
		info = v.(*models.SessionInfo)
	}
	return info, args.Error(1)
}

func (m *MockGatewayClient) ListBindings(ctx context.Context) ([]models.DeviceDescriptor, error) {
	args := m.Called(ctx)
	var descriptors []models.DeviceDescriptor
	if v := args.Get(0); v != nil {
		descriptors = v.([]models.DeviceDescriptor)
	}
	return descriptors, args.Error(1)
}

// MockTransport is a mock implementation of the cloud.Transport interface.
type MockTransport struct {
	mock.Mock
}

func (m *MockTransport) Connect(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockTransport) IsConnected() bool {
	args := m.Called()
	return args.Bool(0)
}

func (m *MockTransport) IsReady() bool {
	args := m.Called()
	return args.Bool(0)
}

func (m *MockTransport) SendCommand(ctx context.Context, name string, params map[string]any) (*models.CommandAck, error) {
	args := m.Called(ctx, name, params)
	var ack *models.CommandAck
	if v := args.Get(0); v != nil {
		ack = v.(*models.CommandAck)
	}
	return ack, args.Error(1)
}

func (m *MockTransport) Disconnect(quiesce uint) {
	m.Called(quiesce)
}

// SentCommands returns the command names passed to SendCommand, in call order.
func (m *MockTransport) SentCommands() []string {
	var names []string
	for _, call := range m.Calls {
		if call.Method == "SendCommand" {
			names = append(names, call.Arguments.String(1))
		}
	}
	return names
}
