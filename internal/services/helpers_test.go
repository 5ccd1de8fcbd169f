package services_test

import (
	"time"

	"github.com/mowthos/mowthos-gateway/internal/cloud"
	"github.com/mowthos/mowthos-gateway/internal/mocks"
	"github.com/mowthos/mowthos-gateway/internal/models"
	"github.com/mowthos/mowthos-gateway/internal/utils"

	"github.com/stretchr/testify/mock"
)

// fastPolicy keeps retries cheap in tests while preserving attempt counts.
var fastPolicy = utils.BackoffPolicy{
	MaxRetries:   3,
	InitialDelay: time.Millisecond,
	MaxDelay:     2 * time.Millisecond,
	Jitter:       true,
}

var testLoginInfo = &models.LoginInfo{
	UserID:            "user-1",
	CountryCode:       "DE",
	AuthorizationCode: "auth-code",
}

var testAEP = &models.AEPResponse{
	ProductKey:        "pk",
	ProductSecret:     "ps",
	DeviceCloudName:   "dev-cloud",
	DeviceCloudSecret: "dcs",
}

func testSessionInfo(identity string) *models.SessionInfo {
	return &models.SessionInfo{
		IdentityID:   identity,
		IoTToken:     "iot-token",
		RefreshToken: "refresh-token",
	}
}

// newHappyGateway returns a gateway mock where every handshake step succeeds
// and the session identity is populated.
func newHappyGateway(identity string) *mocks.MockGatewayClient {
	gateway := new(mocks.MockGatewayClient)
	gateway.On("ResolveRegion", mock.Anything, "DE").Return("eu-central-1", nil)
	gateway.On("Connect", mock.Anything).Return(nil)
	gateway.On("LoginByOAuth", mock.Anything, "DE").Return(nil)
	gateway.On("HandshakeAEP", mock.Anything).Return(testAEP, nil)
	gateway.On("EstablishSession", mock.Anything).Return(testSessionInfo(identity), nil)
	return gateway
}

// newReadyTransport returns a transport mock that reports connected and ready.
func newReadyTransport() *mocks.MockTransport {
	transport := new(mocks.MockTransport)
	transport.On("Connect", mock.Anything).Return(nil)
	transport.On("IsConnected").Return(true)
	transport.On("IsReady").Return(true)
	return transport
}

func gatewayFactoryFor(gateway cloud.GatewayClient) cloud.GatewayFactory {
	return func(*models.LoginInfo) cloud.GatewayClient { return gateway }
}

func transportFactoryFor(transport cloud.Transport) cloud.TransportFactory {
	return func(*models.CloudSession) cloud.Transport { return transport }
}

// okAck is a successful transport acknowledgement.
var okAck = &models.CommandAck{MessageID: "msg-1", Code: 0}
