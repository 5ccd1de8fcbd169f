package mqtt

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	mqttLib "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/mowthos/mowthos-gateway/internal/cloud"
	"github.com/mowthos/mowthos-gateway/internal/models"
)

// commandEnvelope is the wire form of an outgoing command.
type commandEnvelope struct {
	ID     string         `json:"id"`
	Method string         `json:"method"`
	Params map[string]any `json:"params,omitempty"`
}

// commandReply is the wire form of an acknowledgement on the reply topic.
type commandReply struct {
	ID       string         `json:"id"`
	Code     int            `json:"code"`
	Message  string         `json:"message,omitempty"`
	DeviceID string         `json:"device_id,omitempty"`
	Data     map[string]any `json:"data,omitempty"`
}

// deviceReportMessage is the wire form of a state snapshot on the report topic.
type deviceReportMessage struct {
	DeviceName string `json:"device_name"`
	Dev        struct {
		SysStatus   int  `json:"sys_status"`
		BatteryVal  int  `json:"battery_val"`
		ChargeState int  `json:"charge_state"`
		BladeStatus bool `json:"blade_status"`
	} `json:"dev"`
	Work struct {
		Progress int `json:"progress"`
		Area     int `json:"area"`
	} `json:"work"`
	Location *models.DeviceLocation `json:"location,omitempty"`
}

// Transport is the paho-backed publish/subscribe connection to the device
// cloud. It becomes ready once the connection is open and the reply topic
// subscription is in place.
type Transport struct {
	client mqttLib.Client

	commandTopic    string
	replyTopic      string
	reportTopic     string
	qos             byte
	responseTimeout time.Duration
	reportHandler   cloud.ReportHandler

	mu      sync.Mutex
	pending map[string]chan commandReply
	ready   atomic.Bool

	logger zerolog.Logger
}

// NewTransport builds a transport from the fields of an established cloud
// session. The connection is not opened until Connect is called.
func NewTransport(session *models.CloudSession, qos int, responseTimeout time.Duration, reportHandler cloud.ReportHandler, logger zerolog.Logger) *Transport {
	t := &Transport{
		commandTopic:    fmt.Sprintf("/%s/%s/app/down/command", session.ProductKey, session.DeviceCloudName),
		replyTopic:      fmt.Sprintf("/%s/%s/app/up/command_reply", session.ProductKey, session.DeviceCloudName),
		reportTopic:     fmt.Sprintf("/%s/%s/app/up/report", session.ProductKey, session.DeviceCloudName),
		qos:             byte(qos),
		responseTimeout: responseTimeout,
		reportHandler:   reportHandler,
		pending:         make(map[string]chan commandReply),
		logger:          logger,
	}

	broker := fmt.Sprintf("tls://%s.itls.%s.aliyuncs.com:1883", session.ProductKey, session.RegionID)

	opts := mqttLib.NewClientOptions()
	opts.AddBroker(broker)
	opts.SetClientID(session.ClientID)
	opts.SetUsername(fmt.Sprintf("%s&%s", session.DeviceCloudName, session.ProductKey))
	opts.SetPassword(session.IoTToken)
	opts.SetTLSConfig(&tls.Config{MinVersion: tls.VersionTLS12})
	opts.SetAutoReconnect(true)
	opts.SetOnConnectHandler(t.onConnect)
	opts.SetConnectionLostHandler(func(_ mqttLib.Client, err error) {
		t.ready.Store(false)
		t.logger.Warn().Err(err).Msg("Transport connection lost")
	})

	t.client = mqttLib.NewClient(opts)
	return t
}

// onConnect completes the readiness negotiation by subscribing to the reply
// topic. Until the subscription is acknowledged the transport is connected
// but not ready.
func (t *Transport) onConnect(client mqttLib.Client) {
	token := client.Subscribe(t.replyTopic, t.qos, t.handleReply)
	go func() {
		token.Wait()
		if err := token.Error(); err != nil {
			t.logger.Error().Err(err).Str("topic", t.replyTopic).Msg("Failed to subscribe to reply topic")
			return
		}
		t.ready.Store(true)
		t.logger.Info().Str("topic", t.replyTopic).Msg("Transport ready")
	}()

	// Report delivery is best effort; a failed subscription degrades status
	// freshness but never command dispatch.
	if t.reportHandler != nil {
		reportToken := client.Subscribe(t.reportTopic, t.qos, t.handleReport)
		go func() {
			reportToken.Wait()
			if err := reportToken.Error(); err != nil {
				t.logger.Warn().Err(err).Str("topic", t.reportTopic).Msg("Failed to subscribe to report topic")
			}
		}()
	}
}

func (t *Transport) handleReport(_ mqttLib.Client, msg mqttLib.Message) {
	var report deviceReportMessage
	if err := json.Unmarshal(msg.Payload(), &report); err != nil {
		t.logger.Error().Err(err).Msg("Error parsing device report")
		return
	}

	t.reportHandler(models.DeviceReport{
		DeviceName:   report.DeviceName,
		SysStatus:    report.Dev.SysStatus,
		BatteryLevel: report.Dev.BatteryVal,
		ChargeState:  report.Dev.ChargeState,
		BladeStatus:  report.Dev.BladeStatus,
		WorkProgress: report.Work.Progress,
		WorkArea:     report.Work.Area,
		Location:     report.Location,
	})
}

func (t *Transport) handleReply(_ mqttLib.Client, msg mqttLib.Message) {
	var reply commandReply
	if err := json.Unmarshal(msg.Payload(), &reply); err != nil {
		t.logger.Error().Err(err).Msg("Error parsing command reply")
		return
	}

	t.mu.Lock()
	ch, ok := t.pending[reply.ID]
	if ok {
		delete(t.pending, reply.ID)
	}
	t.mu.Unlock()

	if !ok {
		t.logger.Warn().Str("id", reply.ID).Msg("Dropping reply with no waiting sender")
		return
	}
	ch <- reply
}

// Connect initiates the connection without blocking on the handshake.
// Progress is observed through IsConnected and IsReady.
func (t *Transport) Connect(ctx context.Context) error {
	token := t.client.Connect()
	go func() {
		token.Wait()
		if err := token.Error(); err != nil {
			t.logger.Warn().Err(err).Msg("Transport connect attempt failed")
		}
	}()
	return nil
}

// IsConnected reports whether the underlying MQTT connection is open.
func (t *Transport) IsConnected() bool {
	return t.client.IsConnectionOpen()
}

// IsReady reports whether the reply-topic subscription is established.
func (t *Transport) IsReady() bool {
	return t.ready.Load()
}

// SendCommand publishes the command envelope and waits for the correlated
// acknowledgement. A non-zero reply code is returned as a classified
// *cloud.Error so the dispatcher can select a recovery tier.
func (t *Transport) SendCommand(ctx context.Context, name string, params map[string]any) (*models.CommandAck, error) {
	envelope := commandEnvelope{
		ID:     uuid.New().String(),
		Method: name,
		Params: params,
	}
	payload, err := json.Marshal(envelope)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize command %s: %w", name, err)
	}

	replyCh := make(chan commandReply, 1)
	t.mu.Lock()
	t.pending[envelope.ID] = replyCh
	t.mu.Unlock()

	defer func() {
		t.mu.Lock()
		delete(t.pending, envelope.ID)
		t.mu.Unlock()
	}()

	ctx, cancel := context.WithTimeout(ctx, t.responseTimeout)
	defer cancel()

	token := t.client.Publish(t.commandTopic, t.qos, false, payload)
	select {
	case <-token.Done():
		if err := token.Error(); err != nil {
			return nil, fmt.Errorf("failed to publish command %s: %w", name, err)
		}
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	select {
	case reply := <-replyCh:
		if reply.Code != 0 {
			return nil, &cloud.Error{
				Code:     reply.Code,
				DeviceID: reply.DeviceID,
				Message:  reply.Message,
			}
		}
		return &models.CommandAck{
			MessageID: reply.ID,
			Code:      reply.Code,
			Message:   reply.Message,
			Data:      reply.Data,
		}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Disconnect gracefully disconnects the MQTT client.
func (t *Transport) Disconnect(quiesce uint) {
	t.ready.Store(false)
	t.client.Disconnect(quiesce)
}
