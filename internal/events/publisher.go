// Package events fans session lifecycle transitions out to an MQTT
// broker, for fleets that want a telemetry feed alongside the HTTP API.
package events

import (
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"stationsems/internal/station"
)

// Config describes how to reach the broker. An empty Broker means
// telemetry is disabled; NewPublisher returns a nil, no-op Publisher in
// that case rather than erroring, since telemetry is an optional extra
// on top of every session operation, never a dependency of one.
type Config struct {
	Broker   string
	Username string
	Password string
	ClientID string
}

// connectorID is the wire shape of a station.ConnectorID, nested rather
// than flattened so it matches the rest of the request surface.
type connectorID struct {
	ChargerID string `json:"chargerId"`
	Idx       uint8  `json:"idx"`
}

// sessionEventMessage is the wire format published to
// stations/<stationId>/events.
type sessionEventMessage struct {
	Event           string      `json:"event"`
	SessionID       uuid.UUID   `json:"sessionId"`
	ConnectorID     connectorID `json:"connectorId"`
	AllocatedPower  uint32      `json:"allocatedPower"`
	VehicleMaxPower uint32      `json:"vehicleMaxPower"`
	Timestamp       time.Time   `json:"timestamp"`
}

// Publisher fans station.State session events out to an MQTT broker.
type Publisher struct {
	client    mqtt.Client
	stationID string
	logger    *logrus.Logger
}

// NewPublisher connects to the broker described by cfg. If cfg.Broker is
// empty it returns (nil, nil): callers should treat a nil *Publisher as
// "telemetry disabled" and skip wiring its Handle method.
func NewPublisher(cfg Config, stationID string, logger *logrus.Logger) (*Publisher, error) {
	if cfg.Broker == "" {
		return nil, nil
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	clientID := cfg.ClientID
	if clientID == "" {
		clientID = "stationsems-" + stationID
	}
	opts.SetClientID(clientID)
	opts.SetUsername(cfg.Username)
	opts.SetPassword(cfg.Password)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(5 * time.Second)
	opts.SetKeepAlive(60 * time.Second)
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		logger.Errorf("MQTT connection lost: %v", err)
	})

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker: %w", token.Error())
	}
	logger.Info("Connected to MQTT broker for session telemetry")

	return &Publisher{client: client, stationID: stationID, logger: logger}, nil
}

// Disconnect closes the broker connection. Safe to call on a nil
// Publisher.
func (p *Publisher) Disconnect() {
	if p == nil {
		return
	}
	p.client.Disconnect(250)
}

// Handle is the station.State.OnSessionEvent hook. It publishes at QoS 1
// and never blocks the caller on broker acknowledgement.
func (p *Publisher) Handle(event station.SessionEvent, session station.Session) {
	msg := sessionEventMessage{
		Event:           string(event),
		SessionID:       session.ID,
		ConnectorID:     connectorID{ChargerID: session.ConnectorID.ChargerID, Idx: session.ConnectorID.Idx},
		AllocatedPower:  session.AllocatedPower,
		VehicleMaxPower: session.VehicleMaxPower,
		Timestamp:       time.Now().UTC(),
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		p.logger.Errorf("Failed to marshal session event: %v", err)
		return
	}

	topic := fmt.Sprintf("stations/%s/events", p.stationID)
	token := p.client.Publish(topic, 1, false, payload)
	go func() {
		if token.Wait() && token.Error() != nil {
			p.logger.Errorf("Failed to publish session event: %v", token.Error())
		}
	}()
}
