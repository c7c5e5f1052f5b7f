package sink

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/visiona/camflow"
)

// MQTTConfig parameterizes the event sink.
type MQTTConfig struct {
	Broker   string
	ClientID string
	// TopicPrefix is prepended to "/events". Default "camflow".
	TopicPrefix string
	QoS         byte
	// Fields lists the packet fields the sink requests from the graph.
	// Request only fields the enabled nodes provide.
	Fields []camflow.Field
	// SkipStill drops frames where no motion was detected, in addition
	// to frames marked Drop.
	SkipStill bool
}

// event is the wire payload, one per published frame.
type event struct {
	FrameID    uint64              `json:"frame_id"`
	TraceID    string              `json:"trace_id"`
	Timestamp  time.Time           `json:"timestamp"`
	Motion     bool                `json:"motion"`
	Detections []camflow.Detection `json:"detections,omitempty"`
	OCRTexts   []string            `json:"ocr_texts,omitempty"`
}

// MQTT publishes one JSON event per completed frame. The client
// auto-reconnects; publishes while disconnected count as errors and the
// frame's event is lost, never queued.
type MQTT struct {
	cfg    MQTTConfig
	topic  string
	client mqtt.Client
	logger *slog.Logger

	mu        sync.RWMutex
	connected bool
	published uint64
	errors    uint64
}

// MQTTStats is a snapshot of sink counters.
type MQTTStats struct {
	Connected bool
	Published uint64
	Errors    uint64
}

// NewMQTT connects to the broker and returns the sink. Connection is
// verified up front; later losses are ridden out by auto-reconnect.
func NewMQTT(cfg MQTTConfig, logger *slog.Logger) (*MQTT, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.TopicPrefix == "" {
		cfg.TopicPrefix = "camflow"
	}

	s := &MQTT{
		cfg:    cfg,
		topic:  cfg.TopicPrefix + "/events",
		logger: logger,
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s", cfg.Broker))
	opts.SetClientID(cfg.ClientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(2 * time.Second)
	opts.SetMaxReconnectInterval(30 * time.Second)

	opts.OnConnect = func(c mqtt.Client) {
		s.mu.Lock()
		s.connected = true
		s.mu.Unlock()
		logger.Info("mqtt connected", "broker", cfg.Broker, "client_id", cfg.ClientID)
	}
	opts.OnConnectionLost = func(c mqtt.Client, err error) {
		s.mu.Lock()
		s.connected = false
		s.mu.Unlock()
		logger.Warn("mqtt connection lost, auto-reconnecting", "error", err, "broker", cfg.Broker)
	}

	s.client = mqtt.NewClient(opts)

	token := s.client.Connect()
	if !token.WaitTimeout(5 * time.Second) {
		return nil, fmt.Errorf("mqtt connect timeout: %s", cfg.Broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connect: %w", err)
	}

	s.mu.Lock()
	s.connected = true
	s.mu.Unlock()
	return s, nil
}

func (s *MQTT) Name() string { return "mqtt" }

func (s *MQTT) Requests() []camflow.Field { return s.cfg.Fields }

func (s *MQTT) Consume(pkt *camflow.FramePacket) error {
	if pkt.Drop {
		return nil
	}
	if s.cfg.SkipStill && !pkt.Motion {
		return nil
	}
	if !s.isConnected() {
		s.countError()
		return fmt.Errorf("mqtt not connected")
	}

	payload, err := json.Marshal(event{
		FrameID:    pkt.ID,
		TraceID:    pkt.TraceID,
		Timestamp:  pkt.Timestamp,
		Motion:     pkt.Motion,
		Detections: pkt.Detections,
		OCRTexts:   pkt.OCRTexts,
	})
	if err != nil {
		s.countError()
		return fmt.Errorf("marshal event: %w", err)
	}

	token := s.client.Publish(s.topic, s.cfg.QoS, false, payload)
	if !token.WaitTimeout(2 * time.Second) {
		s.countError()
		return fmt.Errorf("mqtt publish timeout")
	}
	if err := token.Error(); err != nil {
		s.countError()
		return fmt.Errorf("mqtt publish: %w", err)
	}

	s.mu.Lock()
	s.published++
	s.mu.Unlock()
	return nil
}

func (s *MQTT) Close() error {
	if s.client != nil && s.client.IsConnected() {
		s.client.Disconnect(250)
	}
	s.mu.Lock()
	s.connected = false
	s.mu.Unlock()
	return nil
}

// Stats returns a snapshot of the sink counters.
func (s *MQTT) Stats() MQTTStats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return MQTTStats{Connected: s.connected, Published: s.published, Errors: s.errors}
}

func (s *MQTT) isConnected() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.connected
}

func (s *MQTT) countError() {
	s.mu.Lock()
	s.errors++
	s.mu.Unlock()
}
