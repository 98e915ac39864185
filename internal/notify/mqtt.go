package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/oshokin/catpoint/internal/config"
	domain "github.com/oshokin/catpoint/internal/domain/security"
	"github.com/oshokin/catpoint/internal/logger"
)

const (
	// connectTimeout bounds the initial broker connection.
	connectTimeout = 30 * time.Second
	// publishTimeout bounds a single publish.
	publishTimeout = 10 * time.Second
	// disconnectQuiesce is how long Disconnect waits for in-flight work, in milliseconds.
	disconnectQuiesce = 250
	// queueSize is the number of notifications buffered for the publisher.
	queueSize = 64
)

var (
	errConnectTimeout = errors.New("mqtt connection timeout")
	errPublishTimeout = errors.New("mqtt publish timeout")
	errNotConnected   = errors.New("not connected to mqtt broker")
)

// Publisher sends a payload to a topic.
type Publisher interface {
	Publish(ctx context.Context, topic string, retained bool, payload []byte) error
}

// MQTTClient is a Publisher backed by a paho MQTT client.
type MQTTClient struct {
	client mqtt.Client
}

// DialMQTT connects to the broker described by cfg.
func DialMQTT(ctx context.Context, cfg *config.MQTTConfig) (*MQTTClient, error) {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	opts.SetUsername(cfg.Username)
	opts.SetPassword(cfg.Password)
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		logger.WarnKV(ctx, "Connection to MQTT broker lost", "broker", cfg.Broker, "error", err)
	})
	opts.SetOnConnectHandler(func(mqtt.Client) {
		logger.InfoKV(ctx, "Connected to MQTT broker", "broker", cfg.Broker)
	})

	client := mqtt.NewClient(opts)

	token := client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return nil, errConnectTimeout
	}

	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to mqtt broker: %w", err)
	}

	return &MQTTClient{client: client}, nil
}

// Publish sends payload at QoS 1.
func (c *MQTTClient) Publish(_ context.Context, topic string, retained bool, payload []byte) error {
	if !c.client.IsConnected() {
		return errNotConnected
	}

	token := c.client.Publish(topic, 1, retained, payload)
	if !token.WaitTimeout(publishTimeout) {
		return errPublishTimeout
	}

	if err := token.Error(); err != nil {
		return fmt.Errorf("publish to %s: %w", topic, err)
	}

	return nil
}

// Close disconnects from the broker.
func (c *MQTTClient) Close() {
	c.client.Disconnect(disconnectQuiesce)
}

// message is one queued publication.
type message struct {
	topic    string
	retained bool
	payload  []byte
}

// statusPayload is the JSON body of an alarm status message.
type statusPayload struct {
	AlarmStatus string    `json:"alarm_status"`
	Timestamp   time.Time `json:"timestamp"`
}

// detectionPayload is the JSON body of a detection message.
type detectionPayload struct {
	Detected  bool      `json:"detected"`
	Timestamp time.Time `json:"timestamp"`
}

// MQTTListener queues controller notifications and publishes them from Run.
// Callbacks never block: when the queue is full the notification is dropped and logged.
type MQTTListener struct {
	publisher   Publisher
	topicPrefix string
	queue       chan message
	now         func() time.Time
}

// NewMQTTListener creates a listener publishing under topicPrefix.
func NewMQTTListener(publisher Publisher, topicPrefix string) *MQTTListener {
	return &MQTTListener{
		publisher:   publisher,
		topicPrefix: topicPrefix,
		queue:       make(chan message, queueSize),
		now:         time.Now,
	}
}

// AlarmStatusTopic is the retained topic carrying the current alarm status.
func (l *MQTTListener) AlarmStatusTopic() string {
	return l.topicPrefix + "/alarm_status"
}

// DetectionTopic carries every detection result.
func (l *MQTTListener) DetectionTopic() string {
	return l.topicPrefix + "/detection"
}

// OnAlarmStatusChanged queues a retained status message.
func (l *MQTTListener) OnAlarmStatusChanged(ctx context.Context, status domain.AlarmStatus) {
	l.enqueue(ctx, l.AlarmStatusTopic(), true, statusPayload{
		AlarmStatus: status.String(),
		Timestamp:   l.now().UTC(),
	})
}

// OnDetectionResult queues a detection message.
func (l *MQTTListener) OnDetectionResult(ctx context.Context, detected bool) {
	l.enqueue(ctx, l.DetectionTopic(), false, detectionPayload{
		Detected:  detected,
		Timestamp: l.now().UTC(),
	})
}

// Run publishes queued messages until ctx is canceled.
func (l *MQTTListener) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-l.queue:
			if err := l.publisher.Publish(ctx, msg.topic, msg.retained, msg.payload); err != nil {
				logger.ErrorKV(ctx, "MQTT publish failed", "topic", msg.topic, "error", err)
			}
		}
	}
}

func (l *MQTTListener) enqueue(ctx context.Context, topic string, retained bool, body any) {
	payload, err := json.Marshal(body)
	if err != nil {
		logger.ErrorKV(ctx, "Encode MQTT payload failed", "topic", topic, "error", err)
		return
	}

	select {
	case l.queue <- message{topic: topic, retained: retained, payload: payload}:
	default:
		logger.WarnKV(ctx, "MQTT queue full, notification dropped", "topic", topic)
	}
}
