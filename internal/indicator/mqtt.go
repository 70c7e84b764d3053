package indicator

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"
)

// MQTTOptions configures the smart-bulb driver.
type MQTTOptions struct {
	Broker     string
	Topic      string
	ClientID   string
	Username   string
	Password   string
	PayloadOn  string
	PayloadOff string
}

// MQTTClient is the subset of an MQTT client the driver needs. It lets tests
// swap the paho client for a fake.
type MQTTClient interface {
	Connect() error
	Disconnect()
	Publish(topic string, qos byte, retained bool, message string) error
}

const (
	mqttQoS            = 1
	mqttPublishTimeout = 5 * time.Second
	mqttQuiesce        = 250 * time.Millisecond
)

var errMQTTClosed = errors.New("mqtt indicator closed")

// MQTT switches a smart bulb or relay by publishing retained ON/OFF
// payloads. Publishing happens on a single worker goroutine; SetOutput only
// queues the level, and a newer level replaces one still waiting.
type MQTT struct {
	log    zerolog.Logger
	opts   MQTTOptions
	client MQTTClient

	pending chan bool
	quit    chan struct{}
	done    chan struct{}

	mu      sync.Mutex
	closed  bool
	lastErr error

	failures atomic.Uint64
}

// OpenMQTT validates opts and connects client.
func OpenMQTT(opts MQTTOptions, client MQTTClient, logger zerolog.Logger) (*MQTT, error) {
	if opts.Broker == "" {
		return nil, errors.New("MQTT_BROKER is required")
	}
	if opts.Topic == "" {
		return nil, errors.New("MQTT_TOPIC is required")
	}
	if opts.PayloadOn == "" {
		opts.PayloadOn = "ON"
	}
	if opts.PayloadOff == "" {
		opts.PayloadOff = "OFF"
	}
	if err := client.Connect(); err != nil {
		return nil, fmt.Errorf("connect %s: %w", opts.Broker, err)
	}
	m := &MQTT{
		log:     logger,
		opts:    opts,
		client:  client,
		pending: make(chan bool, 1),
		quit:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	go m.run()
	return m, nil
}

// SetOutput queues on for the publish worker and returns without waiting
// for the broker.
func (m *MQTT) SetOutput(on bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return errMQTTClosed
	}
	select {
	case <-m.pending:
	default:
	}
	m.pending <- on
	return nil
}

func (m *MQTT) Info() Info {
	detail := m.opts.Broker + " " + m.opts.Topic
	m.mu.Lock()
	if m.lastErr != nil {
		detail += fmt.Sprintf(" (last publish error: %v)", m.lastErr)
	}
	m.mu.Unlock()
	return Info{Type: TypeMQTT, Available: true, Detail: detail}
}

// Failures returns how many queued publishes failed.
func (m *MQTT) Failures() uint64 {
	return m.failures.Load()
}

// Close stops the worker, publishes OFF and disconnects.
func (m *MQTT) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	close(m.quit)
	m.mu.Unlock()

	<-m.done
	err := m.publish(false)
	m.client.Disconnect()
	return err
}

func (m *MQTT) run() {
	defer close(m.done)
	for {
		select {
		case <-m.quit:
			return
		case on := <-m.pending:
			err := m.publish(on)
			m.mu.Lock()
			m.lastErr = err
			m.mu.Unlock()
			if err != nil {
				m.failures.Add(1)
				m.log.Warn().Err(err).Bool("level", on).Msg("MQTT publish failed")
			}
		}
	}
}

func (m *MQTT) publish(on bool) error {
	payload := m.opts.PayloadOff
	if on {
		payload = m.opts.PayloadOn
	}
	if err := m.client.Publish(m.opts.Topic, mqttQoS, true, payload); err != nil {
		return fmt.Errorf("publish %s: %w", m.opts.Topic, err)
	}
	return nil
}

// PahoClient adapts the Eclipse Paho client to MQTTClient.
type PahoClient struct {
	opts   MQTTOptions
	client pahomqtt.Client
}

var _ MQTTClient = &PahoClient{}

// NewPahoClient returns a disconnected client for opts.
func NewPahoClient(opts MQTTOptions) *PahoClient {
	return &PahoClient{opts: opts}
}

func (p *PahoClient) Connect() error {
	clientOpts := pahomqtt.NewClientOptions()
	clientOpts.AddBroker(p.opts.Broker)
	clientID := p.opts.ClientID
	if clientID == "" {
		clientID = consumerName
	}
	clientOpts.SetClientID(clientID)
	clientOpts.SetUsername(p.opts.Username)
	clientOpts.SetPassword(p.opts.Password)
	clientOpts.SetCleanSession(true)
	clientOpts.SetAutoReconnect(true)
	clientOpts.SetConnectTimeout(mqttPublishTimeout)

	p.client = pahomqtt.NewClient(clientOpts)
	token := p.client.Connect()
	if !token.WaitTimeout(mqttPublishTimeout) {
		return errors.New("connect timed out")
	}
	return token.Error()
}

func (p *PahoClient) Disconnect() {
	if p.client != nil {
		p.client.Disconnect(uint(mqttQuiesce / time.Millisecond))
	}
}

func (p *PahoClient) Publish(topic string, qos byte, retained bool, message string) error {
	if p.client == nil {
		return errors.New("publish called before connect")
	}
	token := p.client.Publish(topic, qos, retained, message)
	if !token.WaitTimeout(mqttPublishTimeout) {
		return errors.New("publish timed out")
	}
	return token.Error()
}
