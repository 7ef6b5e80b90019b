// Package mqttout publishes decoded timecode to an MQTT broker.
package mqttout

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/jmacd/mtcmidi/internal/config"
	"github.com/jmacd/mtcmidi/internal/status"
	"github.com/jmacd/mtcmidi/midi/clock"
	"github.com/jmacd/mtcmidi/mtc"
	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"
)

const connectTimeout = 5 * time.Second

// Emitter publishes every timecode it is given to one topic.
type Emitter struct {
	client  mqtt.Client
	topic   string
	qos     byte
	timeout time.Duration
	marshal func(any) ([]byte, error)
	session string
	log     zerolog.Logger

	mu        sync.Mutex
	seq       uint64
	published uint64
	errors    uint64
	connected bool
}

// Stats contains emitter statistics.
type Stats struct {
	Connected bool   `json:"connected"`
	Published uint64 `json:"published"`
	Errors    uint64 `json:"errors"`
}

// Connect dials the broker in cfg and returns an Emitter for it.  The
// client reconnects on its own after a lost connection.
func Connect(cfg config.MQTTConfig, session string, log zerolog.Logger) (*Emitter, error) {
	clientID := cfg.ClientID
	if clientID == "" {
		clientID = "mtcmidi-" + session
	}

	var e *Emitter
	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s", cfg.Broker))
	opts.SetClientID(clientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(2 * time.Second)
	opts.SetMaxReconnectInterval(30 * time.Second)
	opts.OnConnect = func(mqtt.Client) {
		if e != nil {
			e.setConnected(true)
		}
		log.Info().Str("broker", cfg.Broker).Str("client_id", clientID).Msg("mqtt connection established")
	}
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		if e != nil {
			e.setConnected(false)
		}
		log.Warn().Err(err).Str("broker", cfg.Broker).Msg("mqtt connection lost, will auto-reconnect")
	}

	client := mqtt.NewClient(opts)
	e, err := New(client, cfg, session, log)
	if err != nil {
		return nil, err
	}

	log.Info().Str("broker", cfg.Broker).Msg("connecting to mqtt broker")
	if err := e.connect(connectTimeout); err != nil {
		return nil, err
	}
	return e, nil
}

// connect waits for the first connection.  On failure the client is
// disconnected so that it stops retrying in the background.
func (e *Emitter) connect(timeout time.Duration) error {
	token := e.client.Connect()
	if !token.WaitTimeout(timeout) {
		e.client.Disconnect(0)
		return fmt.Errorf("mqtt connection timeout")
	}
	if err := token.Error(); err != nil {
		e.client.Disconnect(0)
		return fmt.Errorf("mqtt connection failed: %w", err)
	}
	e.setConnected(true)
	return nil
}

// New wraps an existing client.  The caller is responsible for connecting it.
func New(client mqtt.Client, cfg config.MQTTConfig, session string, log zerolog.Logger) (*Emitter, error) {
	e := &Emitter{
		client:    client,
		topic:     cfg.Topic,
		qos:       cfg.QoS,
		timeout:   cfg.PublishTimeout,
		session:   session,
		log:       log,
		connected: client.IsConnected(),
	}
	switch strings.ToLower(cfg.Format) {
	case "", "json":
		e.marshal = json.Marshal
	case "msgpack":
		e.marshal = msgpack.Marshal
	default:
		return nil, fmt.Errorf("mqtt: unknown payload format %q", cfg.Format)
	}
	if e.timeout <= 0 {
		e.timeout = 2 * time.Second
	}
	return e, nil
}

// Publish sends tc as one status.Timecode document.
func (e *Emitter) Publish(tc mtc.Timecode) error {
	e.mu.Lock()
	if !e.connected {
		e.errors++
		e.mu.Unlock()
		return fmt.Errorf("mqtt not connected")
	}
	e.seq++
	seq := e.seq
	e.mu.Unlock()

	payload, err := e.marshal(status.NewTimecode(e.session, tc, seq, 0))
	if err != nil {
		e.countError()
		return fmt.Errorf("failed to marshal timecode: %w", err)
	}

	token := e.client.Publish(e.topic, e.qos, false, payload)
	if !token.WaitTimeout(e.timeout) {
		e.countError()
		return fmt.Errorf("publish timeout")
	}
	if err := token.Error(); err != nil {
		e.countError()
		return fmt.Errorf("publish failed: %w", err)
	}

	e.mu.Lock()
	e.published++
	e.mu.Unlock()

	e.log.Trace().Str("topic", e.topic).Int("size", len(payload)).Msg("timecode published")
	return nil
}

// Callback returns a clock.Callback that publishes every timecode,
// logging failures instead of returning them.
func (e *Emitter) Callback() clock.Callback {
	return func(tc mtc.Timecode) {
		if err := e.Publish(tc); err != nil {
			e.log.Warn().Err(err).Str("topic", e.topic).Msg("mqtt publish failed")
		}
	}
}

func (e *Emitter) Stats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()
	return Stats{
		Connected: e.connected,
		Published: e.published,
		Errors:    e.errors,
	}
}

// Close disconnects, allowing 250ms for in-flight work.
func (e *Emitter) Close() {
	if e.client.IsConnected() {
		e.client.Disconnect(250)
		e.log.Info().Msg("mqtt disconnected")
	}
	e.setConnected(false)
}

func (e *Emitter) setConnected(v bool) {
	e.mu.Lock()
	e.connected = v
	e.mu.Unlock()
}

func (e *Emitter) countError() {
	e.mu.Lock()
	e.errors++
	e.mu.Unlock()
}
