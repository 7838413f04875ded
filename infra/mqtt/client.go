// Package mqtt connects the fleet to an MQTT broker with Eclipse Paho. Routes
// are published on a per-vehicle topic and tasks announced on the task topic
// are buffered until the simulation loop drains them.
package mqtt

import (
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/kilianp07/parcelmas/core/events"
	"github.com/kilianp07/parcelmas/core/model"
	"github.com/kilianp07/parcelmas/infra/logger"
)

const (
	DefaultRouteTopic = "fleet/%s/route"
	DefaultTaskTopic  = "fleet/tasks"
)

// Config defines the connection parameters for the Paho MQTT client.
type Config struct {
	Broker     string          `json:"broker"`
	ClientID   string          `json:"client_id"`
	Username   string          `json:"username"`
	Password   string          `json:"password"`
	RouteTopic string          `json:"route_topic"`
	TaskTopic  string          `json:"task_topic"`
	UseTLS     bool            `json:"use_tls"`
	ClientCert string          `json:"client_cert"`
	ClientKey  string          `json:"client_key"`
	CABundle   string          `json:"ca_bundle"`
	AuthMethod string          `json:"auth_method"`
	QoS        map[string]byte `json:"qos"`
	LWTTopic   string          `json:"lwt_topic"`
	LWTPayload string          `json:"lwt_payload"`
	LWTQoS     byte            `json:"lwt_qos"`
	LWTRetain  bool            `json:"lwt_retain"`
	MaxRetries int             `json:"max_retries"`
	BackoffMS  int             `json:"backoff_ms"`
	TLSConfig  *tls.Config     `json:"-"`
}

// SetDefaults fills the topics, the client id and the retry policy.
func (c *Config) SetDefaults() {
	if c.RouteTopic == "" {
		c.RouteTopic = DefaultRouteTopic
	}
	if c.TaskTopic == "" {
		c.TaskTopic = DefaultTaskTopic
	}
	if c.ClientID == "" {
		c.ClientID = "parcelmas-" + uuid.NewString()[:8]
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
	if c.BackoffMS <= 0 {
		c.BackoffMS = 100
	}
}

// Validate checks the broker address and the route topic.
func (c Config) Validate() error {
	if c.Broker == "" {
		return fmt.Errorf("mqtt broker is required")
	}
	if c.RouteTopic != "" && !containsVerb(c.RouteTopic) {
		return fmt.Errorf("mqtt route_topic %q must contain %%s for the vehicle id", c.RouteTopic)
	}
	return nil
}

func containsVerb(s string) bool {
	for i := 0; i+1 < len(s); i++ {
		if s[i] == '%' && s[i+1] == 's' {
			return true
		}
	}
	return false
}

type pahoClient interface {
	IsConnected() bool
	Connect() paho.Token
	Disconnect(quiesce uint)
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
	Subscribe(topic string, qos byte, callback paho.MessageHandler) paho.Token
}

// Client publishes routes and collects announced tasks.
type Client struct {
	cli        pahoClient
	routeTopic string
	taskTopic  string
	qos        map[string]byte
	maxRetries int
	backoff    time.Duration
	logger     logger.Logger
	clock      func() time.Time

	mu      sync.Mutex
	pending []*model.Task
	seen    map[string]bool
}

var newMQTTClient = func(opts *paho.ClientOptions) pahoClient {
	return paho.NewClient(opts)
}

// NewClient connects to the broker and subscribes to the task topic.
func NewClient(cfg Config) (*Client, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	opts, err := NewClientOptions(cfg)
	if err != nil {
		return nil, err
	}

	log := logger.New("mqtt_client")
	c := &Client{
		routeTopic: cfg.RouteTopic,
		taskTopic:  cfg.TaskTopic,
		qos:        cfg.QoS,
		maxRetries: cfg.MaxRetries,
		backoff:    time.Duration(cfg.BackoffMS) * time.Millisecond,
		logger:     log,
		clock:      time.Now,
		seen:       make(map[string]bool),
	}

	opts.OnConnect = func(pc paho.Client) {
		log.Infof("MQTT connected")
		if token := pc.Subscribe(c.taskTopic, c.qosFor("task"), c.onTask); token.Wait() && token.Error() != nil {
			log.Errorf("subscribe error: %v", token.Error())
		}
	}
	opts.OnConnectionLost = func(_ paho.Client, err error) {
		log.Errorf("connection lost: %v", err)
	}
	opts.OnReconnecting = func(_ paho.Client, _ *paho.ClientOptions) {
		log.Warnf("reconnecting to MQTT broker")
	}
	pc := newMQTTClient(opts)
	if token := pc.Connect(); token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}
	c.cli = pc
	return c, nil
}

// NewClientOptions builds mqtt client options from Config.
func NewClientOptions(cfg Config) (*paho.ClientOptions, error) {
	opts := paho.NewClientOptions().AddBroker(cfg.Broker).SetClientID(cfg.ClientID)
	opts.AutoReconnect = true
	if cfg.AuthMethod == "username_password" || cfg.AuthMethod == "both" || cfg.AuthMethod == "" {
		if cfg.Username != "" {
			opts.SetUsername(cfg.Username)
		}
		if cfg.Password != "" {
			opts.SetPassword(cfg.Password)
		}
	}
	if cfg.UseTLS {
		tlsCfg, err := cfg.LoadTLSConfig()
		if err != nil {
			return nil, err
		}
		opts.SetTLSConfig(tlsCfg)
	}
	if cfg.LWTTopic != "" {
		opts.SetWill(cfg.LWTTopic, cfg.LWTPayload, cfg.LWTQoS, cfg.LWTRetain)
	}
	return opts, nil
}

// LoadTLSConfig loads the TLS configuration from the file paths in the config.
func (c Config) LoadTLSConfig() (*tls.Config, error) {
	if c.TLSConfig != nil {
		return c.TLSConfig, nil
	}
	if c.ClientCert == "" || c.ClientKey == "" || c.CABundle == "" {
		return nil, fmt.Errorf("tls config requires client_cert, client_key and ca_bundle")
	}
	cert, err := tls.LoadX509KeyPair(c.ClientCert, c.ClientKey)
	if err != nil {
		return nil, fmt.Errorf("load cert: %w", err)
	}
	caBytes, err := os.ReadFile(c.CABundle)
	if err != nil {
		return nil, fmt.Errorf("read ca: %w", err)
	}
	pool := x509.NewCertPool()
	pool.AppendCertsFromPEM(caBytes)
	return &tls.Config{Certificates: []tls.Certificate{cert}, RootCAs: pool, MinVersion: tls.VersionTLS12}, nil
}

func (c *Client) qosFor(kind string) byte {
	if q, ok := c.qos[kind]; ok {
		return q
	}
	return 0
}

func (c *Client) onTask(_ paho.Client, msg paho.Message) {
	var m TaskMessage
	if err := json.Unmarshal(msg.Payload(), &m); err != nil {
		c.logger.Errorf("failed to decode task: %v", err)
		return
	}
	t, err := m.Task(c.clock())
	if err != nil {
		c.logger.Errorf("rejected task %q: %v", m.ID, err)
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.seen[t.ID] {
		c.logger.Warnf("duplicate task %s ignored", t.ID)
		return
	}
	c.seen[t.ID] = true
	c.pending = append(c.pending, t)
	c.logger.Infof("received task %s", t.ID)
}

// Drain returns the tasks received since the previous call.
func (c *Client) Drain() []*model.Task {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := c.pending
	c.pending = nil
	return out
}

// PublishRoute sends the route of e to the route topic of its vehicle and
// returns the message identifier.
func (c *Client) PublishRoute(e events.RouteChanged) (string, error) {
	id := uuid.NewString()
	payload, err := json.Marshal(NewRouteMessage(id, e))
	if err != nil {
		return "", err
	}
	topic := fmt.Sprintf(c.routeTopic, e.VehicleID)
	qos := c.qosFor("route")

	var publishErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		token := c.cli.Publish(topic, qos, true, payload)
		token.Wait()
		publishErr = token.Error()
		if publishErr == nil {
			c.logger.Debugf("sent route %s to %s", id, topic)
			return id, nil
		}
		c.logger.Errorf("publish attempt %d failed: %v", attempt+1, publishErr)
		if attempt < c.maxRetries {
			time.Sleep(c.backoff * time.Duration(1<<attempt))
		}
	}
	return "", fmt.Errorf("publish route of %s: %w", e.VehicleID, publishErr)
}

// Disconnect gracefully closes the MQTT connection.
func (c *Client) Disconnect() {
	if c.cli != nil && c.cli.IsConnected() {
		c.cli.Disconnect(250)
	}
}
