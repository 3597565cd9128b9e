package mqtt

import (
	"fmt"
	"sync"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/skyroute/internal/command"
	"github.com/nerrad567/skyroute/internal/transport"
)

// Logger interface for optional logging support.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Transport implements transport.Transport with a paho client.
//
// Every Connect builds a fresh paho client. Events from older clients are
// discarded by generation, so a superseded session can never report into the
// current one.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
//   - Handlers run on a single internal goroutine, one at a time.
type Transport struct {
	mu         sync.Mutex
	client     pahomqtt.Client
	cfg        transport.Config
	generation uint64
	connected  bool
	handlers   transport.Handlers
	ttlWarned  bool

	events    *transport.Serializer
	newClient func(*pahomqtt.ClientOptions) pahomqtt.Client
	logger    Logger
}

var _ transport.Transport = (*Transport)(nil)

// New creates an idle transport. Call Close when done.
func New() *Transport {
	return &Transport{
		events:    transport.NewSerializer(),
		newClient: pahomqtt.NewClient,
		logger:    noopLogger{},
	}
}

// SetLogger sets the logger used for broker acknowledgement failures.
func (t *Transport) SetLogger(logger Logger) {
	t.mu.Lock()
	t.logger = logger
	t.mu.Unlock()
}

// SetHandlers implements transport.Transport.
func (t *Transport) SetHandlers(h transport.Handlers) {
	t.mu.Lock()
	t.handlers = h
	t.mu.Unlock()
}

// Connect implements transport.Transport.
//
// It replaces any existing client, starts a connection attempt in the
// background and returns. The result is reported through OnConnected or
// OnConnectionLost (wrapping transport.ErrConnectionFailed).
func (t *Transport) Connect(cfg transport.Config) error {
	broker, err := transport.ParseBrokerURL(cfg.BrokerURL)
	if err != nil {
		return err
	}

	t.mu.Lock()
	old := t.client
	t.generation++
	gen := t.generation
	t.cfg = cfg
	t.connected = false

	opts := buildClientOptions(cfg, broker)
	opts.SetOnConnectHandler(func(c pahomqtt.Client) {
		t.events.Post(func() { t.handleConnect(gen, c) })
	})
	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
		t.events.Post(func() { t.handleLost(gen, fmt.Errorf("%w: %w", transport.ErrConnectionLost, err)) })
	})
	opts.SetDefaultPublishHandler(func(_ pahomqtt.Client, msg pahomqtt.Message) {
		name, payload := msg.Topic(), append([]byte(nil), msg.Payload()...)
		t.events.Post(func() { t.handleMessage(gen, name, payload) })
	})

	client := t.newClient(opts)
	t.client = client
	t.mu.Unlock()

	if old != nil {
		old.Disconnect(0)
	}

	token := client.Connect()
	go func() {
		<-token.Done()
		if err := token.Error(); err != nil {
			t.events.Post(func() { t.handleLost(gen, fmt.Errorf("%w: %w", transport.ErrConnectionFailed, err)) })
		}
	}()
	return nil
}

// Disconnect implements transport.Transport.
//
// A retained "offline" status is published first when a status topic is
// configured, so a clean shutdown is distinguishable from the will.
func (t *Transport) Disconnect() {
	t.mu.Lock()
	client := t.client
	cfg := t.cfg
	t.client = nil
	t.generation++
	t.connected = false
	t.mu.Unlock()

	if client == nil {
		return
	}

	if cfg.StatusTopic != "" && client.IsConnectionOpen() {
		token := client.Publish(cfg.StatusTopic, statusQoS, true, statusPayload("offline", cfg.ClientID, "graceful_shutdown"))
		token.WaitTimeout(defaultAckTimeout)
	}
	client.Disconnect(defaultDisconnectQuiesce)
}

// Send implements transport.Transport.
//
// Commands are handed to paho without waiting for the broker's
// acknowledgement; failed acknowledgements are logged. TTL is not supported
// by MQTT 3.1.1 and is ignored.
func (t *Transport) Send(cmd command.Command) error {
	t.mu.Lock()
	client := t.client
	connected := t.connected
	logger := t.logger
	warnTTL := cmd.TTL > 0 && !t.ttlWarned
	if warnTTL {
		t.ttlWarned = true
	}
	t.mu.Unlock()

	if client == nil || !connected || !client.IsConnectionOpen() {
		return transport.ErrNotConnected
	}
	if warnTTL {
		logger.Warn("message expiry is not supported by MQTT 3.1.1, ttl ignored", "topic", cmd.Topic)
	}

	var (
		token  pahomqtt.Token
		failed error
	)
	switch cmd.Kind {
	case command.KindSubscribe:
		token = client.Subscribe(cmd.Topic, cmd.QoS, nil)
		failed = ErrSubscribeFailed
	case command.KindUnsubscribe:
		token = client.Unsubscribe(cmd.Topic)
		failed = ErrUnsubscribeFailed
	case command.KindPublish:
		if len(cmd.Payload) > MaxPayloadSize {
			return fmt.Errorf("%w: %d bytes exceeds maximum %d", ErrPayloadTooLarge, len(cmd.Payload), MaxPayloadSize)
		}
		token = client.Publish(cmd.Topic, cmd.QoS, cmd.Retain, cmd.Payload)
		failed = ErrPublishFailed
	default:
		return fmt.Errorf("%w: %s", transport.ErrUnknownCommand, cmd.Kind)
	}

	go t.awaitAck(token, cmd, failed, logger)
	return nil
}

// awaitAck logs a command the broker did not acknowledge.
func (t *Transport) awaitAck(token pahomqtt.Token, cmd command.Command, failed error, logger Logger) {
	select {
	case <-token.Done():
	case <-time.After(defaultAckTimeout):
		logger.Warn("broker acknowledgement timed out",
			"command", cmd.String(),
			"error", fmt.Errorf("%w: %w: after %v", failed, ErrTimeout, defaultAckTimeout),
		)
		return
	}
	if err := token.Error(); err != nil {
		logger.Warn("broker rejected command", "command", cmd.String(), "error", fmt.Errorf("%w: %w", failed, err))
	}
}

// IsConnected implements transport.Transport.
func (t *Transport) IsConnected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.connected && t.client != nil && t.client.IsConnectionOpen()
}

// Flush blocks until every event raised before the call has been handled.
func (t *Transport) Flush() {
	t.events.Flush()
}

// Close disconnects and stops the event goroutine.
func (t *Transport) Close() {
	t.Disconnect()
	t.events.Close()
}

func (t *Transport) handleConnect(gen uint64, client pahomqtt.Client) {
	t.mu.Lock()
	if gen != t.generation {
		t.mu.Unlock()
		return
	}
	t.connected = true
	cfg := t.cfg
	cb := t.handlers.OnConnected
	t.mu.Unlock()

	if cfg.StatusTopic != "" {
		client.Publish(cfg.StatusTopic, statusQoS, true, statusPayload("online", cfg.ClientID, ""))
	}
	if cb != nil {
		cb()
	}
}

func (t *Transport) handleLost(gen uint64, cause error) {
	t.mu.Lock()
	if gen != t.generation {
		t.mu.Unlock()
		return
	}
	t.connected = false
	cb := t.handlers.OnConnectionLost
	t.mu.Unlock()

	if cb != nil {
		cb(cause)
	}
}

func (t *Transport) handleMessage(gen uint64, name string, payload []byte) {
	t.mu.Lock()
	if gen != t.generation {
		t.mu.Unlock()
		return
	}
	cb := t.handlers.OnMessage
	t.mu.Unlock()

	if cb != nil {
		cb(name, payload)
	}
}
