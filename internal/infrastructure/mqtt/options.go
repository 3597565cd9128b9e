package mqtt

import (
	"crypto/tls"
	"encoding/json"
	"net/url"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/skyroute/internal/transport"
)

// Connection constants.
const (
	// defaultConnectTimeout bounds one connection attempt.
	defaultConnectTimeout = 10 * time.Second

	// defaultAckTimeout is the maximum time to wait for a broker acknowledgement.
	defaultAckTimeout = 5 * time.Second

	// defaultDisconnectQuiesce is the time to wait for pending operations on disconnect.
	defaultDisconnectQuiesce = 1000 // milliseconds

	// defaultKeepAlive is the keepalive interval for the connection.
	defaultKeepAlive = 60 * time.Second

	// MaxPayloadSize caps publish payloads (1MB).
	MaxPayloadSize = 1 << 20

	// statusQoS is the QoS of online/offline status messages.
	statusQoS = 1

	// tlsMinVersion is the minimum TLS version for secure connections.
	tlsMinVersion = tls.VersionTLS12
)

// buildClientOptions creates paho options from a transport configuration.
//
// This configures:
//   - Broker URL, client ID and credentials
//   - Clean session mode from cfg
//   - No paho-level reconnect (the lifecycle owns retries)
//   - Ordered message delivery
//   - TLS for secure schemes
//   - Last Will and Testament when cfg.StatusTopic is set
func buildClientOptions(cfg transport.Config, broker *url.URL) *pahomqtt.ClientOptions {
	opts := pahomqtt.NewClientOptions()
	opts.AddBroker(broker.String())
	opts.SetClientID(cfg.ClientID)

	// Authentication (if credentials provided)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}

	opts.SetCleanSession(cfg.CleanSession)

	opts.SetAutoReconnect(false)
	opts.SetConnectRetry(false)

	// One router goroutine, messages in arrival order.
	opts.SetOrderMatters(true)

	connectTimeout := cfg.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = defaultConnectTimeout
	}
	opts.SetConnectTimeout(connectTimeout)

	keepAlive := cfg.KeepAlive
	if keepAlive <= 0 {
		keepAlive = defaultKeepAlive
	}
	opts.SetKeepAlive(keepAlive)

	if transport.IsSecure(broker) {
		tlsConfig := cfg.TLS
		if tlsConfig == nil {
			tlsConfig = &tls.Config{MinVersion: tlsMinVersion}
		}
		opts.SetTLSConfig(tlsConfig)
	}

	if cfg.StatusTopic != "" {
		configureLWT(opts, cfg.StatusTopic, cfg.ClientID)
	}

	return opts
}

// configureLWT sets up Last Will and Testament for offline detection.
//
// The broker publishes the will if the client disappears without a clean
// disconnect, so other services see the client go offline.
//
// QoS: 1, Retained: true (new subscribers see last status)
func configureLWT(opts *pahomqtt.ClientOptions, topic, clientID string) {
	opts.SetBinaryWill(topic, statusPayload("offline", clientID, "unexpected_disconnect"), statusQoS, true)
}

// statusMessage is the body of online/offline status messages.
type statusMessage struct {
	Status    string `json:"status"`
	ClientID  string `json:"client_id"`
	Reason    string `json:"reason,omitempty"`
	Timestamp string `json:"timestamp"`
}

func statusPayload(status, clientID, reason string) []byte {
	data, _ := json.Marshal(statusMessage{
		Status:    status,
		ClientID:  clientID,
		Reason:    reason,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
	return data
}
