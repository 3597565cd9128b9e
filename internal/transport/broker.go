package transport

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// Schemes accepted in broker URLs.
var supportedSchemes = map[string]bool{
	"tcp":   true,
	"mqtt":  true,
	"ssl":   true,
	"tls":   true,
	"mqtts": true,
	"ws":    true,
	"wss":   true,
}

// BrokerURL formats a broker address the way the config layer describes it.
func BrokerURL(host string, port int, secure bool) string {
	scheme := "tcp"
	if secure {
		scheme = "ssl"
	}
	return fmt.Sprintf("%s://%s", scheme, joinHostPort(host, port))
}

func joinHostPort(host string, port int) string {
	if strings.Contains(host, ":") && !strings.HasPrefix(host, "[") {
		host = "[" + host + "]"
	}
	return host + ":" + strconv.Itoa(port)
}

// ParseBrokerURL validates raw and returns it parsed.
//
// A usable address has a supported scheme, a host and a port in 1-65535.
func ParseBrokerURL(raw string) (*url.URL, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, fmt.Errorf("%w: address is empty", ErrInvalidBroker)
	}

	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %w", ErrInvalidBroker, raw, err)
	}
	if !supportedSchemes[strings.ToLower(u.Scheme)] {
		return nil, fmt.Errorf("%w: %q: unsupported scheme %q", ErrInvalidBroker, raw, u.Scheme)
	}
	if u.Hostname() == "" {
		return nil, fmt.Errorf("%w: %q: missing host", ErrInvalidBroker, raw)
	}

	port, err := strconv.Atoi(u.Port())
	if err != nil || port < 1 || port > 65535 {
		return nil, fmt.Errorf("%w: %q: port must be between 1 and 65535", ErrInvalidBroker, raw)
	}
	return u, nil
}

// IsSecure reports whether u uses a TLS-wrapped scheme.
func IsSecure(u *url.URL) bool {
	switch strings.ToLower(u.Scheme) {
	case "ssl", "tls", "mqtts", "wss":
		return true
	default:
		return false
	}
}
