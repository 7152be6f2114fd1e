package parse

import (
	"fmt"
	"strconv"
	"strings"
)

// DefaultPort is used when a registration omits the port.
const DefaultPort = 25565

// Endpoint holds the structured form of a "host:port" server address.
type Endpoint struct {
	Address string
	Port    int
}

// ParseEndpoint extracts the address and port from a raw endpoint string.
// A missing port falls back to DefaultPort; a malformed or out-of-range
// port is an error.
func ParseEndpoint(raw string) (Endpoint, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return Endpoint{}, fmt.Errorf("empty server endpoint")
	}

	host := s
	port := DefaultPort
	if idx := strings.LastIndex(s, ":"); idx >= 0 {
		if strings.Count(s, ":") > 1 {
			return Endpoint{}, fmt.Errorf("invalid server endpoint: %q", raw)
		}
		host = strings.TrimSpace(s[:idx])
		p, err := strconv.Atoi(strings.TrimSpace(s[idx+1:]))
		if err != nil {
			return Endpoint{}, fmt.Errorf("invalid port in endpoint %q: %w", raw, err)
		}
		port = p
	}

	if host == "" {
		return Endpoint{}, fmt.Errorf("missing host in endpoint: %q", raw)
	}
	if port < 1 || port > 65535 {
		return Endpoint{}, fmt.Errorf("port out of range in endpoint: %q", raw)
	}

	return Endpoint{Address: strings.ToLower(host), Port: port}, nil
}
