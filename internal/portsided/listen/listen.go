// Package listen normalizes the daemon's listen-address input.
package listen

import (
	"fmt"
	"net"
	"strconv"
	"strings"
)

const (
	defaultHost = "127.0.0.1"
	defaultPort = "7333"
)

// Addr is a validated listen target.
type Addr struct {
	Host string
	Port string
}

// Default is where the daemon binds when no address is given.
func Default() Addr {
	return Addr{Host: defaultHost, Port: defaultPort}
}

// Parse accepts the address forms the daemon takes from flags, config
// and environment: empty (the default), "host:port" including bracketed
// IPv6, ":port", a bare port number, or a bare host.
func Parse(raw string) (Addr, error) {
	value := strings.TrimSpace(raw)
	switch {
	case value == "":
		return Default(), nil
	case strings.HasPrefix(value, ":"):
		return withPort("", value[1:])
	case !strings.ContainsAny(value, ":[]"):
		if _, err := strconv.Atoi(value); err == nil {
			return withPort("", value)
		}
		return withPort(value, defaultPort)
	default:
		host, port, err := net.SplitHostPort(value)
		if err != nil {
			return Addr{}, fmt.Errorf("invalid listen address %q: %w", raw, err)
		}
		return withPort(host, port)
	}
}

func withPort(host, port string) (Addr, error) {
	n, err := strconv.Atoi(port)
	if err != nil || n < 1 || n > 65535 {
		return Addr{}, fmt.Errorf("invalid listen port %q", port)
	}
	return Addr{Host: strings.TrimSpace(host), Port: port}, nil
}

// String returns the bind string for http.Server.
func (a Addr) String() string {
	if a.Host == "" {
		return ":" + a.Port
	}
	return net.JoinHostPort(a.Host, a.Port)
}

// DisplayURL renders a human-friendly URL for CLI output and logs.
// Wildcard binds display as localhost since that is where a local
// client reaches them.
func (a Addr) DisplayURL() string {
	host := a.Host
	switch host {
	case "", "0.0.0.0", "::":
		host = "localhost"
	}
	return "http://" + net.JoinHostPort(host, a.Port) + "/"
}
