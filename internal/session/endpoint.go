package session

import (
	"fmt"
	"net"
)

// Endpoint is the controller's address, resolved once at startup into a
// concrete socket address (spec.md §3 "Server endpoint").
type Endpoint struct {
	Host     string
	Port     uint16
	IPv4Only bool
}

// Resolve looks up the endpoint's host and returns a dialable "host:port"
// string, preferring an IPv4 address when IPv4Only is set.
func (e Endpoint) Resolve() (string, error) {
	if e.IPv4Only {
		ips, err := net.LookupIP(e.Host)
		if err != nil {
			return "", fmt.Errorf("session: resolve %s: %w", e.Host, err)
		}
		for _, ip := range ips {
			if v4 := ip.To4(); v4 != nil {
				return net.JoinHostPort(v4.String(), fmt.Sprint(e.Port)), nil
			}
		}
		return "", fmt.Errorf("session: no IPv4 address found for %s", e.Host)
	}
	return net.JoinHostPort(e.Host, fmt.Sprint(e.Port)), nil
}
