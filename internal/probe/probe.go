// Package probe implements the ICMP-style probe engine: checksum and packet
// codec, the bounded receive loop, and ICMP, UDP and TCP probers.
package probe

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// DefaultPort is the well-known port of the UDP and TCP echo service.
const DefaultPort = 14008

// Prober defines the interface for different probe methods.
// A prober is bound to one destination for its whole lifetime.
type Prober interface {
	// Probe sends probe number seq and blocks until its outcome is known.
	// Unreplied probes are reported as outcomes; an error means the
	// probe could not be carried out at all.
	Probe(ctx context.Context, seq int) (Outcome, error)

	// Name returns the probe method name (e.g., "icmp", "udp", "tcp").
	Name() string

	// RequiresRoot returns true if this probe method requires root/admin privileges.
	RequiresRoot() bool

	// Close releases any resources held by the prober.
	Close() error
}

// Method represents the type of probe to use.
type Method int

const (
	// MethodICMP uses ICMP Echo Request packets
	MethodICMP Method = iota
	// MethodUDP sends text datagrams to the echo service
	MethodUDP
	// MethodTCP sends text lines over a stream to the echo service
	MethodTCP
)

// String returns the string representation of the probe method.
func (m Method) String() string {
	switch m {
	case MethodICMP:
		return "icmp"
	case MethodUDP:
		return "udp"
	case MethodTCP:
		return "tcp"
	default:
		return "unknown"
	}
}

// ParseMethod parses a method name.
func ParseMethod(s string) (Method, error) {
	switch strings.ToLower(s) {
	case "icmp", "":
		return MethodICMP, nil
	case "udp":
		return MethodUDP, nil
	case "tcp":
		return MethodTCP, nil
	default:
		return MethodICMP, fmt.Errorf("unknown probe method %q", s)
	}
}

// TextPayload builds the line sent by the UDP and TCP probers.
func TextPayload(seq int, sent time.Time) string {
	return fmt.Sprintf("Ping %d %s", seq, sent.Format(time.ANSIC))
}

// ExpectedEcho is what the echo service answers to payload.
func ExpectedEcho(payload string) string {
	return strings.ToUpper(payload)
}
