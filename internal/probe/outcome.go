package probe

import (
	"fmt"
	"net"
	"time"
)

// Kind classifies how a single probe ended.
type Kind int

const (
	// KindReply is a matching echo reply
	KindReply Kind = iota
	// KindUnreachable is a destination-unreachable report
	KindUnreachable
	// KindTimeout means nothing relevant arrived within the budget
	KindTimeout
	// KindMalformed is an inbound buffer that could not be decoded
	KindMalformed
	// KindReset is a stream disconnect (TCP only)
	KindReset
)

// String returns the lowercase name of the kind.
func (k Kind) String() string {
	switch k {
	case KindReply:
		return "reply"
	case KindUnreachable:
		return "unreachable"
	case KindTimeout:
		return "timeout"
	case KindMalformed:
		return "malformed"
	case KindReset:
		return "reset"
	default:
		return "unknown"
	}
}

// Outcome is the result of exactly one probe.
type Outcome struct {
	// Seq is the probe sequence number, starting at 1
	Seq int

	// Kind is the outcome variant
	Kind Kind

	// RTT is set only for KindReply
	RTT time.Duration

	// Code is the unreachable code, set only for KindUnreachable
	Code int

	// Peer is the address that answered, if any
	Peer net.IP
}

// Lost reports whether the outcome counts against the loss rate.
func (o Outcome) Lost() bool {
	return o.Kind != KindReply
}

// RTTMillis returns the round-trip time in milliseconds.
func (o Outcome) RTTMillis() float64 {
	return float64(o.RTT) / float64(time.Millisecond)
}

// Describe returns a one-line human readable description.
func (o Outcome) Describe() string {
	switch o.Kind {
	case KindReply:
		return fmt.Sprintf("reply seq=%d time=%.3f ms", o.Seq, o.RTTMillis())
	case KindUnreachable:
		return fmt.Sprintf("%s (code %d) seq=%d", UnreachableReason(o.Code), o.Code, o.Seq)
	case KindTimeout:
		return fmt.Sprintf("request timed out seq=%d", o.Seq)
	case KindReset:
		return fmt.Sprintf("connection reset seq=%d", o.Seq)
	default:
		return fmt.Sprintf("malformed response seq=%d", o.Seq)
	}
}

// UnreachableReason maps a destination-unreachable code to its meaning.
func UnreachableReason(code int) string {
	switch code {
	case CodeNetUnreachable:
		return "Destination Network Unreachable"
	case CodeHostUnreachable:
		return "Destination Host Unreachable"
	case CodeProtocolUnreachable:
		return "Destination Protocol Unreachable"
	case CodePortUnreachable:
		return "Destination Port Unreachable"
	default:
		return "Destination Unreachable"
	}
}
