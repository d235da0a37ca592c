// Package session drives a probe session and folds its outcomes into
// statistics.
package session

import (
	"net"
	"time"

	"github.com/KilimcininKorOglu/pingkit/internal/probe"
)

// Result contains the complete result of a probe session.
type Result struct {
	// Target is the original target (hostname, alias or IP)
	Target string `json:"target"`

	// ResolvedIP is the resolved IPv4 address of the target
	ResolvedIP net.IP `json:"resolved_ip"`

	// Hostname is the reverse DNS name of ResolvedIP (if resolved)
	Hostname string `json:"hostname,omitempty"`

	// Method is the probe method used (icmp, udp, tcp)
	Method string `json:"method"`

	// Timestamp is when the session started
	Timestamp time.Time `json:"timestamp"`

	// Duration is the wall-clock length of the session
	Duration time.Duration `json:"duration_ns"`

	// Outcomes holds one entry per probe sent, in order
	Outcomes []probe.Outcome `json:"-"`

	// Statistics is computed once when the session ends
	Statistics Statistics `json:"statistics"`
}

// Statistics aggregates the outcomes of a session.
type Statistics struct {
	// Sent is the number of probes sent
	Sent int `json:"sent"`

	// Received is the number of matching replies
	Received int `json:"received"`

	// Lost is Sent minus Received
	Lost int `json:"lost"`

	// LossPercent is Lost / Sent * 100
	LossPercent float64 `json:"loss_percent"`

	// RTTs contains the round-trip time of every reply in milliseconds
	RTTs []float64 `json:"rtts"`

	// RTT summarises RTTs; nil when nothing replied
	RTT *RTTStats `json:"rtt,omitempty"`

	// Per-kind counts of the lost probes
	Timeouts    int `json:"timeouts"`
	Unreachable int `json:"unreachable"`
	Resets      int `json:"resets"`
	Malformed   int `json:"malformed"`

	// UnreachableCodes counts unreachable reports per code
	UnreachableCodes map[int]int `json:"unreachable_codes,omitempty"`
}

// RTTStats contains round-trip time statistics in milliseconds.
type RTTStats struct {
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Avg    float64 `json:"avg"`

	// Jitter is the mean absolute difference between consecutive RTTs
	Jitter float64 `json:"jitter"`
}

// Replied reports whether at least one probe got a reply.
func (s Statistics) Replied() bool {
	return s.Received > 0
}
