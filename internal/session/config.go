package session

import (
	"time"

	"github.com/KilimcininKorOglu/pingkit/internal/probe"
)

// Config holds the configuration for a probe session.
type Config struct {
	// Probe settings
	Method   probe.Method  // Probe method to use (default: ICMP)
	Count    int           // Number of probes to send (default: 4)
	Timeout  time.Duration // Per-probe receive budget (default: 1s)
	Interval time.Duration // Pause between probes (default: 1s)

	// Transport settings
	Port         int           // Echo service port for UDP/TCP (default: 14008)
	TTL          int           // Outgoing TTL, 0 keeps the system default
	ErrorWatch   bool          // Watch for ICMP errors on a raw socket (UDP/TCP)
	ErrorTimeout time.Duration // How long the error watcher is polled (default: 1s)
	Unprivileged bool          // Use a datagram ICMP socket instead of a raw one

	// Codec frames ICMP packets
	Codec probe.Codec

	// Callback for real-time probe updates (streaming output)
	OnProbe func(out probe.Outcome) // Called after each probe completes
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Method:       probe.MethodICMP,
		Count:        4,
		Timeout:      time.Second,
		Interval:     time.Second,
		Port:         probe.DefaultPort,
		ErrorTimeout: time.Second,
		Codec:        probe.DefaultCodec(),
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Count < 1 || c.Count > 100000 {
		return ErrInvalidCount
	}
	if c.Timeout < 10*time.Millisecond {
		return ErrInvalidTimeout
	}
	if c.Interval < 0 {
		return ErrInvalidInterval
	}
	if c.ErrorTimeout < 0 {
		return ErrInvalidErrorTimeout
	}
	if c.Method != probe.MethodICMP && (c.Port < 1 || c.Port > 65535) {
		return ErrInvalidPort
	}
	if c.TTL < 0 || c.TTL > 255 {
		return ErrInvalidTTL
	}
	if c.ErrorWatch && c.Method == probe.MethodICMP {
		return ErrErrorWatchICMP
	}
	return nil
}

// MaxProbeWait is the longest a single probe can block: the data budget
// plus, when the error watcher is on, the error budget.
func (c *Config) MaxProbeWait() time.Duration {
	if c.ErrorWatch {
		return c.Timeout + c.ErrorTimeout
	}
	return c.Timeout
}
