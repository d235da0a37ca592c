package session

import "errors"

// Session-related errors.
var (
	// ErrInvalidCount indicates the probe count is out of range
	ErrInvalidCount = errors.New("probe count must be between 1 and 100000")

	// ErrInvalidTimeout indicates timeout is too short
	ErrInvalidTimeout = errors.New("timeout must be at least 10ms")

	// ErrInvalidInterval indicates a negative probe interval
	ErrInvalidInterval = errors.New("interval must not be negative")

	// ErrInvalidErrorTimeout indicates a negative error watch timeout
	ErrInvalidErrorTimeout = errors.New("error timeout must not be negative")

	// ErrInvalidPort indicates the service port is out of range
	ErrInvalidPort = errors.New("port must be between 1 and 65535")

	// ErrInvalidTTL indicates the TTL value is out of range
	ErrInvalidTTL = errors.New("TTL must be between 0 and 255")

	// ErrErrorWatchICMP indicates the error watcher was requested for ICMP probes
	ErrErrorWatchICMP = errors.New("error watching applies to udp and tcp probes only")

	// ErrTargetResolution indicates the target could not be resolved
	ErrTargetResolution = errors.New("could not resolve target")
)
