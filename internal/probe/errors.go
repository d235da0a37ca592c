package probe

import (
	"context"
	"errors"
	"net"
	"time"
)

// Probe-related errors.
var (
	// ErrPermissionDenied indicates insufficient privileges for raw sockets
	ErrPermissionDenied = errors.New("permission denied: raw socket requires elevated privileges")

	// ErrSocketClosed indicates the prober has been closed
	ErrSocketClosed = errors.New("socket closed")

	// ErrInvalidTTL indicates the TTL value is out of range
	ErrInvalidTTL = errors.New("TTL must be between 1 and 255")

	// ErrInvalidPort indicates the service port is out of range
	ErrInvalidPort = errors.New("port must be between 1 and 65535")

	// ErrNotIPv4 indicates the destination has no IPv4 address
	ErrNotIPv4 = errors.New("destination is not an IPv4 address")

	// ErrInvalidPacket indicates a buffer too short to hold an ICMP header
	ErrInvalidPacket = errors.New("invalid packet")
)

// IsPermissionError returns true if the error is a permission error.
func IsPermissionError(err error) bool {
	return errors.Is(err, ErrPermissionDenied)
}

func isTimeoutError(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}
	return false
}

// contextDone returns the context's error, counting a passed deadline as
// expired even before the context's own timer has fired.
func contextDone(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if d, ok := ctx.Deadline(); ok && !time.Now().Before(d) {
		return context.DeadlineExceeded
	}
	return nil
}
