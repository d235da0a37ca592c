//go:build linux || darwin || freebsd || netbsd || openbsd

package probe

import (
	"errors"
	"syscall"
)

// unreachableCode maps a socket error reported by the kernel after it
// received an ICMP error for a connected socket.
func unreachableCode(err error) (int, bool) {
	switch {
	case errors.Is(err, syscall.ECONNREFUSED):
		return CodePortUnreachable, true
	case errors.Is(err, syscall.EHOSTUNREACH):
		return CodeHostUnreachable, true
	case errors.Is(err, syscall.ENETUNREACH):
		return CodeNetUnreachable, true
	case errors.Is(err, syscall.EPROTONOSUPPORT):
		return CodeProtocolUnreachable, true
	}
	return 0, false
}

// isReset reports a stream torn down by the peer.
func isReset(err error) bool {
	return errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EPIPE) ||
		errors.Is(err, syscall.ECONNABORTED)
}
