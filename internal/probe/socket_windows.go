//go:build windows

package probe

import (
	"errors"
	"syscall"
)

// Winsock error numbers.
const (
	wsaECONNABORTED = syscall.Errno(10053)
	wsaECONNRESET   = syscall.Errno(10054)
	wsaENETUNREACH  = syscall.Errno(10051)
	wsaECONNREFUSED = syscall.Errno(10061)
	wsaEHOSTUNREACH = syscall.Errno(10065)
)

// unreachableCode maps a Winsock error reported for a connected socket.
func unreachableCode(err error) (int, bool) {
	switch {
	case errors.Is(err, wsaECONNREFUSED):
		return CodePortUnreachable, true
	case errors.Is(err, wsaEHOSTUNREACH):
		return CodeHostUnreachable, true
	case errors.Is(err, wsaENETUNREACH):
		return CodeNetUnreachable, true
	}
	return 0, false
}

// isReset reports a stream torn down by the peer. Windows also reports
// WSAECONNRESET on UDP sockets after a port unreachable, which the UDP
// prober checks first.
func isReset(err error) bool {
	return errors.Is(err, wsaECONNRESET) || errors.Is(err, wsaECONNABORTED)
}
