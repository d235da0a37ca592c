package probe

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/net/icmp"
)

// ErrorWatcher observes ICMP errors addressed to this host on a raw socket.
// UDP and TCP probers use it as the second socket of the dual-socket
// receive: after the data socket times out, the watcher is polled for an
// unreachable report quoting the probe's ports.
//
// Quotes carry ports but no sequence number, so a watcher serves one probe.
// Probers open it before the send and close it when the probe ends, which
// keeps errors from earlier probes out of its buffer.
type ErrorWatcher struct {
	conn packetConn
	recv *Receiver
}

// openWatcherFunc opens the watcher for a single probe.
type openWatcherFunc func(Codec) (*ErrorWatcher, error)

type packetConn interface {
	PacketReader
	Close() error
}

// NewErrorWatcher opens the raw ICMP socket.
func NewErrorWatcher(codec Codec) (*ErrorWatcher, error) {
	conn, err := icmp.ListenPacket("ip4:icmp", "0.0.0.0")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPermissionDenied, err)
	}
	return newErrorWatcher(conn, codec), nil
}

func newErrorWatcher(conn packetConn, codec Codec) *ErrorWatcher {
	return &ErrorWatcher{conn: conn, recv: NewReceiver(conn, codec)}
}

// Wait polls for an unreachable report quoting localPort and remotePort.
func (w *ErrorWatcher) Wait(ctx context.Context, seq, localPort, remotePort int, timeout time.Duration) (Outcome, error) {
	return w.recv.Wait(ctx, Expect{
		Seq:        uint16(seq),
		LocalPort:  localPort,
		RemotePort: remotePort,
	}, timeout)
}

// checkErrorWatch opens and closes a watcher so permission problems
// surface when the prober is created rather than on the first probe.
func checkErrorWatch(open openWatcherFunc, codec Codec) error {
	w, err := open(codec)
	if err != nil {
		return err
	}
	return w.Close()
}

// Close releases the raw socket.
func (w *ErrorWatcher) Close() error {
	return w.conn.Close()
}
