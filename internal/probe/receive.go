package probe

import (
	"context"
	"net"
	"time"
)

// PacketReader is the part of a packet socket the receive loop needs.
type PacketReader interface {
	ReadFrom(b []byte) (int, net.Addr, error)
	SetReadDeadline(t time.Time) error
}

// Receiver waits for the packet answering one probe on a socket that may
// also carry unrelated traffic.
type Receiver struct {
	conn  PacketReader
	codec Codec
	now   func() time.Time
	buf   []byte
}

// NewReceiver creates a receiver reading from conn.
func NewReceiver(conn PacketReader, codec Codec) *Receiver {
	return &Receiver{
		conn:  conn,
		codec: codec,
		now:   time.Now,
		buf:   make([]byte, 1500),
	}
}

// Wait blocks until a packet matching expect arrives or timeout elapses.
// Time spent on every wake-up is deducted from the budget, so unrelated
// packets never extend the total wait beyond timeout.
//
// Timeouts are outcomes, not errors. An error is returned only for socket
// failures and context cancellation.
func (r *Receiver) Wait(ctx context.Context, expect Expect, timeout time.Duration) (Outcome, error) {
	remaining := timeout

	// Unblock a pending read on cancellation.
	stop := context.AfterFunc(ctx, func() {
		r.conn.SetReadDeadline(time.Now())
	})
	defer stop()

	for remaining > 0 {
		if err := ctx.Err(); err != nil {
			return Outcome{}, err
		}

		start := r.now()
		deadline := start.Add(remaining)
		if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
			deadline = d
		}
		if err := r.conn.SetReadDeadline(deadline); err != nil {
			return Outcome{}, err
		}

		n, peer, err := r.conn.ReadFrom(r.buf)
		end := r.now()
		remaining -= end.Sub(start)

		if err != nil {
			if isTimeoutError(err) {
				if ctxErr := contextDone(ctx); ctxErr != nil {
					return Outcome{}, ctxErr
				}
				break
			}
			return Outcome{}, err
		}

		out, mine := r.codec.Decode(r.buf[:n], expect, end)
		if !mine {
			continue
		}
		if out.Seq == 0 {
			out.Seq = int(expect.Seq)
		}
		out.Peer = addrIP(peer)
		return out, nil
	}

	return Outcome{Seq: int(expect.Seq), Kind: KindTimeout}, nil
}

func addrIP(addr net.Addr) net.IP {
	switch a := addr.(type) {
	case *net.IPAddr:
		return a.IP
	case *net.UDPAddr:
		return a.IP
	case *net.TCPAddr:
		return a.IP
	default:
		return nil
	}
}
