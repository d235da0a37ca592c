package probe

import (
	"context"
	"encoding/binary"
	"fmt"
	"net"
	"os"
	"time"

	"golang.org/x/net/icmp"
)

// ICMPProberConfig holds configuration for the ICMP prober.
type ICMPProberConfig struct {
	// Timeout is the receive budget of each probe
	Timeout time.Duration

	// TTL of outgoing requests, 0 keeps the system default
	TTL int

	// Identifier of the echo requests. If 0, uses process ID
	Identifier uint16

	// Codec frames the packets
	Codec Codec

	// Unprivileged skips the raw socket and uses a datagram ICMP socket
	Unprivileged bool
}

// DefaultICMPProberConfig returns a default ICMP prober configuration.
func DefaultICMPProberConfig() ICMPProberConfig {
	return ICMPProberConfig{
		Timeout: time.Second,
		Codec:   DefaultCodec(),
	}
}

// ICMPProber implements the Prober interface using ICMP Echo requests.
type ICMPProber struct {
	config     ICMPProberConfig
	conn       *icmp.PacketConn
	recv       *Receiver
	dest       net.Addr
	identifier uint16
	privileged bool
}

// NewICMPProber creates a new ICMP prober for dest. It opens a raw socket
// and falls back to an unprivileged datagram socket where the system
// allows one. In that mode the kernel owns the identifier.
func NewICMPProber(dest net.IP, config ICMPProberConfig) (*ICMPProber, error) {
	ip4 := dest.To4()
	if ip4 == nil {
		return nil, ErrNotIPv4
	}
	if config.Timeout == 0 {
		config.Timeout = time.Second
	}
	if config.TTL < 0 || config.TTL > 255 {
		return nil, ErrInvalidTTL
	}

	identifier := config.Identifier
	if identifier == 0 {
		identifier = uint16(os.Getpid() & 0xffff)
	}

	p := &ICMPProber{config: config, identifier: identifier}

	var err error
	if !config.Unprivileged {
		p.conn, err = icmp.ListenPacket("ip4:icmp", "0.0.0.0")
		p.privileged = err == nil
	}
	if p.conn == nil {
		var uerr error
		p.conn, uerr = icmp.ListenPacket("udp4", "0.0.0.0")
		if uerr != nil {
			if err == nil {
				err = uerr
			}
			return nil, fmt.Errorf("%w: %v", ErrPermissionDenied, err)
		}
	}

	if p.privileged {
		p.dest = &net.IPAddr{IP: ip4}
	} else {
		p.dest = &net.UDPAddr{IP: ip4}
		if la, ok := p.conn.LocalAddr().(*net.UDPAddr); ok {
			// The kernel writes the socket's port into the identifier field
			// in network order.
			var wire [2]byte
			binary.BigEndian.PutUint16(wire[:], uint16(la.Port))
			p.identifier = config.Codec.order().Uint16(wire[:])
		}
	}

	if config.TTL > 0 {
		if err := p.conn.IPv4PacketConn().SetTTL(config.TTL); err != nil {
			p.conn.Close()
			return nil, fmt.Errorf("failed to set TTL: %w", err)
		}
	}

	p.recv = NewReceiver(p.conn, config.Codec)
	return p, nil
}

// Probe sends one echo request and waits for its reply or error.
func (p *ICMPProber) Probe(ctx context.Context, seq int) (Outcome, error) {
	if p.conn == nil {
		return Outcome{}, ErrSocketClosed
	}

	packet := p.config.Codec.EncodeEchoRequest(p.identifier, uint16(seq), time.Now())
	if _, err := p.conn.WriteTo(packet, p.dest); err != nil {
		if code, ok := unreachableCode(err); ok {
			return Outcome{Seq: seq, Kind: KindUnreachable, Code: code}, nil
		}
		return Outcome{}, fmt.Errorf("failed to send echo request: %w", err)
	}

	out, err := p.recv.Wait(ctx, Expect{ID: p.identifier, Seq: uint16(seq)}, p.config.Timeout)
	if err != nil {
		return Outcome{}, err
	}
	out.Seq = seq
	return out, nil
}

// Identifier returns the identifier carried by the echo requests.
func (p *ICMPProber) Identifier() uint16 {
	return p.identifier
}

// Name returns the probe method name.
func (p *ICMPProber) Name() string {
	return "icmp"
}

// RequiresRoot reports whether the prober runs on a raw socket.
func (p *ICMPProber) RequiresRoot() bool {
	return p.privileged
}

// Close releases resources held by the prober.
func (p *ICMPProber) Close() error {
	if p.conn == nil {
		return nil
	}
	err := p.conn.Close()
	p.conn = nil
	return err
}
