package probe

import (
	"context"
	"fmt"
	"net"
	"time"

	"golang.org/x/net/ipv4"
)

// UDPProberConfig holds configuration for the UDP prober.
type UDPProberConfig struct {
	// Port is the echo service port (default: 14008)
	Port int

	// Timeout is the maximum time to wait on the data socket
	Timeout time.Duration

	// ErrorTimeout is how long the error watcher is polled after the data
	// socket times out
	ErrorTimeout time.Duration

	// TTL of outgoing datagrams, 0 keeps the system default
	TTL int

	// ErrorWatch enables the raw ICMP error watcher
	ErrorWatch bool

	// Codec decodes the errors seen by the watcher
	Codec Codec
}

// DefaultUDPProberConfig returns a default UDP prober configuration.
func DefaultUDPProberConfig() UDPProberConfig {
	return UDPProberConfig{
		Port:         DefaultPort,
		Timeout:      time.Second,
		ErrorTimeout: time.Second,
		Codec:        DefaultCodec(),
	}
}

// UDPProber implements the Prober interface over a connected UDP socket.
// Each probe is a text datagram that the echo service answers uppercased.
// Unreachability is learned from the kernel's socket errors and, when
// enabled, from the error watcher.
type UDPProber struct {
	config      UDPProberConfig
	conn        *net.UDPConn
	remote      *net.UDPAddr
	openWatcher openWatcherFunc
	buf         []byte
}

// NewUDPProber creates a new UDP prober for dest.
func NewUDPProber(dest net.IP, config UDPProberConfig) (*UDPProber, error) {
	ip4 := dest.To4()
	if ip4 == nil {
		return nil, ErrNotIPv4
	}
	if config.Port == 0 {
		config.Port = DefaultPort
	}
	if config.Port < 1 || config.Port > 65535 {
		return nil, ErrInvalidPort
	}
	if config.TTL < 0 || config.TTL > 255 {
		return nil, ErrInvalidTTL
	}
	if config.Timeout == 0 {
		config.Timeout = time.Second
	}
	if config.ErrorTimeout == 0 {
		config.ErrorTimeout = config.Timeout
	}

	remote := &net.UDPAddr{IP: ip4, Port: config.Port}
	conn, err := net.DialUDP("udp4", nil, remote)
	if err != nil {
		return nil, fmt.Errorf("failed to create UDP socket: %w", err)
	}

	if config.TTL > 0 {
		if err := ipv4.NewConn(conn).SetTTL(config.TTL); err != nil {
			conn.Close()
			return nil, fmt.Errorf("failed to set TTL: %w", err)
		}
	}

	p := &UDPProber{
		config: config,
		conn:   conn,
		remote: remote,
		buf:    make([]byte, 1500),
	}

	if config.ErrorWatch {
		if err := checkErrorWatch(NewErrorWatcher, config.Codec); err != nil {
			conn.Close()
			return nil, err
		}
		p.openWatcher = NewErrorWatcher
	}

	return p, nil
}

// Probe sends one datagram and waits for the matching echo.
func (p *UDPProber) Probe(ctx context.Context, seq int) (Outcome, error) {
	if p.conn == nil {
		return Outcome{}, ErrSocketClosed
	}

	watcher, err := p.watcherForProbe()
	if err != nil {
		return Outcome{}, err
	}
	if watcher != nil {
		defer watcher.Close()
	}

	sent := time.Now()
	payload := TextPayload(seq, sent)
	want := ExpectedEcho(payload)

	if _, err := p.conn.Write([]byte(payload)); err != nil {
		if out, ok := p.classify(seq, err); ok {
			return out, nil
		}
		return Outcome{}, fmt.Errorf("failed to send probe: %w", err)
	}

	deadline := sent.Add(p.config.Timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := p.conn.SetReadDeadline(deadline); err != nil {
		return Outcome{}, fmt.Errorf("failed to set deadline: %w", err)
	}
	stop := context.AfterFunc(ctx, func() {
		p.conn.SetReadDeadline(time.Now())
	})
	defer stop()

	for {
		n, err := p.conn.Read(p.buf)
		if err != nil {
			if isTimeoutError(err) {
				if ctxErr := contextDone(ctx); ctxErr != nil {
					return Outcome{}, ctxErr
				}
				return p.watch(ctx, watcher, seq)
			}
			if out, ok := p.classify(seq, err); ok {
				return out, nil
			}
			return Outcome{}, fmt.Errorf("read error: %w", err)
		}

		// Late echoes of earlier probes are skipped.
		if string(p.buf[:n]) != want {
			continue
		}

		return Outcome{
			Seq:  seq,
			Kind: KindReply,
			RTT:  time.Since(sent),
			Peer: p.remote.IP,
		}, nil
	}
}

// classify turns a socket error into an outcome when the kernel is
// relaying an ICMP error.
func (p *UDPProber) classify(seq int, err error) (Outcome, bool) {
	if code, ok := unreachableCode(err); ok {
		return Outcome{Seq: seq, Kind: KindUnreachable, Code: code, Peer: p.remote.IP}, true
	}
	if isReset(err) {
		return Outcome{Seq: seq, Kind: KindUnreachable, Code: CodePortUnreachable, Peer: p.remote.IP}, true
	}
	return Outcome{}, false
}

func (p *UDPProber) watcherForProbe() (*ErrorWatcher, error) {
	if p.openWatcher == nil {
		return nil, nil
	}
	return p.openWatcher(p.config.Codec)
}

func (p *UDPProber) watch(ctx context.Context, watcher *ErrorWatcher, seq int) (Outcome, error) {
	if watcher == nil {
		return Outcome{Seq: seq, Kind: KindTimeout}, nil
	}
	local := p.conn.LocalAddr().(*net.UDPAddr)
	out, err := watcher.Wait(ctx, seq, local.Port, p.remote.Port, p.config.ErrorTimeout)
	out.Seq = seq
	return out, err
}

// Name returns the probe method name.
func (p *UDPProber) Name() string {
	return "udp"
}

// RequiresRoot returns true when the error watcher is enabled.
func (p *UDPProber) RequiresRoot() bool {
	return p.config.ErrorWatch
}

// Close releases resources held by the prober.
func (p *UDPProber) Close() error {
	if p.conn == nil {
		return nil
	}
	err := p.conn.Close()
	p.conn = nil
	return err
}
