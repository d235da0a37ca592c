package probe

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net"
	"strings"
	"time"

	"golang.org/x/net/ipv4"
)

// TCPProberConfig holds configuration for the TCP prober.
type TCPProberConfig struct {
	// Port is the echo service port (default: 14008)
	Port int

	// Timeout bounds the connect and the wait for each echo
	Timeout time.Duration

	// ErrorTimeout is how long the error watcher is polled after a timeout
	ErrorTimeout time.Duration

	// TTL of outgoing segments, 0 keeps the system default
	TTL int

	// ErrorWatch enables the raw ICMP error watcher
	ErrorWatch bool

	// Codec decodes the errors seen by the watcher
	Codec Codec
}

// DefaultTCPProberConfig returns a default TCP prober configuration.
func DefaultTCPProberConfig() TCPProberConfig {
	return TCPProberConfig{
		Port:         DefaultPort,
		Timeout:      time.Second,
		ErrorTimeout: time.Second,
		Codec:        DefaultCodec(),
	}
}

// TCPProber implements the Prober interface over one stream per session.
// Probes are text lines answered uppercased. A reset or closed stream is
// reported once and the next probe dials again.
type TCPProber struct {
	config  TCPProberConfig
	remote  *net.TCPAddr
	conn    net.Conn
	reader      *bufio.Reader
	openWatcher openWatcherFunc
	dial        func(ctx context.Context, network, address string) (net.Conn, error)
	closed      bool
}

// NewTCPProber creates a new TCP prober for dest. The connection is made
// by the first probe.
func NewTCPProber(dest net.IP, config TCPProberConfig) (*TCPProber, error) {
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

	dialer := &net.Dialer{Timeout: config.Timeout}
	p := &TCPProber{
		config: config,
		remote: &net.TCPAddr{IP: ip4, Port: config.Port},
		dial:   dialer.DialContext,
	}

	if config.ErrorWatch {
		if err := checkErrorWatch(NewErrorWatcher, config.Codec); err != nil {
			return nil, err
		}
		p.openWatcher = NewErrorWatcher
	}

	return p, nil
}

// Probe sends one line and waits for the matching echo.
func (p *TCPProber) Probe(ctx context.Context, seq int) (Outcome, error) {
	if p.closed {
		return Outcome{}, ErrSocketClosed
	}

	watcher, err := p.watcherForProbe()
	if err != nil {
		return Outcome{}, err
	}
	if watcher != nil {
		defer watcher.Close()
	}

	if p.conn == nil {
		out, ok, err := p.connect(ctx, watcher, seq)
		if err != nil || !ok {
			return out, err
		}
	}

	// Taken after the dial so the handshake is not counted in the RTT.
	sent := time.Now()
	payload := TextPayload(seq, sent)
	want := ExpectedEcho(payload)

	if _, err := io.WriteString(p.conn, payload+"\n"); err != nil {
		return p.disconnect(seq, err), nil
	}

	deadline := sent.Add(p.config.Timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := p.conn.SetReadDeadline(deadline); err != nil {
		return Outcome{}, fmt.Errorf("failed to set deadline: %w", err)
	}
	conn := p.conn
	stop := context.AfterFunc(ctx, func() {
		conn.SetReadDeadline(time.Now())
	})
	defer stop()

	for {
		line, err := p.reader.ReadString('\n')
		if err != nil {
			if isTimeoutError(err) {
				if ctxErr := contextDone(ctx); ctxErr != nil {
					return Outcome{}, ctxErr
				}
				return p.watch(ctx, watcher, seq)
			}
			return p.disconnect(seq, err), nil
		}

		if strings.TrimRight(line, "\r\n") != want {
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

// connect dials the echo service. ok is false when the dial itself ended
// the probe, in which case out holds its outcome.
func (p *TCPProber) connect(ctx context.Context, watcher *ErrorWatcher, seq int) (out Outcome, ok bool, err error) {
	conn, err := p.dial(ctx, "tcp4", p.remote.String())
	if err != nil {
		if ctxErr := contextDone(ctx); ctxErr != nil {
			return Outcome{}, false, ctxErr
		}
		if isTimeoutError(err) {
			out, err := p.watch(ctx, watcher, seq)
			return out, false, err
		}
		if code, found := unreachableCode(err); found {
			return Outcome{Seq: seq, Kind: KindUnreachable, Code: code, Peer: p.remote.IP}, false, nil
		}
		if isReset(err) {
			return Outcome{Seq: seq, Kind: KindReset}, false, nil
		}
		return Outcome{}, false, fmt.Errorf("failed to connect: %w", err)
	}

	if p.config.TTL > 0 {
		if err := ipv4.NewConn(conn).SetTTL(p.config.TTL); err != nil {
			conn.Close()
			return Outcome{}, false, fmt.Errorf("failed to set TTL: %w", err)
		}
	}

	p.conn = conn
	p.reader = bufio.NewReader(conn)
	return Outcome{}, true, nil
}

// disconnect drops the stream after a write or read failure and reports
// the probe as lost.
func (p *TCPProber) disconnect(seq int, err error) Outcome {
	p.dropConn()

	if code, ok := unreachableCode(err); ok {
		return Outcome{Seq: seq, Kind: KindUnreachable, Code: code, Peer: p.remote.IP}
	}
	// EOF, resets and any other stream failure end the connection alike.
	return Outcome{Seq: seq, Kind: KindReset, Peer: p.remote.IP}
}

func (p *TCPProber) watcherForProbe() (*ErrorWatcher, error) {
	if p.openWatcher == nil {
		return nil, nil
	}
	return p.openWatcher(p.config.Codec)
}

func (p *TCPProber) watch(ctx context.Context, watcher *ErrorWatcher, seq int) (Outcome, error) {
	if watcher == nil {
		return Outcome{Seq: seq, Kind: KindTimeout}, nil
	}
	local := 0
	if p.conn != nil {
		local = p.conn.LocalAddr().(*net.TCPAddr).Port
	}
	out, err := watcher.Wait(ctx, seq, local, p.remote.Port, p.config.ErrorTimeout)
	out.Seq = seq
	return out, err
}

func (p *TCPProber) dropConn() {
	if p.conn != nil {
		p.conn.Close()
		p.conn = nil
		p.reader = nil
	}
}

// Name returns the probe method name.
func (p *TCPProber) Name() string {
	return "tcp"
}

// RequiresRoot returns true when the error watcher is enabled.
func (p *TCPProber) RequiresRoot() bool {
	return p.config.ErrorWatch
}

// Close releases resources held by the prober.
func (p *TCPProber) Close() error {
	p.closed = true
	p.dropConn()
	return nil
}
