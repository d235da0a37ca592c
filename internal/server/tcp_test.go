package server

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/KilimcininKorOglu/pingkit/internal/metrics"
	"github.com/KilimcininKorOglu/pingkit/internal/probe"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

// startTCPServer runs s on loopback. The returned channel yields Serve's
// result.
func startTCPServer(t *testing.T, config TCPConfig, inj *Injector, opts ...Option) (*TCPServer, *net.TCPAddr, <-chan error) {
	t.Helper()

	config.Addr = "127.0.0.1:0"
	s, err := NewTCPServer(config, inj, opts...)
	if err != nil {
		t.Fatalf("NewTCPServer() error = %v", err)
	}
	if err := s.Listen(); err != nil {
		t.Fatalf("Listen() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx) }()
	t.Cleanup(cancel)

	return s, s.Addr().(*net.TCPAddr), done
}

type tcpClient struct {
	conn   net.Conn
	reader *bufio.Reader
}

func dialTCP(t *testing.T, addr *net.TCPAddr) *tcpClient {
	t.Helper()
	conn, err := net.DialTimeout("tcp4", addr.String(), 2*time.Second)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return &tcpClient{conn: conn, reader: bufio.NewReader(conn)}
}

func (c *tcpClient) roundTrip(t *testing.T, line string, wait time.Duration) (string, error) {
	t.Helper()
	if _, err := io.WriteString(c.conn, line+"\n"); err != nil {
		return "", err
	}
	c.conn.SetReadDeadline(time.Now().Add(wait))
	reply, err := c.reader.ReadString('\n')
	return strings.TrimRight(reply, "\n"), err
}

func TestTCPServerEchoesUppercase(t *testing.T) {
	for _, mode := range []Mode{ModeSequential, ModePool} {
		t.Run(string(mode), func(t *testing.T) {
			config := DefaultTCPConfig()
			config.Mode = mode
			_, addr, _ := startTCPServer(t, config, mustPreset(t, "reliable"))
			c := dialTCP(t, addr)

			for seq := 1; seq <= 3; seq++ {
				reply, err := c.roundTrip(t, fmt.Sprintf("Ping %d abc", seq), 2*time.Second)
				if err != nil {
					t.Fatalf("roundTrip() error = %v", err)
				}
				if want := fmt.Sprintf("PING %d ABC", seq); reply != want {
					t.Errorf("reply = %q, want %q", reply, want)
				}
			}
		})
	}
}

func TestTCPServerClosesAfterMaxMessages(t *testing.T) {
	m := metrics.NewMetricsWithRegistry(prometheus.NewRegistry())
	config := DefaultTCPConfig()
	config.MaxMessages = 3
	s, addr, _ := startTCPServer(t, config, mustPreset(t, "reliable"), WithMetrics(m))
	c := dialTCP(t, addr)

	for i := 0; i < 3; i++ {
		if _, err := c.roundTrip(t, "Ping", 2*time.Second); err != nil {
			t.Fatalf("message %d: %v", i+1, err)
		}
	}

	c.conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, err := c.reader.ReadString('\n'); !errors.Is(err, io.EOF) {
		t.Errorf("read after limit error = %v, want EOF", err)
	}

	if got := s.Stats().Messages; got != 3 {
		t.Errorf("Messages = %d, want 3", got)
	}

	deadline := time.Now().Add(time.Second)
	for testutil.ToFloat64(m.ConnectionsActive) != 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if got := testutil.ToFloat64(m.ConnectionsTotal); got != 1 {
		t.Errorf("connections = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.ConnectionsActive); got != 0 {
		t.Errorf("active = %v, want 0", got)
	}
}

func TestTCPServerDropKeepsConnection(t *testing.T) {
	_, addr, _ := startTCPServer(t, DefaultTCPConfig(), mustWeights(t, 0, 10, 0, 0))
	c := dialTCP(t, addr)

	for i := 0; i < 2; i++ {
		_, err := c.roundTrip(t, "Ping", 150*time.Millisecond)
		var ne net.Error
		if !errors.As(err, &ne) || !ne.Timeout() {
			t.Fatalf("message %d: error = %v, want timeout", i+1, err)
		}
	}
}

func TestTCPServerEmitsErrors(t *testing.T) {
	em := newRecordingEmitter()
	inj := mustWeights(t, 0, 0, 5, 5)
	_, addr, _ := startTCPServer(t, DefaultTCPConfig(), inj, WithEmitter(em))
	c := dialTCP(t, addr)

	local := c.conn.LocalAddr().(*net.TCPAddr)
	for i := 0; i < 4; i++ {
		io.WriteString(c.conn, "Ping\n")
		got := em.wait(t)
		if got.code != probe.CodeHostUnreachable && got.code != probe.CodePortUnreachable {
			t.Errorf("code = %d, want 1 or 3", got.code)
		}
		if got.flow.Proto != ProtoTCP || got.flow.ClientPort != local.Port || got.flow.ServerPort != addr.Port {
			t.Errorf("flow = %+v, want tcp %d -> %d", got.flow, local.Port, addr.Port)
		}
	}
}

func TestTCPServerMaxConnections(t *testing.T) {
	config := DefaultTCPConfig()
	config.MaxConnections = 2
	config.MaxMessages = 1
	s, addr, done := startTCPServer(t, config, mustPreset(t, "reliable"))

	for i := 0; i < 2; i++ {
		c := dialTCP(t, addr)
		if _, err := c.roundTrip(t, "Ping", 2*time.Second); err != nil {
			t.Fatalf("connection %d: %v", i+1, err)
		}
	}

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Serve() error = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Serve() did not return after the connection limit")
	}

	if got := s.Stats().Connections; got != 2 {
		t.Errorf("Connections = %d, want 2", got)
	}
	if _, err := net.DialTimeout("tcp4", addr.String(), 500*time.Millisecond); err == nil {
		t.Error("listener should be closed after the connection limit")
	}
}

func TestTCPServerPoolServesConcurrently(t *testing.T) {
	config := DefaultTCPConfig()
	config.Mode = ModePool
	config.Workers = 4
	_, addr, _ := startTCPServer(t, config, mustPreset(t, "reliable"))

	// Open every connection first so a sequential server would stall.
	clients := make([]*tcpClient, 4)
	for i := range clients {
		clients[i] = dialTCP(t, addr)
	}

	var wg sync.WaitGroup
	errs := make(chan error, len(clients))
	for i := len(clients) - 1; i >= 0; i-- {
		wg.Add(1)
		go func(c *tcpClient, i int) {
			defer wg.Done()
			reply, err := c.roundTrip(t, fmt.Sprintf("client %d", i), 2*time.Second)
			if err == nil && reply != fmt.Sprintf("CLIENT %d", i) {
				err = fmt.Errorf("reply = %q", reply)
			}
			errs <- err
		}(clients[i], i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Error(err)
		}
	}
}

func TestTCPServerRecoversFromPanic(t *testing.T) {
	m := metrics.NewMetricsWithRegistry(prometheus.NewRegistry())
	em := newRecordingEmitter()
	em.panic = true
	_, addr, _ := startTCPServer(t, DefaultTCPConfig(), mustWeights(t, 0, 0, 0, 10), WithEmitter(em), WithMetrics(m))

	c := dialTCP(t, addr)
	io.WriteString(c.conn, "Ping\n")
	c.conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, err := c.reader.ReadString('\n'); !errors.Is(err, io.EOF) {
		t.Errorf("read error = %v, want EOF after worker panic", err)
	}

	// The server keeps accepting.
	dialTCP(t, addr)
	if got := testutil.ToFloat64(m.PanicsRecovered); got != 1 {
		t.Errorf("panics = %v, want 1", got)
	}
}

func TestTCPServerWithProber(t *testing.T) {
	_, addr, _ := startTCPServer(t, DefaultTCPConfig(), mustPreset(t, "reliable"))

	config := probe.DefaultTCPProberConfig()
	config.Port = addr.Port
	p, err := probe.NewTCPProber(addr.IP, config)
	if err != nil {
		t.Fatalf("NewTCPProber() error = %v", err)
	}
	defer p.Close()

	for seq := 1; seq <= 5; seq++ {
		out, err := p.Probe(context.Background(), seq)
		if err != nil {
			t.Fatalf("Probe(%d) error = %v", seq, err)
		}
		if out.Kind != probe.KindReply {
			t.Errorf("Probe(%d) = %+v, want reply", seq, out)
		}
	}
}

func TestParseMode(t *testing.T) {
	if m, err := ParseMode("POOL"); err != nil || m != ModePool {
		t.Errorf("ParseMode(POOL) = %v, %v", m, err)
	}
	if _, err := ParseMode("forked"); !errors.Is(err, ErrInvalidMode) {
		t.Errorf("ParseMode(forked) error = %v, want ErrInvalidMode", err)
	}
	if _, err := NewTCPServer(TCPConfig{Mode: "forked"}, mustPreset(t, "reliable")); !errors.Is(err, ErrInvalidMode) {
		t.Errorf("NewTCPServer() error = %v, want ErrInvalidMode", err)
	}
}
