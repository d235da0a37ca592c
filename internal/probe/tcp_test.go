package probe

import (
	"bufio"
	"context"
	"errors"
	"net"
	"runtime"
	"strings"
	"testing"
	"time"
)

func TestDefaultTCPProberConfig(t *testing.T) {
	config := DefaultTCPProberConfig()

	if config.Timeout != time.Second {
		t.Errorf("Timeout = %v, want 1s", config.Timeout)
	}
	if config.Port != 14008 {
		t.Errorf("Port = %d, want 14008", config.Port)
	}
	if config.ErrorWatch {
		t.Error("ErrorWatch should be false by default")
	}
}

// startTCPEcho runs a loopback server that answers each line with
// respond(line) and closes a connection after perConn lines.
func startTCPEcho(t *testing.T, perConn int, respond func(string) string) int {
	t.Helper()

	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen() error = %v", err)
	}
	t.Cleanup(func() { ln.Close() })

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func(conn net.Conn) {
				defer conn.Close()
				r := bufio.NewReader(conn)
				for i := 0; i < perConn; i++ {
					line, err := r.ReadString('\n')
					if err != nil {
						return
					}
					if reply := respond(strings.TrimRight(line, "\n")); reply != "" {
						conn.Write([]byte(reply + "\n"))
					}
				}
			}(conn)
		}
	}()

	return ln.Addr().(*net.TCPAddr).Port
}

func newLoopbackTCPProber(t *testing.T, port int) *TCPProber {
	t.Helper()

	config := DefaultTCPProberConfig()
	config.Port = port
	config.Timeout = 300 * time.Millisecond

	prober, err := NewTCPProber(net.ParseIP("127.0.0.1"), config)
	if err != nil {
		t.Fatalf("NewTCPProber() error = %v", err)
	}
	t.Cleanup(func() { prober.Close() })
	return prober
}

func TestTCPProber_Echo(t *testing.T) {
	port := startTCPEcho(t, 100, strings.ToUpper)
	prober := newLoopbackTCPProber(t, port)

	if prober.Name() != "tcp" {
		t.Errorf("Name() = %q, want %q", prober.Name(), "tcp")
	}

	for seq := 1; seq <= 5; seq++ {
		out, err := prober.Probe(context.Background(), seq)
		if err != nil {
			t.Fatalf("Probe(%d) error = %v", seq, err)
		}
		if out.Kind != KindReply || out.Seq != seq {
			t.Fatalf("Probe(%d) = %+v, want reply", seq, out)
		}
	}
}

func TestTCPProber_ResetThenRedial(t *testing.T) {
	// The server hangs up after every line.
	port := startTCPEcho(t, 1, strings.ToUpper)
	prober := newLoopbackTCPProber(t, port)

	ctx := context.Background()

	out, err := prober.Probe(ctx, 1)
	if err != nil || out.Kind != KindReply {
		t.Fatalf("Probe(1) = %+v, %v; want reply", out, err)
	}

	out, err = prober.Probe(ctx, 2)
	if err != nil {
		t.Fatalf("Probe(2) error = %v", err)
	}
	if out.Kind != KindReset {
		t.Fatalf("Probe(2) = %v, want reset", out.Kind)
	}

	out, err = prober.Probe(ctx, 3)
	if err != nil || out.Kind != KindReply {
		t.Fatalf("Probe(3) = %+v, %v; want reply after redial", out, err)
	}
}

func TestTCPProber_SilentDrop(t *testing.T) {
	port := startTCPEcho(t, 100, func(string) string { return "" })
	prober := newLoopbackTCPProber(t, port)

	out, err := prober.Probe(context.Background(), 1)
	if err != nil {
		t.Fatalf("Probe() error = %v", err)
	}
	if out.Kind != KindTimeout {
		t.Errorf("Probe() = %v, want timeout", out.Kind)
	}

	// A dropped line does not close the stream.
	if prober.conn == nil {
		t.Error("connection was closed after a silent drop")
	}
}

func TestTCPProber_ConnectionRefused(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("Skipping: relies on Linux refusing loopback connections immediately")
	}

	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()

	prober := newLoopbackTCPProber(t, port)

	out, err := prober.Probe(context.Background(), 1)
	if err != nil {
		t.Fatalf("Probe() error = %v", err)
	}
	if out.Kind != KindUnreachable || out.Code != CodePortUnreachable {
		t.Errorf("Probe() = %+v, want port unreachable", out)
	}
}

func TestTCPProber_Closed(t *testing.T) {
	prober := newLoopbackTCPProber(t, 9)
	prober.Close()

	if _, err := prober.Probe(context.Background(), 1); !errors.Is(err, ErrSocketClosed) {
		t.Errorf("Probe() after Close error = %v, want ErrSocketClosed", err)
	}
}

func TestTCPProber_RTTExcludesConnect(t *testing.T) {
	port := startTCPEcho(t, 100, strings.ToUpper)
	prober := newLoopbackTCPProber(t, port)

	const dialDelay = 200 * time.Millisecond
	dialer := &net.Dialer{}
	prober.dial = func(ctx context.Context, network, address string) (net.Conn, error) {
		time.Sleep(dialDelay)
		return dialer.DialContext(ctx, network, address)
	}

	out, err := prober.Probe(context.Background(), 1)
	if err != nil || out.Kind != KindReply {
		t.Fatalf("Probe(1) = %+v, %v; want reply", out, err)
	}
	if out.RTT >= dialDelay {
		t.Errorf("RTT = %v, includes the %v spent connecting", out.RTT, dialDelay)
	}
}

func TestTCPProber_WatcherPerProbe(t *testing.T) {
	port := startTCPEcho(t, 100, func(string) string { return "" })
	prober := newLoopbackTCPProber(t, port)
	prober.config.Timeout = 50 * time.Millisecond
	prober.config.ErrorTimeout = 50 * time.Millisecond

	watchers := &scriptedWatchers{clock: &fakeClock{now: testEpoch}}
	prober.openWatcher = watchers.open

	for seq := 1; seq <= 3; seq++ {
		out, err := prober.Probe(context.Background(), seq)
		if err != nil {
			t.Fatalf("Probe(%d) error = %v", seq, err)
		}
		if out.Kind != KindTimeout {
			t.Errorf("Probe(%d) = %v, want timeout", seq, out.Kind)
		}
	}

	if len(watchers.conns) != 3 {
		t.Fatalf("opened %d watchers, want 3", len(watchers.conns))
	}
	for i, conn := range watchers.conns {
		if !conn.closed {
			t.Errorf("watcher %d left open", i+1)
		}
	}
}
