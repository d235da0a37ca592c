package probe

import (
	"context"
	"errors"
	"net"
	"os"
	"runtime"
	"testing"
	"time"
)

func TestNewICMPProber(t *testing.T) {
	// Skip if not running as admin/root
	if !canCreateRawSocket() {
		t.Skip("Skipping: requires elevated privileges")
	}

	prober, err := NewICMPProber(net.ParseIP("127.0.0.1"), ICMPProberConfig{
		Timeout: 2 * time.Second,
	})
	if err != nil {
		t.Fatalf("NewICMPProber() error = %v", err)
	}
	defer prober.Close()

	if prober.Name() != "icmp" {
		t.Errorf("Name() = %q, want %q", prober.Name(), "icmp")
	}

	if !prober.RequiresRoot() {
		t.Error("RequiresRoot() = false, want true")
	}
}

func TestNewICMPProber_RejectsIPv6(t *testing.T) {
	_, err := NewICMPProber(net.ParseIP("::1"), DefaultICMPProberConfig())
	if !errors.Is(err, ErrNotIPv4) {
		t.Errorf("NewICMPProber(::1) error = %v, want ErrNotIPv4", err)
	}
}

func TestNewICMPProber_InvalidTTL(t *testing.T) {
	config := DefaultICMPProberConfig()
	config.TTL = 256

	_, err := NewICMPProber(net.ParseIP("127.0.0.1"), config)
	if !errors.Is(err, ErrInvalidTTL) {
		t.Errorf("NewICMPProber(TTL=256) error = %v, want ErrInvalidTTL", err)
	}
}

func TestICMPProber_ProbeLocalhost(t *testing.T) {
	if !canCreateRawSocket() {
		t.Skip("Skipping: requires elevated privileges")
	}

	prober, err := NewICMPProber(net.ParseIP("127.0.0.1"), ICMPProberConfig{
		Timeout: 2 * time.Second,
		TTL:     64,
		Codec:   DefaultCodec(),
	})
	if err != nil {
		t.Fatalf("NewICMPProber() error = %v", err)
	}
	defer prober.Close()

	for seq := 1; seq <= 3; seq++ {
		out, err := prober.Probe(context.Background(), seq)
		if err != nil {
			t.Fatalf("Probe(%d) error = %v", seq, err)
		}
		if out.Kind != KindReply {
			t.Fatalf("Probe(%d) = %v, want reply", seq, out.Kind)
		}
		if out.Seq != seq {
			t.Errorf("Seq = %d, want %d", out.Seq, seq)
		}
		if out.RTT > time.Second {
			t.Errorf("RTT to localhost = %v, expected < 1s", out.RTT)
		}
	}
}

func TestICMPProber_Unprivileged(t *testing.T) {
	prober, err := NewICMPProber(net.ParseIP("127.0.0.1"), ICMPProberConfig{
		Timeout:      2 * time.Second,
		Unprivileged: true,
		Codec:        DefaultCodec(),
	})
	if err != nil {
		t.Skipf("Skipping: datagram ICMP sockets unavailable: %v", err)
	}
	defer prober.Close()

	if prober.RequiresRoot() {
		t.Error("RequiresRoot() = true for a datagram socket")
	}

	out, err := prober.Probe(context.Background(), 1)
	if err != nil {
		t.Fatalf("Probe() error = %v", err)
	}
	if out.Kind != KindReply {
		t.Errorf("Probe() = %v, want reply", out.Kind)
	}
}

func TestICMPProber_ContextCancellation(t *testing.T) {
	if !canCreateRawSocket() {
		t.Skip("Skipping: requires elevated privileges")
	}

	prober, err := NewICMPProber(net.ParseIP("192.0.2.1"), ICMPProberConfig{ // TEST-NET, should not respond
		Timeout: 10 * time.Second, // Long timeout
	})
	if err != nil {
		t.Fatalf("NewICMPProber() error = %v", err)
	}
	defer prober.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel() // Cancel immediately

	_, err = prober.Probe(ctx, 1)
	if err == nil {
		t.Error("Probe with cancelled context should return error")
	}
}

func TestICMPProber_Closed(t *testing.T) {
	if !canCreateRawSocket() {
		t.Skip("Skipping: requires elevated privileges")
	}

	prober, err := NewICMPProber(net.ParseIP("127.0.0.1"), DefaultICMPProberConfig())
	if err != nil {
		t.Fatalf("NewICMPProber() error = %v", err)
	}
	prober.Close()

	if _, err := prober.Probe(context.Background(), 1); !errors.Is(err, ErrSocketClosed) {
		t.Errorf("Probe() after Close error = %v, want ErrSocketClosed", err)
	}
}

// canCreateRawSocket checks if we can create raw ICMP sockets.
func canCreateRawSocket() bool {
	// On Windows, check if running as administrator
	if runtime.GOOS == "windows" {
		// Try to open a privileged resource
		_, err := os.Open("\\\\.\\PHYSICALDRIVE0")
		return err == nil
	}

	// On Unix-like systems, check if running as root
	return os.Getuid() == 0
}
