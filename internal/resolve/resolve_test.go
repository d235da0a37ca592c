package resolve

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"
)

type fakeLookup struct {
	ips       map[string][]net.IP
	names     map[string][]string
	addrCalls int
}

func (f *fakeLookup) LookupIP(_ context.Context, network, host string) ([]net.IP, error) {
	if network != "ip4" {
		return nil, errors.New("unexpected network " + network)
	}
	ips, ok := f.ips[host]
	if !ok {
		return nil, &net.DNSError{Err: "no such host", Name: host, IsNotFound: true}
	}
	return ips, nil
}

func (f *fakeLookup) LookupAddr(_ context.Context, addr string) ([]string, error) {
	f.addrCalls++
	names, ok := f.names[addr]
	if !ok {
		return nil, &net.DNSError{Err: "no such host", Name: addr, IsNotFound: true}
	}
	return names, nil
}

func newFake() *fakeLookup {
	return &fakeLookup{
		ips: map[string][]net.IP{
			"echo.example": {net.ParseIP("2001:db8::1"), net.ParseIP("192.0.2.10")},
			"v6.example":   {net.ParseIP("2001:db8::2")},
		},
		names: map[string][]string{
			"192.0.2.10": {"echo.example."},
		},
	}
}

func TestResolve(t *testing.T) {
	config := DefaultConfig()
	config.Aliases = map[string]string{"lab": "echo.example"}
	r := NewWithLookup(config, newFake())

	tests := []struct {
		name    string
		target  string
		want    string
		wantErr bool
	}{
		{"literal IPv4", "10.1.2.3", "10.1.2.3", false},
		{"hostname prefers IPv4", "echo.example", "192.0.2.10", false},
		{"alias", "lab", "192.0.2.10", false},
		{"literal IPv6", "::1", "", true},
		{"IPv6 only host", "v6.example", "", true},
		{"unknown host", "nowhere.example", "", true},
		{"empty", "  ", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ip, err := r.Resolve(context.Background(), tt.target)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Resolve(%q) error = %v, wantErr %v", tt.target, err, tt.wantErr)
			}
			if !tt.wantErr && ip.String() != tt.want {
				t.Errorf("Resolve(%q) = %v, want %s", tt.target, ip, tt.want)
			}
			if !tt.wantErr && len(ip) != net.IPv4len {
				t.Errorf("Resolve(%q) returned %d-byte address", tt.target, len(ip))
			}
		})
	}
}

func TestResolveNoIPv4(t *testing.T) {
	r := NewWithLookup(DefaultConfig(), newFake())
	if _, err := r.Resolve(context.Background(), "v6.example"); !errors.Is(err, ErrNoIPv4) {
		t.Errorf("Resolve() error = %v, want ErrNoIPv4", err)
	}
}

func TestReverseCaches(t *testing.T) {
	fake := newFake()
	r := NewWithLookup(DefaultConfig(), fake)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if name := r.Reverse(ctx, net.ParseIP("192.0.2.10")); name != "echo.example" {
			t.Fatalf("Reverse() = %q, want echo.example", name)
		}
	}
	if fake.addrCalls != 1 {
		t.Errorf("LookupAddr calls = %d, want 1", fake.addrCalls)
	}

	// Failures are cached as empty names.
	for i := 0; i < 2; i++ {
		if name := r.Reverse(ctx, net.ParseIP("192.0.2.99")); name != "" {
			t.Errorf("Reverse(unknown) = %q, want empty", name)
		}
	}
	if fake.addrCalls != 2 {
		t.Errorf("LookupAddr calls = %d, want 2", fake.addrCalls)
	}

	if name := r.Reverse(ctx, nil); name != "" {
		t.Errorf("Reverse(nil) = %q, want empty", name)
	}
}

func TestCache(t *testing.T) {
	cache := NewCache[string](3, time.Minute)

	// Test basic set/get
	cache.Set("key1", "value1")
	val, ok := cache.Get("key1")
	if !ok || val != "value1" {
		t.Errorf("Get(key1) = %v, %v; want value1, true", val, ok)
	}

	// Test missing key
	if _, ok := cache.Get("missing"); ok {
		t.Error("Get(missing) should return false")
	}

	// Test eviction
	cache.Set("key2", "value2")
	cache.Set("key3", "value3")
	cache.Set("key4", "value4")

	if cache.Len() != 3 {
		t.Errorf("Len() = %d, want 3", cache.Len())
	}

	// Test clear
	cache.Clear()
	if cache.Len() != 0 {
		t.Errorf("Len() after Clear() = %d, want 0", cache.Len())
	}
}

func TestCacheEvictsLeastRecentlyUsed(t *testing.T) {
	now := time.Unix(0, 0)
	cache := NewCache[int](2, time.Hour)
	cache.now = func() time.Time { return now }

	cache.Set("a", 1)
	now = now.Add(time.Second)
	cache.Set("b", 2)
	now = now.Add(time.Second)
	cache.Get("a")
	now = now.Add(time.Second)
	cache.Set("c", 3)

	if _, ok := cache.Get("b"); ok {
		t.Error("b should have been evicted")
	}
	if _, ok := cache.Get("a"); !ok {
		t.Error("a should have been kept")
	}
}

func TestCacheExpiration(t *testing.T) {
	now := time.Unix(0, 0)
	cache := NewCache[string](10, time.Minute)
	cache.now = func() time.Time { return now }

	cache.Set("key", "value")
	if _, ok := cache.Get("key"); !ok {
		t.Error("Key should exist immediately after set")
	}

	now = now.Add(2 * time.Minute)
	if _, ok := cache.Get("key"); ok {
		t.Error("Key should be expired")
	}
}
