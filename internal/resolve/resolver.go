// Package resolve turns probe targets into addresses and addresses into
// display names.
package resolve

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"
)

// ErrNoIPv4 indicates the target has no IPv4 address.
var ErrNoIPv4 = errors.New("no IPv4 address found")

// Lookup is the subset of net.Resolver the resolver uses.
type Lookup interface {
	LookupIP(ctx context.Context, network, host string) ([]net.IP, error)
	LookupAddr(ctx context.Context, addr string) ([]string, error)
}

// Config holds configuration for the resolver.
type Config struct {
	// Timeout bounds each DNS query
	Timeout time.Duration

	// CacheSize is the number of reverse lookups kept, 0 disables caching
	CacheSize int

	// CacheTTL is how long reverse lookups are kept
	CacheTTL time.Duration

	// Aliases maps short names to hosts
	Aliases map[string]string
}

// DefaultConfig returns default resolver configuration.
func DefaultConfig() Config {
	return Config{
		Timeout:   2 * time.Second,
		CacheSize: 256,
		CacheTTL:  5 * time.Minute,
	}
}

// Resolver resolves targets once per session and caches reverse names.
type Resolver struct {
	config Config
	lookup Lookup
	cache  *Cache[string]
}

// New creates a resolver backed by net.DefaultResolver.
func New(config Config) *Resolver {
	return NewWithLookup(config, net.DefaultResolver)
}

// NewWithLookup creates a resolver with a custom lookup backend.
func NewWithLookup(config Config, lookup Lookup) *Resolver {
	if config.Timeout == 0 {
		config.Timeout = 2 * time.Second
	}

	r := &Resolver{config: config, lookup: lookup}
	if config.CacheSize > 0 {
		r.cache = NewCache[string](config.CacheSize, config.CacheTTL)
	}
	return r
}

// Expand replaces an alias with its host. Other targets are returned as is.
func (r *Resolver) Expand(target string) string {
	if host, ok := r.config.Aliases[target]; ok && host != "" {
		return host
	}
	return target
}

// Resolve resolves target to an IPv4 address.
func (r *Resolver) Resolve(ctx context.Context, target string) (net.IP, error) {
	host := strings.TrimSpace(r.Expand(target))
	if host == "" {
		return nil, fmt.Errorf("empty target")
	}

	if ip := net.ParseIP(host); ip != nil {
		if ip4 := ip.To4(); ip4 != nil {
			return ip4, nil
		}
		return nil, fmt.Errorf("%s: %w", host, ErrNoIPv4)
	}

	lookupCtx, cancel := context.WithTimeout(ctx, r.config.Timeout)
	defer cancel()

	ips, err := r.lookup.LookupIP(lookupCtx, "ip4", host)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", host, err)
	}

	for _, ip := range ips {
		if ip4 := ip.To4(); ip4 != nil {
			return ip4, nil
		}
	}

	return nil, fmt.Errorf("%s: %w", host, ErrNoIPv4)
}

// Reverse returns the name of ip, or "" when it has none. DNS failures
// are not errors; they are cached as empty names.
func (r *Resolver) Reverse(ctx context.Context, ip net.IP) string {
	if ip == nil {
		return ""
	}

	key := ip.String()
	if r.cache != nil {
		if name, ok := r.cache.Get(key); ok {
			return name
		}
	}

	lookupCtx, cancel := context.WithTimeout(ctx, r.config.Timeout)
	defer cancel()

	name := ""
	if names, err := r.lookup.LookupAddr(lookupCtx, key); err == nil && len(names) > 0 {
		// Remove trailing dot from FQDN
		name = strings.TrimSuffix(names[0], ".")
	}

	if r.cache != nil {
		r.cache.Set(key, name)
	}
	return name
}
