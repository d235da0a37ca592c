package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/KilimcininKorOglu/pingkit/internal/logging"
	"github.com/KilimcininKorOglu/pingkit/internal/probe"
	"github.com/KilimcininKorOglu/pingkit/internal/resolve"
)

// ProberFactory creates the prober for a resolved destination.
type ProberFactory func(dest net.IP, config *Config) (probe.Prober, error)

// Option customises a Session.
type Option func(*Session)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Session) { s.logger = logger }
}

// WithResolver sets the target resolver.
func WithResolver(r *resolve.Resolver) Option {
	return func(s *Session) { s.resolver = r }
}

// WithProberFactory replaces the prober construction.
func WithProberFactory(f ProberFactory) Option {
	return func(s *Session) { s.newProber = f }
}

// WithSleep replaces the pause between probes.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(s *Session) { s.sleep = sleep }
}

// Session sends probes to one target at a fixed cadence, one at a time.
// Each Session owns its outcome log; nothing is shared between sessions.
type Session struct {
	config    *Config
	logger    *slog.Logger
	resolver  *resolve.Resolver
	newProber ProberFactory
	sleep     func(ctx context.Context, d time.Duration) error
}

// New creates a new Session with the given configuration.
func New(config *Config, opts ...Option) (*Session, error) {
	if config == nil {
		config = DefaultConfig()
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	s := &Session{
		config:    config,
		logger:    logging.NopLogger(),
		newProber: NewProber,
		sleep:     sleepContext,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.resolver == nil {
		s.resolver = resolve.New(resolve.DefaultConfig())
	}

	return s, nil
}

// NewProber creates the prober selected by config.Method.
func NewProber(dest net.IP, config *Config) (probe.Prober, error) {
	switch config.Method {
	case probe.MethodICMP:
		return probe.NewICMPProber(dest, probe.ICMPProberConfig{
			Timeout:      config.Timeout,
			TTL:          config.TTL,
			Codec:        config.Codec,
			Unprivileged: config.Unprivileged,
		})
	case probe.MethodUDP:
		return probe.NewUDPProber(dest, probe.UDPProberConfig{
			Port:         config.Port,
			Timeout:      config.Timeout,
			ErrorTimeout: config.ErrorTimeout,
			TTL:          config.TTL,
			ErrorWatch:   config.ErrorWatch,
			Codec:        config.Codec,
		})
	case probe.MethodTCP:
		return probe.NewTCPProber(dest, probe.TCPProberConfig{
			Port:         config.Port,
			Timeout:      config.Timeout,
			ErrorTimeout: config.ErrorTimeout,
			TTL:          config.TTL,
			ErrorWatch:   config.ErrorWatch,
			Codec:        config.Codec,
		})
	default:
		return nil, fmt.Errorf("unknown probe method: %v", config.Method)
	}
}

// Run probes target config.Count times and returns the session result.
//
// Per-probe failures are outcomes and never stop the session. A prober
// error, such as a socket failure, ends it. When the context is cancelled
// Run returns the result so far together with the context's error.
func (s *Session) Run(ctx context.Context, target string) (*Result, error) {
	dest, err := s.resolver.Resolve(ctx, target)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTargetResolution, err)
	}

	prober, err := s.newProber(dest, s.config)
	if err != nil {
		return nil, fmt.Errorf("failed to create prober: %w", err)
	}
	defer prober.Close()

	result := &Result{
		Target:     target,
		ResolvedIP: dest,
		Method:     prober.Name(),
		Timestamp:  time.Now(),
		Outcomes:   make([]probe.Outcome, 0, s.config.Count),
	}

	logger := s.logger.With(logging.KeyTarget, dest.String(), logging.KeyMethod, prober.Name())
	logger.Debug("session started", logging.KeyCount, s.config.Count)

	var runErr error
	for seq := 1; seq <= s.config.Count; seq++ {
		if seq > 1 && s.config.Interval > 0 {
			if err := s.sleep(ctx, s.config.Interval); err != nil {
				runErr = err
				break
			}
		}

		out, err := prober.Probe(ctx, seq)
		if err != nil {
			runErr = err
			if !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
				runErr = fmt.Errorf("probe %d: %w", seq, err)
			}
			break
		}
		out.Seq = seq

		logger.Debug("probe finished",
			logging.KeySeq, seq,
			logging.KeyOutcome, out.Kind.String(),
			logging.KeyRTT, out.RTT,
			logging.KeyCode, out.Code)

		result.Outcomes = append(result.Outcomes, out)
		if s.config.OnProbe != nil {
			s.config.OnProbe(out)
		}
	}

	result.Duration = time.Since(result.Timestamp)
	result.Statistics = Summarize(result.Outcomes)

	logger.Debug("session finished",
		"sent", result.Statistics.Sent,
		"received", result.Statistics.Received,
		logging.KeyDuration, result.Duration)

	return result, runErr
}

// Lookup fills in the reverse DNS name of the resolved address.
func (s *Session) Lookup(ctx context.Context, result *Result) {
	if result == nil {
		return
	}
	result.Hostname = s.resolver.Reverse(ctx, result.ResolvedIP)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
