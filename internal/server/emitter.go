package server

import (
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"time"

	"github.com/KilimcininKorOglu/pingkit/internal/logging"
	"github.com/KilimcininKorOglu/pingkit/internal/metrics"
	"github.com/KilimcininKorOglu/pingkit/internal/probe"
	"golang.org/x/net/icmp"
	"golang.org/x/time/rate"
)

// ErrorEmitter sends a destination unreachable error about flow back to
// its client.
type ErrorEmitter interface {
	Emit(code uint8, flow Flow) error
}

// EmitterConfig holds configuration for the raw error emitter.
type EmitterConfig struct {
	// Codec frames the error packets
	Codec probe.Codec

	// Rate limits error packets per second, 0 = unlimited
	Rate float64

	// Burst is the number of errors allowed at once when Rate is set
	Burst int

	// WriteTimeout bounds each send
	WriteTimeout time.Duration
}

// DefaultEmitterConfig returns a default emitter configuration.
func DefaultEmitterConfig() EmitterConfig {
	return EmitterConfig{
		Codec:        probe.DefaultCodec(),
		WriteTimeout: time.Second,
	}
}

// RawEmitter sends error packets from a raw ICMP socket that is opened for
// each packet and closed right after, independent of the socket the
// offending message arrived on.
type RawEmitter struct {
	config  EmitterConfig
	limiter *rate.Limiter
	logger  *slog.Logger
	metrics *metrics.Metrics
	listen  func() (net.PacketConn, error)
}

// NewRawEmitter creates a raw emitter. logger and m may be nil.
func NewRawEmitter(config EmitterConfig, logger *slog.Logger, m *metrics.Metrics) *RawEmitter {
	if logger == nil {
		logger = logging.NopLogger()
	}
	e := &RawEmitter{
		config:  config,
		logger:  logger.With(logging.KeyComponent, "emitter"),
		metrics: m,
		listen: func() (net.PacketConn, error) {
			return icmp.ListenPacket("ip4:icmp", "0.0.0.0")
		},
	}
	if config.Rate > 0 {
		burst := config.Burst
		if burst < 1 {
			burst = 1
		}
		e.limiter = rate.NewLimiter(rate.Limit(config.Rate), burst)
	}
	return e
}

// Emit sends one destination unreachable error with the given code.
func (e *RawEmitter) Emit(code uint8, flow Flow) error {
	codeLabel := strconv.Itoa(int(code))

	if e.limiter != nil && !e.limiter.Allow() {
		e.metrics.RecordErrorThrottled()
		return ErrThrottled
	}

	conn, err := e.listen()
	if err != nil {
		e.metrics.RecordErrorFailed("socket")
		return fmt.Errorf("%w: %v", probe.ErrPermissionDenied, err)
	}
	defer conn.Close()

	if e.config.WriteTimeout > 0 {
		conn.SetWriteDeadline(time.Now().Add(e.config.WriteTimeout))
	}

	pkt := e.config.Codec.EncodeError(probe.TypeDestUnreachable, code, Quote(flow))
	if _, err := conn.WriteTo(pkt, &net.IPAddr{IP: flow.ClientIP}); err != nil {
		e.metrics.RecordErrorFailed("write")
		return fmt.Errorf("failed to send error packet: %w", err)
	}

	e.metrics.RecordErrorEmitted(codeLabel)
	e.logger.Debug("error packet sent",
		logging.KeyRemoteAddr, flow.ClientIP.String(),
		logging.KeyCode, code)
	return nil
}
