// Package server implements the unreliable echo servers. Every inbound
// message is passed to an Injector, which decides whether to echo it,
// drop it or answer with an ICMP destination unreachable error.
package server

import (
	"log/slog"
	"sync/atomic"

	"github.com/KilimcininKorOglu/pingkit/internal/logging"
	"github.com/KilimcininKorOglu/pingkit/internal/metrics"
	"github.com/KilimcininKorOglu/pingkit/internal/probe"
)

// DefaultPort is the port the echo servers listen on.
const DefaultPort = probe.DefaultPort

// Option configures a server.
type Option func(*base)

// WithLogger sets the server logger.
func WithLogger(logger *slog.Logger) Option {
	return func(b *base) {
		b.logger = logger
	}
}

// WithMetrics sets the metrics the server records into.
func WithMetrics(m *metrics.Metrics) Option {
	return func(b *base) {
		b.metrics = m
	}
}

// WithEmitter sets how error packets are sent. Without one, error actions
// are logged and nothing is sent.
func WithEmitter(e ErrorEmitter) Option {
	return func(b *base) {
		b.emitter = e
	}
}

// Stats summarises the traffic a server has handled.
type Stats struct {
	Messages      int64
	BytesReceived int64
	BytesEchoed   int64
	Connections   int64
	EmitFailures  int64
	Actions       map[Action]int64
}

// base holds what the UDP and TCP servers share.
type base struct {
	transport string
	injector  *Injector
	logger    *slog.Logger
	metrics   *metrics.Metrics
	emitter   ErrorEmitter

	messages     atomic.Int64
	bytesIn      atomic.Int64
	bytesEchoed  atomic.Int64
	connections  atomic.Int64
	emitFailures atomic.Int64
}

func (b *base) init(transport string, injector *Injector, opts []Option) {
	b.transport = transport
	b.injector = injector
	for _, opt := range opts {
		opt(b)
	}
	if b.logger == nil {
		b.logger = logging.NopLogger()
	}
	b.logger = b.logger.With(logging.KeyTransport, transport)
}

// decide records one inbound message and picks its action.
func (b *base) decide(size int, remote string) Action {
	b.messages.Add(1)
	b.bytesIn.Add(int64(size))
	b.metrics.RecordMessage(b.transport, size)

	action := b.injector.Next()
	b.metrics.RecordAction(b.transport, action.String())

	b.logger.Debug("message received",
		logging.KeyRemoteAddr, remote,
		logging.KeyCount, size)
	if action != ActionEcho {
		b.logger.Info("injecting fault",
			logging.KeyRemoteAddr, remote,
			logging.KeyAction, action.String())
	}
	return action
}

func (b *base) echoed(size int) {
	b.bytesEchoed.Add(int64(size))
	b.metrics.RecordEcho(b.transport, size)
}

// emit sends an unreachable error for an action that calls for one.
func (b *base) emit(code uint8, flow Flow) {
	remote := flow.ClientIP.String()
	if b.emitter == nil {
		b.logger.Warn("no error emitter configured, message dropped",
			logging.KeyRemoteAddr, remote,
			logging.KeyCode, code)
		return
	}
	if err := b.emitter.Emit(code, flow); err != nil {
		b.emitFailures.Add(1)
		b.logger.Warn("failed to send error packet",
			logging.KeyRemoteAddr, remote,
			logging.KeyCode, code,
			logging.KeyError, err)
		return
	}
	b.logger.Info("sent unreachable",
		logging.KeyRemoteAddr, remote,
		logging.KeyCode, code,
		"reason", probe.UnreachableReason(int(code)))
}

// Stats returns a snapshot of the server's counters.
func (b *base) Stats() Stats {
	return Stats{
		Messages:      b.messages.Load(),
		BytesReceived: b.bytesIn.Load(),
		BytesEchoed:   b.bytesEchoed.Load(),
		Connections:   b.connections.Load(),
		EmitFailures:  b.emitFailures.Load(),
		Actions:       b.injector.Stats(),
	}
}

func validCode(code int) bool {
	return code >= 0 && code <= 15
}
