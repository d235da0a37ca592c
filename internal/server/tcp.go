package server

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"sync"

	"github.com/KilimcininKorOglu/pingkit/internal/logging"
	"github.com/KilimcininKorOglu/pingkit/internal/probe"
)

// Mode selects how accepted connections are served.
type Mode string

const (
	// ModeSequential serves one connection to completion before accepting the next
	ModeSequential Mode = "sequential"
	// ModePool serves connections concurrently on a worker pool
	ModePool Mode = "pool"
)

// ParseMode converts a name to a Mode.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(s)) {
	case ModeSequential:
		return ModeSequential, nil
	case ModePool:
		return ModePool, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidMode, s)
}

// TCP server defaults.
const (
	DefaultMaxMessages = 100
	DefaultWorkers     = 10
)

// TCPConfig holds configuration for the TCP echo server.
type TCPConfig struct {
	// Addr is the listen address (default: ":14008")
	Addr string

	// DestCode is the code sent for destination unreachable (default: 1)
	DestCode int

	// MaxMessages is how many lines a connection is served before the
	// server closes it (default: 100)
	MaxMessages int

	// MaxConnections stops the server after that many connections have
	// been accepted and served, 0 = unlimited
	MaxConnections int

	// Mode is sequential or pool (default: sequential)
	Mode Mode

	// Workers is the pool size in pool mode (default: 10)
	Workers int
}

// DefaultTCPConfig returns a default TCP server configuration.
func DefaultTCPConfig() TCPConfig {
	return TCPConfig{
		Addr:        ":" + strconv.Itoa(DefaultPort),
		DestCode:    probe.CodeHostUnreachable,
		MaxMessages: DefaultMaxMessages,
		Mode:        ModeSequential,
		Workers:     DefaultWorkers,
	}
}

// TCPServer answers each line of a stream according to its injector.
// Dropping a line leaves the connection open; the client's own timeout
// governs recovery.
type TCPServer struct {
	base
	config TCPConfig

	mu     sync.Mutex
	ln     net.Listener
	closed bool
}

// NewTCPServer creates a TCP echo server.
func NewTCPServer(config TCPConfig, injector *Injector, opts ...Option) (*TCPServer, error) {
	if config.Addr == "" {
		config.Addr = DefaultTCPConfig().Addr
	}
	if config.Mode == "" {
		config.Mode = ModeSequential
	}
	if _, err := ParseMode(string(config.Mode)); err != nil {
		return nil, err
	}
	if config.MaxMessages <= 0 {
		config.MaxMessages = DefaultMaxMessages
	}
	if config.MaxConnections < 0 {
		config.MaxConnections = 0
	}
	if !validCode(config.DestCode) {
		return nil, ErrInvalidCode
	}
	s := &TCPServer{config: config}
	s.base.init("tcp", injector, opts)
	return s, nil
}

// Listen opens the listening socket. Serve calls it when needed.
func (s *TCPServer) Listen() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrServerClosed
	}
	if s.ln != nil {
		return nil
	}
	ln, err := net.Listen("tcp4", s.config.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.config.Addr, err)
	}
	s.ln = ln
	return nil
}

// Addr returns the bound address, or nil before Listen.
func (s *TCPServer) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

// Serve accepts connections until ctx is cancelled, the server is closed
// or MaxConnections have been served.
func (s *TCPServer) Serve(ctx context.Context) error {
	if err := s.Listen(); err != nil {
		return err
	}
	s.mu.Lock()
	ln := s.ln
	s.mu.Unlock()

	defer s.Close()
	stop := context.AfterFunc(ctx, func() { s.Close() })
	defer stop()

	s.logger.Info("tcp server listening",
		logging.KeyLocalAddr, ln.Addr().String(),
		"mode", string(s.config.Mode),
		"policy", s.injector.Policy().String())

	if s.config.Mode == ModePool {
		return s.servePool(ctx, ln)
	}
	return s.acceptLoop(ctx, ln, func(conn net.Conn) bool {
		s.serveConn(ctx, conn)
		return true
	})
}

// acceptLoop accepts connections and passes them to handle until the
// listener closes or the connection limit is reached. handle returns
// false to stop accepting.
func (s *TCPServer) acceptLoop(ctx context.Context, ln net.Listener, handle func(net.Conn) bool) error {
	accepted := 0
	for {
		if s.config.MaxConnections > 0 && accepted >= s.config.MaxConnections {
			s.logger.Info("connection limit reached", logging.KeyCount, accepted)
			return nil
		}

		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return fmt.Errorf("accept error: %w", err)
		}
		accepted++

		if !handle(conn) {
			return nil
		}
	}
}

// serveConn reads lines from conn until MaxMessages have been handled or
// the client goes away. A panic while serving closes only this
// connection.
func (s *TCPServer) serveConn(ctx context.Context, conn net.Conn) {
	remote := conn.RemoteAddr().String()
	messages := 0

	s.connections.Add(1)
	s.metrics.RecordConnectionOpen()
	s.logger.Info("connection accepted", logging.KeyRemoteAddr, remote)

	defer func() {
		conn.Close()
		s.metrics.RecordConnectionClose(messages)
		s.logger.Info("connection closed",
			logging.KeyRemoteAddr, remote,
			logging.KeyCount, messages)
	}()
	defer logging.RecoverWithLog(s.logger, "tcp-conn", s.metrics.RecordPanic)

	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	reader := bufio.NewReader(conn)
	for messages < s.config.MaxMessages {
		line, err := reader.ReadString('\n')
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
				s.logger.Debug("read error",
					logging.KeyRemoteAddr, remote,
					logging.KeyError, err)
			}
			return
		}
		messages++

		payload := strings.TrimRight(line, "\r\n")
		switch s.decide(len(payload), remote) {
		case ActionEcho:
			reply := strings.ToUpper(payload)
			if _, err := io.WriteString(conn, reply+"\n"); err != nil {
				s.logger.Debug("write error",
					logging.KeyRemoteAddr, remote,
					logging.KeyError, err)
				return
			}
			s.echoed(len(reply))
		case ActionDrop:
		case ActionDestUnreachable:
			s.emit(uint8(s.config.DestCode), FlowOf(ProtoTCP, conn.RemoteAddr(), conn.LocalAddr()))
		case ActionPortUnreachable:
			s.emit(probe.CodePortUnreachable, FlowOf(ProtoTCP, conn.RemoteAddr(), conn.LocalAddr()))
		}
	}

	s.logger.Debug("message limit reached", logging.KeyRemoteAddr, remote)
}

// Close stops accepting connections. Connections being served end when
// the context passed to Serve is cancelled.
func (s *TCPServer) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	if s.ln == nil {
		return nil
	}
	err := s.ln.Close()
	if errors.Is(err, net.ErrClosed) {
		return nil
	}
	return err
}
