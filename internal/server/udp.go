package server

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"

	"github.com/KilimcininKorOglu/pingkit/internal/logging"
	"github.com/KilimcininKorOglu/pingkit/internal/probe"
)

// UDPConfig holds configuration for the UDP echo server.
type UDPConfig struct {
	// Addr is the listen address (default: ":14008")
	Addr string

	// DestCode is the code sent for destination unreachable (default: 0)
	DestCode int
}

// DefaultUDPConfig returns a default UDP server configuration.
func DefaultUDPConfig() UDPConfig {
	return UDPConfig{
		Addr:     ":" + strconv.Itoa(DefaultPort),
		DestCode: probe.CodeNetUnreachable,
	}
}

// UDPServer answers each datagram according to its injector.
type UDPServer struct {
	base
	config UDPConfig

	mu     sync.Mutex
	conn   net.PacketConn
	closed bool
}

// NewUDPServer creates a UDP echo server.
func NewUDPServer(config UDPConfig, injector *Injector, opts ...Option) (*UDPServer, error) {
	if config.Addr == "" {
		config.Addr = DefaultUDPConfig().Addr
	}
	if !validCode(config.DestCode) {
		return nil, ErrInvalidCode
	}
	s := &UDPServer{config: config}
	s.base.init("udp", injector, opts)
	return s, nil
}

// Listen opens the server socket. Serve calls it when needed.
func (s *UDPServer) Listen() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrServerClosed
	}
	if s.conn != nil {
		return nil
	}
	conn, err := net.ListenPacket("udp4", s.config.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.config.Addr, err)
	}
	s.conn = conn
	return nil
}

// Addr returns the bound address, or nil before Listen.
func (s *UDPServer) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return nil
	}
	return s.conn.LocalAddr()
}

// Serve handles datagrams until ctx is cancelled or the server is closed.
func (s *UDPServer) Serve(ctx context.Context) error {
	if err := s.Listen(); err != nil {
		return err
	}
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()

	defer s.Close()
	stop := context.AfterFunc(ctx, func() { s.Close() })
	defer stop()

	s.logger.Info("udp server listening",
		logging.KeyLocalAddr, conn.LocalAddr().String(),
		"policy", s.injector.Policy().String())

	buf := make([]byte, 65535)
	for {
		n, addr, err := conn.ReadFrom(buf)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return fmt.Errorf("read error: %w", err)
		}
		s.handle(conn, buf[:n], addr)
	}
}

func (s *UDPServer) handle(conn net.PacketConn, payload []byte, addr net.Addr) {
	switch s.decide(len(payload), addr.String()) {
	case ActionEcho:
		reply := bytes.ToUpper(payload)
		if _, err := conn.WriteTo(reply, addr); err != nil {
			s.logger.Warn("failed to echo",
				logging.KeyRemoteAddr, addr.String(),
				logging.KeyError, err)
			return
		}
		s.echoed(len(reply))
	case ActionDrop:
	case ActionDestUnreachable:
		s.emit(uint8(s.config.DestCode), FlowOf(ProtoUDP, addr, conn.LocalAddr()))
	case ActionPortUnreachable:
		s.emit(probe.CodePortUnreachable, FlowOf(ProtoUDP, addr, conn.LocalAddr()))
	}
}

// Close stops the server.
func (s *UDPServer) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	if s.conn == nil {
		return nil
	}
	err := s.conn.Close()
	if errors.Is(err, net.ErrClosed) {
		return nil
	}
	return err
}
