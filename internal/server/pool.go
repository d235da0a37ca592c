package server

import (
	"context"
	"net"
	"sync"
)

// servePool hands accepted connections to a fixed set of workers. The
// accept loop blocks while every worker is busy, so at most workers
// connections are served at once.
func (s *TCPServer) servePool(ctx context.Context, ln net.Listener) error {
	workers := s.config.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}

	jobs := make(chan net.Conn)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.worker(ctx, jobs)
		}()
	}

	err := s.acceptLoop(ctx, ln, func(conn net.Conn) bool {
		select {
		case <-ctx.Done():
			conn.Close()
			return false
		case jobs <- conn:
			return true
		}
	})

	close(jobs)
	wg.Wait()
	return err
}

// worker serves connections from the jobs channel until it is closed.
func (s *TCPServer) worker(ctx context.Context, jobs <-chan net.Conn) {
	for conn := range jobs {
		select {
		case <-ctx.Done():
			conn.Close()
			continue
		default:
		}

		s.serveConn(ctx, conn)
	}
}
