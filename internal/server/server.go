// Package server accepts TCP connections and runs one connection handler per
// client. Handlers never touch ledger state; they parse frames, hand requests
// to the shared processing actor, and write back the replies.
package server

import (
	"errors"
	"net"
	"sync"

	"github.com/op/go-logging"

	"bankledger/internal/actor"
)

// Server owns the listener and the set of live connection handlers.
type Server struct {
	address  string
	proc     *actor.Processor
	log      *logging.Logger
	listener net.Listener
	wg       sync.WaitGroup

	mu    sync.Mutex
	conns map[net.Conn]struct{}
}

func New(address string, proc *actor.Processor, log *logging.Logger) *Server {
	return &Server{
		address: address,
		proc:    proc,
		log:     log,
		conns:   make(map[net.Conn]struct{}),
	}
}

func (s *Server) track(conn net.Conn) {
	s.mu.Lock()
	s.conns[conn] = struct{}{}
	s.mu.Unlock()
}

func (s *Server) untrack(conn net.Conn) {
	s.mu.Lock()
	delete(s.conns, conn)
	s.mu.Unlock()
}

// Listen binds the server address. Separate from Serve so callers can learn
// the bound address before accepting (the tests bind port 0).
func (s *Server) Listen() error {
	listener, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}
	s.listener = listener
	s.log.Infof("action: listen | result: success | address: %v", listener.Addr())
	return nil
}

// Addr returns the bound address. Valid only after Listen.
func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}

// Serve accepts connections until the listener is closed, spawning one
// handler goroutine per client.
func (s *Server) Serve() error {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}
		s.log.Debugf("action: accept | result: success | client: %v", conn.RemoteAddr())
		s.track(conn)
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer s.untrack(conn)
			s.handleConnection(conn)
		}()
	}
}

// Run is Listen followed by Serve.
func (s *Server) Run() error {
	if err := s.Listen(); err != nil {
		return err
	}
	return s.Serve()
}

// Shutdown stops accepting, closes every live connection, and waits for the
// handlers to exit.
func (s *Server) Shutdown() {
	if s.listener != nil {
		_ = s.listener.Close()
	}
	s.mu.Lock()
	for conn := range s.conns {
		_ = conn.Close()
	}
	s.mu.Unlock()
	s.wg.Wait()
}
