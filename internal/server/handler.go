package server

import (
	"bufio"
	"errors"
	"io"
	"net"

	"bankledger/internal/protocol"
)

// handleConnection runs the per-connection state machine:
//
//	connecting -> (first frame must be ping, answer handshake_established)
//	ready      -> loop: read one frame, dispatch, write one response
//	closed     -> close_connection, transport error, or EOF
//
// A malformed frame gets a deserialize_error response and the loop continues;
// a failed handshake or a transport error closes the connection without
// touching the ledger.
func (s *Server) handleConnection(conn net.Conn) {
	defer conn.Close()
	client := conn.RemoteAddr()
	reader := bufio.NewReader(conn)

	req, err := protocol.ReadRequest(reader)
	if err != nil {
		s.log.Warningf("action: handshake | result: fail | client: %v | error: %v", client, err)
		return
	}
	if req.Type != protocol.ReqPing {
		s.log.Warningf("action: handshake | result: fail | client: %v | error: first request is %s",
			client, req.Type)
		_ = protocol.WriteMessage(conn, protocol.Response{
			Type:    protocol.RespError,
			Message: "handshake required: send ping first",
		})
		return
	}
	if err := protocol.WriteMessage(conn, protocol.Response{Type: protocol.RespHandShakeEstablished}); err != nil {
		s.log.Warningf("action: handshake | result: fail | client: %v | error: %v", client, err)
		return
	}
	s.log.Debugf("action: handshake | result: success | client: %v", client)

	for {
		req, err := protocol.ReadRequest(reader)
		if err != nil {
			var decodeErr *protocol.DecodeError
			if errors.As(err, &decodeErr) {
				s.log.Warningf("action: read_request | result: fail | client: %v | error: %v", client, err)
				if writeErr := protocol.WriteMessage(conn, protocol.Response{
					Type:    protocol.RespDeserializeError,
					Message: decodeErr.Error(),
				}); writeErr != nil {
					return
				}
				continue
			}
			if err != io.EOF {
				s.log.Warningf("action: read_request | result: fail | client: %v | error: %v", client, err)
			}
			return
		}

		switch req.Type {
		case protocol.ReqCloseConnection:
			s.log.Infof("action: close_connection | result: success | client: %v", client)
			shutdownBoth(conn)
			return
		case protocol.ReqPing:
			// harmless after the handshake, answer it again
			if err := protocol.WriteMessage(conn, protocol.Response{Type: protocol.RespHandShakeEstablished}); err != nil {
				return
			}
		default:
			resp := s.proc.Submit(req)
			if err := protocol.WriteMessage(conn, resp); err != nil {
				s.log.Warningf("action: write_response | result: fail | client: %v | error: %v", client, err)
				return
			}
		}
	}
}

// shutdownBoth shuts down the read and write directions explicitly before the
// deferred Close, so the peer observes an orderly end of stream.
func shutdownBoth(conn net.Conn) {
	if tcp, ok := conn.(*net.TCPConn); ok {
		_ = tcp.CloseRead()
		_ = tcp.CloseWrite()
	}
}
