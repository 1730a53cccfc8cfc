// Package rpc implements a small JSON-over-TCP RPC framework used for
// internal service-to-service calls, such as exposing the query
// compiler to sidecar processes without going through the HTTP edge.
//
// The wire protocol is newline-delimited JSON over a persistent TCP
// connection. Method names follow the "Service.Method" convention.
//
// Server side:
//
//	s := rpc.NewServer()
//	s.Register("Query.Compile", func(ctx context.Context, raw json.RawMessage) (any, error) {
//	    var req proto.CompileRequest
//	    json.Unmarshal(raw, &req)
//	    // ... compile ...
//	    return &proto.CompileResponse{...}, nil
//	})
//	s.Serve(":9000")
//
// Client side:
//
//	c, _ := rpc.Dial("localhost:9000")
//	var resp proto.CompileResponse
//	c.Call("Query.Compile", &proto.CompileRequest{Text: "action movies"}, &resp)
package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"sync"
)

// HandlerFunc processes a decoded RPC request body and returns a
// response payload or an error.
type HandlerFunc func(ctx context.Context, params json.RawMessage) (any, error)

// Request is the wire format of one call.
type Request struct {
	Method string          `json:"method"`
	ID     string          `json:"id"`
	Params json.RawMessage `json:"params"`
}

// Response is the wire format of one reply. Result is pre-encoded so
// the client can unmarshal it straight into the caller's type.
type Response struct {
	ID     string          `json:"id"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// Server dispatches JSON-over-TCP calls to registered handlers.
type Server struct {
	mu       sync.RWMutex
	handlers map[string]HandlerFunc

	listener net.Listener
	log      *slog.Logger
	conns    sync.WaitGroup

	cancel context.CancelFunc
	base   context.Context
}

// NewServer creates an RPC server with no registered methods.
func NewServer() *Server {
	base, cancel := context.WithCancel(context.Background())
	return &Server{
		handlers: make(map[string]HandlerFunc),
		log:      slog.Default().With("component", "rpc-server"),
		base:     base,
		cancel:   cancel,
	}
}

// Register installs a handler for the given method name. Registering
// the same name twice replaces the earlier handler.
func (s *Server) Register(method string, handler HandlerFunc) {
	s.mu.Lock()
	s.handlers[method] = handler
	s.mu.Unlock()
	s.log.Debug("method registered", "method", method)
}

// MethodCount returns the number of registered methods.
func (s *Server) MethodCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.handlers)
}

// Serve listens on addr and accepts connections until Stop is called.
func (s *Server) Serve(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}
	s.listener = ln
	s.log.Info("rpc server listening", "addr", addr)

	for {
		conn, err := ln.Accept()
		if err != nil {
			if s.base.Err() != nil {
				return nil
			}
			s.log.Error("accept error", "error", err)
			continue
		}
		s.conns.Add(1)
		go func() {
			defer s.conns.Done()
			s.serveConn(conn)
		}()
	}
}

// serveConn runs the request loop for one client connection. Each
// connection handles calls sequentially in arrival order.
func (s *Server) serveConn(conn net.Conn) {
	defer conn.Close()

	dec := json.NewDecoder(conn)
	enc := json.NewEncoder(conn)

	for {
		var req Request
		if err := dec.Decode(&req); err != nil {
			return
		}
		if err := enc.Encode(s.dispatch(req)); err != nil {
			s.log.Error("write error", "method", req.Method, "error", err)
			return
		}
	}
}

func (s *Server) dispatch(req Request) Response {
	s.mu.RLock()
	handler, ok := s.handlers[req.Method]
	s.mu.RUnlock()

	if !ok {
		return Response{ID: req.ID, Error: fmt.Sprintf("unknown method: %s", req.Method)}
	}

	payload, err := handler(s.base, req.Params)
	if err != nil {
		return Response{ID: req.ID, Error: err.Error()}
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		s.log.Error("encode error", "method", req.Method, "error", err)
		return Response{ID: req.ID, Error: "internal encoding error"}
	}
	return Response{ID: req.ID, Result: raw}
}

// Stop closes the listener and waits for in-flight connections.
func (s *Server) Stop() {
	s.cancel()
	if s.listener != nil {
		s.listener.Close()
	}
	s.conns.Wait()
	s.log.Info("rpc server stopped")
}
