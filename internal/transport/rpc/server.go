// Package rpc exposes the refinery over JSON-RPC for internal callers.
package rpc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"

	"github.com/labstack/gommon/log"

	"github.com/xiaot623/gogo/refinery/internal/domain"
	"github.com/xiaot623/gogo/refinery/internal/service"
)

// ServiceName is the JSON-RPC service prefix, e.g. "Refinery.Generate".
const ServiceName = "Refinery"

// Logger is the logging surface the server needs.
type Logger interface {
	Warnj(j log.JSON)
}

type nopLogger struct{}

func (nopLogger) Warnj(log.JSON) {}

// Server exposes internal RPC endpoints.
type Server struct {
	listener  net.Listener
	rpcServer *rpc.Server
	logger    Logger
	done      chan struct{}
}

// NewServer creates a new RPC server bound to the refinery service.
func NewServer(svc *service.Service, logger Logger) (*Server, error) {
	if logger == nil {
		logger = nopLogger{}
	}
	rpcServer := rpc.NewServer()
	handler := &Handler{service: svc}
	if err := rpcServer.RegisterName(ServiceName, handler); err != nil {
		return nil, fmt.Errorf("register rpc handler: %w", err)
	}

	return &Server{
		rpcServer: rpcServer,
		logger:    logger,
		done:      make(chan struct{}),
	}, nil
}

// Start begins accepting RPC connections on the given address.
func (s *Server) Start(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ln)
}

// Serve accepts connections on ln until Shutdown closes it.
func (s *Server) Serve(ln net.Listener) error {
	s.listener = ln

	for {
		conn, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				close(s.done)
				return nil
			}
			s.logger.Warnj(log.JSON{"event": "rpc_accept_failed", "error": err.Error()})
			continue
		}

		go s.rpcServer.ServeCodec(jsonrpc.NewServerCodec(conn))
	}
}

// Shutdown stops accepting new RPC connections.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.listener == nil {
		return nil
	}

	if err := s.listener.Close(); err != nil {
		return err
	}

	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Handler implements the refinery RPC methods.
type Handler struct {
	service *service.Service
}

// GenerateArgs is a generate request with an optional caller-chosen id.
type GenerateArgs struct {
	RequestID string                 `json:"request_id,omitempty"`
	Request   domain.GenerateRequest `json:"request"`
}

// GenerateReply holds exactly one of Response or Queued.
type GenerateReply struct {
	RequestID string                   `json:"request_id"`
	Response  *domain.GenerateResponse `json:"response,omitempty"`
	Queued    *domain.QueuedResponse   `json:"queued,omitempty"`
}

// Empty is the argument of parameterless methods.
type Empty struct{}

// Generate runs one refinement session. Errors carry the error code as a
// prefix, e.g. "invalid_model: ...", since net/rpc transmits only text.
func (h *Handler) Generate(args *GenerateArgs, reply *GenerateReply) error {
	if args == nil {
		return errors.New("generate request is required")
	}

	result, err := h.service.Generate(context.Background(), args.RequestID, args.Request)
	if err != nil {
		return codedError(err)
	}
	if reply != nil {
		reply.RequestID = result.RequestID
		reply.Response = result.Response
		reply.Queued = result.Queued
	}
	return nil
}

// ListModels lists backend models.
func (h *Handler) ListModels(_ *Empty, reply *domain.ModelsResponse) error {
	models, err := h.service.ListModels(context.Background())
	if err != nil {
		return codedError(err)
	}
	if reply != nil {
		*reply = *models
	}
	return nil
}

// Health reports backend connectivity and slot usage.
func (h *Handler) Health(_ *Empty, reply *domain.HealthResponse) error {
	health := h.service.Health(context.Background())
	if reply != nil {
		*reply = *health
	}
	return nil
}

func codedError(err error) error {
	code := domain.ErrorCode(err)
	if code == "internal_error" {
		return errors.New("internal_error: an unexpected error occurred")
	}
	return fmt.Errorf("%s: %s", code, err.Error())
}
