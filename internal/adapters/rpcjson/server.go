package rpcjson

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"os"
	"path/filepath"
	"strings"

	"github.com/anihangout/hangout/internal/application"
	"github.com/anihangout/hangout/internal/domain"
	"github.com/sirupsen/logrus"
)

const (
	codeParse          = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeApp            = 40000
	codeUnauthorized   = 40100
	codeForbidden      = 40300
	codeNotFound       = 40400
	codeInternal       = 50000
)

type Server struct {
	service  *application.Service
	log      logrus.FieldLogger
	listener net.Listener
	path     string
	methods  map[string]method
}

type request struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
	ID      any             `json:"id"`
}

type response struct {
	JSONRPC string    `json:"jsonrpc"`
	Result  any       `json:"result,omitempty"`
	Error   *rpcError `json:"error,omitempty"`
	ID      any       `json:"id"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// method is one authenticated RPC call. params holds the raw request params,
// including the token.
type method struct {
	permission string
	call       func(ctx context.Context, identity domain.Identity, params json.RawMessage) (any, error)
}

var errInvalidParams = errors.New("invalid params")

// Start listens on the unix socket at path and serves until Close.
func Start(path string, service *application.Service, log logrus.FieldLogger) (*Server, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("rpc socket path is required")
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	_ = os.Remove(path)
	ln, err := net.Listen("unix", path)
	if err != nil {
		return nil, err
	}
	if err := os.Chmod(path, 0o600); err != nil {
		_ = ln.Close()
		_ = os.Remove(path)
		return nil, err
	}

	s := &Server{service: service, log: log, listener: ln, path: path}
	s.methods = s.routes()
	go s.serve()
	return s, nil
}

func (s *Server) serve() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			return
		}
		go s.handleConn(conn)
	}
}

// Close stops accepting connections and removes the socket file.
func (s *Server) Close() error {
	err := s.listener.Close()
	_ = os.Remove(s.path)
	return err
}

func (s *Server) handleConn(conn net.Conn) {
	defer func() { _ = conn.Close() }()
	dec := json.NewDecoder(conn)
	enc := json.NewEncoder(conn)

	for {
		var req request
		if err := dec.Decode(&req); err != nil {
			if errors.Is(err, io.EOF) {
				return
			}
			_ = enc.Encode(errorResponse(nil, codeParse, "parse error"))
			return
		}

		resp := s.dispatch(context.Background(), req)
		if err := enc.Encode(resp); err != nil {
			return
		}
	}
}

func (s *Server) dispatch(ctx context.Context, req request) response {
	if req.JSONRPC != "2.0" || strings.TrimSpace(req.Method) == "" {
		return errorResponse(req.ID, codeInvalidRequest, "invalid request")
	}
	if req.Method == "auth.login" {
		return s.handleAuthLogin(ctx, req)
	}

	m, ok := s.methods[req.Method]
	if !ok {
		return errorResponse(req.ID, codeMethodNotFound, "method not found")
	}
	identity, rpcResp, ok := s.authz(ctx, req, m.permission)
	if !ok {
		return rpcResp
	}
	out, err := m.call(ctx, identity, req.Params)
	if err != nil {
		if errors.Is(err, errInvalidParams) {
			return invalidParams(req.ID)
		}
		return s.appError(req, err)
	}
	return response{JSONRPC: "2.0", Result: out, ID: req.ID}
}

func (s *Server) handleAuthLogin(ctx context.Context, req request) response {
	var p struct {
		Email     string `json:"email"`
		Password  string `json:"password"`
		TokenName string `json:"token_name"`
	}
	if !decodeParams(req.Params, &p) {
		return invalidParams(req.ID)
	}
	u, token, err := s.service.LoginWithAPIToken(ctx, p.Email, p.Password, p.TokenName, nil)
	if err != nil {
		return errorResponse(req.ID, codeUnauthorized, "invalid credentials")
	}
	return response{JSONRPC: "2.0", Result: map[string]any{"user_id": u.ID, "username": u.Username, "token": token}, ID: req.ID}
}

func (s *Server) authz(ctx context.Context, req request, permission string) (domain.Identity, response, bool) {
	var p struct {
		Token string `json:"token"`
	}
	if !decodeParams(req.Params, &p) {
		return domain.Identity{}, invalidParams(req.ID), false
	}
	identity, err := s.service.AuthenticateBearerToken(ctx, p.Token)
	if err != nil {
		return domain.Identity{}, errorResponse(req.ID, codeUnauthorized, "unauthorized"), false
	}
	if permission != "" && !s.service.Can(identity, permission) {
		return domain.Identity{}, errorResponse(req.ID, codeForbidden, "forbidden"), false
	}
	return identity, response{}, true
}

func decodeParams(raw json.RawMessage, out any) bool {
	if len(raw) == 0 {
		return false
	}
	return json.Unmarshal(raw, out) == nil
}

// params decodes raw into a fresh T for a method body.
func params[T any](raw json.RawMessage) (T, error) {
	var p T
	if !decodeParams(raw, &p) {
		return p, errInvalidParams
	}
	return p, nil
}

func errorResponse(id any, code int, message string) response {
	return response{JSONRPC: "2.0", Error: &rpcError{Code: code, Message: message}, ID: id}
}

func invalidParams(id any) response {
	return errorResponse(id, codeInvalidParams, "invalid params")
}

func codeFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrUnauthorized):
		return codeUnauthorized
	case errors.Is(err, domain.ErrForbidden):
		return codeForbidden
	case errors.Is(err, domain.ErrNotFound):
		return codeNotFound
	case errors.Is(err, domain.ErrInvalid), errors.Is(err, domain.ErrConflict):
		return codeApp
	default:
		return codeInternal
	}
}

func (s *Server) appError(req request, err error) response {
	code := codeFor(err)
	if code == codeInternal {
		s.log.WithError(err).WithField("method", req.Method).Error("rpc call failed")
		return errorResponse(req.ID, code, "internal error")
	}
	return errorResponse(req.ID, code, err.Error())
}
