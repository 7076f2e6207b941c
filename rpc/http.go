// Package rpc exposes the ledger over JSON-RPC 2.0 and streams committed
// events over a websocket.
package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"vaultswap/core"
	"vaultswap/indexer"
	"vaultswap/observability/metrics"
)

const (
	jsonRPCVersion  = "2.0"
	maxRequestBytes = 1 << 20 // 1 MiB
)

const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeServerError    = -32000
	codeUnauthorized   = -32001
	codeNotFound       = -32004
	codeTxRejected     = -32010
	codeRateLimited    = -32029
)

// ServerConfig tunes the listener and its middleware.
type ServerConfig struct {
	RateLimitPerSec   float64
	RateLimitBurst    int
	JWTSecret         string
	JWTIssuer         string
	TrustedProxies    []string
	ReadHeaderTimeout time.Duration
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	Logger            *slog.Logger
}

type handlerFunc func(ctx context.Context, r *http.Request, params []json.RawMessage) (any, *RPCError)

// Server serves JSON-RPC for a node. offers may be nil when the indexer is
// disabled.
type Server struct {
	node    *core.Node
	offers  *indexer.Indexer
	cfg     ServerConfig
	logger  *slog.Logger
	limiter *rateLimiter
	auth    *authenticator
	proxies []*net.IPNet
	metrics *metrics.RPCMetrics
	methods map[string]handlerFunc
}

func NewServer(node *core.Node, offers *indexer.Indexer, cfg ServerConfig) (*Server, error) {
	if node == nil {
		return nil, errors.New("rpc: node must not be nil")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	proxies, err := parseProxies(cfg.TrustedProxies)
	if err != nil {
		return nil, err
	}
	s := &Server{
		node:    node,
		offers:  offers,
		cfg:     cfg,
		logger:  logger.With("component", "rpc"),
		limiter: newRateLimiter(cfg.RateLimitPerSec, cfg.RateLimitBurst),
		auth:    newAuthenticator(cfg.JWTSecret, cfg.JWTIssuer),
		proxies: proxies,
		metrics: metrics.RPC(),
	}
	s.methods = map[string]handlerFunc{
		"vs_sendTransaction": s.handleSendTransaction,
		"vs_getAccount":      s.handleGetAccount,
		"vs_getTokenAccount": s.handleGetTokenAccount,
		"vs_getEscrow":       s.handleGetEscrow,
		"vs_deriveAuthority": s.handleDeriveAuthority,
		"vs_listOffers":      s.handleListOffers,
		"vs_getReceipt":      s.handleGetReceipt,
		"vs_head":            s.handleHead,
	}
	return s, nil
}

// Handler returns the routed, instrumented HTTP handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(requestID)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/ws/events", s.handleEventsWS)
	r.With(s.rateLimit).Post("/", s.handle)
	return otelhttp.NewHandler(r, "vaultswap.rpc")
}

// Serve listens on addr until ctx is cancelled, then drains in-flight requests.
func (s *Server) Serve(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: s.cfg.ReadHeaderTimeout,
		ReadTimeout:       s.cfg.ReadTimeout,
		WriteTimeout:      s.cfg.WriteTimeout,
		IdleTimeout:       s.cfg.IdleTimeout,
	}
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("json-rpc listening", slog.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("rpc: shutdown: %w", err)
		}
		if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

type RPCRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
	ID      any               `json:"id"`
}

type RPCResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      any             `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

func statusFor(code int) int {
	switch code {
	case codeParseError, codeInvalidRequest, codeInvalidParams:
		return http.StatusBadRequest
	case codeMethodNotFound, codeNotFound:
		return http.StatusNotFound
	case codeUnauthorized:
		return http.StatusUnauthorized
	case codeRateLimited:
		return http.StatusTooManyRequests
	case codeTxRejected:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, id any, rpcErr *RPCError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusFor(rpcErr.Code))
	_ = json.NewEncoder(w).Encode(RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Error: rpcErr})
}

func writeResult(w http.ResponseWriter, id any, result any) {
	raw, err := json.Marshal(result)
	if err != nil {
		writeError(w, id, &RPCError{Code: codeServerError, Message: "failed to encode result", Data: err.Error()})
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Result: raw})
}

// handle decodes one JSON-RPC request and dispatches it.
func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	reader := http.MaxBytesReader(w, r.Body, maxRequestBytes)
	defer func() {
		_ = reader.Close()
	}()

	body, err := io.ReadAll(reader)
	if err != nil {
		message := "failed to read request body"
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			message = "request body too large"
		}
		writeError(w, nil, &RPCError{Code: codeInvalidRequest, Message: message})
		return
	}

	var req RPCRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, nil, &RPCError{Code: codeParseError, Message: "invalid JSON", Data: err.Error()})
		return
	}
	if req.JSONRPC != jsonRPCVersion || strings.TrimSpace(req.Method) == "" {
		writeError(w, req.ID, &RPCError{Code: codeInvalidRequest, Message: "jsonrpc must be 2.0 and method must be set"})
		return
	}

	started := time.Now()
	handler, ok := s.methods[req.Method]
	if !ok {
		s.metrics.Observe("unknown", codeMethodNotFound, time.Since(started))
		writeError(w, req.ID, &RPCError{Code: codeMethodNotFound, Message: fmt.Sprintf("unknown method %q", req.Method)})
		return
	}
	result, rpcErr := handler(r.Context(), r, req.Params)
	if rpcErr != nil {
		s.metrics.Observe(req.Method, rpcErr.Code, time.Since(started))
		s.logger.Debug("rpc call failed",
			slog.String("method", req.Method),
			slog.String("request_id", requestIDFrom(r.Context())),
			slog.Int("code", rpcErr.Code),
			slog.String("error", rpcErr.Message))
		writeError(w, req.ID, rpcErr)
		return
	}
	s.metrics.Observe(req.Method, 0, time.Since(started))
	writeResult(w, req.ID, result)
}
