// Package server exposes the vault over HTTP JSON. Authorization for the
// operator surface lives here, orthogonal to the accounting layer.
package server

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"ReserveVault/internal/observability"
	"ReserveVault/internal/query"
	"ReserveVault/internal/vault"
)

// Server wires the chi router over the vault and query service.
type Server struct {
	vault         *vault.Vault
	queries       *query.Service
	operatorToken string
	operator      uuid.UUID
	health        *observability.HealthChecker
	metrics       *observability.Metrics
	logger        zerolog.Logger
	httpServer    *http.Server
}

type Deps struct {
	Vault         *vault.Vault
	Queries       *query.Service
	OperatorToken string
	OperatorID    uuid.UUID
	Health        *observability.HealthChecker
	Metrics       *observability.Metrics
	Logger        zerolog.Logger
}

func New(addr string, deps Deps) *Server {
	s := &Server{
		vault:         deps.Vault,
		queries:       deps.Queries,
		operatorToken: deps.OperatorToken,
		operator:      deps.OperatorID,
		health:        deps.Health,
		metrics:       deps.Metrics,
		logger:        deps.Logger,
	}

	r := chi.NewRouter()
	r.Use(s.observe)

	r.Get("/healthz", s.health.LivenessHandler)
	r.Get("/readyz", s.health.ReadinessHandler)

	r.Route("/v1", func(r chi.Router) {
		r.Post("/deposits/native", s.handleDepositNative)
		r.Post("/deposits", s.handleDepositAsset)
		r.Post("/withdrawals", s.handleWithdraw)
		r.Get("/reserve", s.handleReserve)
		r.Get("/balances/{depositor}", s.handleBalances)
		r.Get("/balances/{depositor}/{asset}", s.handleBalance)
		r.Get("/operations/{account}", s.handleOperations)

		r.Group(func(r chi.Router) {
			r.Use(s.requireOperator)
			r.Post("/sweeps", s.handleSweep)
		})
	})

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Handler exposes the routed handler for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.httpServer.Shutdown(shutCtx)
	}()

	s.logger.Info().Str("addr", s.httpServer.Addr).Msg("http server listening")
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// --- middleware ---

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		route := chi.RouteContext(r.Context()).RoutePattern()
		if route == "" {
			route = r.URL.Path
		}
		if s.metrics != nil {
			s.metrics.HTTPRequests.WithLabelValues(route, strconv.Itoa(rec.status)).Inc()
			s.metrics.HTTPDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
		}
		s.logger.Debug().
			Str("method", r.Method).
			Str("route", route).
			Int("status", rec.status).
			Dur("took", time.Since(start)).
			Msg("request")
	})
}

// requireOperator gates the sweep surface behind the operator bearer
// token. Constant-time compare so the token cannot be probed.
func (s *Server) requireOperator(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		const prefix = "Bearer "
		auth := r.Header.Get("Authorization")
		if len(auth) <= len(prefix) || auth[:len(prefix)] != prefix ||
			subtle.ConstantTimeCompare([]byte(auth[len(prefix):]), []byte(s.operatorToken)) != 1 {
			writeError(w, http.StatusForbidden, "forbidden", "operator capability required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// --- shared helpers ---

type errorBody struct {
	Error   string `json:"error"`
	Class   string `json:"class"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, class, msg string) {
	writeJSON(w, status, errorBody{Error: http.StatusText(status), Class: class, Message: msg})
}

// writeOpError maps the vault error taxonomy to HTTP statuses.
func writeOpError(w http.ResponseWriter, err error) {
	class := vault.Classify(err)
	status := http.StatusInternalServerError
	switch class {
	case vault.ClassInput:
		status = http.StatusBadRequest
	case vault.ClassCapacity, vault.ClassInsufficientFunds:
		status = http.StatusConflict
	case vault.ClassConversion, vault.ClassTransfer:
		status = http.StatusBadGateway
	case vault.ClassBusy:
		status = http.StatusServiceUnavailable
	}
	writeError(w, status, string(class), err.Error())
}
