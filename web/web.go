// Package web exposes the query protocol over HTTP: a single POST /query
// endpoint backed by an executor, plus health and metrics endpoints.
package web

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/tetherlab/tether/core/executor"
	"github.com/tetherlab/tether/core/protocol"
)

// maxBodyBytes caps the accepted request payload.
const maxBodyBytes = 8 << 20

// Handler serves the query endpoint.
type Handler struct {
	exec      *executor.Executor
	logger    zerolog.Logger
	collector *Collector
}

// NewHandler creates a query endpoint handler. collector may be nil to
// disable metrics collection.
func NewHandler(exec *executor.Executor, logger zerolog.Logger, collector *Collector) *Handler {
	return &Handler{exec: exec, logger: logger, collector: collector}
}

// Router builds the chi router with query, health and metrics routes.
func (h *Handler) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(h.requestLogger)

	r.Post("/query", h.handleQuery)
	r.Get("/healthz", h.handleHealth)
	if h.collector != nil {
		r.Handle("/metrics", promhttp.Handler())
	}
	return r
}

func (h *Handler) handleQuery(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	if h.collector != nil {
		h.collector.QueriesInFlight.Inc()
		defer h.collector.QueriesInFlight.Dec()
	}

	var req protocol.Request
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		h.logger.Warn().Err(err).Msg("malformed query payload")
		h.writeJSON(w, http.StatusBadRequest, &protocol.Response{
			Result: map[string]any{"__error": "malformed request payload", "code": "DESERIALIZATION_ERROR"},
		})
		return
	}

	resp := h.exec.Execute(r.Context(), &req)

	kind := queryKind(req.Query)
	status := "ok"
	if m, ok := resp.Result.(map[string]any); ok && m["__error"] != nil {
		status = "error"
	}
	if h.collector != nil {
		h.collector.QueriesTotal.WithLabelValues(kind, status).Inc()
		h.collector.QueryDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())
	}
	h.logger.Debug().
		Str("kind", kind).
		Str("status", status).
		Dur("duration", time.Since(start)).
		Msg("query handled")

	h.writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": h.exec.Version(),
	})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	encoded, err := json.Marshal(v)
	if err != nil {
		h.logger.Error().Err(err).Msg("encode response")
		return
	}
	if h.collector != nil {
		h.collector.PayloadBytes.WithLabelValues("out").Add(float64(len(encoded)))
	}
	if _, err := w.Write(encoded); err != nil {
		h.logger.Debug().Err(err).Msg("write response")
	}
}

func (h *Handler) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		h.logger.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("remote", r.RemoteAddr).
			Dur("duration", time.Since(start)).
			Msg("request")
	})
}

// queryKind labels a raw query for metrics without fully parsing it.
func queryKind(q map[string]any) string {
	for key := range q {
		if key == protocol.IntrospectName+protocol.CallSuffix {
			return "introspect"
		}
		if strings.HasSuffix(key, protocol.CallSuffix) {
			return "invoke"
		}
	}
	return "unknown"
}
