// Package http serves the dashboard API: call history, manual dialing,
// and recorded call audio.
package http

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"ari-call-orchestrator/internal/app"
	"ari-call-orchestrator/internal/ari"
	"ari-call-orchestrator/internal/observability/logging"
	"ari-call-orchestrator/internal/store"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// DialRequest asks for an outbound call to one extension.
type DialRequest struct {
	To string `json:"to"`
}

// DialResponse reports the channel created for a dial request.
type DialResponse struct {
	ChannelID string `json:"channelId"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// NewRouter constructs the HTTP router for the service.
func NewRouter(application *app.Application, st store.Store, client ari.Client) http.Handler {
	r := chi.NewRouter()

	// Basic middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)

	// Health endpoints
	r.Get("/v1/liveness", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/v1/readiness", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	// API routes
	r.Route("/api", func(r chi.Router) {
		r.Get("/calls", listCalls(st))
		r.Post("/dial", dial(application, client))
	})

	// Recorded call audio, served straight from the shared sounds directory.
	r.Handle("/recordings/*", http.StripPrefix("/recordings/",
		http.FileServer(http.Dir(application.Cfg.Service.SoundsDir))))

	return r
}

func listCalls(st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		records, err := st.List(r.Context())
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "listing calls failed"})
			return
		}
		writeJSON(w, http.StatusOK, records)
	}
}

func dial(application *app.Application, client ari.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req DialRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
			return
		}
		req.To = strings.TrimSpace(req.To)
		if req.To == "" {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "missing destination"})
			return
		}

		channelID, err := client.Originate(r.Context(), ari.OriginateOptions{
			Endpoint: "SIP/" + req.To,
			App:      application.Cfg.ARI.App,
			AppArgs:  req.To,
			CallerID: application.Cfg.Endpoint.CallerID,
		})
		if err != nil {
			writeJSON(w, http.StatusBadGateway, errorResponse{Error: "originate failed"})
			return
		}
		writeJSON(w, http.StatusCreated, DialResponse{ChannelID: channelID})
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// requestLogger logs one line per request with status and latency.
func requestLogger(next http.Handler) http.Handler {
	logger := logging.WithComponent("http")
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		logger.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("latency", time.Since(start)).
			Msg("Request handled")
	})
}
