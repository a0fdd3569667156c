// Package api implements the daemon's narrow HTTP surface: the trust
// anchor itself on /v1/status (with its websocket push variant), liveness
// and readiness probes, and Prometheus metrics.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"github.com/lightanchor/lightanchor/internal/clock"
	"github.com/lightanchor/lightanchor/internal/log"
	"github.com/lightanchor/lightanchor/internal/store"
	"github.com/lightanchor/lightanchor/internal/syncer"
	"github.com/lightanchor/lightanchor/types"
)

const livenessBody = "lightanchord: ok\n"

// Server reads the trusted state store and may solicit the sync
// coordinator for an on-demand refresh when the served state looks stale.
// It never writes trusted state itself.
type Server struct {
	store    *store.Store
	coord    *syncer.Coordinator
	clock    clock.Clock
	params   types.TrustParameters
	registry *prometheus.Registry
	logger   log.Logger

	upgrader websocket.Upgrader
	mux      http.Handler
}

// NewServer wires the HTTP surface together, including permissive CORS.
// Whether to bind the listener at all is the deployment's decision; the
// surface itself carries no authentication.
func NewServer(
	st *store.Store,
	coord *syncer.Coordinator,
	clk clock.Clock,
	params types.TrustParameters,
	registry *prometheus.Registry,
	logger log.Logger,
) *Server {
	s := &Server{
		store:    st,
		coord:    coord,
		clock:    clk,
		params:   params,
		registry: registry,
		logger:   logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleRoot)
	mux.HandleFunc("/v1/status", s.handleStatus)
	mux.HandleFunc("/v1/status/stream", s.handleStatusStream)
	mux.HandleFunc("/v1/healthz", s.handleHealthz)
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	s.mux = cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet},
	}).Handler(mux)

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(livenessBody))
}

// handleHealthz is the stricter readiness probe: 200 once bootstrap has
// succeeded and the coordinator is not currently halted, 503 otherwise.
// GET / answers "is the process alive"; this answers "has the daemon
// bootstrapped and is it not halted". It does not look at how old the
// served state is.
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if !s.store.Bootstrapped() {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	if s.coord.Status().State == types.StateHalted {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// statusResponse is the wire shape of the /v1/status response.
type statusResponse struct {
	BlockHeight    string `json:"block_height"`
	BlockHash      string `json:"block_hash"`
	BlockTimestamp string `json:"block_timestamp"`
}

func toStatusResponse(lb *types.LightBlock) statusResponse {
	return statusResponse{
		BlockHeight:    strconv.FormatInt(lb.Height(), 10),
		BlockHash:      lb.Hash().String(),
		BlockTimestamp: lb.Time().UTC().Format(time.RFC3339),
	}
}

// handleStatus reads the trusted state; if stale and the coordinator isn't
// halted, it solicits a sync and waits up to api_timeout; then it responds
// with whatever the store holds regardless of whether that sync completed
// in time. Staleness is never a failure; only "never bootstrapped" is (503).
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if !s.store.Bootstrapped() {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}

	_, lastSyncAt := s.store.Read()
	now := s.clock.Now()
	if now.Sub(lastSyncAt) > s.params.FreshnessThreshold && s.coord.Status().State != types.StateHalted {
		ctx, cancel := context.WithTimeout(r.Context(), s.params.APITimeout)
		ch := s.coord.Trigger(ctx)
		select {
		case <-ch:
		case <-ctx.Done():
		}
		cancel()
	}

	block, _ := s.store.Read()
	writeJSON(w, http.StatusOK, toStatusResponse(block))
}

// handleStatusStream is the WebSocket push channel: one initial frame on
// connect, then one frame every time the committed height changes. The
// store itself has no subscriber mechanism, so this polls it at a short,
// fixed interval rather than growing the store's surface for one read-only
// extension.
func (s *Server) handleStatusStream(w http.ResponseWriter, r *http.Request) {
	if !s.store.Bootstrapped() {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", "err", err)
		return
	}
	defer conn.Close()

	const pollInterval = 500 * time.Millisecond
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	var lastHeight int64 = -1
	for {
		block, _ := s.store.Read()
		if block.Height() != lastHeight {
			if err := conn.WriteJSON(toStatusResponse(block)); err != nil {
				return
			}
			lastHeight = block.Height()
		}

		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
