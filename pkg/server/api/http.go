// Package api provides the HTTP and WebSocket endpoints of the quote server.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/palontologist/price-oracles/pkg/logging"
	"github.com/palontologist/price-oracles/pkg/metrics"
	"github.com/palontologist/price-oracles/pkg/server/chain"
	"github.com/palontologist/price-oracles/pkg/server/sources"
	"github.com/palontologist/price-oracles/pkg/store"
	"github.com/palontologist/price-oracles/pkg/version"
)

// Server represents the HTTP API server.
type Server struct {
	addr     string
	chain    *chain.Chain
	store    *store.Store // nil when history persistence is disabled
	server   *http.Server
	logger   *logging.Logger
	wsServer *WebSocketServer // Optional WebSocket server for streaming

	refreshInterval time.Duration
	stopRefresh     chan struct{}
	stopOnce        sync.Once
}

// NewServer creates a new HTTP API server over the given chain. A nil store
// disables the history endpoint.
func NewServer(addr string, ch *chain.Chain, st *store.Store, logger *logging.Logger) *Server {
	if logger == nil {
		logger = logging.NewNoopLogger()
	}
	return &Server{
		addr:        addr,
		chain:       ch,
		store:       st,
		logger:      logger,
		stopRefresh: make(chan struct{}),
	}
}

// SetWebSocketServer sets the WebSocket server for streaming updates.
func (s *Server) SetWebSocketServer(ws *WebSocketServer) {
	s.wsServer = ws
}

// SetRefreshInterval enables the background refresher. Zero disables it.
func (s *Server) SetRefreshInterval(interval time.Duration) {
	s.refreshInterval = interval
}

// Start starts the HTTP server and the background refresher if configured.
func (s *Server) Start() error {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/v1/quotes", s.handleQuotes)
	mux.HandleFunc("/latest", s.handleQuotes) // legacy dashboards expect a bare array
	mux.HandleFunc("/v1/history", s.handleHistory)

	s.server = &http.Server{
		Addr:              s.addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	if s.refreshInterval > 0 {
		go s.refreshLoop()
	}

	s.logger.Info("Starting HTTP server", "addr", s.addr)
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("HTTP server error: %w", err)
	}
	return nil
}

// Stop gracefully stops the HTTP server and the refresher.
func (s *Server) Stop(ctx context.Context) error {
	s.stopOnce.Do(func() { close(s.stopRefresh) })
	if s.server != nil {
		s.logger.Info("Stopping HTTP server")
		return s.server.Shutdown(ctx)
	}
	return nil
}

// refreshLoop reruns the default chain request on a fixed interval so the
// store and the stream stay warm without inbound traffic.
func (s *Server) refreshLoop() {
	ticker := time.NewTicker(s.refreshInterval)
	defer ticker.Stop()

	s.logger.Info("Starting background refresher", "interval", s.refreshInterval.String())
	for {
		select {
		case <-s.stopRefresh:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			quotes, err := s.chain.FetchPrices(ctx, chain.Request{IncludeFlour: true})
			cancel()
			if err != nil {
				s.logger.Warn("Background refresh failed", "error", err)
				continue
			}
			s.publish(quotes)
		}
	}
}

// publish persists a quote batch and pushes it to stream subscribers.
func (s *Server) publish(quotes []sources.NormalizedQuote) {
	if len(quotes) == 0 {
		return
	}
	if s.store != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := s.store.SaveQuotes(ctx, quotes); err != nil {
			s.logger.Error("Failed to persist quotes", "error", err)
		}
		cancel()
	}
	if s.wsServer != nil {
		s.wsServer.SendUpdate(quotes)
	}
}

// handleHealth reports liveness, version and the configured tier order.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	start := time.Now()
	defer func() {
		metrics.RecordHTTPRequest("/health", "200", time.Since(start))
	}()

	tiers := s.chain.Tiers()
	names := make([]string, 0, len(tiers))
	for _, t := range tiers {
		names = append(names, t.Source.Name())
	}
	s.sendJSON(w, map[string]interface{}{
		"status":  "ok",
		"version": version.Version,
		"tiers":   names,
	})
}

// quotesResponse is the envelope of /v1/quotes. Degraded is true when any
// quote in the batch came from substitute data.
type quotesResponse struct {
	Quotes    []sources.NormalizedQuote `json:"quotes"`
	Count     int                       `json:"count"`
	Degraded  bool                      `json:"degraded"`
	Timestamp string                    `json:"timestamp"`
}

// handleQuotes handles /v1/quotes and /latest endpoints.
func (s *Server) handleQuotes(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	status := "200"
	defer func() {
		metrics.RecordHTTPRequest(r.URL.Path, status, time.Since(start))
	}()

	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	quotes, err := s.chain.FetchPrices(ctx, parseQuoteRequest(r))
	if err != nil {
		if errors.Is(err, sources.ErrUnknownCommodity) {
			status = "400"
			s.sendError(w, http.StatusBadRequest, err.Error())
			return
		}
		status = "500"
		s.logger.Error("Quote request failed", "error", err)
		s.sendError(w, http.StatusInternalServerError, "internal error")
		return
	}

	s.publish(quotes)

	if r.URL.Path == "/latest" {
		s.sendJSON(w, quotes)
		return
	}

	degraded := false
	for _, q := range quotes {
		if q.Degraded {
			degraded = true
			break
		}
	}
	s.sendJSON(w, quotesResponse{
		Quotes:    quotes,
		Count:     len(quotes),
		Degraded:  degraded,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// handleHistory serves stored quote history for one commodity.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	status := "200"
	defer func() {
		metrics.RecordHTTPRequest("/v1/history", status, time.Since(start))
	}()

	if s.store == nil {
		status = "501"
		s.sendError(w, http.StatusNotImplemented, "quote history is disabled")
		return
	}

	// Without a commodity the endpoint serves the latest stored quote
	// for every commodity.
	if r.URL.Query().Get("commodity") == "" {
		quotes, err := s.store.Latest(r.Context())
		if err != nil {
			status = "500"
			s.logger.Error("Latest query failed", "error", err)
			s.sendError(w, http.StatusInternalServerError, "internal error")
			return
		}
		if quotes == nil {
			quotes = []sources.NormalizedQuote{}
		}
		s.sendJSON(w, map[string]interface{}{
			"quotes": quotes,
			"count":  len(quotes),
		})
		return
	}

	commodity, err := sources.ParseCommodity(r.URL.Query().Get("commodity"))
	if err != nil {
		status = "400"
		s.sendError(w, http.StatusBadRequest, err.Error())
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil {
			status = "400"
			s.sendError(w, http.StatusBadRequest, "limit must be an integer")
			return
		}
	}

	quotes, err := s.store.History(r.Context(), commodity, limit)
	if err != nil {
		status = "500"
		s.logger.Error("History query failed", "error", err, "commodity", string(commodity))
		s.sendError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if quotes == nil {
		quotes = []sources.NormalizedQuote{}
	}
	s.sendJSON(w, map[string]interface{}{
		"commodity": commodity,
		"quotes":    quotes,
		"count":     len(quotes),
	})
}

// parseQuoteRequest maps query parameters onto a chain request.
// commodities is a comma-separated list of names or aliases, flour expands
// the default set, mock lists source names that should serve offline data.
func parseQuoteRequest(r *http.Request) chain.Request {
	q := r.URL.Query()
	req := chain.Request{
		Commodities:  splitList(q.Get("commodities")),
		IncludeFlour: parseBool(q.Get("flour")),
	}
	if mocks := splitList(q.Get("mock")); len(mocks) > 0 {
		req.Mock = make(map[string]bool, len(mocks))
		for _, name := range mocks {
			req.Mock[strings.ToLower(name)] = true
		}
	}
	return req
}

func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseBool(raw string) bool {
	v, err := strconv.ParseBool(raw)
	return err == nil && v
}

// sendJSON sends a JSON response.
func (s *Server) sendJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error("Failed to encode JSON response", "error", err)
	}
}

// sendError sends a JSON error body with the given status code.
func (s *Server) sendError(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
