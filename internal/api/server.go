// Package api serves the read views, trip analysis, and the refresh
// trigger over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lbrouwer/surfcast/internal/catalog"
	"github.com/lbrouwer/surfcast/internal/flights"
	"github.com/lbrouwer/surfcast/internal/models"
	"github.com/lbrouwer/surfcast/internal/refresh"
	"github.com/lbrouwer/surfcast/internal/store"
)

// EndpointThreshold is the staleness bar for refreshes triggered over HTTP.
// Much laxer than the scheduler's so public traffic cannot hammer the
// providers.
const EndpointThreshold = 168 * time.Hour

type Server struct {
	store   *store.Store
	orc     *refresh.Orchestrator
	flights flights.Fetcher
	port    string
}

// NewServer wires the serving layer. orc backs endpoint-triggered refreshes
// and should be configured with EndpointThreshold; a nil orc disables them.
// A nil flight fetcher degrades trip analysis to surf windows without fares.
func NewServer(st *store.Store, orc *refresh.Orchestrator, fl flights.Fetcher, port string) *Server {
	if fl == nil {
		fl = flights.NopFetcher{}
	}
	return &Server{store: st, orc: orc, flights: fl, port: port}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/spots", s.handleSpots)
	mux.HandleFunc("GET /api/forecast/daily/{spot}", s.handleDailyForecast)
	mux.HandleFunc("GET /api/forecast/detailed/{spot}", s.handleDetailedForecast)
	mux.HandleFunc("POST /api/trips/analyze", s.handleTripsAnalyze)
	mux.HandleFunc("POST /api/refresh", s.handleRefresh)
	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.Handle("GET /metrics", promhttp.Handler())
	return mux
}

func (s *Server) Run(ctx context.Context) error {
	server := &http.Server{
		Addr:    ":" + s.port,
		Handler: s.Handler(),
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	log.Printf("api: listening on :%s", s.port)
	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func (s *Server) handleSpots(w http.ResponseWriter, r *http.Request) {
	type spotOut struct {
		SpotID         string  `json:"spot_id"`
		Name           string  `json:"name"`
		Latitude       float64 `json:"latitude"`
		Longitude      float64 `json:"longitude"`
		Timezone       string  `json:"timezone"`
		PrimaryAirport string  `json:"primary_airport"`
	}
	out := make([]spotOut, 0, len(catalog.Spots))
	for _, sp := range catalog.Spots {
		out = append(out, spotOut{
			SpotID:         sp.SpotID,
			Name:           sp.Name,
			Latitude:       sp.Latitude,
			Longitude:      sp.Longitude,
			Timezone:       sp.Timezone,
			PrimaryAirport: sp.PrimaryAirport,
		})
	}
	writeJSON(w, out)
}

// handleHealth reports liveness plus the per-spot freshness ledger, which
// is what operators actually look at when forecasts seem stale.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	freshness := make(map[string]map[string]*time.Time, len(catalog.Spots))
	for _, sp := range catalog.Spots {
		f, err := s.store.GetFreshness(sp.SpotID)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		layers := make(map[string]*time.Time, len(models.Layers))
		for _, layer := range models.Layers {
			if ts := f.Get(layer); !ts.IsZero() {
				layers[string(layer)] = &ts
			} else {
				layers[string(layer)] = nil
			}
		}
		freshness[sp.SpotID] = layers
	}
	writeJSON(w, map[string]any{"status": "ok", "freshness": freshness})
}

// handleRefresh starts a background pass over the requested spots, or the
// whole catalog when the body names none. It returns immediately.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Spots []string `json:"spots"`
	}
	if r.Body != nil {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
	}
	spots, err := resolveSpots(req.Spots)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	go s.backgroundRefresh(spots)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]any{"refreshing": spotIDs(spots)})
}

// backgroundRefresh runs the pipeline for the given spots against the lax
// endpoint threshold, detached from the request.
func (s *Server) backgroundRefresh(spots []models.Spot) {
	if s.orc == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()
	for _, sp := range spots {
		status := s.orc.RefreshSpot(ctx, sp, false)
		if errs := status.Errs(); len(errs) > 0 {
			log.Printf("api: background refresh %s: %v", sp.SpotID, errs)
		}
	}
}

// resolveSpots maps spot ids to catalog entries, defaulting to the whole
// catalog. An unknown id rejects the request.
func resolveSpots(ids []string) ([]models.Spot, error) {
	if len(ids) == 0 {
		return catalog.Spots, nil
	}
	out := make([]models.Spot, 0, len(ids))
	for _, id := range ids {
		sp, err := catalog.Lookup(id)
		if err != nil {
			return nil, fmt.Errorf("unknown spot %q", id)
		}
		out = append(out, sp)
	}
	return out, nil
}

func spotIDs(spots []models.Spot) []string {
	out := make([]string, len(spots))
	for i, sp := range spots {
		out[i] = sp.SpotID
	}
	return out
}
