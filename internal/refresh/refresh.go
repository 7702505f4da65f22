// Package refresh drives the layer pipeline: raw provider layers first, then
// scored hours, then the half-day and daily aggregates, each guarded by the
// freshness ledger.
package refresh

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/lbrouwer/surfcast/internal/catalog"
	"github.com/lbrouwer/surfcast/internal/metrics"
	"github.com/lbrouwer/surfcast/internal/models"
	"github.com/lbrouwer/surfcast/internal/scoring"
)

// ErrPrerequisiteMissing marks a derivation step that found no rows in the
// layer it feeds from.
var ErrPrerequisiteMissing = errors.New("prerequisite layer has no rows")

const (
	// DefaultThreshold is how old a layer may get before a scheduled
	// refresh re-fetches it.
	DefaultThreshold = 6 * time.Hour
	// DefaultFanOut limits how many spots refresh concurrently.
	DefaultFanOut = 5
)

// Provider fetches raw forecast layers for a coordinate pair.
type Provider interface {
	FetchWeather(ctx context.Context, lat, lon float64) ([]models.HourlyWeather, []models.DailyWeather, error)
	FetchMarine(ctx context.Context, lat, lon float64) ([]models.HourlyMarine, error)
}

// Store is the slice of the persistence layer the orchestrator needs.
type Store interface {
	NeedsUpdate(spotID string, layer models.Layer, threshold time.Duration) (bool, error)

	ReplaceHourlyWeather(spotID string, rows []models.HourlyWeather) error
	ReplaceDailyWeather(spotID string, rows []models.DailyWeather) error
	ReplaceHourlyMarine(spotID string, rows []models.HourlyMarine) error
	ReplaceScoredForecast(spotID string, rows []models.ScoredHour) error
	ReplaceHalfDayScores(spotID string, rows []models.HalfDayScore) error
	ReplaceDailyScores(spotID string, rows []models.DailyScore) error

	GetHourlyWeather(spotID string) ([]models.HourlyWeather, error)
	GetHourlyMarine(spotID string) ([]models.HourlyMarine, error)
	GetDailyWeather(spotID string) ([]models.DailyWeather, error)
	GetScoredForecast(spotID string) ([]models.ScoredHour, error)
	GetHalfDayScores(spotID string) ([]models.HalfDayScore, error)
}

// StepResult is the outcome of one pipeline step for one spot.
type StepResult struct {
	Updated bool
	Err     error
}

// SpotStatus summarizes one spot's pass through the pipeline.
type SpotStatus struct {
	SpotID string
	Steps  map[models.Layer]StepResult
}

// Updated counts the layers this pass rewrote.
func (s SpotStatus) Updated() int {
	n := 0
	for _, r := range s.Steps {
		if r.Updated {
			n++
		}
	}
	return n
}

// Errs collects the per-step errors, keyed by layer.
func (s SpotStatus) Errs() map[models.Layer]string {
	out := make(map[models.Layer]string)
	for layer, r := range s.Steps {
		if r.Err != nil {
			out[layer] = r.Err.Error()
		}
	}
	return out
}

// Orchestrator runs the refresh pipeline across the spot catalog.
type Orchestrator struct {
	store     Store
	provider  Provider
	spots     []models.Spot
	threshold time.Duration
	fanOut    int
}

// Option adjusts an Orchestrator.
type Option func(*Orchestrator)

// WithThreshold overrides the staleness threshold.
func WithThreshold(d time.Duration) Option {
	return func(o *Orchestrator) { o.threshold = d }
}

// WithFanOut overrides the concurrent-spot limit.
func WithFanOut(n int) Option {
	return func(o *Orchestrator) { o.fanOut = n }
}

// WithSpots overrides the catalog, mainly for tests.
func WithSpots(spots []models.Spot) Option {
	return func(o *Orchestrator) { o.spots = spots }
}

func New(store Store, provider Provider, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		store:     store,
		provider:  provider,
		spots:     catalog.Spots,
		threshold: DefaultThreshold,
		fanOut:    DefaultFanOut,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// RefreshAll refreshes every spot, up to fanOut at a time. One spot's
// failure never aborts the others; per-spot outcomes are returned together.
func (o *Orchestrator) RefreshAll(ctx context.Context, force bool) []SpotStatus {
	statuses := make([]SpotStatus, len(o.spots))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(o.fanOut)
	for i, spot := range o.spots {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				statuses[i] = SpotStatus{SpotID: spot.SpotID, Steps: map[models.Layer]StepResult{}}
				return nil
			}
			statuses[i] = o.RefreshSpot(ctx, spot, force)
			return nil
		})
	}
	g.Wait()
	return statuses
}

// RefreshSpot runs the five pipeline steps for one spot in dependency order.
func (o *Orchestrator) RefreshSpot(ctx context.Context, spot models.Spot, force bool) SpotStatus {
	start := time.Now()
	defer func() {
		metrics.SpotRefreshDuration.WithLabelValues(spot.SpotID).Observe(time.Since(start).Seconds())
	}()

	status := SpotStatus{SpotID: spot.SpotID, Steps: make(map[models.Layer]StepResult)}

	needsWeather := o.stale(spot.SpotID, models.LayerWeather, force)
	needsMarine := o.stale(spot.SpotID, models.LayerMarine, force)
	needsDailyWeather := o.stale(spot.SpotID, models.LayerDailyWeather, force)
	rawTouched := needsWeather || needsMarine

	needsScored := o.stale(spot.SpotID, models.LayerScored, force) || rawTouched
	needsHalfDay := o.stale(spot.SpotID, models.LayerHalfDay, force) || needsScored
	needsDailyScores := o.stale(spot.SpotID, models.LayerDailyScores, force) || needsScored

	if needsWeather || needsDailyWeather {
		o.fetchWeather(ctx, spot, needsWeather, needsDailyWeather, &status)
	}
	if needsMarine {
		o.fetchMarine(ctx, spot, &status)
	}
	if needsScored {
		o.deriveScored(spot, &status)
	}
	if needsHalfDay {
		o.deriveHalfDay(spot, &status)
	}
	if needsDailyScores {
		o.deriveDailyScores(spot, &status)
	}

	log.Printf("refresh: %s done in %s, %d layers updated", spot.SpotID, time.Since(start).Round(time.Millisecond), status.Updated())
	return status
}

// stale treats a ledger read failure as stale so the pipeline self-heals by
// refetching.
func (o *Orchestrator) stale(spotID string, layer models.Layer, force bool) bool {
	if force {
		return true
	}
	needs, err := o.store.NeedsUpdate(spotID, layer, o.threshold)
	if err != nil {
		log.Printf("refresh: %s ledger read for %s: %v", spotID, layer, err)
		return true
	}
	return needs
}

func (o *Orchestrator) record(status *SpotStatus, layer models.Layer, updated bool, err error) {
	status.Steps[layer] = StepResult{Updated: updated, Err: err}
	outcome := "updated"
	switch {
	case err != nil:
		outcome = "error"
	case !updated:
		outcome = "skipped"
	}
	metrics.RefreshStepsTotal.WithLabelValues(string(layer), outcome).Inc()
	if err != nil {
		log.Printf("refresh: %s %s: %v", status.SpotID, layer, err)
	}
}

func (o *Orchestrator) fetchWeather(ctx context.Context, spot models.Spot, wantHourly, wantDaily bool, status *SpotStatus) {
	hourly, daily, err := o.provider.FetchWeather(ctx, spot.Latitude, spot.Longitude)
	if err != nil {
		if wantHourly {
			o.record(status, models.LayerWeather, false, err)
		}
		if wantDaily {
			o.record(status, models.LayerDailyWeather, false, err)
		}
		return
	}
	if wantHourly {
		for i := range hourly {
			hourly[i].SpotID = spot.SpotID
		}
		err := o.store.ReplaceHourlyWeather(spot.SpotID, hourly)
		o.record(status, models.LayerWeather, err == nil, err)
	}
	if wantDaily {
		for i := range daily {
			daily[i].SpotID = spot.SpotID
		}
		err := o.store.ReplaceDailyWeather(spot.SpotID, daily)
		o.record(status, models.LayerDailyWeather, err == nil, err)
	}
}

func (o *Orchestrator) fetchMarine(ctx context.Context, spot models.Spot, status *SpotStatus) {
	rows, err := o.provider.FetchMarine(ctx, spot.Latitude, spot.Longitude)
	if err != nil {
		o.record(status, models.LayerMarine, false, err)
		return
	}
	for i := range rows {
		rows[i].SpotID = spot.SpotID
	}
	err = o.store.ReplaceHourlyMarine(spot.SpotID, rows)
	o.record(status, models.LayerMarine, err == nil, err)
}

// deriveScored inner-joins the raw hourly layers on timestamp and scores
// each matched hour. Cached rows satisfy the precondition even when this
// pass failed to refetch them.
func (o *Orchestrator) deriveScored(spot models.Spot, status *SpotStatus) {
	weather, err := o.store.GetHourlyWeather(spot.SpotID)
	if err != nil {
		o.record(status, models.LayerScored, false, err)
		return
	}
	marine, err := o.store.GetHourlyMarine(spot.SpotID)
	if err != nil {
		o.record(status, models.LayerScored, false, err)
		return
	}
	if len(weather) == 0 || len(marine) == 0 {
		o.record(status, models.LayerScored, false, fmt.Errorf("%w: weather=%d marine=%d rows", ErrPrerequisiteMissing, len(weather), len(marine)))
		return
	}

	byTime := make(map[time.Time]models.HourlyWeather, len(weather))
	for _, w := range weather {
		byTime[w.Timestamp] = w
	}
	scored := make([]models.ScoredHour, 0, len(marine))
	for _, m := range marine {
		w, ok := byTime[m.Timestamp]
		if !ok {
			continue
		}
		in := scoring.HourInputs{
			WaveHeight:    m.WaveHeight,
			WaveDirection: m.WaveDirection,
			WavePeriod:    m.WavePeriod,
			WindSpeed:     w.WindSpeed,
			WindDirection: w.WindDirection,
		}
		row := scoring.ScoreHour(in, spot)
		row.SpotID = spot.SpotID
		row.Timestamp = m.Timestamp
		scored = append(scored, row)
	}

	err = o.store.ReplaceScoredForecast(spot.SpotID, scored)
	o.record(status, models.LayerScored, err == nil, err)
}

func (o *Orchestrator) deriveHalfDay(spot models.Spot, status *SpotStatus) {
	scored, daily, err := o.aggregateInputs(spot.SpotID)
	if err != nil {
		o.record(status, models.LayerHalfDay, false, err)
		return
	}
	rows := scoring.HalfDayScores(scored, daily, catalog.Location(spot))
	err = o.store.ReplaceHalfDayScores(spot.SpotID, rows)
	o.record(status, models.LayerHalfDay, err == nil, err)
}

func (o *Orchestrator) deriveDailyScores(spot models.Spot, status *SpotStatus) {
	scored, daily, err := o.aggregateInputs(spot.SpotID)
	if err != nil {
		o.record(status, models.LayerDailyScores, false, err)
		return
	}
	rows := scoring.DailyScores(scored, daily, catalog.Location(spot))
	err = o.store.ReplaceDailyScores(spot.SpotID, rows)
	o.record(status, models.LayerDailyScores, err == nil, err)
}

func (o *Orchestrator) aggregateInputs(spotID string) ([]models.ScoredHour, []models.DailyWeather, error) {
	scored, err := o.store.GetScoredForecast(spotID)
	if err != nil {
		return nil, nil, err
	}
	if len(scored) == 0 {
		return nil, nil, fmt.Errorf("%w: no scored rows", ErrPrerequisiteMissing)
	}
	daily, err := o.store.GetDailyWeather(spotID)
	if err != nil {
		return nil, nil, err
	}
	return scored, daily, nil
}
