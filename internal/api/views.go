package api

import (
	"errors"
	"math"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/lbrouwer/surfcast/internal/catalog"
	"github.com/lbrouwer/surfcast/internal/models"
	"github.com/lbrouwer/surfcast/internal/scoring"
)

const defaultDetailedDays = 7

type dailyRow struct {
	Date              string  `json:"date"`
	AvgTotalPoints    float64 `json:"avg_total_points"`
	SurfRating        string  `json:"surf_rating"`
	WindRelationship  string  `json:"wind_relationship"`
	ConditionsSummary string  `json:"conditions_summary"`
}

type hourRow struct {
	LocalTime     string   `json:"local_time"`
	Score         int      `json:"score"`
	Rating        string   `json:"rating"`
	WaveHeightFt  *float64 `json:"wave_height_ft"`
	PeriodS       *float64 `json:"period_s"`
	WindSpeedKn   *float64 `json:"wind_speed_kn"`
	WindDirDeg    *float64 `json:"wind_direction_deg"`
	WindFavorable bool     `json:"wind_favorable"`
	SeaLevelM     *float64 `json:"sea_level_height_m"`
}

type detailedDay struct {
	Date    string    `json:"date"`
	Daily   *dailyRow `json:"daily"`
	Sunrise string    `json:"sunrise"`
	Sunset  string    `json:"sunset"`
	TempMin *float64  `json:"temperature_min"`
	TempMax *float64  `json:"temperature_max"`
	Hours   []hourRow `json:"hours"`
}

// fptr converts the NaN missing-value sentinel into a JSON null.
func fptr(f float64) *float64 {
	if math.IsNaN(f) {
		return nil
	}
	return &f
}

func (s *Server) lookupSpot(w http.ResponseWriter, r *http.Request) (models.Spot, bool) {
	sp, err := catalog.Lookup(r.PathValue("spot"))
	if err != nil {
		if errors.Is(err, catalog.ErrUnknownSpot) {
			http.Error(w, err.Error(), http.StatusNotFound)
		} else {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
		return models.Spot{}, false
	}
	return sp, true
}

func (s *Server) handleDailyForecast(w http.ResponseWriter, r *http.Request) {
	sp, ok := s.lookupSpot(w, r)
	if !ok {
		return
	}
	rows, err := s.store.GetDailyScores(sp.SpotID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	out := make([]dailyRow, 0, len(rows))
	for _, d := range rows {
		out = append(out, dailyRow{
			Date:              d.Date.Format("2006-01-02"),
			AvgTotalPoints:    d.AvgTotalPoints,
			SurfRating:        d.SurfRating,
			WindRelationship:  d.WindRelationship,
			ConditionsSummary: d.ConditionsSummary,
		})
	}
	writeJSON(w, out)
}

func (s *Server) handleDetailedForecast(w http.ResponseWriter, r *http.Request) {
	sp, ok := s.lookupSpot(w, r)
	if !ok {
		return
	}
	days := defaultDetailedDays
	if raw := r.URL.Query().Get("days"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			http.Error(w, "days must be a positive integer", http.StatusBadRequest)
			return
		}
		days = n
	}

	out, err := s.detailedView(sp, days)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, out)
}

// detailedView composes per-date daylight hours with the daily aggregate,
// sunrise/sunset, temperature bounds, and nearest-neighbor sea level. Dates
// beyond the first `days` with data are cut.
func (s *Server) detailedView(sp models.Spot, days int) ([]detailedDay, error) {
	scored, err := s.store.GetScoredForecast(sp.SpotID)
	if err != nil {
		return nil, err
	}
	daily, err := s.store.GetDailyWeather(sp.SpotID)
	if err != nil {
		return nil, err
	}
	dailyScores, err := s.store.GetDailyScores(sp.SpotID)
	if err != nil {
		return nil, err
	}
	marine, err := s.store.GetHourlyMarine(sp.SpotID)
	if err != nil {
		return nil, err
	}

	loc := catalog.Location(sp)
	seaLevel := newSeaLevelIndex(marine)

	dailyByDate := make(map[string]models.DailyWeather, len(daily))
	for _, d := range daily {
		dailyByDate[time.Unix(d.Sunrise, 0).In(loc).Format("2006-01-02")] = d
	}
	scoreByDate := make(map[string]models.DailyScore, len(dailyScores))
	for _, d := range dailyScores {
		scoreByDate[d.Date.Format("2006-01-02")] = d
	}

	byDate := make(map[string][]hourRow)
	for _, row := range scoring.DaylightHours(scored, daily, loc) {
		local := row.Timestamp.In(loc)
		date := local.Format("2006-01-02")
		byDate[date] = append(byDate[date], hourRow{
			LocalTime:     local.Format("15:04"),
			Score:         row.TotalPoints,
			Rating:        row.SurfRating,
			WaveHeightFt:  fptr(row.WaveHeightFt),
			PeriodS:       fptr(row.WavePeriod),
			WindSpeedKn:   fptr(row.WindSpeed),
			WindDirDeg:    fptr(row.WindDirection),
			WindFavorable: row.WindRelationship == "favorable",
			SeaLevelM:     seaLevel.nearest(row.Timestamp),
		})
	}

	dates := make([]string, 0, len(byDate))
	for date := range byDate {
		dates = append(dates, date)
	}
	sort.Strings(dates)
	if len(dates) > days {
		dates = dates[:days]
	}

	out := make([]detailedDay, 0, len(dates))
	for _, date := range dates {
		day := detailedDay{Date: date, Hours: byDate[date]}
		if dw, ok := dailyByDate[date]; ok {
			day.Sunrise = time.Unix(dw.Sunrise, 0).In(loc).Format("15:04")
			day.Sunset = time.Unix(dw.Sunset, 0).In(loc).Format("15:04")
			day.TempMin = fptr(dw.TempMin)
			day.TempMax = fptr(dw.TempMax)
		}
		if ds, ok := scoreByDate[date]; ok {
			day.Daily = &dailyRow{
				Date:              date,
				AvgTotalPoints:    ds.AvgTotalPoints,
				SurfRating:        ds.SurfRating,
				WindRelationship:  ds.WindRelationship,
				ConditionsSummary: ds.ConditionsSummary,
			}
		}
		out = append(out, day)
	}
	return out, nil
}

// seaLevelIndex answers nearest-neighbor sea-level lookups over the hours
// that actually carry a reading. No reading means the view reports null.
type seaLevelIndex struct {
	times  []time.Time
	levels []float64
}

func newSeaLevelIndex(marine []models.HourlyMarine) *seaLevelIndex {
	idx := &seaLevelIndex{}
	for _, m := range marine {
		if m.SeaLevel.Valid {
			idx.times = append(idx.times, m.Timestamp)
			idx.levels = append(idx.levels, m.SeaLevel.Float64)
		}
	}
	return idx
}

func (idx *seaLevelIndex) nearest(ts time.Time) *float64 {
	if len(idx.times) == 0 {
		return nil
	}
	i := sort.Search(len(idx.times), func(i int) bool { return !idx.times[i].Before(ts) })
	best := -1
	var bestDiff time.Duration
	for _, cand := range []int{i - 1, i} {
		if cand < 0 || cand >= len(idx.times) {
			continue
		}
		diff := ts.Sub(idx.times[cand])
		if diff < 0 {
			diff = -diff
		}
		if best == -1 || diff < bestDiff {
			best = cand
			bestDiff = diff
		}
	}
	return &idx.levels[best]
}
