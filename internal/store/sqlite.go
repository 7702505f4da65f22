// Package store is the single-writer persistent cache for all forecast
// layers. Each layer write replaces every row for the (spot, layer) pair in
// one transaction and stamps the freshness ledger as part of that same
// transaction.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/lbrouwer/surfcast/internal/metrics"
	"github.com/lbrouwer/surfcast/internal/models"
)

var (
	// ErrBusy reports write contention on the same (spot, layer).
	ErrBusy = errors.New("store busy")
	// ErrCorrupt reports rows that violate a data invariant. Fatal to the
	// current write; nothing is committed and the ledger is not stamped.
	ErrCorrupt = errors.New("store corrupt")
	// ErrNotFound reports an unknown spot on a read path.
	ErrNotFound = errors.New("not found")
)

const busyRetryDelay = 50 * time.Millisecond

type Store struct {
	db  *sql.DB
	now func() time.Time

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func New(db *sql.DB) *Store {
	return &Store{
		db:    db,
		now:   func() time.Time { return time.Now().UTC() },
		locks: make(map[string]*sync.Mutex),
	}
}

// layerLock returns the mutex serializing writers for one (spot, layer).
// Writers to different pairs proceed concurrently.
func (s *Store) layerLock(spotID string, layer models.Layer) *sync.Mutex {
	key := spotID + "/" + string(layer)
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.locks[key]
	if !ok {
		m = &sync.Mutex{}
		s.locks[key] = m
	}
	return m
}

// replaceLayer runs fn inside a transaction that first clears the layer's
// rows for the spot, then stamps the ledger. A conflicting writer gets one
// retry after a short delay, then ErrBusy.
func (s *Store) replaceLayer(spotID string, layer models.Layer, table string, fn func(tx *sql.Tx) error) error {
	lock := s.layerLock(spotID, layer)
	if !lock.TryLock() {
		time.Sleep(busyRetryDelay)
		if !lock.TryLock() {
			return fmt.Errorf("%w: %s/%s", ErrBusy, spotID, layer)
		}
	}
	defer lock.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM "+table+" WHERE spot_id = ?", spotID); err != nil {
		return fmt.Errorf("clear %s: %w", table, err)
	}
	if err := fn(tx); err != nil {
		return err
	}
	if _, err := tx.Exec(
		"INSERT INTO refresh_ledger (spot_id, "+string(layer)+") VALUES (?, ?) "+
			"ON CONFLICT(spot_id) DO UPDATE SET "+string(layer)+" = excluded."+string(layer),
		spotID, s.now(),
	); err != nil {
		return fmt.Errorf("stamp ledger: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit %s: %w", table, err)
	}

	metrics.LayerUpsertsTotal.WithLabelValues(string(layer)).Inc()
	return nil
}

func (s *Store) UpsertSpot(spot models.Spot) error {
	_, err := s.db.Exec(`
		INSERT INTO spots (spot_id, name, latitude, longitude, timezone, swell_dir_min, swell_dir_max, wind_dir_min, wind_dir_max, primary_airport)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(spot_id) DO UPDATE SET
			name = excluded.name,
			latitude = excluded.latitude,
			longitude = excluded.longitude,
			timezone = excluded.timezone,
			swell_dir_min = excluded.swell_dir_min,
			swell_dir_max = excluded.swell_dir_max,
			wind_dir_min = excluded.wind_dir_min,
			wind_dir_max = excluded.wind_dir_max,
			primary_airport = excluded.primary_airport
	`, spot.SpotID, spot.Name, spot.Latitude, spot.Longitude, spot.Timezone,
		spot.SwellDirRange.Min, spot.SwellDirRange.Max,
		spot.WindDirRange.Min, spot.WindDirRange.Max, spot.PrimaryAirport)
	return err
}

func (s *Store) GetSpot(spotID string) (*models.Spot, error) {
	var sp models.Spot
	err := s.db.QueryRow(`
		SELECT spot_id, name, latitude, longitude, timezone, swell_dir_min, swell_dir_max, wind_dir_min, wind_dir_max, primary_airport
		FROM spots WHERE spot_id = ?
	`, spotID).Scan(&sp.SpotID, &sp.Name, &sp.Latitude, &sp.Longitude, &sp.Timezone,
		&sp.SwellDirRange.Min, &sp.SwellDirRange.Max,
		&sp.WindDirRange.Min, &sp.WindDirRange.Max, &sp.PrimaryAirport)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: spot %s", ErrNotFound, spotID)
	}
	if err != nil {
		return nil, err
	}
	return &sp, nil
}

func (s *Store) ReplaceHourlyWeather(spotID string, rows []models.HourlyWeather) error {
	return s.replaceLayer(spotID, models.LayerWeather, "hourly_weather", func(tx *sql.Tx) error {
		stmt, err := tx.Prepare(`
			INSERT INTO hourly_weather (spot_id, timestamp, temperature, wind_speed, wind_direction, wind_gusts, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		now := s.now()
		for _, r := range rows {
			if _, err := stmt.Exec(spotID, r.Timestamp.UTC(), nullIfNaN(r.Temperature), nullIfNaN(r.WindSpeed), nullIfNaN(r.WindDirection), nullIfNaN(r.WindGusts), now); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Store) GetHourlyWeather(spotID string) ([]models.HourlyWeather, error) {
	rows, err := s.db.Query(`
		SELECT timestamp, temperature, wind_speed, wind_direction, wind_gusts
		FROM hourly_weather WHERE spot_id = ? ORDER BY timestamp
	`, spotID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.HourlyWeather
	for rows.Next() {
		r := models.HourlyWeather{SpotID: spotID}
		var temp, speed, dir, gusts sql.NullFloat64
		if err := rows.Scan(&r.Timestamp, &temp, &speed, &dir, &gusts); err != nil {
			return nil, err
		}
		r.Timestamp = r.Timestamp.UTC()
		r.Temperature = nanIfNull(temp)
		r.WindSpeed = nanIfNull(speed)
		r.WindDirection = nanIfNull(dir)
		r.WindGusts = nanIfNull(gusts)
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) ReplaceHourlyMarine(spotID string, rows []models.HourlyMarine) error {
	return s.replaceLayer(spotID, models.LayerMarine, "hourly_marine", func(tx *sql.Tx) error {
		stmt, err := tx.Prepare(`
			INSERT INTO hourly_marine (spot_id, timestamp, wave_height, wave_direction, wave_period, sea_level_height_msl, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		now := s.now()
		for _, r := range rows {
			if _, err := stmt.Exec(spotID, r.Timestamp.UTC(), nullIfNaN(r.WaveHeight), nullIfNaN(r.WaveDirection), nullIfNaN(r.WavePeriod), r.SeaLevel, now); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Store) GetHourlyMarine(spotID string) ([]models.HourlyMarine, error) {
	rows, err := s.db.Query(`
		SELECT timestamp, wave_height, wave_direction, wave_period, sea_level_height_msl
		FROM hourly_marine WHERE spot_id = ? ORDER BY timestamp
	`, spotID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.HourlyMarine
	for rows.Next() {
		r := models.HourlyMarine{SpotID: spotID}
		var h, d, p sql.NullFloat64
		if err := rows.Scan(&r.Timestamp, &h, &d, &p, &r.SeaLevel); err != nil {
			return nil, err
		}
		r.Timestamp = r.Timestamp.UTC()
		r.WaveHeight = nanIfNull(h)
		r.WaveDirection = nanIfNull(d)
		r.WavePeriod = nanIfNull(p)
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) ReplaceDailyWeather(spotID string, rows []models.DailyWeather) error {
	return s.replaceLayer(spotID, models.LayerDailyWeather, "daily_weather", func(tx *sql.Tx) error {
		stmt, err := tx.Prepare(`
			INSERT INTO daily_weather (spot_id, date, sunrise, sunset, daylight_duration, temperature_min, temperature_max, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		now := s.now()
		for _, r := range rows {
			if _, err := stmt.Exec(spotID, r.Date.UTC(), r.Sunrise, r.Sunset, nullIfNaN(r.DaylightDuration), nullIfNaN(r.TempMin), nullIfNaN(r.TempMax), now); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Store) GetDailyWeather(spotID string) ([]models.DailyWeather, error) {
	rows, err := s.db.Query(`
		SELECT date, sunrise, sunset, daylight_duration, temperature_min, temperature_max
		FROM daily_weather WHERE spot_id = ? ORDER BY date
	`, spotID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.DailyWeather
	for rows.Next() {
		r := models.DailyWeather{SpotID: spotID}
		var daylight, tmin, tmax sql.NullFloat64
		if err := rows.Scan(&r.Date, &r.Sunrise, &r.Sunset, &daylight, &tmin, &tmax); err != nil {
			return nil, err
		}
		r.Date = r.Date.UTC()
		r.DaylightDuration = nanIfNull(daylight)
		r.TempMin = nanIfNull(tmin)
		r.TempMax = nanIfNull(tmax)
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) ReplaceScoredForecast(spotID string, rows []models.ScoredHour) error {
	for _, r := range rows {
		if r.TotalPoints < 1 || r.TotalPoints > 10 {
			return fmt.Errorf("%w: scored row %s total_points %d out of [1,10]", ErrCorrupt, r.Timestamp, r.TotalPoints)
		}
	}
	return s.replaceLayer(spotID, models.LayerScored, "scored_forecasts", func(tx *sql.Tx) error {
		stmt, err := tx.Prepare(`
			INSERT INTO scored_forecasts (spot_id, timestamp, wave_height, wave_direction, wave_period, wind_speed, wind_direction,
				swell_points, wind_points, height_points, period_points, total_points,
				surf_rating, wind_relationship, wave_height_ft, conditions_summary, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		now := s.now()
		for _, r := range rows {
			if _, err := stmt.Exec(spotID, r.Timestamp.UTC(),
				nullIfNaN(r.WaveHeight), nullIfNaN(r.WaveDirection), nullIfNaN(r.WavePeriod),
				nullIfNaN(r.WindSpeed), nullIfNaN(r.WindDirection),
				r.SwellPoints, r.WindPoints, r.HeightPoints, r.PeriodPoints, r.TotalPoints,
				r.SurfRating, r.WindRelationship, nullIfNaN(r.WaveHeightFt), r.ConditionsSummary, now); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Store) GetScoredForecast(spotID string) ([]models.ScoredHour, error) {
	rows, err := s.db.Query(`
		SELECT timestamp, wave_height, wave_direction, wave_period, wind_speed, wind_direction,
			swell_points, wind_points, height_points, period_points, total_points,
			surf_rating, wind_relationship, wave_height_ft, conditions_summary
		FROM scored_forecasts WHERE spot_id = ? ORDER BY timestamp
	`, spotID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.ScoredHour
	for rows.Next() {
		r := models.ScoredHour{SpotID: spotID}
		var wh, wd, wp, ws, wa, ft sql.NullFloat64
		var summary sql.NullString
		if err := rows.Scan(&r.Timestamp, &wh, &wd, &wp, &ws, &wa,
			&r.SwellPoints, &r.WindPoints, &r.HeightPoints, &r.PeriodPoints, &r.TotalPoints,
			&r.SurfRating, &r.WindRelationship, &ft, &summary); err != nil {
			return nil, err
		}
		r.Timestamp = r.Timestamp.UTC()
		r.WaveHeight = nanIfNull(wh)
		r.WaveDirection = nanIfNull(wd)
		r.WavePeriod = nanIfNull(wp)
		r.WindSpeed = nanIfNull(ws)
		r.WindDirection = nanIfNull(wa)
		r.WaveHeightFt = nanIfNull(ft)
		r.ConditionsSummary = summary.String
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) ReplaceHalfDayScores(spotID string, rows []models.HalfDayScore) error {
	for _, r := range rows {
		if r.Half != models.HalfMorning && r.Half != models.HalfAfternoon {
			return fmt.Errorf("%w: half-day row %s has half %q", ErrCorrupt, r.Date.Format("2006-01-02"), r.Half)
		}
	}
	return s.replaceLayer(spotID, models.LayerHalfDay, "half_day_scores", func(tx *sql.Tx) error {
		stmt, err := tx.Prepare(`
			INSERT INTO half_day_scores (spot_id, date, half_day, avg_total_points, created_at)
			VALUES (?, ?, ?, ?, ?)
		`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		now := s.now()
		for _, r := range rows {
			if _, err := stmt.Exec(spotID, r.Date.UTC(), r.Half, r.AvgTotalPoints, now); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Store) GetHalfDayScores(spotID string) ([]models.HalfDayScore, error) {
	// morning sorts after afternoon alphabetically, so order halves explicitly.
	rows, err := s.db.Query(`
		SELECT date, half_day, avg_total_points
		FROM half_day_scores WHERE spot_id = ?
		ORDER BY date, CASE half_day WHEN 'morning' THEN 0 ELSE 1 END
	`, spotID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.HalfDayScore
	for rows.Next() {
		r := models.HalfDayScore{SpotID: spotID}
		if err := rows.Scan(&r.Date, &r.Half, &r.AvgTotalPoints); err != nil {
			return nil, err
		}
		r.Date = r.Date.UTC()
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) ReplaceDailyScores(spotID string, rows []models.DailyScore) error {
	return s.replaceLayer(spotID, models.LayerDailyScores, "daily_scores", func(tx *sql.Tx) error {
		stmt, err := tx.Prepare(`
			INSERT INTO daily_scores (spot_id, date, avg_total_points, surf_rating, wind_relationship, conditions_summary, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		now := s.now()
		for _, r := range rows {
			if _, err := stmt.Exec(spotID, r.Date.UTC(), r.AvgTotalPoints, r.SurfRating, r.WindRelationship, r.ConditionsSummary, now); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Store) GetDailyScores(spotID string) ([]models.DailyScore, error) {
	rows, err := s.db.Query(`
		SELECT date, avg_total_points, surf_rating, wind_relationship, conditions_summary
		FROM daily_scores WHERE spot_id = ? ORDER BY date
	`, spotID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.DailyScore
	for rows.Next() {
		r := models.DailyScore{SpotID: spotID}
		var rating, rel, summary sql.NullString
		if err := rows.Scan(&r.Date, &r.AvgTotalPoints, &rating, &rel, &summary); err != nil {
			return nil, err
		}
		r.Date = r.Date.UTC()
		r.SurfRating = rating.String
		r.WindRelationship = rel.String
		r.ConditionsSummary = summary.String
		out = append(out, r)
	}
	return out, rows.Err()
}

// NeedsUpdate implements the freshness policy: a layer is stale when its
// ledger entry is absent or older than the threshold. All comparisons in UTC.
func (s *Store) NeedsUpdate(spotID string, layer models.Layer, threshold time.Duration) (bool, error) {
	var stamp sql.NullTime
	err := s.db.QueryRow(
		"SELECT "+string(layer)+" FROM refresh_ledger WHERE spot_id = ?", spotID,
	).Scan(&stamp)
	if errors.Is(err, sql.ErrNoRows) {
		return true, nil
	}
	if err != nil {
		return false, err
	}
	if !stamp.Valid {
		return true, nil
	}
	return s.now().Sub(stamp.Time.UTC()) > threshold, nil
}

// GetFreshness returns the full ledger row for a spot. Zero times mark
// layers that have never been written.
func (s *Store) GetFreshness(spotID string) (models.Freshness, error) {
	f := models.Freshness{SpotID: spotID}
	var w, m, dw, sc, hd, ds sql.NullTime
	err := s.db.QueryRow(`
		SELECT weather, marine, daily_weather, scored, half_day, daily_scores
		FROM refresh_ledger WHERE spot_id = ?
	`, spotID).Scan(&w, &m, &dw, &sc, &hd, &ds)
	if errors.Is(err, sql.ErrNoRows) {
		return f, nil
	}
	if err != nil {
		return f, err
	}
	f.Weather = w.Time.UTC()
	f.Marine = m.Time.UTC()
	f.DailyWeather = dw.Time.UTC()
	f.Scored = sc.Time.UTC()
	f.HalfDay = hd.Time.UTC()
	f.DailyScores = ds.Time.UTC()
	return f, nil
}

func nullIfNaN(f float64) sql.NullFloat64 {
	if math.IsNaN(f) {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: f, Valid: true}
}

func nanIfNull(f sql.NullFloat64) float64 {
	if !f.Valid {
		return math.NaN()
	}
	return f.Float64
}
