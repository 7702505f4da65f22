package models

import (
	"database/sql"
	"math"
	"time"
)

// Layer identifies one of the six derived data shapes tracked by the
// freshness ledger.
type Layer string

const (
	LayerWeather      Layer = "weather"
	LayerMarine       Layer = "marine"
	LayerDailyWeather Layer = "daily_weather"
	LayerScored       Layer = "scored"
	LayerHalfDay      Layer = "half_day"
	LayerDailyScores  Layer = "daily_scores"
)

// Layers lists every ledger layer in dependency order.
var Layers = []Layer{LayerWeather, LayerMarine, LayerDailyWeather, LayerScored, LayerHalfDay, LayerDailyScores}

// DirRange is a compass interval in degrees over [0,360). Min > Max means
// the interval wraps past north, e.g. (340,60) covers 340-360 and 0-60.
type DirRange struct {
	Min float64
	Max float64
}

// Contains reports whether deg falls inside the interval, endpoints inclusive.
func (r DirRange) Contains(deg float64) bool {
	if math.IsNaN(deg) {
		return false
	}
	if r.Min > r.Max {
		return deg >= r.Min || deg <= r.Max
	}
	return deg >= r.Min && deg <= r.Max
}

// Expand widens the interval by buffer degrees on each side, normalizing
// back into [0,360). Expansion can introduce a wrap.
func (r DirRange) Expand(buffer float64) DirRange {
	min := math.Mod(r.Min-buffer+360, 360)
	max := math.Mod(r.Max+buffer, 360)
	return DirRange{Min: min, Max: max}
}

type Spot struct {
	SpotID         string
	Name           string
	Latitude       float64
	Longitude      float64
	Timezone       string
	SwellDirRange  DirRange
	WindDirRange   DirRange
	PrimaryAirport string
}

// HourlyWeather is one hour of atmospheric forecast. Wind speed is in
// knots, directions in degrees. Missing values are NaN.
type HourlyWeather struct {
	SpotID        string
	Timestamp     time.Time // UTC, on the hour
	Temperature   float64
	WindSpeed     float64
	WindDirection float64
	WindGusts     float64
}

// HourlyMarine is one hour of marine forecast. Wave height and sea level
// are in meters, period in seconds. Sea level is frequently absent from
// the provider and carries no synthetic substitute.
type HourlyMarine struct {
	SpotID        string
	Timestamp     time.Time // UTC, on the hour
	WaveHeight    float64
	WaveDirection float64
	WavePeriod    float64
	SeaLevel      sql.NullFloat64
}

// DailyWeather carries sunrise/sunset (epoch seconds) and temperature
// bounds for one forecast date.
type DailyWeather struct {
	SpotID           string
	Date             time.Time // date at midnight UTC
	Sunrise          int64
	Sunset           int64
	DaylightDuration float64
	TempMin          float64
	TempMax          float64
}

// ScoredHour is one scored hour of merged weather and marine readings.
type ScoredHour struct {
	SpotID        string
	Timestamp     time.Time // UTC, on the hour
	WaveHeight    float64   // meters
	WaveDirection float64
	WavePeriod    float64
	WindSpeed     float64 // knots
	WindDirection float64

	SwellPoints  int
	WindPoints   int
	HeightPoints int
	PeriodPoints int
	TotalPoints  int // clamped to [1,10]

	SurfRating        string
	WindRelationship  string // "favorable", "unfavorable" or "unknown"
	WaveHeightFt      float64
	ConditionsSummary string
}

const (
	HalfMorning   = "morning"
	HalfAfternoon = "afternoon"
)

type HalfDayScore struct {
	SpotID         string
	Date           time.Time // local date at midnight UTC
	Half           string    // HalfMorning or HalfAfternoon
	AvgTotalPoints float64
}

type DailyScore struct {
	SpotID            string
	Date              time.Time // local date at midnight UTC
	AvgTotalPoints    float64
	SurfRating        string
	WindRelationship  string
	ConditionsSummary string
}

// Freshness is the per-spot ledger row: last successful write per layer.
// A zero time means the layer has never been written.
type Freshness struct {
	SpotID       string
	Weather      time.Time
	Marine       time.Time
	DailyWeather time.Time
	Scored       time.Time
	HalfDay      time.Time
	DailyScores  time.Time
}

// Get returns the ledger timestamp for the given layer.
func (f Freshness) Get(layer Layer) time.Time {
	switch layer {
	case LayerWeather:
		return f.Weather
	case LayerMarine:
		return f.Marine
	case LayerDailyWeather:
		return f.DailyWeather
	case LayerScored:
		return f.Scored
	case LayerHalfDay:
		return f.HalfDay
	case LayerDailyScores:
		return f.DailyScores
	}
	return time.Time{}
}
