// Package scoring maps merged environmental readings to surf-quality points
// and ratings, and aggregates scored hours into half-day and daily
// summaries. Everything here is a pure function of its inputs.
package scoring

import (
	"fmt"
	"math"

	"github.com/lbrouwer/surfcast/internal/models"
)

// MetersToFeet converts wave heights for the threshold tables.
const MetersToFeet = 3.28084

// semiDirectBuffer is the widening applied to a spot's swell window when
// testing for semi-direct swell.
const semiDirectBuffer = 30.0

// HourInputs is one hour of merged weather and marine readings. NaN marks a
// missing value; any missing input degrades the hour to the Unknown rating.
type HourInputs struct {
	WaveHeight    float64 // meters
	WaveDirection float64 // degrees
	WavePeriod    float64 // seconds
	WindSpeed     float64 // knots
	WindDirection float64 // degrees
}

func (in HourInputs) complete() bool {
	return !math.IsNaN(in.WaveHeight) && !math.IsNaN(in.WaveDirection) &&
		!math.IsNaN(in.WavePeriod) && !math.IsNaN(in.WindSpeed) && !math.IsNaN(in.WindDirection)
}

// SwellDirectionPoints scores how directly the swell hits the spot's window:
// 0 inside the window, -1 within the 30 degree buffered window, -10 outside.
func SwellDirectionPoints(waveDir float64, swellRange models.DirRange) int {
	if swellRange.Contains(waveDir) {
		return 0
	}
	if swellRange.Expand(semiDirectBuffer).Contains(waveDir) {
		return -1
	}
	return -10
}

// WindFavorable reports whether the wind blows from the spot's preferred
// quarter, wrap-aware.
func WindFavorable(windDir float64, windRange models.DirRange) bool {
	return windRange.Contains(windDir)
}

// WindPoints scores wind direction and speed together. Light favorable wind
// at any speed below 12 kn earns the full +2.
func WindPoints(windDir, windSpeed float64, windRange models.DirRange) int {
	if WindFavorable(windDir, windRange) {
		switch {
		case windSpeed <= 12:
			return 2
		case windSpeed <= 20:
			return 1
		case windSpeed <= 30:
			return 0
		case windSpeed <= 40:
			return -1
		default:
			return -3
		}
	}
	switch {
	case windSpeed < 3:
		return 1
	case windSpeed <= 6:
		return 0
	case windSpeed <= 10:
		return -1
	case windSpeed <= 20:
		return -4
	default:
		return -6
	}
}

// WaveHeightPoints scores wave height in meters against the feet thresholds.
func WaveHeightPoints(waveHeightM float64) int {
	ft := waveHeightM * MetersToFeet
	switch {
	case ft < 1:
		return 1
	case ft < 2:
		return 2
	case ft < 3:
		return 3
	case ft < 5:
		return 4
	default:
		return 5
	}
}

// WavePeriodPoints scores swell period in seconds.
func WavePeriodPoints(period float64) int {
	switch {
	case period < 6:
		return -4
	case period < 8:
		return -2
	case period < 10:
		return -1
	case period < 11.5:
		return 0
	case period < 14:
		return 1
	default:
		return 2
	}
}

// ScoreHour scores one hour of merged readings against a spot's directional
// preferences. Deterministic: identical inputs yield identical outputs.
func ScoreHour(in HourInputs, spot models.Spot) models.ScoredHour {
	out := models.ScoredHour{
		SpotID:        spot.SpotID,
		WaveHeight:    in.WaveHeight,
		WaveDirection: in.WaveDirection,
		WavePeriod:    in.WavePeriod,
		WindSpeed:     in.WindSpeed,
		WindDirection: in.WindDirection,
	}

	if !in.complete() {
		out.TotalPoints = 1
		out.SurfRating = RatingUnknown
		out.WindRelationship = "unknown"
		out.ConditionsSummary = "Data unavailable"
		out.WaveHeightFt = math.NaN()
		return out
	}

	out.SwellPoints = SwellDirectionPoints(in.WaveDirection, spot.SwellDirRange)
	out.WindPoints = WindPoints(in.WindDirection, in.WindSpeed, spot.WindDirRange)
	out.HeightPoints = WaveHeightPoints(in.WaveHeight)
	out.PeriodPoints = WavePeriodPoints(in.WavePeriod)

	total := out.SwellPoints + out.WindPoints + out.HeightPoints + out.PeriodPoints
	if total < 1 {
		total = 1
	}
	if total > 10 {
		total = 10
	}
	out.TotalPoints = total

	ft := in.WaveHeight * MetersToFeet
	out.WaveHeightFt = math.Round(ft*10) / 10

	favorable := WindFavorable(in.WindDirection, spot.WindDirRange)
	if favorable {
		out.WindRelationship = "favorable"
		out.SurfRating = favorableRating(ft, in.WavePeriod)
	} else {
		out.WindRelationship = "unfavorable"
		out.SurfRating = unfavorableRating(ft, in.WavePeriod)
	}
	out.ConditionsSummary = fmt.Sprintf("%s - %s %.0fkts", out.SurfRating, out.WindRelationship, in.WindSpeed)

	return out
}
