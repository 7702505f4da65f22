package scoring

import (
	"math"
	"sort"
	"time"

	"github.com/lbrouwer/surfcast/internal/models"
)

// Default daylight window used when no daily-weather row covers a date.
const (
	defaultSunriseSec = 6 * 3600
	defaultSunsetSec  = 18 * 3600
)

// halfDaySplitHour divides morning from afternoon, local time.
const halfDaySplitHour = 13

// daylightWindow is sunrise and sunset as seconds-of-day, local time.
type daylightWindow struct {
	sunrise int
	sunset  int
}

func daylightByDate(daily []models.DailyWeather, loc *time.Location) map[string]daylightWindow {
	windows := make(map[string]daylightWindow, len(daily))
	for _, d := range daily {
		sunrise := time.Unix(d.Sunrise, 0).In(loc)
		sunset := time.Unix(d.Sunset, 0).In(loc)
		windows[sunrise.Format("2006-01-02")] = daylightWindow{
			sunrise: secondOfDay(sunrise),
			sunset:  secondOfDay(sunset),
		}
	}
	return windows
}

func secondOfDay(t time.Time) int {
	return t.Hour()*3600 + t.Minute()*60 + t.Second()
}

// inDaylight reports whether the local timestamp falls inside the inclusive
// [sunrise, sunset] window for its date, defaulting to 06:00-18:00 when the
// date has no daily-weather row.
func inDaylight(local time.Time, windows map[string]daylightWindow) bool {
	w, ok := windows[local.Format("2006-01-02")]
	if !ok {
		w = daylightWindow{sunrise: defaultSunriseSec, sunset: defaultSunsetSec}
	}
	sec := secondOfDay(local)
	return sec >= w.sunrise && sec <= w.sunset
}

func localDate(local time.Time) time.Time {
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, time.UTC)
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}

// DaylightHours filters scored rows to those inside the daylight mask,
// preserving order. Serving code uses it so views show the same hours the
// aggregates counted.
func DaylightHours(scored []models.ScoredHour, daily []models.DailyWeather, loc *time.Location) []models.ScoredHour {
	windows := daylightByDate(daily, loc)
	out := make([]models.ScoredHour, 0, len(scored))
	for _, row := range scored {
		if inDaylight(row.Timestamp.In(loc), windows) {
			out = append(out, row)
		}
	}
	return out
}

// HalfDayScores averages total points over daylight hours per (date, half).
// Empty groups produce no row.
func HalfDayScores(scored []models.ScoredHour, daily []models.DailyWeather, loc *time.Location) []models.HalfDayScore {
	windows := daylightByDate(daily, loc)

	type key struct {
		date time.Time
		half string
	}
	sums := make(map[key]float64)
	counts := make(map[key]int)

	for _, row := range scored {
		local := row.Timestamp.In(loc)
		if !inDaylight(local, windows) {
			continue
		}
		half := models.HalfMorning
		if local.Hour() >= halfDaySplitHour {
			half = models.HalfAfternoon
		}
		k := key{date: localDate(local), half: half}
		sums[k] += float64(row.TotalPoints)
		counts[k]++
	}

	out := make([]models.HalfDayScore, 0, len(sums))
	for k, sum := range sums {
		out = append(out, models.HalfDayScore{
			SpotID:         spotIDOf(scored),
			Date:           k.date,
			Half:           k.half,
			AvgTotalPoints: round2(sum / float64(counts[k])),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].Half == models.HalfMorning && out[j].Half == models.HalfAfternoon
	})
	return out
}

// DailyScores averages total points over daylight hours per date and carries
// the modal rating, wind relationship and summary. Ties on the mode resolve
// to the lexicographically smallest value.
func DailyScores(scored []models.ScoredHour, daily []models.DailyWeather, loc *time.Location) []models.DailyScore {
	windows := daylightByDate(daily, loc)

	type agg struct {
		sum       float64
		count     int
		ratings   map[string]int
		relations map[string]int
		summaries map[string]int
	}
	byDate := make(map[time.Time]*agg)

	for _, row := range scored {
		local := row.Timestamp.In(loc)
		if !inDaylight(local, windows) {
			continue
		}
		d := localDate(local)
		a, ok := byDate[d]
		if !ok {
			a = &agg{
				ratings:   make(map[string]int),
				relations: make(map[string]int),
				summaries: make(map[string]int),
			}
			byDate[d] = a
		}
		a.sum += float64(row.TotalPoints)
		a.count++
		a.ratings[row.SurfRating]++
		a.relations[row.WindRelationship]++
		a.summaries[row.ConditionsSummary]++
	}

	out := make([]models.DailyScore, 0, len(byDate))
	for d, a := range byDate {
		out = append(out, models.DailyScore{
			SpotID:            spotIDOf(scored),
			Date:              d,
			AvgTotalPoints:    round2(a.sum / float64(a.count)),
			SurfRating:        mode(a.ratings),
			WindRelationship:  mode(a.relations),
			ConditionsSummary: mode(a.summaries),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}

func mode(counts map[string]int) string {
	best := ""
	bestCount := -1
	for v, c := range counts {
		if c > bestCount || (c == bestCount && v < best) {
			best = v
			bestCount = c
		}
	}
	return best
}

func spotIDOf(scored []models.ScoredHour) string {
	if len(scored) == 0 {
		return ""
	}
	return scored[0].SpotID
}
