// Package windows picks trip windows out of a run of daily surf scores.
package windows

import (
	"errors"
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/lbrouwer/surfcast/internal/models"
)

// ErrInvalidParams is returned when a window request cannot be satisfied as
// stated, for example a maximum length below the minimum.
var ErrInvalidParams = errors.New("windows: invalid parameters")

// maxResults caps how many windows a selection returns.
const maxResults = 10

// DayScore is one day's average score, the unit windows are built from.
type DayScore struct {
	Date  time.Time // local date at midnight UTC
	Score float64
}

// Params controls window enumeration and filtering.
type Params struct {
	MinDays        int
	MaxDays        int
	MinScore       float64 // minimum average score for a window to qualify
	MaxOverlapDays int     // allowed day overlap between accepted windows
}

// Window is a contiguous run of days that qualified as a trip candidate.
type Window struct {
	Start       time.Time
	End         time.Time
	Days        int
	AvgScore    float64
	TotalScore  float64
	Consistency float64 // sample standard deviation of the daily scores
}

func (w Window) overlapDays(other Window) int {
	start := w.Start
	if other.Start.After(start) {
		start = other.Start
	}
	end := w.End
	if other.End.Before(end) {
		end = other.End
	}
	if end.Before(start) {
		return 0
	}
	return int(end.Sub(start).Hours()/24) + 1
}

func makeWindow(days []DayScore) Window {
	scores := make([]float64, len(days))
	for i, d := range days {
		scores[i] = d.Score
	}
	w := Window{
		Start:      days[0].Date,
		End:        days[len(days)-1].Date,
		Days:       len(days),
		AvgScore:   stat.Mean(scores, nil),
		TotalScore: sum(scores),
	}
	if len(scores) > 1 {
		w.Consistency = stat.StdDev(scores, nil)
	}
	return w
}

func sum(xs []float64) float64 {
	var total float64
	for _, x := range xs {
		total += x
	}
	return total
}

// DailyFromHalfDay reduces half-day rows to one score per date by averaging
// the morning and afternoon values. A date with only one half keeps that
// half's value.
func DailyFromHalfDay(halves []models.HalfDayScore) []DayScore {
	sums := make(map[time.Time]float64)
	counts := make(map[time.Time]int)
	for _, h := range halves {
		sums[h.Date] += h.AvgTotalPoints
		counts[h.Date]++
	}
	out := make([]DayScore, 0, len(sums))
	for date, s := range sums {
		out = append(out, DayScore{Date: date, Score: s / float64(counts[date])})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}

// sortDays orders the input by date without mutating the caller's slice.
func sortDays(days []DayScore) []DayScore {
	out := make([]DayScore, len(days))
	copy(out, days)
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}

// contiguous reports whether every day in the run follows the previous by
// exactly one day.
func contiguous(days []DayScore) bool {
	for i := 1; i < len(days); i++ {
		if days[i].Date.Sub(days[i-1].Date) != 24*time.Hour {
			return false
		}
	}
	return true
}

// Select enumerates every contiguous run of MinDays to MaxDays days, keeps
// those whose average meets MinScore, ranks them by average descending then
// consistency ascending then earlier start, and greedily accepts windows
// that overlap already accepted ones by at most MaxOverlapDays. At most ten
// windows are returned.
func Select(days []DayScore, p Params) ([]Window, error) {
	if p.MinDays < 1 || p.MaxDays < p.MinDays {
		return nil, ErrInvalidParams
	}
	sorted := sortDays(days)

	var candidates []Window
	for start := 0; start < len(sorted); start++ {
		for length := p.MinDays; length <= p.MaxDays && start+length <= len(sorted); length++ {
			run := sorted[start : start+length]
			if !contiguous(run) {
				break
			}
			w := makeWindow(run)
			if w.AvgScore >= p.MinScore {
				candidates = append(candidates, w)
			}
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.AvgScore != b.AvgScore {
			return a.AvgScore > b.AvgScore
		}
		if a.Consistency != b.Consistency {
			return a.Consistency < b.Consistency
		}
		return a.Start.Before(b.Start)
	})

	var accepted []Window
	for _, c := range candidates {
		if len(accepted) == maxResults {
			break
		}
		ok := true
		for _, a := range accepted {
			if c.overlapDays(a) > p.MaxOverlapDays {
				ok = false
				break
			}
		}
		if ok {
			accepted = append(accepted, c)
		}
	}
	return accepted, nil
}

// SelectWeekend restricts the daily-score domain to calendar Fridays through
// Sundays and then selects with weekend defaults of two to four days at a
// 3.0 floor. Contiguity then limits windows to runs inside a single weekend.
func SelectWeekend(days []DayScore) ([]Window, error) {
	var weekend []DayScore
	for _, d := range days {
		switch d.Date.Weekday() {
		case time.Friday, time.Saturday, time.Sunday:
			weekend = append(weekend, d)
		}
	}
	return Select(weekend, Params{MinDays: 2, MaxDays: 4, MinScore: 3.0, MaxOverlapDays: 2})
}

// ExtendWeekend tries to grow a weekend window by one then two extra days.
// An extension is kept only when the added days average at least 6.0 and the
// extended window's average beats the base window's. The best accepted
// extension wins; if none qualifies the base window comes back unchanged.
func ExtendWeekend(base Window, days []DayScore) Window {
	sorted := sortDays(days)
	byDate := make(map[time.Time]float64, len(sorted))
	for _, d := range sorted {
		byDate[d.Date] = d.Score
	}

	best := base
	for _, extra := range []int{1, 2} {
		var added []float64
		run := make([]DayScore, 0, base.Days+extra)
		for d := base.Start; !d.After(base.End); d = d.Add(24 * time.Hour) {
			run = append(run, DayScore{Date: d, Score: byDate[d]})
		}
		complete := true
		for i := 1; i <= extra; i++ {
			d := base.End.Add(time.Duration(i) * 24 * time.Hour)
			score, ok := byDate[d]
			if !ok {
				complete = false
				break
			}
			added = append(added, score)
			run = append(run, DayScore{Date: d, Score: score})
		}
		if !complete {
			break
		}
		if stat.Mean(added, nil) < 6.0 {
			continue
		}
		ext := makeWindow(run)
		if ext.AvgScore > base.AvgScore && ext.AvgScore > best.AvgScore {
			best = ext
		}
	}
	return best
}
