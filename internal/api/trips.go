package api

import (
	"encoding/json"
	"log"
	"net/http"
	"sort"
	"time"

	"github.com/lbrouwer/surfcast/internal/flights"
	"github.com/lbrouwer/surfcast/internal/models"
	"github.com/lbrouwer/surfcast/internal/windows"
)

// Request defaults when the caller leaves the corresponding field unset.
const (
	defaultTripMinDays  = 2
	defaultTripMaxDays  = 5
	defaultTripMinScore = 5.0
	defaultOutboundPref = "morning"
	defaultReturnPref   = "evening"
)

type tripRequest struct {
	DepartureAirports []string `json:"departure_airports"`
	Spots             []string `json:"spots"`
	TripStyle         string   `json:"trip_style"` // weekend, long_weekend or best
	MinScore          *float64 `json:"min_score"`
	MinDays           int      `json:"min_days"`
	MaxDays           int      `json:"max_days"`
	StopoversAllowed  bool     `json:"stopovers_allowed"`
	OutboundTimePref  string   `json:"outbound_time_pref"`
	ReturnTimePref    string   `json:"return_time_pref"`
	DateFrom          string   `json:"date_from"` // inclusive, 2006-01-02
	DateTo            string   `json:"date_to"`   // inclusive
}

type tripWindow struct {
	Start       string  `json:"start"`
	End         string  `json:"end"`
	Days        int     `json:"days"`
	AvgScore    float64 `json:"avg_score"`
	TotalScore  float64 `json:"total_score"`
	Consistency float64 `json:"consistency"`
}

type trip struct {
	SpotID   string           `json:"spot_id"`
	SpotName string           `json:"spot_name"`
	Window   tripWindow       `json:"window"`
	Flights  []flights.Flight `json:"flights"`
}

type tripResponse struct {
	Trips      []trip   `json:"trips"`
	Refreshing []string `json:"refreshing"`
}

func (s *Server) handleTripsAnalyze(w http.ResponseWriter, r *http.Request) {
	var req tripRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if req.TripStyle == "" {
		req.TripStyle = "best"
	}
	switch req.TripStyle {
	case "best", "weekend", "long_weekend":
	default:
		http.Error(w, "trip_style must be weekend, long_weekend or best", http.StatusBadRequest)
		return
	}
	if req.MinDays == 0 {
		req.MinDays = defaultTripMinDays
	}
	if req.MaxDays == 0 {
		req.MaxDays = defaultTripMaxDays
	}
	if req.MinDays < 1 || req.MaxDays < req.MinDays {
		http.Error(w, "max_days must be at least min_days, both positive", http.StatusBadRequest)
		return
	}
	minScore := defaultTripMinScore
	if req.MinScore != nil {
		minScore = *req.MinScore
	}
	if req.OutboundTimePref == "" {
		req.OutboundTimePref = defaultOutboundPref
	}
	if req.ReturnTimePref == "" {
		req.ReturnTimePref = defaultReturnPref
	}

	from, to, err := parseDateRange(req.DateFrom, req.DateTo)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	spots, err := resolveSpots(req.Spots)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	trips := []trip{}
	for _, sp := range spots {
		wins, err := s.spotWindows(sp, req.TripStyle, windows.Params{
			MinDays:        req.MinDays,
			MaxDays:        req.MaxDays,
			MinScore:       minScore,
			MaxOverlapDays: 2,
		}, from, to)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		for _, win := range wins {
			trips = append(trips, trip{
				SpotID:   sp.SpotID,
				SpotName: sp.Name,
				Window: tripWindow{
					Start:       win.Start.Format("2006-01-02"),
					End:         win.End.Format("2006-01-02"),
					Days:        win.Days,
					AvgScore:    win.AvgScore,
					TotalScore:  win.TotalScore,
					Consistency: win.Consistency,
				},
				Flights: s.fetchFlights(r, req, sp, win),
			})
		}
	}

	sort.SliceStable(trips, func(i, j int) bool {
		a, b := trips[i].Window, trips[j].Window
		if a.AvgScore != b.AvgScore {
			return a.AvgScore > b.AvgScore
		}
		if a.Consistency != b.Consistency {
			return a.Consistency < b.Consistency
		}
		return a.Start < b.Start
	})

	go s.backgroundRefresh(spots)

	writeJSON(w, tripResponse{Trips: trips, Refreshing: spotIDs(spots)})
}

// spotWindows reduces a spot's half-day rows to daily scores and runs the
// selector variant for the requested style.
func (s *Server) spotWindows(sp models.Spot, style string, p windows.Params, from, to time.Time) ([]windows.Window, error) {
	halfDay, err := s.store.GetHalfDayScores(sp.SpotID)
	if err != nil {
		return nil, err
	}
	days := windows.DailyFromHalfDay(halfDay)
	days = clipDateRange(days, from, to)

	switch style {
	case "weekend":
		return windows.SelectWeekend(days)
	case "long_weekend":
		wins, err := windows.SelectWeekend(days)
		if err != nil {
			return nil, err
		}
		for i, w := range wins {
			wins[i] = windows.ExtendWeekend(w, days)
		}
		return wins, nil
	default:
		return windows.Select(days, p)
	}
}

func (s *Server) fetchFlights(r *http.Request, req tripRequest, sp models.Spot, win windows.Window) []flights.Flight {
	if len(req.DepartureAirports) == 0 || sp.PrimaryAirport == "" {
		return nil
	}
	var out []flights.Flight
	for _, dep := range req.DepartureAirports {
		found, err := s.flights.FetchFlights(r.Context(), flights.Query{
			Departure:        dep,
			Destination:      sp.PrimaryAirport,
			OutboundDate:     win.Start,
			ReturnDate:       win.End,
			OutboundTimePref: req.OutboundTimePref,
			ReturnTimePref:   req.ReturnTimePref,
			StopoversAllowed: req.StopoversAllowed,
		})
		if err != nil {
			log.Printf("api: flights %s-%s: %v", dep, sp.PrimaryAirport, err)
			continue
		}
		out = append(out, found...)
	}
	return out
}

func parseDateRange(from, to string) (time.Time, time.Time, error) {
	var f, t time.Time
	var err error
	if from != "" {
		if f, err = time.Parse("2006-01-02", from); err != nil {
			return f, t, err
		}
	}
	if to != "" {
		if t, err = time.Parse("2006-01-02", to); err != nil {
			return f, t, err
		}
	}
	return f, t, nil
}

func clipDateRange(days []windows.DayScore, from, to time.Time) []windows.DayScore {
	if from.IsZero() && to.IsZero() {
		return days
	}
	out := make([]windows.DayScore, 0, len(days))
	for _, d := range days {
		if !from.IsZero() && d.Date.Before(from) {
			continue
		}
		if !to.IsZero() && d.Date.After(to) {
			continue
		}
		out = append(out, d)
	}
	return out
}
