package scoring

import (
	"math"
	"testing"

	"github.com/lbrouwer/surfcast/internal/models"
)

func TestSwellDirectionPoints(t *testing.T) {
	r := models.DirRange{Min: 260, Max: 340}
	tests := []struct {
		name string
		dir  float64
		want int
	}{
		{"direct inside", 290, 0},
		{"boundary min inclusive", 260, 0},
		{"boundary max inclusive", 340, 0},
		{"semi-direct below", 235, -1},
		{"semi-direct above wrapped", 5, -1}, // buffer past 360 wraps to cover 5
		{"out of window", 100, -10},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SwellDirectionPoints(tt.dir, r); got != tt.want {
				t.Errorf("SwellDirectionPoints(%v) = %d, want %d", tt.dir, got, tt.want)
			}
		})
	}
}

func TestWindPoints(t *testing.T) {
	r := models.DirRange{Min: 45, Max: 135}
	tests := []struct {
		name  string
		dir   float64
		speed float64
		want  int
	}{
		{"favorable light", 90, 3, 2},
		{"favorable moderate", 90, 10, 2},
		{"favorable 12 boundary", 90, 12, 2},
		{"favorable fresh", 90, 18, 1},
		{"favorable strong", 90, 25, 0},
		{"favorable gale-ish", 90, 35, -1},
		{"favorable nuking", 90, 45, -3},
		{"unfavorable calm", 270, 2, 1},
		{"unfavorable light", 270, 5, 0},
		{"unfavorable 6 boundary", 270, 6, 0},
		{"unfavorable moderate", 270, 8, -1},
		{"unfavorable fresh", 270, 18, -4},
		{"unfavorable strong", 270, 25, -6},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := WindPoints(tt.dir, tt.speed, r); got != tt.want {
				t.Errorf("WindPoints(%v, %v) = %d, want %d", tt.dir, tt.speed, got, tt.want)
			}
		})
	}
}

func TestWindFavorableWrappingRange(t *testing.T) {
	// Anchor Point style wind window crossing north.
	r := models.DirRange{Min: 340, Max: 60}
	if !WindFavorable(10, r) {
		t.Error("10 degrees should be favorable in (340,60)")
	}
	if WindFavorable(200, r) {
		t.Error("200 degrees should be unfavorable in (340,60)")
	}
}

func TestWaveHeightPoints(t *testing.T) {
	tests := []struct {
		name    string
		heightM float64
		want    int
	}{
		{"tiny", 0.2, 1},
		{"exactly 1ft", 1.0 / MetersToFeet, 2},
		{"2.5ft", 2.5 / MetersToFeet, 3},
		{"4ft", 4.0 / MetersToFeet, 4},
		{"exactly 5ft", 5.0 / MetersToFeet, 5},
		{"overhead", 3.0, 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := WaveHeightPoints(tt.heightM); got != tt.want {
				t.Errorf("WaveHeightPoints(%v) = %d, want %d", tt.heightM, got, tt.want)
			}
		})
	}
}

func TestWavePeriodPoints(t *testing.T) {
	tests := []struct {
		period float64
		want   int
	}{
		{4, -4},
		{6, -2},
		{8, -1},
		{10, 0},
		{11.5, 1},
		{12, 1},
		{14, 2},
		{20, 2},
	}
	for _, tt := range tests {
		if got := WavePeriodPoints(tt.period); got != tt.want {
			t.Errorf("WavePeriodPoints(%v) = %d, want %d", tt.period, got, tt.want)
		}
	}
}

func TestScoreHourFavorableCleanConditions(t *testing.T) {
	// Clean chest-high swell at 12s with light offshore wind.
	spot := models.Spot{
		SpotID:        "test",
		SwellDirRange: models.DirRange{Min: 260, Max: 340},
		WindDirRange:  models.DirRange{Min: 45, Max: 135},
	}
	in := HourInputs{
		WaveHeight:    3.0 / MetersToFeet, // 3 ft
		WaveDirection: 290,
		WavePeriod:    12,
		WindSpeed:     10,
		WindDirection: 60,
	}
	got := ScoreHour(in, spot)

	if got.SwellPoints != 0 {
		t.Errorf("SwellPoints = %d, want 0", got.SwellPoints)
	}
	if got.WindPoints != 2 {
		t.Errorf("WindPoints = %d, want 2", got.WindPoints)
	}
	if got.HeightPoints != 4 {
		t.Errorf("HeightPoints = %d, want 4", got.HeightPoints)
	}
	if got.PeriodPoints != 1 {
		t.Errorf("PeriodPoints = %d, want 1", got.PeriodPoints)
	}
	if got.TotalPoints != 7 {
		t.Errorf("TotalPoints = %d, want 7", got.TotalPoints)
	}
	if got.SurfRating != RatingGood {
		t.Errorf("SurfRating = %q, want Good", got.SurfRating)
	}
	if got.WindRelationship != "favorable" {
		t.Errorf("WindRelationship = %q, want favorable", got.WindRelationship)
	}
	if got.WaveHeightFt != 3.0 {
		t.Errorf("WaveHeightFt = %v, want 3.0", got.WaveHeightFt)
	}
}

func TestScoreHourOnshoreSlop(t *testing.T) {
	// Weak short-period windswell with stiff onshore flow clamps to 1.
	spot := models.Spot{
		SpotID:        "test",
		SwellDirRange: models.DirRange{Min: 200, Max: 340},
		WindDirRange:  models.DirRange{Min: 45, Max: 135},
	}
	in := HourInputs{
		WaveHeight:    0.7,
		WaveDirection: 180,
		WavePeriod:    7,
		WindSpeed:     18,
		WindDirection: 270,
	}
	got := ScoreHour(in, spot)

	if got.SwellPoints != -1 {
		t.Errorf("SwellPoints = %d, want -1 (semi-direct)", got.SwellPoints)
	}
	if got.WindPoints != -4 {
		t.Errorf("WindPoints = %d, want -4", got.WindPoints)
	}
	if got.PeriodPoints != -2 {
		t.Errorf("PeriodPoints = %d, want -2", got.PeriodPoints)
	}
	if got.TotalPoints != 1 {
		t.Errorf("TotalPoints = %d, want 1 (clamped)", got.TotalPoints)
	}
	if got.SurfRating != RatingSlop {
		t.Errorf("SurfRating = %q, want Slop", got.SurfRating)
	}
	if got.WindRelationship != "unfavorable" {
		t.Errorf("WindRelationship = %q, want unfavorable", got.WindRelationship)
	}
}

func TestScoreHourClampUpper(t *testing.T) {
	spot := models.Spot{
		SwellDirRange: models.DirRange{Min: 260, Max: 340},
		WindDirRange:  models.DirRange{Min: 45, Max: 135},
	}
	in := HourInputs{
		WaveHeight:    3.0, // ~10 ft
		WaveDirection: 300,
		WavePeriod:    16,
		WindSpeed:     8,
		WindDirection: 90,
	}
	got := ScoreHour(in, spot)
	if got.TotalPoints < 1 || got.TotalPoints > 10 {
		t.Fatalf("TotalPoints = %d, outside [1,10]", got.TotalPoints)
	}
	if got.SurfRating != RatingFiring {
		t.Errorf("SurfRating = %q, want Firing", got.SurfRating)
	}
}

func TestScoreHourMissingInput(t *testing.T) {
	spot := models.Spot{
		SwellDirRange: models.DirRange{Min: 260, Max: 340},
		WindDirRange:  models.DirRange{Min: 45, Max: 135},
	}
	in := HourInputs{
		WaveHeight:    math.NaN(),
		WaveDirection: 300,
		WavePeriod:    12,
		WindSpeed:     10,
		WindDirection: 90,
	}
	got := ScoreHour(in, spot)
	if got.SurfRating != RatingUnknown {
		t.Errorf("SurfRating = %q, want Unknown", got.SurfRating)
	}
	if got.WindRelationship != "unknown" {
		t.Errorf("WindRelationship = %q, want unknown", got.WindRelationship)
	}
	if got.ConditionsSummary != "Data unavailable" {
		t.Errorf("ConditionsSummary = %q", got.ConditionsSummary)
	}
	if got.SwellPoints != 0 || got.WindPoints != 0 || got.HeightPoints != 0 || got.PeriodPoints != 0 {
		t.Error("component points should default to 0 on missing input")
	}
	if got.TotalPoints < 1 || got.TotalPoints > 10 {
		t.Errorf("TotalPoints = %d outside [1,10]", got.TotalPoints)
	}
}

func TestScoreHourDeterministic(t *testing.T) {
	spot := models.Spot{
		SwellDirRange: models.DirRange{Min: 260, Max: 340},
		WindDirRange:  models.DirRange{Min: 45, Max: 135},
	}
	in := HourInputs{WaveHeight: 1.2, WaveDirection: 300, WavePeriod: 11, WindSpeed: 14, WindDirection: 200}
	a := ScoreHour(in, spot)
	b := ScoreHour(in, spot)
	if a != b {
		t.Errorf("ScoreHour not deterministic: %+v vs %+v", a, b)
	}
}

func TestUnfavorableRatingLexicon(t *testing.T) {
	tests := []struct {
		name     string
		heightFt float64
		period   float64
		want     string
	}{
		{"slop", 2, 6, RatingSlop},
		{"mush", 4, 10, RatingMush},
		{"messy", 6, 14, RatingMessy},
		{"meh fallback", 2, 10, RatingMeh},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := unfavorableRating(tt.heightFt, tt.period); got != tt.want {
				t.Errorf("unfavorableRating(%v, %v) = %q, want %q", tt.heightFt, tt.period, got, tt.want)
			}
		})
	}
}

func TestFavorableRatingLexicon(t *testing.T) {
	tests := []struct {
		name     string
		heightFt float64
		period   float64
		want     string
	}{
		{"flat", 0.5, 10, RatingNoSurf},
		{"small", 2, 12, RatingSmall},
		{"epic", 8, 20, RatingEpic},
		{"firing", 8, 16, RatingFiring},
		{"pumping", 6, 14, RatingPumping},
		{"good", 4, 12, RatingGood},
		{"fun", 4, 10, RatingFun},
		{"fair", 4, 8, RatingFair},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := favorableRating(tt.heightFt, tt.period); got != tt.want {
				t.Errorf("favorableRating(%v, %v) = %q, want %q", tt.heightFt, tt.period, got, tt.want)
			}
		})
	}
}
