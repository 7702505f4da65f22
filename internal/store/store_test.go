package store

import (
	"database/sql"
	"errors"
	"math"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"github.com/lbrouwer/surfcast/internal/models"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	store := New(db)
	if err := store.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return store
}

func testSpot() models.Spot {
	return models.Spot{
		SpotID:         "la_graviere",
		Name:           "La Graviere",
		Latitude:       43.676,
		Longitude:      -1.445,
		Timezone:       "Europe/Paris",
		SwellDirRange:  models.DirRange{Min: 200, Max: 340},
		WindDirRange:   models.DirRange{Min: 45, Max: 135},
		PrimaryAirport: "BOD",
	}
}

func TestUpsertAndGetSpot(t *testing.T) {
	store := setupTestStore(t)

	if err := store.UpsertSpot(testSpot()); err != nil {
		t.Fatalf("UpsertSpot: %v", err)
	}

	got, err := store.GetSpot("la_graviere")
	if err != nil {
		t.Fatalf("GetSpot: %v", err)
	}
	if got.Name != "La Graviere" {
		t.Errorf("Name = %q, want La Graviere", got.Name)
	}
	if got.SwellDirRange != (models.DirRange{Min: 200, Max: 340}) {
		t.Errorf("SwellDirRange = %+v", got.SwellDirRange)
	}

	// Updates keep the row unique.
	updated := testSpot()
	updated.Name = "La Graviere (Hossegor)"
	if err := store.UpsertSpot(updated); err != nil {
		t.Fatalf("UpsertSpot update: %v", err)
	}
	got, err = store.GetSpot("la_graviere")
	if err != nil {
		t.Fatalf("GetSpot after update: %v", err)
	}
	if got.Name != "La Graviere (Hossegor)" {
		t.Errorf("Name after update = %q", got.Name)
	}
}

func TestGetSpotNotFound(t *testing.T) {
	store := setupTestStore(t)
	_, err := store.GetSpot("nowhere")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestReplaceHourlyWeatherRoundTrip(t *testing.T) {
	store := setupTestStore(t)
	base := time.Date(2026, 8, 26, 0, 0, 0, 0, time.UTC)

	rows := []models.HourlyWeather{
		{Timestamp: base, Temperature: 18.5, WindSpeed: 10, WindDirection: 60, WindGusts: 14},
		{Timestamp: base.Add(time.Hour), Temperature: math.NaN(), WindSpeed: 12, WindDirection: 70, WindGusts: 16},
	}
	if err := store.ReplaceHourlyWeather("la_graviere", rows); err != nil {
		t.Fatalf("ReplaceHourlyWeather: %v", err)
	}

	got, err := store.GetHourlyWeather("la_graviere")
	if err != nil {
		t.Fatalf("GetHourlyWeather: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if !got[0].Timestamp.Equal(base) || !got[1].Timestamp.Equal(base.Add(time.Hour)) {
		t.Errorf("rows not sorted by timestamp: %v, %v", got[0].Timestamp, got[1].Timestamp)
	}
	if got[0].WindSpeed != 10 {
		t.Errorf("WindSpeed = %v, want 10", got[0].WindSpeed)
	}
	// NULL temperature comes back as the NaN sentinel.
	if !math.IsNaN(got[1].Temperature) {
		t.Errorf("Temperature = %v, want NaN", got[1].Temperature)
	}
}

func TestReplaceIsAtomicReplaceAll(t *testing.T) {
	store := setupTestStore(t)
	base := time.Date(2026, 8, 26, 0, 0, 0, 0, time.UTC)

	first := []models.HourlyWeather{
		{Timestamp: base, Temperature: 18, WindSpeed: 10, WindDirection: 60, WindGusts: 14},
		{Timestamp: base.Add(time.Hour), Temperature: 19, WindSpeed: 11, WindDirection: 65, WindGusts: 15},
	}
	if err := store.ReplaceHourlyWeather("la_graviere", first); err != nil {
		t.Fatalf("first replace: %v", err)
	}

	second := []models.HourlyWeather{
		{Timestamp: base.Add(2 * time.Hour), Temperature: 20, WindSpeed: 12, WindDirection: 70, WindGusts: 16},
	}
	if err := store.ReplaceHourlyWeather("la_graviere", second); err != nil {
		t.Fatalf("second replace: %v", err)
	}

	got, err := store.GetHourlyWeather("la_graviere")
	if err != nil {
		t.Fatalf("GetHourlyWeather: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("len = %d, want 1 (replace-all semantics)", len(got))
	}
	if !got[0].Timestamp.Equal(base.Add(2 * time.Hour)) {
		t.Errorf("Timestamp = %v", got[0].Timestamp)
	}
}

func TestLedgerStampsOnlyWrittenLayer(t *testing.T) {
	store := setupTestStore(t)
	base := time.Date(2026, 8, 26, 0, 0, 0, 0, time.UTC)

	if err := store.ReplaceHourlyWeather("la_graviere", []models.HourlyWeather{
		{Timestamp: base, Temperature: 18, WindSpeed: 10, WindDirection: 60, WindGusts: 14},
	}); err != nil {
		t.Fatalf("ReplaceHourlyWeather: %v", err)
	}

	f, err := store.GetFreshness("la_graviere")
	if err != nil {
		t.Fatalf("GetFreshness: %v", err)
	}
	if f.Weather.IsZero() {
		t.Error("weather ledger not stamped")
	}
	for _, layer := range []models.Layer{models.LayerMarine, models.LayerDailyWeather, models.LayerScored, models.LayerHalfDay, models.LayerDailyScores} {
		if !f.Get(layer).IsZero() {
			t.Errorf("layer %s stamped without a write", layer)
		}
	}
}

func TestNeedsUpdate(t *testing.T) {
	store := setupTestStore(t)
	base := time.Date(2026, 8, 26, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return base }

	// Absent ledger entry is stale.
	stale, err := store.NeedsUpdate("la_graviere", models.LayerWeather, 6*time.Hour)
	if err != nil {
		t.Fatalf("NeedsUpdate: %v", err)
	}
	if !stale {
		t.Error("absent entry should be stale")
	}

	if err := store.ReplaceHourlyWeather("la_graviere", []models.HourlyWeather{
		{Timestamp: base, Temperature: 18, WindSpeed: 10, WindDirection: 60, WindGusts: 14},
	}); err != nil {
		t.Fatalf("ReplaceHourlyWeather: %v", err)
	}

	stale, err = store.NeedsUpdate("la_graviere", models.LayerWeather, 6*time.Hour)
	if err != nil {
		t.Fatalf("NeedsUpdate: %v", err)
	}
	if stale {
		t.Error("fresh entry reported stale")
	}

	// 7 hours later with a 6 hour threshold the layer is stale again; a
	// layer that was never written stays stale.
	store.now = func() time.Time { return base.Add(7 * time.Hour) }
	stale, err = store.NeedsUpdate("la_graviere", models.LayerWeather, 6*time.Hour)
	if err != nil {
		t.Fatalf("NeedsUpdate: %v", err)
	}
	if !stale {
		t.Error("7h old entry should be stale at 6h threshold")
	}
	stale, err = store.NeedsUpdate("la_graviere", models.LayerMarine, 6*time.Hour)
	if err != nil {
		t.Fatalf("NeedsUpdate marine: %v", err)
	}
	if !stale {
		t.Error("never-written marine layer should be stale")
	}
}

func TestRepeatedUpsertAdvancesLedgerOnly(t *testing.T) {
	store := setupTestStore(t)
	base := time.Date(2026, 8, 26, 0, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return base }

	rows := []models.HourlyWeather{
		{Timestamp: base, Temperature: 18, WindSpeed: 10, WindDirection: 60, WindGusts: 14},
	}
	if err := store.ReplaceHourlyWeather("la_graviere", rows); err != nil {
		t.Fatalf("first replace: %v", err)
	}
	f1, _ := store.GetFreshness("la_graviere")

	store.now = func() time.Time { return base.Add(time.Hour) }
	if err := store.ReplaceHourlyWeather("la_graviere", rows); err != nil {
		t.Fatalf("second replace: %v", err)
	}
	f2, _ := store.GetFreshness("la_graviere")

	got1, _ := store.GetHourlyWeather("la_graviere")
	if len(got1) != 1 || got1[0].Temperature != 18 {
		t.Errorf("stored rows changed on identical re-upsert: %+v", got1)
	}
	if !f2.Weather.After(f1.Weather) {
		t.Errorf("ledger did not advance: %v -> %v", f1.Weather, f2.Weather)
	}
}

func TestScoredForecastRejectsInvalidTotals(t *testing.T) {
	store := setupTestStore(t)
	base := time.Date(2026, 8, 26, 0, 0, 0, 0, time.UTC)

	err := store.ReplaceScoredForecast("la_graviere", []models.ScoredHour{
		{Timestamp: base, TotalPoints: 0, SurfRating: "Slop", WindRelationship: "unfavorable"},
	})
	if !errors.Is(err, ErrCorrupt) {
		t.Fatalf("err = %v, want ErrCorrupt", err)
	}

	// A rejected write must not stamp the ledger.
	f, _ := store.GetFreshness("la_graviere")
	if !f.Scored.IsZero() {
		t.Error("ledger stamped despite rejected write")
	}
}

func TestHalfDayScoresOrdering(t *testing.T) {
	store := setupTestStore(t)
	d := time.Date(2026, 8, 26, 0, 0, 0, 0, time.UTC)

	rows := []models.HalfDayScore{
		{Date: d, Half: models.HalfAfternoon, AvgTotalPoints: 6},
		{Date: d, Half: models.HalfMorning, AvgTotalPoints: 5},
		{Date: d.AddDate(0, 0, 1), Half: models.HalfMorning, AvgTotalPoints: 7},
	}
	if err := store.ReplaceHalfDayScores("la_graviere", rows); err != nil {
		t.Fatalf("ReplaceHalfDayScores: %v", err)
	}

	got, err := store.GetHalfDayScores("la_graviere")
	if err != nil {
		t.Fatalf("GetHalfDayScores: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("len = %d, want 3", len(got))
	}
	if got[0].Half != models.HalfMorning || got[1].Half != models.HalfAfternoon {
		t.Errorf("halves not ordered morning first: %s, %s", got[0].Half, got[1].Half)
	}
	if !got[2].Date.After(got[1].Date) {
		t.Errorf("dates not ascending")
	}
}

func TestHalfDayScoresRejectBadHalf(t *testing.T) {
	store := setupTestStore(t)
	err := store.ReplaceHalfDayScores("la_graviere", []models.HalfDayScore{
		{Date: time.Date(2026, 8, 26, 0, 0, 0, 0, time.UTC), Half: "evening", AvgTotalPoints: 5},
	})
	if !errors.Is(err, ErrCorrupt) {
		t.Errorf("err = %v, want ErrCorrupt", err)
	}
}

func TestConflictingWriterGetsBusy(t *testing.T) {
	store := setupTestStore(t)
	base := time.Date(2026, 8, 26, 0, 0, 0, 0, time.UTC)

	lock := store.layerLock("la_graviere", models.LayerWeather)
	lock.Lock()
	defer lock.Unlock()

	err := store.ReplaceHourlyWeather("la_graviere", []models.HourlyWeather{
		{Timestamp: base, Temperature: 18, WindSpeed: 10, WindDirection: 60, WindGusts: 14},
	})
	if !errors.Is(err, ErrBusy) {
		t.Errorf("err = %v, want ErrBusy", err)
	}

	// A different (spot, layer) pair is unaffected.
	if err := store.ReplaceHourlyMarine("la_graviere", []models.HourlyMarine{
		{Timestamp: base, WaveHeight: 1, WaveDirection: 290, WavePeriod: 12},
	}); err != nil {
		t.Errorf("marine write blocked by weather lock: %v", err)
	}
}

func TestScoredForecastRoundTrip(t *testing.T) {
	store := setupTestStore(t)
	base := time.Date(2026, 8, 26, 9, 0, 0, 0, time.UTC)

	rows := []models.ScoredHour{{
		Timestamp:         base,
		WaveHeight:        0.914,
		WaveDirection:     290,
		WavePeriod:        12,
		WindSpeed:         10,
		WindDirection:     60,
		SwellPoints:       0,
		WindPoints:        2,
		HeightPoints:      4,
		PeriodPoints:      1,
		TotalPoints:       7,
		SurfRating:        "Good",
		WindRelationship:  "favorable",
		WaveHeightFt:      3.0,
		ConditionsSummary: "Good - favorable 10kts",
	}}
	if err := store.ReplaceScoredForecast("la_graviere", rows); err != nil {
		t.Fatalf("ReplaceScoredForecast: %v", err)
	}

	got, err := store.GetScoredForecast("la_graviere")
	if err != nil {
		t.Fatalf("GetScoredForecast: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("len = %d, want 1", len(got))
	}
	r := got[0]
	if r.TotalPoints != 7 || r.SurfRating != "Good" || r.WindRelationship != "favorable" {
		t.Errorf("row = %+v", r)
	}
	if r.WaveHeightFt != 3.0 {
		t.Errorf("WaveHeightFt = %v, want 3.0", r.WaveHeightFt)
	}
}
