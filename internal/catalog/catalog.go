// Package catalog holds the static surf spot catalog. Spots are declared
// here, seeded into the store at startup, and immutable at runtime.
package catalog

import (
	"errors"
	"sync"
	"time"

	"github.com/lbrouwer/surfcast/internal/models"
)

var ErrUnknownSpot = errors.New("unknown spot")

// Spots is the fixed catalog, one canonical name per spot.
var Spots = []models.Spot{
	{
		SpotID:         "la_graviere",
		Name:           "La Graviere",
		Latitude:       43.676,
		Longitude:      -1.445,
		Timezone:       "Europe/Paris",
		SwellDirRange:  models.DirRange{Min: 200, Max: 340},
		WindDirRange:   models.DirRange{Min: 45, Max: 135},
		PrimaryAirport: "BOD",
	},
	{
		SpotID:         "supertubos",
		Name:           "Supertubos",
		Latitude:       39.604,
		Longitude:      -9.366,
		Timezone:       "Europe/Lisbon",
		SwellDirRange:  models.DirRange{Min: 280, Max: 320},
		WindDirRange:   models.DirRange{Min: 10, Max: 130},
		PrimaryAirport: "LIS",
	},
	{
		SpotID:         "uluwatu",
		Name:           "Uluwatu",
		Latitude:       -8.814518,
		Longitude:      115.086847,
		Timezone:       "Asia/Jakarta",
		SwellDirRange:  models.DirRange{Min: 180, Max: 270},
		WindDirRange:   models.DirRange{Min: 45, Max: 135},
		PrimaryAirport: "DPS",
	},
	{
		SpotID:         "anchor_point",
		Name:           "Anchor Point",
		Latitude:       30.544176,
		Longitude:      -9.727859,
		Timezone:       "Africa/Casablanca",
		SwellDirRange:  models.DirRange{Min: 260, Max: 350},
		WindDirRange:   models.DirRange{Min: 340, Max: 60},
		PrimaryAirport: "AGA",
	},
	{
		SpotID:         "mundaka",
		Name:           "Mundaka",
		Latitude:       43.408,
		Longitude:      -2.691,
		Timezone:       "Europe/Madrid",
		SwellDirRange:  models.DirRange{Min: 280, Max: 340},
		WindDirRange:   models.DirRange{Min: 90, Max: 180},
		PrimaryAirport: "BIO",
	},
}

var byID = func() map[string]models.Spot {
	m := make(map[string]models.Spot, len(Spots))
	for _, s := range Spots {
		m[s.SpotID] = s
	}
	return m
}()

// Lookup returns the spot for the given id.
func Lookup(spotID string) (models.Spot, error) {
	s, ok := byID[spotID]
	if !ok {
		return models.Spot{}, ErrUnknownSpot
	}
	return s, nil
}

var (
	locMu    sync.Mutex
	locCache = map[string]*time.Location{}
)

// Location loads and caches the spot's IANA timezone, falling back to UTC
// when the zone database lacks it.
func Location(spot models.Spot) *time.Location {
	locMu.Lock()
	defer locMu.Unlock()
	if loc, ok := locCache[spot.Timezone]; ok {
		return loc
	}
	loc, err := time.LoadLocation(spot.Timezone)
	if err != nil {
		loc = time.UTC
	}
	locCache[spot.Timezone] = loc
	return loc
}
