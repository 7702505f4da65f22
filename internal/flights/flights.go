// Package flights defines the flight-search adapter contract. The core only
// forwards what an adapter returns and never interprets fares or routings.
package flights

import (
	"context"
	"time"
)

// Query describes one round trip to price.
type Query struct {
	Departure        string // IATA code
	Destination      string // IATA code
	OutboundDate     time.Time
	ReturnDate       time.Time
	OutboundTimePref string // e.g. "morning", "evening", empty for any
	ReturnTimePref   string
	StopoversAllowed bool
}

// Flight is one priced option as reported by the adapter.
type Flight struct {
	Departure   string
	Destination string
	Airline     string
	Price       float64
	Currency    string
	OutboundAt  time.Time
	ReturnAt    time.Time
	Stopovers   int
}

// Fetcher searches flights for a query. Implementations wrap third-party
// APIs and own their own credentials and rate limits.
type Fetcher interface {
	FetchFlights(ctx context.Context, q Query) ([]Flight, error)
}

// NopFetcher returns no flights. Used when no adapter is configured so trip
// analysis still returns surf windows without fares.
type NopFetcher struct{}

func (NopFetcher) FetchFlights(ctx context.Context, q Query) ([]Flight, error) {
	return nil, nil
}
