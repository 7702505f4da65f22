package main

import (
	"context"
	"database/sql"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	kongdotenv "github.com/titusjaka/kong-dotenv-go"
	_ "modernc.org/sqlite"

	"github.com/lbrouwer/surfcast/internal/api"
	"github.com/lbrouwer/surfcast/internal/catalog"
	"github.com/lbrouwer/surfcast/internal/flights"
	"github.com/lbrouwer/surfcast/internal/provider"
	"github.com/lbrouwer/surfcast/internal/refresh"
	"github.com/lbrouwer/surfcast/internal/store"
)

var cli struct {
	DB              string        `name:"db" default:"data/surf_cache.db" env:"SURFCAST_DB" help:"Path to the SQLite cache."`
	Port            string        `name:"port" default:"8080" env:"SURFCAST_PORT" help:"HTTP server port."`
	Threshold       time.Duration `name:"threshold" default:"6h" env:"SURFCAST_THRESHOLD" help:"Staleness threshold for scheduled refreshes."`
	PollInterval    time.Duration `name:"poll-interval" default:"30m" env:"SURFCAST_POLL_INTERVAL" help:"How often the scheduler re-checks the ledger."`
	FanOut          int           `name:"fan-out" default:"5" env:"SURFCAST_FAN_OUT" help:"Concurrent spot refresh limit."`
	ProviderTimeout time.Duration `name:"provider-timeout" default:"30s" env:"SURFCAST_PROVIDER_TIMEOUT" help:"Per-request provider timeout."`
	NoPoll          bool          `name:"no-poll" help:"Disable the background scheduler (server only, for local dev)."`
	Once            bool          `name:"once" help:"Refresh every spot once and exit."`
	Force           bool          `name:"force" help:"Ignore the freshness ledger on the first pass."`
}

func main() {
	kong.Parse(&cli,
		kong.Name("surfcast"),
		kong.Description("Surf forecast cache, scorer and trip window selector."),
		kong.Configuration(kongdotenv.ENVFileReader, ".env"),
	)

	db, err := sql.Open("sqlite", cli.DB)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer db.Close()

	db.Exec("PRAGMA journal_mode=WAL")
	db.Exec("PRAGMA busy_timeout=5000")

	st := store.New(db)
	if err := st.Migrate(); err != nil {
		log.Fatalf("migrate: %v", err)
	}
	log.Println("database migrated")

	for _, spot := range catalog.Spots {
		if err := st.UpsertSpot(spot); err != nil {
			log.Fatalf("upsert spot %s: %v", spot.SpotID, err)
		}
	}
	log.Println("spot catalog seeded")

	om := provider.NewClient(cli.ProviderTimeout)
	orc := refresh.New(st, om,
		refresh.WithThreshold(cli.Threshold),
		refresh.WithFanOut(cli.FanOut),
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if cli.Once {
		log.Println("running single refresh pass")
		for _, status := range orc.RefreshAll(ctx, cli.Force) {
			if errs := status.Errs(); len(errs) > 0 {
				log.Printf("refresh %s: %v", status.SpotID, errs)
			}
		}
		log.Println("done")
		return
	}

	if cli.NoPoll {
		log.Println("polling disabled (--no-poll)")
	} else {
		go func() {
			if cli.Force {
				log.Println("forced refresh pass")
				orc.RefreshAll(ctx, true)
			}
			refresh.NewScheduler(orc, cli.PollInterval).Run(ctx)
		}()
	}

	// Endpoint-triggered refreshes run against a far laxer threshold so
	// public traffic cannot hammer the providers.
	apiOrc := refresh.New(st, om,
		refresh.WithThreshold(api.EndpointThreshold),
		refresh.WithFanOut(cli.FanOut),
	)
	server := api.NewServer(st, apiOrc, flights.NopFetcher{}, cli.Port)
	if err := server.Run(ctx); err != nil {
		log.Fatalf("server: %v", err)
	}
}
