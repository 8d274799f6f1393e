// rent searches the marketplace for offers matching the filter, then works
// through them cheapest-first until one is successfully rented. Exits 0 on
// the first acceptance, 1 when no offer could be rented.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/chainguard-dev/clog"

	"github.com/tensorlabs/gpurent/internal/ledger"
	"github.com/tensorlabs/gpurent/internal/logging"
	"github.com/tensorlabs/gpurent/internal/rental"
	"github.com/tensorlabs/gpurent/internal/vastai"
)

func main() {
	a := parseArgs()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ctx, cleanup := logging.Setup(ctx, a.Debug, a.LogFile)

	if a.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.Timeout)
		defer cancel()
	}

	code := run(ctx, a)
	cleanup()
	os.Exit(code)
}

func run(ctx context.Context, a args) int {
	log := clog.FromContext(ctx)

	engine := &rental.Engine{
		Market: vastai.NewClient(a.VastBin),
		Query: vastai.SearchQuery{
			GPUName:     a.GPUName,
			NumGPUs:     a.NumGPUs,
			Geolocation: a.Geolocation,
			Reliability: a.Reliability,
		},
		Create: vastai.CreateOptions{
			Image:  a.Image,
			DiskGB: a.DiskGB,
			SSH:    true,
		},
		Delay: a.Delay,
	}

	led, err := ledger.Open(a.LedgerPath)
	if err != nil {
		log.Warn("rental ledger unavailable, successes will not be recorded locally", "error", err)
	} else {
		engine.Ledger = led
	}

	res, err := engine.Run(ctx)
	switch {
	case err == nil:
		log.Info("instance rented",
			"offer_id", res.Offer.ID,
			"contract", res.Contract,
			"price", res.Offer.DisplayPrice(),
			"attempts", res.Attempts)
		return 0
	case errors.Is(err, rental.ErrNoOffers):
		log.Error("no matching offers found")
		return 1
	case errors.Is(err, rental.ErrExhausted):
		log.Error("could not rent any instance", "attempts", res.Attempts)
		return 1
	default:
		log.Error("rental run aborted", "error", err)
		return 1
	}
}
