// Package rental implements the offer selection-and-retry procedure: rank
// matching offers by price and work down the list until the marketplace
// accepts one.
package rental

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/chainguard-dev/clog"

	"github.com/tensorlabs/gpurent/internal/ledger"
	"github.com/tensorlabs/gpurent/internal/vastai"
)

// DefaultDelay is the courtesy pause between failed rental attempts so a
// burst of rejections doesn't hammer the marketplace API.
const DefaultDelay = time.Second

var (
	// ErrNoOffers means the search produced nothing rentable, either because
	// nothing matched or because the search output was unusable.
	ErrNoOffers = errors.New("no offers matched the search")

	// ErrExhausted means every offer was attempted once and rejected.
	ErrExhausted = errors.New("every offer was rejected")
)

// Marketplace is the slice of the CLI client the engine needs.
type Marketplace interface {
	SearchOffers(ctx context.Context, q vastai.SearchQuery) ([]vastai.Offer, error)
	CreateInstance(ctx context.Context, offerID int64, opts vastai.CreateOptions) (vastai.CreateResult, error)
}

// Recorder persists a successful rental. Failures to record are logged and
// swallowed; the instance already exists and is billing either way.
type Recorder interface {
	Record(ctx context.Context, r ledger.Rental) error
}

// Engine drives one rental run.
type Engine struct {
	Market Marketplace
	Query  vastai.SearchQuery
	Create vastai.CreateOptions

	// Delay between failed attempts. Zero means DefaultDelay.
	Delay time.Duration

	// Ledger is optional; nil disables local rental records.
	Ledger Recorder
}

// Result describes a successful rental.
type Result struct {
	Offer vastai.Offer
	// Contract is the new instance id, when the CLI output included one.
	Contract int64
	// Attempts counts every create invocation made, including the
	// successful one.
	Attempts int
}

// Run searches, sorts ascending by price, and attempts each offer at most
// once. The first acceptance wins. Search failures degrade to zero offers
// rather than aborting; the marketplace output is known to be unreliable.
func (e *Engine) Run(ctx context.Context) (Result, error) {
	log := clog.FromContext(ctx)

	log.Info("searching for offers", "filter", e.Query.Filter())
	offers, err := e.Market.SearchOffers(ctx, e.Query)
	if err != nil {
		log.Warn("offer search failed, treating as zero offers", "error", err)
		offers = nil
	}
	log.Info("offer search complete", "offers", len(offers))
	if len(offers) == 0 {
		return Result{}, ErrNoOffers
	}

	SortOffers(offers)

	var res Result
	for _, offer := range offers {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		res.Attempts++
		log.Info("attempting to rent offer",
			"offer_id", offer.ID,
			"price", offer.DisplayPrice(),
			"geolocation", offer.Geolocation)

		created, err := e.Market.CreateInstance(ctx, offer.ID, e.Create)
		switch {
		case err != nil:
			log.Warn("rental attempt errored", "offer_id", offer.ID, "error", err)
		case created.Accepted:
			log.Info("rented instance",
				"offer_id", offer.ID,
				"contract", created.NewContract)
			res.Offer = offer
			res.Contract = created.NewContract
			e.record(ctx, offer, created)
			return res, nil
		default:
			log.Warn("offer rejected by marketplace",
				"offer_id", offer.ID,
				"output", strings.TrimSpace(created.Output))
		}

		select {
		case <-ctx.Done():
			return res, ctx.Err()
		case <-time.After(e.delay()):
		}
	}

	return res, ErrExhausted
}

func (e *Engine) delay() time.Duration {
	if e.Delay > 0 {
		return e.Delay
	}
	return DefaultDelay
}

func (e *Engine) record(ctx context.Context, offer vastai.Offer, created vastai.CreateResult) {
	if e.Ledger == nil {
		return
	}
	r := ledger.Rental{
		OfferID:     offer.ID,
		Contract:    created.NewContract,
		Geolocation: offer.Geolocation,
		GPUName:     offer.GPUName,
		Image:       e.Create.Image,
		RentedAt:    time.Now().UTC(),
	}
	if offer.DPH != nil {
		r.DPH = *offer.DPH
	}
	if err := e.Ledger.Record(ctx, r); err != nil {
		clog.FromContext(ctx).Warn("failed to record rental in ledger", "error", err)
	}
}

// SortOffers orders offers ascending by hourly price. Offers without a price
// sort last. The sort is stable so the CLI's own ordering breaks ties.
func SortOffers(offers []vastai.Offer) {
	sort.SliceStable(offers, func(i, j int) bool {
		return offers[i].Price() < offers[j].Price()
	})
}
