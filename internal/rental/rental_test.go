package rental_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tensorlabs/gpurent/internal/ledger"
	"github.com/tensorlabs/gpurent/internal/rental"
	"github.com/tensorlabs/gpurent/internal/vastai"
)

type fakeMarket struct {
	offers    []vastai.Offer
	searchErr error

	// accept decides the marketplace's verdict per offer id.
	accept    func(id int64) vastai.CreateResult
	createErr error

	attempts []int64
}

func (f *fakeMarket) SearchOffers(context.Context, vastai.SearchQuery) ([]vastai.Offer, error) {
	return f.offers, f.searchErr
}

func (f *fakeMarket) CreateInstance(_ context.Context, id int64, _ vastai.CreateOptions) (vastai.CreateResult, error) {
	f.attempts = append(f.attempts, id)
	if f.createErr != nil {
		return vastai.CreateResult{}, f.createErr
	}
	return f.accept(id), nil
}

type fakeRecorder struct {
	recs []ledger.Rental
	err  error
}

func (f *fakeRecorder) Record(_ context.Context, r ledger.Rental) error {
	f.recs = append(f.recs, r)
	return f.err
}

func price(v float64) *float64 { return &v }

func rejectAll(int64) vastai.CreateResult { return vastai.CreateResult{Output: "no"} }

func newEngine(m *fakeMarket) *rental.Engine {
	return &rental.Engine{
		Market: m,
		Query:  vastai.SearchQuery{GPUName: "RTX_4090", NumGPUs: 1, Geolocation: "US", Reliability: 0.9},
		Create: vastai.CreateOptions{Image: "pytorch/pytorch", DiskGB: 60, SSH: true},
		Delay:  time.Millisecond,
	}
}

func TestRunAttemptsCheapestFirst(t *testing.T) {
	m := &fakeMarket{
		offers: []vastai.Offer{
			{ID: 1, DPH: price(0.5)},
			{ID: 2, DPH: price(0.3)},
			{ID: 3}, // no price, must go last
			{ID: 4, DPH: price(0.4)},
		},
		accept: rejectAll,
	}

	res, err := newEngine(m).Run(context.Background())
	require.ErrorIs(t, err, rental.ErrExhausted)
	assert.Equal(t, 4, res.Attempts)

	if diff := cmp.Diff([]int64{2, 4, 1, 3}, m.attempts); diff != "" {
		t.Errorf("attempt order (-want +got):\n%s", diff)
	}
}

func TestRunStopsAtFirstSuccess(t *testing.T) {
	m := &fakeMarket{
		offers: []vastai.Offer{
			{ID: 1, DPH: price(0.5)},
			{ID: 2, DPH: price(0.3)},
		},
		accept: func(int64) vastai.CreateResult {
			return vastai.CreateResult{Accepted: true, NewContract: 28600842}
		},
	}

	res, err := newEngine(m).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Attempts)
	assert.Equal(t, int64(2), res.Offer.ID)
	assert.Equal(t, int64(28600842), res.Contract)
}

func TestRunExampleScenario(t *testing.T) {
	// Offer 2 is cheaper and fails; offer 1 succeeds on the second attempt.
	m := &fakeMarket{
		offers: []vastai.Offer{
			{ID: 1, DPH: price(0.5)},
			{ID: 2, DPH: price(0.3)},
		},
		accept: func(id int64) vastai.CreateResult {
			return vastai.CreateResult{Accepted: id == 1}
		},
	}

	res, err := newEngine(m).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []int64{2, 1}, m.attempts)
	assert.Equal(t, int64(1), res.Offer.ID)
	assert.Equal(t, 2, res.Attempts)
}

func TestRunSearchFailureYieldsNoOffers(t *testing.T) {
	m := &fakeMarket{searchErr: errors.New("malformed offer list")}

	_, err := newEngine(m).Run(context.Background())
	require.ErrorIs(t, err, rental.ErrNoOffers)
	assert.Empty(t, m.attempts)
}

func TestRunEmptySearch(t *testing.T) {
	m := &fakeMarket{accept: rejectAll}

	_, err := newEngine(m).Run(context.Background())
	require.ErrorIs(t, err, rental.ErrNoOffers)
}

func TestRunCreateErrorsAreNonFatal(t *testing.T) {
	m := &fakeMarket{
		offers: []vastai.Offer{
			{ID: 1, DPH: price(0.5)},
			{ID: 2, DPH: price(0.3)},
		},
		createErr: errors.New("marketplace CLI unavailable"),
	}

	_, err := newEngine(m).Run(context.Background())
	require.ErrorIs(t, err, rental.ErrExhausted)
	assert.Equal(t, []int64{2, 1}, m.attempts)
}

func TestRunRecordsSuccessInLedger(t *testing.T) {
	m := &fakeMarket{
		offers: []vastai.Offer{{ID: 9, DPH: price(0.42), Geolocation: "US", GPUName: "RTX 4090"}},
		accept: func(int64) vastai.CreateResult {
			return vastai.CreateResult{Accepted: true, NewContract: 31337}
		},
	}
	rec := &fakeRecorder{}

	e := newEngine(m)
	e.Ledger = rec

	_, err := e.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, rec.recs, 1)

	got := rec.recs[0]
	assert.Equal(t, int64(9), got.OfferID)
	assert.Equal(t, int64(31337), got.Contract)
	assert.Equal(t, 0.42, got.DPH)
	assert.Equal(t, "pytorch/pytorch", got.Image)
	assert.False(t, got.RentedAt.IsZero())
}

func TestRunLedgerFailureIsNonFatal(t *testing.T) {
	m := &fakeMarket{
		offers: []vastai.Offer{{ID: 9, DPH: price(0.42)}},
		accept: func(int64) vastai.CreateResult {
			return vastai.CreateResult{Accepted: true}
		},
	}

	e := newEngine(m)
	e.Ledger = &fakeRecorder{err: errors.New("disk full")}

	res, err := e.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(9), res.Offer.ID)
}

func TestRunHonorsCancellation(t *testing.T) {
	m := &fakeMarket{
		offers: []vastai.Offer{
			{ID: 1, DPH: price(0.1)},
			{ID: 2, DPH: price(0.2)},
			{ID: 3, DPH: price(0.3)},
		},
		accept: rejectAll,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 25*time.Millisecond)
	defer cancel()

	e := newEngine(m)
	e.Delay = time.Minute // cancellation must cut the courtesy pause short

	_, err := e.Run(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, []int64{1}, m.attempts)
}

func TestSortOffers(t *testing.T) {
	offers := []vastai.Offer{
		{ID: 1},
		{ID: 2, DPH: price(0.9)},
		{ID: 3, DPH: price(0.2)},
		{ID: 4, DPH: price(0.2)},
		{ID: 5},
	}

	rental.SortOffers(offers)

	var ids []int64
	for _, o := range offers {
		ids = append(ids, o.ID)
	}
	// Ties and unpriced offers keep their original relative order.
	if diff := cmp.Diff([]int64{3, 4, 2, 1, 5}, ids); diff != "" {
		t.Errorf("sorted order (-want +got):\n%s", diff)
	}
}
