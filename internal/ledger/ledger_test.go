package ledger_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tensorlabs/gpurent/internal/ledger"
)

func testLedger(t *testing.T) *ledger.Ledger {
	t.Helper()
	l, err := ledger.Open(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	return l
}

func TestRecordAndLast(t *testing.T) {
	l := testLedger(t)
	ctx := context.Background()

	base := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)

	require.NoError(t, l.Record(ctx, ledger.Rental{
		OfferID:  101,
		Contract: 28600842,
		DPH:      0.31,
		RentedAt: base,
	}))
	require.NoError(t, l.Record(ctx, ledger.Rental{
		OfferID:  102,
		Contract: 28601048,
		DPH:      0.29,
		RentedAt: base.Add(time.Hour),
	}))

	last, found, err := l.Last(ctx)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, int64(28601048), last.Contract)
	assert.True(t, last.RentedAt.Equal(base.Add(time.Hour)))

	rentals, err := l.List(ctx)
	require.NoError(t, err)
	require.Len(t, rentals, 2)
	// Oldest first.
	assert.Equal(t, int64(101), rentals[0].OfferID)
	assert.Equal(t, int64(102), rentals[1].OfferID)
}

func TestLastOnEmptyLedger(t *testing.T) {
	l := testLedger(t)

	_, found, err := l.Last(context.Background())
	require.NoError(t, err)
	assert.False(t, found)

	rentals, err := l.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, rentals)
}

func TestRecordFillsTimestamp(t *testing.T) {
	l := testLedger(t)
	ctx := context.Background()

	require.NoError(t, l.Record(ctx, ledger.Rental{OfferID: 7}))

	last, found, err := l.Last(ctx)
	require.NoError(t, err)
	require.True(t, found)
	assert.False(t, last.RentedAt.IsZero())
}

func TestOpenCreatesParentDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "ledger.db")

	l, err := ledger.Open(path)
	require.NoError(t, err)
	require.NoError(t, l.Record(context.Background(), ledger.Rental{OfferID: 1}))
}
