// Package ledger keeps a local record of successful rentals. A rental is a
// billable side effect with no transaction around it; once the marketplace
// says yes, this file is the only local evidence the instance exists.
package ledger

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/chainguard-dev/clog"
	"go.etcd.io/bbolt"
)

var bucketRentals = []byte("rentals")

// Rental is one successful create-instance call.
type Rental struct {
	OfferID     int64     `json:"offer_id"`
	Contract    int64     `json:"contract,omitempty"`
	DPH         float64   `json:"dph,omitempty"`
	Geolocation string    `json:"geolocation,omitempty"`
	GPUName     string    `json:"gpu_name,omitempty"`
	Image       string    `json:"image,omitempty"`
	RentedAt    time.Time `json:"rented_at"`
}

// Ledger is a bbolt-backed rental record. The database is opened per
// operation so concurrent CLI runs never contend over the file lock.
type Ledger struct {
	path string
}

// DefaultPath returns the per-user ledger location.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving home directory: %w", err)
	}
	return filepath.Join(home, ".gpurent", "ledger.db"), nil
}

// Open validates that the ledger at path is usable and returns a handle.
// An empty path selects DefaultPath.
func Open(path string) (*Ledger, error) {
	if path == "" {
		var err error
		path, err = DefaultPath()
		if err != nil {
			return nil, err
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating ledger directory: %w", err)
	}

	db, err := bbolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, fmt.Errorf("opening rental ledger: %w", err)
	}
	defer db.Close()

	return &Ledger{path: path}, nil
}

func (l *Ledger) client() (*bbolt.DB, error) {
	db, err := bbolt.Open(l.path, 0o600, nil)
	if err != nil {
		return nil, fmt.Errorf("opening rental ledger: %w", err)
	}
	return db, nil
}

// Record appends a rental, keyed by its timestamp.
func (l *Ledger) Record(ctx context.Context, r Rental) error {
	if r.RentedAt.IsZero() {
		r.RentedAt = time.Now().UTC()
	}

	db, err := l.client()
	if err != nil {
		return err
	}
	defer db.Close()

	raw, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshaling rental: %w", err)
	}

	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, uint64(r.RentedAt.UnixNano()))

	if err := db.Update(func(tx *bbolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(bucketRentals)
		if err != nil {
			return fmt.Errorf("creating rentals bucket: %w", err)
		}
		return b.Put(key, raw)
	}); err != nil {
		return fmt.Errorf("recording rental: %w", err)
	}

	clog.FromContext(ctx).Debug("recorded rental",
		"offer_id", r.OfferID, "contract", r.Contract, "path", l.path)
	return nil
}

// Last returns the most recent rental, if any.
func (l *Ledger) Last(ctx context.Context) (Rental, bool, error) {
	db, err := l.client()
	if err != nil {
		return Rental{}, false, err
	}
	defer db.Close()

	var (
		r     Rental
		found bool
	)
	if err := db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketRentals)
		if b == nil {
			return nil
		}
		_, raw := b.Cursor().Last()
		if raw == nil {
			return nil
		}
		if err := json.Unmarshal(raw, &r); err != nil {
			return fmt.Errorf("unmarshaling rental: %w", err)
		}
		found = true
		return nil
	}); err != nil {
		return Rental{}, false, fmt.Errorf("reading rental ledger: %w", err)
	}

	return r, found, nil
}

// List returns every recorded rental, oldest first.
func (l *Ledger) List(ctx context.Context) ([]Rental, error) {
	db, err := l.client()
	if err != nil {
		return nil, err
	}
	defer db.Close()

	var rentals []Rental
	if err := db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketRentals)
		if b == nil {
			return nil
		}
		return b.ForEach(func(_, raw []byte) error {
			var r Rental
			if err := json.Unmarshal(raw, &r); err != nil {
				return fmt.Errorf("unmarshaling rental: %w", err)
			}
			rentals = append(rentals, r)
			return nil
		})
	}); err != nil {
		return nil, fmt.Errorf("reading rental ledger: %w", err)
	}

	return rentals, nil
}
