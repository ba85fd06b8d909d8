// Package reconcile keeps a durable journal of seat releases that could not
// be applied and need an operator's attention. Records are stored in a
// BoltDB file so they survive a restart even when Postgres is the failing
// dependency.
package reconcile

import (
	"encoding/json"
	"errors"
	"sort"
	"time"

	bolt "github.com/boltdb/bolt"
	"github.com/google/uuid"
)

const bucketName = "reconciliations"

// Reasons a record was written
const (
	ReasonCompensationFailed   = "compensation_release_failed"
	ReasonCancelReleaseFailed  = "cancel_release_failed"
	ReasonPaymentFailedRelease = "payment_failed_release_failed"
)

var (
	// ErrNotFound is returned when a record does not exist
	ErrNotFound = errors.New("reconciliation record not found")
	// ErrAlreadyResolved is returned when resolving a closed record
	ErrAlreadyResolved = errors.New("reconciliation record already resolved")
)

// Record is one release the ledger still owes an event
type Record struct {
	ID         string     `json:"id"`
	BookingID  string     `json:"bookingId"`
	EventID    string     `json:"eventId"`
	Quantity   int        `json:"quantity"`
	Reason     string     `json:"reason"`
	Detail     string     `json:"detail,omitempty"`
	CreatedAt  time.Time  `json:"createdAt"`
	ResolvedAt *time.Time `json:"resolvedAt,omitempty"`
	ResolvedBy string     `json:"resolvedBy,omitempty"`
}

// Open reports whether the record still needs action
func (r *Record) Open() bool {
	return r.ResolvedAt == nil
}

// Journal is a BoltDB backed list of reconciliation records
type Journal struct {
	db *bolt.DB
}

// Open opens (or creates) the journal file at path
func Open(path string) (*Journal, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, err
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketName))
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Journal{db: db}, nil
}

// Close releases the file lock
func (j *Journal) Close() error {
	return j.db.Close()
}

// Record appends rec, assigning an ID and timestamp when missing
func (j *Journal) Record(rec Record) (*Record, error) {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	rec.ResolvedAt = nil
	rec.ResolvedBy = ""

	data, err := json.Marshal(rec)
	if err != nil {
		return nil, err
	}

	err = j.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(bucketName)).Put([]byte(rec.ID), data)
	})
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// Get retrieves a single record
func (j *Journal) Get(id string) (*Record, error) {
	var rec Record
	err := j.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket([]byte(bucketName)).Get([]byte(id))
		if v == nil {
			return ErrNotFound
		}
		return json.Unmarshal(v, &rec)
	})
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// List returns records oldest first; resolved ones only when includeResolved
func (j *Journal) List(includeResolved bool) ([]Record, error) {
	records := []Record{}
	err := j.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(bucketName)).ForEach(func(_, v []byte) error {
			var rec Record
			if err := json.Unmarshal(v, &rec); err != nil {
				return err
			}
			if includeResolved || rec.Open() {
				records = append(records, rec)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(records, func(a, b int) bool {
		return records[a].CreatedAt.Before(records[b].CreatedAt)
	})
	return records, nil
}

// MarkResolved closes an open record
func (j *Journal) MarkResolved(id, resolvedBy string) (*Record, error) {
	var rec Record
	err := j.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketName))
		v := b.Get([]byte(id))
		if v == nil {
			return ErrNotFound
		}
		if err := json.Unmarshal(v, &rec); err != nil {
			return err
		}
		if !rec.Open() {
			return ErrAlreadyResolved
		}

		now := time.Now().UTC()
		rec.ResolvedAt = &now
		rec.ResolvedBy = resolvedBy

		data, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		return b.Put([]byte(id), data)
	})
	if err != nil {
		return nil, err
	}
	return &rec, nil
}
