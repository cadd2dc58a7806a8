package ports

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned by Get when no record exists under (pk, sk).
	ErrNotFound = errors.New("store: record not found")

	// ErrConditionFailed is returned by PutIfNewer when the stored record is
	// at least as recent as the candidate.
	ErrConditionFailed = errors.New("store: conditional write failed")
)

// Record is one item in the central store: a composite (pk, sk) key, an
// opaque JSON value and an optional expiry.
type Record struct {
	PK    string
	SK    string
	Value []byte
	TTL   time.Duration // zero means no expiry
}

// QueryOptions narrows a Query to an sk range under a fixed pk. Zero values
// leave the corresponding bound open.
type QueryOptions struct {
	After      string // exclusive lower bound on sk
	Before     string // exclusive upper bound on sk
	Descending bool
	Limit      int
}

// KeyValueStore is the central store contract shared by the probe driver,
// the aggregator and the query layer. Implementations must preserve
// lexicographic sk ordering so zero-padded millisecond keys read back
// chronologically.
type KeyValueStore interface {
	// Put writes the record, replacing any existing value at (pk, sk).
	Put(ctx context.Context, rec Record) error

	// PutIfNewer writes the record only when no stored record exists or the
	// stored one carries an older lastCheckMs; otherwise ErrConditionFailed.
	// The aggregator's single read-modify-write runs through this.
	PutIfNewer(ctx context.Context, rec Record, lastCheckMs int64) error

	// Get fetches the record at (pk, sk) or ErrNotFound.
	Get(ctx context.Context, pk, sk string) (Record, error)

	// Query returns records under pk within the sk range, ordered by sk.
	Query(ctx context.Context, pk string, opts QueryOptions) ([]Record, error)

	// ScanPrefix enumerates records whose pk starts with the prefix. Off the
	// hot path: state enumeration and incident listing only.
	ScanPrefix(ctx context.Context, pkPrefix string) ([]Record, error)

	// Delete removes the record at (pk, sk); absent keys are not an error.
	Delete(ctx context.Context, pk, sk string) error

	// Ping verifies connectivity for health checks.
	Ping(ctx context.Context) error

	// Close releases the underlying connection or file handle.
	Close() error
}
