// Package memory backs the central store with process-local state. It is the
// default for single-binary deployments and the harness every aggregator and
// handler test runs against.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/puzpuzpuz/xsync/v4"
	"github.com/tidwall/gjson"

	"github.com/lookout-monitor/lookout/internal/core/ports"
)

type entry struct {
	value     []byte
	expiresAt time.Time
}

func (e entry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

// partition holds every sort key of one partition key. Reads take the lock
// briefly to snapshot, sorting happens outside it.
type partition struct {
	mu      sync.RWMutex
	entries map[string]entry
}

type Store struct {
	partitions *xsync.Map[string, *partition]
	now        func() time.Time
}

var _ ports.KeyValueStore = (*Store)(nil)

func New() *Store {
	return &Store{
		partitions: xsync.NewMap[string, *partition](),
		now:        time.Now,
	}
}

// NewWithClock pins the expiry clock, used by TTL tests.
func NewWithClock(now func() time.Time) *Store {
	s := New()
	s.now = now
	return s
}

func (s *Store) part(pk string) *partition {
	p, _ := s.partitions.LoadOrCompute(pk, func() (*partition, bool) {
		return &partition{entries: make(map[string]entry)}, false
	})
	return p
}

func (s *Store) Put(_ context.Context, rec ports.Record) error {
	p := s.part(rec.PK)
	p.mu.Lock()
	defer p.mu.Unlock()
	p.entries[rec.SK] = s.newEntry(rec)
	return nil
}

func (s *Store) PutIfNewer(_ context.Context, rec ports.Record, lastCheckMs int64) error {
	p := s.part(rec.PK)
	p.mu.Lock()
	defer p.mu.Unlock()
	if existing, ok := p.entries[rec.SK]; ok && !existing.expired(s.now()) {
		if gjson.GetBytes(existing.value, "last_check_ms").Int() >= lastCheckMs {
			return ports.ErrConditionFailed
		}
	}
	p.entries[rec.SK] = s.newEntry(rec)
	return nil
}

func (s *Store) newEntry(rec ports.Record) entry {
	e := entry{value: append([]byte(nil), rec.Value...)}
	if rec.TTL > 0 {
		e.expiresAt = s.now().Add(rec.TTL)
	}
	return e
}

func (s *Store) Get(_ context.Context, pk, sk string) (ports.Record, error) {
	p, ok := s.partitions.Load(pk)
	if !ok {
		return ports.Record{}, ports.ErrNotFound
	}
	p.mu.RLock()
	e, ok := p.entries[sk]
	p.mu.RUnlock()
	if !ok || e.expired(s.now()) {
		return ports.Record{}, ports.ErrNotFound
	}
	return ports.Record{PK: pk, SK: sk, Value: append([]byte(nil), e.value...)}, nil
}

func (s *Store) Query(_ context.Context, pk string, opts ports.QueryOptions) ([]ports.Record, error) {
	p, ok := s.partitions.Load(pk)
	if !ok {
		return nil, nil
	}
	now := s.now()

	p.mu.RLock()
	records := make([]ports.Record, 0, len(p.entries))
	for sk, e := range p.entries {
		if e.expired(now) {
			continue
		}
		if opts.After != "" && sk <= opts.After {
			continue
		}
		if opts.Before != "" && sk >= opts.Before {
			continue
		}
		records = append(records, ports.Record{PK: pk, SK: sk, Value: append([]byte(nil), e.value...)})
	}
	p.mu.RUnlock()

	sort.Slice(records, func(i, j int) bool {
		if opts.Descending {
			return records[i].SK > records[j].SK
		}
		return records[i].SK < records[j].SK
	})
	if opts.Limit > 0 && len(records) > opts.Limit {
		records = records[:opts.Limit]
	}
	return records, nil
}

func (s *Store) ScanPrefix(_ context.Context, pkPrefix string) ([]ports.Record, error) {
	now := s.now()
	var records []ports.Record
	s.partitions.Range(func(pk string, p *partition) bool {
		if !strings.HasPrefix(pk, pkPrefix) {
			return true
		}
		p.mu.RLock()
		for sk, e := range p.entries {
			if e.expired(now) {
				continue
			}
			records = append(records, ports.Record{PK: pk, SK: sk, Value: append([]byte(nil), e.value...)})
		}
		p.mu.RUnlock()
		return true
	})
	sort.Slice(records, func(i, j int) bool {
		if records[i].PK != records[j].PK {
			return records[i].PK < records[j].PK
		}
		return records[i].SK < records[j].SK
	})
	return records, nil
}

func (s *Store) Delete(_ context.Context, pk, sk string) error {
	p, ok := s.partitions.Load(pk)
	if !ok {
		return nil
	}
	p.mu.Lock()
	delete(p.entries, sk)
	p.mu.Unlock()
	return nil
}

func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) Close() error { return nil }
