package memory

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lookout-monitor/lookout/internal/adapter/store/storetest"
	"github.com/lookout-monitor/lookout/internal/core/ports"
)

func TestConformance(t *testing.T) {
	storetest.Run(t, func(t *testing.T) ports.KeyValueStore {
		return New()
	})
}

func TestTTLExpiry(t *testing.T) {
	now := time.Now()
	var mu sync.Mutex
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}
	s := NewWithClock(clock)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, ports.Record{
		PK: "CHECK#api", SK: "0000000001000#syd", Value: []byte(`{}`), TTL: 12 * time.Hour,
	}))
	require.NoError(t, s.Put(ctx, ports.Record{
		PK: "STATE#api", SK: "CURRENT", Value: []byte(`{}`),
	}))

	_, err := s.Get(ctx, "CHECK#api", "0000000001000#syd")
	require.NoError(t, err)

	mu.Lock()
	now = now.Add(13 * time.Hour)
	mu.Unlock()

	_, err = s.Get(ctx, "CHECK#api", "0000000001000#syd")
	assert.ErrorIs(t, err, ports.ErrNotFound)

	records, err := s.Query(ctx, "CHECK#api", ports.QueryOptions{})
	require.NoError(t, err)
	assert.Empty(t, records, "expired rows must not surface in range reads")

	// Records without a TTL never expire.
	_, err = s.Get(ctx, "STATE#api", "CURRENT")
	assert.NoError(t, err)
}

func TestConcurrentWritersSamePartition(t *testing.T) {
	s := New()
	ctx := context.Background()

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				rec := ports.Record{
					PK:    "CHECK#api",
					SK:    fmt.Sprintf("%013d#r%d", i*1000, w),
					Value: []byte(`{}`),
				}
				assert.NoError(t, s.Put(ctx, rec))
			}
		}(w)
	}
	wg.Wait()

	records, err := s.Query(ctx, "CHECK#api", ports.QueryOptions{})
	require.NoError(t, err)
	assert.Len(t, records, 8*50)
}
