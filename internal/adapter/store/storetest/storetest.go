// Package storetest holds the behavioural suite every store driver must pass.
// Driver packages call Run from their own tests with a factory producing a
// fresh, empty store.
package storetest

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lookout-monitor/lookout/internal/core/ports"
)

type Factory func(t *testing.T) ports.KeyValueStore

func Run(t *testing.T, factory Factory) {
	t.Run("PutGetRoundTrip", func(t *testing.T) { testPutGet(t, factory(t)) })
	t.Run("GetMissing", func(t *testing.T) { testGetMissing(t, factory(t)) })
	t.Run("PutOverwrites", func(t *testing.T) { testPutOverwrites(t, factory(t)) })
	t.Run("QueryOrdering", func(t *testing.T) { testQueryOrdering(t, factory(t)) })
	t.Run("QueryBounds", func(t *testing.T) { testQueryBounds(t, factory(t)) })
	t.Run("QueryDescendingLimit", func(t *testing.T) { testQueryDescendingLimit(t, factory(t)) })
	t.Run("PutIfNewer", func(t *testing.T) { testPutIfNewer(t, factory(t)) })
	t.Run("ScanPrefix", func(t *testing.T) { testScanPrefix(t, factory(t)) })
	t.Run("Delete", func(t *testing.T) { testDelete(t, factory(t)) })
	t.Run("Ping", func(t *testing.T) { testPing(t, factory(t)) })
}

func testPutGet(t *testing.T, s ports.KeyValueStore) {
	ctx := context.Background()
	rec := ports.Record{PK: "CHECK#api", SK: "0000000001000#syd", Value: []byte(`{"status":"up"}`)}
	require.NoError(t, s.Put(ctx, rec))

	got, err := s.Get(ctx, rec.PK, rec.SK)
	require.NoError(t, err)
	assert.Equal(t, rec.PK, got.PK)
	assert.Equal(t, rec.SK, got.SK)
	assert.JSONEq(t, string(rec.Value), string(got.Value))
}

func testGetMissing(t *testing.T, s ports.KeyValueStore) {
	_, err := s.Get(context.Background(), "CHECK#nope", "0000000000001#syd")
	assert.ErrorIs(t, err, ports.ErrNotFound)
}

func testPutOverwrites(t *testing.T, s ports.KeyValueStore) {
	ctx := context.Background()
	require.NoError(t, s.Put(ctx, ports.Record{PK: "STATE#api", SK: "CURRENT", Value: []byte(`{"v":1}`)}))
	require.NoError(t, s.Put(ctx, ports.Record{PK: "STATE#api", SK: "CURRENT", Value: []byte(`{"v":2}`)}))

	got, err := s.Get(ctx, "STATE#api", "CURRENT")
	require.NoError(t, err)
	assert.JSONEq(t, `{"v":2}`, string(got.Value))
}

func seedSeries(t *testing.T, s ports.KeyValueStore, pk string, n int) []string {
	t.Helper()
	ctx := context.Background()
	sks := make([]string, 0, n)
	for i := 1; i <= n; i++ {
		sk := fmt.Sprintf("%013d#syd", i*1000)
		sks = append(sks, sk)
		require.NoError(t, s.Put(ctx, ports.Record{PK: pk, SK: sk, Value: []byte(fmt.Sprintf(`{"i":%d}`, i))}))
	}
	return sks
}

func testQueryOrdering(t *testing.T, s ports.KeyValueStore) {
	sks := seedSeries(t, s, "CHECK#api", 5)

	records, err := s.Query(context.Background(), "CHECK#api", ports.QueryOptions{})
	require.NoError(t, err)
	require.Len(t, records, 5)
	for i, rec := range records {
		assert.Equal(t, sks[i], rec.SK)
	}
}

func testQueryBounds(t *testing.T, s ports.KeyValueStore) {
	sks := seedSeries(t, s, "CHECK#api", 5)

	// After is exclusive.
	records, err := s.Query(context.Background(), "CHECK#api", ports.QueryOptions{After: sks[1]})
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, sks[2], records[0].SK)

	// Before is exclusive too.
	records, err = s.Query(context.Background(), "CHECK#api", ports.QueryOptions{After: sks[0], Before: sks[4]})
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, sks[1], records[0].SK)
	assert.Equal(t, sks[3], records[2].SK)

	records, err = s.Query(context.Background(), "CHECK#api", ports.QueryOptions{After: sks[4]})
	require.NoError(t, err)
	assert.Empty(t, records)
}

func testQueryDescendingLimit(t *testing.T, s ports.KeyValueStore) {
	sks := seedSeries(t, s, "LATENCY#api#syd", 5)

	records, err := s.Query(context.Background(), "LATENCY#api#syd", ports.QueryOptions{Descending: true, Limit: 2})
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, sks[4], records[0].SK)
	assert.Equal(t, sks[3], records[1].SK)
}

func testPutIfNewer(t *testing.T, s ports.KeyValueStore) {
	ctx := context.Background()
	rec := ports.Record{PK: "STATE#api", SK: "CURRENT", Value: []byte(`{"last_check_ms":2000,"status":"up"}`)}
	require.NoError(t, s.PutIfNewer(ctx, rec, 2000))

	stale := ports.Record{PK: "STATE#api", SK: "CURRENT", Value: []byte(`{"last_check_ms":1000,"status":"down"}`)}
	err := s.PutIfNewer(ctx, stale, 1000)
	assert.ErrorIs(t, err, ports.ErrConditionFailed)

	got, err := s.Get(ctx, "STATE#api", "CURRENT")
	require.NoError(t, err)
	assert.JSONEq(t, string(rec.Value), string(got.Value))

	newer := ports.Record{PK: "STATE#api", SK: "CURRENT", Value: []byte(`{"last_check_ms":3000,"status":"down"}`)}
	require.NoError(t, s.PutIfNewer(ctx, newer, 3000))

	got, err = s.Get(ctx, "STATE#api", "CURRENT")
	require.NoError(t, err)
	assert.JSONEq(t, string(newer.Value), string(got.Value))
}

func testScanPrefix(t *testing.T, s ports.KeyValueStore) {
	ctx := context.Background()
	require.NoError(t, s.Put(ctx, ports.Record{PK: "STATE#api", SK: "CURRENT", Value: []byte(`{"m":"api"}`)}))
	require.NoError(t, s.Put(ctx, ports.Record{PK: "STATE#web", SK: "CURRENT", Value: []byte(`{"m":"web"}`)}))
	require.NoError(t, s.Put(ctx, ports.Record{PK: "CHECK#api", SK: "0000000001000#syd", Value: []byte(`{}`)}))

	records, err := s.ScanPrefix(ctx, "STATE#")
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "STATE#api", records[0].PK)
	assert.Equal(t, "STATE#web", records[1].PK)
}

func testDelete(t *testing.T, s ports.KeyValueStore) {
	ctx := context.Background()
	rec := ports.Record{PK: "INCIDENT#api", SK: "0000000001000", Value: []byte(`{}`)}
	require.NoError(t, s.Put(ctx, rec))
	require.NoError(t, s.Delete(ctx, rec.PK, rec.SK))

	_, err := s.Get(ctx, rec.PK, rec.SK)
	assert.ErrorIs(t, err, ports.ErrNotFound)

	// Deleting again is a no-op.
	assert.NoError(t, s.Delete(ctx, rec.PK, rec.SK))

	records, err := s.Query(ctx, rec.PK, ports.QueryOptions{})
	require.NoError(t, err)
	assert.Empty(t, records)
}

func testPing(t *testing.T, s ports.KeyValueStore) {
	assert.NoError(t, s.Ping(context.Background()))
}
