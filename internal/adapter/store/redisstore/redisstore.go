// Package redisstore keeps the central store in Redis so several aggregator
// and API replicas can share one source of truth. Values live in plain string
// keys with native expiry, sort keys live in a per-partition lexicographic
// zset that makes range queries a single ZRANGEBYLEX.
package redisstore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/lookout-monitor/lookout/internal/core/ports"
)

const (
	defaultDialTimeout = 5 * time.Second
	defaultIOTimeout   = 3 * time.Second
	scanBatch          = 200
)

// putIfNewer refuses the write when the stored document carries an equal or
// later last_check_ms, mirroring a conditional put on a document store.
var putIfNewer = redis.NewScript(`
local cur = redis.call('GET', KEYS[1])
if cur then
  local ok, doc = pcall(cjson.decode, cur)
  if ok and doc['last_check_ms'] and tonumber(doc['last_check_ms']) >= tonumber(ARGV[1]) then
    return 0
  end
end
if tonumber(ARGV[3]) > 0 then
  redis.call('SET', KEYS[1], ARGV[2], 'EX', ARGV[3])
else
  redis.call('SET', KEYS[1], ARGV[2])
end
redis.call('ZADD', KEYS[2], 0, ARGV[4])
return 1
`)

type Config struct {
	Addr      string `yaml:"addr"`
	Password  string `yaml:"password"`
	DB        int    `yaml:"db"`
	Namespace string `yaml:"namespace"`
}

type Store struct {
	client    redis.UniversalClient
	namespace string
}

var _ ports.KeyValueStore = (*Store)(nil)

func New(cfg Config) *Store {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  defaultDialTimeout,
		ReadTimeout:  defaultIOTimeout,
		WriteTimeout: defaultIOTimeout,
	})
	return NewWithClient(client, cfg.Namespace)
}

// NewWithClient wraps an existing client, used by tests running against
// miniredis and by deployments with cluster or sentinel topologies.
func NewWithClient(client redis.UniversalClient, namespace string) *Store {
	if namespace == "" {
		namespace = "lookout"
	}
	return &Store{client: client, namespace: namespace}
}

func (s *Store) valueKey(pk, sk string) string {
	return s.namespace + ":v:" + pk + "|" + sk
}

func (s *Store) indexKey(pk string) string {
	return s.namespace + ":i:" + pk
}

func (s *Store) Put(ctx context.Context, rec ports.Record) error {
	pipe := s.client.TxPipeline()
	if rec.TTL > 0 {
		pipe.Set(ctx, s.valueKey(rec.PK, rec.SK), rec.Value, rec.TTL)
	} else {
		pipe.Set(ctx, s.valueKey(rec.PK, rec.SK), rec.Value, 0)
	}
	pipe.ZAdd(ctx, s.indexKey(rec.PK), redis.Z{Score: 0, Member: rec.SK})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis put %s/%s: %w", rec.PK, rec.SK, err)
	}
	return nil
}

func (s *Store) PutIfNewer(ctx context.Context, rec ports.Record, lastCheckMs int64) error {
	ttlSeconds := int64(0)
	if rec.TTL > 0 {
		ttlSeconds = int64(rec.TTL / time.Second)
	}
	stored, err := putIfNewer.Run(ctx, s.client,
		[]string{s.valueKey(rec.PK, rec.SK), s.indexKey(rec.PK)},
		lastCheckMs, rec.Value, ttlSeconds, rec.SK,
	).Int()
	if err != nil {
		return fmt.Errorf("redis conditional put %s/%s: %w", rec.PK, rec.SK, err)
	}
	if stored == 0 {
		return ports.ErrConditionFailed
	}
	return nil
}

func (s *Store) Get(ctx context.Context, pk, sk string) (ports.Record, error) {
	value, err := s.client.Get(ctx, s.valueKey(pk, sk)).Bytes()
	if errors.Is(err, redis.Nil) {
		return ports.Record{}, ports.ErrNotFound
	}
	if err != nil {
		return ports.Record{}, fmt.Errorf("redis get %s/%s: %w", pk, sk, err)
	}
	return ports.Record{PK: pk, SK: sk, Value: value}, nil
}

func (s *Store) Query(ctx context.Context, pk string, opts ports.QueryOptions) ([]ports.Record, error) {
	min, max := "-", "+"
	if opts.After != "" {
		min = "(" + opts.After
	}
	if opts.Before != "" {
		max = "(" + opts.Before
	}

	var (
		sks []string
		err error
	)
	rng := &redis.ZRangeBy{Min: min, Max: max}
	if opts.Descending {
		sks, err = s.client.ZRevRangeByLex(ctx, s.indexKey(pk), rng).Result()
	} else {
		sks, err = s.client.ZRangeByLex(ctx, s.indexKey(pk), rng).Result()
	}
	if err != nil {
		return nil, fmt.Errorf("redis range %s: %w", pk, err)
	}
	if len(sks) == 0 {
		return nil, nil
	}

	keys := make([]string, len(sks))
	for i, sk := range sks {
		keys[i] = s.valueKey(pk, sk)
	}
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("redis fetch %s: %w", pk, err)
	}

	records := make([]ports.Record, 0, len(sks))
	var stale []interface{}
	for i, raw := range values {
		text, ok := raw.(string)
		if !ok {
			// Value expired out from under its index entry, drop the member.
			stale = append(stale, sks[i])
			continue
		}
		if opts.Limit > 0 && len(records) >= opts.Limit {
			continue
		}
		records = append(records, ports.Record{PK: pk, SK: sks[i], Value: []byte(text)})
	}
	if len(stale) > 0 {
		s.client.ZRem(ctx, s.indexKey(pk), stale...)
	}
	return records, nil
}

func (s *Store) ScanPrefix(ctx context.Context, pkPrefix string) ([]ports.Record, error) {
	match := s.indexKey(pkPrefix) + "*"
	var (
		cursor  uint64
		records []ports.Record
	)
	for {
		keys, next, err := s.client.Scan(ctx, cursor, match, scanBatch).Result()
		if err != nil {
			return nil, fmt.Errorf("redis scan %q: %w", match, err)
		}
		for _, key := range keys {
			pk := strings.TrimPrefix(key, s.namespace+":i:")
			recs, err := s.Query(ctx, pk, ports.QueryOptions{})
			if err != nil {
				return nil, err
			}
			records = append(records, recs...)
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}
	sort.Slice(records, func(i, j int) bool {
		if records[i].PK != records[j].PK {
			return records[i].PK < records[j].PK
		}
		return records[i].SK < records[j].SK
	})
	return records, nil
}

func (s *Store) Delete(ctx context.Context, pk, sk string) error {
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, s.valueKey(pk, sk))
	pipe.ZRem(ctx, s.indexKey(pk), sk)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis delete %s/%s: %w", pk, sk, err)
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.client.Close()
}
