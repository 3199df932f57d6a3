package store

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"github.com/JonMunkholm/sheetstore/internal/schema"
)

// FormatID renders a sequence number with the table prefix: PER-0001.
// Numbers past 9999 simply grow wider.
func FormatID(prefix string, n int) string {
	return fmt.Sprintf("%s-%04d", prefix, n)
}

// ParseID returns the sequence number of id if it carries prefix.
func ParseID(prefix, id string) (int, bool) {
	rest, ok := strings.CutPrefix(id, prefix+"-")
	if !ok || rest == "" {
		return 0, false
	}
	n, err := strconv.Atoi(rest)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// scanTimeout bounds a shared table scan. The scan outlives the caller that
// started it, since other callers may be waiting on its result.
const scanTimeout = time.Minute

// ScanFunc returns every id currently stored for t.
type ScanFunc func(ctx context.Context, t schema.EntityType) ([]string, error)

// Sequence issues numbers shared between processes. Next must return a
// number greater than floor and greater than any number it issued before
// for key.
type Sequence interface {
	Next(ctx context.Context, key string, floor int) (int, error)
}

// IDGenerator assigns identifiers. Each call re-reads the table so ids
// written by other processes are seen, coalescing concurrent scans of the
// same table. Numbers are then issued under a lock, so two calls in one
// process never return the same id. Without a Sequence, two processes
// creating rows in the same table at the same moment can still collide.
type IDGenerator struct {
	scan  ScanFunc
	seq   Sequence
	group singleflight.Group

	mu   sync.Mutex
	last map[schema.EntityType]int
}

// NewIDGenerator creates a generator. seq may be nil.
func NewIDGenerator(scan ScanFunc, seq Sequence) *IDGenerator {
	return &IDGenerator{
		scan: scan,
		seq:  seq,
		last: make(map[schema.EntityType]int),
	}
}

// Next returns a fresh identifier for t.
func (g *IDGenerator) Next(ctx context.Context, t schema.EntityType) (string, error) {
	def, err := schema.Lookup(t)
	if err != nil {
		return "", err
	}

	seen, err := g.highest(ctx, def)
	if err != nil {
		return "", fmt.Errorf("seed %s ids: %w", t, err)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	floor := max(seen, g.last[t])
	n := floor + 1
	if g.seq != nil {
		n, err = g.seq.Next(ctx, def.Prefix, floor)
		if err != nil {
			return "", fmt.Errorf("id sequence %s: %w", def.Prefix, err)
		}
	}
	g.last[t] = n
	return FormatID(def.Prefix, n), nil
}

// highest returns the largest sequence number stored in the table.
func (g *IDGenerator) highest(ctx context.Context, def schema.Table) (int, error) {
	ch := g.group.DoChan(string(def.Type), func() (any, error) {
		scanCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), scanTimeout)
		defer cancel()

		ids, err := g.scan(scanCtx, def.Type)
		if err != nil {
			return 0, err
		}
		top := 0
		for _, id := range ids {
			if n, ok := ParseID(def.Prefix, id); ok && n > top {
				top = n
			}
		}
		return top, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return 0, res.Err
		}
		return res.Val.(int), nil
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

// raiseAndIncr lifts the counter to the floor, then increments it, in one
// atomic step.
var raiseAndIncr = redis.NewScript(`
local cur = tonumber(redis.call('GET', KEYS[1]) or '0')
local floor = tonumber(ARGV[1])
if cur < floor then
  redis.call('SET', KEYS[1], floor)
end
return redis.call('INCR', KEYS[1])
`)

const sequenceKeyPrefix = "sheetstore:seq:"

// RedisSequence shares id counters between processes through Redis.
type RedisSequence struct {
	client *redis.Client
	ns     string
}

// NewRedisSequence connects to url. It returns nil, nil when url is empty.
// namespace separates counters of different spreadsheets sharing a server.
func NewRedisSequence(ctx context.Context, url, namespace string) (*RedisSequence, error) {
	if url == "" {
		return nil, nil
	}

	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return &RedisSequence{client: client, ns: namespace}, nil
}

// NewRedisSequenceFromClient wraps an existing client.
func NewRedisSequenceFromClient(client *redis.Client, namespace string) *RedisSequence {
	return &RedisSequence{client: client, ns: namespace}
}

func (s *RedisSequence) Next(ctx context.Context, key string, floor int) (int, error) {
	n, err := raiseAndIncr.Run(ctx, s.client, []string{s.key(key)}, floor).Int()
	if err != nil {
		return 0, err
	}
	return n, nil
}

func (s *RedisSequence) key(k string) string {
	if s.ns == "" {
		return sequenceKeyPrefix + k
	}
	return sequenceKeyPrefix + s.ns + ":" + k
}

// Close releases the connection.
func (s *RedisSequence) Close() error {
	return s.client.Close()
}
