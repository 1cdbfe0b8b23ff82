// Package redis provides a Redis-backed storage.BalanceCache.
//
// Pair balances live in one hash (field "A\x1fB", value in minor units) and
// applied event IDs in one set, both under a configurable key prefix.
package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	goredis "github.com/redis/go-redis/v9"

	"github.com/fairshare/ledger/internal/calculator"
	"github.com/fairshare/ledger/internal/models"
	"github.com/fairshare/ledger/internal/money"
	"github.com/fairshare/ledger/internal/storage"
)

var _ storage.BalanceCache = (*Cache)(nil)

const fieldSep = "\x1f"

// applyScript adds a delta once per event ID.
// KEYS[1] balances hash, KEYS[2] applied set.
// ARGV[1] event ID, then field/amount pairs.
var applyScript = goredis.NewScript(`
if redis.call('SADD', KEYS[2], ARGV[1]) == 0 then
  return 0
end
for i = 2, #ARGV, 2 do
  local v = redis.call('HINCRBY', KEYS[1], ARGV[i], ARGV[i + 1])
  if v == 0 then
    redis.call('HDEL', KEYS[1], ARGV[i])
  end
end
return 1
`)

// Cache implements storage.BalanceCache on Redis.
type Cache struct {
	client      goredis.UniversalClient
	balancesKey string
	appliedKey  string
}

// New wraps an existing client. prefix namespaces every key.
func New(client goredis.UniversalClient, prefix string) *Cache {
	if prefix == "" {
		prefix = "fairshare"
	}
	return &Cache{
		client:      client,
		balancesKey: prefix + ":balances",
		appliedKey:  prefix + ":applied",
	}
}

// Dial connects to addr and verifies the connection.
func Dial(ctx context.Context, addr, prefix string) (*Cache, error) {
	client := goredis.NewClient(&goredis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", addr, err)
	}
	return New(client, prefix), nil
}

// Close closes the underlying client.
func (c *Cache) Close() error {
	return c.client.Close()
}

// ApplyDelta adds delta atomically unless its event was already applied.
func (c *Cache) ApplyDelta(ctx context.Context, delta calculator.BalanceDelta) error {
	args := []any{delta.EventID}
	for _, entry := range delta.Entries {
		if entry.Creditor == entry.Debtor || entry.Amount.IsZero() {
			continue
		}
		pair := calculator.CanonicalPair(entry.Creditor, entry.Debtor, entry.Amount)
		args = append(args, field(pair.A, pair.B), pair.Amount.MinorUnits())
	}

	keys := []string{c.balancesKey, c.appliedKey}
	if err := applyScript.Run(ctx, c.client, keys, args...).Err(); err != nil {
		return fmt.Errorf("redis apply delta %s: %w", delta.EventID, err)
	}
	return nil
}

// PairBalance returns what b owes a.
func (c *Cache) PairBalance(ctx context.Context, a, b models.Party) (money.Money, error) {
	if a == b {
		return money.Zero, nil
	}
	pair := calculator.CanonicalPair(a, b, money.FromMinorUnits(1))

	v, err := c.client.HGet(ctx, c.balancesKey, field(pair.A, pair.B)).Int64()
	if errors.Is(err, goredis.Nil) {
		return money.Zero, nil
	}
	if err != nil {
		return money.Zero, fmt.Errorf("redis hget: %w", err)
	}
	return money.FromMinorUnits(v * pair.Amount.MinorUnits()), nil
}

// AllPairs returns every non-zero cached pair, sorted.
func (c *Cache) AllPairs(ctx context.Context) ([]calculator.PairBalance, error) {
	raw, err := c.client.HGetAll(ctx, c.balancesKey).Result()
	if err != nil {
		return nil, fmt.Errorf("redis hgetall: %w", err)
	}

	pairs := make([]calculator.PairBalance, 0, len(raw))
	for f, v := range raw {
		a, b, ok := strings.Cut(f, fieldSep)
		if !ok {
			return nil, fmt.Errorf("malformed balance field %q", f)
		}
		amount, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("malformed balance for %q: %w", f, err)
		}
		if amount == 0 {
			continue
		}
		pairs = append(pairs, calculator.PairBalance{
			A:      models.Party(a),
			B:      models.Party(b),
			Amount: money.FromMinorUnits(amount),
		})
	}
	calculator.SortPairs(pairs)
	return pairs, nil
}

// Replace overwrites both keys in one MULTI/EXEC block.
func (c *Cache) Replace(ctx context.Context, pairs []calculator.PairBalance, eventIDs []string) error {
	values := make(map[string]any, len(pairs))
	for _, p := range pairs {
		if !p.Amount.IsZero() {
			values[field(p.A, p.B)] = p.Amount.MinorUnits()
		}
	}
	members := make([]any, len(eventIDs))
	for i, id := range eventIDs {
		members[i] = id
	}

	_, err := c.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.Del(ctx, c.balancesKey, c.appliedKey)
		if len(values) > 0 {
			pipe.HSet(ctx, c.balancesKey, values)
		}
		if len(members) > 0 {
			pipe.SAdd(ctx, c.appliedKey, members...)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis replace balances: %w", err)
	}
	return nil
}

func field(a, b models.Party) string {
	return string(a) + fieldSep + string(b)
}
