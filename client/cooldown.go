package client

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"nerdsphere/domain/ratelimit"

	"github.com/dgraph-io/badger/v4"
)

const cooldownKeyPrefix = "cooldown:"

// KV is the client-local persistent storage the cooldown lives in.
type KV interface {
	Get(ctx context.Context, key string) (value []byte, found bool, err error)
	Set(ctx context.Context, key string, value []byte) error
}

// Cooldown is the advisory half of the rate limit. It only saves a round trip
// when the server would refuse anyway, the server check is the binding one.
// The entry is scoped by clientID so two sessions sharing one store never
// throttle each other.
type Cooldown struct {
	kv       KV
	clientID string
	window   time.Duration
	clock    func() time.Time
}

func NewCooldown(kv KV, clientID string, window time.Duration, clock func() time.Time) *Cooldown {
	return &Cooldown{kv: kv, clientID: clientID, window: window, clock: clock}
}

func (c *Cooldown) key() string {
	return cooldownKeyPrefix + c.clientID
}

func (c *Cooldown) CanSend(ctx context.Context) (ratelimit.Decision, error) {
	raw, found, err := c.kv.Get(ctx, c.key())
	if err != nil {
		return ratelimit.Decision{}, fmt.Errorf("read cooldown of %s: %w", c.clientID, err)
	}
	if !found {
		return ratelimit.Evaluate(nil, c.clock(), c.window), nil
	}
	millis, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil {
		// A corrupted entry must not lock the user out
		return ratelimit.Evaluate(nil, c.clock(), c.window), nil
	}
	last := time.UnixMilli(millis)
	return ratelimit.Evaluate(&last, c.clock(), c.window), nil
}

// RecordSent must only be called once the server accepted the message.
func (c *Cooldown) RecordSent(ctx context.Context) error {
	value := strconv.FormatInt(c.clock().UnixMilli(), 10)
	if err := c.kv.Set(ctx, c.key(), []byte(value)); err != nil {
		return fmt.Errorf("write cooldown of %s: %w", c.clientID, err)
	}
	return nil
}

type MemoryKV struct {
	mu     sync.RWMutex
	values map[string][]byte
}

func NewMemoryKV() *MemoryKV {
	return &MemoryKV{values: make(map[string][]byte)}
}

func (m *MemoryKV) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	value, ok := m.values[key]
	return value, ok, nil
}

func (m *MemoryKV) Set(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = append([]byte(nil), value...)
	return nil
}

// BadgerKV keeps the cooldown across restarts of the command line client.
type BadgerKV struct {
	db *badger.DB
}

func NewBadgerKV(db *badger.DB) *BadgerKV {
	return &BadgerKV{db: db}
}

// OpenBadgerKV opens (or creates) a small Badger directory for client state.
func OpenBadgerKV(path string) (*BadgerKV, func() error, error) {
	db, err := badger.Open(badger.DefaultOptions(path).WithLoggingLevel(badger.ERROR))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open client state at %s: %w", path, err)
	}
	return NewBadgerKV(db), db.Close, nil
}

func (b *BadgerKV) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	var value []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if err == badger.ErrKeyNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return value, true, nil
}

func (b *BadgerKV) Set(ctx context.Context, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), value)
	})
}
