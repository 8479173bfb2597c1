// Package badgercache implements the session cache on BadgerDB.
// Badger handles expiry natively via per-entry TTLs, so expired tokens
// simply stop resolving without any sweeper of our own.
package badgercache

import (
	"context"
	"errors"
	"fmt"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"go.uber.org/zap"

	"github.com/filedepot/filedepot/internal/domain"
	"github.com/filedepot/filedepot/internal/logging"
)

// Config holds Badger cache settings.
type Config struct {
	// Path is the database directory. Empty with InMemory set runs
	// fully in memory (used by tests).
	Path     string
	InMemory bool
}

// Cache is a BadgerDB-backed expiring key-value store.
type Cache struct {
	db     *badger.DB
	stopGC chan struct{}
}

// New opens (or creates) the Badger database at cfg.Path.
func New(cfg Config) (*Cache, error) {
	opts := badger.DefaultOptions(cfg.Path)
	opts = opts.WithLoggingLevel(badger.WARNING)
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true).WithLoggingLevel(badger.WARNING)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger at %s: %w", cfg.Path, err)
	}

	c := &Cache{db: db, stopGC: make(chan struct{})}
	if !cfg.InMemory {
		go c.runGC()
	}
	return c, nil
}

// runGC periodically reclaims value log space freed by expired entries.
func (c *Cache) runGC() {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			for {
				if err := c.db.RunValueLogGC(0.5); err != nil {
					break
				}
			}
		case <-c.stopGC:
			return
		}
	}
}

// Set stores value under key with the given TTL.
func (c *Cache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := c.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry([]byte(key), []byte(value)).WithTTL(ttl)
		return txn.SetEntry(entry)
	})
	if err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

// Get returns the value for key, or domain.ErrNotFound when the key is
// absent or its TTL has elapsed.
func (c *Cache) Get(ctx context.Context, key string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	var value string
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			value = string(val)
			return nil
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return "", domain.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("get %s: %w", key, err)
	}
	return value, nil
}

// Delete removes key and reports whether it existed.
func (c *Cache) Delete(ctx context.Context, key string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	existed := false
	err := c.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get([]byte(key)); err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return nil
			}
			return err
		}
		existed = true
		return txn.Delete([]byte(key))
	})
	if err != nil {
		return false, fmt.Errorf("delete %s: %w", key, err)
	}
	return existed, nil
}

// Ping reports whether the database is open.
func (c *Cache) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if c.db.IsClosed() {
		return domain.ErrStoreUnavailable
	}
	return nil
}

// Close stops background GC and closes the database.
func (c *Cache) Close() error {
	close(c.stopGC)
	if err := c.db.Close(); err != nil {
		logging.Error("closing badger cache", zap.Error(err))
		return err
	}
	return nil
}
