package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cockroachdb/pebble"
)

// Pebble is a KV backed by an embedded Pebble database.
type Pebble struct {
	db *pebble.DB
}

// OpenPebble opens (or creates) the Pebble database in dir.
func OpenPebble(dir string) (*Pebble, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("store: pebble path is empty")
	}
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("store: pebble open: %w", err)
	}
	return &Pebble{db: db}, nil
}

func (p *Pebble) Get(_ context.Context, key string) (string, bool, error) {
	value, closer, err := p.db.Get([]byte(key))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("store: pebble get %q: %w", key, err)
	}
	defer closer.Close()
	// value is only valid until closer.Close.
	return string(value), true, nil
}

func (p *Pebble) Set(_ context.Context, key, value string) error {
	if err := p.db.Set([]byte(key), []byte(value), pebble.Sync); err != nil {
		return fmt.Errorf("store: pebble set %q: %w", key, err)
	}
	return nil
}

func (p *Pebble) Remove(_ context.Context, key string) error {
	if err := p.db.Delete([]byte(key), pebble.Sync); err != nil {
		return fmt.Errorf("store: pebble delete %q: %w", key, err)
	}
	return nil
}

func (p *Pebble) Close() error {
	if p == nil || p.db == nil {
		return nil
	}
	return p.db.Close()
}
