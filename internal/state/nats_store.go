package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"alertstate/internal/config"

	"github.com/nats-io/nats.go"
)

// NATSStore persists instance snapshots in a JetStream KV bucket.
// Params: NATS connection, JetStream context, and KV bucket handle.
// Returns: KV-backed snapshot store.
type NATSStore struct {
	nc *nats.Conn
	kv nats.KeyValue
}

// NewNATSStore opens (or creates when allowed) the snapshot bucket.
// Params: NATS state settings from config.
// Returns: initialized NATS store or setup error.
func NewNATSStore(settings config.NATSStateConfig) (*NATSStore, error) {
	nc, err := nats.Connect(strings.Join(settings.URL, ","))
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}

	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("jetstream init: %w", err)
	}

	kv, err := js.KeyValue(settings.Bucket)
	if err != nil {
		if !settings.AllowCreateBucket {
			nc.Close()
			return nil, fmt.Errorf("open state bucket %q: %w", settings.Bucket, err)
		}
		kv, err = js.CreateKeyValue(&nats.KeyValueConfig{
			Bucket:      settings.Bucket,
			Description: "alert instance state snapshots",
			History:     1,
		})
		if err != nil {
			nc.Close()
			return nil, fmt.Errorf("create state bucket %q: %w", settings.Bucket, err)
		}
	}

	return &NATSStore{nc: nc, kv: kv}, nil
}

// Get reads one snapshot and its KV revision.
// Params: store key.
// Returns: snapshot, revision, or ErrNotFound.
func (s *NATSStore) Get(_ context.Context, key string) (Snapshot, uint64, error) {
	entry, err := s.kv.Get(key)
	if err != nil {
		if errors.Is(err, nats.ErrKeyNotFound) {
			return Snapshot{}, 0, ErrNotFound
		}
		return Snapshot{}, 0, fmt.Errorf("get snapshot: %w", err)
	}

	var snap Snapshot
	if err := json.Unmarshal(entry.Value(), &snap); err != nil {
		return Snapshot{}, 0, fmt.Errorf("decode snapshot: %w", err)
	}
	return snap, entry.Revision(), nil
}

// Put writes snapshot unconditionally.
// Params: store key and snapshot.
// Returns: new KV revision.
func (s *NATSStore) Put(_ context.Context, key string, snap Snapshot) (uint64, error) {
	body, err := json.Marshal(snap)
	if err != nil {
		return 0, fmt.Errorf("encode snapshot: %w", err)
	}
	rev, err := s.kv.Put(key, body)
	if err != nil {
		return 0, fmt.Errorf("put snapshot: %w", err)
	}
	return rev, nil
}

// Delete removes snapshot key; missing keys are ignored.
func (s *NATSStore) Delete(_ context.Context, key string) error {
	if err := s.kv.Delete(key); err != nil && !errors.Is(err, nats.ErrKeyNotFound) {
		return fmt.Errorf("delete snapshot: %w", err)
	}
	return nil
}

// ListKeys lists bucket keys by prefix in lexical order.
// Params: key prefix (empty lists everything).
// Returns: matching keys.
func (s *NATSStore) ListKeys(_ context.Context, prefix string) ([]string, error) {
	keys, err := s.kv.Keys()
	if err != nil {
		if errors.Is(err, nats.ErrNoKeysFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("list keys: %w", err)
	}
	out := make([]string, 0, len(keys))
	for _, key := range keys {
		if strings.HasPrefix(key, prefix) {
			out = append(out, key)
		}
	}
	sort.Strings(out)
	return out, nil
}

// Close closes underlying NATS connection.
func (s *NATSStore) Close() error {
	s.nc.Close()
	return nil
}
