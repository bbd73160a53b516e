// Package state defines where the durable snapshots of the reconciliation
// core live. Each store serializes its own record and hands the bytes to a
// Backend on every mutation.
package state

import (
	"context"
	"errors"
	"sync"
)

// Record names one of the durable snapshots.
type Record string

const (
	RecordAuth   Record = "auth_sessions"
	RecordGames  Record = "game_mappings"
	RecordLedger Record = "content_mappings"
)

// ErrUnread is returned by a store asked to persist a record whose stored
// copy it failed to read. The stored copy is left as is until a restore
// succeeds.
var ErrUnread = errors.New("stored record was not read, refusing to overwrite it")

// Records lists every record a backend may hold.
var Records = []Record{RecordAuth, RecordGames, RecordLedger}

// Backend stores opaque snapshot bytes per record.
// Load returns (nil, nil) when the record has never been saved.
type Backend interface {
	Load(ctx context.Context, record Record) ([]byte, error)
	Save(ctx context.Context, record Record, data []byte) error
	Close() error
}

// Memory is a process-local Backend, used in tests and as a dry-run mode.
type Memory struct {
	mu      sync.RWMutex
	records map[Record][]byte
}

// NewMemory creates an empty in-memory backend.
func NewMemory() *Memory {
	return &Memory{records: make(map[Record][]byte)}
}

func (m *Memory) Load(_ context.Context, record Record) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	data, ok := m.records[record]
	if !ok {
		return nil, nil
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

func (m *Memory) Save(_ context.Context, record Record, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	buf := make([]byte, len(data))
	copy(buf, data)
	m.records[record] = buf
	return nil
}

func (m *Memory) Close() error { return nil }
