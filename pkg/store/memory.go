package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/grwebhook/grwebhook/pkg/sale"
)

// Keeps records in process. Used for local replays and tests.
type Memory struct {
	mu      sync.RWMutex
	records map[string]sale.Record
}

func NewMemory() *Memory {
	return &Memory{
		records: map[string]sale.Record{},
	}
}

func key(email string, timestamp int64) string {
	return fmt.Sprintf("%s|%d", email, timestamp)
}

func (memory *Memory) Upsert(ctx context.Context, record *sale.Record) error {
	if err := validate(record); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	memory.mu.Lock()
	defer memory.mu.Unlock()
	memory.records[key(record.Email, record.Timestamp)] = *record

	return nil
}

// Returns the record for the sale, if one has been written.
func (memory *Memory) Get(email string, timestamp int64) (*sale.Record, bool) {
	memory.mu.RLock()
	defer memory.mu.RUnlock()

	record, ok := memory.records[key(email, timestamp)]
	if !ok {
		return nil, false
	}
	return &record, true
}

func (memory *Memory) Len() int {
	memory.mu.RLock()
	defer memory.mu.RUnlock()
	return len(memory.records)
}

func (memory *Memory) Close() {}
