package store

import (
	"context"
	"errors"

	"github.com/grwebhook/grwebhook/pkg/sale"
)

// The table sale records are written to unless configured otherwise.
const DefaultTable = "GRWebhookData"

var ErrInvalidRecord = errors.New("record has no email or timestamp")

// A destination for sale records. Records are keyed by email and timestamp, so writing the same
// sale twice overwrites the first write.
type Store interface {
	Upsert(ctx context.Context, record *sale.Record) error
	Close()
}

func validate(record *sale.Record) error {
	if record == nil || record.Email == "" || record.Timestamp == 0 {
		return ErrInvalidRecord
	}
	return nil
}
