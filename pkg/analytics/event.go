package analytics

import (
	"fmt"
	"math/rand"
	"strconv"
	"strings"
	"time"

	"github.com/grwebhook/grwebhook/pkg/sale"
)

const (
	CategoryPrefix = "product-"
	ActionPurchase = "purchased"
	LabelPurchase  = "purchased a product"
)

// A Measurement Protocol event derived from a sale record.
type Event struct {
	Category  string
	Action    string
	Label     string
	Value     int64  // Currency subunits, reported as-is
	ClientID  string // cid
	QueueTime int64  // Milliseconds between the sale and the send
}

// Builds the purchase event for a record. The record must carry a product permalink in its data.
func NewEvent(record *sale.Record, now time.Time) (*Event, error) {
	permalink, err := record.Permalink()
	if err != nil {
		return nil, err
	}

	return &Event{
		Category:  CategoryPrefix + permalink,
		Action:    ActionPurchase,
		Label:     LabelPurchase,
		Value:     record.Value,
		ClientID:  ClientID(record.GA, record.Timestamp),
		QueueTime: now.Sub(time.Unix(record.Timestamp, 0)).Milliseconds(),
	}, nil
}

/*
Derives the client id from a cross-domain _ga token.

A linker token looks like "2.197206063.1689275659.1599939181-845139552.1599939181": everything
after the first dash is the client id of the originating property. Without a usable token a
pseudo-random id in the collector's "<random>.<timestamp>" shape is synthesized.
*/
func ClientID(ga string, timestamp int64) string {
	if _, cid, ok := strings.Cut(ga, "-"); ok && cid != "" {
		return cid
	}
	return fmt.Sprintf("%d.%s", rand.Int31(), strconv.FormatInt(timestamp, 10))
}
