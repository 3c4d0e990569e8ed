package sale

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	DefaultOfferCode = "No Code"
	DefaultCountry   = "Unknown"
)

// The webhook stamps local Pacific time with a Z suffix. Shifting by seven hours recovers the real instant.
const TimestampCorrection = -7 * time.Hour

const timestampLayout = "2006-01-02 15:04:05"

// Accepted representations of a true refund flag. Anything else reads as false.
var truthy = map[string]struct{}{
	"true": {},
	"True": {},
}

// A normalized sale as persisted to the store.
type Record struct {
	Email     string         `json:"email" dynamodbav:"email"`
	Timestamp int64          `json:"timestamp" dynamodbav:"timestamp"` // Corrected sale time, Unix seconds
	Value     int64          `json:"value" dynamodbav:"value"`         // Price in currency subunits
	OfferCode string         `json:"offer_code" dynamodbav:"offer_code"`
	Country   string         `json:"country" dynamodbav:"country"`
	Refunded  int            `json:"refunded" dynamodbav:"refunded"`
	Data      map[string]any `json:"data" dynamodbav:"data"` // Payload fields not extracted above
	GA        string         `json:"_ga" dynamodbav:"_ga"`   // Cross-domain session token
	UpdatedAt int64          `json:"updatedAt" dynamodbav:"updatedAt"`
}

// Parses a form-encoded webhook body into a record.
func Normalize(body string, now time.Time) (*Record, error) {
	payload, err := ParsePayload(body)
	if err != nil {
		return nil, &NormalizeError{Errors: []error{err}}
	}
	return payload.Record(now)
}

// Extracts a record from the payload. All failures are returned together as a *NormalizeError.
//
// Consumed keys: sale_timestamp, email, price, refunded, offer_code, ip_country and Secret_Key.
// url_params[_ga] is read but left in the residual data.
func (p Payload) Record(now time.Time) (*Record, error) {
	errs := &NormalizeError{}

	record := &Record{
		OfferCode: DefaultOfferCode,
		Country:   DefaultCountry,
		UpdatedAt: now.Unix(),
	}

	timestamp, err := p.saleTimestamp()
	if err != nil {
		errs.add(err)
	} else {
		record.Timestamp = timestamp.Unix()
	}

	record.Email, err = p.required(FieldEmail)
	if err != nil {
		errs.add(err)
	}

	price, err := p.required(FieldPrice)
	if err != nil {
		errs.add(err)
	} else if record.Value, err = strconv.ParseInt(strings.TrimSpace(price), 10, 64); err != nil {
		errs.add(&MalformedFieldError{Field: FieldPrice, Value: price, Err: err})
	}

	refunded, err := p.required(FieldRefunded)
	if err != nil {
		errs.add(err)
	} else if _, ok := truthy[refunded]; ok {
		record.Refunded = 1
	}

	if err := p.optional(FieldOfferCode, &record.OfferCode); err != nil {
		errs.add(err)
	}
	if err := p.optional(FieldCountry, &record.Country); err != nil {
		errs.add(err)
	}
	if err := p.optional(FieldGA, &record.GA); err != nil {
		errs.add(err)
	}

	if len(errs.Errors) > 0 {
		return nil, errs
	}

	record.Data = p.Residual(
		FieldSaleTimestamp,
		FieldEmail,
		FieldPrice,
		FieldRefunded,
		FieldOfferCode,
		FieldCountry,
		FieldSecretKey,
	)

	return record, nil
}

// Parses a webhook sale timestamp and applies the timezone correction.
func ParseTimestamp(value string) (time.Time, error) {
	cleaned := strings.ReplaceAll(strings.ReplaceAll(value, "T", " "), "Z", "")
	t, err := time.ParseInLocation(timestampLayout, cleaned, time.UTC)
	if err != nil {
		return time.Time{}, &MalformedTimestampError{Value: value, Err: err}
	}
	return t.Add(TimestampCorrection), nil
}

// Returns the product permalink carried in the residual data.
// An absent permalink is a *MissingNestedFieldError; one sent more than once is a *MalformedFieldError.
func (r *Record) Permalink() (string, error) {
	path := "data." + FieldPermalink

	value, ok := r.Data[FieldPermalink]
	if !ok {
		return "", &MissingNestedFieldError{Path: path}
	}

	switch permalink := value.(type) {
	case string:
		if permalink == "" {
			return "", &MissingNestedFieldError{Path: path}
		}
		return permalink, nil
	case []string:
		return "", &MalformedFieldError{Field: path, Value: strings.Join(permalink, ","), Err: errors.New("expected a single value")}
	default:
		return "", &MalformedFieldError{Field: path, Err: fmt.Errorf("unexpected type %T", value)}
	}
}

func (p Payload) saleTimestamp() (time.Time, error) {
	value, ok, err := p.Single(FieldSaleTimestamp)
	if err != nil {
		return time.Time{}, &MalformedTimestampError{Value: value, Err: errors.Unwrap(err)}
	}
	if !ok {
		return time.Time{}, &MalformedTimestampError{Err: errMissingValue}
	}
	return ParseTimestamp(value)
}

func (p Payload) required(key string) (string, error) {
	value, ok, err := p.Single(key)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", &MissingFieldError{Field: key}
	}
	return value, nil
}

// Overwrites dst only when the key is present.
func (p Payload) optional(key string, dst *string) error {
	value, ok, err := p.Single(key)
	if err != nil {
		return err
	}
	if ok {
		*dst = value
	}
	return nil
}
