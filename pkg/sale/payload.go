package sale

import (
	"errors"
	"net/url"
	"sort"
)

// Keys the normalizer reads from a webhook payload.
const (
	FieldSaleTimestamp = "sale_timestamp"
	FieldEmail         = "email"
	FieldPrice         = "price"
	FieldRefunded      = "refunded"
	FieldOfferCode     = "offer_code"
	FieldCountry       = "ip_country"
	FieldGA            = "url_params[_ga]"
	FieldSecretKey     = "Secret_Key"
	FieldPermalink     = "permalink"
)

// A parsed form-encoded webhook body. Each key holds its values in the order they were sent.
type Payload map[string][]string

// Parses a form-encoded webhook body.
// Blank values are dropped, so a key sent only with empty values is treated as absent.
//
// A malformed body still returns every pair that could be decoded, alongside the error, so the
// caller can authenticate the request before rejecting it.
func ParsePayload(body string) (Payload, error) {
	values, err := url.ParseQuery(body)

	payload := Payload{}
	for key, vals := range values {
		for _, v := range vals {
			if v == "" {
				continue
			}
			payload[key] = append(payload[key], v)
		}
	}

	if err != nil {
		return payload, &MalformedFieldError{Field: "body", Err: err}
	}
	return payload, nil
}

// Returns the single value stored under key. ok is false when the key is absent.
// A key that was sent more than once cannot be read as a scalar.
func (p Payload) Single(key string) (value string, ok bool, err error) {
	values, found := p[key]
	if !found || len(values) == 0 {
		return "", false, nil
	}
	if len(values) > 1 {
		return "", true, &MalformedFieldError{Field: key, Err: errors.New("expected a single value")}
	}
	return values[0], true, nil
}

// Returns every key except those listed, unwrapping single values to strings.
// Repeated keys stay as string slices.
func (p Payload) Residual(consumed ...string) map[string]any {
	skip := make(map[string]struct{}, len(consumed))
	for _, key := range consumed {
		skip[key] = struct{}{}
	}

	data := make(map[string]any, len(p))
	for key, values := range p {
		if _, ok := skip[key]; ok {
			continue
		}
		if len(values) == 1 {
			data[key] = values[0]
		} else {
			data[key] = append([]string(nil), values...)
		}
	}
	return data
}

// Re-encodes the payload without the listed keys. Keys are sorted.
func (p Payload) Encode(without ...string) string {
	values := url.Values{}
	for key, vals := range p {
		values[key] = vals
	}
	for _, key := range without {
		values.Del(key)
	}
	return values.Encode()
}

// Returns the payload keys in sorted order.
func (p Payload) Keys() []string {
	keys := make([]string, 0, len(p))
	for key := range p {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
