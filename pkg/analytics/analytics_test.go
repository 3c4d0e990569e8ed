package analytics

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/grwebhook/grwebhook/pkg/sale"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const linkerGA = "2.197206063.1689275659.1599939181-845139552.1599939181"

func testRecord() *sale.Record {
	return &sale.Record{
		Email:     "buyer@example.com",
		Timestamp: time.Date(2020, 9, 12, 14, 37, 48, 0, time.UTC).Unix(),
		Value:     19900,
		Data:      map[string]any{"permalink": "WPLqz"},
		GA:        linkerGA,
	}
}

func TestClientIDFromLinker(t *testing.T) {
	assert.Equal(t, "845139552.1599939181", ClientID(linkerGA, 1599921468))
}

func TestClientIDSynthesized(t *testing.T) {
	first := ClientID("", 1599921468)
	second := ClientID("", 1599921468)

	assert.True(t, strings.HasSuffix(first, ".1599921468"), first)
	assert.NotEqual(t, first, second)

	random, _, ok := strings.Cut(first, ".")
	assert.True(t, ok)
	_, err := strconv.ParseInt(random, 10, 32)
	assert.NoError(t, err)

	// A token without a linker separator cannot be split
	assert.True(t, strings.HasSuffix(ClientID("GA1.2.3", 42), ".42"))
}

func TestNewEvent(t *testing.T) {
	record := testRecord()
	now := time.Unix(record.Timestamp, 0).Add(90 * time.Second)

	event, err := NewEvent(record, now)
	require.NoError(t, err)

	assert.Equal(t, "product-WPLqz", event.Category)
	assert.Equal(t, "purchased", event.Action)
	assert.Equal(t, "purchased a product", event.Label)
	assert.Equal(t, int64(19900), event.Value)
	assert.Equal(t, "845139552.1599939181", event.ClientID)
	assert.Equal(t, int64(90000), event.QueueTime)
}

func TestNewEventMissingPermalink(t *testing.T) {
	record := testRecord()
	record.Data = map[string]any{}

	event, err := NewEvent(record, time.Now())
	assert.Nil(t, event)

	var missing *sale.MissingNestedFieldError
	assert.ErrorAs(t, err, &missing)
}

func TestSend(t *testing.T) {
	var query url.Values
	var method, path string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method = r.Method
		path = r.URL.Path
		query = r.URL.Query()
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	tracker := NewTracker(Config{BaseURL: server.URL})
	event, err := NewEvent(testRecord(), time.Now())
	require.NoError(t, err)

	err = tracker.Send(context.Background(), event)
	require.NoError(t, err)

	assert.Equal(t, http.MethodPost, method)
	assert.Equal(t, "/collect", path)
	assert.Equal(t, "1", query.Get("v"))
	assert.Equal(t, "event", query.Get("t"))
	assert.Equal(t, DefaultTrackingID, query.Get("tid"))
	assert.Equal(t, "product-WPLqz", query.Get("ec"))
	assert.Equal(t, "purchased", query.Get("ea"))
	assert.Equal(t, "purchased a product", query.Get("el"))
	assert.Equal(t, "19900", query.Get("ev"))
	assert.Equal(t, "845139552.1599939181", query.Get("cid"))
	assert.Equal(t, "1", query.Get("aip"))
	assert.Equal(t, DefaultDataSource, query.Get("ds"))
	assert.NotEmpty(t, query.Get("qt"))
}

func TestSendIgnoresCollectorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	tracker := NewTracker(Config{BaseURL: server.URL})
	err := tracker.Send(context.Background(), &Event{Category: "product-x"})
	assert.NoError(t, err)
}

func TestSendDebugEndpoint(t *testing.T) {
	var path string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		w.Write([]byte(`{"hitParsingResult":[{"valid":true}]}`))
	}))
	defer server.Close()

	tracker := NewTracker(Config{BaseURL: server.URL + "/", Debug: true})
	assert.Equal(t, server.URL+"/debug/collect", tracker.Endpoint())

	err := tracker.Send(context.Background(), &Event{Category: "product-x"})
	assert.NoError(t, err)
	assert.Equal(t, "/debug/collect", path)
}

// An endless response body that counts what the tracker reads from it.
type endlessBody struct {
	read   int64
	closed bool
}

func (body *endlessBody) Read(p []byte) (int, error) {
	for i := range p {
		p[i] = 'x'
	}
	body.read += int64(len(p))
	return len(p), nil
}

func (body *endlessBody) Close() error {
	body.closed = true
	return nil
}

type bodyTransport struct {
	body io.ReadCloser
}

func (transport bodyTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	return &http.Response{StatusCode: http.StatusOK, Body: transport.body, Header: http.Header{}, Request: req}, nil
}

func TestSendBoundsResponseRead(t *testing.T) {
	for _, debug := range []bool{false, true} {
		t.Run("debug="+strconv.FormatBool(debug), func(t *testing.T) {
			body := &endlessBody{}
			tracker := NewTracker(Config{Debug: debug, Timeout: time.Second})
			tracker.client.Transport = bodyTransport{body: body}

			err := tracker.Send(context.Background(), &Event{Category: "product-x"})
			require.NoError(t, err)

			assert.True(t, body.closed)
			assert.Equal(t, int64(maxResponseBytes), body.read)
		})
	}
}

func TestSendTransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	tracker := NewTracker(Config{BaseURL: server.URL, Timeout: time.Second})
	err := tracker.Send(context.Background(), &Event{})
	assert.Error(t, err)
}

func TestSendTimeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	tracker := NewTracker(Config{BaseURL: server.URL, Timeout: 50 * time.Millisecond})
	err := tracker.Send(context.Background(), &Event{})
	assert.Error(t, err)
}
