package analytics

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	DefaultBaseURL    = "https://www.google-analytics.com"
	DefaultTrackingID = "UA-131042255-2"
	DefaultDataSource = "webhook"
	DefaultTimeout    = 5 * time.Second

	// Validation responses are a few hundred bytes of JSON.
	maxResponseBytes = 64 << 10
)

type Config struct {
	BaseURL    string
	TrackingID string
	DataSource string        // ds, identifies this service as the hit source
	Debug      bool          // Send to the validation endpoint and log its response
	Timeout    time.Duration // Bound on the whole request
}

// Sends events to a Measurement Protocol collector.
type Tracker struct {
	client *http.Client
	config Config
}

func NewTracker(cfg Config) *Tracker {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.TrackingID == "" {
		cfg.TrackingID = DefaultTrackingID
	}
	if cfg.DataSource == "" {
		cfg.DataSource = DefaultDataSource
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	return &Tracker{
		client: &http.Client{Timeout: cfg.Timeout},
		config: cfg,
	}
}

// The collect endpoint, or its debug counterpart in debug mode.
func (tracker *Tracker) Endpoint() string {
	endpoint := strings.TrimRight(tracker.config.BaseURL, "/")
	if tracker.config.Debug {
		endpoint += "/debug"
	}
	return endpoint + "/collect"
}

// Encodes the event as Measurement Protocol v1 hit parameters.
func (tracker *Tracker) Values(event *Event) url.Values {
	return url.Values{
		"v":   {"1"},
		"t":   {"event"},
		"tid": {tracker.config.TrackingID},
		"ec":  {event.Category},
		"ea":  {event.Action},
		"el":  {event.Label},
		"ev":  {strconv.FormatInt(event.Value, 10)},
		"cid": {event.ClientID},
		"qt":  {strconv.FormatInt(event.QueueTime, 10)},
		"aip": {"1"}, // The hit always comes from this server's address
		"ds":  {tracker.config.DataSource},
	}
}

// Posts the event to the collector. The collector answers 200 for valid and invalid hits alike,
// so only transport failures are reported.
func (tracker *Tracker) Send(ctx context.Context, event *Event) error {
	ctx, cancel := context.WithTimeout(ctx, tracker.config.Timeout)
	defer cancel()

	target := tracker.Endpoint() + "?" + tracker.Values(event).Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, nil)
	if err != nil {
		return fmt.Errorf("failed to create collector request: %w", err)
	}

	start := time.Now()
	res, err := tracker.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send event to collector: %w", err)
	}
	defer res.Body.Close()

	// The body only matters to the validation endpoint. Otherwise drain it so the connection is reused.
	if !tracker.config.Debug {
		if _, err := io.Copy(io.Discard, io.LimitReader(res.Body, maxResponseBytes)); err != nil {
			log.Warn().Err(err).Msg("failed to drain collector response")
		}
		return nil
	}

	body, err := io.ReadAll(io.LimitReader(res.Body, maxResponseBytes))
	if err != nil {
		log.Warn().Err(err).Msg("failed to read collector response")
		return nil
	}

	log.Info().Int("status", res.StatusCode).Dur("took", time.Since(start)).Str("response", string(body)).Msg("collector validation response")

	return nil
}
