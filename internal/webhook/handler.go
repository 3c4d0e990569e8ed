package webhook

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/grwebhook/grwebhook/pkg/analytics"
	"github.com/grwebhook/grwebhook/pkg/sale"
	"github.com/grwebhook/grwebhook/pkg/store"
	"github.com/grwebhook/grwebhook/pkg/streaming"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"
)

const (
	MessageSuccess           = "Store write and analytics POST both appear to be successful"
	MessageUnauthorized      = "Please authenticate"
	MessageMethodNotAllowed  = "Method not allowed"
	MessageMissingPermalink  = "Recorded, but the sale has no product permalink to track"
	MessageRepeatedPermalink = "Recorded, but the sale has more than one product permalink to track"

	StepStore     = "store write"
	StepAnalytics = "analytics POST"
	StepArchive   = "archive"
	StepPublish   = "publish"
)

// A webhook call, independent of how it arrived.
type Request struct {
	Method     string
	Path       string
	Query      url.Values
	Body       string
	RemoteAddr string
}

type Response struct {
	StatusCode int
	Body       string
}

type Sender interface {
	Send(ctx context.Context, event *analytics.Event) error
}

type Archiver interface {
	Put(ctx context.Context, id string, receivedAt time.Time, body string) (string, error)
}

// Runs one webhook call through authentication, normalization and dispatch.
type Handler struct {
	auth      *Authenticator
	store     store.Store
	tracker   Sender
	archive   Archiver
	publisher streaming.Publisher
	health    *Health
	timeout   time.Duration
	now       func() time.Time
}

type Option func(*Handler)

func WithArchive(archive Archiver) Option {
	return func(handler *Handler) { handler.archive = archive }
}

func WithPublisher(publisher streaming.Publisher) Option {
	return func(handler *Handler) { handler.publisher = publisher }
}

func WithHealth(health *Health) Option {
	return func(handler *Handler) { handler.health = health }
}

func WithTimeout(timeout time.Duration) Option {
	return func(handler *Handler) { handler.timeout = timeout }
}

func WithClock(now func() time.Time) Option {
	return func(handler *Handler) { handler.now = now }
}

func NewHandler(auth *Authenticator, records store.Store, tracker Sender, opts ...Option) *Handler {
	handler := &Handler{
		auth:    auth,
		store:   records,
		tracker: tracker,
		timeout: 5 * time.Second,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(handler)
	}
	if handler.health == nil {
		handler.health = NewHealth(prometheus.NewRegistry())
	}
	return handler
}

// Handles a single webhook call. Store, archive, publish and analytics failures are logged and
// reported in the response body but do not fail the call.
func (handler *Handler) Handle(ctx context.Context, req Request) Response {
	id := uuid.NewString()
	log := zlog.With().Str("request_id", id).Logger()

	if req.Method != http.MethodPost {
		handler.health.Received.WithLabelValues(OutcomeMethodNotAllowed).Inc()
		return Response{StatusCode: http.StatusMethodNotAllowed, Body: MessageMethodNotAllowed}
	}

	payload, parseErr := sale.ParsePayload(req.Body)

	// Field names only. Values carry the buyer's details and the secret.
	log.Info().
		Str("method", req.Method).
		Str("path", req.Path).
		Str("remote_addr", req.RemoteAddr).
		Int("size", len(req.Body)).
		Strs("fields", payload.Keys()).
		Msg("received webhook")

	if err := handler.auth.Authenticate(req.Query, payload); err != nil {
		log.Warn().Str("remote_addr", req.RemoteAddr).Msg("failed to authenticate webhook")
		handler.health.Received.WithLabelValues(OutcomeUnauthorized).Inc()
		return Response{StatusCode: http.StatusForbidden, Body: MessageUnauthorized}
	}

	receivedAt := handler.now()

	if parseErr != nil {
		return handler.invalid(log, &sale.NormalizeError{Errors: []error{parseErr}})
	}

	var failed []string
	if handler.archive != nil {
		if err := handler.archivePayload(ctx, log, id, receivedAt, payload); err != nil {
			failed = append(failed, StepArchive)
		}
	}

	record, err := payload.Record(receivedAt)
	if err != nil {
		return handler.invalid(log, err)
	}

	return handler.dispatch(ctx, log, id, record, failed)
}

// Normalizes and dispatches a body without authenticating it. Used to replay archived payloads.
func (handler *Handler) Replay(ctx context.Context, body string) Response {
	id := uuid.NewString()
	log := zlog.With().Str("request_id", id).Logger()

	record, err := sale.Normalize(body, handler.now())
	if err != nil {
		return handler.invalid(log, err)
	}

	return handler.dispatch(ctx, log, id, record, nil)
}

// Writes, publishes and tracks a normalized record.
func (handler *Handler) dispatch(ctx context.Context, log zerolog.Logger, id string, record *sale.Record, failed []string) Response {
	log = log.With().Int64("timestamp", record.Timestamp).Logger()

	stored := true
	if err := handler.write(ctx, record); err != nil {
		log.Error().Err(err).Msg("failed to write record")
		failed = append(failed, StepStore)
		stored = false
	}

	if stored && handler.publisher != nil {
		if err := handler.publish(ctx, id, record); err != nil {
			log.Error().Err(err).Msg("failed to publish record")
			failed = append(failed, StepPublish)
		}
	}

	event, err := analytics.NewEvent(record, handler.now())
	if err != nil {
		log.Warn().Err(err).Msg("failed to build analytics event")
		handler.health.Received.WithLabelValues(OutcomeUnprocessable).Inc()

		message := MessageMissingPermalink
		var malformed *sale.MalformedFieldError
		if errors.As(err, &malformed) {
			message = MessageRepeatedPermalink
		}
		return Response{StatusCode: http.StatusUnprocessableEntity, Body: withFailures(message, failed)}
	}

	if err := handler.track(ctx, event); err != nil {
		log.Error().Err(err).Msg("failed to send analytics event")
		failed = append(failed, StepAnalytics)
	}

	if len(failed) > 0 {
		handler.health.Received.WithLabelValues(OutcomePartial).Inc()
		return Response{StatusCode: http.StatusOK, Body: withFailures("Received", failed)}
	}

	log.Info().Str("cid", event.ClientID).Msg("recorded sale")
	handler.health.Received.WithLabelValues(OutcomeOK).Inc()
	return Response{StatusCode: http.StatusOK, Body: MessageSuccess}
}

func (handler *Handler) invalid(log zerolog.Logger, err error) Response {
	var fields []string
	var normalizeErr *sale.NormalizeError
	if errors.As(err, &normalizeErr) {
		fields = normalizeErr.Fields()
	}

	log.Warn().Err(err).Strs("fields", fields).Msg("failed to normalize payload")
	handler.health.Received.WithLabelValues(OutcomeInvalid).Inc()
	return Response{
		StatusCode: http.StatusBadRequest,
		Body:       fmt.Sprintf("Invalid payload: %s", strings.Join(fields, ", ")),
	}
}

func (handler *Handler) write(ctx context.Context, record *sale.Record) error {
	ctx, cancel := context.WithTimeout(ctx, handler.timeout)
	defer cancel()

	err := handler.store.Upsert(ctx, record)
	handler.health.StoreWrites.WithLabelValues(result(err)).Inc()
	return err
}

func (handler *Handler) publish(ctx context.Context, id string, record *sale.Record) error {
	ctx, cancel := context.WithTimeout(ctx, handler.timeout)
	defer cancel()

	err := handler.publisher.Publish(ctx, streaming.NewSaleRecorded(id, record, handler.now()))
	handler.health.Published.WithLabelValues(result(err)).Inc()
	return err
}

func (handler *Handler) track(ctx context.Context, event *analytics.Event) error {
	err := handler.tracker.Send(ctx, event)
	handler.health.AnalyticsSends.WithLabelValues(result(err)).Inc()
	return err
}

// The archived body never contains the secret.
func (handler *Handler) archivePayload(ctx context.Context, log zerolog.Logger, id string, receivedAt time.Time, payload sale.Payload) error {
	key, err := handler.archive.Put(ctx, id, receivedAt, payload.Encode(sale.FieldSecretKey))
	handler.health.ArchivePuts.WithLabelValues(result(err)).Inc()
	if err != nil {
		log.Error().Err(err).Msg("failed to archive payload")
		return err
	}
	log.Debug().Str("key", key).Msg("archived payload")
	return nil
}

func withFailures(message string, failed []string) string {
	if len(failed) == 0 {
		return message
	}
	return fmt.Sprintf("%s, but the following steps failed: %s", message, strings.Join(failed, ", "))
}
