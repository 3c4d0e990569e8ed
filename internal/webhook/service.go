package webhook

import (
	"context"
	"fmt"

	"github.com/grwebhook/grwebhook/pkg/analytics"
	"github.com/grwebhook/grwebhook/pkg/archive"
	"github.com/grwebhook/grwebhook/pkg/store"
	"github.com/grwebhook/grwebhook/pkg/streaming"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog/log"
)

// The handler and the clients behind it, built from settings.
type Service struct {
	Handler   *Handler
	Registry  *prometheus.Registry
	store     store.Store
	publisher streaming.Publisher
}

func NewService(ctx context.Context, settings *Settings) (*Service, error) {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	records, err := newStore(ctx, settings)
	if err != nil {
		return nil, err
	}

	opts := []Option{
		WithHealth(NewHealth(registry)),
		WithTimeout(settings.RequestTimeout),
	}

	if settings.ArchiveBucket != "" {
		a, err := archive.New(ctx, settings.ArchiveBucket, settings.ArchivePrefix, settings.ArchiveEndpoint)
		if err != nil {
			records.Close()
			return nil, fmt.Errorf("failed to initialise archive: %w", err)
		}
		opts = append(opts, WithArchive(a))
	}

	publisher, err := newPublisher(ctx, settings)
	if err != nil {
		records.Close()
		return nil, err
	}
	if publisher != nil {
		opts = append(opts, WithPublisher(publisher))
	}

	handler := NewHandler(
		NewAuthenticator(settings.SecretKey),
		records,
		analytics.NewTracker(settings.AnalyticsConfig()),
		opts...,
	)

	log.Info().
		Str("store", settings.StoreBackend).
		Str("table", settings.StoreTable).
		Str("publish", settings.PublishBackend).
		Bool("archive", settings.ArchiveBucket != "").
		Bool("debug", settings.Debug).
		Msg("service initialised")

	return &Service{
		Handler:   handler,
		Registry:  registry,
		store:     records,
		publisher: publisher,
	}, nil
}

func (service *Service) Close() {
	if service.publisher != nil {
		service.publisher.Close()
	}
	service.store.Close()
}

func newStore(ctx context.Context, settings *Settings) (store.Store, error) {
	switch settings.StoreBackend {
	case BackendPostgres:
		postgres, err := store.NewPostgres(ctx, settings.DatabaseURL, settings.StoreTable)
		if err != nil {
			return nil, err
		}
		if err := postgres.Migrate(ctx); err != nil {
			postgres.Close()
			return nil, err
		}
		return postgres, nil
	case BackendMemory:
		return store.NewMemory(), nil
	default:
		dynamo, err := store.NewDynamo(ctx, settings.StoreTable, settings.DynamoDBEndpoint)
		if err != nil {
			return nil, fmt.Errorf("failed to initialise dynamodb: %w", err)
		}
		return dynamo, nil
	}
}

// Nil when publishing is disabled.
func newPublisher(ctx context.Context, settings *Settings) (streaming.Publisher, error) {
	switch settings.PublishBackend {
	case PublishKafka:
		return streaming.NewKafka(settings.KafkaBrokers, settings.KafkaTopic)
	case PublishRabbit:
		return streaming.NewRabbit(settings.RabbitURL, settings.RabbitQueue)
	case PublishSQS:
		return streaming.NewSQS(ctx, settings.SQSQueueURL)
	default:
		return nil, nil
	}
}
