package webhook

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/grwebhook/grwebhook/pkg/analytics"
	"github.com/grwebhook/grwebhook/pkg/archive"
	"github.com/grwebhook/grwebhook/pkg/store"
	"github.com/grwebhook/grwebhook/pkg/streaming"
	"github.com/spf13/viper"
)

const (
	BackendDynamo   = "dynamodb"
	BackendPostgres = "postgres"
	BackendMemory   = "memory"

	PublishNone   = "none"
	PublishKafka  = "kafka"
	PublishRabbit = "rabbit"
	PublishSQS    = "sqs"
)

// Process configuration, read once from the environment and injected into every component.
type Settings struct {
	SecretKey      string        `mapstructure:"SECRET_KEY" validate:"required"`
	Debug          bool          `mapstructure:"DEBUG"`
	ListenAddr     string        `mapstructure:"LISTEN_ADDR" validate:"required"`
	WebhookPath    string        `mapstructure:"WEBHOOK_PATH" validate:"required,startswith=/"`
	RequestTimeout time.Duration `mapstructure:"REQUEST_TIMEOUT" validate:"gt=0"`

	StoreBackend     string `mapstructure:"STORE_BACKEND" validate:"oneof=dynamodb postgres memory"`
	StoreTable       string `mapstructure:"STORE_TABLE" validate:"required"`
	DynamoDBEndpoint string `mapstructure:"DYNAMODB_ENDPOINT" validate:"omitempty,url"`
	DatabaseURL      string `mapstructure:"DATABASE_URL" validate:"required_if=StoreBackend postgres"`

	AnalyticsURL        string `mapstructure:"ANALYTICS_URL" validate:"required,url"`
	AnalyticsTrackingID string `mapstructure:"ANALYTICS_TRACKING_ID" validate:"required"`
	AnalyticsDataSource string `mapstructure:"ANALYTICS_DATA_SOURCE" validate:"required"`

	ArchiveBucket   string `mapstructure:"ARCHIVE_BUCKET"`
	ArchivePrefix   string `mapstructure:"ARCHIVE_PREFIX"`
	ArchiveEndpoint string `mapstructure:"ARCHIVE_ENDPOINT" validate:"omitempty,url"`

	PublishBackend string `mapstructure:"PUBLISH_BACKEND" validate:"oneof=none kafka rabbit sqs"`
	KafkaBrokers   string `mapstructure:"KAFKA_BROKERS" validate:"required_if=PublishBackend kafka"`
	KafkaTopic     string `mapstructure:"KAFKA_TOPIC"`
	RabbitURL      string `mapstructure:"RABBIT_URL" validate:"required_if=PublishBackend rabbit"`
	RabbitQueue    string `mapstructure:"RABBIT_QUEUE"`
	SQSQueueURL    string `mapstructure:"SQS_QUEUE_URL" validate:"required_if=PublishBackend sqs"`
}

var defaults = map[string]any{
	"SECRET_KEY":            "",
	"DEBUG":                 false,
	"LISTEN_ADDR":           ":8080",
	"WEBHOOK_PATH":          "/webhook",
	"REQUEST_TIMEOUT":       5 * time.Second,
	"STORE_BACKEND":         BackendDynamo,
	"STORE_TABLE":           store.DefaultTable,
	"DYNAMODB_ENDPOINT":     "",
	"DATABASE_URL":          "",
	"ANALYTICS_URL":         analytics.DefaultBaseURL,
	"ANALYTICS_TRACKING_ID": analytics.DefaultTrackingID,
	"ANALYTICS_DATA_SOURCE": analytics.DefaultDataSource,
	"ARCHIVE_BUCKET":        "",
	"ARCHIVE_PREFIX":        archive.DefaultPrefix,
	"ARCHIVE_ENDPOINT":      "",
	"PUBLISH_BACKEND":       PublishNone,
	"KAFKA_BROKERS":         "",
	"KAFKA_TOPIC":           streaming.DefaultTopic,
	"RABBIT_URL":            "",
	"RABBIT_QUEUE":          streaming.DefaultQueue,
	"SQS_QUEUE_URL":         "",
}

var validate = newValidator()

// Validation errors report fields by their environment variable.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		return field.Tag.Get("mapstructure")
	})
	return v
}

/*
Reads settings from the environment. Every key has a default so viper can unmarshal keys that are
only set in the environment.

Replays do not authenticate, so the secret is only required when requireSecret is set.
*/
func LoadSettings(requireSecret bool) (*Settings, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.AutomaticEnv()

	settings := &Settings{}
	if err := v.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("failed to read settings: %w", err)
	}

	settings.StoreBackend = strings.ToLower(settings.StoreBackend)
	settings.PublishBackend = strings.ToLower(settings.PublishBackend)

	if err := settings.Validate(requireSecret); err != nil {
		return nil, err
	}

	return settings, nil
}

// Checks the settings against their constraints. Errors name the offending variables, never their values.
func (settings *Settings) Validate(requireSecret bool) error {
	var err error
	if requireSecret {
		err = validate.Struct(settings)
	} else {
		err = validate.StructExcept(settings, "SecretKey")
	}
	if err == nil {
		return nil
	}

	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return fmt.Errorf("failed to validate settings: %w", err)
	}

	fields := make([]string, 0, len(validationErrors))
	for _, fieldErr := range validationErrors {
		fields = append(fields, fmt.Sprintf("%s (%s)", fieldErr.Field(), fieldErr.Tag()))
	}
	return fmt.Errorf("invalid settings: %s", strings.Join(fields, ", "))
}

func (settings *Settings) AnalyticsConfig() analytics.Config {
	return analytics.Config{
		BaseURL:    settings.AnalyticsURL,
		TrackingID: settings.AnalyticsTrackingID,
		DataSource: settings.AnalyticsDataSource,
		Debug:      settings.Debug,
		Timeout:    settings.RequestTimeout,
	}
}
