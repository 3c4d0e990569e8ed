package archive

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/klauspost/compress/gzip"
)

const (
	DefaultPrefix = "raw"
	Extension     = ".form.gz"
	uploadTimeout = 5 * time.Second
)

type PutObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Stores raw webhook bodies in S3, gzip compressed, one object per request.
type Archive struct {
	client PutObjectAPI
	bucket string
	prefix string
}

// Creates an archive using the default AWS credential chain. A non-empty endpoint overrides the
// service endpoint and switches to path-style addressing.
func New(ctx context.Context, bucket string, prefix string, endpoint string) (*Archive, error) {
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		}
	})

	return NewWithClient(client, bucket, prefix), nil
}

func NewWithClient(client PutObjectAPI, bucket string, prefix string) *Archive {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Archive{
		client: client,
		bucket: bucket,
		prefix: strings.Trim(prefix, "/"),
	}
}

// The object key for a body received at the given time: <prefix>/YYYY/MM/DD/<id>.form.gz
func (archive *Archive) Key(id string, receivedAt time.Time) string {
	return path.Join(archive.prefix, receivedAt.UTC().Format("2006/01/02"), id+Extension)
}

// Compresses and uploads a body. Returns the object key.
func (archive *Archive) Put(ctx context.Context, id string, receivedAt time.Time, body string) (string, error) {
	data, err := Compress([]byte(body))
	if err != nil {
		return "", err
	}

	key := archive.Key(id, receivedAt)

	ctx, cancel := context.WithTimeout(ctx, uploadTimeout)
	defer cancel()

	_, err = archive.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:          aws.String(archive.bucket),
		Key:             aws.String(key),
		Body:            bytes.NewReader(data),
		ContentType:     aws.String("application/x-www-form-urlencoded"),
		ContentEncoding: aws.String("gzip"),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload %s to %s: %w", key, archive.bucket, err)
	}

	return key, nil
}

func Compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	writer := gzip.NewWriter(&buf)
	if _, err := writer.Write(data); err != nil {
		return nil, fmt.Errorf("failed to compress body: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to compress body: %w", err)
	}
	return buf.Bytes(), nil
}

// Reads a body back, decompressing it when the name ends in .gz.
func Read(name string, reader io.Reader) ([]byte, error) {
	if !strings.HasSuffix(name, ".gz") {
		return io.ReadAll(reader)
	}

	gz, err := gzip.NewReader(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to open gzip stream: %w", err)
	}
	defer gz.Close()

	return io.ReadAll(gz)
}
