package packagestore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/sirupsen/logrus"

	"github.com/ethpandaops/uptimeoor/pkg/config"
	"github.com/ethpandaops/uptimeoor/pkg/models"
)

// Compile-time interface check.
var _ Store = (*s3Store)(nil)

type s3Store struct {
	log    logrus.FieldLogger
	cfg    *config.S3StorageConfig
	client *s3.Client
	keyer
}

func newS3Store(log logrus.FieldLogger, cfg *config.S3StorageConfig, keys keyer) *s3Store {
	return &s3Store{
		log:    log.WithField("component", "packagestore-s3"),
		cfg:    cfg,
		client: newS3Client(cfg),
		keyer:  keys,
	}
}

// Preflight verifies S3 connectivity by writing a small test object.
func (s *s3Store) Preflight(ctx context.Context) error {
	content := fmt.Sprintf("uptimeoor write test: %s", time.Now().UTC().Format(time.RFC3339))

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.cfg.Bucket),
		Key:         aws.String(".uptimeoor-write-test"),
		Body:        strings.NewReader(content),
		ContentType: aws.String("text/plain"),
	})
	if err != nil {
		return fmt.Errorf("writing test object to s3://%s: %w", s.cfg.Bucket, err)
	}

	return nil
}

// Put uploads the package document.
func (s *s3Store) Put(ctx context.Context, file *models.PackageFile) error {
	data, err := s.encode(file)
	if err != nil {
		return err
	}

	key := s.objectKey(file.ProjectID, file.ID)

	s.log.WithFields(logrus.Fields{
		"key":    key,
		"bucket": s.cfg.Bucket,
	}).Debug("Uploading package file")

	if _, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.cfg.Bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	}); err != nil {
		return fmt.Errorf("PutObject %s: %w", key, err)
	}

	return nil
}

// Get downloads the package document for id.
func (s *s3Store) Get(ctx context.Context, projectID, id string) (*models.PackageFile, error) {
	key := s.objectKey(projectID, id)

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.cfg.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isS3NotFound(err) {
			return nil, fmt.Errorf("%s: %w", key, ErrNotFound)
		}

		return nil, fmt.Errorf("getting object %q: %w", key, err)
	}

	defer func() { _ = out.Body.Close() }()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("reading object %q: %w", key, err)
	}

	return s.decode(data)
}

func isS3NotFound(err error) bool {
	var nsk *s3types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}

	return strings.Contains(err.Error(), "NoSuchKey")
}

func newS3Client(cfg *config.S3StorageConfig) *s3.Client {
	return s3.New(s3.Options{}, func(o *s3.Options) {
		o.Region = cfg.Region
		if o.Region == "" {
			o.Region = "us-east-1"
		}

		if cfg.EndpointURL != "" {
			o.BaseEndpoint = aws.String(cfg.EndpointURL)
		}

		o.UsePathStyle = cfg.ForcePathStyle

		if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
			o.Credentials = credentials.NewStaticCredentialsProvider(
				cfg.AccessKeyID, cfg.SecretAccessKey, "",
			)
		}
	})
}
