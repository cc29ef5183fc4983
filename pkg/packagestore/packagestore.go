package packagestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/docker/go-units"
	"github.com/sirupsen/logrus"

	"github.com/ethpandaops/uptimeoor/pkg/config"
	"github.com/ethpandaops/uptimeoor/pkg/models"
)

var (
	// ErrNotFound is returned when a package file is not stored.
	ErrNotFound = errors.New("package file not found")

	// ErrTooLarge is returned when a package file exceeds the size limit.
	ErrTooLarge = errors.New("package file too large")

	// ErrNotConfigured is returned when no storage backend is enabled.
	ErrNotConfigured = errors.New("no package storage backend enabled")
)

// Store keeps package files in a storage backend (local filesystem or S3).
type Store interface {
	// Preflight verifies that the backend is reachable and writable.
	Preflight(ctx context.Context) error

	// Put stores a package file, replacing any previous version.
	Put(ctx context.Context, file *models.PackageFile) error

	// Get loads a stored package file. ErrNotFound is returned when it does
	// not exist.
	Get(ctx context.Context, projectID, id string) (*models.PackageFile, error)
}

// New creates the Store for whichever backend cfg enables.
func New(log logrus.FieldLogger, cfg *config.StorageConfig) (Store, error) {
	maxSize, err := cfg.MaxPackageBytes()
	if err != nil {
		return nil, err
	}

	keys := keyer{prefix: cfg.Prefix, maxSize: maxSize}

	switch {
	case cfg.S3 != nil && cfg.S3.Enabled:
		return newS3Store(log, cfg.S3, keys), nil
	case cfg.Local != nil && cfg.Local.Enabled:
		return newLocalStore(log, cfg.Local, keys), nil
	default:
		return nil, ErrNotConfigured
	}
}

// keyer holds what both backends share: object naming and the
// document codec.
type keyer struct {
	prefix  string
	maxSize int64
}

// objectKey returns "<prefix>/<projectID>/<id>.json".
func (k keyer) objectKey(projectID, id string) string {
	prefix := strings.Trim(k.prefix, "/")
	if prefix == "" {
		prefix = config.DefaultStoragePrefix
	}

	return prefix + "/" + projectID + "/" + id + ".json"
}

// encode validates file and renders its stored document.
func (k keyer) encode(file *models.PackageFile) ([]byte, error) {
	if k.maxSize > 0 && file.Size > k.maxSize {
		return nil, fmt.Errorf("%w: %s is %s, limit is %s", ErrTooLarge, file.ID,
			units.HumanSize(float64(file.Size)), units.HumanSize(float64(k.maxSize)))
	}

	if err := file.Validate(); err != nil {
		return nil, err
	}

	doc, err := models.ForDB(file)
	if err != nil {
		return nil, err
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encoding package file %s: %w", file.ID, err)
	}

	return data, nil
}

func (k keyer) decode(data []byte) (*models.PackageFile, error) {
	var doc models.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decoding package document: %w", err)
	}

	return models.FromDocument[models.PackageFile](doc)
}
