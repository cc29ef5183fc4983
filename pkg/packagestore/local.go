package packagestore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ethpandaops/uptimeoor/pkg/config"
	"github.com/ethpandaops/uptimeoor/pkg/models"
)

// Compile-time interface check.
var _ Store = (*localStore)(nil)

type localStore struct {
	log logrus.FieldLogger
	dir string
	keyer
}

func newLocalStore(log logrus.FieldLogger, cfg *config.LocalStorageConfig, keys keyer) *localStore {
	return &localStore{
		log:   log.WithField("component", "packagestore-local"),
		dir:   cfg.Dir,
		keyer: keys,
	}
}

// Preflight verifies the directory is writable.
func (s *localStore) Preflight(_ context.Context) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("creating package directory %s: %w", s.dir, err)
	}

	probe := filepath.Join(s.dir, ".uptimeoor-write-test")
	content := fmt.Sprintf("uptimeoor write test: %s", time.Now().UTC().Format(time.RFC3339))

	if err := os.WriteFile(probe, []byte(content), 0o644); err != nil {
		return fmt.Errorf("writing test file to %s: %w", s.dir, err)
	}

	return os.Remove(probe)
}

// Put writes the package document to {dir}/{prefix}/{projectID}/{id}.json.
// The file is written to a temporary name first so readers never observe a
// partial document.
func (s *localStore) Put(_ context.Context, file *models.PackageFile) error {
	data, err := s.encode(file)
	if err != nil {
		return err
	}

	p := s.path(file.ProjectID, file.ID)

	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return fmt.Errorf("creating directory for %s: %w", file.ID, err)
	}

	tmp := p + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("writing package file %s: %w", file.ID, err)
	}

	if err := os.Rename(tmp, p); err != nil {
		_ = os.Remove(tmp)

		return fmt.Errorf("renaming package file %s: %w", file.ID, err)
	}

	s.log.WithFields(logrus.Fields{
		"id":   file.ID,
		"size": file.Size,
	}).Debug("Stored package file")

	return nil
}

// Get reads the package document for id.
func (s *localStore) Get(_ context.Context, projectID, id string) (*models.PackageFile, error) {
	p := s.path(projectID, id)

	data, err := os.ReadFile(p) //nolint:gosec // path built from ids under the configured dir
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%s/%s: %w", projectID, id, ErrNotFound)
		}

		return nil, fmt.Errorf("reading file %s: %w", p, err)
	}

	return s.decode(data)
}

func (s *localStore) path(projectID, id string) string {
	return filepath.Join(s.dir, filepath.FromSlash(s.objectKey(projectID, id)))
}
