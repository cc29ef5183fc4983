package models

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/ethpandaops/uptimeoor/pkg/idgen"
)

// DefaultPackageContentType is used when a package file has no content type.
const DefaultPackageContentType = "application/octet-stream"

// PackageFile is an uploaded test bundle a routine executes.
type PackageFile struct {
	ID          string    `json:"id" yaml:"id" validate:"required,startswith=pf-"`
	ProjectID   string    `json:"projectId" yaml:"projectId" validate:"required"`
	RoutineID   string    `json:"routineId,omitempty" yaml:"routineId,omitempty"`
	Name        string    `json:"name" yaml:"name" validate:"required,max=255"`
	ContentType string    `json:"contentType" yaml:"contentType" validate:"required"`
	Size        int64     `json:"size" yaml:"size" validate:"min=0"`
	SHA256      string    `json:"sha256" yaml:"sha256" validate:"required,len=64,hexadecimal"`
	Content     []byte    `json:"content" yaml:"-"`
	CreatedAt   time.Time `json:"createdAt" yaml:"createdAt" validate:"required"`
	UpdatedAt   time.Time `json:"updatedAt" yaml:"updatedAt" validate:"required"`
}

var _ Entity = (*PackageFile)(nil)

// NewPackageFile creates a package file, deriving its size and checksum
// from the content.
func NewPackageFile(in PackageFile, now time.Time) (*PackageFile, error) {
	f := in
	if strings.TrimSpace(f.ID) == "" {
		f.ID = idgen.New(idgen.PrefixPackageFile)
	}

	f.Size = int64(len(f.Content))
	f.SHA256 = Checksum(f.Content)

	stamp(&f.CreatedAt, &f.UpdatedAt, now)
	f.Normalize()

	if err := f.Validate(); err != nil {
		return nil, err
	}

	return &f, nil
}

// Checksum returns the hex sha256 of content.
func Checksum(content []byte) string {
	sum := sha256.Sum256(content)

	return hex.EncodeToString(sum[:])
}

// Normalize implements Entity.
func (f *PackageFile) Normalize() {
	f.ID = strings.TrimSpace(f.ID)
	f.ProjectID = strings.TrimSpace(f.ProjectID)
	f.RoutineID = strings.TrimSpace(f.RoutineID)
	f.Name = strings.TrimSpace(f.Name)
	f.ContentType = strings.TrimSpace(f.ContentType)
	f.SHA256 = strings.ToLower(strings.TrimSpace(f.SHA256))

	if f.ContentType == "" {
		f.ContentType = DefaultPackageContentType
	}

	if f.Content == nil {
		f.Content = []byte{}
	}

	f.CreatedAt = normalizeTime(f.CreatedAt)
	f.UpdatedAt = normalizeTime(f.UpdatedAt)
}

// Validate implements Entity.
func (f *PackageFile) Validate() error {
	verr := validateStruct(f)

	if f.Size != int64(len(f.Content)) {
		verr.add("packageFile.size", "eqfield", "must equal the content length")
	}

	if f.SHA256 != "" && f.SHA256 != Checksum(f.Content) {
		verr.add("packageFile.sha256", "eqfield", "does not match the content")
	}

	return verr.orNil()
}
