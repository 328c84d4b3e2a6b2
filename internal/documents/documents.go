// Package documents loads registration attachments from local paths or any
// storage URL understood by afs.
package documents

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/viant/afs"
)

// DefaultMaxSize caps a single attachment.
const DefaultMaxSize int64 = 10 << 20

// Attachment is a file selected for a form field.
type Attachment struct {
	Field       string
	Filename    string
	ContentType string
	Size        int64
	Data        []byte
}

// IsImage reports whether the declared media type is an image.
func (a *Attachment) IsImage() bool {
	return a != nil && strings.HasPrefix(a.ContentType, "image/")
}

// IsPDF reports whether the declared media type is a PDF document.
func (a *Attachment) IsPDF() bool {
	return a != nil && a.ContentType == "application/pdf"
}

// Accepted reports whether the attachment may be stored in a file field.
func (a *Attachment) Accepted() bool {
	return a.IsImage() || a.IsPDF()
}

// Loader reads attachments through an afs service.
type Loader struct {
	fs      afs.Service
	maxSize int64
}

// Option customises a Loader.
type Option func(*Loader)

// WithService swaps the storage service.
func WithService(fs afs.Service) Option {
	return func(l *Loader) {
		if fs != nil {
			l.fs = fs
		}
	}
}

// WithMaxSize overrides the size cap. Non-positive values keep the default.
func WithMaxSize(size int64) Option {
	return func(l *Loader) {
		if size > 0 {
			l.maxSize = size
		}
	}
}

// NewLoader builds a Loader backed by afs.New().
func NewLoader(opts ...Option) *Loader {
	l := &Loader{fs: afs.New(), maxSize: DefaultMaxSize}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Service exposes the underlying storage.
func (l *Loader) Service() afs.Service {
	return l.fs
}

// Load reads the object at location. The Field of the result is left blank.
func (l *Loader) Load(ctx context.Context, location string) (*Attachment, error) {
	location = strings.TrimSpace(location)
	if location == "" {
		return nil, fmt.Errorf("documents: location is required")
	}
	exists, err := l.fs.Exists(ctx, location)
	if err != nil {
		return nil, fmt.Errorf("documents: check %s: %w", location, err)
	}
	if !exists {
		return nil, fmt.Errorf("documents: %s not found", location)
	}
	object, err := l.fs.Object(ctx, location)
	if err != nil {
		return nil, fmt.Errorf("documents: stat %s: %w", location, err)
	}
	if object.IsDir() {
		return nil, fmt.Errorf("documents: %s is a directory", location)
	}
	if object.Size() > l.maxSize {
		return nil, fmt.Errorf("documents: %s is %d bytes, limit is %d", location, object.Size(), l.maxSize)
	}
	data, err := l.fs.DownloadWithURL(ctx, location)
	if err != nil {
		return nil, fmt.Errorf("documents: read %s: %w", location, err)
	}
	name := object.Name()
	if name == "" {
		name = filepath.Base(location)
	}
	return &Attachment{
		Filename:    name,
		ContentType: ContentType(name),
		Size:        int64(len(data)),
		Data:        data,
	}, nil
}

// LoadField reads location and tags the attachment with field.
func (l *Loader) LoadField(ctx context.Context, field, location string) (*Attachment, error) {
	att, err := l.Load(ctx, location)
	if err != nil {
		return nil, err
	}
	att.Field = field
	return att, nil
}

// ContentType determines the declared media type of a file from its extension.
func ContentType(filename string) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	case ".svg":
		return "image/svg+xml"
	case ".bmp":
		return "image/bmp"
	case ".pdf":
		return "application/pdf"
	case ".txt":
		return "text/plain"
	case ".json":
		return "application/json"
	case ".zip":
		return "application/zip"
	case ".doc":
		return "application/msword"
	case ".docx":
		return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	default:
		return "application/octet-stream"
	}
}
