package documents

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/afs"
	"github.com/viant/afs/file"
)

func TestLoadFromMemoryURL(t *testing.T) {
	ctx := context.Background()
	fs := afs.New()
	location := "mem://localhost/onboard/docs/npwp.pdf"
	require.NoError(t, fs.Upload(ctx, location, file.DefaultFileOsMode, bytes.NewReader([]byte("%PDF-1.4"))))

	loader := NewLoader(WithService(fs))
	att, err := loader.LoadField(ctx, "npwp", location)
	require.NoError(t, err)
	assert.Equal(t, "npwp", att.Field)
	assert.Equal(t, "npwp.pdf", att.Filename)
	assert.Equal(t, "application/pdf", att.ContentType)
	assert.EqualValues(t, 8, att.Size)
	assert.True(t, att.Accepted())
}

func TestLoadLocalFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logo.PNG")
	require.NoError(t, os.WriteFile(path, []byte("png-bytes"), 0644))

	att, err := NewLoader().Load(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "image/png", att.ContentType)
	assert.True(t, att.IsImage())
	assert.Equal(t, []byte("png-bytes"), att.Data)
}

func TestLoadRejectsOversizedAndMissing(t *testing.T) {
	ctx := context.Background()
	fs := afs.New()
	location := "mem://localhost/onboard/docs/big.pdf"
	require.NoError(t, fs.Upload(ctx, location, file.DefaultFileOsMode, bytes.NewReader(make([]byte, 64))))

	loader := NewLoader(WithService(fs), WithMaxSize(16))
	_, err := loader.Load(ctx, location)
	assert.ErrorContains(t, err, "limit is 16")

	_, err = loader.Load(ctx, "mem://localhost/onboard/docs/missing.pdf")
	assert.ErrorContains(t, err, "not found")

	_, err = loader.Load(ctx, "  ")
	assert.ErrorContains(t, err, "location is required")
}

func TestLoadRejectsDirectory(t *testing.T) {
	_, err := NewLoader().Load(context.Background(), t.TempDir())
	assert.ErrorContains(t, err, "is a directory")
}

func TestContentTypeAndAcceptance(t *testing.T) {
	cases := map[string]bool{
		"scan.jpeg":  true,
		"scan.webp":  true,
		"deed.pdf":   true,
		"notes.txt":  false,
		"archive.gz": false,
		"README":     false,
	}
	for name, accepted := range cases {
		att := &Attachment{Filename: name, ContentType: ContentType(name)}
		assert.Equal(t, accepted, att.Accepted(), name)
	}
	var nilAtt *Attachment
	assert.False(t, nilAtt.Accepted())
}
