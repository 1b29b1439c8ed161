package ingest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/mediclaim/constants"
	"github.com/joseph-ayodele/mediclaim/internal/common"
)

var (
	pdfBytes = []byte("%PDF-1.4\n1 0 obj\n<<>>\nendobj\n")
	pngBytes = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")
)

func TestDetectMIME(t *testing.T) {
	tests := []struct {
		name     string
		file     string
		declared string
		data     []byte
		want     string
	}{
		{"declared wins", "scan.bin", "application/pdf", nil, constants.MIMEPDF},
		{"declared with params", "scan", "image/PNG; q=1", nil, constants.MIMEPNG},
		{"octet-stream falls back to ext", "summary.JPG", "application/octet-stream", nil, constants.MIMEJPEG},
		{"sniffed pdf", "upload", "", pdfBytes, constants.MIMEPDF},
		{"sniffed png", "upload", "", pngBytes, constants.MIMEPNG},
		{"text rejected", "notes.txt", "text/plain", []byte("hello"), ""},
		{"declared gif beats png ext", "scan.png", "image/gif", pngBytes, ""},
		{"declared text beats pdf ext", "notes.pdf", "text/plain", pdfBytes, ""},
		{"declared heic beats jpg ext", "scan.jpg", "image/heic", nil, ""},
		{"empty declared falls back to ext", "scan.png", "  ", nil, constants.MIMEPNG},
		{"octet-stream sniffed", "upload", "application/octet-stream", pdfBytes, constants.MIMEPDF},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectMIME(tt.file, tt.declared, tt.data))
		})
	}
}

func TestNewDocument(t *testing.T) {
	doc, err := NewDocument("/tmp/x/summary.pdf", "", pdfBytes)
	require.NoError(t, err)
	assert.Equal(t, "summary.pdf", doc.Name)
	assert.Equal(t, constants.MIMEPDF, doc.MIMEType)

	_, err = NewDocument("notes.txt", "text/plain", []byte("hello"))
	require.ErrorIs(t, err, common.ErrUnsupportedMedia)

	_, err = NewDocument("scan.png", "image/gif", pngBytes)
	require.ErrorIs(t, err, common.ErrUnsupportedMedia)

	_, err = NewDocument("empty.pdf", "", nil)
	require.ErrorIs(t, err, common.ErrInvalidInput)
}

func TestReadDocument(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "discharge.png")
	require.NoError(t, os.WriteFile(path, pngBytes, 0o600))

	doc, err := ReadDocument(path)
	require.NoError(t, err)
	assert.Equal(t, constants.MIMEPNG, doc.MIMEType)
	assert.Equal(t, pngBytes, doc.Data)

	_, err = ReadDocument(filepath.Join(dir, "missing.pdf"))
	require.ErrorIs(t, err, common.ErrInvalidInput)
}

func TestScanDirectory(t *testing.T) {
	root := t.TempDir()
	write := func(rel string) {
		p := filepath.Join(root, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, pdfBytes, 0o600))
	}
	write("a.pdf")
	write("b.txt")
	write("nested/c.jpeg")
	write(".hidden/d.pdf")
	write(".e.png")

	results, stats, err := ScanDirectory(root, true)
	require.NoError(t, err)

	var paths []string
	for _, r := range results {
		assert.Empty(t, r.Err)
		assert.Len(t, r.HashHex, 64)
		rel, _ := filepath.Rel(root, r.Path)
		paths = append(paths, filepath.ToSlash(rel))
	}
	assert.Equal(t, []string{"a.pdf", "nested/c.jpeg"}, paths)
	assert.Equal(t, uint32(2), stats.Matched)
	assert.Zero(t, stats.Failed)

	results, _, err = ScanDirectory(root, false)
	require.NoError(t, err)
	assert.Len(t, results, 4)

	_, _, err = ScanDirectory("  ", true)
	require.ErrorIs(t, err, common.ErrInvalidInput)
}

func TestAllowedExt(t *testing.T) {
	assert.True(t, AllowedExt(".PDF"))
	assert.True(t, AllowedExt("jpeg"))
	assert.False(t, AllowedExt(".heic"))
	assert.False(t, AllowedExt(""))
}
