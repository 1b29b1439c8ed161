package ingest

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/joseph-ayodele/mediclaim/constants"
	"github.com/joseph-ayodele/mediclaim/internal/common"
	"github.com/joseph-ayodele/mediclaim/internal/llm"
)

// FileResult is the per-file outcome of a directory scan.
type FileResult struct {
	Path    string
	HashHex string
	Err     string
}

// DirStats summarizes a directory scan.
type DirStats struct {
	Scanned uint32
	Matched uint32
	Failed  uint32
}

// DetectMIME resolves the media type of a document. A declared type is
// authoritative unless it is empty or application/octet-stream, in which case
// the extension and then the leading bytes decide. Returns "" when the
// document is not an accepted type.
func DetectMIME(name, declared string, data []byte) string {
	declared = constants.NormalizeMIME(declared)
	if declared != "" && declared != constants.MIMEOctetStream {
		if constants.IsAllowedMIME(declared) {
			return declared
		}
		return ""
	}
	if mt := constants.MIMEFromExt(filepath.Ext(name)); mt != "" {
		return mt
	}
	if len(data) > 0 {
		if mt := constants.NormalizeMIME(http.DetectContentType(data)); constants.IsAllowedMIME(mt) {
			return mt
		}
	}
	return ""
}

// NewDocument wraps raw bytes as an analysis document, rejecting unsupported media.
func NewDocument(name, declared string, data []byte) (llm.Document, error) {
	mt := DetectMIME(name, declared, data)
	if mt == "" {
		return llm.Document{}, fmt.Errorf("%w: %q (accepted: pdf, jpeg, png)", common.ErrUnsupportedMedia, name)
	}
	doc := llm.Document{Data: data, MIMEType: mt, Name: filepath.Base(name)}
	if err := doc.Validate(); err != nil {
		return llm.Document{}, err
	}
	return doc, nil
}

// ReadDocument loads a discharge summary from disk.
func ReadDocument(path string) (llm.Document, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return llm.Document{}, common.WrapError(err, "abs path")
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return llm.Document{}, fmt.Errorf("%w: %s does not exist", common.ErrInvalidInput, path)
		}
		return llm.Document{}, err
	}
	return NewDocument(abs, "", data)
}

// ScanDirectory walks root and returns every accepted document it finds, in
// lexical order. Hidden entries are skipped when skipHidden is set.
func ScanDirectory(root string, skipHidden bool) ([]FileResult, DirStats, error) {
	if strings.TrimSpace(root) == "" {
		return nil, DirStats{}, fmt.Errorf("%w: root path is required", common.ErrInvalidInput)
	}

	var results []FileResult
	var stats DirStats

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		stats.Scanned++
		if walkErr != nil {
			results = append(results, FileResult{Path: path, Err: walkErr.Error()})
			stats.Failed++
			return nil
		}
		if skipHidden && path != root && IsHidden(path) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || !AllowedExt(filepath.Ext(path)) {
			return nil
		}
		stats.Matched++

		sum, err := hashFile(path)
		if err != nil {
			results = append(results, FileResult{Path: path, Err: err.Error()})
			stats.Failed++
			return nil
		}
		results = append(results, FileResult{Path: path, HashHex: sum})
		return nil
	})
	if err != nil {
		return results, stats, fmt.Errorf("walk: %w", err)
	}
	return results, stats, nil
}

func hashFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
