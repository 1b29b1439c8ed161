package ingest

import (
	"path/filepath"
	"strings"

	"github.com/joseph-ayodele/mediclaim/constants"
)

// AllowedExt checks if a file extension is one of the accepted document types (pdf/jpg/jpeg/png).
func AllowedExt(ext string) bool {
	return constants.MIMEFromExt(ext) != ""
}

// IsHidden checks if a file or directory is hidden (starts with '.').
func IsHidden(path string) bool {
	base := filepath.Base(path)
	return strings.HasPrefix(base, ".")
}
