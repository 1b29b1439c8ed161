package constants

import "strings"

// Media types accepted for discharge documents.
const (
	MIMEPDF  = "application/pdf"
	MIMEJPEG = "image/jpeg"
	MIMEPNG  = "image/png"

	// MIMEOctetStream is what clients send when they do not know the type.
	MIMEOctetStream = "application/octet-stream"
)

// AllowedMIMETypes holds the media types the analysis pipeline admits.
var AllowedMIMETypes = map[string]struct{}{
	MIMEPDF:  {},
	MIMEJPEG: {},
	MIMEPNG:  {},
}

// AllowedExtensions maps the accepted document extensions to their media type.
var AllowedExtensions = map[string]string{
	"pdf":  MIMEPDF,
	"jpg":  MIMEJPEG,
	"jpeg": MIMEJPEG,
	"png":  MIMEPNG,
}

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// NormalizeMIME lowercases a media type and strips parameters ("; charset=...").
func NormalizeMIME(mt string) string {
	if i := strings.IndexByte(mt, ';'); i >= 0 {
		mt = mt[:i]
	}
	return strings.ToLower(strings.TrimSpace(mt))
}

// IsAllowedMIME reports whether mt (parameters ignored) is an accepted document type.
func IsAllowedMIME(mt string) bool {
	_, ok := AllowedMIMETypes[NormalizeMIME(mt)]
	return ok
}

// MIMEFromExt returns the accepted media type for an extension, or "" when unsupported.
func MIMEFromExt(ext string) string {
	return AllowedExtensions[NormalizeExt(ext)]
}
