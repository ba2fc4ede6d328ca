package constants

import "strings"

// MIME types for the dataset formats read and written by the tools
const (
	MimeTypeJSON        = "application/json"
	MimeTypeCSV         = "text/csv"
	MimeTypeGzip        = "application/gzip"
	MimeTypeOctetStream = "application/octet-stream"
)

// File extensions
const (
	ExtensionCSV  = ".csv"
	ExtensionJSON = ".json"
	ExtensionGzip = ".gz"
)

// ContentTypeForFormat returns the MIME type of an output format
func ContentTypeForFormat(format string) string {
	switch strings.ToLower(format) {
	case FormatCSV:
		return MimeTypeCSV
	case FormatJSON:
		return MimeTypeJSON
	default:
		return MimeTypeOctetStream
	}
}

// FormatFromPath guesses a dataset format from a file name. It returns "" when
// the extension is not recognized.
func FormatFromPath(path string) string {
	lower := strings.ToLower(strings.TrimSuffix(path, ExtensionGzip))
	switch {
	case strings.HasSuffix(lower, ExtensionCSV):
		return FormatCSV
	case strings.HasSuffix(lower, ExtensionJSON):
		return FormatJSON
	default:
		return ""
	}
}
