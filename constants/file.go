package constants

import "strings"

// Input types accepted by the parsers.
const (
	InputPDF  = "pdf"
	InputText = "text"
)

// AllowedExtensions holds the file extensions accepted for upload and inbox discovery.
var AllowedExtensions = map[string]struct{}{
	"pdf": {},
}

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// MimeTypeFor maps an input type to the MIME type recorded on canonical documents.
func MimeTypeFor(inputType string) string {
	if inputType == InputPDF {
		return "application/pdf"
	}
	return "text/plain"
}
