package constants

import "strings"

// Providers selectable through OCR_PROVIDER.
const (
	ProviderAzure     = "azure"
	ProviderTesseract = "tesseract"
)

// Providers holds every supported OCR provider name.
var Providers = []string{ProviderAzure, ProviderTesseract}

// ImageExtensions holds the local file extensions accepted for upload.
var ImageExtensions = map[string]struct{}{
	"jpg":  {},
	"jpeg": {},
	"png":  {},
	"bmp":  {},
	"gif":  {},
	"tif":  {},
	"tiff": {},
	"pdf":  {},
}

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// IsImageExt reports whether ext (with or without dot) is an accepted image extension.
func IsImageExt(ext string) bool {
	_, ok := ImageExtensions[NormalizeExt(ext)]
	return ok
}
