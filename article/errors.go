package article

import (
	"errors"
	"fmt"
)

// Sentinels for the recoverable error kinds. Each typed error below matches
// its sentinel with errors.Is.
var (
	ErrExtraction    = errors.New("article extraction failed")
	ErrImageDownload = errors.New("image download failed")
	ErrTranslation   = errors.New("translation failed")
	ErrEmptyText     = errors.New("empty text")
)

// ExtractionError describes a failure extracting one field (or the whole
// page) of a single article.
type ExtractionError struct {
	URL   string
	Field string // "page", "title", "body" or "image"
	Err   error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extract %s from %s: %v", e.Field, e.URL, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

func (e *ExtractionError) Is(target error) bool { return target == ErrExtraction }

// ImageDownloadError describes a failed cover image download.
type ImageDownloadError struct {
	URL string
	Err error
}

func (e *ImageDownloadError) Error() string {
	return fmt.Sprintf("download image %s: %v", e.URL, e.Err)
}

func (e *ImageDownloadError) Unwrap() error { return e.Err }

func (e *ImageDownloadError) Is(target error) bool { return target == ErrImageDownload }

// TranslationError describes a failed translation of the title at Index.
type TranslationError struct {
	Index int
	Text  string
	Err   error
}

func (e *TranslationError) Error() string {
	return fmt.Sprintf("translate title %d %q: %v", e.Index, e.Text, e.Err)
}

func (e *TranslationError) Unwrap() error { return e.Err }

func (e *TranslationError) Is(target error) bool { return target == ErrTranslation }
