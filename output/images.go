// Package output writes run artifacts to disk: cover images named after
// their article titles and the JSON run report.
package output

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/gabriel-vasile/mimetype"
	"github.com/pevans/opinions/article"
	"github.com/pevans/opinions/logger"
)

// MaxNameLength caps the title-derived part of a filename, in characters.
const MaxNameLength = 100

// MaxNameBytes caps the same part in UTF-8 bytes, leaving room for a
// collision suffix and extension under the usual 255-byte name limit.
const MaxNameBytes = 200

// ErrWrite matches every *WriteError.
var ErrWrite = errors.New("failed to write output file")

// WriteError describes a failure to write a single image file.
type WriteError struct {
	Filename string
	Err      error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("%s: %v", e.Filename, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

func (e *WriteError) Is(target error) bool { return target == ErrWrite }

// FlushResult reports what a flush wrote. Per-file failures are collected
// rather than aborting the flush.
type FlushResult struct {
	Paths  []string
	Errors []WriteError
}

// ImageSink writes images into a directory. The directory is only created
// when the first image is written.
type ImageSink struct {
	dir  string
	used map[string]bool
	log  logger.Logger
}

// NewImageSink creates a sink writing into dir.
func NewImageSink(dir string, log logger.Logger) *ImageSink {
	if log == nil {
		log = logger.NewNop()
	}
	return &ImageSink{
		dir:  dir,
		used: make(map[string]bool),
		log:  log,
	}
}

// Dir returns the target directory.
func (s *ImageSink) Dir() string {
	return s.dir
}

// Write stores data under a filename derived from name and returns the
// path written. The extension comes from the detected content type.
func (s *ImageSink) Write(name string, data []byte) (string, error) {
	// 0700: owner-only access
	if err := os.MkdirAll(s.dir, 0o700); err != nil {
		return "", fmt.Errorf("failed to create image directory: %w", err)
	}

	filename := s.filename(name, Extension(data))
	path := filepath.Join(s.dir, filename)

	// 0600: owner-only read/write
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", &WriteError{Filename: filename, Err: err}
	}

	s.used[filename] = true
	s.log.Debug("Image written", logger.String("path", path), logger.Int("bytes", len(data)))
	return path, nil
}

// Flush writes the image of every article that has one, in order, and sets
// ImagePath on success. A failed write is recorded on its article.
func (s *ImageSink) Flush(articles []article.Article) *FlushResult {
	result := &FlushResult{}
	for i := range articles {
		a := &articles[i]
		if !a.HasImage() {
			continue
		}

		path, err := s.Write(a.Title, a.Image)
		if err != nil {
			var writeErr *WriteError
			if !errors.As(err, &writeErr) {
				writeErr = &WriteError{Filename: Sanitize(a.Title), Err: err}
			}
			result.Errors = append(result.Errors, *writeErr)
			a.Fail(writeErr)
			s.log.Warn("Failed to write image", logger.String("url", a.ImageURL), logger.Error(err))
			continue
		}

		a.ImagePath = path
		result.Paths = append(result.Paths, path)
	}

	s.log.Info("Images flushed",
		logger.String("dir", s.dir),
		logger.Int("written", len(result.Paths)),
		logger.Int("failed", len(result.Errors)),
	)
	return result
}

// filename picks a name not yet used by this sink. Two articles with the
// same title get "_2", "_3"... suffixes.
func (s *ImageSink) filename(name, ext string) string {
	base := Sanitize(name)
	candidate := base + ext
	for n := 2; s.used[candidate]; n++ {
		candidate = base + "_" + strconv.Itoa(n) + ext
	}
	return candidate
}

// Sanitize turns a title into a filename stem: every run of characters
// that are not letters or digits becomes a single underscore, the result is
// capped at MaxNameLength characters and MaxNameBytes bytes, cut on a
// character boundary, and never empty.
func Sanitize(title string) string {
	var sb strings.Builder
	underscore := false
	for _, r := range title {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			sb.WriteRune(r)
			underscore = false
			continue
		}
		if !underscore {
			sb.WriteByte('_')
			underscore = true
		}
	}

	name := strings.Trim(sb.String(), "_")
	if runes := []rune(name); len(runes) > MaxNameLength {
		name = string(runes[:MaxNameLength])
	}
	if len(name) > MaxNameBytes {
		cut := MaxNameBytes
		for cut > 0 && !utf8.RuneStart(name[cut]) {
			cut--
		}
		name = name[:cut]
	}
	name = strings.TrimRight(name, "_")
	if name == "" {
		return "image"
	}
	return name
}

// Extension returns the file extension for image data, ".jpg" when the
// type is not a recognised image.
func Extension(data []byte) string {
	mtype := mimetype.Detect(data)
	if !strings.HasPrefix(mtype.String(), "image/") || mtype.Extension() == "" {
		return ".jpg"
	}
	return mtype.Extension()
}
