package output

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/pevans/opinions/article"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	pngData  = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")
	jpegData = []byte("\xff\xd8\xff\xe0\x00\x10JFIF\x00")
)

// TestSanitize verifies punctuation collapses to single underscores and
// letters with accents survive
func TestSanitize(t *testing.T) {
	tests := []struct {
		title string
		want  string
	}{
		{"La economía global", "La_economía_global"},
		{"¿Qué pasa?  ¡Nada!", "Qué_pasa_Nada"},
		{"a/b\\c:d*e", "a_b_c_d_e"},
		{"2026: año nuevo", "2026_año_nuevo"},
		{"???", "image"},
		{"", "image"},
	}

	for _, tt := range tests {
		t.Run(tt.title, func(t *testing.T) {
			assert.Equal(t, tt.want, Sanitize(tt.title))
		})
	}
}

// TestSanitize_Truncates verifies long titles are capped by characters
func TestSanitize_Truncates(t *testing.T) {
	got := Sanitize(strings.Repeat("ñ", 150))
	assert.Equal(t, MaxNameLength, len([]rune(got)))

	got = Sanitize(strings.Repeat("a", 99) + " b")
	assert.Equal(t, strings.Repeat("a", 99), got, "no trailing underscore after cut")
}

// TestSanitize_CapsBytes verifies multi-byte titles stay within MaxNameBytes
// and are cut on a character boundary
func TestSanitize_CapsBytes(t *testing.T) {
	got := Sanitize(strings.Repeat("経済", 60))

	assert.LessOrEqual(t, len(got), MaxNameBytes)
	assert.True(t, utf8.ValidString(got))
	assert.Equal(t, strings.Repeat("経済", 33), got)
}

// TestImageSink_WriteLongTitle verifies a long multi-byte title still
// produces a writable file
func TestImageSink_WriteLongTitle(t *testing.T) {
	sink := NewImageSink(t.TempDir(), nil)

	path, err := sink.Write(strings.Repeat("経済", 60), pngData)
	require.NoError(t, err)
	assert.FileExists(t, path)
	assert.LessOrEqual(t, len(filepath.Base(path)), 255)
}

// TestExtension verifies content sniffing with a jpg fallback
func TestExtension(t *testing.T) {
	assert.Equal(t, ".png", Extension(pngData))
	assert.Equal(t, ".jpg", Extension(jpegData))
	assert.Equal(t, ".jpg", Extension([]byte("plain text, not an image")))
}

// TestImageSink_Write verifies files land in the directory with owner-only
// permissions
func TestImageSink_Write(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "images")
	sink := NewImageSink(dir, nil)

	_, err := os.Stat(dir)
	assert.True(t, os.IsNotExist(err), "directory is created lazily")

	path, err := sink.Write("La economía global", pngData)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "La_economía_global.png"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, pngData, data)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

// TestImageSink_Collisions verifies equal titles get numbered names
func TestImageSink_Collisions(t *testing.T) {
	sink := NewImageSink(t.TempDir(), nil)

	first, err := sink.Write("Opinión", jpegData)
	require.NoError(t, err)
	second, err := sink.Write("Opinión", jpegData)
	require.NoError(t, err)
	third, err := sink.Write("Opinión!", jpegData)
	require.NoError(t, err)

	assert.Equal(t, "Opinión.jpg", filepath.Base(first))
	assert.Equal(t, "Opinión_2.jpg", filepath.Base(second))
	assert.Equal(t, "Opinión_3.jpg", filepath.Base(third))
}

// TestImageSink_Flush verifies only articles with images are written and
// paths are recorded
func TestImageSink_Flush(t *testing.T) {
	dir := t.TempDir()
	sink := NewImageSink(dir, nil)

	articles := []article.Article{
		{Title: "Primero", Image: pngData},
		{Title: "Sin imagen"},
		{Title: "Tercero", Image: jpegData},
	}

	result := sink.Flush(articles)

	assert.Empty(t, result.Errors)
	assert.Equal(t, []string{
		filepath.Join(dir, "Primero.png"),
		filepath.Join(dir, "Tercero.jpg"),
	}, result.Paths)
	assert.Equal(t, filepath.Join(dir, "Primero.png"), articles[0].ImagePath)
	assert.Empty(t, articles[1].ImagePath)
	assert.Equal(t, filepath.Join(dir, "Tercero.jpg"), articles[2].ImagePath)
}

// TestImageSink_FlushWriteError verifies a failed write is recorded on its
// article and the others still get written
func TestImageSink_FlushWriteError(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, "Bloqueado.png"), 0o700))
	sink := NewImageSink(dir, nil)

	articles := []article.Article{
		{Title: "Bloqueado", Image: pngData},
		{Title: "Libre", Image: pngData},
	}

	result := sink.Flush(articles)

	require.Len(t, result.Errors, 1)
	assert.Equal(t, "Bloqueado.png", result.Errors[0].Filename)
	require.Len(t, articles[0].Errors, 1)
	assert.ErrorIs(t, articles[0].Errors[0], ErrWrite)
	assert.Empty(t, articles[0].ImagePath)
	assert.Equal(t, filepath.Join(dir, "Libre.png"), articles[1].ImagePath)
}

// TestWriteJSON verifies the report is written as indented JSON
func TestWriteJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reports", "run.json")

	require.NoError(t, WriteJSON(path, map[string]any{"state": "reported", "count": 2}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "\n  \"count\": 2")

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "reported", decoded["state"])
}

// TestWriteJSON_Unmarshalable verifies marshal failures are reported
func TestWriteJSON_Unmarshalable(t *testing.T) {
	err := WriteJSON(filepath.Join(t.TempDir(), "run.json"), map[string]any{"ch": make(chan int)})
	assert.ErrorContains(t, err, "failed to marshal report")
}
