package tags

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/pibox/internal/domain/catalog"
	"github.com/osa030/pibox/internal/domain/track"
)

var _ catalog.MetadataReader = (*Reader)(nil)

// writeID3v1 writes a silent payload followed by a 128-byte ID3v1 tag.
func writeID3v1(t *testing.T, path, title, artist, album string) {
	t.Helper()

	field := func(s string, n int) []byte {
		b := make([]byte, n)
		copy(b, s)
		return b
	}

	data := make([]byte, 512)
	data = append(data, []byte("TAG")...)
	data = append(data, field(title, 30)...)
	data = append(data, field(artist, 30)...)
	data = append(data, field(album, 30)...)
	data = append(data, field("2024", 4)...)
	data = append(data, field("", 30)...)
	data = append(data, 12)

	require.NoError(t, os.WriteFile(path, data, 0o600))
}

func TestReader_ID3v1(t *testing.T) {
	path := filepath.Join(t.TempDir(), "song.mp3")
	writeID3v1(t, path, "Blue Monday", "New Order", "Power, Corruption & Lies")

	m, err := NewReader().Read(path)
	require.NoError(t, err)
	assert.Equal(t, track.Metadata{
		Title:  "Blue Monday",
		Artist: "New Order",
		Album:  "Power, Corruption & Lies",
	}, m)
}

func TestReader_Errors(t *testing.T) {
	dir := t.TempDir()
	untagged := filepath.Join(dir, "plain.wav")
	require.NoError(t, os.WriteFile(untagged, make([]byte, 256), 0o600))

	tests := []struct {
		name string
		path string
	}{
		{name: "missing file", path: filepath.Join(dir, "missing.mp3")},
		{name: "no tags", path: untagged},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewReader().Read(tt.path)
			assert.Error(t, err)
		})
	}
}

func TestReader_WithCatalog(t *testing.T) {
	dir := t.TempDir()
	writeID3v1(t, filepath.Join(dir, "01.mp3"), "First", "Someone", "")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "02.wav"), make([]byte, 256), 0o600))

	cat, err := catalog.Load(dir, nil, NewReader())
	require.NoError(t, err)
	require.Equal(t, 2, cat.Len())

	assert.Equal(t, "First", cat.At(0).Title)
	assert.Equal(t, "Someone", cat.At(0).Artist)
	assert.Equal(t, "02", cat.At(1).Title, "untagged files keep the file-name title")
}
