package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/pibox/internal/domain/track"
)

type stubReader struct {
	meta map[string]track.Metadata
}

func (r stubReader) Read(path string) (track.Metadata, error) {
	m, ok := r.meta[filepath.Base(path)]
	if !ok {
		return track.Metadata{}, errors.New("no tags")
	}
	return m, nil
}

func writeFiles(t *testing.T, dir string, names ...string) {
	t.Helper()
	for _, name := range names {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644))
	}
}

func trackIDs(c *Catalog) []string {
	ids := make([]string, 0, c.Len())
	for _, t := range c.Tracks() {
		ids = append(ids, t.ID)
	}
	return ids
}

func TestLoad(t *testing.T) {
	tests := []struct {
		name       string
		files      []string
		extensions []string
		expected   []string
	}{
		{
			name:     "default extensions sorted",
			files:    []string{"b.mp3", "a.wav", "c.txt", "notes.md"},
			expected: []string{"a.wav", "b.mp3"},
		},
		{
			name:     "extension match is case-insensitive",
			files:    []string{"LOUD.MP3", "quiet.wav"},
			expected: []string{"LOUD.MP3", "quiet.wav"},
		},
		{
			name:       "custom extensions",
			files:      []string{"a.flac", "b.mp3", "c.wav"},
			extensions: []string{".flac"},
			expected:   []string{"a.flac"},
		},
		{
			name:     "lexicographic order",
			files:    []string{"10.mp3", "2.mp3", "1.mp3"},
			expected: []string{"1.mp3", "10.mp3", "2.mp3"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			writeFiles(t, dir, tt.files...)

			c, err := Load(dir, tt.extensions, nil)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, trackIDs(c))
			assert.Equal(t, dir, c.Dir())
		})
	}
}

func TestLoad_SkipsDirectories(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub.mp3"), 0o755))
	writeFiles(t, dir, "track.mp3")

	c, err := Load(dir, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"track.mp3"}, trackIDs(c))
}

func TestLoad_Errors(t *testing.T) {
	t.Run("unreadable directory", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "missing"), nil, nil)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrCatalog))
		assert.False(t, errors.Is(err, ErrEmpty))
	})

	t.Run("no playable tracks", func(t *testing.T) {
		dir := t.TempDir()
		writeFiles(t, dir, "readme.txt")

		_, err := Load(dir, nil, nil)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrEmpty))
		assert.True(t, errors.Is(err, ErrCatalog))
	})
}

func TestLoad_Metadata(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, "a.mp3", "b.wav")

	reader := stubReader{meta: map[string]track.Metadata{
		"a.mp3": {Title: "Alpha", Artist: "Band"},
	}}

	c, err := Load(dir, nil, reader)
	require.NoError(t, err)
	require.Equal(t, 2, c.Len())

	assert.Equal(t, "Alpha", c.At(0).Title)
	assert.Equal(t, "Band", c.At(0).Artist)
	// Tag read failure falls back to the file name.
	assert.Equal(t, "b", c.At(1).Title)
}

func TestCatalog_Accessors(t *testing.T) {
	c := New("/m", []track.Track{{ID: "b"}, {ID: "a"}, {ID: "c"}})

	assert.Equal(t, 3, c.Len())
	assert.Equal(t, "a", c.At(0).ID)

	tracks := c.Tracks()
	tracks[0].ID = "mutated"
	assert.Equal(t, "a", c.At(0).ID, "Tracks must return a copy")
}
