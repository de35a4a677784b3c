// Package tags reads display metadata from audio files.
package tags

import (
	"os"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/dhowden/tag"

	"github.com/osa030/pibox/internal/domain/track"
)

// Reader reads ID3/FLAC/MP4 tags with dhowden/tag.
type Reader struct{}

// NewReader creates a tag reader.
func NewReader() *Reader {
	return &Reader{}
}

// Read returns the title, artist and album stored in the file at path.
func (r *Reader) Read(path string) (track.Metadata, error) {
	f, err := os.Open(path)
	if err != nil {
		return track.Metadata{}, errors.Wrap(err, "failed to open audio file")
	}
	defer f.Close()

	m, err := tag.ReadFrom(f)
	if err != nil {
		return track.Metadata{}, errors.Wrapf(err, "failed to read tags: path=%s", path)
	}

	artist := clean(m.Artist())
	if artist == "" {
		artist = clean(m.AlbumArtist())
	}

	return track.Metadata{
		Title:  clean(m.Title()),
		Artist: artist,
		Album:  clean(m.Album()),
	}, nil
}

func clean(s string) string {
	return strings.TrimSpace(strings.Trim(s, "\x00"))
}
