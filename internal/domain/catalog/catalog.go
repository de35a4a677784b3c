// Package catalog provides the immutable track catalog built once at startup.
package catalog

import (
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/pibox/internal/domain/track"
)

// Errors
var (
	// ErrCatalog marks every catalog failure (unreadable or empty directory).
	ErrCatalog = errors.New("catalog error")
	// ErrEmpty is returned when the directory contains no playable tracks.
	ErrEmpty = errors.New("no playable tracks found")
)

// DefaultExtensions is the audio extension allow-list used when none is configured.
var DefaultExtensions = []string{".wav", ".mp3"}

// MetadataReader reads display tags from an audio file.
type MetadataReader interface {
	Read(path string) (track.Metadata, error)
}

// Catalog is an ordered, read-only sequence of tracks.
// It is safe for concurrent use because it is never mutated after Load.
type Catalog struct {
	dir    string
	tracks []track.Track
}

// New creates a catalog from the given tracks, sorted by ID.
func New(dir string, tracks []track.Track) *Catalog {
	sorted := slices.Clone(tracks)
	slices.SortFunc(sorted, func(a, b track.Track) int {
		return strings.Compare(a.ID, b.ID)
	})
	return &Catalog{dir: dir, tracks: sorted}
}

// Load scans dir non-recursively and returns the catalog of files whose
// extension is in the allow-list. reader may be nil.
func Load(dir string, extensions []string, reader MetadataReader) (*Catalog, error) {
	if len(extensions) == 0 {
		extensions = DefaultExtensions
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Mark(errors.Wrapf(err, "failed to read track directory %s", dir), ErrCatalog)
	}

	allowed := make(map[string]bool, len(extensions))
	for _, ext := range extensions {
		allowed[strings.ToLower(ext)] = true
	}

	tracks := make([]track.Track, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !allowed[strings.ToLower(filepath.Ext(name))] {
			continue
		}

		t := track.New(dir, name)
		if reader != nil {
			meta, err := reader.Read(t.Path)
			if err != nil {
				zlog.Debug().Msgf("catalog: no tags: file=%s err=%v", name, err)
			} else {
				t = t.WithMetadata(meta)
			}
		}
		tracks = append(tracks, t)
	}

	if len(tracks) == 0 {
		return nil, errors.Mark(errors.Wrapf(ErrEmpty, "directory %s (extensions %v)", dir, extensions), ErrCatalog)
	}

	c := New(dir, tracks)
	zlog.Info().Msgf("catalog: loaded %d tracks from %s", c.Len(), dir)
	return c, nil
}

// Dir returns the directory the catalog was loaded from.
func (c *Catalog) Dir() string {
	return c.dir
}

// Len returns the number of tracks.
func (c *Catalog) Len() int {
	return len(c.tracks)
}

// At returns the track at index i. It panics if i is out of range.
func (c *Catalog) At(i int) track.Track {
	return c.tracks[i]
}

// Tracks returns a copy of all tracks in order.
func (c *Catalog) Tracks() []track.Track {
	return slices.Clone(c.tracks)
}
