// Package track provides the Track domain entity.
package track

import (
	"path/filepath"
	"strings"
)

// Track represents a playable audio file in the catalog.
type Track struct {
	ID     string `json:"id"`               // File name, unique within the catalog
	Path   string `json:"-"`                // Full path passed to the audio engine
	Title  string `json:"title"`            // Display title (tag title or file name without extension)
	Artist string `json:"artist,omitempty"` // Display artist (may be empty)
	Album  string `json:"album,omitempty"`  // Album name (may be empty)
}

// Metadata holds display tags read from an audio file.
type Metadata struct {
	Title  string
	Artist string
	Album  string
}

// New creates a track for the given directory and file name.
// The title defaults to the file name without its extension.
func New(dir, name string) Track {
	return Track{
		ID:    name,
		Path:  filepath.Join(dir, name),
		Title: strings.TrimSuffix(name, filepath.Ext(name)),
	}
}

// WithMetadata returns a copy of the track with non-empty metadata applied.
func (t Track) WithMetadata(m Metadata) Track {
	if m.Title != "" {
		t.Title = m.Title
	}
	if m.Artist != "" {
		t.Artist = m.Artist
	}
	if m.Album != "" {
		t.Album = m.Album
	}
	return t
}

// DisplayName returns "Artist - Title", or just the title when the artist is unknown.
func (t Track) DisplayName() string {
	if t.Artist == "" {
		return t.Title
	}
	return t.Artist + " - " + t.Title
}
