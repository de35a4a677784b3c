package playback

// Engine is the audio output collaborator. Every call is synchronous with
// bounded latency. The controller only calls it while holding its guard.
type Engine interface {
	// Load opens path and prepares it for playback from the start.
	Load(path string) error
	// Play starts the loaded track.
	Play() error
	Pause()
	Resume()
	Stop()
	// SetVolume sets the output level (0.0 to 1.0).
	SetVolume(level float64)
	// IsBusy reports whether a track is loaded and has not finished.
	IsBusy() (bool, error)
}
