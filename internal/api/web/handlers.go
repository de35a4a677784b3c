package web

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/dustin/go-humanize"
	"github.com/gorilla/mux"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/pibox/internal/app/control"
	"github.com/osa030/pibox/internal/app/indicator"
	"github.com/osa030/pibox/internal/app/notification"
	"github.com/osa030/pibox/internal/app/playback"
	"github.com/osa030/pibox/internal/domain/track"
)

// StatusResponse is the JSON view of the player.
type StatusResponse struct {
	Track    track.Track           `json:"track"`
	Index    int                   `json:"index"`
	Tracks   int                   `json:"tracks"`
	Status   string                `json:"status"`
	Playing  bool                  `json:"playing"`
	Volume   int                   `json:"volume"`
	Lit      int                   `json:"indicators_lit"`
	Started  string                `json:"started"`
	Position int                   `json:"-"`
	Pattern  [indicator.Count]bool `json:"-"`
}

// VolumeRequest is the JSON body of POST /api/volume.
type VolumeRequest struct {
	Volume *int `json:"volume"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) status() StatusResponse {
	snap := s.player.Snapshot()
	return StatusResponse{
		Track:    snap.Track,
		Index:    snap.Index,
		Tracks:   snap.Tracks,
		Status:   snap.Status().String(),
		Playing:  snap.Playing,
		Volume:   snap.Volume,
		Lit:      indicator.Level(snap.Volume),
		Started:  humanize.Time(s.startedAt),
		Position: snap.Index + 1,
		Pattern:  indicator.Pattern(snap.Volume),
	}
}

// handleIndex renders the status page.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.tmpl.ExecuteTemplate(w, "player.html", s.status()); err != nil {
		zlog.Error().Err(err).Msg("web: failed to render status page")
	}
}

// handleVolumeForm applies the integer form field "data" and redirects back
// to the status page.
func (s *Server) handleVolumeForm(w http.ResponseWriter, r *http.Request) {
	level, err := playback.ParseVolume(r.FormValue("data"))
	if err != nil {
		zlog.Debug().Msgf("web: rejected volume form: %v", err)
		http.Error(w, "volume must be an integer", http.StatusBadRequest)
		return
	}

	if err := s.player.SetVolume(level); err != nil {
		http.Error(w, err.Error(), errorStatus(err))
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// handleVolumeRefresh re-applies the indicator pattern and redirects.
func (s *Server) handleVolumeRefresh(w http.ResponseWriter, r *http.Request) {
	if err := s.player.RefreshIndicator(); err != nil {
		zlog.Warn().Err(err).Msg("web: indicator refresh failed")
	}
	http.Redirect(w, r, "/", http.StatusFound)
}

// handleStatus returns the player status as JSON.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.status())
}

// handleVolumeJSON sets the volume from a JSON body.
func (s *Server) handleVolumeJSON(w http.ResponseWriter, r *http.Request) {
	var req VolumeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Volume == nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "body must be {\"volume\": <integer>}"})
		return
	}

	if err := s.player.SetVolume(*req.Volume); err != nil {
		writeJSON(w, errorStatus(err), errorResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, s.status())
}

// handleAction runs a transport action. Browsers are redirected back to the
// status page; API clients get the new status.
func (s *Server) handleAction(w http.ResponseWriter, r *http.Request) {
	action, err := control.ParseAction(mux.Vars(r)["action"])
	if err != nil {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
		return
	}

	if err := s.dispatcher.Do(action); err != nil {
		zlog.Warn().Err(err).Msgf("web: action failed: action=%s", action)
		writeJSON(w, errorStatus(err), errorResponse{Error: err.Error()})
		return
	}

	if strings.Contains(r.Header.Get("Accept"), "text/html") {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	writeJSON(w, http.StatusOK, s.status())
}

// sseStream buffers notifications for one event-stream client.
type sseStream struct {
	ch chan notification.Notification
}

func (s *sseStream) Send(n notification.Notification) error {
	select {
	case s.ch <- n:
		return nil
	default:
		return errors.New("event stream client is lagging")
	}
}

// handleEvents streams playback events as server-sent events.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	stream := &sseStream{ch: make(chan notification.Notification, 16)}
	sub := s.notifier.Subscribe(stream)
	defer s.notifier.Unsubscribe(sub.ID)

	if err := writeSSE(w, "status", s.status()); err != nil {
		return
	}
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-s.closed:
			return
		case <-sub.Done():
			return
		case n := <-stream.ch:
			if err := writeSSE(w, n.Event.Type.String(), n); err != nil {
				zlog.Debug().Msgf("web: event stream closed: id=%s err=%v", sub.ID, err)
				return
			}
			flusher.Flush()
		}
	}
}

func writeSSE(w http.ResponseWriter, event string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return errors.Wrap(err, "marshal event")
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
	return err
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zlog.Debug().Msgf("web: failed to write response: %v", err)
	}
}

// errorStatus maps a playback error onto an HTTP status code.
func errorStatus(err error) int {
	switch {
	case errors.Is(err, playback.ErrInvalidVolume):
		return http.StatusBadRequest
	case errors.Is(err, playback.ErrShutdown):
		return http.StatusServiceUnavailable
	case errors.Is(err, playback.ErrPlayback):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
