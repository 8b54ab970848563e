package server

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/zsiec/playcore/internal/errors"
	"github.com/zsiec/playcore/internal/framebuffer"
	"github.com/zsiec/playcore/internal/logger"
	"github.com/zsiec/playcore/internal/media"
	"github.com/zsiec/playcore/internal/player"
	"github.com/zsiec/playcore/internal/resume"
	"github.com/zsiec/playcore/internal/subtitle"
)

// Frame metadata headers of the pop endpoints. The body is the raw frame.
const (
	HeaderFramePTS     = "X-Frame-PTS"
	HeaderFrameWidth   = "X-Frame-Width"
	HeaderFrameHeight  = "X-Frame-Height"
	HeaderPixelFormat  = "X-Pixel-Format"
	HeaderSampleRate   = "X-Sample-Rate"
	HeaderChannels     = "X-Channels"
	HeaderSampleFormat = "X-Sample-Format"
)

type createSessionRequest struct {
	MediaID string `json:"mediaId"`
}

type seekRequest struct {
	PositionMS *int64 `json:"positionMs"`
}

// StreamResponse is the JSON form of media.StreamInfo.
type StreamResponse struct {
	Index      int    `json:"index"`
	Type       string `json:"type"`
	CodecID    string `json:"codecId"`
	Codec      string `json:"codec"`
	DurationMS *int64 `json:"durationMs,omitempty"`
	Width      int    `json:"width,omitempty"`
	Height     int    `json:"height,omitempty"`
	SampleRate int    `json:"sampleRate,omitempty"`
	Channels   int    `json:"channels,omitempty"`
}

// LoadResponse is returned by the load endpoint.
type LoadResponse struct {
	State      player.State     `json:"state"`
	Format     string           `json:"format"`
	DurationMS *int64           `json:"durationMs,omitempty"`
	Streams    []StreamResponse `json:"streams"`
	// ResumeMS is the saved position of the session's media, if any.
	ResumeMS *int64 `json:"resumeMs,omitempty"`
}

// StatusResponse is the full view of one session.
type StatusResponse struct {
	SessionInfo
	Format     string               `json:"format,omitempty"`
	PositionMS int64                `json:"positionMs"`
	DurationMS *int64               `json:"durationMs,omitempty"`
	Buffers    framebuffer.Stats    `json:"buffers"`
	BufferedMS map[string]int64     `json:"bufferedMs"`
	Subtitles  *player.SubtitleInfo `json:"subtitles,omitempty"`
	Consistent bool                 `json:"consistent"`
}

type stateResponse struct {
	State      player.State `json:"state"`
	PositionMS int64        `json:"positionMs"`
}

func streamResponses(streams []media.StreamInfo) []StreamResponse {
	out := make([]StreamResponse, 0, len(streams))
	for _, s := range streams {
		out = append(out, StreamResponse{
			Index:      s.Index,
			Type:       s.Type.String(),
			CodecID:    s.CodecID,
			Codec:      s.Codec.String(),
			DurationMS: s.DurationMS,
			Width:      s.Width,
			Height:     s.Height,
			SampleRate: s.SampleRate,
			Channels:   s.Channels,
		})
	}
	return out
}

func durationOf(c *player.Controller) *int64 {
	if d, ok := c.DurationMS(); ok {
		return &d
	}
	return nil
}

func sessionID(r *http.Request) string {
	return mux.Vars(r)["id"]
}

// handleCreateSession handles POST /api/v1/sessions
func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(io.LimitReader(r.Body, 4096)).Decode(&req); err != nil && err != io.EOF {
			s.writeError(w, r, errors.NewValidationError("invalid JSON body"))
			return
		}
	}

	info, err := s.sessions.Create(req.MediaID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.respond(w, r, http.StatusCreated, info)
}

// handleListSessions handles GET /api/v1/sessions
func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	active, limit := s.sessions.Count()
	s.respond(w, r, http.StatusOK, map[string]interface{}{
		"sessions": s.sessions.List(),
		"count":    active,
		"limit":    limit,
	})
}

// handleGetSession handles GET /api/v1/sessions/{id}
func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	var resp StatusResponse
	err := s.sessions.Do(sessionID(r), func(sess *session) error {
		c := sess.ctrl
		video, audio := c.BufferedMS()
		resp = StatusResponse{
			SessionInfo: sess.info(),
			PositionMS:  c.Position(),
			DurationMS:  durationOf(c),
			Buffers:     c.BufferStats(),
			BufferedMS:  map[string]int64{"video": video, "audio": audio},
			Consistent:  c.Verify() == nil,
		}
		if f, ok := c.Format(); ok {
			resp.Format = f
		}
		if t, ok := c.SubtitleTrack(); ok {
			resp.Subtitles = &player.SubtitleInfo{Format: t.Format().String(), CueCount: t.Len()}
		}
		return nil
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.respond(w, r, http.StatusOK, resp)
}

// handleDeleteSession handles DELETE /api/v1/sessions/{id}
func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := s.sessions.Delete(sessionID(r)); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleLoad handles POST /api/v1/sessions/{id}/load. The body is the whole
// container file.
func (s *Server) handleLoad(w http.ResponseWriter, r *http.Request) {
	body := http.MaxBytesReader(w, r.Body, s.config.MaxUploadBytes)
	data, err := io.ReadAll(body)
	if err != nil {
		var maxErr *http.MaxBytesError
		if stderrors.As(err, &maxErr) {
			s.writeError(w, r, errors.New(errors.ErrorTypeValidation, "media exceeds upload limit", http.StatusRequestEntityTooLarge).
				WithDetails(map[string]interface{}{"limit": maxErr.Limit}))
			return
		}
		s.writeError(w, r, errors.NewIOError(err, "failed to read media body"))
		return
	}

	var (
		resp    LoadResponse
		mediaID string
	)
	err = s.sessions.Do(sessionID(r), func(sess *session) error {
		c := sess.ctrl
		if err := c.Load(data); err != nil {
			return err
		}
		format, _ := c.Format()
		resp = LoadResponse{
			State:      c.State(),
			Format:     format,
			DurationMS: durationOf(c),
			Streams:    streamResponses(c.Streams()),
		}
		mediaID = sess.mediaID
		return nil
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	if mediaID != "" && s.store != nil {
		resp.ResumeMS = s.lookupResume(r.Context(), mediaID)
	}
	s.respond(w, r, http.StatusOK, resp)
}

// lookupResume returns the saved position for mediaID unless it is missing,
// finished, or the store is failing.
func (s *Server) lookupResume(ctx context.Context, mediaID string) *int64 {
	pos, err := s.store.Get(ctx, mediaID)
	if err != nil {
		if !errors.IsType(err, errors.ErrorTypeNotFound) {
			logger.FromContext(ctx).WithError(err).Warn("Resume lookup failed")
		}
		return nil
	}
	if pos.Finished() {
		return nil
	}
	return &pos.PositionMS
}

// transition wraps the argument-less state-machine operations.
func (s *Server) transition(op func(c *player.Controller) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var resp stateResponse
		err := s.sessions.Do(sessionID(r), func(sess *session) error {
			if err := op(sess.ctrl); err != nil {
				return err
			}
			resp = stateResponse{State: sess.ctrl.State(), PositionMS: sess.ctrl.Position()}
			return nil
		})
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		s.respond(w, r, http.StatusOK, resp)
	}
}

// handleSeek handles POST /api/v1/sessions/{id}/seek
func (s *Server) handleSeek(w http.ResponseWriter, r *http.Request) {
	var req seekRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 4096)).Decode(&req); err != nil {
		s.writeError(w, r, errors.NewValidationError("invalid JSON body"))
		return
	}
	if req.PositionMS == nil {
		s.writeError(w, r, errors.NewValidationError("positionMs is required"))
		return
	}
	if *req.PositionMS < 0 {
		s.writeError(w, r, errors.NewValidationError("positionMs cannot be negative"))
		return
	}
	s.transition(func(c *player.Controller) error {
		return c.Seek(*req.PositionMS)
	})(w, r)
}

// handlePump handles POST /api/v1/sessions/{id}/pump?budget=N
func (s *Server) handlePump(w http.ResponseWriter, r *http.Request) {
	budget := 0
	if v := r.URL.Query().Get("budget"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			s.writeError(w, r, errors.NewValidationError("budget must be a non-negative integer"))
			return
		}
		budget = n
	}

	var resp struct {
		player.PumpResult
		State   player.State      `json:"state"`
		Buffers framebuffer.Stats `json:"buffers"`
	}
	err := s.sessions.Do(sessionID(r), func(sess *session) error {
		res, err := sess.ctrl.Pump(budget)
		if err != nil {
			return err
		}
		resp.PumpResult = res
		resp.State = sess.ctrl.State()
		resp.Buffers = sess.ctrl.BufferStats()
		return nil
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.respond(w, r, http.StatusOK, resp)
}

// handleVideoFrame handles GET /api/v1/sessions/{id}/video. ?peek=true
// leaves the frame queued. An empty buffer answers 204.
func (s *Server) handleVideoFrame(w http.ResponseWriter, r *http.Request) {
	peek := r.URL.Query().Get("peek") == "true"

	var (
		frame *media.VideoFrame
		ok    bool
	)
	err := s.sessions.Do(sessionID(r), func(sess *session) error {
		if peek {
			frame, ok = sess.ctrl.PeekVideo()
		} else {
			frame, ok = sess.ctrl.PopVideo()
		}
		return nil
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	h := w.Header()
	h.Set("Content-Type", "application/octet-stream")
	h.Set(HeaderFramePTS, strconv.FormatInt(frame.PTS, 10))
	h.Set(HeaderFrameWidth, strconv.Itoa(frame.Width))
	h.Set(HeaderFrameHeight, strconv.Itoa(frame.Height))
	h.Set(HeaderPixelFormat, frame.PixelFormat.String())
	s.writeFrame(w, r, frame.Data)
}

// handleAudioFrame handles GET /api/v1/sessions/{id}/audio
func (s *Server) handleAudioFrame(w http.ResponseWriter, r *http.Request) {
	peek := r.URL.Query().Get("peek") == "true"

	var (
		frame *media.AudioFrame
		ok    bool
	)
	err := s.sessions.Do(sessionID(r), func(sess *session) error {
		if peek {
			frame, ok = sess.ctrl.PeekAudio()
		} else {
			frame, ok = sess.ctrl.PopAudio()
		}
		return nil
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	h := w.Header()
	h.Set("Content-Type", "application/octet-stream")
	h.Set(HeaderFramePTS, strconv.FormatInt(frame.PTS, 10))
	h.Set(HeaderSampleRate, strconv.Itoa(frame.SampleRate))
	h.Set(HeaderChannels, strconv.Itoa(frame.Channels))
	h.Set(HeaderSampleFormat, frame.SampleFormat.String())
	s.writeFrame(w, r, frame.Data)
}

func (s *Server) writeFrame(w http.ResponseWriter, r *http.Request, data []byte) {
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		logger.FromContext(r.Context()).WithError(err).Debug("Failed to write frame")
	}
}

// handleStreams handles GET /api/v1/sessions/{id}/streams
func (s *Server) handleStreams(w http.ResponseWriter, r *http.Request) {
	var streams []StreamResponse
	err := s.sessions.Do(sessionID(r), func(sess *session) error {
		streams = streamResponses(sess.ctrl.Streams())
		return nil
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.respond(w, r, http.StatusOK, map[string]interface{}{"streams": streams})
}

// handleBuffers handles GET /api/v1/sessions/{id}/buffers
func (s *Server) handleBuffers(w http.ResponseWriter, r *http.Request) {
	var stats framebuffer.Stats
	err := s.sessions.Do(sessionID(r), func(sess *session) error {
		stats = sess.ctrl.BufferStats()
		return nil
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.respond(w, r, http.StatusOK, stats)
}

// handleLoadSubtitles handles POST /api/v1/sessions/{id}/subtitles. The
// body is the subtitle document; ?format= forces srt, vtt or ass.
func (s *Server) handleLoadSubtitles(w http.ResponseWriter, r *http.Request) {
	text, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.config.MaxUploadBytes))
	if err != nil {
		s.writeError(w, r, errors.NewIOError(err, "failed to read subtitle body"))
		return
	}

	forced := r.URL.Query().Get("format")
	var format subtitle.Format
	if forced != "" {
		format, err = subtitle.ParseFormatName(forced)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
	}

	var info player.SubtitleInfo
	err = s.sessions.Do(sessionID(r), func(sess *session) error {
		var err error
		if forced != "" {
			info, err = sess.ctrl.LoadSubtitlesAs(string(text), format)
		} else {
			info, err = sess.ctrl.LoadSubtitles(string(text))
		}
		return err
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.respond(w, r, http.StatusOK, info)
}

// handleSubtitlesAt handles GET /api/v1/sessions/{id}/subtitles?t=ms. When
// t is omitted the current position is used.
func (s *Server) handleSubtitlesAt(w http.ResponseWriter, r *http.Request) {
	var (
		ts    int64
		hasTS bool
	)
	if v := r.URL.Query().Get("t"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			s.writeError(w, r, errors.NewValidationError("t must be an integer timestamp in milliseconds"))
			return
		}
		ts, hasTS = n, true
	}

	var cues []subtitle.Cue
	err := s.sessions.Do(sessionID(r), func(sess *session) error {
		if !hasTS {
			ts = sess.ctrl.Position()
		}
		cues = sess.ctrl.Subtitles(ts)
		return nil
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if cues == nil {
		cues = []subtitle.Cue{}
	}
	s.respond(w, r, http.StatusOK, map[string]interface{}{"t": ts, "cues": cues})
}

// handleSaveResume handles POST /api/v1/sessions/{id}/resume. It stores
// the session's current position under its media id.
func (s *Server) handleSaveResume(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		s.writeError(w, r, errors.NewServiceDownError("resume"))
		return
	}

	var pos *resume.Position
	err := s.sessions.Do(sessionID(r), func(sess *session) error {
		if sess.mediaID == "" {
			return errors.NewValidationError("session has no media id")
		}
		if !sess.ctrl.State().Loaded() {
			return errors.NewInvalidStateError("cannot save a resume position while %s", sess.ctrl.State())
		}
		format, _ := sess.ctrl.Format()
		pos = &resume.Position{
			MediaID:    sess.mediaID,
			PositionMS: sess.ctrl.Position(),
			DurationMS: durationOf(sess.ctrl),
			Container:  format,
		}
		return nil
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	if err := s.store.Save(r.Context(), pos); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.respond(w, r, http.StatusOK, pos)
}

// handleGetResume handles GET /api/v1/resume/{mediaId}
func (s *Server) handleGetResume(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		s.writeError(w, r, errors.NewServiceDownError("resume"))
		return
	}
	pos, err := s.store.Get(r.Context(), mux.Vars(r)["mediaId"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.respond(w, r, http.StatusOK, pos)
}

// handleDeleteResume handles DELETE /api/v1/resume/{mediaId}
func (s *Server) handleDeleteResume(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		s.writeError(w, r, errors.NewServiceDownError("resume"))
		return
	}
	if err := s.store.Delete(r.Context(), mux.Vars(r)["mediaId"]); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleRecentResume handles GET /api/v1/resume?limit=N
func (s *Server) handleRecentResume(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		s.writeError(w, r, errors.NewServiceDownError("resume"))
		return
	}
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 1000 {
			s.writeError(w, r, errors.NewValidationError("limit must be between 1 and 1000"))
			return
		}
		limit = n
	}
	positions, err := s.store.Recent(r.Context(), limit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.respond(w, r, http.StatusOK, map[string]interface{}{"positions": positions})
}
