package server

import (
	"context"
	"net/http"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zsiec/playcore/internal/demux/demuxtest"
	"github.com/zsiec/playcore/internal/framebuffer"
	"github.com/zsiec/playcore/internal/player"
	"github.com/zsiec/playcore/internal/resume"
	"github.com/zsiec/playcore/internal/subtitle"
)

const testSRT = `1
00:00:00,000 --> 00:00:01,000
Hello

2
00:00:00,500 --> 00:00:02,000
World
`

type errorBody struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

func createSession(t *testing.T, s *Server, body string) SessionInfo {
	t.Helper()
	var b []byte
	if body != "" {
		b = []byte(body)
	}
	rr := doRequest(s, "POST", "/api/v1/sessions", b)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	return decode[SessionInfo](t, rr)
}

func loadMovie(t *testing.T, s *Server, id string, n int) LoadResponse {
	t.Helper()
	rr := doRequest(s, "POST", "/api/v1/sessions/"+id+"/load", demuxtest.Movie(n))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	return decode[LoadResponse](t, rr)
}

func TestAPI_SessionLifecycle(t *testing.T) {
	s, _ := newTestServer(t, testConfig())

	info := createSession(t, s, `{"mediaId":"movie-1"}`)
	assert.Equal(t, "movie-1", info.MediaID)
	assert.Equal(t, player.StateIdle, info.State)

	list := decode[struct {
		Sessions []SessionInfo `json:"sessions"`
		Count    int           `json:"count"`
		Limit    int           `json:"limit"`
	}](t, doRequest(s, "GET", "/api/v1/sessions", nil))
	assert.Equal(t, 1, list.Count)
	assert.Equal(t, 4, list.Limit)
	require.Len(t, list.Sessions, 1)

	rr := doRequest(s, "DELETE", "/api/v1/sessions/"+info.ID, nil)
	assert.Equal(t, http.StatusNoContent, rr.Code)

	rr = doRequest(s, "GET", "/api/v1/sessions/"+info.ID, nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, "NOT_FOUND", decode[errorBody](t, rr).Error.Type)
}

func TestAPI_CreateSessionErrors(t *testing.T) {
	cfg := testConfig()
	cfg.MaxSessions = 1
	s, _ := newTestServer(t, cfg)

	rr := doRequest(s, "POST", "/api/v1/sessions", []byte("{not json"))
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	createSession(t, s, "")
	rr = doRequest(s, "POST", "/api/v1/sessions", nil)
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.Equal(t, "RATE_LIMIT", decode[errorBody](t, rr).Error.Type)
}

func TestAPI_LoadAndPlay(t *testing.T) {
	s, _ := newTestServer(t, testConfig())
	info := createSession(t, s, "")

	resp := loadMovie(t, s, info.ID, 4)
	assert.Equal(t, player.StateReady, resp.State)
	assert.Equal(t, "Mp4", resp.Format)
	require.NotNil(t, resp.DurationMS)
	assert.Equal(t, int64(2000), *resp.DurationMS)
	require.Len(t, resp.Streams, 2)
	assert.Equal(t, "video", resp.Streams[0].Type)
	assert.Equal(t, "audio", resp.Streams[1].Type)
	assert.Nil(t, resp.ResumeMS)

	rr := doRequest(s, "POST", "/api/v1/sessions/"+info.ID+"/play", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, player.StatePlaying, decode[stateResponse](t, rr).State)

	rr = doRequest(s, "POST", "/api/v1/sessions/"+info.ID+"/pause", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, player.StatePaused, decode[stateResponse](t, rr).State)

	// Pause while paused is an illegal transition
	rr = doRequest(s, "POST", "/api/v1/sessions/"+info.ID+"/pause", nil)
	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.Equal(t, "INVALID_STATE", decode[errorBody](t, rr).Error.Type)

	status := decode[StatusResponse](t, doRequest(s, "GET", "/api/v1/sessions/"+info.ID, nil))
	assert.Equal(t, player.StatePaused, status.State)
	assert.Equal(t, "Mp4", status.Format)
	assert.True(t, status.Consistent)
	assert.Equal(t, 30, status.Buffers.VideoCapacity)
}

func TestAPI_LoadErrors(t *testing.T) {
	cfg := testConfig()
	cfg.MaxUploadBytes = 64
	s, _ := newTestServer(t, cfg)
	info := createSession(t, s, "")

	tests := []struct {
		name   string
		body   []byte
		status int
		kind   string
	}{
		{"empty", []byte{}, http.StatusUnprocessableEntity, "DEMUX_ERROR"},
		{"too short", []byte("short"), http.StatusUnsupportedMediaType, "INVALID_FORMAT"},
		{"unknown container", make([]byte, 32), http.StatusUnsupportedMediaType, "INVALID_FORMAT"},
		{"too large", make([]byte, 65), http.StatusRequestEntityTooLarge, "VALIDATION_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := doRequest(s, "POST", "/api/v1/sessions/"+info.ID+"/load", tt.body)
			assert.Equal(t, tt.kind, decode[errorBody](t, rr).Error.Type)
			assert.Equal(t, tt.status, rr.Code)

			// A failed load leaves the session usable
			got := decode[SessionInfo](t, doRequest(s, "GET", "/api/v1/sessions/"+info.ID, nil))
			assert.Equal(t, player.StateIdle, got.State)
		})
	}
}

func TestAPI_PumpAndPop(t *testing.T) {
	s, _ := newTestServer(t, testConfig())
	info := createSession(t, s, "")
	loadMovie(t, s, info.ID, 4)
	base := "/api/v1/sessions/" + info.ID

	// Nothing decoded yet
	rr := doRequest(s, "GET", base+"/video", nil)
	assert.Equal(t, http.StatusNoContent, rr.Code)

	rr = doRequest(s, "POST", base+"/pump?budget=100", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	pumped := decode[struct {
		player.PumpResult
		State   player.State      `json:"state"`
		Buffers framebuffer.Stats `json:"buffers"`
	}](t, rr)
	assert.Equal(t, 8, pumped.Packets)
	assert.Equal(t, 8, pumped.Frames)
	assert.True(t, pumped.EndOfStream)
	assert.Equal(t, 4, pumped.Buffers.VideoFrames)
	assert.Equal(t, 4, pumped.Buffers.AudioFrames)

	// Peek leaves the frame queued
	rr = doRequest(s, "GET", base+"/video?peek=true", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "0", rr.Header().Get(HeaderFramePTS))

	rr = doRequest(s, "GET", base+"/video", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/octet-stream", rr.Header().Get("Content-Type"))
	assert.Equal(t, "0", rr.Header().Get(HeaderFramePTS))
	assert.Equal(t, "2", rr.Header().Get(HeaderFrameWidth))
	assert.Equal(t, "2", rr.Header().Get(HeaderFrameHeight))
	assert.Equal(t, "yuv420p", rr.Header().Get(HeaderPixelFormat))
	assert.Len(t, rr.Body.Bytes(), 6)

	rr = doRequest(s, "GET", base+"/video", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "500", rr.Header().Get(HeaderFramePTS))

	rr = doRequest(s, "GET", base+"/audio", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "48000", rr.Header().Get(HeaderSampleRate))
	assert.Equal(t, "2", rr.Header().Get(HeaderChannels))
	assert.Equal(t, "s16", rr.Header().Get(HeaderSampleFormat))
	assert.Len(t, rr.Body.Bytes(), 8)

	stats := decode[framebuffer.Stats](t, doRequest(s, "GET", base+"/buffers", nil))
	assert.Equal(t, 2, stats.VideoFrames)
	assert.Equal(t, 3, stats.AudioFrames)

	rr = doRequest(s, "POST", base+"/pump?budget=-1", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestAPI_PlayToEnd(t *testing.T) {
	s, _ := newTestServer(t, testConfig())
	info := createSession(t, s, "")
	loadMovie(t, s, info.ID, 2)
	base := "/api/v1/sessions/" + info.ID

	require.Equal(t, http.StatusOK, doRequest(s, "POST", base+"/play", nil).Code)
	require.Equal(t, http.StatusOK, doRequest(s, "POST", base+"/pump", nil).Code)

	for _, kind := range []string{"video", "audio"} {
		for {
			rr := doRequest(s, "GET", base+"/"+kind, nil)
			if rr.Code == http.StatusNoContent {
				break
			}
			require.Equal(t, http.StatusOK, rr.Code)
		}
	}

	got := decode[SessionInfo](t, doRequest(s, "GET", base, nil))
	assert.Equal(t, player.StateEnded, got.State)
}

func TestAPI_Seek(t *testing.T) {
	s, _ := newTestServer(t, testConfig())
	info := createSession(t, s, "")
	loadMovie(t, s, info.ID, 4)
	base := "/api/v1/sessions/" + info.ID

	require.Equal(t, http.StatusOK, doRequest(s, "POST", base+"/pump", nil).Code)

	rr := doRequest(s, "POST", base+"/seek", []byte(`{"positionMs":1000}`))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	resp := decode[stateResponse](t, rr)
	assert.Equal(t, player.StateReady, resp.State)
	assert.Equal(t, int64(1000), resp.PositionMS)

	stats := decode[framebuffer.Stats](t, doRequest(s, "GET", base+"/buffers", nil))
	assert.Equal(t, 0, stats.VideoFrames)
	assert.Equal(t, 0, stats.AudioFrames)

	tests := []struct {
		name   string
		body   string
		status int
	}{
		{"missing position", `{}`, http.StatusBadRequest},
		{"bad json", `{`, http.StatusBadRequest},
		{"negative", `{"positionMs":-5}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := doRequest(s, "POST", base+"/seek", []byte(tt.body))
			assert.Equal(t, tt.status, rr.Code, rr.Body.String())
		})
	}
}

func TestAPI_SeekBeforeLoad(t *testing.T) {
	s, _ := newTestServer(t, testConfig())
	info := createSession(t, s, "")

	rr := doRequest(s, "POST", "/api/v1/sessions/"+info.ID+"/seek", []byte(`{"positionMs":0}`))
	assert.Equal(t, http.StatusConflict, rr.Code)
}

func TestAPI_Reset(t *testing.T) {
	s, _ := newTestServer(t, testConfig())
	info := createSession(t, s, "")
	loadMovie(t, s, info.ID, 2)

	rr := doRequest(s, "POST", "/api/v1/sessions/"+info.ID+"/reset", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, player.StateIdle, decode[stateResponse](t, rr).State)

	// Load is accepted again
	loadMovie(t, s, info.ID, 2)
}

func TestAPI_Streams(t *testing.T) {
	s, _ := newTestServer(t, testConfig())
	info := createSession(t, s, "")
	loadMovie(t, s, info.ID, 2)

	resp := decode[struct {
		Streams []StreamResponse `json:"streams"`
	}](t, doRequest(s, "GET", "/api/v1/sessions/"+info.ID+"/streams", nil))

	require.Len(t, resp.Streams, 2)
	assert.Equal(t, 2, resp.Streams[0].Width)
	assert.Equal(t, "rawvideo", resp.Streams[0].Codec)
	assert.Equal(t, 48000, resp.Streams[1].SampleRate)
	assert.Equal(t, 2, resp.Streams[1].Channels)
}

func TestAPI_Subtitles(t *testing.T) {
	s, _ := newTestServer(t, testConfig())
	info := createSession(t, s, "")
	base := "/api/v1/sessions/" + info.ID

	// Subtitles load in any state
	rr := doRequest(s, "POST", base+"/subtitles", []byte(testSRT))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	sub := decode[player.SubtitleInfo](t, rr)
	assert.Equal(t, "srt", sub.Format)
	assert.Equal(t, 2, sub.CueCount)

	cues := decode[struct {
		T    int64          `json:"t"`
		Cues []subtitle.Cue `json:"cues"`
	}](t, doRequest(s, "GET", base+"/subtitles?t=750", nil))
	assert.Equal(t, int64(750), cues.T)
	require.Len(t, cues.Cues, 2)
	assert.Equal(t, "Hello", cues.Cues[0].Text)
	assert.Equal(t, "World", cues.Cues[1].Text)

	// End is exclusive
	cues = decode[struct {
		T    int64          `json:"t"`
		Cues []subtitle.Cue `json:"cues"`
	}](t, doRequest(s, "GET", base+"/subtitles?t=2000", nil))
	assert.Empty(t, cues.Cues)

	status := decode[StatusResponse](t, doRequest(s, "GET", base, nil))
	require.NotNil(t, status.Subtitles)
	assert.Equal(t, 2, status.Subtitles.CueCount)
}

func TestAPI_SubtitleErrors(t *testing.T) {
	s, _ := newTestServer(t, testConfig())
	info := createSession(t, s, "")
	base := "/api/v1/sessions/" + info.ID

	tests := []struct {
		name string
		path string
		body string
		kind string
	}{
		{"empty document", "/subtitles", "", "SUBTITLE_ERROR"},
		{"unknown format", "/subtitles?format=sub", testSRT, "SUBTITLE_ERROR"},
		{"forced vtt without header", "/subtitles?format=vtt", testSRT, "SUBTITLE_ERROR"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := doRequest(s, "POST", base+tt.path, []byte(tt.body))
			assert.Equal(t, tt.kind, decode[errorBody](t, rr).Error.Type, rr.Body.String())
		})
	}

	rr := doRequest(s, "GET", base+"/subtitles?t=abc", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestAPI_Resume(t *testing.T) {
	s, store := newTestServer(t, testConfig())
	info := createSession(t, s, `{"mediaId":"movie-7"}`)
	base := "/api/v1/sessions/" + info.ID

	// Saving before a load is rejected
	rr := doRequest(s, "POST", base+"/resume", nil)
	assert.Equal(t, http.StatusConflict, rr.Code)

	loadMovie(t, s, info.ID, 4)
	require.Equal(t, http.StatusOK, doRequest(s, "POST", base+"/seek", []byte(`{"positionMs":1000}`)).Code)

	rr = doRequest(s, "POST", base+"/resume", nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	saved := decode[resume.Position](t, rr)
	assert.Equal(t, "movie-7", saved.MediaID)
	assert.Equal(t, int64(1000), saved.PositionMS)
	assert.Equal(t, "Mp4", saved.Container)

	got, err := store.Get(context.Background(), "movie-7")
	require.NoError(t, err)
	assert.Equal(t, int64(1000), got.PositionMS)

	// A new session for the same media is told where to resume
	next := createSession(t, s, `{"mediaId":"movie-7"}`)
	resp := loadMovie(t, s, next.ID, 4)
	require.NotNil(t, resp.ResumeMS)
	assert.Equal(t, int64(1000), *resp.ResumeMS)

	rr = doRequest(s, "GET", "/api/v1/resume/movie-7", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	recent := decode[struct {
		Positions []resume.Position `json:"positions"`
	}](t, doRequest(s, "GET", "/api/v1/resume?limit=5", nil))
	require.Len(t, recent.Positions, 1)

	rr = doRequest(s, "DELETE", "/api/v1/resume/movie-7", nil)
	assert.Equal(t, http.StatusNoContent, rr.Code)
	rr = doRequest(s, "GET", "/api/v1/resume/movie-7", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = doRequest(s, "GET", "/api/v1/resume?limit=0", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestAPI_ResumeFinishedIsIgnored(t *testing.T) {
	s, store := newTestServer(t, testConfig())
	duration := int64(2000)
	require.NoError(t, store.Save(context.Background(), &resume.Position{
		MediaID: "done", PositionMS: 1900, DurationMS: &duration,
	}))

	info := createSession(t, s, `{"mediaId":"done"}`)
	resp := loadMovie(t, s, info.ID, 4)
	assert.Nil(t, resp.ResumeMS)
}

func TestAPI_ResumeWithoutMediaID(t *testing.T) {
	s, _ := newTestServer(t, testConfig())
	info := createSession(t, s, "")
	loadMovie(t, s, info.ID, 2)

	rr := doRequest(s, "POST", "/api/v1/sessions/"+info.ID+"/resume", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestAPI_ResumeDisabled(t *testing.T) {
	s := New(testConfig(), player.DefaultConfig(), testLogger(), nil)
	s.setupRoutes()
	t.Cleanup(s.sessions.CloseAll)

	for _, path := range []string{"/api/v1/resume", "/api/v1/resume/x"} {
		rr := doRequest(s, "GET", path, nil)
		assert.Equal(t, http.StatusServiceUnavailable, rr.Code, path)
	}
}

func TestAPI_UnknownSession(t *testing.T) {
	s, _ := newTestServer(t, testConfig())

	paths := []struct{ method, path string }{
		{"POST", "/load"},
		{"POST", "/play"},
		{"POST", "/pump"},
		{"GET", "/video"},
		{"GET", "/audio"},
		{"GET", "/streams"},
		{"GET", "/buffers"},
		{"GET", "/subtitles"},
		{"DELETE", ""},
	}
	for i, p := range paths {
		t.Run(strconv.Itoa(i)+p.path, func(t *testing.T) {
			rr := doRequest(s, p.method, "/api/v1/sessions/missing"+p.path, nil)
			assert.Equal(t, http.StatusNotFound, rr.Code)
		})
	}
}
