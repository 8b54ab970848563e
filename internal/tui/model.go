// Package tui is a terminal playback host. It drives a player.Controller
// from a bubbletea tick loop: every tick pumps the decoder and presents the
// frames that the presentation clock has reached.
package tui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/zsiec/playcore/internal/media"
	"github.com/zsiec/playcore/internal/player"
	"github.com/zsiec/playcore/internal/subtitle"
)

const (
	DefaultTick     = 40 * time.Millisecond
	DefaultSeekStep = 5 * time.Second
)

// Options configures the host.
type Options struct {
	Title     string
	Media     []byte
	Subtitles string // optional subtitle document
	Tick      time.Duration
	SeekStep  time.Duration
	Now       func() time.Time
}

// PresentStats counts what the host handed out.
type PresentStats struct {
	VideoFrames int
	// VideoSkipped counts frames that were due in the same tick as a later
	// frame and therefore never shown.
	VideoSkipped int
	AudioFrames  int
	AudioMS      int64
}

// Model is the bubbletea model of the terminal host.
type Model struct {
	ctrl  *player.Controller
	opts  Options
	clock *Clock

	stats     PresentStats
	lastVideo *media.VideoFrame
	cues      []subtitle.Cue
	err       error

	width    int
	quitting bool
}

type tickMsg time.Time

// New loads the media (and subtitles, when given) into ctrl.
func New(ctrl *player.Controller, opts Options) (*Model, error) {
	if opts.Tick <= 0 {
		opts.Tick = DefaultTick
	}
	if opts.SeekStep <= 0 {
		opts.SeekStep = DefaultSeekStep
	}
	m := &Model{
		ctrl:  ctrl,
		opts:  opts,
		clock: NewClock(opts.Now),
	}
	if err := m.load(); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Model) load() error {
	if err := m.ctrl.Load(m.opts.Media); err != nil {
		return err
	}
	if m.opts.Subtitles != "" {
		if _, err := m.ctrl.LoadSubtitles(m.opts.Subtitles); err != nil {
			return err
		}
	}
	return nil
}

// Init implements tea.Model
func (m *Model) Init() tea.Cmd {
	return tickEvery(m.opts.Tick)
}

// Update implements tea.Model
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		case " ", "p":
			m.togglePlay()
		case "left", "h":
			m.seekBy(-m.opts.SeekStep)
		case "right", "l":
			m.seekBy(m.opts.SeekStep)
		case "0", "home":
			m.seekTo(0)
		case "r":
			m.restart()
		}
		return m, nil

	case tickMsg:
		if m.quitting {
			return m, nil
		}
		m.step()
		return m, tickEvery(m.opts.Tick)
	}

	return m, nil
}

// step runs one iteration of the host loop.
func (m *Model) step() {
	defer func() { m.cues = m.ctrl.Subtitles(m.clock.Now()) }()

	switch m.ctrl.State() {
	case player.StateReady, player.StatePlaying, player.StatePaused:
	default:
		m.clock.Stop()
		return
	}
	if _, err := m.ctrl.Pump(0); err != nil {
		m.err = err
		m.clock.Stop()
		return
	}
	if m.ctrl.State() != player.StatePlaying {
		return
	}
	m.present(m.clock.Now())
	if m.ctrl.State() == player.StateEnded {
		m.clock.Stop()
		if dur, ok := m.ctrl.DurationMS(); ok && m.clock.Now() > dur {
			m.clock.Set(dur)
		}
	}
}

// present pops every frame due at now. Only the newest due video frame is
// shown.
func (m *Model) present(now int64) {
	due := 0
	for {
		f, ok := m.ctrl.PeekVideo()
		if !ok || f.PTS > now {
			break
		}
		m.lastVideo, _ = m.ctrl.PopVideo()
		due++
	}
	if due > 0 {
		m.stats.VideoFrames++
		m.stats.VideoSkipped += due - 1
	}

	for {
		f, ok := m.ctrl.PeekAudio()
		if !ok || f.PTS > now {
			break
		}
		m.ctrl.PopAudio()
		m.stats.AudioFrames++
		m.stats.AudioMS += f.DurationMS()
	}
}

func (m *Model) togglePlay() {
	var err error
	switch m.ctrl.State() {
	case player.StatePlaying:
		err = m.ctrl.Pause()
		m.clock.Stop()
	case player.StateEnded:
		m.restart()
		err = m.play()
	default:
		err = m.play()
	}
	m.err = err
}

func (m *Model) play() error {
	if err := m.ctrl.Play(); err != nil {
		return err
	}
	m.clock.Start()
	return nil
}

func (m *Model) seekBy(d time.Duration) {
	m.seekTo(m.clock.Now() + d.Milliseconds())
}

// seekTo clamps target to the media and repositions the controller. Seeking
// after the end reloads the media first.
func (m *Model) seekTo(target int64) {
	if target < 0 {
		target = 0
	}
	if dur, ok := m.ctrl.DurationMS(); ok && target > dur {
		target = dur
	}
	if m.ctrl.State() == player.StateEnded {
		m.restart()
	}
	if err := m.ctrl.Seek(target); err != nil {
		m.err = err
		return
	}
	m.err = nil
	m.lastVideo = nil
	m.clock.Set(target)
}

// restart reloads the media from the start, paused.
func (m *Model) restart() {
	m.ctrl.Reset()
	m.clock.Stop()
	m.clock.Set(0)
	m.stats = PresentStats{}
	m.lastVideo = nil
	m.cues = nil
	m.err = m.load()
}

// Stats returns the presentation counters.
func (m *Model) Stats() PresentStats { return m.stats }

// Position returns the presentation clock in milliseconds.
func (m *Model) Position() int64 { return m.clock.Now() }

// Err returns the last operation error, if any.
func (m *Model) Err() error { return m.err }

func tickEvery(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}
