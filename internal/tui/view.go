package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

const defaultWidth = 80

// View implements tea.Model
func (m *Model) View() string {
	if m.quitting {
		return "Stopping playback...\n"
	}

	width := m.width
	if width <= 0 {
		width = defaultWidth
	}
	panelWidth := (width - 4) / 2
	if panelWidth < 30 {
		panelWidth = 30
	}

	sections := []string{
		m.renderHeader(),
		m.renderProgress(width - 2),
		lipgloss.JoinHorizontal(lipgloss.Top,
			m.renderBuffers(panelWidth),
			m.renderPresented(panelWidth),
		),
		m.renderSubtitles(width - 2),
	}
	if m.err != nil {
		sections = append(sections, ErrorStyle.Render("error: "+m.err.Error()))
	}
	sections = append(sections, HelpStyle.Render("space play/pause  ←/→ seek  0 start  r restart  q quit"))

	return lipgloss.JoinVertical(lipgloss.Left, sections...) + "\n"
}

func (m *Model) renderHeader() string {
	title := m.opts.Title
	if title == "" {
		title = "playcore"
	}
	format, _ := m.ctrl.Format()
	return lipgloss.JoinHorizontal(lipgloss.Center,
		TitleStyle.Render(title),
		StateBadge(m.ctrl.State().String()),
		LabelStyle.Render(format),
	)
}

func (m *Model) renderProgress(width int) string {
	pos := m.clock.Now()
	dur, ok := m.ctrl.DurationMS()
	if !ok {
		return LabelStyle.Render(formatMS(pos) + " / --:--")
	}
	if pos > dur {
		pos = dur
	}
	label := fmt.Sprintf(" %s / %s", formatMS(pos), formatMS(dur))
	barWidth := width - lipgloss.Width(label)
	if barWidth < 10 {
		barWidth = 10
	}
	return progressBar(pos, dur, barWidth) + ValueStyle.Render(label)
}

func (m *Model) renderBuffers(width int) string {
	stats := m.ctrl.BufferStats()
	videoMS, audioMS := m.ctrl.BufferedMS()
	rows := []string{
		PanelTitleStyle.Render("Buffers"),
		row("video", fmt.Sprintf("%d/%d  %dms", stats.VideoFrames, stats.VideoCapacity, videoMS)),
		row("audio", fmt.Sprintf("%d/%d  %dms", stats.AudioFrames, stats.AudioCapacity, audioMS)),
	}
	return PanelStyle.Width(width).Render(strings.Join(rows, "\n"))
}

func (m *Model) renderPresented(width int) string {
	frame := "-"
	if f := m.lastVideo; f != nil {
		frame = fmt.Sprintf("%dx%d %s @%dms", f.Width, f.Height, f.PixelFormat, f.PTS)
	}
	rows := []string{
		PanelTitleStyle.Render("Presented"),
		row("video", fmt.Sprintf("%d shown, %d skipped", m.stats.VideoFrames, m.stats.VideoSkipped)),
		row("audio", fmt.Sprintf("%d frames, %dms", m.stats.AudioFrames, m.stats.AudioMS)),
		row("frame", frame),
	}
	return PanelStyle.Width(width).Render(strings.Join(rows, "\n"))
}

func (m *Model) renderSubtitles(width int) string {
	if _, ok := m.ctrl.SubtitleTrack(); !ok {
		return ""
	}
	lines := make([]string, 0, len(m.cues))
	for _, c := range m.cues {
		lines = append(lines, c.Text)
	}
	text := strings.Join(lines, "\n")
	if text == "" {
		text = " "
	}
	return SubtitleStyle.Width(width).Render(text)
}

func row(label, value string) string {
	return LabelStyle.Render(fmt.Sprintf("%-6s", label)) + " " + ValueStyle.Render(value)
}

func progressBar(pos, dur int64, width int) string {
	filled := 0
	if dur > 0 {
		filled = int(int64(width) * pos / dur)
	}
	if filled > width {
		filled = width
	}
	return lipgloss.NewStyle().Foreground(Primary).Render(strings.Repeat("█", filled)) +
		lipgloss.NewStyle().Foreground(Border).Render(strings.Repeat("░", width-filled))
}

// formatMS renders a media time as m:ss.t
func formatMS(ms int64) string {
	if ms < 0 {
		ms = 0
	}
	return fmt.Sprintf("%d:%02d.%d", ms/60000, (ms/1000)%60, (ms%1000)/100)
}
