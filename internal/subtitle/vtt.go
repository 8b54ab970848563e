package subtitle

import (
	"strconv"
	"strings"

	"github.com/asticode/go-astisub"

	"github.com/zsiec/playcore/internal/errors"
)

// parseVTT reads a WebVTT document with astisub. NOTE, STYLE and REGION
// blocks are skipped by the decoder. Header metadata ("WEBVTT - title",
// "Language:" and "Title:") populates the track.
func parseVTT(lines []string) (*Track, error) {
	subs, err := astisub.ReadFromWebVTT(strings.NewReader(strings.Join(lines, "\n")))
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeSubtitle, "invalid WebVTT document", errors.StatusFor(errors.ErrorTypeSubtitle))
	}

	cues := make([]Cue, 0, len(subs.Items))
	for _, item := range subs.Items {
		text := vttEntities.Replace(itemText(item, " "))
		if text == "" {
			continue
		}
		id := strconv.Itoa(len(cues) + 1)
		if item.Index > 0 {
			id = strconv.Itoa(item.Index)
		}
		cue, err := NewCue(id, item.StartAt.Milliseconds(), item.EndAt.Milliseconds(), text, vttStyle(item))
		if err != nil {
			return nil, err
		}
		cues = append(cues, cue)
	}

	return NewTrack(FormatVTT, cues, vttHeader(lines)...)
}

// vttHeader reads the title and language from the lines before the first
// blank line.
func vttHeader(lines []string) []TrackOption {
	var opts []TrackOption
	for i, l := range lines {
		l = strings.TrimSpace(l)
		if l == "" {
			break
		}
		if i == 0 {
			if title := strings.TrimLeft(strings.TrimPrefix(l, "WEBVTT"), "- \t"); title != "" {
				opts = append(opts, WithTitle(title))
			}
			continue
		}
		key, value, ok := strings.Cut(l, ":")
		if !ok {
			continue
		}
		switch strings.ToLower(strings.TrimSpace(key)) {
		case "language":
			opts = append(opts, WithLanguage(strings.TrimSpace(value)))
		case "title":
			opts = append(opts, WithTitle(strings.TrimSpace(value)))
		}
	}
	return opts
}

// itemText joins the item's lines with newlines, dropping empty lines. sep
// goes between the styled spans of a line: WebVTT spans arrive trimmed,
// ASS spans keep their own spacing.
func itemText(item *astisub.Item, sep string) string {
	out := make([]string, 0, len(item.Lines))
	for _, line := range item.Lines {
		parts := make([]string, 0, len(line.Items))
		for _, li := range line.Items {
			parts = append(parts, li.Text)
		}
		if t := strings.TrimSpace(strings.Join(parts, sep)); t != "" {
			out = append(out, t)
		}
	}
	return strings.Join(out, "\n")
}

// vttStyle maps the align cue setting and <b>, <i> and <u> spans that cover
// the whole cue. It returns nil when nothing is set.
func vttStyle(item *astisub.Item) *Style {
	var (
		s   Style
		set bool
	)

	if item.InlineStyle != nil {
		switch item.InlineStyle.WebVTTAlign {
		case "start", "left":
			s.Alignment, set = AlignLeft, true
		case "center", "middle":
			s.Alignment, set = AlignCenter, true
		case "end", "right":
			s.Alignment, set = AlignRight, true
		}
	}

	bold, italic, underline := true, true, true
	spans := 0
	for _, line := range item.Lines {
		for _, li := range line.Items {
			if strings.TrimSpace(li.Text) == "" {
				continue
			}
			spans++
			attrs := li.InlineStyle
			if attrs == nil {
				bold, italic, underline = false, false, false
				continue
			}
			bold = bold && attrs.WebVTTBold
			italic = italic && attrs.WebVTTItalics
			underline = underline && attrs.WebVTTUnderline
		}
	}
	if spans > 0 {
		if bold {
			s.Bold, set = true, true
		}
		if italic {
			s.Italic, set = true, true
		}
		if underline {
			s.Underline, set = true, true
		}
	}

	if !set {
		return nil
	}
	return &s
}

var vttEntities = strings.NewReplacer(
	"&amp;", "&",
	"&lt;", "<",
	"&gt;", ">",
	"&nbsp;", " ",
	"&lrm;", "",
	"&rlm;", "",
)
