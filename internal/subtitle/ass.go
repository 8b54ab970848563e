package subtitle

import (
	"strconv"
	"strings"

	"github.com/asticode/go-astisub"

	"github.com/zsiec/playcore/internal/errors"
)

// parseASS reads an ASS/SSA script with astisub: styles from [V4+ Styles]
// or [V4 Styles] and Dialogue events. Comment events are dropped before
// decoding, and [Script Info] supplies the title and language.
func parseASS(lines []string) (*Track, error) {
	var (
		opts    []TrackOption
		section string
		kept    = make([]string, 0, len(lines))
	)
	for _, raw := range lines {
		line := strings.TrimSpace(raw)
		if strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]") {
			section = strings.ToLower(line)
		}
		switch section {
		case "[script info]":
			if key, value, ok := strings.Cut(line, ":"); ok {
				switch strings.ToLower(strings.TrimSpace(key)) {
				case "title":
					opts = append(opts, WithTitle(strings.TrimSpace(value)))
				case "language":
					opts = append(opts, WithLanguage(strings.TrimSpace(value)))
				}
			}
		case "[events]":
			if strings.HasPrefix(line, "Comment:") {
				continue
			}
		}
		kept = append(kept, raw)
	}

	subs, err := astisub.ReadFromSSA(strings.NewReader(strings.Join(kept, "\n")))
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeSubtitle, "invalid ASS/SSA script", errors.StatusFor(errors.ErrorTypeSubtitle))
	}

	styles := make(map[string]*Style, len(subs.Styles))
	for id, st := range subs.Styles {
		styles[id] = assStyle(st)
	}

	cues := make([]Cue, 0, len(subs.Items))
	for _, item := range subs.Items {
		text := assEscapes.Replace(itemText(item, ""))
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		var style *Style
		if item.Style != nil {
			style = styles[item.Style.ID]
		}
		if style == nil {
			style = styles["Default"]
		}
		cue, err := NewCue(strconv.Itoa(len(cues)+1), item.StartAt.Milliseconds(), item.EndAt.Milliseconds(), text, style)
		if err != nil {
			return nil, err
		}
		cues = append(cues, cue)
	}

	return NewTrack(FormatASS, cues, opts...)
}

func assStyle(st *astisub.Style) *Style {
	s := &Style{}
	a := st.InlineStyle
	if a == nil {
		return s
	}
	s.FontFamily = a.SSAFontName
	if a.SSAFontSize != nil {
		s.FontSize = int(*a.SSAFontSize)
	}
	s.Color = hexColor(a.SSAPrimaryColour)
	s.BackgroundColor = hexColor(a.SSABackColour)
	s.Bold = a.SSABold != nil && *a.SSABold
	s.Italic = a.SSAItalic != nil && *a.SSAItalic
	s.Underline = a.SSAUnderline != nil && *a.SSAUnderline
	if a.SSAAlignment != nil {
		s.Alignment = assAlignment(*a.SSAAlignment)
	}
	return s
}

func hexColor(c *astisub.Color) string {
	if c == nil {
		return ""
	}
	const digits = "0123456789ABCDEF"
	out := []byte{'#', 0, 0, 0, 0, 0, 0}
	for i, v := range []uint8{c.Red, c.Green, c.Blue} {
		out[1+2*i] = digits[v>>4]
		out[2+2*i] = digits[v&0x0F]
	}
	return string(out)
}

// assAlignment maps numpad-style alignment (1-9) to a horizontal placement.
func assAlignment(n int) Alignment {
	if n < 1 || n > 9 {
		return AlignDefault
	}
	switch n % 3 {
	case 1:
		return AlignLeft
	case 2:
		return AlignCenter
	default:
		return AlignRight
	}
}

// The decoder splits lines on \N; the soft break and hard space escapes
// survive in the text.
var assEscapes = strings.NewReplacer(`\N`, "\n", `\n`, "\n", `\h`, " ")
