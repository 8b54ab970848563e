package subtitle

import (
	"strings"

	"github.com/zsiec/playcore/internal/errors"
)

// Format is the subtitle document format.
type Format uint8

const (
	FormatSRT Format = iota
	FormatVTT
	FormatASS
)

// String returns the string representation of Format
func (f Format) String() string {
	switch f {
	case FormatSRT:
		return "srt"
	case FormatVTT:
		return "vtt"
	case FormatASS:
		return "ass"
	default:
		return "unknown"
	}
}

// MarshalText renders the format by name.
func (f Format) MarshalText() ([]byte, error) {
	return []byte(f.String()), nil
}

// ParseFormatName maps "srt", "vtt"/"webvtt" and "ass"/"ssa" to a Format.
func ParseFormatName(name string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "srt", "subrip":
		return FormatSRT, nil
	case "vtt", "webvtt":
		return FormatVTT, nil
	case "ass", "ssa":
		return FormatASS, nil
	default:
		return 0, errors.NewSubtitleError("unknown subtitle format %q", name)
	}
}

// DetectFormat inspects the start of the document: a leading WEBVTT marker
// selects VTT, a [Script Info] header or a styles section selects ASS, and
// everything else is treated as SRT.
func DetectFormat(text string) Format {
	trimmed := strings.TrimSpace(strings.TrimPrefix(text, bom))
	switch {
	case strings.HasPrefix(trimmed, "WEBVTT"):
		return FormatVTT
	case strings.HasPrefix(trimmed, "[Script Info]"),
		strings.Contains(trimmed, "[V4+ Styles]"),
		strings.Contains(trimmed, "[V4 Styles]"):
		return FormatASS
	default:
		return FormatSRT
	}
}

// Parse detects the format of text and parses it.
func Parse(text string) (*Track, error) {
	return ParseFormat(text, DetectFormat(text))
}

// ParseFormat parses text as the given format. Blank input, or a document
// that yields no cues, is an error.
func ParseFormat(text string, format Format) (*Track, error) {
	if strings.TrimSpace(strings.TrimPrefix(text, bom)) == "" {
		return nil, errors.NewSubtitleError("empty subtitle data")
	}

	lines := splitLines(text)

	var (
		track *Track
		err   error
	)
	switch format {
	case FormatSRT:
		track, err = parseSRT(lines)
	case FormatVTT:
		track, err = parseVTT(lines)
	case FormatASS:
		track, err = parseASS(lines)
	default:
		return nil, errors.NewSubtitleError("unsupported subtitle format %d", format)
	}
	if err != nil {
		return nil, err
	}

	if track.Len() == 0 {
		return nil, errors.NewSubtitleError("no cues found in %s document", format)
	}
	return track, nil
}

const bom = "\ufeff"

func splitLines(text string) []string {
	text = strings.TrimPrefix(text, bom)
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	return strings.Split(text, "\n")
}

// blocks groups lines into runs separated by blank lines.
func blocks(lines []string) [][]string {
	var (
		out [][]string
		cur []string
	)
	for _, l := range lines {
		if strings.TrimSpace(l) == "" {
			if len(cur) > 0 {
				out = append(out, cur)
				cur = nil
			}
			continue
		}
		cur = append(cur, l)
	}
	if len(cur) > 0 {
		out = append(out, cur)
	}
	return out
}
