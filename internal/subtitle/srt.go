package subtitle

import (
	"strconv"
	"strings"

	"github.com/zsiec/playcore/internal/errors"
)

// parseSRT reads SubRip blocks: an optional numeric index, a timing line
// "start --> end" and one or more text lines. Blocks without a timing line
// are skipped; a timing line that does not parse fails the document.
func parseSRT(lines []string) (*Track, error) {
	var cues []Cue

	for n, block := range blocks(lines) {
		timing := -1
		for i, l := range block {
			if strings.Contains(l, "-->") {
				timing = i
				break
			}
		}
		if timing < 0 {
			continue
		}

		start, end, err := parseTiming(block[timing], ParseTimestamp)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeSubtitle,
				"block "+strconv.Itoa(n+1)+": bad timing line", errors.StatusFor(errors.ErrorTypeSubtitle))
		}

		text := strings.Join(trimRight(block[timing+1:]), "\n")
		if text == "" {
			continue
		}

		id := strconv.Itoa(len(cues) + 1)
		if timing > 0 {
			id = strings.TrimSpace(block[timing-1])
		}

		cue, err := NewCue(id, start, end, text, nil)
		if err != nil {
			return nil, err
		}
		cues = append(cues, cue)
	}

	return NewTrack(FormatSRT, cues)
}

// parseTiming splits "start --> end [settings]" and parses both bounds.
func parseTiming(line string, parse func(string) (int64, error)) (start, end int64, err error) {
	left, right, ok := strings.Cut(line, "-->")
	if !ok {
		return 0, 0, errors.NewSubtitleError("missing --> in %q", line)
	}
	fields := strings.Fields(right)
	if len(fields) == 0 {
		return 0, 0, errors.NewSubtitleError("missing end time in %q", line)
	}
	if start, err = parse(left); err != nil {
		return 0, 0, err
	}
	if end, err = parse(fields[0]); err != nil {
		return 0, 0, err
	}
	return start, end, nil
}

func trimRight(lines []string) []string {
	out := make([]string, len(lines))
	for i, l := range lines {
		out[i] = strings.TrimRight(l, " \t")
	}
	return out
}
