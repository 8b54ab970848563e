// Package subtitle parses SRT, WebVTT and ASS/SSA documents into immutable
// tracks that answer "which cues are visible at t" by interval lookup.
package subtitle

import (
	"github.com/zsiec/playcore/internal/errors"
)

// Alignment is the horizontal placement of a cue.
type Alignment string

const (
	AlignDefault Alignment = ""
	AlignLeft    Alignment = "left"
	AlignCenter  Alignment = "center"
	AlignRight   Alignment = "right"
)

// Style carries the styling data a renderer needs. Zero values mean
// "renderer default".
type Style struct {
	FontFamily      string    `json:"fontFamily,omitempty"`
	FontSize        int       `json:"fontSize,omitempty"`
	Color           string    `json:"color,omitempty"`
	BackgroundColor string    `json:"backgroundColor,omitempty"`
	Alignment       Alignment `json:"alignment,omitempty"`
	Bold            bool      `json:"bold"`
	Italic          bool      `json:"italic"`
	Underline       bool      `json:"underline"`
}

// Cue is one timed entry, visible over the half-open interval [Start, End).
// A Cue returned from a Track must not be modified, including its Style.
type Cue struct {
	ID    string `json:"id"`
	Start int64  `json:"startMs"`
	End   int64  `json:"endMs"`
	Text  string `json:"text"`
	Style *Style `json:"style,omitempty"`
}

// NewCue validates the interval and returns the cue.
func NewCue(id string, start, end int64, text string, style *Style) (Cue, error) {
	c := Cue{ID: id, Start: start, End: end, Text: text, Style: style}
	return c, c.Validate()
}

// Validate checks Start < End and that neither bound is negative.
func (c Cue) Validate() error {
	if c.Start < 0 {
		return errors.NewSubtitleError("cue %q starts before zero: %d", c.ID, c.Start)
	}
	if c.Start >= c.End {
		return errors.NewSubtitleError("cue %q has empty interval [%d, %d)", c.ID, c.Start, c.End)
	}
	return nil
}

// VisibleAt reports whether t falls inside the cue's interval.
func (c Cue) VisibleAt(t int64) bool {
	return c.Start <= t && t < c.End
}
