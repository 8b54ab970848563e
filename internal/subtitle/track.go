package subtitle

import (
	"sort"
)

// Track is an immutable collection of cues. Lookups go through a centered
// interval tree built once in NewTrack.
type Track struct {
	format   Format
	language string
	title    string

	// cues sorted by (Start, insertion order); tree nodes refer to indexes.
	cues []Cue
	root *node
}

// TrackOption sets optional track metadata.
type TrackOption func(*Track)

// WithLanguage sets the track language code.
func WithLanguage(lang string) TrackOption {
	return func(t *Track) { t.language = lang }
}

// WithTitle sets the track title.
func WithTitle(title string) TrackOption {
	return func(t *Track) { t.title = title }
}

// NewTrack validates every cue and indexes them. Cues may be given in any
// order; ties on Start keep their relative order.
func NewTrack(format Format, cues []Cue, opts ...TrackOption) (*Track, error) {
	for _, c := range cues {
		if err := c.Validate(); err != nil {
			return nil, err
		}
	}

	sorted := make([]Cue, len(cues))
	copy(sorted, cues)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Start < sorted[j].Start })

	t := &Track{format: format, cues: sorted}
	for _, opt := range opts {
		opt(t)
	}

	idx := make([]int, len(sorted))
	for i := range idx {
		idx[i] = i
	}
	t.root = t.build(idx)
	return t, nil
}

// Format returns the document format the track was parsed from.
func (t *Track) Format() Format { return t.format }

// Language returns the declared language, or "".
func (t *Track) Language() string { return t.language }

// Title returns the declared title, or "".
func (t *Track) Title() string { return t.title }

// Len returns the number of cues.
func (t *Track) Len() int { return len(t.cues) }

// Cues returns every cue ordered by start time.
func (t *Track) Cues() []Cue {
	out := make([]Cue, len(t.cues))
	copy(out, t.cues)
	return out
}

// At returns the cues visible at ts, ordered by start time with ties in
// insertion order. The result depends only on the track and ts.
func (t *Track) At(ts int64) []Cue {
	var hits []int
	for n := t.root; n != nil; {
		if ts < n.center {
			for _, i := range n.byStart {
				if t.cues[i].Start > ts {
					break
				}
				hits = append(hits, i)
			}
			n = n.left
		} else {
			for _, i := range n.byEnd {
				if t.cues[i].End <= ts {
					break
				}
				hits = append(hits, i)
			}
			n = n.right
		}
	}
	if len(hits) == 0 {
		return nil
	}

	sort.Ints(hits)
	out := make([]Cue, len(hits))
	for k, i := range hits {
		out[k] = t.cues[i]
	}
	return out
}

// End returns the largest cue end time, or 0 for an empty track.
func (t *Track) End() int64 {
	var end int64
	for _, c := range t.cues {
		if c.End > end {
			end = c.End
		}
	}
	return end
}

// node holds the cues overlapping center. Cues entirely before center live in
// left, cues starting after it in right.
type node struct {
	center  int64
	byStart []int // ascending Start
	byEnd   []int // descending End
	left    *node
	right   *node
}

// build expects idx in ascending (Start, insertion) order, which is index order.
func (t *Track) build(idx []int) *node {
	if len(idx) == 0 {
		return nil
	}

	// The median cue starts at center and ends after it, so it always lands
	// in this node and each level strictly shrinks.
	n := &node{center: t.cues[idx[len(idx)/2]].Start}

	var left, right []int
	for _, i := range idx {
		c := t.cues[i]
		switch {
		case c.End <= n.center:
			left = append(left, i)
		case c.Start > n.center:
			right = append(right, i)
		default:
			n.byStart = append(n.byStart, i)
		}
	}

	n.byEnd = make([]int, len(n.byStart))
	copy(n.byEnd, n.byStart)
	sort.SliceStable(n.byEnd, func(a, b int) bool {
		return t.cues[n.byEnd[a]].End > t.cues[n.byEnd[b]].End
	})

	n.left = t.build(left)
	n.right = t.build(right)
	return n
}
