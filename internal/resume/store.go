package resume

import (
	"context"
	"strings"
	"time"

	"github.com/zsiec/playcore/internal/errors"
)

// Position is the saved playback point of one piece of media.
type Position struct {
	MediaID    string    `json:"mediaId"`
	PositionMS int64     `json:"positionMs"`
	DurationMS *int64    `json:"durationMs,omitempty"`
	Container  string    `json:"container,omitempty"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// Finished reports whether the position is close enough to the end that
// playback should restart from zero instead of resuming.
func (p *Position) Finished() bool {
	if p.DurationMS == nil || *p.DurationMS <= 0 {
		return false
	}
	return float64(p.PositionMS) >= float64(*p.DurationMS)*finishedRatio
}

// finishedRatio is the fraction of the duration after which media counts
// as watched.
const finishedRatio = 0.95

// Store defines the resume position operations.
type Store interface {
	// Save records pos, replacing any earlier position for the same media.
	Save(ctx context.Context, pos *Position) error

	// Get returns the saved position for mediaID.
	Get(ctx context.Context, mediaID string) (*Position, error)

	// Delete forgets the position for mediaID.
	Delete(ctx context.Context, mediaID string) error

	// Recent returns up to limit positions, most recently updated first.
	Recent(ctx context.Context, limit int) ([]*Position, error)

	// Close releases the store's resources.
	Close() error
}

// validate checks a position before it is written.
func validate(pos *Position) error {
	if pos == nil {
		return errors.NewValidationError("position is required")
	}
	if strings.TrimSpace(pos.MediaID) == "" {
		return errors.NewValidationError("media id is required")
	}
	if strings.ContainsAny(pos.MediaID, " \t\r\n") {
		return errors.NewValidationError("media id must not contain whitespace")
	}
	if pos.PositionMS < 0 {
		return errors.NewValidationError("position cannot be negative")
	}
	return nil
}

func notFound(mediaID string) error {
	return errors.NewNotFoundError("resume position for " + mediaID)
}
