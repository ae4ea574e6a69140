package library

import (
	"context"
	"errors"

	"github.com/kasuboski/showsync/pkg/emby"
)

var ErrUnavailable = errors.New("no media library configured")

// Library is the subset of a media server used to mirror watched status
type Library interface {
	Items(ctx context.Context) ([]emby.Item, error)
	Seasons(ctx context.Context, seriesID string) ([]emby.Season, error)
	Episodes(ctx context.Context, seriesID, seasonID string) ([]emby.Episode, error)
	MarkPlayed(ctx context.Context, itemID string) error
}

// Outcome is how a reconciliation attempt ended
type Outcome string

const (
	// Unavailable means no library is configured or it could not be reached
	Unavailable Outcome = "unavailable"
	// NotFound means no library item matched the show
	NotFound Outcome = "not-found"
	// UpdateFailed means the item was found but marking it failed
	UpdateFailed Outcome = "update-failed"
	// Updated means at least one episode or the whole item was marked watched
	Updated Outcome = "updated"
	// UpToDate means every downloaded episode was already watched
	UpToDate Outcome = "up-to-date"
)

// Result describes one reconciliation. Err is set for Unavailable and UpdateFailed
// when a call to the library failed.
type Result struct {
	Outcome Outcome
	Item    emby.Item
	Marked  int
	Err     error
}
