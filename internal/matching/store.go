package matching

import (
	"context"
	"time"
)

// ProfileLookup is the engine's read-only access to the profile store.
type ProfileLookup interface {
	// Get returns the profile of userID, or ErrNotFound.
	Get(ctx context.Context, userID string) (Profile, error)

	// FindCandidates returns one page of active profiles passing f, ordered
	// by most recent activity first. The page window is taken after
	// f.Matches is applied, so a page is short only when it is the last.
	FindCandidates(ctx context.Context, f Filter, page Page) ([]Profile, error)
}

// UpdateFunc mutates a record inside the store's atomic update. It returns
// whether anything changed; returning an error aborts the update.
type UpdateFunc func(m *Match) (changed bool, err error)

// MatchStore persists Match records. Implementations enforce one record per
// canonical pair.
type MatchStore interface {
	// CreateIfAbsent inserts m unless a record for m.Pair exists. It returns
	// the stored record and whether this call created it.
	CreateIfAbsent(ctx context.Context, m *Match) (*Match, bool, error)

	// Update loads the pair's record, applies fn and writes the result as a
	// single atomic step. It returns ErrNotFound if the pair has no record.
	Update(ctx context.Context, pair Pair, fn UpdateFunc) (*Match, error)

	GetByPair(ctx context.Context, pair Pair) (*Match, error)
	GetByID(ctx context.Context, id string) (*Match, error)

	// ListByUser returns every record the user takes part in, any status.
	ListByUser(ctx context.Context, userID string) ([]*Match, error)
}

// MatchFormed is emitted once per pair when a mutual like turns it into a match.
type MatchFormed struct {
	MatchID         string    `json:"match_id"`
	Pair            Pair      `json:"pair"`
	MatchPercentage int       `json:"match_percentage"`
	MatchedAt       time.Time `json:"matched_at"`
}

// Publisher delivers MatchFormed events to whoever reacts to them (chat, push).
type Publisher interface {
	PublishMatchFormed(ctx context.Context, evt MatchFormed) error
}
