package matching

import (
	"time"
)

// Status is the lifecycle state of a Match record.
type Status string

const (
	StatusPending  Status = "pending"
	StatusMatched  Status = "matched"
	StatusRejected Status = "rejected"
	StatusBlocked  Status = "blocked"
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusMatched, StatusRejected, StatusBlocked:
		return true
	}
	return false
}

// Pair is an unordered pair of user keys stored in canonical order (Low < High),
// so exactly one record can exist per pair.
type Pair struct {
	Low  string `json:"user_low"`
	High string `json:"user_high"`
}

// NewPair returns the canonical pair for a and b.
func NewPair(a, b string) Pair {
	if a > b {
		a, b = b, a
	}
	return Pair{Low: a, High: b}
}

// Has reports whether user is one of the two participants.
func (p Pair) Has(user string) bool {
	return p.Low == user || p.High == user
}

// Other returns the participant that isn't user.
func (p Pair) Other(user string) string {
	if p.Low == user {
		return p.High
	}
	return p.Low
}

// Like is one participant's recorded intent.
type Like struct {
	UserID  string    `json:"user_id"`
	LikedAt time.Time `json:"liked_at"`
}

// Match is the single relationship record of a pair of users.
type Match struct {
	ID              string     `json:"id"`
	Pair            Pair       `json:"pair"`
	Status          Status     `json:"status"`
	LikedBy         []Like     `json:"liked_by"`
	MatchPercentage int        `json:"match_percentage"`
	MatchedAt       *time.Time `json:"matched_at,omitempty"`
	IsActive        bool       `json:"is_active"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
	Version         int64      `json:"-"`
}

// LikedByUser reports whether user already has a like on the record.
func (m *Match) LikedByUser(user string) bool {
	for _, l := range m.LikedBy {
		if l.UserID == user {
			return true
		}
	}
	return false
}

// AddedLikes returns the likes present on after but not on before. Stores use
// it to append only the new entries.
func AddedLikes(before, after *Match) []Like {
	var added []Like
	for _, l := range after.LikedBy {
		if before == nil || !before.LikedByUser(l.UserID) {
			added = append(added, l)
		}
	}
	return added
}

// Clone returns a deep copy so callers can mutate without touching stored state.
func (m *Match) Clone() *Match {
	if m == nil {
		return nil
	}
	c := *m
	c.LikedBy = append([]Like(nil), m.LikedBy...)
	if m.MatchedAt != nil {
		t := *m.MatchedAt
		c.MatchedAt = &t
	}
	return &c
}
