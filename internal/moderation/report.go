package moderation

import (
	"context"
	"errors"
	"time"

	"gitea.kood.tech/petrkubec/match-me/matchcore/internal/matching"
)

var (
	// ErrInvalidReport is returned for an unknown reason or a bad description.
	ErrInvalidReport = errors.New("moderation: invalid report")
	// ErrInvalidAction is returned for an unknown admin action.
	ErrInvalidAction = errors.New("moderation: invalid action")
	// ErrAlreadyResolved is returned when a report has left the pending state.
	ErrAlreadyResolved = errors.New("moderation: report already resolved")
)

// MaxDescriptionLength caps a report description, in characters.
const MaxDescriptionLength = 1000

// Reason is why a user was reported.
type Reason string

const (
	ReasonInappropriate Reason = "inappropriate-behavior"
	ReasonFakeProfile   Reason = "fake-profile"
	ReasonSpam          Reason = "spam"
	ReasonHarassment    Reason = "harassment"
	ReasonOther         Reason = "other"
)

func (r Reason) valid() bool {
	switch r {
	case ReasonInappropriate, ReasonFakeProfile, ReasonSpam, ReasonHarassment, ReasonOther:
		return true
	}
	return false
}

// Status is where a report is in review.
type Status string

const (
	StatusPending   Status = "pending"
	StatusResolved  Status = "resolved"
	StatusDismissed Status = "dismissed"
)

// Action is what an admin decided.
type Action string

const (
	ActionNoAction       Action = "no-action"
	ActionWarning        Action = "warning"
	ActionTemporaryBan   Action = "temporary-ban"
	ActionPermanentBan   Action = "permanent-ban"
	ActionProfileRemoval Action = "profile-removal"
)

func (a Action) valid() bool {
	switch a {
	case ActionNoAction, ActionWarning, ActionTemporaryBan, ActionPermanentBan, ActionProfileRemoval:
		return true
	}
	return false
}

// deactivates reports whether the action takes the reported profile out of
// discovery.
func (a Action) deactivates() bool {
	return a == ActionTemporaryBan || a == ActionPermanentBan || a == ActionProfileRemoval
}

// Resolution is the admin decision recorded on a report.
type Resolution struct {
	Action     Action     `json:"action"`
	AdminID    string     `json:"admin_id"`
	Notes      string     `json:"notes,omitempty"`
	ResolvedAt time.Time  `json:"resolved_at"`
	BanUntil   *time.Time `json:"ban_until,omitempty"`
}

// Report is one user's complaint about another.
type Report struct {
	ID          string      `json:"id"`
	ReporterID  string      `json:"reporter_id"`
	ReportedID  string      `json:"reported_id"`
	Reason      Reason      `json:"reason"`
	Description string      `json:"description"`
	Status      Status      `json:"status"`
	Resolution  *Resolution `json:"resolution,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
}

// Store persists reports. Unknown ids return matching.ErrNotFound.
type Store interface {
	CreateReport(ctx context.Context, r *Report) error
	GetReport(ctx context.Context, id string) (*Report, error)
	// ListReports returns reports newest first. An empty status lists all.
	ListReports(ctx context.Context, status Status, page matching.Page) ([]*Report, error)
	// ResolveReport stores the decision only if the report is still pending,
	// and returns ErrAlreadyResolved otherwise.
	ResolveReport(ctx context.Context, id string, status Status, res Resolution) error
}
