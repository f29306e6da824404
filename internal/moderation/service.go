// Package moderation handles user reports and the admin decisions on them.
// An upheld report blocks the pair for good; bans also take the reported
// profile out of discovery.
package moderation

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"gitea.kood.tech/petrkubec/match-me/matchcore/internal/matching"
)

// TemporaryBanDuration is how long a temporary ban is recorded for.
const TemporaryBanDuration = 7 * 24 * time.Hour

// Profiles is the profile access moderation needs.
type Profiles interface {
	Get(ctx context.Context, userID string) (matching.Profile, error)
	SetProfileActive(ctx context.Context, userID string, active bool) error
}

// Blocker blocks a pair. matching.Engine satisfies it.
type Blocker interface {
	Block(ctx context.Context, a, b string) (*matching.Match, error)
}

// Service runs the report workflow.
type Service struct {
	store    Store
	profiles Profiles
	blocker  Blocker
	log      *zap.Logger

	now   func() time.Time
	newID func() string
}

// NewService wires a moderation service.
func NewService(store Store, profiles Profiles, blocker Blocker, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		store:    store,
		profiles: profiles,
		blocker:  blocker,
		log:      log.Named("moderation"),
		now:      func() time.Time { return time.Now().UTC() },
		newID:    uuid.NewString,
	}
}

// Report files reporter's complaint about reported.
func (s *Service) Report(ctx context.Context, reporter, reported string, reason Reason, description string) (*Report, error) {
	if reporter == reported {
		return nil, matching.ErrSelfAction
	}
	description = strings.TrimSpace(description)
	if !reason.valid() || description == "" || utf8.RuneCountInString(description) > MaxDescriptionLength {
		return nil, ErrInvalidReport
	}
	for _, id := range []string{reporter, reported} {
		if _, err := s.profiles.Get(ctx, id); err != nil {
			return nil, fmt.Errorf("profile %s: %w", id, err)
		}
	}

	r := &Report{
		ID:          s.newID(),
		ReporterID:  reporter,
		ReportedID:  reported,
		Reason:      reason,
		Description: description,
		Status:      StatusPending,
		CreatedAt:   s.now(),
	}
	if err := s.store.CreateReport(ctx, r); err != nil {
		return nil, fmt.Errorf("create report: %w", err)
	}
	s.log.Info("report filed",
		zap.String("report_id", r.ID),
		zap.String("reason", string(reason)))
	return r, nil
}

// List returns one page of reports, newest first. An empty status lists all.
func (s *Service) List(ctx context.Context, status Status, page, pageSize int) ([]*Report, error) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	reports, err := s.store.ListReports(ctx, status, matching.Page{Number: page, Size: pageSize})
	if err != nil {
		return nil, err
	}
	if reports == nil {
		reports = []*Report{}
	}
	return reports, nil
}

// Resolve records admin's decision on a pending report and carries it out.
// "no-action" dismisses the report. Every other action blocks the pair, and
// bans or removal also deactivate the reported profile.
func (s *Service) Resolve(ctx context.Context, admin, reportID string, action Action, notes string) (*Report, error) {
	if !action.valid() {
		return nil, ErrInvalidAction
	}
	r, err := s.store.GetReport(ctx, reportID)
	if err != nil {
		return nil, err
	}
	if r.Status != StatusPending {
		return nil, ErrAlreadyResolved
	}

	now := s.now()
	res := Resolution{Action: action, AdminID: admin, Notes: strings.TrimSpace(notes), ResolvedAt: now}
	status := StatusResolved
	if action == ActionNoAction {
		status = StatusDismissed
	} else {
		// Both steps are idempotent; a concurrent resolve repeats them harmlessly.
		if _, err := s.blocker.Block(ctx, r.ReporterID, r.ReportedID); err != nil {
			return nil, fmt.Errorf("block pair: %w", err)
		}
		if action.deactivates() {
			if err := s.profiles.SetProfileActive(ctx, r.ReportedID, false); err != nil {
				return nil, fmt.Errorf("deactivate %s: %w", r.ReportedID, err)
			}
		}
		if action == ActionTemporaryBan {
			until := now.Add(TemporaryBanDuration)
			res.BanUntil = &until
		}
	}

	if err := s.store.ResolveReport(ctx, r.ID, status, res); err != nil {
		return nil, err
	}
	r.Status = status
	r.Resolution = &res
	s.log.Info("report resolved",
		zap.String("report_id", r.ID),
		zap.String("action", string(action)),
		zap.String("admin_id", admin))
	return r, nil
}
