package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"gitea.kood.tech/petrkubec/match-me/matchcore/internal/matching"
	"gitea.kood.tech/petrkubec/match-me/matchcore/internal/moderation"
)

const reportColumns = `id, reporter_id, reported_id, reason, description, status,
	action, admin_id, notes, resolved_at, ban_until, created_at`

func scanReport(row rowScanner) (*moderation.Report, error) {
	var (
		r                    moderation.Report
		action, admin, notes sql.NullString
		resolvedAt, banUntil sql.NullTime
	)
	if err := row.Scan(&r.ID, &r.ReporterID, &r.ReportedID, &r.Reason, &r.Description, &r.Status,
		&action, &admin, &notes, &resolvedAt, &banUntil, &r.CreatedAt); err != nil {
		return nil, err
	}
	r.CreatedAt = r.CreatedAt.UTC()
	if action.Valid {
		r.Resolution = &moderation.Resolution{
			Action:  moderation.Action(action.String),
			AdminID: admin.String,
			Notes:   notes.String,
		}
		if resolvedAt.Valid {
			r.Resolution.ResolvedAt = resolvedAt.Time.UTC()
		}
		if banUntil.Valid {
			t := banUntil.Time.UTC()
			r.Resolution.BanUntil = &t
		}
	}
	return &r, nil
}

// CreateReport inserts a new pending report.
func (s *Store) CreateReport(ctx context.Context, r *moderation.Report) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO reports (id, reporter_id, reported_id, reason, description, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		r.ID, r.ReporterID, r.ReportedID, string(r.Reason), r.Description, string(r.Status), r.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert report: %w", err)
	}
	return nil
}

// GetReport returns a report by id.
func (s *Store) GetReport(ctx context.Context, id string) (*moderation.Report, error) {
	r, err := scanReport(s.db.QueryRowContext(ctx, `SELECT `+reportColumns+` FROM reports WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, matching.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get report %s: %w", id, err)
	}
	return r, nil
}

// ListReports returns reports newest first, optionally of one status.
func (s *Store) ListReports(ctx context.Context, status moderation.Status, page matching.Page) ([]*moderation.Report, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+reportColumns+` FROM reports
		WHERE ($1 = '' OR status = $1)
		ORDER BY created_at DESC, id
		LIMIT $2 OFFSET $3`,
		string(status), page.Size, page.Offset())
	if err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}
	defer rows.Close()
	var out []*moderation.Report
	for rows.Next() {
		r, err := scanReport(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// ResolveReport records the decision on a still-pending report.
func (s *Store) ResolveReport(ctx context.Context, id string, status moderation.Status, res moderation.Resolution) error {
	var banUntil sql.NullTime
	if res.BanUntil != nil {
		banUntil = sql.NullTime{Time: *res.BanUntil, Valid: true}
	}
	result, err := s.db.ExecContext(ctx, `
		UPDATE reports
		SET status = $2, action = $3, admin_id = $4, notes = $5, resolved_at = $6, ban_until = $7
		WHERE id = $1 AND status = 'pending'`,
		id, string(status), string(res.Action), res.AdminID, res.Notes, res.ResolvedAt, banUntil)
	if err != nil {
		return fmt.Errorf("resolve report %s: %w", id, err)
	}
	if n, _ := result.RowsAffected(); n > 0 {
		return nil
	}
	// Nothing pending under that id: tell a missing report from a closed one.
	if _, err := s.GetReport(ctx, id); err != nil {
		return err
	}
	return moderation.ErrAlreadyResolved
}
