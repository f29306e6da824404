package sqlite

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
		resolvedAt, banUntil sql.NullInt64
		created              int64
	)
	if err := row.Scan(&r.ID, &r.ReporterID, &r.ReportedID, &r.Reason, &r.Description, &r.Status,
		&action, &admin, &notes, &resolvedAt, &banUntil, &created); err != nil {
		return nil, err
	}
	r.CreatedAt = fromMillis(created)
	if action.Valid {
		r.Resolution = &moderation.Resolution{
			Action:   moderation.Action(action.String),
			AdminID:  admin.String,
			Notes:    notes.String,
			BanUntil: fromNullMillis(banUntil),
		}
		if resolvedAt.Valid {
			r.Resolution.ResolvedAt = fromMillis(resolvedAt.Int64)
		}
	}
	return &r, nil
}

// CreateReport inserts a new pending report.
func (s *Store) CreateReport(ctx context.Context, r *moderation.Report) error {
	_, err := s.sqlDB.ExecContext(ctx, `
		INSERT INTO reports (id, reporter_id, reported_id, reason, description, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.ReporterID, r.ReportedID, string(r.Reason), r.Description, string(r.Status), toMillis(r.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert report: %w", err)
	}
	return nil
}

// GetReport returns a report by id.
func (s *Store) GetReport(ctx context.Context, id string) (*moderation.Report, error) {
	r, err := scanReport(s.sqlDB.QueryRowContext(ctx, `SELECT `+reportColumns+` FROM reports WHERE id = ?`, id))
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
	rows, err := s.sqlDB.QueryContext(ctx, `
		SELECT `+reportColumns+` FROM reports
		WHERE (? = '' OR status = ?)
		ORDER BY created_at DESC, id
		LIMIT ? OFFSET ?`,
		string(status), string(status), page.Size, page.Offset())
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
	return s.withTx(ctx, func(tx *sql.Tx) error {
		var current moderation.Status
		err := tx.QueryRowContext(ctx, `SELECT status FROM reports WHERE id = ?`, id).Scan(&current)
		if errors.Is(err, sql.ErrNoRows) {
			return matching.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("load report %s: %w", id, err)
		}
		if current != moderation.StatusPending {
			return moderation.ErrAlreadyResolved
		}
		_, err = tx.ExecContext(ctx, `
			UPDATE reports
			SET status = ?, action = ?, admin_id = ?, notes = ?, resolved_at = ?, ban_until = ?
			WHERE id = ?`,
			string(status), string(res.Action), res.AdminID, res.Notes, toMillis(res.ResolvedAt), nullMillis(res.BanUntil), id)
		if err != nil {
			return fmt.Errorf("resolve report %s: %w", id, err)
		}
		return nil
	})
}
