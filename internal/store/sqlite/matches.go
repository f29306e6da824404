package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"gitea.kood.tech/petrkubec/match-me/matchcore/internal/matching"
)

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

const matchColumns = `id, user_low, user_high, status, match_percentage, matched_at, is_active, created_at, updated_at, version`

func scanMatch(row rowScanner) (*matching.Match, error) {
	var (
		m                matching.Match
		status           string
		matchedAt        sql.NullInt64
		active           int
		created, updated int64
	)
	if err := row.Scan(&m.ID, &m.Pair.Low, &m.Pair.High, &status, &m.MatchPercentage, &matchedAt,
		&active, &created, &updated, &m.Version); err != nil {
		return nil, err
	}
	m.Status = matching.Status(status)
	m.MatchedAt = fromNullMillis(matchedAt)
	m.IsActive = active == 1
	m.CreatedAt = fromMillis(created)
	m.UpdatedAt = fromMillis(updated)
	return &m, nil
}

func loadLikes(ctx context.Context, q querier, m *matching.Match) error {
	rows, err := q.QueryContext(ctx,
		`SELECT user_id, liked_at FROM match_likes WHERE match_id = ? ORDER BY liked_at, user_id`, m.ID)
	if err != nil {
		return fmt.Errorf("load likes of %s: %w", m.ID, err)
	}
	defer rows.Close()
	m.LikedBy = make([]matching.Like, 0, 2)
	for rows.Next() {
		var (
			l  matching.Like
			at int64
		)
		if err := rows.Scan(&l.UserID, &at); err != nil {
			return err
		}
		l.LikedAt = fromMillis(at)
		m.LikedBy = append(m.LikedBy, l)
	}
	return rows.Err()
}

func loadMatch(ctx context.Context, q querier, where string, args ...any) (*matching.Match, error) {
	m, err := scanMatch(q.QueryRowContext(ctx, `SELECT `+matchColumns+` FROM matches WHERE `+where, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, matching.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := loadLikes(ctx, q, m); err != nil {
		return nil, err
	}
	return m, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// insertLikes appends likes; a like already present for the user is a duplicate.
func insertLikes(ctx context.Context, q querier, matchID string, likes []matching.Like) error {
	for _, l := range likes {
		res, err := q.ExecContext(ctx,
			`INSERT INTO match_likes (match_id, user_id, liked_at) VALUES (?, ?, ?)
			 ON CONFLICT (match_id, user_id) DO NOTHING`,
			matchID, l.UserID, toMillis(l.LikedAt))
		if err != nil {
			return fmt.Errorf("insert like: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return matching.ErrDuplicateLike
		}
	}
	return nil
}

// CreateIfAbsent inserts m unless the pair already has a record.
func (s *Store) CreateIfAbsent(ctx context.Context, m *matching.Match) (*matching.Match, bool, error) {
	var (
		out     *matching.Match
		created bool
	)
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			INSERT INTO matches (`+matchColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 0)
			ON CONFLICT (user_low, user_high) DO NOTHING`,
			m.ID, m.Pair.Low, m.Pair.High, string(m.Status), m.MatchPercentage, nullMillis(m.MatchedAt),
			boolInt(m.IsActive), toMillis(m.CreatedAt), toMillis(m.UpdatedAt))
		if err != nil {
			return fmt.Errorf("insert match: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 1 {
			if err := insertLikes(ctx, tx, m.ID, m.LikedBy); err != nil {
				return err
			}
			created = true
		}
		out, err = loadMatch(ctx, tx, "user_low = ? AND user_high = ?", m.Pair.Low, m.Pair.High)
		return err
	})
	if err != nil {
		return nil, false, err
	}
	return out, created, nil
}

// Update applies fn to the pair's record inside one write transaction.
func (s *Store) Update(ctx context.Context, pair matching.Pair, fn matching.UpdateFunc) (*matching.Match, error) {
	var out *matching.Match
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		current, err := loadMatch(ctx, tx, "user_low = ? AND user_high = ?", pair.Low, pair.High)
		if err != nil {
			return err
		}
		next := current.Clone()
		changed, err := fn(next)
		if err != nil {
			return err
		}
		if !changed {
			out = current
			return nil
		}

		if err := insertLikes(ctx, tx, current.ID, matching.AddedLikes(current, next)); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, `
			UPDATE matches
			SET status = ?, matched_at = ?, is_active = ?, updated_at = ?, version = version + 1
			WHERE id = ? AND version = ?`,
			string(next.Status), nullMillis(next.MatchedAt), boolInt(next.IsActive), toMillis(next.UpdatedAt),
			current.ID, current.Version)
		if err != nil {
			return fmt.Errorf("update match: %w", err)
		}
		if n, _ := res.RowsAffected(); n != 1 {
			return fmt.Errorf("update match %s: version %d is stale", current.ID, current.Version)
		}
		next.Version = current.Version + 1
		out = next
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// GetByPair returns the pair's record.
func (s *Store) GetByPair(ctx context.Context, pair matching.Pair) (*matching.Match, error) {
	return loadMatch(ctx, s.sqlDB, "user_low = ? AND user_high = ?", pair.Low, pair.High)
}

// GetByID returns a record by id.
func (s *Store) GetByID(ctx context.Context, id string) (*matching.Match, error) {
	return loadMatch(ctx, s.sqlDB, "id = ?", id)
}

// ListByUser returns every record the user is part of.
func (s *Store) ListByUser(ctx context.Context, userID string) ([]*matching.Match, error) {
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT `+matchColumns+` FROM matches WHERE user_low = ? OR user_high = ? ORDER BY created_at, id`,
		userID, userID)
	if err != nil {
		return nil, fmt.Errorf("list matches: %w", err)
	}
	var out []*matching.Match
	for rows.Next() {
		m, err := scanMatch(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	for _, m := range out {
		if err := loadLikes(ctx, s.sqlDB, m); err != nil {
			return nil, err
		}
	}
	return out, nil
}
