package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"gitea.kood.tech/petrkubec/match-me/matchcore/internal/matching"
)

const matchColumns = `id, user_low, user_high, status, match_percentage, matched_at, is_active, created_at, updated_at, version`

func scanMatch(row rowScanner) (*matching.Match, error) {
	var (
		m         matching.Match
		status    string
		matchedAt sql.NullTime
	)
	if err := row.Scan(&m.ID, &m.Pair.Low, &m.Pair.High, &status, &m.MatchPercentage, &matchedAt,
		&m.IsActive, &m.CreatedAt, &m.UpdatedAt, &m.Version); err != nil {
		return nil, err
	}
	m.Status = matching.Status(status)
	if matchedAt.Valid {
		t := matchedAt.Time.UTC()
		m.MatchedAt = &t
	}
	m.CreatedAt = m.CreatedAt.UTC()
	m.UpdatedAt = m.UpdatedAt.UTC()
	m.LikedBy = make([]matching.Like, 0, 2)
	return &m, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

// loadLikes fills LikedBy for every match in one query.
func loadLikes(ctx context.Context, q querier, matches ...*matching.Match) error {
	if len(matches) == 0 {
		return nil
	}
	byID := make(map[string]*matching.Match, len(matches))
	ids := make([]string, 0, len(matches))
	for _, m := range matches {
		byID[m.ID] = m
		ids = append(ids, m.ID)
	}
	rows, err := q.QueryContext(ctx, `
		SELECT match_id, user_id, liked_at FROM match_likes
		WHERE match_id = ANY($1)
		ORDER BY liked_at, user_id`, pq.Array(ids))
	if err != nil {
		return fmt.Errorf("load likes: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			matchID string
			l       matching.Like
		)
		if err := rows.Scan(&matchID, &l.UserID, &l.LikedAt); err != nil {
			return err
		}
		l.LikedAt = l.LikedAt.UTC()
		if m, ok := byID[matchID]; ok {
			m.LikedBy = append(m.LikedBy, l)
		}
	}
	return rows.Err()
}

func loadMatch(ctx context.Context, q querier, query string, args ...any) (*matching.Match, error) {
	m, err := scanMatch(q.QueryRowContext(ctx, query, args...))
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

// loadPairForUpdate locks the pair's row until the transaction ends.
func loadPairForUpdate(ctx context.Context, tx *sql.Tx, pair matching.Pair) (*matching.Match, error) {
	return loadMatch(ctx, tx,
		`SELECT `+matchColumns+` FROM matches WHERE user_low = $1 AND user_high = $2 FOR UPDATE`,
		pair.Low, pair.High)
}

func insertLikes(ctx context.Context, tx *sql.Tx, matchID string, likes []matching.Like) error {
	for _, l := range likes {
		res, err := tx.ExecContext(ctx, `
			INSERT INTO match_likes (match_id, user_id, liked_at) VALUES ($1, $2, $3)
			ON CONFLICT (match_id, user_id) DO NOTHING`,
			matchID, l.UserID, l.LikedAt.UTC())
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
	err := withTx(ctx, s.db, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			INSERT INTO matches (`+matchColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, 0)
			ON CONFLICT (user_low, user_high) DO NOTHING`,
			m.ID, m.Pair.Low, m.Pair.High, string(m.Status), m.MatchPercentage, nullTime(m.MatchedAt),
			m.IsActive, m.CreatedAt.UTC(), m.UpdatedAt.UTC())
		if err != nil {
			return fmt.Errorf("insert match: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 1 {
			if err := insertLikes(ctx, tx, m.ID, m.LikedBy); err != nil {
				return err
			}
			created = true
		}
		out, err = loadMatch(ctx, tx,
			`SELECT `+matchColumns+` FROM matches WHERE user_low = $1 AND user_high = $2`,
			m.Pair.Low, m.Pair.High)
		return err
	})
	if err != nil {
		return nil, false, err
	}
	return out, created, nil
}

// Update applies fn to the pair's record while holding its row lock.
func (s *Store) Update(ctx context.Context, pair matching.Pair, fn matching.UpdateFunc) (*matching.Match, error) {
	var out *matching.Match
	err := withTx(ctx, s.db, func(tx *sql.Tx) error {
		// 1) Lock the row
		current, err := loadPairForUpdate(ctx, tx, pair)
		if err != nil {
			return err
		}

		// 2) Apply the transition on a copy
		next := current.Clone()
		changed, err := fn(next)
		if err != nil {
			return err
		}
		if !changed {
			out = current
			return nil
		}

		// 3) Persist new likes and the row
		if err := insertLikes(ctx, tx, current.ID, matching.AddedLikes(current, next)); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, `
			UPDATE matches
			SET status = $1, matched_at = $2, is_active = $3, updated_at = $4, version = version + 1
			WHERE id = $5 AND version = $6`,
			string(next.Status), nullTime(next.MatchedAt), next.IsActive, next.UpdatedAt.UTC(),
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
	return loadMatch(ctx, s.db,
		`SELECT `+matchColumns+` FROM matches WHERE user_low = $1 AND user_high = $2`, pair.Low, pair.High)
}

// GetByID returns a record by id.
func (s *Store) GetByID(ctx context.Context, id string) (*matching.Match, error) {
	return loadMatch(ctx, s.db, `SELECT `+matchColumns+` FROM matches WHERE id = $1`, id)
}

// ListByUser returns every record the user is part of.
func (s *Store) ListByUser(ctx context.Context, userID string) ([]*matching.Match, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+matchColumns+` FROM matches
		WHERE user_low = $1 OR user_high = $1
		ORDER BY created_at, id`, userID)
	if err != nil {
		return nil, fmt.Errorf("list matches: %w", err)
	}
	defer rows.Close()
	var out []*matching.Match
	for rows.Next() {
		m, err := scanMatch(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := loadLikes(ctx, s.db, out...); err != nil {
		return nil, err
	}
	return out, nil
}
