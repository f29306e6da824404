package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"gitea.kood.tech/petrkubec/match-me/matchcore/internal/matching"
)

const profileColumns = `user_id, display_name, age, gender, location_lon, location_lat, interests,
	education, religion, pref_age_min, pref_age_max, pref_gender, pref_max_distance_miles,
	pref_education, pref_religion, last_active, active`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProfile(row rowScanner) (matching.Profile, error) {
	var (
		p         matching.Profile
		lon, lat  sql.NullFloat64
		interests string
		last      int64
		active    int
	)
	err := row.Scan(&p.UserID, &p.DisplayName, &p.Age, &p.Gender, &lon, &lat, &interests,
		&p.Education, &p.Religion, &p.Preferences.AgeMin, &p.Preferences.AgeMax, &p.Preferences.Gender,
		&p.Preferences.MaxDistanceMiles, &p.Preferences.Education, &p.Preferences.Religion, &last, &active)
	if err != nil {
		return matching.Profile{}, err
	}
	if lon.Valid && lat.Valid {
		p.Location = &matching.Coordinates{Lon: lon.Float64, Lat: lat.Float64}
	}
	if err := json.Unmarshal([]byte(interests), &p.Interests); err != nil {
		return matching.Profile{}, fmt.Errorf("decode interests of %s: %w", p.UserID, err)
	}
	p.LastActive = fromMillis(last)
	p.Active = active == 1
	return p, nil
}

// PutProfile inserts or replaces a profile.
func (s *Store) PutProfile(ctx context.Context, p matching.Profile) error {
	if strings.TrimSpace(p.UserID) == "" {
		return fmt.Errorf("user id is required")
	}
	interests := p.Interests
	if interests == nil {
		interests = []string{}
	}
	encoded, err := json.Marshal(interests)
	if err != nil {
		return fmt.Errorf("encode interests: %w", err)
	}
	var lon, lat sql.NullFloat64
	if p.Location != nil {
		lon = sql.NullFloat64{Float64: p.Location.Lon, Valid: true}
		lat = sql.NullFloat64{Float64: p.Location.Lat, Valid: true}
	}
	active := 0
	if p.Active {
		active = 1
	}

	_, err = s.sqlDB.ExecContext(ctx, `
		INSERT INTO profiles (`+profileColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id) DO UPDATE SET
			display_name = excluded.display_name,
			age = excluded.age,
			gender = excluded.gender,
			location_lon = excluded.location_lon,
			location_lat = excluded.location_lat,
			interests = excluded.interests,
			education = excluded.education,
			religion = excluded.religion,
			pref_age_min = excluded.pref_age_min,
			pref_age_max = excluded.pref_age_max,
			pref_gender = excluded.pref_gender,
			pref_max_distance_miles = excluded.pref_max_distance_miles,
			pref_education = excluded.pref_education,
			pref_religion = excluded.pref_religion,
			last_active = excluded.last_active,
			active = excluded.active`,
		p.UserID, p.DisplayName, p.Age, p.Gender, lon, lat, string(encoded),
		p.Education, p.Religion, p.Preferences.AgeMin, p.Preferences.AgeMax, p.Preferences.Gender,
		p.Preferences.MaxDistanceMiles, p.Preferences.Education, p.Preferences.Religion,
		toMillis(p.LastActive), active)
	if err != nil {
		return fmt.Errorf("put profile %s: %w", p.UserID, err)
	}
	return nil
}

// SetProfileActive toggles whether userID shows up in discovery.
func (s *Store) SetProfileActive(ctx context.Context, userID string, active bool) error {
	v := 0
	if active {
		v = 1
	}
	res, err := s.sqlDB.ExecContext(ctx, `UPDATE profiles SET active = ? WHERE user_id = ?`, v, userID)
	if err != nil {
		return fmt.Errorf("set active of %s: %w", userID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return matching.ErrNotFound
	}
	return nil
}

// Get returns one profile.
func (s *Store) Get(ctx context.Context, userID string) (matching.Profile, error) {
	row := s.sqlDB.QueryRowContext(ctx, `SELECT `+profileColumns+` FROM profiles WHERE user_id = ?`, userID)
	p, err := scanProfile(row)
	if errors.Is(err, sql.ErrNoRows) {
		return matching.Profile{}, matching.ErrNotFound
	}
	if err != nil {
		return matching.Profile{}, fmt.Errorf("get profile %s: %w", userID, err)
	}
	return p, nil
}

// GetMany returns the profiles that exist among ids, keyed by user id.
func (s *Store) GetMany(ctx context.Context, ids []string) (map[string]matching.Profile, error) {
	out := make(map[string]matching.Profile, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT `+profileColumns+` FROM profiles WHERE user_id IN (`+placeholders+`)`, args...)
	if err != nil {
		return nil, fmt.Errorf("get profiles: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		out[p.UserID] = p
	}
	return out, rows.Err()
}

// FindCandidates narrows by the indexed columns in SQL and applies the rest
// of the filter (exclusion set, distance) while streaming rows, so the page
// window is taken over profiles that really pass.
func (s *Store) FindCandidates(ctx context.Context, f matching.Filter, page matching.Page) ([]matching.Profile, error) {
	var (
		where = []string{"active = 1", "user_id <> ?"}
		args  = []any{f.Requester}
	)
	if f.AgeMin > 0 {
		where = append(where, "age >= ?")
		args = append(args, f.AgeMin)
	}
	if f.AgeMax > 0 {
		where = append(where, "age <= ?")
		args = append(args, f.AgeMax)
	}
	if f.Gender != "" {
		where = append(where, "LOWER(gender) = LOWER(?)")
		args = append(args, f.Gender)
	}
	if f.Education != "" {
		where = append(where, "LOWER(education) = LOWER(?)")
		args = append(args, f.Education)
	}
	if f.Religion != "" {
		where = append(where, "LOWER(religion) = LOWER(?)")
		args = append(args, f.Religion)
	}
	// Pairs with any record are out, even if the caller's exclusion set is stale.
	where = append(where, `NOT EXISTS (
		SELECT 1 FROM matches m
		WHERE (m.user_low = profiles.user_id AND m.user_high = ?)
		   OR (m.user_high = profiles.user_id AND m.user_low = ?))`)
	args = append(args, f.Requester, f.Requester)

	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT `+profileColumns+` FROM profiles WHERE `+strings.Join(where, " AND ")+`
		 ORDER BY last_active DESC, user_id ASC`, args...)
	if err != nil {
		return nil, fmt.Errorf("find candidates: %w", err)
	}
	defer rows.Close()

	skip := page.Offset()
	out := make([]matching.Profile, 0, page.Size)
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		if !f.Matches(p) {
			continue
		}
		if skip > 0 {
			skip--
			continue
		}
		out = append(out, p)
		if len(out) == page.Size {
			break
		}
	}
	return out, rows.Err()
}
