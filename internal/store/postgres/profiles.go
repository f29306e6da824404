package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/lib/pq"

	"gitea.kood.tech/petrkubec/match-me/matchcore/internal/matching"
)

const profileColumns = `user_id, display_name, age, gender, location_lon, location_lat, interests,
	education, religion, pref_age_min, pref_age_max, pref_gender, pref_max_distance_miles,
	pref_education, pref_religion, last_active, active`

// earthRadiusMeters keeps the SQL distance consistent with matching.DistanceMiles.
const earthRadiusMeters = matching.EarthRadiusMiles * matching.MetersPerMile

// distanceSlackMeters widens the SQL radius; the exact check runs in Go.
const distanceSlackMeters = 100.0

func scanProfile(row rowScanner) (matching.Profile, error) {
	var (
		p        matching.Profile
		lon, lat sql.NullFloat64
	)
	err := row.Scan(&p.UserID, &p.DisplayName, &p.Age, &p.Gender, &lon, &lat, pq.Array(&p.Interests),
		&p.Education, &p.Religion, &p.Preferences.AgeMin, &p.Preferences.AgeMax, &p.Preferences.Gender,
		&p.Preferences.MaxDistanceMiles, &p.Preferences.Education, &p.Preferences.Religion, &p.LastActive, &p.Active)
	if err != nil {
		return matching.Profile{}, err
	}
	if lon.Valid && lat.Valid {
		p.Location = &matching.Coordinates{Lon: lon.Float64, Lat: lat.Float64}
	}
	p.LastActive = p.LastActive.UTC()
	return p, nil
}

// PutProfile inserts or replaces a profile.
func (s *Store) PutProfile(ctx context.Context, p matching.Profile) error {
	if strings.TrimSpace(p.UserID) == "" {
		return fmt.Errorf("user id is required")
	}
	var lon, lat sql.NullFloat64
	if p.Location != nil {
		lon = sql.NullFloat64{Float64: p.Location.Lon, Valid: true}
		lat = sql.NullFloat64{Float64: p.Location.Lat, Valid: true}
	}
	interests := p.Interests
	if interests == nil {
		interests = []string{}
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO profiles (`+profileColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		ON CONFLICT (user_id) DO UPDATE SET
			display_name = EXCLUDED.display_name,
			age = EXCLUDED.age,
			gender = EXCLUDED.gender,
			location_lon = EXCLUDED.location_lon,
			location_lat = EXCLUDED.location_lat,
			interests = EXCLUDED.interests,
			education = EXCLUDED.education,
			religion = EXCLUDED.religion,
			pref_age_min = EXCLUDED.pref_age_min,
			pref_age_max = EXCLUDED.pref_age_max,
			pref_gender = EXCLUDED.pref_gender,
			pref_max_distance_miles = EXCLUDED.pref_max_distance_miles,
			pref_education = EXCLUDED.pref_education,
			pref_religion = EXCLUDED.pref_religion,
			last_active = EXCLUDED.last_active,
			active = EXCLUDED.active`,
		p.UserID, p.DisplayName, p.Age, p.Gender, lon, lat, pq.Array(interests),
		p.Education, p.Religion, p.Preferences.AgeMin, p.Preferences.AgeMax, p.Preferences.Gender,
		p.Preferences.MaxDistanceMiles, p.Preferences.Education, p.Preferences.Religion,
		p.LastActive.UTC(), p.Active)
	if err != nil {
		return fmt.Errorf("put profile %s: %w", p.UserID, err)
	}
	return nil
}

// SetProfileActive toggles whether userID shows up in discovery.
func (s *Store) SetProfileActive(ctx context.Context, userID string, active bool) error {
	res, err := s.db.ExecContext(ctx, `UPDATE profiles SET active = $2 WHERE user_id = $1`, userID, active)
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
	p, err := scanProfile(s.db.QueryRowContext(ctx,
		`SELECT `+profileColumns+` FROM profiles WHERE user_id = $1`, userID))
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
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+profileColumns+` FROM profiles WHERE user_id = ANY($1)`, pq.Array(ids))
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

// FindCandidates narrows candidates in SQL, then applies f.Matches while
// streaming and takes the page window in Go. The SQL distance check is a
// little looser than the exact one so the two never disagree at the edge.
func (s *Store) FindCandidates(ctx context.Context, f matching.Filter, page matching.Page) ([]matching.Profile, error) {
	var (
		where []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}

	where = append(where, "p.active = TRUE")
	where = append(where, "NOT (p.user_id = ANY("+arg(pq.Array(f.ExcludedIDs()))+"))")
	req := arg(f.Requester)
	where = append(where, "p.user_id <> "+req)
	where = append(where, `NOT EXISTS (
		SELECT 1 FROM matches m
		WHERE (m.user_low = p.user_id AND m.user_high = `+req+`)
		   OR (m.user_high = p.user_id AND m.user_low = `+req+`))`)
	if f.AgeMin > 0 {
		where = append(where, "p.age >= "+arg(f.AgeMin))
	}
	if f.AgeMax > 0 {
		where = append(where, "p.age <= "+arg(f.AgeMax))
	}
	if f.Gender != "" {
		where = append(where, "LOWER(p.gender) = LOWER("+arg(f.Gender)+")")
	}
	if f.Education != "" {
		where = append(where, "LOWER(p.education) = LOWER("+arg(f.Education)+")")
	}
	if f.Religion != "" {
		where = append(where, "LOWER(p.religion) = LOWER("+arg(f.Religion)+")")
	}
	if f.Origin != nil && f.MaxDistanceMiles > 0 {
		lon, lat := arg(f.Origin.Lon), arg(f.Origin.Lat)
		radius := arg(earthRadiusMeters)
		maxMeters := arg(f.MaxDistanceMiles*matching.MetersPerMile + distanceSlackMeters)
		// Candidates without coordinates aren't distance-filtered.
		where = append(where, `(p.location_lon IS NULL OR p.location_lat IS NULL OR
			2 * `+radius+`::float8 * ASIN(SQRT(LEAST(1, GREATEST(0,
				POWER(SIN(RADIANS(p.location_lat - `+lat+`::float8) / 2), 2) +
				COS(RADIANS(`+lat+`::float8)) * COS(RADIANS(p.location_lat)) *
				POWER(SIN(RADIANS(p.location_lon - `+lon+`::float8) / 2), 2)
			)))) <= `+maxMeters+`::float8)`)
	}

	query := `SELECT ` + profileColumns + `
		FROM profiles p
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY p.last_active DESC, p.user_id ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
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
