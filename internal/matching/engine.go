package matching

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Config tunes the engine.
type Config struct {
	// ScoreWorkers bounds how many candidates are scored concurrently.
	ScoreWorkers    int
	DefaultPageSize int
	MaxPageSize     int
}

// DefaultConfig returns the settings used when a field is left at zero.
func DefaultConfig() Config {
	return Config{
		ScoreWorkers:    8,
		DefaultPageSize: 10,
		MaxPageSize:     100,
	}
}

// Candidate is a ranked profile with its compatibility score.
type Candidate struct {
	Profile       Profile  `json:"profile"`
	Score         int      `json:"score"`
	DistanceMiles *float64 `json:"distance_miles,omitempty"`
}

// LikeResult is the outcome of RecordLike.
type LikeResult struct {
	// Matched is true only for the like that completed the mutual like.
	Matched bool   `json:"matched"`
	Match   *Match `json:"match"`
}

// Engine answers "who should I see next" and "what happens when I like or pass".
// It keeps no state of its own; every call is safe to retry.
type Engine struct {
	profiles  ProfileLookup
	matches   MatchStore
	publisher Publisher
	log       *zap.Logger
	cfg       Config

	now   func() time.Time
	newID func() string
}

// NewEngine wires an engine. publisher may be nil.
func NewEngine(profiles ProfileLookup, matches MatchStore, publisher Publisher, log *zap.Logger, cfg Config) *Engine {
	defaults := DefaultConfig()
	if cfg.ScoreWorkers <= 0 {
		cfg.ScoreWorkers = defaults.ScoreWorkers
	}
	if cfg.DefaultPageSize <= 0 {
		cfg.DefaultPageSize = defaults.DefaultPageSize
	}
	if cfg.MaxPageSize <= 0 {
		cfg.MaxPageSize = defaults.MaxPageSize
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{
		profiles:  profiles,
		matches:   matches,
		publisher: publisher,
		log:       log.Named("matching"),
		cfg:       cfg,
		now:       func() time.Time { return time.Now().UTC() },
		newID:     uuid.NewString,
	}
}

// RankCandidates returns one page of candidates for user, best score first.
// Ties keep the recency order the profile store returned.
func (e *Engine) RankCandidates(ctx context.Context, user string, page, pageSize int) ([]Candidate, error) {
	profile, err := e.profile(ctx, user)
	if err != nil {
		return nil, err
	}

	existing, err := e.matches.ListByUser(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("list matches of %s: %w", user, err)
	}
	filter := BuildFilter(profile, existing)

	found, err := e.profiles.FindCandidates(ctx, filter, e.page(page, pageSize))
	if err != nil {
		return nil, fmt.Errorf("find candidates for %s: %w", user, err)
	}

	// Stores fill the page with profiles passing the filter. This only
	// drops rows from a store that does not.
	candidates := make([]Candidate, 0, len(found))
	for _, p := range found {
		if filter.Matches(p) {
			candidates = append(candidates, Candidate{Profile: p})
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.ScoreWorkers)
	for i := range candidates {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			c := &candidates[i]
			c.Score = Score(profile, c.Profile)
			if profile.Location != nil && c.Profile.Location != nil {
				d := DistanceMiles(*profile.Location, *c.Profile.Location)
				c.DistanceMiles = &d
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Score > candidates[j].Score
	})
	return candidates, nil
}

// RecordLike records liker's like on target. A match forms only when the
// second participant likes; the returned Matched flag is set on that call alone.
func (e *Engine) RecordLike(ctx context.Context, liker, target string) (LikeResult, error) {
	if liker == target {
		return LikeResult{}, ErrSelfAction
	}
	likerProfile, err := e.profile(ctx, liker)
	if err != nil {
		return LikeResult{}, err
	}
	targetProfile, err := e.profile(ctx, target)
	if err != nil {
		return LikeResult{}, err
	}

	pair := NewPair(liker, target)
	now := e.now()

	_, err = e.matches.GetByPair(ctx, pair)
	switch {
	case errors.Is(err, ErrNotFound):
		m := newPendingMatch(e.newID(), liker, target, Score(likerProfile, targetProfile), now)
		stored, created, err := e.matches.CreateIfAbsent(ctx, m)
		if err != nil {
			return LikeResult{}, fmt.Errorf("create match: %w", err)
		}
		if created {
			e.log.Debug("pair created", zap.String("match_id", stored.ID), zap.String("status", string(stored.Status)))
			return LikeResult{Match: stored}, nil
		}
		// Someone else created the pair first; like it like any existing record.
	case err != nil:
		return LikeResult{}, fmt.Errorf("get match: %w", err)
	}

	var formed bool
	updated, err := e.matches.Update(ctx, pair, func(m *Match) (bool, error) {
		var err error
		formed, err = applyLike(m, liker, now)
		if err != nil {
			return false, err
		}
		return true, nil
	})
	if err != nil {
		return LikeResult{}, fmt.Errorf("record like: %w", err)
	}

	if formed {
		e.log.Info("match formed", zap.String("match_id", updated.ID), zap.Int("match_percentage", updated.MatchPercentage))
		e.publish(ctx, updated)
	}
	return LikeResult{Matched: formed, Match: updated}, nil
}

// RecordPass locks the pair at rejected. Either side can veto a match this
// way at any point before both have liked.
func (e *Engine) RecordPass(ctx context.Context, passer, target string) (*Match, error) {
	if passer == target {
		return nil, ErrSelfAction
	}
	passerProfile, err := e.profile(ctx, passer)
	if err != nil {
		return nil, err
	}
	targetProfile, err := e.profile(ctx, target)
	if err != nil {
		return nil, err
	}

	pair := NewPair(passer, target)
	now := e.now()

	_, err = e.matches.GetByPair(ctx, pair)
	switch {
	case errors.Is(err, ErrNotFound):
		m := newRejectedMatch(e.newID(), passer, target, Score(passerProfile, targetProfile), now)
		stored, created, err := e.matches.CreateIfAbsent(ctx, m)
		if err != nil {
			return nil, fmt.Errorf("create match: %w", err)
		}
		if created {
			return stored, nil
		}
	case err != nil:
		return nil, fmt.Errorf("get match: %w", err)
	}

	updated, err := e.matches.Update(ctx, pair, func(m *Match) (bool, error) {
		return applyPass(m, passer, now)
	})
	if err != nil {
		return nil, fmt.Errorf("record pass: %w", err)
	}
	return updated, nil
}

// Unmatch ends an active match. A missing record, a record that isn't
// matched and a requester outside the pair all return ErrNotFound, so the
// call can't reveal who is paired with whom.
func (e *Engine) Unmatch(ctx context.Context, requester, matchID string) (*Match, error) {
	m, err := e.matches.GetByID(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if !m.Pair.Has(requester) {
		return nil, ErrNotFound
	}

	now := e.now()
	updated, err := e.matches.Update(ctx, m.Pair, func(m *Match) (bool, error) {
		if err := applyUnmatch(m, requester, now); err != nil {
			return false, err
		}
		return true, nil
	})
	if err != nil {
		return nil, fmt.Errorf("unmatch: %w", err)
	}
	e.log.Debug("unmatched", zap.String("match_id", updated.ID))
	return updated, nil
}

// Block puts the pair in the blocked state for good. It is the moderation
// entry point; blocked pairs accept no further transitions.
func (e *Engine) Block(ctx context.Context, a, b string) (*Match, error) {
	if a == b {
		return nil, ErrSelfAction
	}
	if _, err := e.profile(ctx, a); err != nil {
		return nil, err
	}
	if _, err := e.profile(ctx, b); err != nil {
		return nil, err
	}
	pair := NewPair(a, b)
	now := e.now()

	blocked := &Match{
		ID:        e.newID(),
		Pair:      pair,
		Status:    StatusBlocked,
		CreatedAt: now,
		UpdatedAt: now,
	}
	stored, created, err := e.matches.CreateIfAbsent(ctx, blocked)
	if err != nil {
		return nil, fmt.Errorf("create match: %w", err)
	}
	if created {
		return stored, nil
	}

	updated, err := e.matches.Update(ctx, pair, func(m *Match) (bool, error) {
		return applyBlock(m, now), nil
	})
	if err != nil {
		return nil, fmt.Errorf("block: %w", err)
	}
	return updated, nil
}

// Get returns a match record to one of its participants.
func (e *Engine) Get(ctx context.Context, requester, matchID string) (*Match, error) {
	m, err := e.matches.GetByID(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if !m.Pair.Has(requester) {
		return nil, ErrNotFound
	}
	return m, nil
}

// ListMatches returns the user's active matches, most recent first.
func (e *Engine) ListMatches(ctx context.Context, user string) ([]*Match, error) {
	all, err := e.matches.ListByUser(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("list matches of %s: %w", user, err)
	}

	matched := make([]*Match, 0, len(all))
	for _, m := range all {
		if m.Status == StatusMatched && m.IsActive && m.MatchedAt != nil {
			matched = append(matched, m)
		}
	}
	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].MatchedAt.After(*matched[j].MatchedAt)
	})
	return matched, nil
}

func (e *Engine) profile(ctx context.Context, userID string) (Profile, error) {
	p, err := e.profiles.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Profile{}, fmt.Errorf("profile %s: %w", userID, ErrNotFound)
		}
		return Profile{}, fmt.Errorf("get profile %s: %w", userID, err)
	}
	return p, nil
}

func (e *Engine) page(number, size int) Page {
	if number < 1 {
		number = 1
	}
	if size <= 0 {
		size = e.cfg.DefaultPageSize
	}
	if size > e.cfg.MaxPageSize {
		size = e.cfg.MaxPageSize
	}
	return Page{Number: number, Size: size}
}

func (e *Engine) publish(ctx context.Context, m *Match) {
	if e.publisher == nil || m.MatchedAt == nil {
		return
	}
	evt := MatchFormed{
		MatchID:         m.ID,
		Pair:            m.Pair,
		MatchPercentage: m.MatchPercentage,
		MatchedAt:       *m.MatchedAt,
	}
	if err := e.publisher.PublishMatchFormed(ctx, evt); err != nil {
		e.log.Warn("publish match formed", zap.String("match_id", m.ID), zap.Error(err))
	}
}
