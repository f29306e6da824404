package matching

import (
	"fmt"
	"time"
)

// State transitions of a pair:
//
//	(no record) --like--> pending --like(other party)--> matched --unmatch--> rejected (inactive)
//	(no record) --pass--> rejected
//	pending --pass(either party)--> rejected
//	any --block--> blocked
//
// rejected and blocked are terminal. The functions below mutate a record in
// place and are run by the store inside its atomic update.

// newPendingMatch is the record created by a first like.
func newPendingMatch(id string, liker, target string, percentage int, now time.Time) *Match {
	return &Match{
		ID:              id,
		Pair:            NewPair(liker, target),
		Status:          StatusPending,
		LikedBy:         []Like{{UserID: liker, LikedAt: now}},
		MatchPercentage: percentage,
		IsActive:        true,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// newRejectedMatch is the record created by a first pass.
func newRejectedMatch(id string, passer, target string, percentage int, now time.Time) *Match {
	return &Match{
		ID:              id,
		Pair:            NewPair(passer, target),
		Status:          StatusRejected,
		MatchPercentage: percentage,
		IsActive:        true,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// applyLike records user's like. It returns true when this like completed
// the mutual like and moved the record to matched.
func applyLike(m *Match, user string, now time.Time) (bool, error) {
	if !m.Pair.Has(user) {
		return false, ErrNotFound
	}
	// Checked before the status so a retried like always reports the duplicate.
	if m.LikedByUser(user) {
		return false, ErrDuplicateLike
	}
	if m.Status != StatusPending {
		return false, fmt.Errorf("like on %s pair: %w", m.Status, ErrInvalidTransition)
	}
	if len(m.LikedBy) >= 2 {
		return false, fmt.Errorf("like on full pair: %w", ErrInvalidTransition)
	}

	m.LikedBy = append(m.LikedBy, Like{UserID: user, LikedAt: now})
	m.UpdatedAt = now

	if len(m.LikedBy) == 2 && m.LikedByUser(m.Pair.Low) && m.LikedByUser(m.Pair.High) {
		m.Status = StatusMatched
		matchedAt := now
		m.MatchedAt = &matchedAt
		return true, nil
	}
	return false, nil
}

// applyPass locks the pair at rejected. A pass on an already rejected pair
// changes nothing.
func applyPass(m *Match, user string, now time.Time) (bool, error) {
	if !m.Pair.Has(user) {
		return false, ErrNotFound
	}
	switch m.Status {
	case StatusPending:
		m.Status = StatusRejected
		m.UpdatedAt = now
		return true, nil
	case StatusRejected:
		return false, nil
	default:
		return false, fmt.Errorf("pass on %s pair: %w", m.Status, ErrInvalidTransition)
	}
}

// applyUnmatch ends a match. Anything other than an active match the
// requester takes part in reads as not found.
func applyUnmatch(m *Match, requester string, now time.Time) error {
	if !m.Pair.Has(requester) || m.Status != StatusMatched || !m.IsActive {
		return ErrNotFound
	}
	m.Status = StatusRejected
	m.IsActive = false
	m.UpdatedAt = now
	return nil
}

// applyBlock moves the pair to blocked from any state.
func applyBlock(m *Match, now time.Time) bool {
	if m.Status == StatusBlocked {
		return false
	}
	m.Status = StatusBlocked
	m.IsActive = false
	m.UpdatedAt = now
	return true
}
