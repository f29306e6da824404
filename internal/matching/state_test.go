package matching

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, time.January, 10, 9, 0, 0, 0, time.UTC)

func TestNewPairIsCanonical(t *testing.T) {
	assert.Equal(t, NewPair("a", "b"), NewPair("b", "a"))
	p := NewPair("zed", "amy")
	assert.Equal(t, "amy", p.Low)
	assert.Equal(t, "zed", p.High)
	assert.Equal(t, "amy", p.Other("zed"))
	assert.True(t, p.Has("zed"))
	assert.False(t, p.Has("bob"))
}

func TestApplyLikeFormsMatchOnSecondLike(t *testing.T) {
	m := newPendingMatch("m1", "a", "b", 72, t0)

	later := t0.Add(time.Hour)
	formed, err := applyLike(m, "b", later)
	require.NoError(t, err)
	assert.True(t, formed)
	assert.Equal(t, StatusMatched, m.Status)
	require.NotNil(t, m.MatchedAt)
	assert.True(t, m.MatchedAt.Equal(later))
	assert.Len(t, m.LikedBy, 2)
	assert.Equal(t, 72, m.MatchPercentage)
}

func TestApplyLikeRejectsRepeats(t *testing.T) {
	m := newPendingMatch("m1", "a", "b", 50, t0)

	_, err := applyLike(m, "a", t0)
	assert.ErrorIs(t, err, ErrDuplicateLike)
	assert.Len(t, m.LikedBy, 1)

	_, err = applyLike(m, "b", t0)
	require.NoError(t, err)

	// Retries after the match formed still read as duplicates.
	_, err = applyLike(m, "b", t0)
	assert.ErrorIs(t, err, ErrDuplicateLike)
	_, err = applyLike(m, "a", t0)
	assert.ErrorIs(t, err, ErrDuplicateLike)
}

func TestApplyLikeOnTerminalStates(t *testing.T) {
	rejected := newRejectedMatch("m1", "a", "b", 50, t0)
	_, err := applyLike(rejected, "b", t0)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.Equal(t, StatusRejected, rejected.Status)
	assert.Empty(t, rejected.LikedBy)

	blocked := newPendingMatch("m2", "a", "b", 50, t0)
	applyBlock(blocked, t0)
	_, err = applyLike(blocked, "b", t0)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestApplyLikeOutsidePair(t *testing.T) {
	m := newPendingMatch("m1", "a", "b", 50, t0)
	_, err := applyLike(m, "c", t0)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestApplyPass(t *testing.T) {
	m := newPendingMatch("m1", "a", "b", 50, t0)

	changed, err := applyPass(m, "b", t0)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, StatusRejected, m.Status)
	assert.Nil(t, m.MatchedAt)

	changed, err = applyPass(m, "a", t0)
	require.NoError(t, err)
	assert.False(t, changed)

	matched := newPendingMatch("m2", "a", "b", 50, t0)
	_, err = applyLike(matched, "b", t0)
	require.NoError(t, err)
	_, err = applyPass(matched, "a", t0)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.Equal(t, StatusMatched, matched.Status)
}

func TestApplyUnmatch(t *testing.T) {
	m := newPendingMatch("m1", "a", "b", 50, t0)
	assert.ErrorIs(t, applyUnmatch(m, "a", t0), ErrNotFound)

	_, err := applyLike(m, "b", t0)
	require.NoError(t, err)
	assert.ErrorIs(t, applyUnmatch(m, "c", t0), ErrNotFound)

	later := t0.Add(time.Minute)
	require.NoError(t, applyUnmatch(m, "b", later))
	assert.Equal(t, StatusRejected, m.Status)
	assert.False(t, m.IsActive)
	require.NotNil(t, m.MatchedAt)
	assert.True(t, m.MatchedAt.Equal(t0))

	assert.ErrorIs(t, applyUnmatch(m, "a", later), ErrNotFound)
}

func TestApplyBlockFromAnyState(t *testing.T) {
	for _, st := range []Status{StatusPending, StatusMatched, StatusRejected} {
		m := newPendingMatch("m", "a", "b", 50, t0)
		m.Status = st
		assert.True(t, applyBlock(m, t0), st)
		assert.Equal(t, StatusBlocked, m.Status)
		assert.False(t, m.IsActive)
		assert.False(t, applyBlock(m, t0))
	}
}

func TestCloneIsDeep(t *testing.T) {
	m := newPendingMatch("m1", "a", "b", 50, t0)
	c := m.Clone()
	_, err := applyLike(c, "b", t0)
	require.NoError(t, err)

	assert.Len(t, m.LikedBy, 1)
	assert.Nil(t, m.MatchedAt)
	assert.Equal(t, []Like{{UserID: "b", LikedAt: t0}}, AddedLikes(m, c))
}
