package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gitea.kood.tech/petrkubec/match-me/matchcore/internal/chat"
	"gitea.kood.tech/petrkubec/match-me/matchcore/internal/matching"
)

var base = time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)

func openTempStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "matchcore.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func putProfile(t *testing.T, s *Store, id string, age int, gender string, lastActive time.Time) matching.Profile {
	t.Helper()
	p := matching.Profile{
		UserID:     id,
		Age:        age,
		Gender:     gender,
		Location:   &matching.Coordinates{Lon: -74.0060, Lat: 40.7128},
		Interests:  []string{"hiking", "jazz"},
		LastActive: lastActive,
		Active:     true,
		Preferences: matching.Preferences{
			AgeMin: 18, AgeMax: 99, Gender: matching.PreferAny,
			Education: matching.PreferAny, Religion: matching.PreferAny,
		},
	}
	require.NoError(t, s.PutProfile(context.Background(), p))
	return p
}

func TestOpenRequiresPath(t *testing.T) {
	_, err := Open("  ")
	require.Error(t, err)
}

func TestOpenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "matchcore.db")
	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Close())
}

func TestProfileRoundTrip(t *testing.T) {
	s := openTempStore(t)
	ctx := context.Background()
	want := putProfile(t, s, "u1", 30, matching.GenderFemale, base)

	got, err := s.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, want.UserID, got.UserID)
	assert.Equal(t, want.Interests, got.Interests)
	require.NotNil(t, got.Location)
	assert.InDelta(t, -74.0060, got.Location.Lon, 1e-9)
	assert.InDelta(t, 40.7128, got.Location.Lat, 1e-9)
	assert.True(t, got.LastActive.Equal(base))
	assert.True(t, got.Active)

	_, err = s.Get(ctx, "missing")
	assert.ErrorIs(t, err, matching.ErrNotFound)

	many, err := s.GetMany(ctx, []string{"u1", "missing"})
	require.NoError(t, err)
	assert.Len(t, many, 1)
	assert.Contains(t, many, "u1")
}

func TestFindCandidatesOrderAndPaging(t *testing.T) {
	s := openTempStore(t)
	ctx := context.Background()
	me := putProfile(t, s, "me", 30, matching.GenderMale, base)
	putProfile(t, s, "a", 28, matching.GenderFemale, base.Add(-time.Hour))
	putProfile(t, s, "b", 29, matching.GenderFemale, base.Add(-time.Minute))
	putProfile(t, s, "c", 31, matching.GenderFemale, base.Add(-time.Minute))
	putProfile(t, s, "d", 27, matching.GenderMale, base)

	me.Preferences.Gender = matching.GenderFemale
	f := matching.BuildFilter(me, nil)

	first, err := s.FindCandidates(ctx, f, matching.Page{Number: 1, Size: 2})
	require.NoError(t, err)
	require.Len(t, first, 2)
	assert.Equal(t, "b", first[0].UserID)
	assert.Equal(t, "c", first[1].UserID)

	second, err := s.FindCandidates(ctx, f, matching.Page{Number: 2, Size: 2})
	require.NoError(t, err)
	require.Len(t, second, 1)
	assert.Equal(t, "a", second[0].UserID)
}

func TestFindCandidatesSkipsPairsWithRecords(t *testing.T) {
	s := openTempStore(t)
	ctx := context.Background()
	me := putProfile(t, s, "me", 30, matching.GenderMale, base)
	putProfile(t, s, "liked", 28, matching.GenderFemale, base)
	putProfile(t, s, "fresh", 28, matching.GenderFemale, base)

	_, created, err := s.CreateIfAbsent(ctx, &matching.Match{
		ID: "m1", Pair: matching.NewPair("me", "liked"), Status: matching.StatusRejected,
		IsActive: true, CreatedAt: base, UpdatedAt: base,
	})
	require.NoError(t, err)
	require.True(t, created)

	// Even with an empty exclusion set the stored record keeps the pair out.
	got, err := s.FindCandidates(ctx, matching.BuildFilter(me, nil), matching.Page{Number: 1, Size: 10})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "fresh", got[0].UserID)
}

func TestCreateIfAbsentHasOneWinner(t *testing.T) {
	s := openTempStore(t)
	ctx := context.Background()
	pair := matching.NewPair("x", "y")

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		winners int
		ids     = map[string]struct{}{}
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			m := &matching.Match{
				ID: "m" + string(rune('a'+i)), Pair: pair, Status: matching.StatusPending,
				LikedBy:  []matching.Like{{UserID: "x", LikedAt: base}},
				IsActive: true, CreatedAt: base, UpdatedAt: base,
			}
			stored, created, err := s.CreateIfAbsent(ctx, m)
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			defer mu.Unlock()
			if created {
				winners++
			}
			ids[stored.ID] = struct{}{}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, winners)
	assert.Len(t, ids, 1)
}

func TestUpdateAppliesAndVersions(t *testing.T) {
	s := openTempStore(t)
	ctx := context.Background()
	pair := matching.NewPair("x", "y")
	_, _, err := s.CreateIfAbsent(ctx, &matching.Match{
		ID: "m1", Pair: pair, Status: matching.StatusPending, MatchPercentage: 70,
		LikedBy:  []matching.Like{{UserID: "x", LikedAt: base}},
		IsActive: true, CreatedAt: base, UpdatedAt: base,
	})
	require.NoError(t, err)

	later := base.Add(time.Minute)
	updated, err := s.Update(ctx, pair, func(m *matching.Match) (bool, error) {
		m.LikedBy = append(m.LikedBy, matching.Like{UserID: "y", LikedAt: later})
		m.Status = matching.StatusMatched
		m.MatchedAt = &later
		m.UpdatedAt = later
		return true, nil
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), updated.Version)

	got, err := s.GetByID(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, matching.StatusMatched, got.Status)
	assert.Len(t, got.LikedBy, 2)
	assert.Equal(t, 70, got.MatchPercentage)
	require.NotNil(t, got.MatchedAt)
	assert.True(t, got.MatchedAt.Equal(later))

	// A no-op keeps the version.
	same, err := s.Update(ctx, pair, func(*matching.Match) (bool, error) { return false, nil })
	require.NoError(t, err)
	assert.Equal(t, int64(1), same.Version)
}

func TestUpdateRollsBackOnError(t *testing.T) {
	s := openTempStore(t)
	ctx := context.Background()
	pair := matching.NewPair("x", "y")
	_, _, err := s.CreateIfAbsent(ctx, &matching.Match{
		ID: "m1", Pair: pair, Status: matching.StatusPending, IsActive: true, CreatedAt: base, UpdatedAt: base,
	})
	require.NoError(t, err)

	boom := errors.New("boom")
	_, err = s.Update(ctx, pair, func(m *matching.Match) (bool, error) {
		m.Status = matching.StatusRejected
		return true, boom
	})
	require.ErrorIs(t, err, boom)

	got, err := s.GetByPair(ctx, pair)
	require.NoError(t, err)
	assert.Equal(t, matching.StatusPending, got.Status)

	_, err = s.Update(ctx, matching.NewPair("no", "body"), func(*matching.Match) (bool, error) { return true, nil })
	assert.ErrorIs(t, err, matching.ErrNotFound)
}

func TestConversationUnreadCounters(t *testing.T) {
	s := openTempStore(t)
	ctx := context.Background()
	pair := matching.NewPair("x", "y")
	_, _, err := s.CreateIfAbsent(ctx, &matching.Match{
		ID: "m1", Pair: pair, Status: matching.StatusMatched, IsActive: true, CreatedAt: base, UpdatedAt: base,
	})
	require.NoError(t, err)

	c, created, err := s.EnsureConversation(ctx, &chat.Conversation{ID: "c1", MatchID: "m1", Pair: pair, CreatedAt: base})
	require.NoError(t, err)
	require.True(t, created)

	again, created, err := s.EnsureConversation(ctx, &chat.Conversation{ID: "c2", MatchID: "m1", Pair: pair, CreatedAt: base})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, c.ID, again.ID)

	for i := 0; i < 3; i++ {
		_, err := s.AppendMessage(ctx, &chat.Message{ConversationID: "c1", SenderID: "x", Body: "hi", CreatedAt: base.Add(time.Duration(i) * time.Second)})
		require.NoError(t, err)
	}
	_, err = s.AppendMessage(ctx, &chat.Message{ConversationID: "c1", SenderID: "y", Body: "hey", CreatedAt: base.Add(time.Minute)})
	require.NoError(t, err)

	got, err := s.GetConversation(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, 3, got.UnreadFor("y"))
	assert.Equal(t, 1, got.UnreadFor("x"))

	require.NoError(t, s.MarkRead(ctx, "c1", "y"))
	got, err = s.GetConversation(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, 0, got.UnreadFor("y"))
	assert.Equal(t, 1, got.UnreadFor("x"))

	_, err = s.AppendMessage(ctx, &chat.Message{ConversationID: "c1", SenderID: "stranger", Body: "hi", CreatedAt: base})
	assert.ErrorIs(t, err, matching.ErrNotFound)

	msgs, err := s.ListMessages(ctx, "c1", 0, 2)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "hey", msgs[0].Body)

	older, err := s.ListMessages(ctx, "c1", msgs[1].ID, 10)
	require.NoError(t, err)
	assert.Len(t, older, 2)
}
