package api

import (
	"context"
	"net/http"
	"time"

	"github.com/graph-gophers/dataloader/v7"

	"gitea.kood.tech/petrkubec/match-me/matchcore/internal/matching"
)

// ProfileReader is the profile access the API needs on top of the engine.
type ProfileReader interface {
	Get(ctx context.Context, userID string) (matching.Profile, error)
	GetMany(ctx context.Context, ids []string) (map[string]matching.Profile, error)
}

type loadersKey struct{}

// Loaders holds the per-request batch loaders.
type Loaders struct {
	Profiles *dataloader.Loader[string, *matching.Profile]
}

// NewLoaders creates fresh loaders over profiles.
func NewLoaders(profiles ProfileReader) *Loaders {
	return &Loaders{
		Profiles: dataloader.NewBatchedLoader(
			profileBatchFn(profiles),
			dataloader.WithWait[string, *matching.Profile](5*time.Millisecond),
		),
	}
}

// profileBatchFn resolves a batch of user ids with one GetMany call. Missing
// profiles resolve to nil.
func profileBatchFn(profiles ProfileReader) dataloader.BatchFunc[string, *matching.Profile] {
	return func(ctx context.Context, keys []string) []*dataloader.Result[*matching.Profile] {
		results := make([]*dataloader.Result[*matching.Profile], len(keys))

		found, err := profiles.GetMany(ctx, keys)
		for i, key := range keys {
			if err != nil {
				results[i] = &dataloader.Result[*matching.Profile]{Error: err}
				continue
			}
			results[i] = &dataloader.Result[*matching.Profile]{}
			if p, ok := found[key]; ok {
				results[i].Data = &p
			}
		}
		return results
	}
}

// withLoaders gives every request its own loaders so nothing is cached across
// requests.
func withLoaders(profiles ProfileReader) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := context.WithValue(r.Context(), loadersKey{}, NewLoaders(profiles))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func loadersFrom(ctx context.Context) *Loaders {
	l, _ := ctx.Value(loadersKey{}).(*Loaders)
	return l
}

// loadPeers resolves the profiles of ids in one batch, keyed by user id.
func loadPeers(ctx context.Context, ids []string) (map[string]*matching.Profile, error) {
	loader := loadersFrom(ctx).Profiles
	thunks := make([]dataloader.Thunk[*matching.Profile], len(ids))
	for i, id := range ids {
		thunks[i] = loader.Load(ctx, id)
	}

	out := make(map[string]*matching.Profile, len(ids))
	for i, thunk := range thunks {
		p, err := thunk()
		if err != nil {
			return nil, err
		}
		out[ids[i]] = p
	}
	return out, nil
}
