// Package store picks the storage backend the process runs on.
package store

import (
	"context"
	"fmt"

	"gitea.kood.tech/petrkubec/match-me/matchcore/internal/chat"
	"gitea.kood.tech/petrkubec/match-me/matchcore/internal/matching"
	"gitea.kood.tech/petrkubec/match-me/matchcore/internal/moderation"
	"gitea.kood.tech/petrkubec/match-me/matchcore/internal/store/postgres"
	"gitea.kood.tech/petrkubec/match-me/matchcore/internal/store/sqlite"
)

// Drivers accepted by Open.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Backend is everything the services need from storage. Both drivers
// implement all of it.
type Backend interface {
	matching.ProfileLookup
	matching.MatchStore
	chat.Store
	moderation.Store

	GetMany(ctx context.Context, ids []string) (map[string]matching.Profile, error)
	PutProfile(ctx context.Context, p matching.Profile) error
	SetProfileActive(ctx context.Context, userID string, active bool) error
	Ping(ctx context.Context) error
	Close() error
}

// Options select and locate a backend.
type Options struct {
	Driver     string
	DSN        string
	SQLitePath string
}

var (
	_ Backend = (*postgres.Store)(nil)
	_ Backend = (*sqlite.Store)(nil)
)

// Open connects to the configured backend and brings its schema up to date.
func Open(ctx context.Context, opts Options) (Backend, error) {
	switch opts.Driver {
	case DriverPostgres:
		s, err := postgres.Open(ctx, opts.DSN)
		if err != nil {
			return nil, err
		}
		if err := s.Migrate(ctx); err != nil {
			_ = s.Close()
			return nil, err
		}
		return s, nil
	case DriverSQLite, "":
		s, err := sqlite.Open(opts.SQLitePath)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", opts.Driver)
	}
}
