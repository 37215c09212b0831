package repository

import (
	"context"
	"time"

	"parking-anpr/internal/domain/parking"
)

// PriceFunc prices a session that is being closed. It runs while the store
// holds the plate's open session, so it must not call back into the store.
type PriceFunc func(entryTime time.Time) (durationMinutes int64, fare float64, err error)

// SessionStore owns the one-open-session-per-plate rule. Both mutations are
// atomic per plate: two concurrent inserts for the same plate yield exactly
// one session and one ErrSessionConflict.
type SessionStore interface {
	InsertOpenSession(ctx context.Context, plate string, entryTime time.Time) (*parking.ParkingSession, error)
	CloseLatestOpenSession(ctx context.Context, plate string, exitTime time.Time, price PriceFunc) (*parking.ParkingSession, error)
	FindSessions(ctx context.Context, filter parking.SessionFilter) ([]parking.ParkingSession, error)
	Stats(ctx context.Context, dayStart time.Time) (*parking.Stats, error)
	Ping(ctx context.Context) error
}

type PlateReadStore interface {
	SavePlateRead(ctx context.Context, read *parking.PlateRead) error
	RecentPlateReads(ctx context.Context, limit int) ([]parking.PlateRead, error)
}

const MaxPageSize = 100

// PageSize clamps a requested page size to (0, MaxPageSize].
func PageSize(limit int) int {
	if limit <= 0 || limit > MaxPageSize {
		return MaxPageSize
	}
	return limit
}
