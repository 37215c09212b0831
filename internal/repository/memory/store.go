// Package memory keeps sessions and plate reads in process memory. It is
// meant for single-instance deployments and tests.
package memory

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"gopkg.in/guregu/null.v4"

	"parking-anpr/internal/domain/parking"
	"parking-anpr/internal/platelock"
	"parking-anpr/internal/repository"
)

type Store struct {
	locks *platelock.Locker

	mu       sync.RWMutex
	nextID   int64
	sessions []parking.ParkingSession
	reads    []parking.PlateRead
}

func New() *Store {
	return &Store{locks: platelock.New()}
}

var (
	_ repository.SessionStore   = (*Store)(nil)
	_ repository.PlateReadStore = (*Store)(nil)
)

// InsertOpenSession checks and inserts under the plate's lock, so only one of
// several concurrent entries for a plate can win.
func (s *Store) InsertOpenSession(ctx context.Context, plate string, entryTime time.Time) (*parking.ParkingSession, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", parking.ErrStorageUnavailable, err)
	}
	unlock := s.locks.Lock(plate)
	defer unlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.latestOpen(plate) >= 0 {
		return nil, fmt.Errorf("%w: %s", parking.ErrSessionConflict, plate)
	}
	s.nextID++
	session := parking.ParkingSession{ID: s.nextID, Plate: plate, EntryTime: entryTime}
	s.sessions = append(s.sessions, session)
	return &session, nil
}

// CloseLatestOpenSession prices the session outside the data lock but inside
// the plate lock, so no other mutation of this plate can interleave.
func (s *Store) CloseLatestOpenSession(ctx context.Context, plate string, exitTime time.Time, price repository.PriceFunc) (*parking.ParkingSession, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", parking.ErrStorageUnavailable, err)
	}
	unlock := s.locks.Lock(plate)
	defer unlock()

	s.mu.RLock()
	idx := s.latestOpen(plate)
	var entry time.Time
	if idx >= 0 {
		entry = s.sessions[idx].EntryTime
	}
	s.mu.RUnlock()
	if idx < 0 {
		return nil, fmt.Errorf("%w: %s", parking.ErrSessionNotFound, plate)
	}

	minutes, fare, err := price(entry)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	session := &s.sessions[idx]
	session.ExitTime = null.TimeFrom(exitTime)
	session.DurationMinutes = null.IntFrom(minutes)
	session.Fare = null.FloatFrom(fare)
	closed := *session
	return &closed, nil
}

// latestOpen returns the index of the plate's open session with the latest
// entry time, or -1. Callers hold mu.
func (s *Store) latestOpen(plate string) int {
	idx := -1
	for i, session := range s.sessions {
		if session.Plate != plate || !session.Open() {
			continue
		}
		if idx < 0 || !session.EntryTime.Before(s.sessions[idx].EntryTime) {
			idx = i
		}
	}
	return idx
}

func (s *Store) FindSessions(_ context.Context, filter parking.SessionFilter) ([]parking.ParkingSession, error) {
	s.mu.RLock()
	matched := make([]parking.ParkingSession, 0)
	for _, session := range s.sessions {
		if filter.Plate != nil && session.Plate != *filter.Plate {
			continue
		}
		if filter.From != nil && session.EntryTime.Before(*filter.From) {
			continue
		}
		if filter.To != nil && session.EntryTime.After(*filter.To) {
			continue
		}
		matched = append(matched, session)
	}
	s.mu.RUnlock()

	slices.SortStableFunc(matched, func(a, b parking.ParkingSession) int {
		if c := b.EntryTime.Compare(a.EntryTime); c != 0 {
			return c
		}
		return int(b.ID - a.ID)
	})

	offset := max(filter.Offset, 0)
	if offset >= len(matched) {
		return []parking.ParkingSession{}, nil
	}
	end := min(offset+repository.PageSize(filter.Limit), len(matched))
	return matched[offset:end], nil
}

func (s *Store) Stats(_ context.Context, dayStart time.Time) (*parking.Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		stats         parking.Stats
		totalDuration int64
		plates        = make(map[string]struct{})
	)
	for _, session := range s.sessions {
		plates[session.Plate] = struct{}{}
		if !session.EntryTime.Before(dayStart) {
			stats.TodayEntries++
		}
		if session.Open() {
			stats.ActiveParkings++
			continue
		}
		stats.CompletedParkings++
		stats.TotalRevenue += session.Fare.Float64
		totalDuration += session.DurationMinutes.Int64
		if !session.ExitTime.Time.Before(dayStart) {
			stats.TodayRevenue += session.Fare.Float64
		}
	}
	stats.TotalVehicles = int64(len(plates))
	if stats.CompletedParkings > 0 {
		stats.AvgDurationMinutes = float64(totalDuration) / float64(stats.CompletedParkings)
	}
	return &stats, nil
}

func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) SavePlateRead(_ context.Context, read *parking.PlateRead) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := *read
	stored.Samples = slices.Clone(read.Samples)
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now()
	}
	s.reads = append(s.reads, stored)
	return nil
}

func (s *Store) RecentPlateReads(_ context.Context, limit int) ([]parking.PlateRead, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := min(repository.PageSize(limit), len(s.reads))
	out := make([]parking.PlateRead, 0, n)
	for i := len(s.reads) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, s.reads[i])
	}
	return out, nil
}
