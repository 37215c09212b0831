package service

import (
	"context"
	"fmt"
	"time"

	"gopkg.in/guregu/null.v4"

	"parking-anpr/internal/domain/parking"
	"parking-anpr/internal/repository"
	"parking-anpr/internal/utils"
)

const (
	SessionActive    = "active"
	SessionCompleted = "completed"
)

type SessionInfo struct {
	ID              int64      `json:"id"`
	Plate           string     `json:"plate"`
	Status          string     `json:"status"`
	Entry           time.Time  `json:"entry"`
	Exit            null.Time  `json:"exit"`
	DurationMinutes null.Int   `json:"duration_minutes"`
	Fare            null.Float `json:"fare"`
}

func toSessionInfo(s parking.ParkingSession) SessionInfo {
	status := SessionCompleted
	if s.Open() {
		status = SessionActive
	}
	return SessionInfo{
		ID:              s.ID,
		Plate:           s.Plate,
		Status:          status,
		Entry:           s.EntryTime,
		Exit:            s.ExitTime,
		DurationMinutes: s.DurationMinutes,
		Fare:            s.Fare,
	}
}

func (s *ParkingService) FindSessions(ctx context.Context, plateQuery *string, from, to *string, limit, offset int) ([]SessionInfo, error) {
	filter := parking.SessionFilter{Limit: limit, Offset: max(offset, 0)}

	if plateQuery != nil {
		normalized := utils.NormalizePlate(*plateQuery)
		if normalized != "" {
			filter.Plate = &normalized
		}
	}
	if from != nil && *from != "" {
		t, err := time.Parse(time.RFC3339, *from)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid from time format", parking.ErrInvalidInput)
		}
		filter.From = &t
	}
	if to != nil && *to != "" {
		t, err := time.Parse(time.RFC3339, *to)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid to time format", parking.ErrInvalidInput)
		}
		filter.To = &t
	}
	if filter.From != nil && filter.To != nil && filter.To.Before(*filter.From) {
		return nil, fmt.Errorf("%w: to is before from", parking.ErrInvalidInput)
	}
	if filter.Limit <= 0 {
		filter.Limit = 50
	}

	sessions, err := s.store.FindSessions(ctx, filter)
	if err != nil {
		return nil, err
	}

	result := make([]SessionInfo, 0, len(sessions))
	for _, session := range sessions {
		result = append(result, toSessionInfo(session))
	}
	return result, nil
}

// SearchPlate lists every stored session for one plate, newest first.
func (s *ParkingService) SearchPlate(ctx context.Context, plateQuery string) ([]SessionInfo, error) {
	normalized := utils.NormalizePlate(plateQuery)
	if normalized == "" {
		return nil, fmt.Errorf("%w: plate query cannot be empty", parking.ErrInvalidInput)
	}
	return s.FindSessions(ctx, &normalized, nil, nil, repository.MaxPageSize, 0)
}

func (s *ParkingService) Stats(ctx context.Context) (*parking.Stats, error) {
	now := s.now()
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	return s.store.Stats(ctx, dayStart)
}

func (s *ParkingService) RecentPlateReads(ctx context.Context, limit int) ([]parking.PlateRead, error) {
	if s.reads == nil {
		return []parking.PlateRead{}, nil
	}
	return s.reads.RecentPlateReads(ctx, limit)
}

// Health pings the session store.
func (s *ParkingService) Health(ctx context.Context) error {
	return s.store.Ping(ctx)
}
