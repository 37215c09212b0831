package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"parking-anpr/internal/domain/parking"
	"parking-anpr/internal/fare"
	"parking-anpr/internal/repository"
)

const (
	StatusEntryRecorded = "Entry recorded"
	StatusExitRecorded  = "Exit recorded"
)

// SessionService moves a plate between having no session, an open session
// and a closed one. The store makes each transition atomic per plate.
type SessionService struct {
	store repository.SessionStore
	calc  *fare.Calculator
	log   zerolog.Logger
}

func NewSessionService(store repository.SessionStore, calc *fare.Calculator, log zerolog.Logger) *SessionService {
	return &SessionService{
		store: store,
		calc:  calc,
		log:   log,
	}
}

func (s *SessionService) RecordEntry(ctx context.Context, plate string, at time.Time) (*parking.ParkingSession, error) {
	if plate == "" {
		return nil, fmt.Errorf("%w: plate is required", parking.ErrInvalidInput)
	}

	session, err := s.store.InsertOpenSession(ctx, plate, at)
	if err != nil {
		if errors.Is(err, parking.ErrSessionConflict) {
			s.log.Info().Str("plate", plate).Msg("entry rejected, vehicle already parked")
		} else {
			s.log.Error().Err(err).Str("plate", plate).Msg("failed to open session")
		}
		return nil, err
	}

	s.log.Info().
		Int64("session_id", session.ID).
		Str("plate", plate).
		Time("entry_time", session.EntryTime).
		Msg("session opened")
	return session, nil
}

func (s *SessionService) RecordExit(ctx context.Context, plate string, at time.Time) (*parking.ParkingSession, error) {
	if plate == "" {
		return nil, fmt.Errorf("%w: plate is required", parking.ErrInvalidInput)
	}

	session, err := s.store.CloseLatestOpenSession(ctx, plate, at, func(entry time.Time) (int64, float64, error) {
		return s.calc.Calculate(entry, at)
	})
	if err != nil {
		switch {
		case errors.Is(err, parking.ErrSessionNotFound):
			s.log.Info().Str("plate", plate).Msg("exit rejected, no open session")
		case errors.Is(err, parking.ErrInvalidDuration):
			s.log.Warn().Err(err).Str("plate", plate).Time("exit_time", at).Msg("exit before entry")
		default:
			s.log.Error().Err(err).Str("plate", plate).Msg("failed to close session")
		}
		return nil, err
	}

	s.log.Info().
		Int64("session_id", session.ID).
		Str("plate", plate).
		Int64("duration_minutes", session.DurationMinutes.Int64).
		Float64("fare", session.Fare.Float64).
		Str("policy", s.calc.Policy().Name()).
		Msg("session closed")
	return session, nil
}
