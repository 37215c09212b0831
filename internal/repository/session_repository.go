package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gopkg.in/guregu/null.v4"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"parking-anpr/internal/domain/parking"
)

type SessionRepository struct {
	db *gorm.DB
}

func NewSessionRepository(db *gorm.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

type ParkingSessionRecord struct {
	ID              int64     `gorm:"primaryKey"`
	Plate           string    `gorm:"not null"`
	EntryTime       time.Time `gorm:"not null"`
	ExitTime        *time.Time
	DurationMinutes *int64
	Fare            *float64
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func (ParkingSessionRecord) TableName() string { return "parking_sessions" }

func (r ParkingSessionRecord) toDomain() parking.ParkingSession {
	return parking.ParkingSession{
		ID:              r.ID,
		Plate:           r.Plate,
		EntryTime:       r.EntryTime,
		ExitTime:        null.TimeFromPtr(r.ExitTime),
		DurationMinutes: null.IntFromPtr(r.DurationMinutes),
		Fare:            null.FloatFromPtr(r.Fare),
	}
}

var _ SessionStore = (*SessionRepository)(nil)

// InsertOpenSession relies on the open-plate unique index to reject a second
// open session, so concurrent inserts from other processes are covered too.
func (r *SessionRepository) InsertOpenSession(ctx context.Context, plate string, entryTime time.Time) (*parking.ParkingSession, error) {
	now := time.Now()
	rec := ParkingSessionRecord{
		Plate:     plate,
		EntryTime: entryTime,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := r.db.WithContext(ctx).Create(&rec).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: %s", parking.ErrSessionConflict, plate)
		}
		return nil, storageError("insert session", err)
	}
	session := rec.toDomain()
	return &session, nil
}

func (r *SessionRepository) CloseLatestOpenSession(ctx context.Context, plate string, exitTime time.Time, price PriceFunc) (*parking.ParkingSession, error) {
	var closed parking.ParkingSession

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rec ParkingSessionRecord
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("plate = ? AND exit_time IS NULL", plate).
			Order("entry_time DESC").
			First(&rec).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: %s", parking.ErrSessionNotFound, plate)
		}
		if err != nil {
			return err
		}

		minutes, fare, err := price(rec.EntryTime)
		if err != nil {
			return err
		}

		res := tx.Model(&rec).
			Where("exit_time IS NULL").
			Updates(map[string]interface{}{
				"exit_time":        exitTime,
				"duration_minutes": minutes,
				"fare":             fare,
				"updated_at":       time.Now(),
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: %s", parking.ErrSessionNotFound, plate)
		}

		rec.ExitTime = &exitTime
		rec.DurationMinutes = &minutes
		rec.Fare = &fare
		closed = rec.toDomain()
		return nil
	})
	if err != nil {
		return nil, storageError("close session", err)
	}
	return &closed, nil
}

func (r *SessionRepository) FindSessions(ctx context.Context, filter parking.SessionFilter) ([]parking.ParkingSession, error) {
	query := r.db.WithContext(ctx).Model(&ParkingSessionRecord{})

	if filter.Plate != nil {
		query = query.Where("plate = ?", *filter.Plate)
	}
	if filter.From != nil {
		query = query.Where("entry_time >= ?", *filter.From)
	}
	if filter.To != nil {
		query = query.Where("entry_time <= ?", *filter.To)
	}

	query = query.Order("entry_time DESC").Order("id DESC").Limit(PageSize(filter.Limit))
	if filter.Offset > 0 {
		query = query.Offset(filter.Offset)
	}

	var records []ParkingSessionRecord
	if err := query.Find(&records).Error; err != nil {
		return nil, storageError("find sessions", err)
	}

	sessions := make([]parking.ParkingSession, 0, len(records))
	for _, rec := range records {
		sessions = append(sessions, rec.toDomain())
	}
	return sessions, nil
}

type statsRow struct {
	TotalVehicles      int64
	ActiveParkings     int64
	CompletedParkings  int64
	TotalRevenue       float64
	AvgDurationMinutes float64
	TodayEntries       int64
	TodayRevenue       float64
}

func (r *SessionRepository) Stats(ctx context.Context, dayStart time.Time) (*parking.Stats, error) {
	var row statsRow
	err := r.db.WithContext(ctx).
		Model(&ParkingSessionRecord{}).
		Select(`COUNT(DISTINCT plate) AS total_vehicles,
			COALESCE(SUM(CASE WHEN exit_time IS NULL THEN 1 ELSE 0 END), 0) AS active_parkings,
			COALESCE(SUM(CASE WHEN exit_time IS NOT NULL THEN 1 ELSE 0 END), 0) AS completed_parkings,
			COALESCE(SUM(fare), 0) AS total_revenue,
			COALESCE(AVG(duration_minutes), 0) AS avg_duration_minutes,
			COALESCE(SUM(CASE WHEN entry_time >= ? THEN 1 ELSE 0 END), 0) AS today_entries,
			COALESCE(SUM(CASE WHEN exit_time >= ? THEN fare ELSE 0 END), 0) AS today_revenue`,
			dayStart, dayStart).
		Scan(&row).Error
	if err != nil {
		return nil, storageError("session stats", err)
	}
	stats := parking.Stats(row)
	return &stats, nil
}

func (r *SessionRepository) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return storageError("ping", err)
	}
	return storageError("ping", sqlDB.PingContext(ctx))
}
