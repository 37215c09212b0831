package repository

import (
	"context"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"parking-anpr/internal/domain/parking"
)

type PlateReadRepository struct {
	db *gorm.DB
}

func NewPlateReadRepository(db *gorm.DB) *PlateReadRepository {
	return &PlateReadRepository{db: db}
}

type PlateReadRecord struct {
	ID           string `gorm:"primaryKey;size:36"`
	Event        string `gorm:"not null"`
	Samples      datatypes.JSONSlice[string]
	Consolidated *string
	Plate        *string
	Confidence   *float64
	SnapshotURL  *string
	Error        *string
	CreatedAt    time.Time
}

func (PlateReadRecord) TableName() string { return "plate_reads" }

var _ PlateReadStore = (*PlateReadRepository)(nil)

func (r *PlateReadRepository) SavePlateRead(ctx context.Context, read *parking.PlateRead) error {
	rec := PlateReadRecord{
		ID:        read.ID,
		Event:     string(read.Event),
		Samples:   datatypes.JSONSlice[string](read.Samples),
		CreatedAt: read.CreatedAt,
	}
	if read.Consolidated != "" {
		rec.Consolidated = &read.Consolidated
	}
	if read.Plate != "" {
		rec.Plate = &read.Plate
	}
	if read.Confidence != 0 {
		rec.Confidence = &read.Confidence
	}
	if read.SnapshotURL != "" {
		rec.SnapshotURL = &read.SnapshotURL
	}
	if read.Error != "" {
		rec.Error = &read.Error
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}

	if err := r.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return storageError("save plate read", err)
	}
	return nil
}

func (r *PlateReadRepository) RecentPlateReads(ctx context.Context, limit int) ([]parking.PlateRead, error) {
	var records []PlateReadRecord
	err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(PageSize(limit)).
		Find(&records).Error
	if err != nil {
		return nil, storageError("recent plate reads", err)
	}

	reads := make([]parking.PlateRead, 0, len(records))
	for _, rec := range records {
		reads = append(reads, rec.toDomain())
	}
	return reads, nil
}

func (r PlateReadRecord) toDomain() parking.PlateRead {
	read := parking.PlateRead{
		ID:        r.ID,
		Event:     parking.EventType(r.Event),
		Samples:   []string(r.Samples),
		CreatedAt: r.CreatedAt,
	}
	if r.Consolidated != nil {
		read.Consolidated = *r.Consolidated
	}
	if r.Plate != nil {
		read.Plate = *r.Plate
	}
	if r.Confidence != nil {
		read.Confidence = *r.Confidence
	}
	if r.SnapshotURL != nil {
		read.SnapshotURL = *r.SnapshotURL
	}
	if r.Error != nil {
		read.Error = *r.Error
	}
	return read
}
