package parking

import (
	"time"

	"gopkg.in/guregu/null.v4"
)

type EventType string

const (
	EventEntry EventType = "entry"
	EventExit  EventType = "exit"
)

func (e EventType) Valid() bool {
	return e == EventEntry || e == EventExit
}

// BoundingBox is a detector box in source image pixel coordinates.
type BoundingBox struct {
	X1 int `json:"x1"`
	Y1 int `json:"y1"`
	X2 int `json:"x2"`
	Y2 int `json:"y2"`
}

func (b BoundingBox) Width() int  { return b.X2 - b.X1 }
func (b BoundingBox) Height() int { return b.Y2 - b.Y1 }

func (b BoundingBox) Empty() bool {
	return b.Width() <= 0 || b.Height() <= 0
}

type DetectionCandidate struct {
	Box        BoundingBox `json:"box"`
	Confidence float64     `json:"confidence"`
	Label      string      `json:"label"`
}

type ParkingSession struct {
	ID              int64      `json:"id"`
	Plate           string     `json:"plate"`
	EntryTime       time.Time  `json:"entry_time"`
	ExitTime        null.Time  `json:"exit_time"`
	DurationMinutes null.Int   `json:"duration_minutes"`
	Fare            null.Float `json:"fare"`
}

func (s *ParkingSession) Open() bool {
	return !s.ExitTime.Valid
}

type SessionFilter struct {
	Plate  *string
	From   *time.Time
	To     *time.Time
	Limit  int
	Offset int
}

type Stats struct {
	TotalVehicles      int64   `json:"total_vehicles"`
	ActiveParkings     int64   `json:"active_parkings"`
	CompletedParkings  int64   `json:"completed_parkings"`
	TotalRevenue       float64 `json:"total_revenue"`
	AvgDurationMinutes float64 `json:"avg_duration_minutes"`
	TodayEntries       int64   `json:"today_entries"`
	TodayRevenue       float64 `json:"today_revenue"`
}

// PlateRead is the audit record of one recognition attempt.
type PlateRead struct {
	ID           string    `json:"id"`
	Event        EventType `json:"event"`
	Samples      []string  `json:"samples"`
	Consolidated string    `json:"consolidated"`
	Plate        string    `json:"plate"`
	Confidence   float64   `json:"confidence"`
	SnapshotURL  string    `json:"snapshot_url,omitempty"`
	Error        string    `json:"error,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

type SessionEvent struct {
	Event     EventType  `json:"event"`
	Plate     string     `json:"plate"`
	SessionID int64      `json:"session_id"`
	Timestamp time.Time  `json:"timestamp"`
	Fare      null.Float `json:"fare"`
}
