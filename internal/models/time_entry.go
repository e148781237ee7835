package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// OvertimeThreshold is the worked duration beyond which an entry counts as overtime
const OvertimeThreshold = 8 * time.Hour

// TimeEntry represents one continuous work session for one user on one day.
// The ID is generated on the device and doubles as the idempotency key when
// the finalized entry is written to the remote store.
type TimeEntry struct {
	ID                   string     `json:"id"`
	UserID               string     `json:"userId"`
	ProjectID            string     `json:"projectId"`
	TaskID               string     `json:"taskId,omitempty"`
	CostCodeID           string     `json:"costCodeId,omitempty"`
	StartTime            time.Time  `json:"startTime"`
	EndTime              *time.Time `json:"endTime,omitempty"`
	BreakDurationSeconds int64      `json:"breakDurationSeconds"`
	TotalHours           float64    `json:"totalHours,omitempty"`
	IsOvertime           bool       `json:"isOvertime"`
	HourlyRate           *float64   `json:"hourlyRate,omitempty"`
	GPSAtStart           Position   `json:"gpsAtStart"`
	InsideFenceAtStart   *bool      `json:"insideFenceAtStart,omitempty"`
	Notes                string     `json:"notes,omitempty"`
}

// NewTimeEntry creates an active TimeEntry with validation
func NewTimeEntry(userID, projectID, taskID, costCodeID string, start time.Time, gps Position) (*TimeEntry, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, ErrEmptyUserID
	}
	if strings.TrimSpace(projectID) == "" {
		return nil, ErrEmptyProjectID
	}
	if err := gps.Validate(); err != nil {
		return nil, err
	}

	return &TimeEntry{
		ID:         uuid.New().String(),
		UserID:     userID,
		ProjectID:  projectID,
		TaskID:     taskID,
		CostCodeID: costCodeID,
		StartTime:  start.UTC(),
		GPSAtStart: gps,
	}, nil
}

// Active reports whether the entry is still accruing time
func (e *TimeEntry) Active() bool {
	return e.EndTime == nil
}

// WorkedDuration returns elapsed work time up to now, excluding breaks.
// For a finalized entry, now is ignored and EndTime is used.
func (e *TimeEntry) WorkedDuration(now time.Time) time.Duration {
	end := now.UTC()
	if e.EndTime != nil {
		end = *e.EndTime
	}
	d := end.Sub(e.StartTime) - time.Duration(e.BreakDurationSeconds)*time.Second
	if d < 0 {
		return 0
	}
	return d
}

// Finalize closes the entry at end, computing TotalHours and IsOvertime.
// After finalization the entry is immutable and ready for submission.
func (e *TimeEntry) Finalize(end time.Time) error {
	end = end.UTC()
	if end.Before(e.StartTime) {
		return ErrEndBeforeStart
	}
	if e.BreakDurationSeconds < 0 {
		return ErrNegativeBreak
	}

	worked := end.Sub(e.StartTime) - time.Duration(e.BreakDurationSeconds)*time.Second
	if worked < 0 {
		worked = 0
	}

	e.EndTime = &end
	e.TotalHours = worked.Hours()
	e.IsOvertime = worked > OvertimeThreshold
	return nil
}
