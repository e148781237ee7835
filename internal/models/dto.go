package models

import "time"

// StartTrackingRequest is the request body for starting a time entry
type StartTrackingRequest struct {
	UserID     string    `json:"userId"`
	ProjectID  string    `json:"projectId"`
	TaskID     string    `json:"taskId,omitempty"`
	CostCodeID string    `json:"costCodeId,omitempty"`
	Location   *Position `json:"location,omitempty"`
}

// ActiveEntryResponse is the live view of the entry currently being tracked
type ActiveEntryResponse struct {
	Entry          *TimeEntry `json:"entry,omitempty"`
	State          string     `json:"state"`
	ElapsedSeconds int64      `json:"elapsedSeconds"`
	GeofenceStatus string     `json:"geofenceStatus,omitempty"`
	DistanceMeters float64    `json:"distanceMeters,omitempty"`
}

// StopTrackingResponse is returned after a time entry is finalized
type StopTrackingResponse struct {
	Entry      *TimeEntry `json:"entry"`
	TotalHours float64    `json:"totalHours"`
	IsOvertime bool       `json:"isOvertime"`
	Queued     bool       `json:"queued"`
}

// ReportLocationRequest carries a GPS fix pushed by the device shell
type ReportLocationRequest struct {
	Position
	ReportedAt time.Time `json:"reportedAt,omitempty"`
}

// CaptureIncidentRequest is the request body for reporting a safety incident
type CaptureIncidentRequest struct {
	UserID      string           `json:"userId"`
	ProjectID   string           `json:"projectId"`
	Severity    IncidentSeverity `json:"severity"`
	Description string           `json:"description"`
	Location    *Position        `json:"location,omitempty"`
	OccurredAt  time.Time        `json:"occurredAt,omitempty"`
}

// CaptureEquipmentRequest is the request body for an equipment transaction
type CaptureEquipmentRequest struct {
	UserID      string          `json:"userId"`
	ProjectID   string          `json:"projectId"`
	EquipmentID string          `json:"equipmentId"`
	Action      EquipmentAction `json:"action"`
	HoursUsed   float64         `json:"hoursUsed,omitempty"`
	Notes       string          `json:"notes,omitempty"`
}

// CaptureDeliveryRequest is the request body for a material delivery
type CaptureDeliveryRequest struct {
	UserID     string  `json:"userId"`
	ProjectID  string  `json:"projectId"`
	Supplier   string  `json:"supplier,omitempty"`
	Material   string  `json:"material"`
	Quantity   float64 `json:"quantity"`
	Unit       string  `json:"unit,omitempty"`
	ReceivedBy string  `json:"receivedBy,omitempty"`
}

// CaptureResponse is returned after a field record is accepted
type CaptureResponse struct {
	ID     string `json:"id"`
	Queued bool   `json:"queued"`
}

// ReconcileResponse is returned from a manual sync trigger
type ReconcileResponse struct {
	Synced  int  `json:"synced"`
	Failed  int  `json:"failed"`
	Started bool `json:"started"`
}

// DeadLetterItemResponse is one stuck mutation awaiting user action
type DeadLetterItemResponse struct {
	IdempotencyID string     `json:"idempotencyId"`
	EntityKind    EntityKind `json:"entityKind"`
	CreatedAt     time.Time  `json:"createdAt"`
	AttemptCount  int        `json:"attemptCount"`
	LastError     string     `json:"lastError,omitempty"`
}

// ErrorResponse is a standard error response
type ErrorResponse struct {
	Error string `json:"error"`
}

// HealthResponse is returned from health check endpoints
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Online    bool      `json:"online"`
}
