package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// IncidentSeverity classifies a safety incident
type IncidentSeverity string

const (
	SeverityLow      IncidentSeverity = "low"
	SeverityMedium   IncidentSeverity = "medium"
	SeverityHigh     IncidentSeverity = "high"
	SeverityCritical IncidentSeverity = "critical"
)

// SafetyIncident is a safety or incident report captured in the field
type SafetyIncident struct {
	ID          string           `json:"id"`
	UserID      string           `json:"userId"`
	ProjectID   string           `json:"projectId"`
	Severity    IncidentSeverity `json:"severity"`
	Description string           `json:"description"`
	Location    *Position        `json:"location,omitempty"`
	OccurredAt  time.Time        `json:"occurredAt"`
	ReportedAt  time.Time        `json:"reportedAt"`
}

// NewSafetyIncident creates a SafetyIncident with validation
func NewSafetyIncident(userID, projectID string, severity IncidentSeverity, description string, location *Position, occurredAt time.Time) (*SafetyIncident, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, ErrEmptyUserID
	}
	if strings.TrimSpace(projectID) == "" {
		return nil, ErrEmptyProjectID
	}
	if strings.TrimSpace(description) == "" {
		return nil, ErrEmptyDescription
	}
	switch severity {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
	default:
		severity = SeverityMedium
	}
	if location != nil {
		if err := location.Validate(); err != nil {
			return nil, err
		}
	}

	return &SafetyIncident{
		ID:          uuid.New().String(),
		UserID:      userID,
		ProjectID:   projectID,
		Severity:    severity,
		Description: description,
		Location:    location,
		OccurredAt:  occurredAt.UTC(),
		ReportedAt:  time.Now().UTC(),
	}, nil
}

// EquipmentAction is the kind of equipment transaction
type EquipmentAction string

const (
	EquipmentCheckOut   EquipmentAction = "check_out"
	EquipmentCheckIn    EquipmentAction = "check_in"
	EquipmentInspection EquipmentAction = "inspection"
)

// EquipmentTransaction records equipment moving in or out of use on a site
type EquipmentTransaction struct {
	ID          string          `json:"id"`
	UserID      string          `json:"userId"`
	ProjectID   string          `json:"projectId"`
	EquipmentID string          `json:"equipmentId"`
	Action      EquipmentAction `json:"action"`
	HoursUsed   float64         `json:"hoursUsed,omitempty"`
	Notes       string          `json:"notes,omitempty"`
	RecordedAt  time.Time       `json:"recordedAt"`
}

// NewEquipmentTransaction creates an EquipmentTransaction with validation
func NewEquipmentTransaction(userID, projectID, equipmentID string, action EquipmentAction, hoursUsed float64, notes string) (*EquipmentTransaction, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, ErrEmptyUserID
	}
	if strings.TrimSpace(projectID) == "" {
		return nil, ErrEmptyProjectID
	}
	if strings.TrimSpace(equipmentID) == "" {
		return nil, ErrEmptyEquipmentID
	}
	switch action {
	case EquipmentCheckOut, EquipmentCheckIn, EquipmentInspection:
	default:
		return nil, ErrInvalidAction
	}

	return &EquipmentTransaction{
		ID:          uuid.New().String(),
		UserID:      userID,
		ProjectID:   projectID,
		EquipmentID: equipmentID,
		Action:      action,
		HoursUsed:   hoursUsed,
		Notes:       notes,
		RecordedAt:  time.Now().UTC(),
	}, nil
}

// MaterialDelivery records materials received at a site
type MaterialDelivery struct {
	ID         string    `json:"id"`
	UserID     string    `json:"userId"`
	ProjectID  string    `json:"projectId"`
	Supplier   string    `json:"supplier,omitempty"`
	Material   string    `json:"material"`
	Quantity   float64   `json:"quantity"`
	Unit       string    `json:"unit,omitempty"`
	ReceivedBy string    `json:"receivedBy,omitempty"`
	ReceivedAt time.Time `json:"receivedAt"`
}

// NewMaterialDelivery creates a MaterialDelivery with validation
func NewMaterialDelivery(userID, projectID, supplier, material string, quantity float64, unit, receivedBy string) (*MaterialDelivery, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, ErrEmptyUserID
	}
	if strings.TrimSpace(projectID) == "" {
		return nil, ErrEmptyProjectID
	}
	if strings.TrimSpace(material) == "" {
		return nil, ErrEmptyMaterial
	}
	if quantity <= 0 {
		return nil, ErrInvalidQuantity
	}

	return &MaterialDelivery{
		ID:         uuid.New().String(),
		UserID:     userID,
		ProjectID:  projectID,
		Supplier:   supplier,
		Material:   material,
		Quantity:   quantity,
		Unit:       unit,
		ReceivedBy: receivedBy,
		ReceivedAt: time.Now().UTC(),
	}, nil
}
