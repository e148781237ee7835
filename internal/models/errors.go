package models

// DomainError represents a user-correctable domain rule violation
type DomainError struct {
	Message string
}

func (e DomainError) Error() string {
	return e.Message
}

var (
	ErrLocationRequired       = DomainError{"a GPS fix is required to start tracking"}
	ErrDuplicateActiveEntry   = DomainError{"an active time entry already exists for this user"}
	ErrInvalidStateTransition = DomainError{"operation not valid in the current tracking state"}
	ErrInvalidCoordinates     = DomainError{"coordinates outside valid latitude/longitude range"}
	ErrEmptyUserID            = DomainError{"user id cannot be empty"}
	ErrEmptyProjectID         = DomainError{"project id cannot be empty"}
	ErrEndBeforeStart         = DomainError{"end time cannot precede start time"}
	ErrNegativeBreak          = DomainError{"break duration cannot be negative"}
	ErrEmptyIdempotencyID     = DomainError{"idempotency id cannot be empty"}
	ErrUnknownEntityKind      = DomainError{"unknown entity kind"}
	ErrEmptyPayload           = DomainError{"mutation payload cannot be empty"}
	ErrEmptyDescription       = DomainError{"description cannot be empty"}
	ErrEmptyEquipmentID       = DomainError{"equipment id cannot be empty"}
	ErrInvalidAction          = DomainError{"equipment action not recognized"}
	ErrInvalidQuantity        = DomainError{"quantity must be positive"}
	ErrEmptyMaterial          = DomainError{"material name cannot be empty"}
	ErrMutationNotFound       = DomainError{"pending mutation not found"}
	ErrNotDeadLettered        = DomainError{"mutation is not dead-lettered"}
)
