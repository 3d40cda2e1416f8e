package events

import (
	"time"

	"github.com/spec-kit/carbon-ledger/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTripRecorded         EventType = "trip.recorded"
	EventTripVerified         EventType = "trip.verified"
	EventTripRejected         EventType = "trip.rejected"
	EventTransferInitiated    EventType = "transfer.initiated"
	EventTransferCompleted    EventType = "transfer.completed"
	EventTransferRejected     EventType = "transfer.rejected"
	EventTransferCancelled    EventType = "transfer.cancelled"
	EventOrganizationDecided  EventType = "organization.decided"
	EventOrganizationEmployee EventType = "organization.employee_added"
)

// AllEventTypes lists every type a subscriber may register for.
var AllEventTypes = []EventType{
	EventTripRecorded,
	EventTripVerified,
	EventTripRejected,
	EventTransferInitiated,
	EventTransferCompleted,
	EventTransferRejected,
	EventTransferCancelled,
	EventOrganizationDecided,
	EventOrganizationEmployee,
}

// Event represents a domain event emitted by services.
type Event struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	SubjectID string    `json:"subject_id"`
	ActorID   string    `json:"actor_id"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload"`
}

// TripPayload describes a trip state change.
type TripPayload struct {
	UserID         string               `json:"user_id"`
	OrganizationID string               `json:"organization_id"`
	TransportMode  domain.TransportMode `json:"transport_mode"`
	Credits        string               `json:"credits"`
	Status         domain.TripStatus    `json:"status"`
}

// TransferPayload describes a credit transfer state change.
type TransferPayload struct {
	FromOrganizationID string                   `json:"from_organization_id"`
	ToOrganizationID   string                   `json:"to_organization_id"`
	Credits            int64                    `json:"credits"`
	TotalAmount        string                   `json:"total_amount"`
	OldStatus          domain.TransactionStatus `json:"old_status,omitempty"`
	NewStatus          domain.TransactionStatus `json:"new_status"`
	Comment            string                   `json:"comment,omitempty"`
}

// OrganizationPayload describes an organization lifecycle change.
type OrganizationPayload struct {
	Name       string                `json:"name"`
	Status     domain.ApprovalStatus `json:"status"`
	EmployeeID string                `json:"employee_id,omitempty"`
}
