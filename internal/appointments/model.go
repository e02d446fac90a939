package appointments

import (
	"time"
)

const (
	StatusPending   = "pending"
	StatusConfirmed = "confirmed"
	StatusCancelled = "cancelled"
	StatusCompleted = "completed"
)

// Statuses lists every appointment status in lifecycle order.
var Statuses = []string{StatusPending, StatusConfirmed, StatusCancelled, StatusCompleted}

// Transitions maps a status to the statuses it may move to.
type Transitions map[string][]string

// DefaultTransitions is the appointment state machine. Cancelled and
// completed are terminal.
var DefaultTransitions = Transitions{
	StatusPending:   {StatusConfirmed, StatusCancelled},
	StatusConfirmed: {StatusCompleted, StatusCancelled},
}

func (t Transitions) Allows(from, to string) bool {
	for _, next := range t[from] {
		if next == to {
			return true
		}
	}
	return false
}

func IsKnownStatus(status string) bool {
	for _, s := range Statuses {
		if s == status {
			return true
		}
	}
	return false
}

func IsTerminal(status string) bool {
	return status == StatusCancelled || status == StatusCompleted
}

// holdsSlot reports whether an appointment in status occupies its time slot.
func holdsSlot(status string) bool {
	return status == StatusPending || status == StatusConfirmed
}

type Appointment struct {
	ID                string    `bson:"_id,omitempty" json:"id"`
	Name              string    `bson:"name" json:"name"`
	Email             string    `bson:"email" json:"email"`
	Phone             string    `bson:"phone,omitempty" json:"phone,omitempty"`
	Company           string    `bson:"company,omitempty" json:"company,omitempty"`
	Service           string    `bson:"service" json:"service"`
	Date              string    `bson:"date" json:"date"`
	TimeSlot          string    `bson:"timeSlot" json:"timeSlot"`
	Message           string    `bson:"message,omitempty" json:"message,omitempty"`
	Status            string    `bson:"status" json:"status"`
	CancellationToken string    `bson:"cancellationToken" json:"-"`
	ReminderSent      bool      `bson:"reminderSent" json:"reminderSent"`
	SlotHeld          bool      `bson:"slotHeld" json:"-"`
	CreatedAt         time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt         time.Time `bson:"updatedAt" json:"updatedAt"`
}

type CreateRequest struct {
	Name     string `json:"name" validate:"required,max=120"`
	Email    string `json:"email" validate:"required,email"`
	Phone    string `json:"phone" validate:"omitempty,phone"`
	Company  string `json:"company" validate:"omitempty,max=160"`
	Service  string `json:"service" validate:"required,max=80"`
	Date     string `json:"date" validate:"required,date"`
	TimeSlot string `json:"timeSlot" validate:"required,clock"`
	Message  string `json:"message" validate:"omitempty,max=2000"`
}

type StatusRequest struct {
	Status string `json:"status" validate:"required,oneof=pending confirmed cancelled completed"`
}

type CancelRequest struct {
	Token string `json:"token" validate:"required,hexadecimal,len=64"`
}

// Result is the outcome of a state change. Notification carries a failed
// best-effort dispatch; it never means the change itself failed.
type Result struct {
	Appointment  Appointment
	Notification error
}

const (
	ReminderSent    = "sent"
	ReminderFailed  = "failed"
	ReminderSkipped = "skipped"
)

type ReminderOutcome struct {
	AppointmentID string `json:"appointmentId"`
	Outcome       string `json:"outcome"`
	Error         string `json:"error,omitempty"`
}
