package booking

import (
	"time"

	"studiopass/internal/pass"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusCancelled Status = "cancelled"
)

type Booking struct {
	ID              int       `db:"id" json:"id"`
	Date            time.Time `db:"date" json:"date"`
	TimeSlot        string    `db:"time_slot" json:"time_slot"`
	AppointmentType string    `db:"appointment_type" json:"appointment_type"`
	Name            string    `db:"name" json:"name"`
	Email           string    `db:"email" json:"email"`
	Phone           string    `db:"phone" json:"phone"`
	Status          Status    `db:"status" json:"status"`
	UserID          *int      `db:"user_id" json:"user_id,omitempty"`
	PassID          *int      `db:"pass_id" json:"pass_id,omitempty"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
}

// Category describes one appointment type the studio offers. Categories
// that resolve externally never create a booking; pass-consuming ones
// require an authenticated client with an eligible pass.
type Category struct {
	Name          string `json:"name"`
	Label         string `json:"label"`
	NeedsCalendar bool   `json:"needs_calendar"`
	ConsumesPass  bool   `json:"consumes_pass"`
	ExternalURL   string `json:"external_url,omitempty"`
}

func Categories() []Category {
	return []Category{
		{
			Name:          "group_class",
			Label:         "Group Class",
			NeedsCalendar: true,
			ConsumesPass:  true,
		},
		{
			Name:          "intro_session",
			Label:         "Intro Session",
			NeedsCalendar: true,
			ConsumesPass:  false,
		},
		{
			Name:        "personal_training",
			Label:       "Personal Training",
			ExternalURL: "https://scheduling.example.com/personal-training",
		},
	}
}

func FindCategory(name string) (Category, bool) {
	for _, c := range Categories() {
		if c.Name == name {
			return c, true
		}
	}
	return Category{}, false
}

type BookRequest struct {
	AppointmentType string `json:"appointment_type" binding:"required"`
	Date            string `json:"date" binding:"required"`
	TimeSlot        string `json:"time_slot" binding:"required"`
	PassID          int    `json:"pass_id,omitempty"`
	Name            string `json:"name" binding:"required"`
	Email           string `json:"email" binding:"required,email"`
	Phone           string `json:"phone"`
}

type BookResponse struct {
	Booking           *Booking  `json:"booking"`
	PaidWith          string    `json:"paid_with" example:"pass"`
	PassID            *int      `json:"pass_id,omitempty"`
	RemainingSessions *int      `json:"remaining_sessions,omitempty"`
	PassType          pass.Type `json:"pass_type,omitempty"`
}

type CancelResponse struct {
	Message  string             `json:"message" example:"booking cancelled"`
	Refunded bool               `json:"refunded"`
	Refund   *pass.RefundResult `json:"refund,omitempty"`
}

type BookingWithClient struct {
	Booking
	ClientName  *string `db:"client_name" json:"client_name,omitempty"`
	ClientEmail *string `db:"client_email" json:"client_email,omitempty"`
}
