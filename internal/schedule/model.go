package schedule

import (
	"time"

	"github.com/lib/pq"
)

// DateFormat is the wire format for calendar dates.
const DateFormat = "2006-01-02"

type AvailableDate struct {
	ID          int            `db:"id" json:"id"`
	Date        time.Time      `db:"date" json:"date"`
	TimeSlots   pq.StringArray `db:"time_slots" json:"time_slots" swaggertype:"array,string"`
	IsActive    bool           `db:"is_active" json:"is_active"`
	MaxBookings int            `db:"max_bookings" json:"max_bookings"`
	CreatedAt   time.Time      `db:"created_at" json:"created_at"`
}

func (d *AvailableDate) HasSlot(slot string) bool {
	for _, s := range d.TimeSlots {
		if s == slot {
			return true
		}
	}
	return false
}

type SlotAvailability struct {
	Date        string `json:"date"`
	TimeSlot    string `json:"time_slot"`
	MaxBookings int    `json:"max_bookings"`
	BookedCount int    `json:"booked_count"`
	Remaining   int    `json:"remaining"`
	IsFull      bool   `json:"is_full"`
}

type CreateDateRequest struct {
	Date        string   `json:"date" binding:"required"`
	TimeSlots   []string `json:"time_slots" binding:"required,min=1"`
	MaxBookings int      `json:"max_bookings" binding:"required,min=1"`
}

type UpdateDateRequest struct {
	TimeSlots   []string `json:"time_slots,omitempty"`
	MaxBookings *int     `json:"max_bookings,omitempty"`
	IsActive    *bool    `json:"is_active,omitempty"`
}

type GenerateRecurringRequest struct {
	Weekdays    []string `json:"weekdays" binding:"required,min=1"`
	StartDate   string   `json:"start_date" binding:"required"`
	Months      int      `json:"months" binding:"required,min=1"`
	TimeSlots   []string `json:"time_slots" binding:"required,min=1"`
	MaxBookings int      `json:"max_bookings" binding:"required,min=1"`
}

type GenerateRecurringResponse struct {
	Created []string `json:"created"`
	Skipped int      `json:"skipped"`
}
