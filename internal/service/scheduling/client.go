// Package scheduling defines the contract with the external appointment
// booking service.
package scheduling

import (
	"context"
	"errors"
)

// ErrUnavailable marks a booking attempt that failed for transport or
// provider reasons. The turn may be retried.
var ErrUnavailable = errors.New("scheduling service unavailable")

// Error codes returned in BookingResult.ErrorCode.
const (
	CodeDoubleBooking = "DOUBLE_BOOKING"
	CodePastDate      = "PAST_DATE"
	CodeValidation    = "VALIDATION_ERROR"
	CodeConfigMissing = "CONFIG_MISSING"
	CodeAPIError      = "API_ERROR"
)

// BookingRequest describes the slot and invitee to book.
type BookingRequest struct {
	Name      string `json:"name"`
	Email     string `json:"email"`
	Date      string `json:"date"` // YYYY-MM-DD
	Time      string `json:"time"` // HH:MM
	Timezone  string `json:"timezone"`
	Phone     string `json:"phone,omitempty"`
	Company   string `json:"company,omitempty"`
	Notes     string `json:"notes,omitempty"`
	EventType string `json:"eventType,omitempty"`
	Language  string `json:"language,omitempty"`
}

// BookingResult is the outcome of a booking attempt.
type BookingResult struct {
	Success         bool   `json:"success"`
	EventURI        string `json:"eventUri,omitempty"`
	InviteeURI      string `json:"inviteeUri,omitempty"`
	StartTime       string `json:"startTime,omitempty"`
	EndTime         string `json:"endTime,omitempty"`
	ConfirmationURL string `json:"confirmationUrl,omitempty"`
	ErrorCode       string `json:"errorCode,omitempty"`
	ErrorMessage    string `json:"errorMessage,omitempty"`
}

// SlotRejected reports whether the caller should simply pick another slot.
func (r BookingResult) SlotRejected() bool {
	switch r.ErrorCode {
	case CodeDoubleBooking, CodePastDate, CodeValidation:
		return true
	}
	return false
}

// Client books appointments. Slot-level rejections come back as a result
// with an error code; an error return means the service could not be used.
type Client interface {
	BookAppointment(ctx context.Context, req BookingRequest) (BookingResult, error)
}
