package models

import "time"

// EventType names a server-pushed (or locally raised) event.
type EventType string

const (
	EventNewBooking           EventType = "new-booking"
	EventBookingStatusUpdate  EventType = "booking-status-update"
	EventPaymentConfirmed     EventType = "payment-confirmed"
	EventPaymentReceived      EventType = "payment-received"
	EventBookingAutoCancelled EventType = "booking-auto-cancelled"
	// Raised locally by the reminder worker.
	EventBookingReminder EventType = "booking-reminder"
)

// PushEvents are the event names the push channel subscribes to.
var PushEvents = []EventType{
	EventNewBooking,
	EventBookingStatusUpdate,
	EventPaymentConfirmed,
	EventPaymentReceived,
	EventBookingAutoCancelled,
}

// IsKnown reports whether t is one of the event types the client handles.
func (t EventType) IsKnown() bool {
	if t == EventBookingReminder {
		return true
	}
	for _, e := range PushEvents {
		if e == t {
			return true
		}
	}
	return false
}

// NotificationEvent is an incoming event before it enters the feed.
type NotificationEvent struct {
	Type      EventType      `json:"type"`
	Message   string         `json:"message"`
	BookingID string         `json:"bookingId,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
}

// Notification is a feed entry. ID is assigned locally and increases
// monotonically for the lifetime of the feed.
type Notification struct {
	ID        int64          `json:"id"`
	Type      EventType      `json:"type"`
	Message   string         `json:"message"`
	BookingID string         `json:"bookingId,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// ReminderPayload is the task body for booking reminders.
type ReminderPayload struct {
	BookingID string    `json:"bookingId"`
	UserID    string    `json:"userId"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	FireDate  time.Time `json:"fireDate"`
}
