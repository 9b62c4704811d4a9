package models

import "time"

// Duration is the engagement length option.
type Duration string

const (
	DurationHourly  Duration = "hourly"
	DurationDaily   Duration = "daily"
	DurationWeekly  Duration = "weekly"
	DurationMonthly Duration = "monthly"
)

// Urgency is the expedite level of a request.
type Urgency string

const (
	UrgencyNormal    Urgency = "normal"
	UrgencyUrgent    Urgency = "urgent"
	UrgencyEmergency Urgency = "emergency"
)

// BookingDraft accumulates wizard input. Pricing fields are derived and are
// rewritten together whenever a price input changes.
type BookingDraft struct {
	ID                  string             `json:"id"`
	ServiceCategory     string             `json:"serviceCategory"`
	ServiceType         string             `json:"serviceType"`
	Duration            Duration           `json:"duration"`
	DurationValue       int                `json:"durationValue"`
	Location            string             `json:"location"`
	Coordinates         *Coordinates       `json:"coordinates,omitempty"`
	Date                string             `json:"date"`
	TimeSlot            string             `json:"timeSlot"`
	Urgency             Urgency            `json:"urgency"`
	SpecialRequirements string             `json:"specialRequirements,omitempty"`
	SkillTags           []string           `json:"skillTags,omitempty"`
	BasePrice           float64            `json:"basePrice"`
	UrgencyExtra        float64            `json:"urgencyExtra"`
	TotalPrice          float64            `json:"totalPrice"`
	SelectedWorker      *ProviderCandidate `json:"selectedWorker,omitempty"`
}

// BookingRequest is the POST /bookings/create body.
type BookingRequest struct {
	WorkerID            string      `json:"workerId"`
	ServiceType         string      `json:"serviceType"`
	ServiceCategory     string      `json:"serviceCategory"`
	Duration            Duration    `json:"duration"`
	DurationValue       int         `json:"durationValue"`
	Location            string      `json:"location"`
	Coordinates         Coordinates `json:"coordinates"`
	TimeSlot            string      `json:"timeSlot"`
	Date                string      `json:"date"`
	Urgency             Urgency     `json:"urgency"`
	SkillTags           []string    `json:"skillTags,omitempty"`
	SpecialRequirements string      `json:"specialRequirements,omitempty"`
	TotalPrice          float64     `json:"totalPrice"`
	BasePrice           float64     `json:"basePrice"`
	UrgencyExtra        float64     `json:"urgencyExtra"`
}

// BookingConfirmation is the create response.
type BookingConfirmation struct {
	BookingID string `json:"bookingId"`
	Status    string `json:"status,omitempty"`
	Message   string `json:"message,omitempty"`
}

// Booking status values as used on the wire. "confirmed" is the accepted state.
const (
	StatusPending    = "pending"
	StatusConfirmed  = "confirmed"
	StatusRejected   = "rejected"
	StatusInProgress = "in-progress"
	StatusCompleted  = "completed"
	StatusCancelled  = "cancelled"
)

// Booking is a booking record as listed by the dashboards.
type Booking struct {
	ID                 string    `json:"id"`
	UserID             string    `json:"userId"`
	ProviderID         string    `json:"providerId"`
	ServiceCategory    string    `json:"serviceCategory"`
	ServiceType        string    `json:"serviceType"`
	Date               string    `json:"date"`
	TimeSlot           string    `json:"timeSlot"`
	Urgency            Urgency   `json:"urgency"`
	Status             string    `json:"status"`
	PaymentStatus      string    `json:"paymentStatus,omitempty"`
	Amount             float64   `json:"amount,omitempty"`
	FinalAmount        float64   `json:"finalAmount,omitempty"`
	ProviderEarnings   float64   `json:"providerEarnings,omitempty"`
	PlatformCommission float64   `json:"platformCommission,omitempty"`
	CreatedAt          time.Time `json:"createdAt,omitzero"`
	CompletedAt        time.Time `json:"completedAt,omitzero"`
	PaymentAcceptedAt  time.Time `json:"paymentAcceptedAt,omitzero"`
}

// ProviderAccount carries the provider-level totals the server maintains.
type ProviderAccount struct {
	ID               string  `json:"id"`
	TotalEarnings    float64 `json:"totalEarnings"`
	AvailableBalance float64 `json:"availableBalance"`
	PlatformFees     float64 `json:"platformFees"`
}
