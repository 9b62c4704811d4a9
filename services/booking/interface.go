package booking

import (
	"context"

	"flexify/models"
)

// Searcher finds candidate providers around a point.
type Searcher interface {
	Search(ctx context.Context, q SearchQuery) ([]models.ProviderCandidate, error)
}

// Geocoder resolves a free-text address.
type Geocoder interface {
	Geocode(ctx context.Context, address string) (models.Coordinates, string, error)
}

// ReminderScheduler queues a reminder for a created booking.
type ReminderScheduler interface {
	ScheduleReminder(ctx context.Context, p models.ReminderPayload) error
}
