package admin

import (
	"context"

	"flexify/models"
)

// AdminService is the moderation surface available to admin accounts.
type AdminService interface {
	Users(ctx context.Context) ([]models.User, error)
	SetUserBlocked(ctx context.Context, userID string, blocked bool) error
	Providers(ctx context.Context) ([]models.ProviderCandidate, error)
	PendingProviders(ctx context.Context) ([]models.ProviderCandidate, error)
	VerifyProvider(ctx context.Context, providerID string) error
	RejectProvider(ctx context.Context, providerID, reason string) error
	Bookings(ctx context.Context) ([]models.Booking, error)
	Overview(ctx context.Context) (*Overview, error)
}

// Overview is the admin dashboard summary.
type Overview struct {
	TotalUsers       int                        `json:"totalUsers"`
	TotalProviders   int                        `json:"totalProviders"`
	TotalBookings    int                        `json:"totalBookings"`
	PendingProviders []models.ProviderCandidate `json:"pendingProviders"`
}
