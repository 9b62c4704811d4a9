package sandboxRepo

import (
	"fmt"

	"flexify/models"
)

// SeedPassword is the password of every seeded account.
const SeedPassword = "password123"

// Seeded account ids.
const (
	SeedUserID     = "user-1"
	SeedProviderID = "provider-1"
	SeedAdminID    = "admin-1"
)

type seedProvider struct {
	id, name, category string
	rating, trust      float64
	completed          int
	cancelled          int
	lat, lng           float64
	verified           bool
}

// Providers around central Nairobi.
var seedProviders = []seedProvider{
	{SeedProviderID, "Amina Wanjiru", "plumber", 4.8, 92, 40, 2, -1.2860, 36.8180, true},
	{"provider-2", "Brian Otieno", "plumber", 4.2, 75, 18, 4, -1.3000, 36.8000, true},
	{"provider-3", "Cynthia Njeri", "cleaner", 4.9, 0.95, 60, 1, -1.2700, 36.8100, true},
	{"provider-4", "David Kamau", "electrician", 3.9, 60, 5, 5, -1.2500, 36.8600, true},
	{"provider-5", "Esther Achieng", "plumber", 4.5, 88, 0, 0, -1.2900, 36.8250, false},
	{"provider-6", "Felix Mutua", "cleaner", 4.0, 70, 12, 3, -1.3100, 36.7900, true},
	{"provider-7", "Grace Chebet", "mechanic", 4.7, 85, 25, 0, -1.2800, 36.8200, true},
}

// Seed loads demo accounts and providers. The provider account shares its id
// with the first provider so bookings made against it show up on its
// dashboard.
func Seed(repo Repository) error {
	accounts := []models.User{
		{ID: SeedUserID, Name: "Demo User", Email: "user@flexify.test", Phone: "+254700000001", Role: models.RoleUser},
		{ID: SeedProviderID, Name: "Amina Wanjiru", Email: "provider@flexify.test", Phone: "+254700000002", Role: models.RoleProvider},
		{ID: SeedAdminID, Name: "Demo Admin", Email: "admin@flexify.test", Role: models.RoleAdmin},
	}
	for _, u := range accounts {
		if _, err := repo.CreateAccount(u, SeedPassword); err != nil {
			return fmt.Errorf("seeding account %s: %w", u.Email, err)
		}
	}
	for _, p := range seedProviders {
		status := models.VerificationPending
		if p.verified {
			status = models.VerificationVerified
		}
		repo.UpsertProvider(models.ProviderCandidate{
			ID:                 p.id,
			Name:               p.name,
			Category:           p.category,
			Rating:             p.rating,
			TrustScore:         p.trust,
			CompletedBookings:  p.completed,
			CancelledBookings:  p.cancelled,
			Location:           models.Coordinates{Lat: p.lat, Lng: p.lng}.Point(),
			Verified:           p.verified,
			VerificationStatus: status,
			Languages:          []string{"en", "sw"},
		})
	}
	return nil
}
