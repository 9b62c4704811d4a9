package sandboxRepo

import (
	"errors"
	"testing"
	"time"

	"flexify/models"
)

func TestAuthenticate(t *testing.T) {
	repo := NewMemoryRepository()
	if err := Seed(repo); err != nil {
		t.Fatal(err)
	}

	u, err := repo.Authenticate(" User@Flexify.test ", SeedPassword)
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if u.ID != SeedUserID || u.Role != models.RoleUser {
		t.Fatalf("user = %+v", u)
	}
	if _, err := repo.Authenticate("user@flexify.test", "nope"); err == nil {
		t.Fatal("wrong password accepted")
	}
	if _, err := repo.Authenticate("ghost@flexify.test", SeedPassword); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	if _, err := repo.CreateAccount(models.User{Email: "USER@flexify.test"}, "x"); !errors.Is(err, ErrDuplicateUser) {
		t.Fatalf("err = %v, want ErrDuplicateUser", err)
	}
}

func TestCreateBookingIdempotency(t *testing.T) {
	repo := NewMemoryRepository()

	first, created := repo.CreateBooking(models.Booking{UserID: "u1", ProviderID: "p1"}, "key-1")
	if !created || first.ID == "" {
		t.Fatalf("first = %+v, created = %v", first, created)
	}
	again, created := repo.CreateBooking(models.Booking{UserID: "u1", ProviderID: "p2"}, "key-1")
	if created || again.ID != first.ID || again.ProviderID != "p1" {
		t.Fatalf("again = %+v, created = %v", again, created)
	}
	if _, created := repo.CreateBooking(models.Booking{UserID: "u1", ProviderID: "p1"}, ""); !created {
		t.Fatal("bookings without a key are never deduplicated")
	}
	if got := repo.BookingsByUser("u1"); len(got) != 2 {
		t.Fatalf("BookingsByUser = %d, want 2", len(got))
	}
}

func TestUpdateBookingKeepsStateOnError(t *testing.T) {
	repo := NewMemoryRepository()
	b, _ := repo.CreateBooking(models.Booking{Status: models.StatusPending}, "")

	boom := errors.New("boom")
	if _, err := repo.UpdateBooking(b.ID, func(b *models.Booking) error {
		b.Status = models.StatusConfirmed
		return boom
	}); !errors.Is(err, boom) {
		t.Fatalf("err = %v", err)
	}
	got, _ := repo.GetBooking(b.ID)
	if got.Status != models.StatusPending {
		t.Fatalf("status = %s, want pending", got.Status)
	}
	if _, err := repo.UpdateBooking("missing", func(*models.Booking) error { return nil }); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestBookingsNewestFirst(t *testing.T) {
	repo := NewMemoryRepository()
	base := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	repo.CreateBooking(models.Booking{ID: "old", ProviderID: "p", CreatedAt: base}, "")
	repo.CreateBooking(models.Booking{ID: "new", ProviderID: "p", CreatedAt: base.Add(time.Hour)}, "")

	got := repo.BookingsByProvider("p")
	if len(got) != 2 || got[0].ID != "new" || got[1].ID != "old" {
		t.Fatalf("order = %+v", got)
	}
}

func TestListProviders(t *testing.T) {
	repo := NewMemoryRepository()
	if err := Seed(repo); err != nil {
		t.Fatal(err)
	}
	all := repo.ListProviders("plumber", false)
	verified := repo.ListProviders("plumber", true)
	if len(all) != 3 || len(verified) != 2 {
		t.Fatalf("plumbers = %d, verified = %d", len(all), len(verified))
	}
	if _, err := repo.GetProvider(SeedProviderID); err != nil {
		t.Fatal(err)
	}
}

func TestBlockedAccountCannotAuthenticate(t *testing.T) {
	repo := NewMemoryRepository()
	if err := Seed(repo); err != nil {
		t.Fatal(err)
	}

	u, err := repo.SetBlocked(SeedUserID, true)
	if err != nil || !u.Blocked {
		t.Fatalf("SetBlocked = %+v, %v", u, err)
	}
	if _, err := repo.Authenticate("user@flexify.test", SeedPassword); !errors.Is(err, ErrBlocked) {
		t.Fatalf("err = %v, want ErrBlocked", err)
	}
	if _, err := repo.SetBlocked(SeedUserID, false); err != nil {
		t.Fatal(err)
	}
	if _, err := repo.Authenticate("user@flexify.test", SeedPassword); err != nil {
		t.Fatalf("unblocked account rejected: %v", err)
	}
	if _, err := repo.SetBlocked("ghost", true); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}

	if got := repo.ListAccounts(models.RoleProvider); len(got) != 1 || got[0].ID != SeedProviderID {
		t.Fatalf("providers = %+v", got)
	}
	if got := repo.ListAccounts(""); len(got) != 3 {
		t.Fatalf("accounts = %d, want 3", len(got))
	}
}

func TestUpdateProviderKeepsStateOnError(t *testing.T) {
	repo := NewMemoryRepository()
	if err := Seed(repo); err != nil {
		t.Fatal(err)
	}

	boom := errors.New("boom")
	if _, err := repo.UpdateProvider("provider-5", func(p *models.ProviderCandidate) error {
		p.Verified = true
		return boom
	}); !errors.Is(err, boom) {
		t.Fatalf("err = %v", err)
	}
	if p, _ := repo.GetProvider("provider-5"); p.Verified {
		t.Fatal("failed update was stored")
	}

	p, err := repo.UpdateProvider("provider-5", func(p *models.ProviderCandidate) error {
		p.Verified = true
		p.VerificationStatus = models.VerificationVerified
		return nil
	})
	if err != nil || !p.Verified {
		t.Fatalf("UpdateProvider = %+v, %v", p, err)
	}
	if got := repo.ListProviders("plumber", true); len(got) != 3 {
		t.Fatalf("verified plumbers = %d, want 3", len(got))
	}
}
