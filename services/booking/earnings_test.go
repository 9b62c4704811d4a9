package booking

import (
	"testing"

	"flexify/models"
)

func TestDeriveEarnings(t *testing.T) {
	tests := []struct {
		name string
		b    models.Booking
		want Earnings
	}{
		{"derived from amount", models.Booking{Amount: 450}, Earnings{Amount: 450, ProviderEarnings: 405, PlatformCommission: 45}},
		{"final amount wins", models.Booking{Amount: 300, FinalAmount: 455}, Earnings{Amount: 455, ProviderEarnings: 410, PlatformCommission: 46}},
		{"server figures win", models.Booking{Amount: 1000, ProviderEarnings: 850, PlatformCommission: 150}, Earnings{Amount: 1000, ProviderEarnings: 850, PlatformCommission: 150}},
		{"nothing paid", models.Booking{}, Earnings{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DeriveEarnings(tt.b); got != tt.want {
				t.Fatalf("DeriveEarnings = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestSummarizeEarnings(t *testing.T) {
	bookings := []models.Booking{
		{ID: "1", Amount: 100, PaymentStatus: PaymentStatusPaid},
		{ID: "2", Amount: 200, PaymentStatus: PaymentStatusPaid},
		{ID: "3", Amount: 500, PaymentStatus: "pending"},
	}

	s := SummarizeEarnings(bookings, nil)
	if s.PaidBookings != 2 || s.TotalEarnings != 300 || s.PlatformFees != 30 || s.AvailableBalance != 270 {
		t.Fatalf("summary = %+v", s)
	}
	if len(s.Payments) != 2 {
		t.Fatalf("payments = %+v", s.Payments)
	}

	s = SummarizeEarnings(bookings, &models.ProviderAccount{TotalEarnings: 320, AvailableBalance: 288, PlatformFees: 32})
	if s.TotalEarnings != 320 || s.PlatformFees != 32 || s.AvailableBalance != 288 {
		t.Fatalf("server totals ignored: %+v", s)
	}
}
