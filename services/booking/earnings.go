package booking

import (
	"math"

	"flexify/models"
)

// Revenue split used when the server has not provided the figures.
const (
	ProviderShare = 0.9
	PlatformShare = 0.1
)

// PaymentStatusPaid marks a settled booking.
const PaymentStatusPaid = "paid"

// Earnings is the split of one booking's amount.
type Earnings struct {
	Amount             float64 `json:"amount"`
	ProviderEarnings   float64 `json:"providerEarnings"`
	PlatformCommission float64 `json:"platformCommission"`
}

// DeriveEarnings splits the booking amount. Server-provided figures win;
// missing ones are derived from finalAmount (else amount) and rounded.
func DeriveEarnings(b models.Booking) Earnings {
	amount := b.FinalAmount
	if amount == 0 {
		amount = b.Amount
	}
	e := Earnings{
		Amount:             amount,
		ProviderEarnings:   b.ProviderEarnings,
		PlatformCommission: b.PlatformCommission,
	}
	if e.ProviderEarnings == 0 {
		e.ProviderEarnings = math.Round(amount * ProviderShare)
	}
	if e.PlatformCommission == 0 {
		e.PlatformCommission = math.Round(amount * PlatformShare)
	}
	return e
}

// EarningsSummary totals a provider's paid bookings.
type EarningsSummary struct {
	TotalEarnings    float64    `json:"totalEarnings"`
	PlatformFees     float64    `json:"platformFees"`
	AvailableBalance float64    `json:"availableBalance"`
	PaidBookings     int        `json:"paidBookings"`
	Payments         []Earnings `json:"payments"`
}

// SummarizeEarnings totals paid bookings. Totals kept by the server on the
// provider account, when given, replace the local sums.
func SummarizeEarnings(bookings []models.Booking, account *models.ProviderAccount) EarningsSummary {
	var s EarningsSummary
	for _, b := range bookings {
		if b.PaymentStatus != PaymentStatusPaid {
			continue
		}
		e := DeriveEarnings(b)
		s.PaidBookings++
		s.TotalEarnings += e.Amount
		s.PlatformFees += e.PlatformCommission
		s.AvailableBalance += e.ProviderEarnings
		s.Payments = append(s.Payments, e)
	}
	if account != nil {
		if account.TotalEarnings > 0 {
			s.TotalEarnings = account.TotalEarnings
		}
		if account.PlatformFees > 0 {
			s.PlatformFees = account.PlatformFees
		}
		if account.AvailableBalance > 0 {
			s.AvailableBalance = account.AvailableBalance
		}
	}
	return s
}
