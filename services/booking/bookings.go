package booking

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"flexify/models"
	"flexify/services/api"
)

// transitions lists the status changes the booking lifecycle allows.
var transitions = map[string][]string{
	models.StatusPending:    {models.StatusConfirmed, models.StatusRejected, models.StatusCancelled},
	models.StatusConfirmed:  {models.StatusInProgress, models.StatusCancelled},
	models.StatusInProgress: {models.StatusCompleted},
}

// CanTransition reports whether a booking may move from one status to another.
func CanTransition(from, to string) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// BookingsClient lists bookings and changes their status.
type BookingsClient struct {
	API api.Doer
}

func NewBookingsClient(doer api.Doer) *BookingsClient {
	return &BookingsClient{API: doer}
}

// MyBookings lists the signed-in user's bookings.
func (c *BookingsClient) MyBookings(ctx context.Context) ([]models.Booking, error) {
	return c.list(ctx, "/bookings/me")
}

// ProviderBookings lists the bookings assigned to the signed-in provider.
func (c *BookingsClient) ProviderBookings(ctx context.Context) ([]models.Booking, error) {
	return c.list(ctx, "/bookings/provider/me")
}

func (c *BookingsClient) list(ctx context.Context, path string) ([]models.Booking, error) {
	var raw json.RawMessage
	if err := c.API.Send(ctx, api.Request{Method: http.MethodGet, Path: path}, &raw); err != nil {
		return nil, err
	}
	var bookings []models.Booking
	if err := api.DecodeList(raw, "bookings", &bookings); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}
	return bookings, nil
}

func (c *BookingsClient) Get(ctx context.Context, id string) (*models.Booking, error) {
	var raw json.RawMessage
	if err := c.API.Send(ctx, api.Request{Method: http.MethodGet, Path: "/bookings/" + url.PathEscape(id)}, &raw); err != nil {
		return nil, err
	}
	return decodeBooking(raw)
}

// decodeBooking accepts a bare booking or one wrapped under "booking".
func decodeBooking(raw json.RawMessage) (*models.Booking, error) {
	var wrapped struct {
		Booking *models.Booking `json:"booking"`
	}
	if err := json.Unmarshal(raw, &wrapped); err == nil && wrapped.Booking != nil {
		return wrapped.Booking, nil
	}
	var b models.Booking
	if err := json.Unmarshal(raw, &b); err != nil {
		return nil, fmt.Errorf("decoding booking: %w", err)
	}
	return &b, nil
}

// UpdateStatus moves b to status. Transitions the lifecycle does not allow
// are rejected with a TransitionError before any request is made.
func (c *BookingsClient) UpdateStatus(ctx context.Context, b models.Booking, status string) (*models.Booking, error) {
	if !CanTransition(b.Status, status) {
		return nil, &TransitionError{From: b.Status, To: status}
	}
	if status == models.StatusCancelled {
		return c.Cancel(ctx, b, "")
	}
	var raw json.RawMessage
	err := c.API.Send(ctx, api.Request{
		Method: http.MethodPut,
		Path:   "/bookings/" + url.PathEscape(b.ID) + "/status",
		Body:   map[string]string{"status": status},
	}, &raw)
	if err != nil {
		return nil, err
	}
	return updatedBooking(raw, b, status)
}

func (c *BookingsClient) Accept(ctx context.Context, b models.Booking) (*models.Booking, error) {
	return c.UpdateStatus(ctx, b, models.StatusConfirmed)
}

func (c *BookingsClient) Reject(ctx context.Context, b models.Booking) (*models.Booking, error) {
	return c.UpdateStatus(ctx, b, models.StatusRejected)
}

func (c *BookingsClient) Start(ctx context.Context, b models.Booking) (*models.Booking, error) {
	return c.UpdateStatus(ctx, b, models.StatusInProgress)
}

func (c *BookingsClient) Complete(ctx context.Context, b models.Booking) (*models.Booking, error) {
	return c.UpdateStatus(ctx, b, models.StatusCompleted)
}

// Cancel cancels b with an optional reason.
func (c *BookingsClient) Cancel(ctx context.Context, b models.Booking, reason string) (*models.Booking, error) {
	if !CanTransition(b.Status, models.StatusCancelled) {
		return nil, &TransitionError{From: b.Status, To: models.StatusCancelled}
	}
	var body any
	if reason != "" {
		body = map[string]string{"reason": reason}
	}
	var raw json.RawMessage
	err := c.API.Send(ctx, api.Request{
		Method: http.MethodPatch,
		Path:   "/bookings/" + url.PathEscape(b.ID) + "/cancel",
		Body:   body,
	}, &raw)
	if err != nil {
		return nil, err
	}
	return updatedBooking(raw, b, models.StatusCancelled)
}

// AcceptPayment records that the provider was paid for a completed booking.
// Bookings that are not completed, or already paid, fail with
// ErrPaymentNotDue before any request is made.
func (c *BookingsClient) AcceptPayment(ctx context.Context, b models.Booking) (*models.Booking, error) {
	if b.Status != models.StatusCompleted || b.PaymentStatus == PaymentStatusPaid {
		return nil, ErrPaymentNotDue
	}
	var raw json.RawMessage
	err := c.API.Send(ctx, api.Request{
		Method: http.MethodPatch,
		Path:   "/bookings/" + url.PathEscape(b.ID) + "/payment-accepted",
		Body:   map[string]string{"paymentStatus": PaymentStatusPaid},
	}, &raw)
	if err != nil {
		return nil, err
	}
	got, err := updatedBooking(raw, b, b.Status)
	if err != nil {
		return nil, err
	}
	got.PaymentStatus = PaymentStatusPaid
	return got, nil
}

// updatedBooking prefers the server's copy and falls back to b with the new
// status when the response carries none.
func updatedBooking(raw json.RawMessage, b models.Booking, status string) (*models.Booking, error) {
	if len(raw) > 0 {
		if got, err := decodeBooking(raw); err == nil && got.ID != "" {
			return got, nil
		}
	}
	b.Status = status
	return &b, nil
}
