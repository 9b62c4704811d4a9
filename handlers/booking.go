package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	sandboxRepo "flexify/database/repository/sandbox"
	"flexify/models"
	"flexify/services/booking"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// IdempotencyHeader deduplicates booking creation.
const IdempotencyHeader = "X-Idempotency-Key"

func categoryName(key string) string {
	if cat, ok := booking.LookupCategory(key); ok {
		return cat.Name
	}
	return key
}

// CreateBooking handles POST /bookings/create.
func (hb *HandlerBundle) CreateBooking(c *gin.Context) {
	logger := hb.getLogger(c)
	userID, _ := caller(c)

	var req models.BookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Error("Invalid booking request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid booking request"})
		return
	}
	if msg := validateBookingRequest(req); msg != "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": msg})
		return
	}
	if _, err := hb.Repo.GetProvider(req.WorkerID); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Selected worker is no longer available"})
		return
	}

	b, created := hb.Repo.CreateBooking(models.Booking{
		UserID:          userID,
		ProviderID:      req.WorkerID,
		ServiceCategory: req.ServiceCategory,
		ServiceType:     req.ServiceType,
		Date:            req.Date,
		TimeSlot:        req.TimeSlot,
		Urgency:         req.Urgency,
		Status:          models.StatusPending,
		PaymentStatus:   "pending",
		Amount:          req.TotalPrice,
	}, c.GetHeader(IdempotencyHeader))

	status := http.StatusOK
	if created {
		status = http.StatusCreated
		logger.Info("Booking created",
			zap.String("bookingID", b.ID), zap.String("userID", userID), zap.String("providerID", b.ProviderID))
		hb.Hub.PublishToProvider(b.ProviderID, models.EventNewBooking, gin.H{
			"message":   fmt.Sprintf("New booking request: %s on %s", categoryName(b.ServiceCategory), b.Date),
			"bookingId": b.ID,
		})
	}
	c.JSON(status, models.BookingConfirmation{BookingID: b.ID, Status: b.Status, Message: "Booking created"})
}

func validateBookingRequest(req models.BookingRequest) string {
	switch {
	case strings.TrimSpace(req.WorkerID) == "":
		return "Please select a worker"
	case strings.TrimSpace(req.ServiceCategory) == "":
		return "Service category is required"
	case strings.TrimSpace(req.Location) == "" || !req.Coordinates.Valid():
		return "A valid location is required"
	case req.Date == "" || req.TimeSlot == "":
		return "Date and time slot are required"
	case req.TotalPrice <= 0:
		return "Total price must be positive"
	}
	return ""
}

// MyBookings handles GET /bookings/me.
func (hb *HandlerBundle) MyBookings(c *gin.Context) {
	userID, _ := caller(c)
	c.JSON(http.StatusOK, gin.H{"bookings": hb.Repo.BookingsByUser(userID)})
}

// ProviderBookings handles GET /bookings/provider/me.
func (hb *HandlerBundle) ProviderBookings(c *gin.Context) {
	providerID, _ := caller(c)
	c.JSON(http.StatusOK, gin.H{"bookings": hb.Repo.BookingsByProvider(providerID)})
}

// participant reports whether the caller may see b.
func participant(b *models.Booking, id string, role models.Role) bool {
	return role == models.RoleAdmin || b.UserID == id || b.ProviderID == id
}

// GetBooking handles GET /bookings/:id. Bookings of other accounts are
// reported as missing.
func (hb *HandlerBundle) GetBooking(c *gin.Context) {
	id, role := caller(c)
	b, err := hb.Repo.GetBooking(c.Param("id"))
	if err != nil || !participant(b, id, role) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Booking not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"booking": b})
}

var (
	errForbidden  = errors.New("not allowed")
	errTransition = errors.New("illegal transition")
)

type transitionError struct {
	from, to string
}

func (e *transitionError) Error() string {
	return fmt.Sprintf("Cannot move booking from %s to %s", e.from, e.to)
}

func (e *transitionError) Unwrap() error { return errTransition }

type paymentError struct {
	status, paymentStatus string
}

func (e *paymentError) Error() string {
	if e.paymentStatus == booking.PaymentStatusPaid {
		return "Payment was already accepted"
	}
	return fmt.Sprintf("Payment can only be accepted for completed bookings, this one is %s", e.status)
}

func (hb *HandlerBundle) writeUpdateError(c *gin.Context, err error) {
	var te *transitionError
	var pe *paymentError
	switch {
	case errors.Is(err, sandboxRepo.ErrNotFound), errors.Is(err, errForbidden):
		c.JSON(http.StatusNotFound, gin.H{"error": "Booking not found"})
	case errors.As(err, &te):
		c.JSON(http.StatusConflict, gin.H{"error": te.Error()})
	case errors.As(err, &pe):
		c.JSON(http.StatusConflict, gin.H{"error": pe.Error()})
	default:
		hb.getLogger(c).Error("Booking update failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update booking"})
	}
}

// UpdateBookingStatus handles PUT /bookings/:id/status for the assigned
// provider (or an admin).
func (hb *HandlerBundle) UpdateBookingStatus(c *gin.Context) {
	logger := hb.getLogger(c)
	id, role := caller(c)

	var req struct {
		Status string `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Status is required"})
		return
	}
	if req.Status == models.StatusCancelled {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Use the cancel endpoint to cancel a booking"})
		return
	}

	b, err := hb.Repo.UpdateBooking(c.Param("id"), func(b *models.Booking) error {
		if role != models.RoleAdmin && b.ProviderID != id {
			return errForbidden
		}
		if !booking.CanTransition(b.Status, req.Status) {
			return &transitionError{from: b.Status, to: req.Status}
		}
		b.Status = req.Status
		if req.Status == models.StatusCompleted {
			b.CompletedAt = time.Now()
		}
		return nil
	})
	if err != nil {
		hb.writeUpdateError(c, err)
		return
	}

	logger.Info("Booking status updated", zap.String("bookingID", b.ID), zap.String("status", b.Status))
	hb.Hub.PublishToUser(b.UserID, models.EventBookingStatusUpdate, gin.H{
		"message":   fmt.Sprintf("Your %s booking is now %s", categoryName(b.ServiceCategory), b.Status),
		"bookingId": b.ID,
		"status":    b.Status,
	})
	c.JSON(http.StatusOK, gin.H{"booking": b})
}

// AcceptPayment handles PATCH /bookings/:id/payment-accepted. The assigned
// provider confirms payment for a completed booking, which settles the
// earnings split.
func (hb *HandlerBundle) AcceptPayment(c *gin.Context) {
	logger := hb.getLogger(c)
	id, _ := caller(c)

	b, err := hb.Repo.UpdateBooking(c.Param("id"), func(b *models.Booking) error {
		if b.ProviderID != id {
			return errForbidden
		}
		if b.Status != models.StatusCompleted || b.PaymentStatus == booking.PaymentStatusPaid {
			return &paymentError{status: b.Status, paymentStatus: b.PaymentStatus}
		}
		b.PaymentStatus = booking.PaymentStatusPaid
		b.PaymentAcceptedAt = time.Now()
		if b.FinalAmount == 0 {
			b.FinalAmount = b.Amount
		}
		e := booking.DeriveEarnings(*b)
		b.ProviderEarnings = e.ProviderEarnings
		b.PlatformCommission = e.PlatformCommission
		return nil
	})
	if err != nil {
		hb.writeUpdateError(c, err)
		return
	}

	logger.Info("Payment accepted", zap.String("bookingID", b.ID), zap.Float64("amount", b.FinalAmount))
	hb.Hub.PublishToUser(b.UserID, models.EventPaymentConfirmed, gin.H{
		"message":   fmt.Sprintf("Payment of KES %.0f confirmed for your %s booking", b.FinalAmount, categoryName(b.ServiceCategory)),
		"bookingId": b.ID,
	})
	hb.Hub.PublishToProvider(b.ProviderID, models.EventPaymentReceived, gin.H{
		"message":   fmt.Sprintf("Payment received: KES %.0f", b.ProviderEarnings),
		"bookingId": b.ID,
	})
	c.JSON(http.StatusOK, gin.H{"booking": b})
}

// CancelBooking handles PATCH /bookings/:id/cancel. Either party may cancel;
// the other one is notified.
func (hb *HandlerBundle) CancelBooking(c *gin.Context) {
	logger := hb.getLogger(c)
	id, role := caller(c)

	var req struct {
		Reason string `json:"reason"`
	}
	// The body is optional.
	_ = c.ShouldBindJSON(&req)

	b, err := hb.Repo.UpdateBooking(c.Param("id"), func(b *models.Booking) error {
		if !participant(b, id, role) {
			return errForbidden
		}
		if !booking.CanTransition(b.Status, models.StatusCancelled) {
			return &transitionError{from: b.Status, to: models.StatusCancelled}
		}
		b.Status = models.StatusCancelled
		return nil
	})
	if err != nil {
		hb.writeUpdateError(c, err)
		return
	}

	logger.Info("Booking cancelled", zap.String("bookingID", b.ID), zap.String("by", id), zap.String("reason", req.Reason))
	data := gin.H{
		"message":   fmt.Sprintf("Booking for %s on %s was cancelled", categoryName(b.ServiceCategory), b.Date),
		"bookingId": b.ID,
		"status":    b.Status,
	}
	if b.UserID != id {
		hb.Hub.PublishToUser(b.UserID, models.EventBookingStatusUpdate, data)
	}
	if b.ProviderID != id {
		hb.Hub.PublishToProvider(b.ProviderID, models.EventBookingStatusUpdate, data)
	}
	c.JSON(http.StatusOK, gin.H{"booking": b})
}
