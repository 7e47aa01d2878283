package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"laundrylink-backend/internal/analytics"
	"laundrylink-backend/internal/listing"
	"laundrylink-backend/internal/model"
	"laundrylink-backend/internal/notification"
	"laundrylink-backend/internal/parse"
	"laundrylink-backend/internal/store"
)

// ListBookings returns the caller's bookings with the dashboard summary.
func (h *Handler) ListBookings(c *gin.Context) {
	bookings, err := h.store.ListUserBookings(c.Request.Context(), h.identity(c).UserID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"bookings": bookings,
		"grouped":  analytics.GroupByDate(bookings),
		"summary":  analytics.Summarize(bookings),
	})
}

type createBookingRequest struct {
	MachineID     string `json:"machine_id" binding:"required"`
	BookingDate   string `json:"booking_date" binding:"required"`
	TimeSlot      string `json:"time_slot" binding:"required"`
	ServiceType   string `json:"service_type" binding:"required"`
	PayFromWallet bool   `json:"pay_from_wallet"`
}

// CreateBooking reserves a slot on a machine for the caller.
func (h *Handler) CreateBooking(c *gin.Context) {
	ctx := c.Request.Context()

	var req createBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	slot, ok := h.lookupSlot(req.TimeSlot)
	if !ok {
		badRequest(c, fmt.Sprintf("unknown time slot %q", req.TimeSlot))
		return
	}
	start, _, err := parse.SlotBounds(req.BookingDate, slot, h.loc)
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	if !start.After(h.now()) {
		badRequest(c, "cannot book a slot that has already started")
		return
	}

	svc, err := h.store.GetServiceByName(ctx, req.ServiceType)
	if errors.Is(err, store.ErrNotFound) {
		badRequest(c, fmt.Sprintf("unknown service %q", req.ServiceType))
		return
	}
	if err != nil {
		h.respondError(c, err)
		return
	}

	cost := svc.Price
	booking := &model.Booking{
		UserID:      h.identity(c).UserID,
		BookingDate: req.BookingDate,
		TimeSlot:    slot,
		ServiceType: svc.Name,
		MachineID:   req.MachineID,
		Cost:        &cost,
	}
	if err := h.store.CreateBooking(ctx, booking, req.PayFromWallet); err != nil {
		h.respondError(c, err)
		return
	}

	h.notifier.Notify(notification.Job{
		UserID:  booking.UserID,
		Title:   "Booking confirmed",
		Message: fmt.Sprintf("Your %s on %s at %s is booked.", booking.ServiceType, booking.BookingDate, booking.TimeSlot),
		Type:    model.NotifyBookingCreated,
	})
	c.JSON(http.StatusCreated, booking)
}

// CancelBooking cancels one of the caller's upcoming bookings.
func (h *Handler) CancelBooking(c *gin.Context) {
	id := h.identity(c)

	booking, err := h.store.CancelBooking(c.Request.Context(), c.Param("id"), id.UserID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	h.notifier.Notify(notification.Job{
		UserID:  id.UserID,
		Title:   "Booking cancelled",
		Message: fmt.Sprintf("Your booking for %s at %s has been cancelled.", booking.BookingDate, booking.TimeSlot),
		Type:    model.NotifyBookingCancelled,
	})
	c.JSON(http.StatusOK, booking)
}

// AdminBookings serves the filterable admin bookings table.
func (h *Handler) AdminBookings(c *gin.Context) {
	ctx := c.Request.Context()

	var q listing.Query
	if err := c.ShouldBindQuery(&q); err != nil {
		badRequest(c, err.Error())
		return
	}
	if q.SortField != "" && !listing.ValidSortField(q.SortField) {
		badRequest(c, fmt.Sprintf("cannot sort by %q", q.SortField))
		return
	}

	bookings, err := h.store.ListAllBookings(ctx)
	if err != nil {
		h.respondError(c, err)
		return
	}
	profiles, err := h.store.ListProfiles(ctx)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, listing.Apply(listing.Join(bookings, profiles), q))
}

// lookupSlot resolves a requested label to the configured slot it denotes.
func (h *Handler) lookupSlot(raw string) (string, bool) {
	want, err := parse.ParseSlot(raw)
	if err != nil {
		return "", false
	}
	for _, label := range h.slots {
		s, err := parse.ParseSlot(label)
		if err == nil && s == want {
			return label, true
		}
	}
	return "", false
}
