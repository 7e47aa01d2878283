package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"laundrylink-backend/internal/model"
	"laundrylink-backend/internal/parse"
)

// ListMachines returns every machine with its live status.
func (h *Handler) ListMachines(c *gin.Context) {
	machines, err := h.store.ListMachines(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, machines)
}

type slotAvailability struct {
	TimeSlot  string `json:"time_slot"`
	Available bool   `json:"available"`
}

// MachineAvailability lists the configured slots of a date and whether each
// is still free on the machine. Slots that already started are never free.
func (h *Handler) MachineAvailability(c *gin.Context) {
	ctx := c.Request.Context()

	date := c.Query("date")
	if date == "" {
		date = h.now().In(h.loc).Format(parse.DateLayout)
	}
	if _, err := parse.ParseDate(date, h.loc); err != nil {
		badRequest(c, err.Error())
		return
	}

	machine, err := h.store.GetMachine(ctx, c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}

	booked, err := h.store.ListMachineBookings(ctx, machine.ID, date)
	if err != nil {
		h.respondError(c, err)
		return
	}
	taken := make(map[string]struct{}, len(booked))
	for _, b := range booked {
		taken[b.TimeSlot] = struct{}{}
	}

	now := h.now()
	slots := make([]slotAvailability, 0, len(h.slots))
	for _, label := range h.slots {
		_, isTaken := taken[label]
		start, _, err := parse.SlotBounds(date, label, h.loc)
		started := err != nil || !start.After(now)
		slots = append(slots, slotAvailability{
			TimeSlot:  label,
			Available: machine.IsActive && !isTaken && !started,
		})
	}

	c.JSON(http.StatusOK, gin.H{"machine": machine, "date": date, "slots": slots})
}

// ListServices returns the service catalogue.
func (h *Handler) ListServices(c *gin.Context) {
	services, err := h.store.ListServices(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, services)
}

// ListSlots returns the bookable time-slot grid.
func (h *Handler) ListSlots(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"time_slots": h.slots, "timezone": h.loc.String()})
}

type upsertMachineRequest struct {
	Name     string              `json:"name" binding:"required"`
	Type     model.MachineType   `json:"type" binding:"required"`
	Location string              `json:"location"`
	IsActive *bool               `json:"is_active"`
	Status   model.MachineStatus `json:"status"`
	QRCode   *string             `json:"qr_code"`
}

// UpsertMachine creates or replaces a machine under the id in the path.
func (h *Handler) UpsertMachine(c *gin.Context) {
	var req upsertMachineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	if !req.Type.Valid() {
		badRequest(c, "type must be washer or dryer")
		return
	}
	if req.Status == "" {
		req.Status = model.MachineAvailable
	}
	if !req.Status.Valid() {
		badRequest(c, "unknown machine status")
		return
	}

	m := &model.Machine{
		ID:       c.Param("id"),
		Name:     req.Name,
		Type:     req.Type,
		Location: req.Location,
		IsActive: req.IsActive == nil || *req.IsActive,
		Status:   req.Status,
		QRCode:   req.QRCode,
	}
	if err := h.store.UpsertMachine(c.Request.Context(), m); err != nil {
		h.respondError(c, err)
		return
	}

	saved, err := h.store.GetMachine(c.Request.Context(), m.ID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, saved)
}

type machineStatusRequest struct {
	Status model.MachineStatus `json:"status" binding:"required"`
}

// SetMachineStatus moves a machine in or out of maintenance.
func (h *Handler) SetMachineStatus(c *gin.Context) {
	var req machineStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	if !req.Status.Valid() {
		badRequest(c, "unknown machine status")
		return
	}

	m, err := h.store.SetMachineStatus(c.Request.Context(), c.Param("id"), req.Status)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, m)
}
