package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"laundrylink-backend/internal/model"
	"laundrylink-backend/internal/notification"
	"laundrylink-backend/internal/store"
)

// DefaultOrderService is the service recorded for cycles started from a scan.
const DefaultOrderService = "Quick Wash"

const recentOrdersLimit = 5

// orderView decorates an order with its progress bar value and badge.
type orderView struct {
	model.LaundryOrder
	Progress int    `json:"progress"`
	Badge    string `json:"badge"`
}

func newOrderView(o model.LaundryOrder) orderView {
	return orderView{LaundryOrder: o, Progress: o.Status.Progress(), Badge: o.Status.Badge()}
}

func newOrderViews(orders []model.LaundryOrder) []orderView {
	views := make([]orderView, 0, len(orders))
	for _, o := range orders {
		views = append(views, newOrderView(o))
	}
	return views
}

// CurrentOrder returns the caller's order in progress, or null.
func (h *Handler) CurrentOrder(c *gin.Context) {
	order, err := h.store.CurrentOrder(c.Request.Context(), h.identity(c).UserID)
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusOK, gin.H{"order": nil})
		return
	}
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"order": newOrderView(*order)})
}

// RecentOrders returns the caller's latest completed orders.
func (h *Handler) RecentOrders(c *gin.Context) {
	orders, err := h.store.RecentOrders(c.Request.Context(), h.identity(c).UserID, recentOrdersLimit)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, newOrderViews(orders))
}

type scanRequest struct {
	Code string `json:"code" binding:"required"`
}

// ScanMachine resolves a decoded QR payload and checks the machine can start.
func (h *Handler) ScanMachine(c *gin.Context) {
	var req scanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	machine, err := h.store.GetMachineByQR(c.Request.Context(), strings.TrimSpace(req.Code))
	if errors.Is(err, store.ErrNotFound) {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "this QR code is not associated with any machine"})
		return
	}
	if err != nil {
		h.respondError(c, err)
		return
	}
	if !machine.Bookable() {
		h.respondError(c, fmt.Errorf("%w: machine %s is currently %s", store.ErrMachineUnavailable, machine.Name, machine.Status))
		return
	}
	c.JSON(http.StatusOK, machine)
}

type startOrderRequest struct {
	MachineID   string `json:"machine_id" binding:"required"`
	ServiceType string `json:"service_type"`
}

// StartOrder starts a cycle on a scanned machine.
func (h *Handler) StartOrder(c *gin.Context) {
	ctx := c.Request.Context()

	var req startOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	if req.ServiceType == "" {
		req.ServiceType = DefaultOrderService
	}

	userID := h.identity(c).UserID
	order, err := h.store.StartOrder(ctx, userID, req.MachineID, req.ServiceType, h.now().UTC())
	if err != nil {
		h.respondError(c, err)
		return
	}

	machineName := order.MachineID
	if m, err := h.store.GetMachine(ctx, order.MachineID); err == nil {
		machineName = m.Name
	}
	h.notifier.Notify(notification.Job{
		UserID:  userID,
		Title:   "Laundry started!",
		Message: fmt.Sprintf("Your laundry has started on %s. Estimated completion in %d minutes.", machineName, int(store.EstimatedCycle.Minutes())),
		Type:    model.NotifyOrderStarted,
	})
	c.JSON(http.StatusCreated, newOrderView(*order))
}

// AdminOrders returns every order still in progress with its owner.
func (h *Handler) AdminOrders(c *gin.Context) {
	orders, err := h.store.ActiveOrders(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, newOrderViews(orders))
}

type orderStatusRequest struct {
	Status model.OrderStatus `json:"status" binding:"required"`
}

// UpdateOrderStatus sets any known status on an order. Reaching
// ready_for_pickup notifies the owner.
func (h *Handler) UpdateOrderStatus(c *gin.Context) {
	var req orderStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	if !req.Status.Valid() {
		badRequest(c, fmt.Sprintf("unknown order status %q", req.Status))
		return
	}

	order, err := h.store.UpdateOrderStatus(c.Request.Context(), c.Param("id"), req.Status, h.now().UTC())
	if err != nil {
		h.respondError(c, err)
		return
	}

	if order.Status == model.OrderReadyForPickup {
		h.notifier.Notify(notification.Job{
			UserID:  order.UserID,
			Title:   "Laundry ready",
			Message: "Your laundry is ready for pickup.",
			Type:    model.NotifyOrderReady,
		})
	}
	c.JSON(http.StatusOK, newOrderView(*order))
}
