package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"laundrylink-backend/config"
	"laundrylink-backend/internal/auth"
	"laundrylink-backend/internal/changefeed"
	"laundrylink-backend/internal/mw"
	"laundrylink-backend/internal/notification"
	"laundrylink-backend/internal/store"
)

// Notifier queues a notification for a user.
type Notifier interface {
	Notify(job notification.Job)
}

type noopNotifier struct{}

func (noopNotifier) Notify(notification.Job) {}

// Deps are the collaborators of the API handlers.
type Deps struct {
	Store     store.Store
	Tokens    *auth.Manager
	Feed      *changefeed.Broker
	Notifier  Notifier
	WebPush   *webpush.Options
	TimeSlots []string
	Location  *time.Location
	Logger    *zap.SugaredLogger
}

// Handler holds shared dependencies for API handlers.
type Handler struct {
	store    store.Store
	tokens   *auth.Manager
	feed     *changefeed.Broker
	notifier Notifier
	webpush  *webpush.Options
	slots    []string
	loc      *time.Location
	log      *zap.SugaredLogger
	now      func() time.Time
}

// NewHandler creates a new API handler.
func NewHandler(d Deps) *Handler {
	h := &Handler{
		store:    d.Store,
		tokens:   d.Tokens,
		feed:     d.Feed,
		notifier: d.Notifier,
		webpush:  d.WebPush,
		slots:    d.TimeSlots,
		loc:      d.Location,
		log:      d.Logger,
		now:      time.Now,
	}
	if h.notifier == nil {
		h.notifier = noopNotifier{}
	}
	if len(h.slots) == 0 {
		h.slots = config.DefaultTimeSlots
	}
	if h.loc == nil {
		h.loc = time.UTC
	}
	if h.log == nil {
		h.log = zap.NewNop().Sugar()
	}
	return h
}

func (h *Handler) identity(c *gin.Context) auth.Identity {
	id, _ := mw.IdentityFrom(c)
	return id
}

// respondError maps domain errors onto HTTP status codes.
func (h *Handler) respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, store.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, store.ErrForbidden):
		status = http.StatusForbidden
	case errors.Is(err, store.ErrSlotTaken),
		errors.Is(err, store.ErrMachineUnavailable),
		errors.Is(err, store.ErrEmailTaken),
		errors.Is(err, store.ErrQRCodeTaken),
		errors.Is(err, store.ErrNotCancellable):
		status = http.StatusConflict
	case errors.Is(err, store.ErrInvalidStatus):
		status = http.StatusBadRequest
	case errors.Is(err, store.ErrInsufficientFunds):
		status = http.StatusPaymentRequired
	case errors.Is(err, store.ErrInvalidAmount):
		status = http.StatusBadRequest
	case errors.Is(err, auth.ErrInvalidCredentials):
		status = http.StatusUnauthorized
	}

	if status == http.StatusInternalServerError {
		h.log.Errorw("request failed", "method", c.Request.Method, "path", c.FullPath(), "error", err)
		c.AbortWithStatusJSON(status, gin.H{"error": "internal server error"})
		return
	}
	c.AbortWithStatusJSON(status, gin.H{"error": err.Error()})
}

func badRequest(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": msg})
}
