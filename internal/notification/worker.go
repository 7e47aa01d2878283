package notification

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"go.uber.org/zap"

	"laundrylink-backend/internal/model"
)

// NotificationSender defines the interface for sending a web push notification.
type NotificationSender interface {
	Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error)
}

// WebPushSender is a real implementation of NotificationSender using the webpush library.
type WebPushSender struct{}

// Send sends a notification using the webpush library.
func (s *WebPushSender) Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
	return webpush.SendNotification(payload, sub, options)
}

// Store is the persistence the workers need.
type Store interface {
	CreateNotification(ctx context.Context, n *model.Notification) error
	MarkNotificationSent(ctx context.Context, id string, at time.Time) error
	ListUserSubscriptions(ctx context.Context, userID string) ([]model.PushSubscription, error)
	DeleteSubscription(ctx context.Context, endpoint, userID string) error
}

// Job is one message for one user.
type Job struct {
	UserID  string
	Title   string
	Message string
	Type    model.NotificationType
}

type pushPayload struct {
	ID    string                 `json:"id"`
	Title string                 `json:"title"`
	Body  string                 `json:"body"`
	Type  model.NotificationType `json:"type"`
}

// WorkerPool manages a pool of workers that store notifications and push
// them to the user's browsers.
type WorkerPool struct {
	size    int
	jobs    chan Job
	store   Store
	webpush *webpush.Options
	sender  NotificationSender
	log     *zap.SugaredLogger
	now     func() time.Time
}

// NewWorkerPool creates a new worker pool. Push delivery is skipped when
// webpushOptions carries no VAPID keys; notifications are still stored.
func NewWorkerPool(size int, s Store, webpushOptions *webpush.Options, log *zap.SugaredLogger) *WorkerPool {
	if size <= 0 {
		size = 1
	}
	return &WorkerPool{
		size:    size,
		jobs:    make(chan Job, size*32),
		store:   s,
		webpush: webpushOptions,
		sender:  &WebPushSender{}, // Use the real sender by default
		log:     log,
		now:     time.Now,
	}
}

// Start launches the worker goroutines.
func (wp *WorkerPool) Start(ctx context.Context) {
	for i := 0; i < wp.size; i++ {
		go wp.worker(ctx, i)
	}
}

func (wp *WorkerPool) worker(ctx context.Context, id int) {
	wp.log.Debugw("notification worker started", "worker", id)
	for {
		select {
		case job := <-wp.jobs:
			wp.process(ctx, job)
		case <-ctx.Done():
			wp.log.Debugw("notification worker shutting down", "worker", id)
			return
		}
	}
}

// Notify queues a job without holding up the caller. A full queue drops the
// job with a warning.
func (wp *WorkerPool) Notify(job Job) {
	select {
	case wp.jobs <- job:
	default:
		wp.log.Warnw("notification queue full; dropping job", "user_id", job.UserID, "type", job.Type)
	}
}

func (wp *WorkerPool) process(ctx context.Context, job Job) {
	note := &model.Notification{
		UserID:  job.UserID,
		Title:   job.Title,
		Message: job.Message,
		Type:    job.Type,
	}
	if err := wp.store.CreateNotification(ctx, note); err != nil {
		wp.log.Errorw("failed to store notification", "user_id", job.UserID, "type", job.Type, "error", err)
		return
	}

	if !wp.pushEnabled() {
		return
	}

	subs, err := wp.store.ListUserSubscriptions(ctx, job.UserID)
	if err != nil {
		wp.log.Errorw("failed to fetch subscriptions", "user_id", job.UserID, "error", err)
		return
	}
	if len(subs) == 0 {
		return
	}

	payload, err := json.Marshal(pushPayload{ID: note.ID, Title: note.Title, Body: note.Message, Type: note.Type})
	if err != nil {
		wp.log.Errorw("failed to encode push payload", "error", err)
		return
	}

	delivered := 0
	for _, sub := range subs {
		if wp.sendNotification(ctx, sub, payload) {
			delivered++
		}
	}
	if delivered == 0 {
		return
	}

	if err := wp.store.MarkNotificationSent(ctx, note.ID, wp.now().UTC()); err != nil {
		wp.log.Errorw("failed to mark notification sent", "id", note.ID, "error", err)
	}
}

func (wp *WorkerPool) pushEnabled() bool {
	return wp.webpush != nil && wp.webpush.VAPIDPublicKey != "" && wp.webpush.VAPIDPrivateKey != ""
}

// sendNotification sends a single web push notification and reports whether
// the push service accepted it.
func (wp *WorkerPool) sendNotification(ctx context.Context, sub model.PushSubscription, payload []byte) bool {
	wpSub := &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256DH,
			Auth:   sub.Auth,
		},
	}

	resp, err := wp.sender.Send(payload, wpSub, wp.webpush)
	if err != nil {
		wp.log.Warnw("error sending notification", "endpoint", sub.Endpoint, "error", err)
		return false
	}
	defer resp.Body.Close()

	// Handle expired subscriptions
	if resp.StatusCode == http.StatusGone {
		wp.log.Infow("subscription expired; deleting", "endpoint", sub.Endpoint)
		if err := wp.store.DeleteSubscription(ctx, sub.Endpoint, sub.UserID); err != nil {
			wp.log.Errorw("failed to delete expired subscription", "endpoint", sub.Endpoint, "error", err)
		}
		return false
	}
	return resp.StatusCode >= 200 && resp.StatusCode < 300
}
