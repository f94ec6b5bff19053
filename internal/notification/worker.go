package notification

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/SherClockHolmes/webpush-go"
	"gorm.io/gorm"

	"requisition-sync/internal/model"
	applog "requisition-sync/pkg/logger"
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

// WorkerPool pushes notices to every subscribed browser. It implements
// Notifier; Dispatch never blocks the caller.
type WorkerPool struct {
	size    int
	jobs    chan Notice
	db      *gorm.DB
	webpush *webpush.Options
	sender  NotificationSender
	log     *applog.Logger
}

// NewWorkerPool creates a new worker pool.
func NewWorkerPool(size int, db *gorm.DB, webpushOptions *webpush.Options, log *applog.Logger) *WorkerPool {
	return &WorkerPool{
		size:    size,
		jobs:    make(chan Notice, size*8),
		db:      db,
		webpush: webpushOptions,
		sender:  &WebPushSender{},
		log:     log.WithComponent("push"),
	}
}

// Start launches the worker goroutines.
func (wp *WorkerPool) Start(ctx context.Context) {
	for i := 0; i < wp.size; i++ {
		go wp.worker(ctx, i)
	}
}

func (wp *WorkerPool) worker(ctx context.Context, id int) {
	wp.log.Debugw("worker started", "worker", id)
	for {
		select {
		case notice := <-wp.jobs:
			wp.broadcast(ctx, notice)
		case <-ctx.Done():
			wp.log.Debugw("worker shutting down", "worker", id)
			return
		}
	}
}

// Dispatch queues a notice. When the queue is full the notice is dropped.
func (wp *WorkerPool) Dispatch(notice Notice) {
	select {
	case wp.jobs <- notice:
	default:
		wp.log.Warnw("push queue full, dropping notice", "level", notice.Level)
	}
}

func (wp *WorkerPool) Success(_ context.Context, message string) {
	wp.Dispatch(Notice{Level: LevelSuccess, Message: message})
}

func (wp *WorkerPool) Error(_ context.Context, message string) {
	wp.Dispatch(Notice{Level: LevelError, Message: message})
}

func (wp *WorkerPool) broadcast(ctx context.Context, notice Notice) {
	var subscriptions []model.PushSubscription
	if err := wp.db.WithContext(ctx).Find(&subscriptions).Error; err != nil {
		wp.log.Errorw("failed to load push subscriptions", "error", err)
		return
	}
	if len(subscriptions) == 0 {
		return
	}

	payload, err := json.Marshal(notice)
	if err != nil {
		wp.log.Errorw("failed to encode notice", "error", err)
		return
	}

	wp.log.Debugw("sending push notices", "subscriptions", len(subscriptions))
	for _, sub := range subscriptions {
		wp.sendNotification(ctx, sub, payload)
	}
}

func (wp *WorkerPool) sendNotification(ctx context.Context, sub model.PushSubscription, payload []byte) {
	wpSub := &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256DH,
			Auth:   sub.Auth,
		},
	}

	resp, err := wp.sender.Send(payload, wpSub, wp.webpush)
	if err != nil {
		wp.log.Warnw("failed to send push notice", "endpoint", sub.Endpoint, "error", err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusGone {
		wp.log.Infow("push subscription expired, deleting", "endpoint", sub.Endpoint)
		if err := wp.db.WithContext(ctx).Delete(&sub).Error; err != nil {
			wp.log.Errorw("failed to delete expired subscription", "endpoint", sub.Endpoint, "error", err)
		}
	}
}
