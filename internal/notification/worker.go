package notification

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/SherClockHolmes/webpush-go"
	"gorm.io/gorm"

	"minecraft-tracker-backend/internal/model"
)

// ServerEvent is a reachability transition for a tracked server.
type ServerEvent struct {
	ServerID int64
	Online   bool
}

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

// WorkerPool manages a pool of workers for sending notifications.
type WorkerPool struct {
	size    int
	jobs    chan ServerEvent
	db      *gorm.DB
	webpush *webpush.Options
	sender  NotificationSender
}

// NewWorkerPool creates a new worker pool.
func NewWorkerPool(size int, db *gorm.DB, webpushOptions *webpush.Options) *WorkerPool {
	return &WorkerPool{
		size:    size,
		jobs:    make(chan ServerEvent, size),
		db:      db,
		webpush: webpushOptions,
		sender:  &WebPushSender{},
	}
}

// Start launches the worker goroutines.
func (wp *WorkerPool) Start(ctx context.Context) {
	for i := 0; i < wp.size; i++ {
		go wp.worker(ctx, i)
	}
}

// worker is the actual worker goroutine.
func (wp *WorkerPool) worker(ctx context.Context, id int) {
	log.Printf("Worker %d started", id)
	for {
		select {
		case event := <-wp.jobs:
			log.Printf("Worker %d processing event for server %d (online=%t)", id, event.ServerID, event.Online)
			wp.sendNotificationsForServer(ctx, event)
		case <-ctx.Done():
			log.Printf("Worker %d shutting down", id)
			return
		}
	}
}

// Dispatch queues a job for the worker pool without blocking. When the
// queue is full the event is dropped; a missed notification must not
// stall a tracking cycle.
func (wp *WorkerPool) Dispatch(event ServerEvent) {
	select {
	case wp.jobs <- event:
	default:
		log.Printf("Notification queue full, dropping event for server %d (online=%t)", event.ServerID, event.Online)
	}
}

// Jobs returns the jobs channel for testing.
func (wp *WorkerPool) Jobs() chan ServerEvent {
	return wp.jobs
}

// sendNotificationsForServer fetches subscriptions and sends notifications for a server event.
func (wp *WorkerPool) sendNotificationsForServer(ctx context.Context, event ServerEvent) {
	var subscriptions []model.PushSubscription
	err := wp.db.WithContext(ctx).
		Joins("JOIN subscription_server_mapping ssm ON ssm.push_subscription_endpoint = push_subscriptions.endpoint").
		Where("ssm.server_id = ?", event.ServerID).
		Find(&subscriptions).Error
	if err != nil {
		log.Printf("Error fetching subscriptions for server %d: %v", event.ServerID, err)
		return
	}

	if len(subscriptions) == 0 {
		return
	}

	log.Printf("Sending %d notifications for server %d", len(subscriptions), event.ServerID)

	serverLabel := fmt.Sprintf("%d", event.ServerID)
	var server model.Server
	if err := wp.db.WithContext(ctx).
		Select("address", "port").
		First(&server, event.ServerID).Error; err != nil {
		log.Printf("Error fetching server %d: %v", event.ServerID, err)
	} else {
		serverLabel = server.Endpoint()
	}

	var message string
	if event.Online {
		message = fmt.Sprintf("Server %s is back online!", serverLabel)
	} else {
		message = fmt.Sprintf("Server %s went offline.", serverLabel)
	}

	for _, sub := range subscriptions {
		wp.sendNotification(ctx, sub, []byte(message))
	}
}

// sendNotification sends a single web push notification.
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
		log.Printf("Error sending notification to %s: %v", sub.Endpoint, err)
		return
	}
	defer resp.Body.Close()

	// Handle expired subscriptions
	if resp.StatusCode == http.StatusGone {
		log.Printf("Subscription for endpoint %s is expired. Deleting.", sub.Endpoint)
		if err := wp.db.WithContext(ctx).Delete(&sub).Error; err != nil {
			log.Printf("Failed to delete expired subscription %s: %v", sub.Endpoint, err)
		}
	}
}
