package services

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"earlyshhAPI/internal/storage"
	"earlyshhAPI/internal/types/notification"
)

type PushNotificationProvider interface {
	SendPush(ctx context.Context, tokens []notification.DeviceToken, title, body string, data map[string]any) error
}

// LiveNotifier delivers a payload to a user's open connections.
type LiveNotifier interface {
	SendToUser(userID int, payload []byte)
}

// NotificationDispatcher fans stored notifications out to live connections
// and push devices on a small worker pool.
type NotificationDispatcher struct {
	devices      storage.NotificationStore
	live         LiveNotifier
	pushProvider PushNotificationProvider
	workers      int
	jobQueue     chan *DispatchJob
	stopChan     chan struct{}
	stopOnce     sync.Once
	wg           sync.WaitGroup
}

type DispatchJob struct {
	Notification *notification.Notification
}

func NewNotificationDispatcher(devices storage.NotificationStore, live LiveNotifier) *NotificationDispatcher {
	dispatcher := &NotificationDispatcher{
		devices:  devices,
		live:     live,
		workers:  5,
		jobQueue: make(chan *DispatchJob, 100),
		stopChan: make(chan struct{}),
	}

	dispatcher.startWorkers()

	return dispatcher
}

// SetPushProvider injects the FCM client from main.go.
func (d *NotificationDispatcher) SetPushProvider(provider PushNotificationProvider) {
	d.pushProvider = provider
}

func (d *NotificationDispatcher) startWorkers() {
	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go d.worker(i)
	}
}

func (d *NotificationDispatcher) worker(id int) {
	defer d.wg.Done()
	for {
		select {
		case job := <-d.jobQueue:
			d.processJob(job)
		case <-d.stopChan:
			return
		}
	}
}

func (d *NotificationDispatcher) processJob(job *DispatchJob) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	notif := job.Notification

	if d.live != nil {
		payload, err := json.Marshal(map[string]any{
			"action":       "notification",
			"notification": notif,
		})
		if err != nil {
			log.Printf("Failed to encode notification %d: %v", notif.ID, err)
		} else {
			d.live.SendToUser(notif.UserID, payload)
		}
	}

	if d.pushProvider == nil {
		return
	}

	tokens, err := d.devices.ListDeviceTokens(ctx, notif.UserID)
	if err != nil {
		log.Printf("Failed to load devices for user %d: %v", notif.UserID, err)
		return
	}
	if len(tokens) == 0 {
		log.Debugf("Skipping push for notification %d: no devices", notif.ID)
		return
	}

	deviceTokens := make([]notification.DeviceToken, 0, len(tokens))
	for _, t := range tokens {
		deviceTokens = append(deviceTokens, *t)
	}

	if err := d.pushProvider.SendPush(ctx, deviceTokens, notif.Title, notif.Message, notif.Data); err != nil {
		log.Printf("Push failed for user %d: %v", notif.UserID, err)
	}
}

// DispatchNotification queues delivery. A full queue drops the delivery;
// the notification itself is already stored.
func (d *NotificationDispatcher) DispatchNotification(notif *notification.Notification) {
	job := &DispatchJob{Notification: notif}

	select {
	case <-d.stopChan:
		return
	default:
	}

	select {
	case d.jobQueue <- job:
		log.Debugf("Notification %d queued for dispatch", notif.ID)
	default:
		notificationsDropped.Inc()
		log.Printf("Failed to queue notification %d: queue full", notif.ID)
	}
}

// Stop the dispatcher gracefully
func (d *NotificationDispatcher) Stop() {
	d.stopOnce.Do(func() {
		log.Println("Stopping notification dispatcher...")
		close(d.stopChan)
		d.wg.Wait()
		log.Println("Notification dispatcher stopped")
	})
}
