package services

import (
	"context"
	"encoding/json"
	"time"

	"github.com/asaskevich/EventBus"
	"github.com/jobdesk/autoapply/internal/entities"
	"github.com/jobdesk/autoapply/internal/events"
	"github.com/jobdesk/autoapply/internal/logger"
	"github.com/jobdesk/autoapply/internal/metrics"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

type notificationStore interface {
	Save(ctx context.Context, event *entities.NotificationEvent) error
	MarkSent(ctx context.Context, eventID int64) error
	MarkFailedDelivery(ctx context.Context, eventID int64) error
	MarkRead(ctx context.Context, userID int64, eventIDs []int64) error
	UnreadCount(ctx context.Context, userID int64) (int64, error)
	ListForUser(ctx context.Context, userID int64, limit int) ([]entities.NotificationEvent, error)
}

// NotificationChannel delivers one event over one transport. Implementations
// report per-delivery failure; retry policy lives in the dispatcher.
type NotificationChannel interface {
	Name() entities.NotificationChannel
	Deliver(ctx context.Context, event entities.NotificationEvent) error
}

// Dispatcher fans lifecycle events out to the user's channels. It is
// decoupled from the orchestrator's critical path: publishing enqueues onto
// a bounded queue and never blocks. Each channel delivery is retried once
// after a fixed backoff, then the event is marked failed-delivery and kept
// for audit.
type Dispatcher struct {
	bus          EventBus.Bus
	store        notificationStore
	channels     map[entities.NotificationChannel]NotificationChannel
	queue        chan entities.NotificationEvent
	retryBackoff time.Duration
}

func NewDispatcher(bus EventBus.Bus, store notificationStore, channels []NotificationChannel,
	queueSize int, retryBackoff time.Duration) (*Dispatcher, error) {

	if bus == nil {
		return nil, errors.New("bus is nil")
	}
	if store == nil {
		return nil, errors.New("notification store is nil")
	}
	if queueSize <= 0 {
		queueSize = 256
	}
	if retryBackoff <= 0 {
		retryBackoff = 5 * time.Second
	}

	byName := make(map[entities.NotificationChannel]NotificationChannel, len(channels))
	for _, channel := range channels {
		byName[channel.Name()] = channel
	}

	d := &Dispatcher{
		bus:          bus,
		store:        store,
		channels:     byName,
		queue:        make(chan entities.NotificationEvent, queueSize),
		retryBackoff: retryBackoff,
	}

	if err := bus.Subscribe(events.ApplicationSubmittedTopic, d.onApplicationSubmitted); err != nil {
		return nil, err
	}
	if err := bus.Subscribe(events.ApplicationFailedTopic, d.onApplicationFailed); err != nil {
		return nil, err
	}

	return d, nil
}

func (d *Dispatcher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event := <-d.queue:
			d.fanOut(ctx, event)
		}
	}
}

// Publish persists the event and hands it to the delivery worker. A full
// queue marks the event failed-delivery instead of blocking the caller.
func (d *Dispatcher) Publish(event *entities.NotificationEvent) {

	ctx := context.Background()
	if err := d.store.Save(ctx, event); err != nil {
		log.WithField(logger.ErrorTypeField, logger.ErrorTypeDb).
			Errorf("failed to save notification event: %v", err)
		return
	}

	select {
	case d.queue <- *event:
	default:
		log.WithField(logger.ErrorTypeField, logger.ErrorTypeNotify).
			Errorf("notification queue full, dropping delivery of event %v", event.ID)
		if err := d.store.MarkFailedDelivery(ctx, event.ID); err != nil {
			log.WithField(logger.ErrorTypeField, logger.ErrorTypeDb).
				Errorf("failed to mark notification %v as failed: %v", event.ID, err)
		}
	}
}

func (d *Dispatcher) UnreadCount(ctx context.Context, userID int64) (int64, error) {
	return d.store.UnreadCount(ctx, userID)
}

func (d *Dispatcher) MarkRead(ctx context.Context, userID int64, eventIDs []int64) error {
	return d.store.MarkRead(ctx, userID, eventIDs)
}

// ListForUser is the in-app feed read: retained events newest first,
// delivered or not.
func (d *Dispatcher) ListForUser(ctx context.Context, userID int64, limit int) ([]entities.NotificationEvent, error) {
	return d.store.ListForUser(ctx, userID, limit)
}

func (d *Dispatcher) onApplicationSubmitted(event events.ApplicationSubmitted) {

	payload, _ := json.Marshal(map[string]any{
		"job_title": event.Posting.Title,
		"company":   event.Posting.Company,
		"receipt":   event.Receipt.MessageID,
	})

	d.Publish(entities.NewNotificationEvent(
		entities.NotificationApplicationSubmitted,
		event.UserID,
		string(payload),
		[]entities.NotificationChannel{entities.ChannelInApp, entities.ChannelEmail},
	))
}

func (d *Dispatcher) onApplicationFailed(event events.ApplicationFailed) {

	payload, _ := json.Marshal(map[string]any{
		"job_title": event.Posting.Title,
		"company":   event.Posting.Company,
		"reason":    event.Reason,
	})

	d.Publish(entities.NewNotificationEvent(
		entities.NotificationStatusUpdate,
		event.UserID,
		string(payload),
		[]entities.NotificationChannel{entities.ChannelInApp},
	))
}

func (d *Dispatcher) fanOut(ctx context.Context, event entities.NotificationEvent) {

	delivered := true
	for _, name := range event.ChannelsAsArray() {
		channel, ok := d.channels[name]
		if !ok {
			log.Warnf("no channel registered for %q, event %v", name, event.ID)
			continue
		}

		if err := d.deliverWithRetry(ctx, channel, event); err != nil {
			delivered = false
			metrics.NotificationDeliveryCounter.WithLabelValues(string(name), "failure").Inc()
			log.WithField(logger.ErrorTypeField, logger.ErrorTypeNotify).
				Errorf("channel %v gave up on event %v: %v", name, event.ID, err)
		} else {
			metrics.NotificationDeliveryCounter.WithLabelValues(string(name), "success").Inc()
		}
	}

	var err error
	if delivered {
		err = d.store.MarkSent(ctx, event.ID)
	} else {
		err = d.store.MarkFailedDelivery(ctx, event.ID)
	}
	if err != nil {
		log.WithField(logger.ErrorTypeField, logger.ErrorTypeDb).
			Errorf("failed to update delivery state of event %v: %v", event.ID, err)
	}
}

func (d *Dispatcher) deliverWithRetry(ctx context.Context, channel NotificationChannel,
	event entities.NotificationEvent) error {

	err := channel.Deliver(ctx, event)
	if err == nil {
		return nil
	}

	log.Warnf("channel %v failed for event %v, retrying once: %v", channel.Name(), event.ID, err)

	select {
	case <-ctx.Done():
		return err
	case <-time.After(d.retryBackoff):
	}

	return channel.Deliver(ctx, event)
}
