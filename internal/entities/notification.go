package entities

import (
	"strings"
	"time"

	"github.com/samber/lo"
)

type NotificationType string

const (
	NotificationApplicationSubmitted NotificationType = "application_submitted"
	NotificationStatusUpdate         NotificationType = "status_update"
	NotificationReminder             NotificationType = "reminder"
	NotificationSummary              NotificationType = "summary"
)

type NotificationChannel string

const (
	ChannelInApp    NotificationChannel = "in_app"
	ChannelEmail    NotificationChannel = "email"
	ChannelTelegram NotificationChannel = "telegram"
)

// NotificationEvent is a lifecycle event fanned out to the user's channels.
// Read state is advisory and never feeds back into the pipeline.
type NotificationEvent struct {
	ID             int64 `gorm:"primaryKey"`
	Type           NotificationType
	UserID         int64
	Payload        string
	Channels       string
	IsRead         bool
	SentAt         *time.Time
	FailedDelivery bool
	CreatedAt      time.Time
}

func NewNotificationEvent(kind NotificationType, userID int64, payload string,
	channels []NotificationChannel) *NotificationEvent {

	asStr := lo.Map(channels, func(c NotificationChannel, _ int) string {
		return string(c)
	})
	return &NotificationEvent{
		Type:     kind,
		UserID:   userID,
		Payload:  payload,
		Channels: strings.Join(asStr, ","),
	}
}

func (e *NotificationEvent) ChannelsAsArray() []NotificationChannel {
	if e.Channels == "" {
		return []NotificationChannel{}
	}
	return lo.Map(strings.Split(e.Channels, ","), func(item string, _ int) NotificationChannel {
		return NotificationChannel(strings.TrimSpace(item))
	})
}
