package repositories

import (
	"context"
	"time"

	"github.com/jobdesk/autoapply/internal/entities"
	"gorm.io/gorm"
)

type Notifications struct {
	db *gorm.DB
}

func NewNotificationsRepository(db *gorm.DB) *Notifications {
	return &Notifications{db: db}
}

func (n *Notifications) Save(ctx context.Context, event *entities.NotificationEvent) error {
	return n.db.WithContext(ctx).Create(event).Error
}

func (n *Notifications) MarkSent(ctx context.Context, eventID int64) error {
	return n.db.WithContext(ctx).
		Model(&entities.NotificationEvent{}).
		Where("id = ?", eventID).
		Updates(map[string]any{"sent_at": time.Now().UTC(), "failed_delivery": false}).Error
}

// MarkFailedDelivery flags the event after the retry budget is spent. The
// event row is retained for audit.
func (n *Notifications) MarkFailedDelivery(ctx context.Context, eventID int64) error {
	return n.db.WithContext(ctx).
		Model(&entities.NotificationEvent{}).
		Where("id = ?", eventID).
		Update("failed_delivery", true).Error
}

func (n *Notifications) MarkRead(ctx context.Context, userID int64, eventIDs []int64) error {
	return n.db.WithContext(ctx).
		Model(&entities.NotificationEvent{}).
		Where("user_id = ? AND id IN ?", userID, eventIDs).
		Update("is_read", true).Error
}

func (n *Notifications) UnreadCount(ctx context.Context, userID int64) (int64, error) {

	var count int64
	if err := n.db.WithContext(ctx).
		Model(&entities.NotificationEvent{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (n *Notifications) ListForUser(ctx context.Context, userID int64, limit int) ([]entities.NotificationEvent, error) {

	var events []entities.NotificationEvent
	if err := n.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&events).Error; err != nil {
		return nil, err
	}
	return events, nil
}
