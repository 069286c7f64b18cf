package repositories

import (
	"context"
	"testing"

	"github.com/jobdesk/autoapply/internal/entities"
	"github.com/stretchr/testify/assert"
)

func Test_Notifications_MarkSent_ShouldStampSentAt(t *testing.T) {

	repo := NewNotificationsRepository(newTestDb(t).DB)
	ctx := context.Background()

	event := entities.NewNotificationEvent(entities.NotificationApplicationSubmitted, 1,
		"{}", []entities.NotificationChannel{entities.ChannelInApp})
	assert.NoError(t, repo.Save(ctx, event))
	assert.NoError(t, repo.MarkSent(ctx, event.ID))

	events, err := repo.ListForUser(ctx, 1, 10)
	assert.NoError(t, err)
	assert.Len(t, events, 1)
	assert.NotNil(t, events[0].SentAt)
	assert.False(t, events[0].FailedDelivery)
}

func Test_Notifications_MarkFailedDelivery_ShouldKeepEventForAudit(t *testing.T) {

	repo := NewNotificationsRepository(newTestDb(t).DB)
	ctx := context.Background()

	event := entities.NewNotificationEvent(entities.NotificationStatusUpdate, 1,
		"{}", []entities.NotificationChannel{entities.ChannelEmail})
	assert.NoError(t, repo.Save(ctx, event))
	assert.NoError(t, repo.MarkFailedDelivery(ctx, event.ID))

	events, err := repo.ListForUser(ctx, 1, 10)
	assert.NoError(t, err)
	assert.Len(t, events, 1)
	assert.True(t, events[0].FailedDelivery)
	assert.Nil(t, events[0].SentAt)
}

func Test_Notifications_UnreadCount_ShouldDropAfterMarkRead(t *testing.T) {

	repo := NewNotificationsRepository(newTestDb(t).DB)
	ctx := context.Background()

	first := entities.NewNotificationEvent(entities.NotificationReminder, 1,
		"{}", []entities.NotificationChannel{entities.ChannelInApp})
	second := entities.NewNotificationEvent(entities.NotificationReminder, 1,
		"{}", []entities.NotificationChannel{entities.ChannelInApp})
	assert.NoError(t, repo.Save(ctx, first))
	assert.NoError(t, repo.Save(ctx, second))

	count, err := repo.UnreadCount(ctx, 1)
	assert.NoError(t, err)
	assert.Equal(t, int64(2), count)

	assert.NoError(t, repo.MarkRead(ctx, 1, []int64{first.ID}))

	count, err = repo.UnreadCount(ctx, 1)
	assert.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func Test_Notifications_MarkRead_WhenEventBelongsToAnotherUser_ShouldNotTouchIt(t *testing.T) {

	repo := NewNotificationsRepository(newTestDb(t).DB)
	ctx := context.Background()

	event := entities.NewNotificationEvent(entities.NotificationReminder, 2,
		"{}", []entities.NotificationChannel{entities.ChannelInApp})
	assert.NoError(t, repo.Save(ctx, event))

	assert.NoError(t, repo.MarkRead(ctx, 1, []int64{event.ID}))

	count, err := repo.UnreadCount(ctx, 2)
	assert.NoError(t, err)
	assert.Equal(t, int64(1), count)
}
