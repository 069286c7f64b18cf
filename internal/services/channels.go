package services

import (
	"context"
	"encoding/json"
	"fmt"

	botApi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/jobdesk/autoapply/internal/entities"
)

type plainMailSender interface {
	SendPlain(ctx context.Context, to, subject, body string) error
}

// InAppChannel delivers by persistence alone: the stored event row is what
// the product surfaces as the in-app feed.
type InAppChannel struct{}

func NewInAppChannel() *InAppChannel {
	return &InAppChannel{}
}

func (c *InAppChannel) Name() entities.NotificationChannel {
	return entities.ChannelInApp
}

func (c *InAppChannel) Deliver(context.Context, entities.NotificationEvent) error {
	return nil
}

type EmailChannel struct {
	sender   plainMailSender
	profiles profileGetter
}

func NewEmailChannel(sender plainMailSender, profiles profileGetter) *EmailChannel {
	return &EmailChannel{sender: sender, profiles: profiles}
}

func (c *EmailChannel) Name() entities.NotificationChannel {
	return entities.ChannelEmail
}

func (c *EmailChannel) Deliver(ctx context.Context, event entities.NotificationEvent) error {

	profile, err := c.profiles.GetByID(ctx, event.UserID)
	if err != nil {
		return err
	}
	if profile.Email == "" {
		return fmt.Errorf("user %v has no email address", event.UserID)
	}

	subject, body := renderNotification(event)
	return c.sender.SendPlain(ctx, profile.Email, subject, body)
}

type TelegramChannel struct {
	api      *botApi.BotAPI
	profiles profileGetter
}

func NewTelegramChannel(token string, profiles profileGetter) (*TelegramChannel, error) {

	api, err := botApi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}
	return &TelegramChannel{api: api, profiles: profiles}, nil
}

func (c *TelegramChannel) Name() entities.NotificationChannel {
	return entities.ChannelTelegram
}

func (c *TelegramChannel) Deliver(ctx context.Context, event entities.NotificationEvent) error {

	profile, err := c.profiles.GetByID(ctx, event.UserID)
	if err != nil {
		return err
	}
	if profile.TelegramChatID == 0 {
		// Not linked; the channel does not apply to this user.
		return nil
	}

	subject, body := renderNotification(event)
	_, err = c.api.Send(botApi.NewMessage(profile.TelegramChatID, subject+"\n\n"+body))
	return err
}

func renderNotification(event entities.NotificationEvent) (subject, body string) {

	var payload map[string]any
	_ = json.Unmarshal([]byte(event.Payload), &payload)

	jobTitle, _ := payload["job_title"].(string)
	company, _ := payload["company"].(string)

	switch event.Type {
	case entities.NotificationApplicationSubmitted:
		subject = "Your application was submitted"
		body = fmt.Sprintf("We applied to %q at %s on your behalf.", jobTitle, company)
	case entities.NotificationStatusUpdate:
		reason, _ := payload["reason"].(string)
		subject = "Application status update"
		body = fmt.Sprintf("Your application to %q at %s could not be submitted: %s.", jobTitle, company, reason)
	case entities.NotificationReminder:
		subject = "Reminder"
		body = event.Payload
	case entities.NotificationSummary:
		subject = "Your job-search summary"
		body = event.Payload
	default:
		subject = string(event.Type)
		body = event.Payload
	}
	return subject, body
}
