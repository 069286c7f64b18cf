package ses

import (
	"context"
	"errors"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsses "github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
	"github.com/aws/smithy-go"
	"github.com/jobdesk/autoapply/internal/entities"
	"golang.org/x/time/rate"
)

type sesAPI interface {
	SendEmail(ctx context.Context, params *awsses.SendEmailInput,
		optFns ...func(*awsses.Options)) (*awsses.SendEmailOutput, error)
}

// Client sends application artifacts and notification mail through SES.
type Client struct {
	api         sesAPI
	sender      string
	rateLimiter *rate.Limiter
}

func NewClient(ctx context.Context, region string, senderAddress string) (*Client, error) {

	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, err
	}

	return &Client{api: awsses.NewFromConfig(cfg), sender: senderAddress}, nil
}

func (c *Client) SetAPI(api sesAPI) {
	c.api = api
}

func (c *Client) SetRateLimit(maxSendsPerSecond float32) {
	c.rateLimiter = rate.NewLimiter(rate.Limit(maxSendsPerSecond), 1)
}

// Send delivers the artifact to the posting's contact address. Failures are
// classified so the ledger can decide whether the attempt is retry-eligible.
func (c *Client) Send(ctx context.Context, artifact entities.ApplicationArtifact) (entities.DeliveryReceipt, error) {

	if c.rateLimiter != nil {
		if err := c.rateLimiter.Wait(ctx); err != nil {
			return entities.DeliveryReceipt{}, &entities.DeliveryError{Transient: true, Cause: err}
		}
	}

	input := &awsses.SendEmailInput{
		Source: aws.String(c.sender),
		Destination: &types.Destination{
			ToAddresses: []string{artifact.RecipientEmail},
		},
		Message: &types.Message{
			Subject: &types.Content{Data: aws.String(artifact.Subject)},
			Body: &types.Body{
				Text: &types.Content{Data: aws.String(artifact.Body)},
			},
		},
	}
	if artifact.ReplyTo != "" {
		input.ReplyToAddresses = []string{artifact.ReplyTo}
	}

	out, err := c.api.SendEmail(ctx, input)
	if err != nil {
		return entities.DeliveryReceipt{}, classify(err)
	}

	return entities.DeliveryReceipt{
		MessageID:   aws.ToString(out.MessageId),
		DeliveredAt: time.Now().UTC(),
	}, nil
}

// SendPlain is the notification-channel path: a simple text mail to a user.
func (c *Client) SendPlain(ctx context.Context, to, subject, body string) error {

	_, err := c.Send(ctx, entities.ApplicationArtifact{
		RecipientEmail: to,
		Subject:        subject,
		Body:           body,
	})
	return err
}

func classify(err error) error {

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "Throttling", "ThrottlingException", "ServiceUnavailable", "InternalFailure":
			return &entities.DeliveryError{Transient: true, Cause: err}
		default:
			if apiErr.ErrorFault() == smithy.FaultServer {
				return &entities.DeliveryError{Transient: true, Cause: err}
			}
			return &entities.DeliveryError{Transient: false, Cause: err}
		}
	}

	// Connection resets and timeouts never reached the API.
	return &entities.DeliveryError{Transient: true, Cause: err}
}
