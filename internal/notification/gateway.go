// internal/notification/gateway.go
package notification

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	sestypes "github.com/aws/aws-sdk-go-v2/service/ses/types"
	"github.com/aws/aws-sdk-go-v2/service/sns"
)

// EmailGateway delivers one message to a set of addresses in a single call.
type EmailGateway interface {
	SendEmail(ctx context.Context, to []string, subject, body string) error
}

// PushGateway delivers one message to a single device token.
type PushGateway interface {
	SendPush(ctx context.Context, token, subject, body string) error
}

// SESService is the slice of the SES client the email gateway uses.
type SESService interface {
	SendEmail(ctx context.Context, input *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

// SNSService is the slice of the SNS client the push gateway uses.
type SNSService interface {
	Publish(ctx context.Context, input *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

type sesEmailGateway struct {
	svc       SESService
	fromEmail string
}

// NewSESEmailGateway adapts an SES client into an EmailGateway.
func NewSESEmailGateway(svc SESService, fromEmail string) EmailGateway {
	return &sesEmailGateway{svc: svc, fromEmail: fromEmail}
}

func (g *sesEmailGateway) SendEmail(ctx context.Context, to []string, subject, body string) error {
	_, err := g.svc.SendEmail(ctx, &ses.SendEmailInput{
		Source: aws.String(g.fromEmail),
		Destination: &sestypes.Destination{
			ToAddresses: to,
		},
		Message: &sestypes.Message{
			Subject: &sestypes.Content{Data: aws.String(subject)},
			Body: &sestypes.Body{
				Html: &sestypes.Content{Data: aws.String(body)},
			},
		},
	})
	return err
}

type snsPushGateway struct {
	svc SNSService
}

// NewSNSPushGateway adapts an SNS client into a PushGateway. The member's
// stored push token is the platform endpoint ARN.
func NewSNSPushGateway(svc SNSService) PushGateway {
	return &snsPushGateway{svc: svc}
}

func (g *snsPushGateway) SendPush(ctx context.Context, token, subject, body string) error {
	_, err := g.svc.Publish(ctx, &sns.PublishInput{
		TargetArn: aws.String(token),
		Subject:   aws.String(subject),
		Message:   aws.String(body),
	})
	return err
}
