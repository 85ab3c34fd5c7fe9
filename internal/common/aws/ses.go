package aws

import (
	"context"
	"fmt"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
)

const charsetUTF8 = "UTF-8"

// SESService is the subset of the SES client used for email delivery.
type SESService interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

// EmailRelay sends one HTML message to one address through SES.
type EmailRelay struct {
	client SESService
	from   string
}

func NewEmailRelay(ctx context.Context, region, from string) (*EmailRelay, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return NewEmailRelayWithClient(ses.NewFromConfig(cfg), from), nil
}

func NewEmailRelayWithClient(client SESService, from string) *EmailRelay {
	return &EmailRelay{client: client, from: from}
}

func (r *EmailRelay) Send(ctx context.Context, address, subject, html string) error {
	_, err := r.client.SendEmail(ctx, &ses.SendEmailInput{
		Destination: &types.Destination{
			ToAddresses: []string{address},
		},
		Message: &types.Message{
			Subject: &types.Content{Data: awssdk.String(subject), Charset: awssdk.String(charsetUTF8)},
			Body: &types.Body{
				Html: &types.Content{Data: awssdk.String(html), Charset: awssdk.String(charsetUTF8)},
			},
		},
		Source: awssdk.String(r.from),
	})
	return err
}
