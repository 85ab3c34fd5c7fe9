package aws

import (
	"context"
	"fmt"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	snstypes "github.com/aws/aws-sdk-go-v2/service/sns/types"
)

// SNSService is the subset of the SNS client used for SMS delivery.
type SNSService interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// SMSGateway sends one text message to one phone number through SNS.
// Numbers must already be normalized to E.164 by the caller.
type SMSGateway struct {
	client   SNSService
	senderID string
}

func NewSMSGateway(ctx context.Context, region, senderID string) (*SMSGateway, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return NewSMSGatewayWithClient(sns.NewFromConfig(cfg), senderID), nil
}

func NewSMSGatewayWithClient(client SNSService, senderID string) *SMSGateway {
	return &SMSGateway{client: client, senderID: senderID}
}

func (g *SMSGateway) Send(ctx context.Context, phone, text string) error {
	attrs := map[string]snstypes.MessageAttributeValue{
		"AWS.SNS.SMS.SMSType": {
			DataType:    awssdk.String("String"),
			StringValue: awssdk.String("Transactional"),
		},
	}
	if g.senderID != "" {
		attrs["AWS.SNS.SMS.SenderID"] = snstypes.MessageAttributeValue{
			DataType:    awssdk.String("String"),
			StringValue: awssdk.String(g.senderID),
		}
	}

	_, err := g.client.Publish(ctx, &sns.PublishInput{
		PhoneNumber:       awssdk.String(phone),
		Message:           awssdk.String(text),
		MessageAttributes: attrs,
	})
	return err
}
