// Package sms sends transactional text messages through Amazon SNS.
package sms

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"
)

type Sender interface {
	Send(ctx context.Context, phone, text string) error
}

type SNS struct {
	client   *sns.Client
	senderID string
}

func NewSNS(cfg aws.Config, senderID string) *SNS {
	return &SNS{client: sns.NewFromConfig(cfg), senderID: senderID}
}

// Send publishes directly to an E.164 phone number.
func (s *SNS) Send(ctx context.Context, phone, text string) error {
	attrs := map[string]types.MessageAttributeValue{
		"AWS.SNS.SMS.SMSType": {DataType: aws.String("String"), StringValue: aws.String("Transactional")},
	}
	if s.senderID != "" {
		attrs["AWS.SNS.SMS.SenderID"] = types.MessageAttributeValue{DataType: aws.String("String"), StringValue: aws.String(s.senderID)}
	}
	_, err := s.client.Publish(ctx, &sns.PublishInput{
		PhoneNumber:       aws.String(phone),
		Message:           aws.String(text),
		MessageAttributes: attrs,
	})
	if err != nil {
		return fmt.Errorf("sms.SNS: %w", err)
	}
	return nil
}
