package sender

import (
	"context"
	"errors"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"

	apperrors "reservations-api/internal/common/errors"
	"reservations-api/internal/common/logger"
	"reservations-api/internal/models"
)

// SESService is the slice of the SES client the email sender uses.
type SESService interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

// EmailSender delivers notifications through AWS SES.
type EmailSender struct {
	client    SESService
	fromEmail string
	logger    logger.Logger
}

func NewEmailSender(ctx context.Context, region, fromEmail string, log logger.Logger) (*EmailSender, error) {
	if region == "" || fromEmail == "" {
		return nil, apperrors.NewProviderConfigMissingError("ses", "aws_region and from_email are required")
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, apperrors.NewProviderConfigMissingError("ses", err.Error())
	}

	return newEmailSenderWithClient(ses.NewFromConfig(awsCfg), fromEmail, log), nil
}

func newEmailSenderWithClient(client SESService, fromEmail string, log logger.Logger) *EmailSender {
	return &EmailSender{
		client:    client,
		fromEmail: fromEmail,
		logger:    log.WithFields(map[string]interface{}{"provider": "ses"}),
	}
}

func (e *EmailSender) Provider() string { return "ses" }

func (e *EmailSender) Send(ctx context.Context, n *models.Notification) Outcome {
	out, err := e.client.SendEmail(ctx, &ses.SendEmailInput{
		Destination: &types.Destination{
			ToAddresses: []string{n.Recipient},
		},
		Message: &types.Message{
			Subject: &types.Content{Data: aws.String(n.Subject)},
			Body: &types.Body{
				Text: &types.Content{Data: aws.String(n.Body)},
			},
		},
		Source: aws.String(e.fromEmail),
	})
	if err != nil {
		return Outcome{
			OK:        false,
			Retryable: classifySESError(ctx, err),
			Provider:  "ses",
			Err:       sesError(ctx, err),
		}
	}

	messageID := ""
	if out != nil && out.MessageId != nil {
		messageID = *out.MessageId
	}
	return Outcome{OK: true, Provider: "ses", MessageID: messageID}
}

// classifySESError decides whether an SES failure is worth another attempt.
// Throttling and service trouble are; rejected messages are not.
func classifySESError(ctx context.Context, err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
		return true
	}

	var throttled *types.LimitExceededException
	if errors.As(err, &throttled) {
		return true
	}

	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "throttl") || strings.Contains(msg, "rate exceeded") ||
		strings.Contains(msg, "service unavailable") || strings.Contains(msg, "internal") ||
		strings.Contains(msg, "timeout") {
		return true
	}
	return false
}

func sesError(ctx context.Context, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
		return apperrors.NewProviderTimeoutError("ses")
	}
	if classifySESError(ctx, err) {
		return apperrors.NewProviderUnavailableError("ses", err.Error())
	}
	return apperrors.NewProviderRejectedError("ses", 0, err.Error())
}
