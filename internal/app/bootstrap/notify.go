package bootstrap

import (
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	appconfig "github.com/wolfman30/pharmesol-assistant/internal/config"
	"github.com/wolfman30/pharmesol-assistant/internal/notify"
	"github.com/wolfman30/pharmesol-assistant/pkg/logging"
)

// BuildEmailSender picks the follow-up email transport from EMAIL_PROVIDER.
func BuildEmailSender(cfg *appconfig.Config, awsCfg aws.Config, logger *logging.Logger) (notify.EmailSender, error) {
	if logger == nil {
		logger = logging.Default()
	}
	switch cfg.EmailProvider {
	case "", "stub":
		logger.Warn("email provider not configured; follow-up emails will only be logged")
		return notify.NewStubEmailSender(logger), nil
	case "sendgrid":
		sender := notify.NewSendGridSender(notify.SendGridConfig{
			APIKey:    cfg.SendGridAPIKey,
			FromEmail: cfg.EmailFromAddress,
			FromName:  cfg.EmailFromName,
		}, logger)
		if sender == nil {
			return nil, fmt.Errorf("bootstrap: SENDGRID_API_KEY is required for the sendgrid email provider")
		}
		return sender, nil
	case "ses":
		if strings.TrimSpace(cfg.EmailFromAddress) == "" {
			return nil, fmt.Errorf("bootstrap: EMAIL_FROM is required for the ses email provider")
		}
		return notify.NewSESSender(sesv2.NewFromConfig(awsCfg), notify.SESConfig{
			FromEmail: cfg.EmailFromAddress,
			FromName:  cfg.EmailFromName,
		}, logger), nil
	default:
		return nil, fmt.Errorf("bootstrap: unknown email provider %q", cfg.EmailProvider)
	}
}

// BuildCallbackScheduler publishes callbacks to SQS when CALLBACK_QUEUE_URL is
// set and logs them otherwise.
func BuildCallbackScheduler(cfg *appconfig.Config, awsCfg aws.Config, logger *logging.Logger) notify.CallbackScheduler {
	if logger == nil {
		logger = logging.Default()
	}
	if strings.TrimSpace(cfg.CallbackQueueURL) == "" {
		logger.Warn("callback queue not configured; callbacks will only be logged")
		return notify.NewLogCallbackScheduler(logger)
	}
	return notify.NewSQSCallbackQueue(sqs.NewFromConfig(awsCfg), cfg.CallbackQueueURL, logger)
}

// BuildNotificationGateway wires email and callback delivery.
func BuildNotificationGateway(cfg *appconfig.Config, awsCfg aws.Config, logger *logging.Logger) (*notify.Gateway, error) {
	email, err := BuildEmailSender(cfg, awsCfg, logger)
	if err != nil {
		return nil, err
	}
	return notify.NewGateway(email, BuildCallbackScheduler(cfg, awsCfg, logger), logger), nil
}
