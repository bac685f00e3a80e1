package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/google/uuid"

	"github.com/wolfman30/pharmesol-assistant/internal/phone"
	"github.com/wolfman30/pharmesol-assistant/pkg/logging"
)

// CallbackEventType identifies callback hand-off messages on the sales queue.
const CallbackEventType = "pharmesol.callback.requested.v1"

// CallbackRequested is the event handed to the sales team when a pharmacy
// asks to be called back.
type CallbackRequested struct {
	EventID       string    `json:"eventId"`
	PhoneNumber   string    `json:"phoneNumber"`
	PreferredTime string    `json:"preferredTime"`
	Notes         string    `json:"notes,omitempty"`
	RequestedAt   time.Time `json:"requestedAt"`
}

// CallbackScheduler hands a callback request to whoever places the call.
type CallbackScheduler interface {
	Schedule(ctx context.Context, req CallbackRequested) error
}

type sqsAPI interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// SQSCallbackQueue publishes callback requests to an SQS queue.
type SQSCallbackQueue struct {
	client   sqsAPI
	queueURL string
	logger   *logging.Logger
}

// NewSQSCallbackQueue creates a queue publisher around the provided SQS client.
func NewSQSCallbackQueue(client sqsAPI, queueURL string, logger *logging.Logger) *SQSCallbackQueue {
	if client == nil {
		panic("notify: SQS client cannot be nil")
	}
	if queueURL == "" {
		panic("notify: SQS queueURL cannot be empty")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &SQSCallbackQueue{client: client, queueURL: queueURL, logger: logger}
}

// Schedule serializes the request and sends it to the queue.
func (q *SQSCallbackQueue) Schedule(ctx context.Context, req CallbackRequested) error {
	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("notify: marshal callback request: %w", err)
	}
	out, err := q.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(q.queueURL),
		MessageBody: aws.String(string(body)),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"eventType": {
				DataType:    aws.String("String"),
				StringValue: aws.String(CallbackEventType),
			},
		},
	})
	if err != nil {
		return fmt.Errorf("notify: failed to send SQS message: %w", err)
	}
	q.logger.Info("callback request queued",
		"event_id", req.EventID,
		"phone", phone.Last4(req.PhoneNumber),
		"message_id", aws.ToString(out.MessageId),
	)
	return nil
}

// LogCallbackScheduler records callback requests in the log only. It is used
// when no queue is configured.
type LogCallbackScheduler struct {
	logger *logging.Logger
}

// NewLogCallbackScheduler creates a scheduler that logs but doesn't hand off.
func NewLogCallbackScheduler(logger *logging.Logger) *LogCallbackScheduler {
	if logger == nil {
		logger = logging.Default()
	}
	return &LogCallbackScheduler{logger: logger}
}

// Schedule logs the request.
func (s *LogCallbackScheduler) Schedule(ctx context.Context, req CallbackRequested) error {
	s.logger.Info("stub callback scheduler: would schedule callback",
		"event_id", req.EventID,
		"phone", phone.Last4(req.PhoneNumber),
		"preferred_time", req.PreferredTime,
		"has_notes", req.Notes != "",
	)
	return nil
}

func newCallbackRequested(phoneNumber, preferredTime, notes string, now time.Time) CallbackRequested {
	return CallbackRequested{
		EventID:       uuid.NewString(),
		PhoneNumber:   phoneNumber,
		PreferredTime: preferredTime,
		Notes:         notes,
		RequestedAt:   now.UTC(),
	}
}

var (
	_ CallbackScheduler = (*SQSCallbackQueue)(nil)
	_ CallbackScheduler = (*LogCallbackScheduler)(nil)
)
