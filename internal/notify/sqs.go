// Package notify schedules dawn alerts by enqueueing them on SQS for a
// downstream delivery worker.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqsTypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/google/uuid"

	"katabatic/internal/types"
)

// maxDelay is the SQS limit on per-message delivery delay.
const maxDelay = 15 * time.Minute

// DefaultLeadTime is how long before the prediction window the alert fires.
const DefaultLeadTime = 30 * time.Minute

// SQSSender abstracts the SQS SendMessage operation for testability.
// Production code uses the *sqs.Client from aws-sdk-go-v2.
type SQSSender interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// Notification is the message body consumed by the delivery worker.
type Notification struct {
	ID             string               `json:"id"`
	Title          string               `json:"title"`
	Body           string               `json:"body"`
	TriggerAt      time.Time            `json:"trigger_at"`
	TargetDate     types.CalendarDate   `json:"target_date"`
	PredictionID   string               `json:"prediction_id,omitempty"`
	Probability    int                  `json:"probability"`
	Recommendation types.Recommendation `json:"recommendation"`
}

// Scheduler enqueues notifications.
type Scheduler struct {
	client   SQSSender
	queueURL string
	now      func() time.Time
	logger   *slog.Logger
}

// NewScheduler creates a Scheduler that sends to queueURL.
func NewScheduler(client SQSSender, queueURL string, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{client: client, queueURL: queueURL, now: time.Now, logger: logger}
}

// BuildNotification derives the alert for a go prediction. The trigger time
// is the start of the best window on target, in loc, minus lead.
func BuildNotification(p types.Prediction, target types.CalendarDate, predictionID string, loc *time.Location, lead time.Duration) (Notification, error) {
	window := types.TimeWindow{Start: "06:00", End: "08:00"}
	if p.BestWindow != nil {
		window = types.TimeWindow{Start: p.BestWindow.Start, End: p.BestWindow.End}
	}
	startHour, _, err := window.Hours()
	if err != nil {
		return Notification{}, err
	}
	triggerAt := target.Start(loc).Add(time.Duration(startHour)*time.Hour - lead)

	return Notification{
		ID:             uuid.New().String(),
		Title:          fmt.Sprintf("Katabatic %s: %d%% for %s", strings.ToUpper(string(p.Recommendation)), p.Probability, target),
		Body:           fmt.Sprintf("%s Best window %s.", p.Explanation, window),
		TriggerAt:      triggerAt,
		TargetDate:     target,
		PredictionID:   predictionID,
		Probability:    p.Probability,
		Recommendation: p.Recommendation,
	}, nil
}

// Schedule enqueues n and returns the SQS message ID. Messages due within
// the SQS delay limit are delayed until their trigger time; later ones are
// delivered immediately and the worker holds them until TriggerAt.
func (s *Scheduler) Schedule(ctx context.Context, n Notification) (string, error) {
	if s.queueURL == "" {
		return "", types.NewAppError(types.ErrCodeUpstreamNotifications, "notification queue is not configured", nil)
	}

	body, err := json.Marshal(n)
	if err != nil {
		return "", fmt.Errorf("notify: failed to marshal notification: %w", err)
	}

	var delay int32
	if until := n.TriggerAt.Sub(s.now()); until > 0 && until <= maxDelay {
		delay = int32(until / time.Second)
	}

	out, err := s.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:     aws.String(s.queueURL),
		MessageBody:  aws.String(string(body)),
		DelaySeconds: delay,
		MessageAttributes: map[string]sqsTypes.MessageAttributeValue{
			"target_date": {
				DataType:    aws.String("String"),
				StringValue: aws.String(n.TargetDate.String()),
			},
			"recommendation": {
				DataType:    aws.String("String"),
				StringValue: aws.String(string(n.Recommendation)),
			},
		},
	})
	if err != nil {
		return "", types.NewAppError(types.ErrCodeUpstreamNotifications,
			fmt.Sprintf("failed to enqueue notification to %s", s.queueURL), err)
	}
	if out == nil || out.MessageId == nil {
		return "", types.NewAppError(types.ErrCodeUpstreamNotifications, "queue returned no message id", errors.New("empty SendMessage output"))
	}

	s.logger.InfoContext(ctx, "notification scheduled",
		"message_id", *out.MessageId,
		"notification_id", n.ID,
		"target_date", n.TargetDate.String(),
		"trigger_at", n.TriggerAt,
		"delay_seconds", delay,
	)
	return *out.MessageId, nil
}
