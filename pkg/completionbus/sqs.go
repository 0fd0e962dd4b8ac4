package completionbus

import (
	"context"
	"encoding/json"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"github.com/tobiasegelund/duckingit/pkg/config"
	"github.com/tobiasegelund/duckingit/pkg/lakeerr"
)

// message mirrors the completion envelope a worker function emits:
// a requestContext carrying the id the Dispatcher handed out, and
// (on the failure queue) an errorMessage.
type message struct {
	RequestContext struct {
		RequestID string `json:"requestId"`
	} `json:"requestContext"`
	OutputKey       string `json:"outputKey,omitempty"`
	ResponsePayload struct {
		ErrorMessage string `json:"errorMessage,omitempty"`
	} `json:"responsePayload"`
}

// SQS is the AWS SQS binding of Bus: one success queue, one failure
// queue, each polled and acknowledged independently.
type SQS struct {
	client          *sqs.Client
	successQueueURL string
	failureQueueURL string
	cfg             config.BusConfig

	// handleQueues maps an outstanding receipt handle back to the
	// queue URL it came from, so Ack can route DeleteMessage calls
	// without the caller needing to track that itself.
	handleQueues map[string]string
}

// NewSQS resolves cfg's queue names to URLs and returns a ready SQS bus.
func NewSQS(ctx context.Context, cfg config.BusConfig) (*SQS, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, lakeerr.Wrap(err, lakeerr.KindConfigError, "loading AWS configuration")
	}
	client := sqs.NewFromConfig(awsCfg)

	successURL, err := resolveQueueURL(ctx, client, cfg.QueueSuccess)
	if err != nil {
		return nil, err
	}
	failureURL, err := resolveQueueURL(ctx, client, cfg.QueueFailure)
	if err != nil {
		return nil, err
	}

	return &SQS{
		client:          client,
		successQueueURL: successURL,
		failureQueueURL: failureURL,
		cfg:             cfg,
		handleQueues:    make(map[string]string),
	}, nil
}

func resolveQueueURL(ctx context.Context, client *sqs.Client, name string) (string, error) {
	out, err := client.GetQueueUrl(ctx, &sqs.GetQueueUrlInput{QueueName: &name})
	if err != nil {
		return "", lakeerr.Wrapf(err, lakeerr.KindConfigError, "resolving queue %s", name)
	}
	return *out.QueueUrl, nil
}

func (b *SQS) PublishSuccess(ctx context.Context, requestID, outputKey string) error {
	var msg message
	msg.RequestContext.RequestID = requestID
	msg.OutputKey = outputKey
	return b.send(ctx, b.successQueueURL, msg)
}

func (b *SQS) PublishFailure(ctx context.Context, requestID, reason string) error {
	var msg message
	msg.RequestContext.RequestID = requestID
	msg.ResponsePayload.ErrorMessage = reason
	return b.send(ctx, b.failureQueueURL, msg)
}

func (b *SQS) send(ctx context.Context, queueURL string, msg message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return lakeerr.Wrap(err, lakeerr.KindInternal, "encoding completion message")
	}
	bodyStr := string(body)
	_, err = b.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    &queueURL,
		MessageBody: &bodyStr,
	})
	if err != nil {
		return lakeerr.Wrap(err, lakeerr.KindDispatchError, "publishing completion message")
	}
	return nil
}

func (b *SQS) PollSuccess(ctx context.Context, maxWait time.Duration) ([]Event, error) {
	return b.poll(ctx, b.successQueueURL, maxWait)
}

func (b *SQS) PollFailure(ctx context.Context, maxWait time.Duration) ([]Event, error) {
	return b.poll(ctx, b.failureQueueURL, maxWait)
}

// poll issues one ReceiveMessage call against queueURL, bounded by
// both the configured WaitTimeSeconds (long-poll) and the caller's
// maxWait, and leaves every returned message in flight (neither
// deleted nor visibility-extended) until the Controller calls Ack.
func (b *SQS) poll(ctx context.Context, queueURL string, maxWait time.Duration) ([]Event, error) {
	waitCtx := ctx
	if maxWait > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, maxWait)
		defer cancel()
	}

	out, err := b.client.ReceiveMessage(waitCtx, &sqs.ReceiveMessageInput{
		QueueUrl:            &queueURL,
		MaxNumberOfMessages: int32(b.cfg.MaxNumberOfMessages),
		VisibilityTimeout:   int32(b.cfg.VisibilityTimeout),
		WaitTimeSeconds:     int32(minInt(b.cfg.WaitTimeSeconds, 20)),
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, lakeerr.Wrap(ctx.Err(), lakeerr.KindStageTimeout, "waiting for task completion")
		}
		return nil, lakeerr.Wrap(err, lakeerr.KindDispatchError, "polling completion queue")
	}

	events := make([]Event, 0, len(out.Messages))
	for _, m := range out.Messages {
		var parsed message
		if err := json.Unmarshal([]byte(*m.Body), &parsed); err != nil {
			return nil, lakeerr.Wrap(err, lakeerr.KindInternal, "decoding completion message")
		}

		handle := *m.ReceiptHandle
		b.handleQueues[handle] = queueURL

		event := Event{
			RequestID: parsed.RequestContext.RequestID,
			OutputKey: parsed.OutputKey,
			Handle:    handle,
		}
		if queueURL == b.failureQueueURL {
			event.Err = lakeerr.NewTaskFailed(parsed.RequestContext.RequestID, parsed.ResponsePayload.ErrorMessage)
		}
		events = append(events, event)
	}
	return events, nil
}

// Ack deletes each handle from whichever queue it was received from.
func (b *SQS) Ack(ctx context.Context, handles []string) error {
	for _, h := range handles {
		queueURL, ok := b.handleQueues[h]
		if !ok {
			continue
		}
		delete(b.handleQueues, h)
		receipt := h
		if _, err := b.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
			QueueUrl:      &queueURL,
			ReceiptHandle: &receipt,
		}); err != nil {
			return lakeerr.Wrap(err, lakeerr.KindDispatchError, "acknowledging completion message")
		}
	}
	return nil
}

// Purge drains both queues of whatever is currently visible,
// including any handles this binding already holds in flight, so a
// stale failure message from an aborted stage can't resurface on the
// next one. It does not use SQS's own PurgeQueue API: that call has a
// 60-second cooldown between invocations, too coarse for a purge that
// may run once per failed stage.
func (b *SQS) Purge(ctx context.Context) error {
	for h, queueURL := range b.handleQueues {
		receipt := h
		_, _ = b.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{QueueUrl: &queueURL, ReceiptHandle: &receipt})
		delete(b.handleQueues, h)
	}
	if err := b.drainQueue(ctx, b.successQueueURL); err != nil {
		return err
	}
	return b.drainQueue(ctx, b.failureQueueURL)
}

func (b *SQS) drainQueue(ctx context.Context, queueURL string) error {
	for {
		out, err := b.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
			QueueUrl:            &queueURL,
			MaxNumberOfMessages: int32(b.cfg.MaxNumberOfMessages),
			WaitTimeSeconds:     0,
		})
		if err != nil {
			return lakeerr.Wrap(err, lakeerr.KindDispatchError, "draining completion queue")
		}
		if len(out.Messages) == 0 {
			return nil
		}
		b.deleteAll(ctx, queueURL, out.Messages)
	}
}

func (b *SQS) deleteAll(ctx context.Context, queueURL string, msgs []types.Message) {
	for _, m := range msgs {
		_, _ = b.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{QueueUrl: &queueURL, ReceiptHandle: m.ReceiptHandle})
	}
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// ApplyBusConfig implements config.BusConfigurable.
func (b *SQS) ApplyBusConfig(ctx context.Context, cfg config.BusConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	successURL, err := resolveQueueURL(ctx, b.client, cfg.QueueSuccess)
	if err != nil {
		return err
	}
	failureURL, err := resolveQueueURL(ctx, b.client, cfg.QueueFailure)
	if err != nil {
		return err
	}
	b.cfg = cfg
	b.successQueueURL = successURL
	b.failureQueueURL = failureURL
	return nil
}
