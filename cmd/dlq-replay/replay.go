package main

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"

	"github.com/aws/aws-lambda-go/events"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/fpang/eventbridge-dlq/internal/document"
	"github.com/fpang/eventbridge-dlq/internal/jsonutil"
	"github.com/fpang/eventbridge-dlq/internal/secrets"
)

// receiveMessageOutput is the shape printed by `aws sqs receive-message`.
type receiveMessageOutput struct {
	Messages []struct {
		MessageId     string
		ReceiptHandle string
		Body          string
	}
}

// parseInput accepts an SQS Lambda event, `aws sqs receive-message` output,
// or anything else as a single message body.
func parseInput(data []byte) (events.SQSEvent, error) {
	keys, err := jsonutil.ObjectKeys(data)
	if err == nil {
		switch {
		case slices.Contains(keys, "Records"):
			var event events.SQSEvent
			if err := json.Unmarshal(data, &event); err != nil {
				return events.SQSEvent{}, fmt.Errorf("decode SQS event: %w", err)
			}
			return event, nil
		case slices.Contains(keys, "Messages"):
			var out receiveMessageOutput
			if err := json.Unmarshal(data, &out); err != nil {
				return events.SQSEvent{}, fmt.Errorf("decode receive-message output: %w", err)
			}
			var event events.SQSEvent
			for _, m := range out.Messages {
				event.Records = append(event.Records, events.SQSMessage{
					MessageId:     m.MessageId,
					ReceiptHandle: m.ReceiptHandle,
					Body:          m.Body,
					EventSource:   "aws:sqs",
				})
			}
			return event, nil
		}
	}

	return events.SQSEvent{Records: []events.SQSMessage{{
		MessageId:   "replay-" + uuid.NewString(),
		Body:        string(data),
		EventSource: "aws:sqs",
	}}}, nil
}

// dryRunUpdater logs the status that would be set.
type dryRunUpdater struct{}

func (dryRunUpdater) UpdateStatus(ctx context.Context, documentID string, status document.Status, _ secrets.Bundle) error {
	zerolog.Ctx(ctx).Info().
		Str("documentId", documentID).
		Str("status", string(status)).
		Msg("Dry run: status not updated")
	return nil
}
