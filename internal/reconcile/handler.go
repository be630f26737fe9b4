package reconcile

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambdacontext"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/fpang/eventbridge-dlq/internal/envelope"
	"github.com/fpang/eventbridge-dlq/internal/jsonutil"
	"github.com/fpang/eventbridge-dlq/internal/metrics"
	"github.com/fpang/eventbridge-dlq/internal/secrets"
)

// rawBodyPreview caps how much of an undecodable body is logged.
const rawBodyPreview = 200

// Handler processes one SQS batch from the ingestion DLQ. Records are handled
// strictly in order; the first fatal record stops the batch.
type Handler struct {
	Secrets SecretLoader
	Oracle  ChunkOracle
	Updater StatusUpdater

	// Metrics receives one EMF document per batch. Nil means stdout.
	Metrics io.Writer
}

// Handle is the Lambda entry point. It returns nil when every record was
// either updated or skipped, and an error when secrets could not be fetched
// or a record failed in a way a redelivery could fix.
func (h *Handler) Handle(ctx context.Context, event events.SQSEvent) error {
	start := time.Now()
	invID := invocationID(ctx)
	logger := log.With().Str("invocationId", invID).Logger()
	ctx = logger.WithContext(ctx)

	rec := h.recorder().Property("invocationId", invID)
	defer func() {
		rec.Metric("BatchDurationMs", float64(time.Since(start).Milliseconds()), metrics.UnitMilliseconds)
		rec.Flush()
	}()

	logger.Info().Int("recordCount", len(event.Records)).Msg("DLQ Lambda invocation received")
	rec.Add("RecordsReceived", len(event.Records))
	if len(event.Records) == 0 {
		logger.Info().Msg("No records in event; nothing to process")
		return nil
	}

	creds, setup := h.setup(ctx)
	if setup.Kind == OutcomeFatal {
		rec.Count("BatchFailures")
		logger.Error().Err(setup.Err).Msg("Aborting batch: could not fetch required secrets")
		return setup.Err
	}

	for i, record := range event.Records {
		rlog := logger.With().Str("messageId", record.MessageId).Int("index", i).Logger()
		out := h.processRecord(rlog.WithContext(ctx), record, creds)

		switch out.Kind {
		case OutcomeOK:
			rec.Count("StatusUpdates").Count("Status_" + string(out.Status))
		case OutcomeSkip:
			rec.Count("RecordsSkipped")
		case OutcomeFatal:
			rec.Count("BatchFailures")
			rlog.Error().Err(out.Err).
				Str("reason", out.Reason).
				Str("documentId", out.DocumentID).
				Int("remaining", len(event.Records)-i-1).
				Msg("Failed to handle task failure event; aborting batch for redrive")
			return fmt.Errorf("message %s: %w", record.MessageId, out.Err)
		}
	}

	logger.Info().Dur("duration", time.Since(start)).Msg("DLQ batch complete")
	return nil
}

// setup fetches the batch credentials. Any failure is fatal for the batch.
func (h *Handler) setup(ctx context.Context) (secrets.Bundle, Outcome) {
	creds, err := h.Secrets.Load(ctx)
	if err != nil {
		if !errors.Is(err, secrets.ErrUnavailable) {
			err = fmt.Errorf("%w: %v", secrets.ErrUnavailable, err)
		}
		return secrets.Bundle{}, fatalOutcome("secrets unavailable", "", err)
	}
	zerolog.Ctx(ctx).Debug().Object("secrets", creds).Msg("Batch secrets loaded")
	return creds, Outcome{Kind: OutcomeOK}
}

// processRecord runs one record through parse, normalize, resolve and
// update, and classifies how it ended.
func (h *Handler) processRecord(ctx context.Context, record events.SQSMessage, creds secrets.Bundle) Outcome {
	logger := zerolog.Ctx(ctx)

	payload, err := envelope.Parse([]byte(record.Body))
	if err != nil {
		logger.Error().Err(err).
			Str("rawBody", jsonutil.Preview(record.Body, rawBodyPreview)).
			Msg("Bad JSON body in SQS message; skipping")
		return skipOutcome("malformed body", err)
	}

	fields, kind := envelope.Normalize(payload)
	if !fields.OK() {
		logger.Error().
			Strs("payloadKeys", payload.Keys).
			Str("envelope", kind.String()).
			Str("detailType", payload.DetailType).
			Msg("Missing S3_OBJECT_KEY or EVENT_TYPE in task failure event; skipping")
		return skipOutcome("missing fields", envelope.ErrMalformed)
	}

	logger.Debug().
		Str("envelope", kind.String()).
		Str("detailType", payload.DetailType).
		Str("source", payload.Source).
		Str("taskArn", payload.TaskArn()).
		Str("lastStatus", payload.LastStatus()).
		Str("stoppedReason", payload.StoppedReason()).
		Str("bucket", fields.Bucket).
		Str("objectKey", fields.ObjectKey).
		Msg("Task failure event normalized")

	status, err := Resolve(ctx, fields.EventType, fields.DocumentID, h.Oracle, creds)
	if err != nil {
		return fatalOutcome("chunk store unavailable", fields.DocumentID, err)
	}
	if status == "" {
		logger.Error().
			Str("eventType", string(fields.EventType)).
			Str("documentId", fields.DocumentID).
			Msg("Unknown EVENT_TYPE in task failure event; skipping")
		return skipOutcome("unrecognized event type", ErrUnrecognizedEventType)
	}

	logger.Info().
		Str("documentId", fields.DocumentID).
		Str("eventType", string(fields.EventType)).
		Str("status", string(status)).
		Str("envelope", kind.String()).
		Str("taskArn", payload.TaskArn()).
		Msg("Handling task failure event")

	if err := h.Updater.UpdateStatus(ctx, fields.DocumentID, status, creds); err != nil {
		return fatalOutcome("status update failed", fields.DocumentID, err)
	}
	return okOutcome(fields.DocumentID, status)
}

func (h *Handler) recorder() *metrics.Recorder {
	if h.Metrics == nil {
		return metrics.New(metrics.Namespace)
	}
	return metrics.NewWithWriter(metrics.Namespace, h.Metrics)
}

// invocationID prefers the Lambda request ID so logs line up with the
// platform's REPORT lines; local runs get a random one.
func invocationID(ctx context.Context) string {
	if lc, ok := lambdacontext.FromContext(ctx); ok && lc.AwsRequestID != "" {
		return lc.AwsRequestID
	}
	return uuid.NewString()
}
