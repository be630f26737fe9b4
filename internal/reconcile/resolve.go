// Package reconcile turns failure notifications from the ingestion DLQ into
// document status updates.
//
// A failed ECS task does not by itself mean the document failed: the task
// may have written all of its chunks before dying, or a deletion may have
// completed before the failure was reported. The chunk store breaks the tie.
//
//	event family | chunks exist | status
//	created      | yes          | finished
//	created      | no           | failed
//	deleted      | yes          | delete_failed
//	deleted      | no           | deleted
//	unknown      | (not asked)  | none
package reconcile

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/fpang/eventbridge-dlq/internal/document"
	"github.com/fpang/eventbridge-dlq/internal/secrets"
)

// ErrUnrecognizedEventType marks an event type outside both families.
var ErrUnrecognizedEventType = errors.New("unrecognized event type")

// ChunkOracle reports whether a document has chunks in the vector store.
type ChunkOracle interface {
	ChunksExist(ctx context.Context, documentID string, creds secrets.Bundle) (bool, error)
}

// StatusUpdater sets a document's status on the documents API.
type StatusUpdater interface {
	UpdateStatus(ctx context.Context, documentID string, status document.Status, creds secrets.Bundle) error
}

// SecretLoader fetches the credentials for one batch.
type SecretLoader interface {
	Load(ctx context.Context) (secrets.Bundle, error)
}

// Resolve computes the status a document should be set to after its task
// failed. Unknown event types resolve to the empty status without touching
// the oracle; known ones query it exactly once.
func Resolve(ctx context.Context, eventType document.EventType, documentID string, oracle ChunkOracle, creds secrets.Bundle) (document.Status, error) {
	family := eventType.Family()
	if family == document.FamilyUnknown {
		return "", nil
	}

	exists, err := oracle.ChunksExist(ctx, documentID, creds)
	if err != nil {
		return "", fmt.Errorf("resolve status for %s: %w", documentID, err)
	}

	status := statusFor(family, exists)
	logger := zerolog.Ctx(ctx)
	switch status {
	case document.StatusFinished:
		logger.Info().Str("documentId", documentID).Msg("Chunks found for failed task - marking as finished")
	case document.StatusDeleteFailed:
		logger.Info().Str("documentId", documentID).Msg("Chunks still exist for failed deletion - marking as delete_failed")
	case document.StatusDeleted:
		logger.Info().Str("documentId", documentID).Msg("No chunks found for failed deletion - marking as deleted")
	}
	return status, nil
}

func statusFor(family document.Family, chunksExist bool) document.Status {
	switch family {
	case document.FamilyCreated:
		if chunksExist {
			return document.StatusFinished
		}
		return document.StatusFailed
	case document.FamilyDeleted:
		if chunksExist {
			return document.StatusDeleteFailed
		}
		return document.StatusDeleted
	}
	return ""
}
