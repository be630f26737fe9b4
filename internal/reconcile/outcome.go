package reconcile

import "github.com/fpang/eventbridge-dlq/internal/document"

// OutcomeKind classifies how a record (or batch setup) ended.
type OutcomeKind int

const (
	// OutcomeOK means the document status was updated.
	OutcomeOK OutcomeKind = iota
	// OutcomeSkip means the record can never be processed; redelivery
	// would not help, so the batch moves on.
	OutcomeSkip
	// OutcomeFatal means the record might succeed later. The batch stops
	// and the error is returned so the queue redrives it.
	OutcomeFatal
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeOK:
		return "ok"
	case OutcomeSkip:
		return "skip"
	case OutcomeFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Outcome is the result of processing one record.
type Outcome struct {
	Kind       OutcomeKind
	Reason     string
	DocumentID string
	Status     document.Status
	Err        error
}

func okOutcome(documentID string, status document.Status) Outcome {
	return Outcome{Kind: OutcomeOK, DocumentID: documentID, Status: status}
}

func skipOutcome(reason string, err error) Outcome {
	return Outcome{Kind: OutcomeSkip, Reason: reason, Err: err}
}

func fatalOutcome(reason, documentID string, err error) Outcome {
	return Outcome{Kind: OutcomeFatal, Reason: reason, DocumentID: documentID, Err: err}
}
