// Package document defines the vocabulary shared by the DLQ reconciliation
// pipeline: the statuses the documents API accepts, the S3 event types that
// trigger ingestion tasks, and how a document ID is derived from an object key.
package document

import (
	"path"
	"strings"
)

// Status is a document status accepted by the documents API.
// The zero value means no status was resolved and nothing should be sent.
type Status string

const (
	StatusFinished     Status = "finished"
	StatusFailed       Status = "failed"
	StatusDeleted      Status = "deleted"
	StatusDeleteFailed Status = "delete_failed"
)

// Valid reports whether s is one of the four assignable statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusFinished, StatusFailed, StatusDeleted, StatusDeleteFailed:
		return true
	}
	return false
}

// EventType is the S3 event that started the failed ingestion task, carried
// to the task in its EVENT_TYPE environment variable.
type EventType string

const (
	EventObjectCreated   EventType = "Object Created"
	EventObjectTagsAdded EventType = "Object Tags Added"
	EventObjectDeleted   EventType = "Object Deleted"
)

// Family groups event types by the kind of task they start.
type Family int

const (
	FamilyUnknown Family = iota
	FamilyCreated
	FamilyDeleted
)

func (f Family) String() string {
	switch f {
	case FamilyCreated:
		return "created"
	case FamilyDeleted:
		return "deleted"
	default:
		return "unknown"
	}
}

// Family classifies the event type. Deletions are signalled either by a
// delete-marker tag or by the object removal itself.
func (e EventType) Family() Family {
	switch e {
	case EventObjectCreated:
		return FamilyCreated
	case EventObjectTagsAdded, EventObjectDeleted:
		return FamilyDeleted
	default:
		return FamilyUnknown
	}
}

// IDFromObjectKey returns the document ID for an S3 object key: the final
// path segment with its last extension removed. A dot that starts or ends
// the segment does not begin an extension.
//
//	docs/2024/abc-123.pdf -> abc-123
//	archive.tar.gz        -> archive.tar
//	.env                  -> .env
//	docs/abc.             -> abc.
func IDFromObjectKey(key string) string {
	base := path.Base(strings.TrimRight(key, "/"))
	if base == "." || base == "/" {
		return ""
	}
	if i := strings.LastIndex(base, "."); i > 0 && i < len(base)-1 {
		return base[:i]
	}
	return base
}
