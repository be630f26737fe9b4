package reconcile

import (
	"context"
	"errors"
	"testing"

	"github.com/fpang/eventbridge-dlq/internal/document"
	"github.com/fpang/eventbridge-dlq/internal/secrets"
)

// fakeOracle answers ChunksExist from a fixed map and counts calls.
type fakeOracle struct {
	exists map[string]bool
	err    error
	calls  []string
}

func (f *fakeOracle) ChunksExist(_ context.Context, documentID string, _ secrets.Bundle) (bool, error) {
	f.calls = append(f.calls, documentID)
	if f.err != nil {
		return false, f.err
	}
	return f.exists[documentID], nil
}

func TestResolve_DecisionTable(t *testing.T) {
	tests := []struct {
		eventType document.EventType
		exists    bool
		want      document.Status
	}{
		{document.EventObjectCreated, true, document.StatusFinished},
		{document.EventObjectCreated, false, document.StatusFailed},
		{document.EventObjectTagsAdded, true, document.StatusDeleteFailed},
		{document.EventObjectTagsAdded, false, document.StatusDeleted},
		{document.EventObjectDeleted, true, document.StatusDeleteFailed},
		{document.EventObjectDeleted, false, document.StatusDeleted},
	}

	for _, tt := range tests {
		t.Run(string(tt.eventType), func(t *testing.T) {
			oracle := &fakeOracle{exists: map[string]bool{"doc": tt.exists}}
			got, err := Resolve(context.Background(), tt.eventType, "doc", oracle, secrets.Bundle{})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("Resolve(%s, exists=%v) = %q, want %q", tt.eventType, tt.exists, got, tt.want)
			}
			if len(oracle.calls) != 1 || oracle.calls[0] != "doc" {
				t.Errorf("expected exactly one oracle call for doc, got %v", oracle.calls)
			}
		})
	}
}

func TestResolve_UnknownEventTypeSkipsOracle(t *testing.T) {
	for _, et := range []document.EventType{"", "Object Restore Completed", "object created"} {
		oracle := &fakeOracle{}
		got, err := Resolve(context.Background(), et, "doc", oracle, secrets.Bundle{})
		if err != nil {
			t.Errorf("Resolve(%q) returned error: %v", et, err)
		}
		if got != "" {
			t.Errorf("Resolve(%q) = %q, want empty status", et, got)
		}
		if len(oracle.calls) != 0 {
			t.Errorf("Resolve(%q) queried the oracle %d times", et, len(oracle.calls))
		}
	}
}

func TestResolve_OracleErrorPropagates(t *testing.T) {
	storeErr := errors.New("connection refused")
	oracle := &fakeOracle{err: storeErr}

	got, err := Resolve(context.Background(), document.EventObjectCreated, "doc-1", oracle, secrets.Bundle{})
	if !errors.Is(err, storeErr) {
		t.Fatalf("expected wrapped store error, got %v", err)
	}
	if got != "" {
		t.Errorf("expected no status on error, got %q", got)
	}
}
