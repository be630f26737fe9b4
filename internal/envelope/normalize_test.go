package envelope

import (
	"errors"
	"reflect"
	"testing"

	"github.com/fpang/eventbridge-dlq/internal/document"
)

const (
	taskStateChangeBody = `{
		"version": "0",
		"detail-type": "ECS Task State Change",
		"source": "aws.ecs",
		"detail": {
			"taskArn": "arn:aws:ecs:us-east-1:123456789012:task/ingest/abc",
			"lastStatus": "STOPPED",
			"stoppedReason": "Essential container in task exited",
			"overrides": {
				"containerOverrides": [
					{"name": "ingest", "environment": [
						{"name": "S3_BUCKET_NAME", "value": "uploads"},
						{"name": "S3_OBJECT_KEY", "value": "docs/abc-123.pdf"},
						{"name": "EVENT_TYPE", "value": "Object Created"}
					]}
				]
			}
		}
	}`

	apiCallBody = `{
		"detail-type": "AWS API Call via CloudTrail",
		"detail": {
			"requestParameters": {
				"cluster": "ingest",
				"overrides": {
					"containerOverrides": [
						{"name": "ingest", "environment": [
							{"name": "S3_OBJECT_KEY", "value": "docs/abc-123.pdf"},
							{"name": "EVENT_TYPE", "value": "Object Created"}
						]}
					]
				}
			}
		}
	}`

	flatBody = `{
		"cluster": "ingest",
		"containerOverrides": [
			{"name": "ingest", "environment": [
				{"name": "EVENT_TYPE", "value": "Object Created"},
				{"name": "S3_OBJECT_KEY", "value": "docs/abc-123.pdf"}
			]}
		]
	}`
)

func mustParse(t *testing.T, body string) *Payload {
	t.Helper()
	p, err := Parse([]byte(body))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	return p
}

func TestNormalize_AllShapesAgree(t *testing.T) {
	want := Fields{DocumentID: "abc-123", EventType: document.EventObjectCreated, ObjectKey: "docs/abc-123.pdf"}

	tests := []struct {
		name string
		body string
		kind Kind
	}{
		{"task state change", taskStateChangeBody, KindTaskStateChange},
		{"api call", apiCallBody, KindAPICall},
		{"flat container overrides", flatBody, KindContainerOverrides},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, kind := Normalize(mustParse(t, tt.body))
			if kind != tt.kind {
				t.Errorf("expected kind %v, got %v", tt.kind, kind)
			}
			if got.DocumentID != want.DocumentID || got.EventType != want.EventType || got.ObjectKey != want.ObjectKey {
				t.Errorf("expected %+v, got %+v", want, got)
			}
			if !got.OK() {
				t.Error("expected OK fields")
			}
		})
	}
}

func TestMatch_Isolated(t *testing.T) {
	p := mustParse(t, apiCallBody)
	if _, ok := Match(p, KindTaskStateChange); ok {
		t.Error("api call body must not match the task state change shape")
	}
	if _, ok := Match(p, KindContainerOverrides); ok {
		t.Error("api call body must not match the flat shape")
	}
	f, ok := Match(p, KindAPICall)
	if !ok || f.DocumentID != "abc-123" {
		t.Errorf("expected api call match with abc-123, got %+v ok=%v", f, ok)
	}
	if _, ok := Match(p, KindNone); ok {
		t.Error("KindNone has no matcher")
	}
}

func TestNormalize_Precedence(t *testing.T) {
	body := `{
		"detail": {
			"overrides": {"containerOverrides": [{"environment": [
				{"name": "S3_OBJECT_KEY", "value": "a/first.pdf"},
				{"name": "EVENT_TYPE", "value": "Object Created"}
			]}]},
			"requestParameters": {"overrides": {"containerOverrides": [{"environment": [
				{"name": "S3_OBJECT_KEY", "value": "a/second.pdf"},
				{"name": "EVENT_TYPE", "value": "Object Created"}
			]}]}}
		},
		"containerOverrides": [{"environment": [
			{"name": "S3_OBJECT_KEY", "value": "a/third.pdf"},
			{"name": "EVENT_TYPE", "value": "Object Created"}
		]}]
	}`
	f, kind := Normalize(mustParse(t, body))
	if kind != KindTaskStateChange || f.DocumentID != "first" {
		t.Errorf("expected task state change with first, got %v %+v", kind, f)
	}
}

func TestNormalize_NullFallsThrough(t *testing.T) {
	body := `{
		"detail": {"overrides": {"containerOverrides": null}},
		"containerOverrides": [{"environment": [
			{"name": "S3_OBJECT_KEY", "value": "k/doc.txt"},
			{"name": "EVENT_TYPE", "value": "Object Tags Added"}
		]}]
	}`
	f, kind := Normalize(mustParse(t, body))
	if kind != KindContainerOverrides {
		t.Errorf("expected flat shape after null, got %v", kind)
	}
	if f.DocumentID != "doc" || f.EventType != document.EventObjectTagsAdded {
		t.Errorf("unexpected fields: %+v", f)
	}
}

func TestNormalize_EmptyListSelectsEnvelope(t *testing.T) {
	body := `{
		"detail": {"overrides": {"containerOverrides": []}},
		"containerOverrides": [{"environment": [
			{"name": "S3_OBJECT_KEY", "value": "k/doc.txt"},
			{"name": "EVENT_TYPE", "value": "Object Created"}
		]}]
	}`
	f, kind := Normalize(mustParse(t, body))
	if kind != KindTaskStateChange {
		t.Errorf("expected task state change, got %v", kind)
	}
	if f.OK() || f != (Fields{}) {
		t.Errorf("expected empty fields, got %+v", f)
	}
}

func TestNormalize_PartialFieldsAreAbsent(t *testing.T) {
	tests := []struct {
		name string
		env  string
	}{
		{"missing event type", `[{"name": "S3_OBJECT_KEY", "value": "docs/abc.pdf"}]`},
		{"missing object key", `[{"name": "EVENT_TYPE", "value": "Object Created"}]`},
		{"empty event type", `[{"name": "S3_OBJECT_KEY", "value": "docs/abc.pdf"}, {"name": "EVENT_TYPE", "value": ""}]`},
		{"empty object key", `[{"name": "S3_OBJECT_KEY", "value": ""}, {"name": "EVENT_TYPE", "value": "Object Created"}]`},
		{"no environment", `[]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := `{"containerOverrides": [{"environment": ` + tt.env + `}]}`
			f, _ := Normalize(mustParse(t, body))
			if f != (Fields{}) {
				t.Errorf("expected both fields absent, got %+v", f)
			}
		})
	}
}

func TestNormalize_UsesFirstOverrideOnly(t *testing.T) {
	body := `{"containerOverrides": [
		{"name": "sidecar", "environment": []},
		{"name": "ingest", "environment": [
			{"name": "S3_OBJECT_KEY", "value": "docs/abc.pdf"},
			{"name": "EVENT_TYPE", "value": "Object Created"}
		]}
	]}`
	f, _ := Normalize(mustParse(t, body))
	if f.OK() {
		t.Errorf("expected only the first override to be read, got %+v", f)
	}
}

func TestNormalize_Unrecognized(t *testing.T) {
	for _, body := range []string{`{}`, `{"detail": {}}`, `{"detail": {"requestParameters": {}}}`, `{"Records": []}`} {
		f, kind := Normalize(mustParse(t, body))
		if kind != KindNone || f.OK() {
			t.Errorf("%s: expected KindNone, got %v %+v", body, kind, f)
		}
	}
	if _, kind := Normalize(nil); kind != KindNone {
		t.Error("nil payload must normalize to KindNone")
	}
}

func TestEnvironmentMap_LastWins(t *testing.T) {
	env := Environment{
		{Name: "S3_OBJECT_KEY", Value: "docs/old.pdf"},
		{Name: "EVENT_TYPE", Value: "Object Created"},
		{Name: "S3_OBJECT_KEY", Value: "docs/new.pdf"},
	}
	m := env.Map()
	if m["S3_OBJECT_KEY"] != "docs/new.pdf" {
		t.Errorf("expected last value to win, got %q", m["S3_OBJECT_KEY"])
	}
	if len(m) != 2 {
		t.Errorf("expected 2 entries, got %d", len(m))
	}
}

func TestParse(t *testing.T) {
	p := mustParse(t, taskStateChangeBody)
	if p.DetailType != DetailTypeTaskStateChange {
		t.Errorf("unexpected detail-type %q", p.DetailType)
	}
	if p.TaskArn() == "" || p.StoppedReason() == "" || p.LastStatus() != "STOPPED" {
		t.Error("expected task context to be decoded")
	}
	if f, _ := Normalize(p); f.Bucket != "uploads" {
		t.Errorf("expected bucket from S3_BUCKET_NAME, got %q", f.Bucket)
	}
	if p.Source != "aws.ecs" {
		t.Errorf("unexpected source %q", p.Source)
	}
	want := []string{"detail", "detail-type", "source", "version"}
	if !reflect.DeepEqual(p.Keys, want) {
		t.Errorf("expected keys %v, got %v", want, p.Keys)
	}
}

func TestParse_Malformed(t *testing.T) {
	for _, body := range []string{
		`{not json`,
		`[1, 2, 3]`,
		`"just a string"`,
		`null`,
	} {
		_, err := Parse([]byte(body))
		if !errors.Is(err, ErrMalformed) {
			t.Errorf("%s: expected ErrMalformed, got %v", body, err)
		}
	}
}

func TestNormalize_ToleratesUnrelatedFields(t *testing.T) {
	const env = `[
		{"name": "RETRIES", "value": 3},
		{"name": "S3_OBJECT_KEY", "value": "docs/abc.pdf"},
		{"name": 7, "value": "ignored"},
		{"name": "EVENT_TYPE", "value": "Object Created"}
	]`
	tests := []struct {
		name string
		body string
	}{
		{"numeric env value", `{"containerOverrides": [{"environment": ` + env + `}]}`},
		{"string detail", `{"detail": "n/a", "containerOverrides": [{"environment": ` + env + `}]}`},
		{"numeric source", `{"source": 1, "detail-type": ["x"], "containerOverrides": [{"environment": ` + env + `}]}`},
		{"wrong-typed earlier shape", `{"detail": {"overrides": {"containerOverrides": "oops"}, "taskArn": 5}, "containerOverrides": [{"environment": ` + env + `}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := mustParse(t, tt.body)
			f, kind := Normalize(p)
			if kind != KindContainerOverrides {
				t.Errorf("expected flat shape, got %v", kind)
			}
			if f.DocumentID != "abc" || f.EventType != document.EventObjectCreated {
				t.Errorf("expected abc/Object Created, got %+v", f)
			}
			if p.Source != "" || p.DetailType != "" {
				t.Errorf("non-string source/detail-type should read as empty, got %q %q", p.Source, p.DetailType)
			}
			if p.TaskArn() != "" {
				t.Errorf("non-string taskArn should read as empty, got %q", p.TaskArn())
			}
		})
	}
}

func TestNormalize_NonStringValueOnlyAffectsItsVariable(t *testing.T) {
	body := `{"containerOverrides": [{"environment": [
		{"name": "S3_OBJECT_KEY", "value": 42},
		{"name": "EVENT_TYPE", "value": "Object Created"}
	]}]}`
	f, kind := Normalize(mustParse(t, body))
	if kind != KindContainerOverrides {
		t.Errorf("expected flat shape, got %v", kind)
	}
	if f != (Fields{}) {
		t.Errorf("non-string object key must count as missing, got %+v", f)
	}
}

func TestNormalize_NonObjectOverrideIsAbsent(t *testing.T) {
	f, kind := Normalize(mustParse(t, `{"containerOverrides": ["ingest"]}`))
	if kind != KindContainerOverrides || f != (Fields{}) {
		t.Errorf("expected flat shape with no fields, got %v %+v", kind, f)
	}
}
