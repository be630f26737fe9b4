// Package envelope decodes DLQ message bodies and reduces the several
// envelope shapes a failed ingestion task can arrive in to a single
// (document ID, event type) pair.
//
// Failed ECS tasks reach the queue three ways:
//
//   - EventBridge "ECS Task State Change" events, with the task's overrides
//     under detail.overrides.
//   - EventBridge rule-target delivery failures for the RunTask API call, with
//     the overrides under detail.requestParameters.overrides.
//   - The raw RunTask input (legacy targets), with containerOverrides at the
//     top level.
//
// In every case the ingestion task receives the triggering object key and S3
// event type as S3_OBJECT_KEY and EVENT_TYPE environment overrides on its
// first container, which is where they are read back from.
package envelope

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/fpang/eventbridge-dlq/internal/jsonutil"
)

// Environment variable names the ingestion task is started with.
const (
	EnvObjectKey = "S3_OBJECT_KEY"
	EnvEventType = "EVENT_TYPE"
	EnvBucket    = "S3_BUCKET_NAME"
)

// DetailTypeTaskStateChange is the EventBridge detail-type for ECS task
// lifecycle events.
const DetailTypeTaskStateChange = "ECS Task State Change"

// ErrMalformed marks a message body that cannot be decoded as an envelope.
// Such records are skipped; redelivery cannot fix them.
var ErrMalformed = errors.New("malformed message body")

// EnvVar is one name/value pair of a container environment override.
type EnvVar struct {
	Name  string
	Value string
}

// Environment is the ordered environment override list of a container.
type Environment []EnvVar

// Map reduces the list to a lookup map. When a name repeats, the later
// entry wins, matching how ECS applies overrides.
func (e Environment) Map() map[string]string {
	m := make(map[string]string, len(e))
	for _, v := range e {
		m[v.Name] = v.Value
	}
	return m
}

// environmentOf reads the environment list of one container override.
// Entries without a string name are ignored. A non-string value is kept as
// empty, so it only makes its own variable count as missing.
func environmentOf(override any) Environment {
	list, _ := object(override)["environment"].([]any)
	env := make(Environment, 0, len(list))
	for _, item := range list {
		entry := object(item)
		name, ok := entry["name"].(string)
		if !ok {
			continue
		}
		value, _ := entry["value"].(string)
		env = append(env, EnvVar{Name: name, Value: value})
	}
	return env
}

// Payload is a decoded DLQ message body. The body is kept as a generic
// tree; each envelope shape is matched against it on demand, so a field of
// an unexpected type only affects the shape that reads it.
type Payload struct {
	// DetailType and Source are set when the body carries them as strings.
	DetailType string
	Source     string

	// Keys holds the body's top-level keys, sorted, for diagnostics.
	Keys []string

	body map[string]any
}

// object returns v as a JSON object, or nil when it is anything else.
func object(v any) map[string]any {
	m, _ := v.(map[string]any)
	return m
}

// path walks nested objects and returns the value at the end, or nil.
func path(m map[string]any, keys ...string) any {
	var v any = m
	for _, k := range keys {
		v = object(v)[k]
		if v == nil {
			return nil
		}
	}
	return v
}

func (p *Payload) detailString(key string) string {
	s, _ := path(p.body, "detail", key).(string)
	return s
}

// TaskArn returns the ECS task ARN when the envelope carries one.
func (p *Payload) TaskArn() string { return p.detailString("taskArn") }

// StoppedReason returns the ECS stop reason when the envelope carries one.
func (p *Payload) StoppedReason() string { return p.detailString("stoppedReason") }

// LastStatus returns the task's last known ECS status, e.g. STOPPED.
func (p *Payload) LastStatus() string { return p.detailString("lastStatus") }

// Parse decodes a message body. Only a body that is not a JSON object wraps
// ErrMalformed; everything inside it is checked later, shape by shape.
func Parse(body []byte) (*Payload, error) {
	keys, err := jsonutil.ObjectKeys(body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	var m map[string]any
	if err := json.Unmarshal(body, &m); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	p := &Payload{Keys: keys, body: m}
	p.DetailType, _ = m["detail-type"].(string)
	p.Source, _ = m["source"].(string)
	return p, nil
}
