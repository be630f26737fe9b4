package envelope

import "github.com/fpang/eventbridge-dlq/internal/document"

// Kind identifies which envelope shape a payload was matched as.
type Kind int

const (
	KindNone Kind = iota
	KindTaskStateChange
	KindAPICall
	KindContainerOverrides
)

func (k Kind) String() string {
	switch k {
	case KindTaskStateChange:
		return "task-state-change"
	case KindAPICall:
		return "api-call"
	case KindContainerOverrides:
		return "container-overrides"
	default:
		return "none"
	}
}

// Fields is what a failure notification is reduced to. Either both fields
// are set or neither is.
type Fields struct {
	DocumentID string
	EventType  document.EventType
	ObjectKey  string
	Bucket     string
}

// OK reports whether the fields identify a document and an event.
func (f Fields) OK() bool {
	return f.DocumentID != "" && f.EventType != ""
}

// matcher returns the container override list of one envelope shape, and
// whether the payload has that shape at all. A list that is null or not an
// array counts as absent.
type matcher func(p *Payload) ([]any, bool)

var matchers = []struct {
	kind  Kind
	match matcher
}{
	{KindTaskStateChange, matchTaskStateChange},
	{KindAPICall, matchAPICall},
	{KindContainerOverrides, matchContainerOverrides},
}

func overrideList(v any) ([]any, bool) {
	list, ok := v.([]any)
	return list, ok
}

func matchTaskStateChange(p *Payload) ([]any, bool) {
	return overrideList(path(p.body, "detail", "overrides", "containerOverrides"))
}

func matchAPICall(p *Payload) ([]any, bool) {
	return overrideList(path(p.body, "detail", "requestParameters", "overrides", "containerOverrides"))
}

func matchContainerOverrides(p *Payload) ([]any, bool) {
	return overrideList(p.body["containerOverrides"])
}

// Match applies only the matcher for the given kind. It exists so each
// envelope shape can be exercised in isolation.
func Match(p *Payload, kind Kind) (Fields, bool) {
	for _, m := range matchers {
		if m.kind != kind {
			continue
		}
		overrides, ok := m.match(p)
		if !ok {
			return Fields{}, false
		}
		return fieldsFrom(overrides), true
	}
	return Fields{}, false
}

// Normalize reduces a payload to its document fields. Shapes are tried in a
// fixed order and the first one present selects the envelope, even if its
// override list turns out to be empty. Unrecognized payloads, empty override
// lists and missing variables all yield empty Fields.
func Normalize(p *Payload) (Fields, Kind) {
	if p == nil {
		return Fields{}, KindNone
	}
	for _, m := range matchers {
		if overrides, ok := m.match(p); ok {
			return fieldsFrom(overrides), m.kind
		}
	}
	return Fields{}, KindNone
}

func fieldsFrom(overrides []any) Fields {
	if len(overrides) == 0 {
		return Fields{}
	}
	env := environmentOf(overrides[0]).Map()
	key := env[EnvObjectKey]
	eventType := env[EnvEventType]
	if key == "" || eventType == "" {
		return Fields{}
	}
	id := document.IDFromObjectKey(key)
	if id == "" {
		return Fields{}
	}
	return Fields{
		DocumentID: id,
		EventType:  document.EventType(eventType),
		ObjectKey:  key,
		Bucket:     env[EnvBucket],
	}
}
