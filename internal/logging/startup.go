package logging

import (
	"os"
	"runtime"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// StartupLogger collects the handler's identity, the resources it talks to,
// and its feature flags, then emits one structured event summarising the
// cold-start state. Secret references are logged; secret values never are.
type StartupLogger struct {
	name         string
	commitHash   string
	initDuration time.Duration

	secretRefs map[string]string
	databases  map[string]string
	endpoints  map[string]string
	features   map[string]bool
	config     map[string]string
}

// NewStartupLogger creates a StartupLogger for the given binary name
// (e.g. "eventbridge-dlq-lambda").
func NewStartupLogger(name string) *StartupLogger {
	return &StartupLogger{
		name:       name,
		secretRefs: make(map[string]string),
		databases:  make(map[string]string),
		endpoints:  make(map[string]string),
		features:   make(map[string]bool),
		config:     make(map[string]string),
	}
}

// CommitHash sets the git commit hash baked into the binary at build time.
func (s *StartupLogger) CommitHash(hash string) *StartupLogger {
	s.commitHash = hash
	return s
}

// SecretRef registers where a credential is fetched from. Only the
// reference is logged, never the value.
func (s *StartupLogger) SecretRef(label, ref string) *StartupLogger {
	s.secretRefs[label] = ref
	return s
}

// Database registers a database target, e.g. "host:port/name".
func (s *StartupLogger) Database(label, target string) *StartupLogger {
	s.databases[label] = target
	return s
}

// Endpoint registers an HTTP endpoint this binary calls.
func (s *StartupLogger) Endpoint(label, url string) *StartupLogger {
	s.endpoints[label] = url
	return s
}

// Feature registers a boolean feature flag.
func (s *StartupLogger) Feature(name string, enabled bool) *StartupLogger {
	s.features[name] = enabled
	return s
}

// Config registers a non-sensitive configuration key-value pair.
func (s *StartupLogger) Config(key, value string) *StartupLogger {
	s.config[key] = value
	return s
}

// InitDuration records how long initialization took.
func (s *StartupLogger) InitDuration(d time.Duration) *StartupLogger {
	s.initDuration = d
	return s
}

// Log emits a single INFO event with everything collected.
func (s *StartupLogger) Log() {
	s.event(log.Info()).Msg("Cold start complete")
}

func (s *StartupLogger) event(evt *zerolog.Event) *zerolog.Event {
	identity := zerolog.Dict().
		Str("name", s.name).
		Str("functionName", os.Getenv("AWS_LAMBDA_FUNCTION_NAME")).
		Str("version", os.Getenv("AWS_LAMBDA_FUNCTION_VERSION")).
		Str("region", os.Getenv("AWS_REGION")).
		Str("memoryMB", os.Getenv("AWS_LAMBDA_FUNCTION_MEMORY_SIZE")).
		Str("goVersion", runtime.Version()).
		Str("arch", runtime.GOARCH).
		Str("logLevel", zerolog.GlobalLevel().String())
	if s.commitHash != "" {
		identity = identity.Str("commitHash", s.commitHash)
	}
	evt = evt.Dict("lambda", identity)

	resources := zerolog.Dict()
	hasResources := false
	for key, m := range map[string]map[string]string{
		"secrets":   s.secretRefs,
		"databases": s.databases,
		"endpoints": s.endpoints,
	} {
		if len(m) > 0 {
			resources = resources.Dict(key, dictFromMap(m))
			hasResources = true
		}
	}
	if hasResources {
		evt = evt.Dict("resources", resources)
	}

	if len(s.features) > 0 {
		d := zerolog.Dict()
		for k, v := range s.features {
			d = d.Bool(k, v)
		}
		evt = evt.Dict("features", d)
	}
	if len(s.config) > 0 {
		evt = evt.Dict("config", dictFromMap(s.config))
	}
	if s.initDuration > 0 {
		evt = evt.Dur("initDuration", s.initDuration)
	}
	return evt
}

func dictFromMap(m map[string]string) *zerolog.Event {
	d := zerolog.Dict()
	for k, v := range m {
		d = d.Str(k, v)
	}
	return d
}
