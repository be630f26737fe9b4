// Package secrets fetches the credentials the DLQ handler needs for one
// batch: the documents API token, the origin-verify token, and the chunk
// store password.
//
// References may name either a Secrets Manager secret or an SSM
// SecureString parameter; Router picks the backing service per reference.
// Values are held only for the duration of a batch and are never logged.
package secrets

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/rs/zerolog"
)

// ErrUnavailable marks a failure to fetch any of the batch credentials.
// No record can be processed without them, so the whole batch fails.
var ErrUnavailable = errors.New("secrets unavailable")

// Bundle is the set of credentials fetched once per batch.
type Bundle struct {
	APIToken     string
	OriginVerify string
	DBPassword   string
}

// String redacts all values so a Bundle never leaks through %v.
func (Bundle) String() string { return "secrets.Bundle{redacted}" }

// GoString redacts all values so a Bundle never leaks through %#v.
func (b Bundle) GoString() string { return b.String() }

// MarshalZerologObject logs only which credentials are present.
func (b Bundle) MarshalZerologObject(e *zerolog.Event) {
	e.Bool("apiToken", b.APIToken != "").
		Bool("originVerify", b.OriginVerify != "").
		Bool("dbPassword", b.DBPassword != "")
}

// Refs holds the external references of the three credentials.
type Refs struct {
	APIToken     string
	OriginVerify string
	DBPassword   string
}

// Fetcher resolves one secret reference to its plaintext value.
type Fetcher interface {
	Fetch(ctx context.Context, ref string) (string, error)
}

// Loader fetches a Bundle for each batch.
type Loader struct {
	Fetcher Fetcher
	Refs    Refs
}

// Load fetches every credential in order and stops at the first failure.
// The returned error wraps ErrUnavailable.
func (l Loader) Load(ctx context.Context) (Bundle, error) {
	var b Bundle
	steps := []struct {
		label string
		ref   string
		dst   *string
	}{
		{"API token", l.Refs.APIToken, &b.APIToken},
		{"Origin Verify Secret", l.Refs.OriginVerify, &b.OriginVerify},
		{"DB password", l.Refs.DBPassword, &b.DBPassword},
	}
	logger := zerolog.Ctx(ctx)
	for _, s := range steps {
		start := time.Now()
		logger.Debug().Str("secret", s.label).Msg("Fetching secret")
		v, err := l.Fetcher.Fetch(ctx, s.ref)
		if err != nil {
			logger.Error().Err(err).Str("secret", s.label).Msg("Failed to fetch secret")
			return Bundle{}, fmt.Errorf("%w: fetch %s: %v", ErrUnavailable, s.label, err)
		}
		*s.dst = v
		logger.Debug().Str("secret", s.label).Dur("elapsed", time.Since(start)).Msg("Secret fetched")
	}
	return b, nil
}

// SecretsManagerAPI is the subset of the Secrets Manager client used here.
type SecretsManagerAPI interface {
	GetSecretValue(ctx context.Context, in *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// SecretsManagerFetcher reads SecretString values from Secrets Manager.
type SecretsManagerFetcher struct {
	Client SecretsManagerAPI
}

// Fetch returns the secret's SecretString. Binary secrets are rejected.
func (f SecretsManagerFetcher) Fetch(ctx context.Context, ref string) (string, error) {
	out, err := f.Client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(ref),
	})
	if err != nil {
		return "", fmt.Errorf("GetSecretValue: %w", err)
	}
	if out.SecretString == nil {
		return "", fmt.Errorf("GetSecretValue: secret has no string value")
	}
	return *out.SecretString, nil
}

// ParameterStoreAPI is the subset of the SSM client used here.
type ParameterStoreAPI interface {
	GetParameter(ctx context.Context, in *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

// ParameterStoreFetcher reads SecureString parameters from SSM.
type ParameterStoreFetcher struct {
	Client ParameterStoreAPI
}

// Fetch returns the decrypted parameter value.
func (f ParameterStoreFetcher) Fetch(ctx context.Context, ref string) (string, error) {
	out, err := f.Client.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           aws.String(ref),
		WithDecryption: aws.Bool(true),
	})
	if err != nil {
		return "", fmt.Errorf("GetParameter: %w", err)
	}
	if out.Parameter == nil || out.Parameter.Value == nil {
		return "", fmt.Errorf("GetParameter: parameter has no value")
	}
	return *out.Parameter.Value, nil
}

// Router dispatches each reference to Parameter Store or Secrets Manager.
type Router struct {
	SecretsManager Fetcher
	ParameterStore Fetcher
}

// Fetch routes parameter paths and SSM ARNs to Parameter Store and
// everything else (secret ARNs and names) to Secrets Manager.
func (r Router) Fetch(ctx context.Context, ref string) (string, error) {
	if ref == "" {
		return "", fmt.Errorf("empty secret reference")
	}
	if IsParameterRef(ref) {
		if r.ParameterStore == nil {
			return "", fmt.Errorf("parameter store not configured for %q", ref)
		}
		return r.ParameterStore.Fetch(ctx, ref)
	}
	if r.SecretsManager == nil {
		return "", fmt.Errorf("secrets manager not configured for %q", ref)
	}
	return r.SecretsManager.Fetch(ctx, ref)
}

// IsParameterRef reports whether ref names an SSM parameter.
func IsParameterRef(ref string) bool {
	if strings.HasPrefix(ref, "/") {
		return true
	}
	// arn:<partition>:ssm:<region>:<account>:parameter/...
	parts := strings.SplitN(ref, ":", 6)
	return len(parts) == 6 && parts[0] == "arn" && parts[2] == "ssm"
}

// NewRouter wires a Router over the given AWS clients.
func NewRouter(sm SecretsManagerAPI, ps ParameterStoreAPI) Router {
	return Router{
		SecretsManager: SecretsManagerFetcher{Client: sm},
		ParameterStore: ParameterStoreFetcher{Client: ps},
	}
}
