// Package config loads the DLQ handler's settings from the environment.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/fpang/eventbridge-dlq/internal/chunkstore"
	"github.com/fpang/eventbridge-dlq/internal/docsapi"
)

// Chunk oracle backends.
const (
	OraclePostgres = "postgres"
	OracleDataAPI  = "dataapi"
)

// Config is the full process configuration. It is loaded once at cold start.
type Config struct {
	API     APIConfig
	DB      DBConfig
	Oracle  OracleConfig
	Secrets SecretRefs
	Log     LogConfig
}

// APIConfig locates the documents API.
type APIConfig struct {
	BaseURL  string
	DocsPath string
	Timeout  time.Duration
}

// DBConfig is the direct Postgres connection target of the chunk store.
type DBConfig struct {
	Host           string
	Port           int
	Name           string
	User           string
	SSLMode        string
	ConnectTimeout time.Duration
	Table          string
}

// OracleConfig selects the chunk oracle backend.
type OracleConfig struct {
	Backend    string
	ClusterARN string
	SecretARN  string
}

// SecretRefs are Secrets Manager ARNs/names or Parameter Store paths. Only
// references live here, never values.
type SecretRefs struct {
	APIToken     string
	OriginVerify string
	DBPassword   string
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string
}

var bindings = map[string]string{
	"api.base_url":          "ALB_BASE_URL",
	"api.docs_path":         "DOCS_API_PATH",
	"api.timeout":           "DOCS_API_TIMEOUT",
	"db.host":               "DB_HOST",
	"db.port":               "DB_PORT",
	"db.name":               "DB_NAME",
	"db.user":               "DB_USER",
	"db.sslmode":            "DB_SSLMODE",
	"db.connect_timeout":    "DB_CONNECT_TIMEOUT",
	"db.table":              "CHUNK_TABLE_NAME",
	"oracle.backend":        "CHUNK_ORACLE",
	"oracle.cluster_arn":    "AURORA_CLUSTER_ARN",
	"oracle.secret_arn":     "AURORA_SECRET_ARN",
	"secrets.api_token":     "INGESTION_API_TOKEN_ARN",
	"secrets.origin_verify": "ORIGIN_VERIFY_ARN",
	"secrets.db_password":   "DB_PASSWORD_SECRET_ARN",
	"log.level":             "LOG_LEVEL",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("api.docs_path", docsapi.DefaultDocsPath)
	v.SetDefault("api.timeout", docsapi.DefaultTimeout.String())
	v.SetDefault("db.sslmode", "require")
	v.SetDefault("db.connect_timeout", chunkstore.DefaultConnectTimeout.String())
	v.SetDefault("db.table", chunkstore.DefaultTable)
	v.SetDefault("oracle.backend", OraclePostgres)
	v.SetDefault("log.level", "info")
}

// Load reads the configuration from the environment and validates it.
func Load() (*Config, error) {
	v := viper.New()
	for key, env := range bindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("bind %s: %w", env, err)
		}
	}
	setDefaults(v)

	var errs []error
	cfg := &Config{
		API: APIConfig{
			BaseURL:  strings.TrimSpace(v.GetString("api.base_url")),
			DocsPath: v.GetString("api.docs_path"),
			Timeout:  parseDuration(v, "api.timeout", &errs),
		},
		DB: DBConfig{
			Host:           v.GetString("db.host"),
			Port:           parsePort(v, "db.port", &errs),
			Name:           v.GetString("db.name"),
			User:           v.GetString("db.user"),
			SSLMode:        v.GetString("db.sslmode"),
			ConnectTimeout: parseDuration(v, "db.connect_timeout", &errs),
			Table:          v.GetString("db.table"),
		},
		Oracle: OracleConfig{
			Backend:    strings.ToLower(v.GetString("oracle.backend")),
			ClusterARN: v.GetString("oracle.cluster_arn"),
			SecretARN:  v.GetString("oracle.secret_arn"),
		},
		Secrets: SecretRefs{
			APIToken:     v.GetString("secrets.api_token"),
			OriginVerify: v.GetString("secrets.origin_verify"),
			DBPassword:   v.GetString("secrets.db_password"),
		},
		Log: LogConfig{Level: v.GetString("log.level")},
	}
	if len(errs) > 0 {
		return nil, fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func parseDuration(v *viper.Viper, key string, errs *[]error) time.Duration {
	raw := v.GetString(key)
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		*errs = append(*errs, fmt.Errorf("%s must be a positive duration like 30s, got %q", bindings[key], raw))
		return 0
	}
	return d
}

func parsePort(v *viper.Viper, key string, errs *[]error) int {
	raw := v.GetString(key)
	if raw == "" {
		return 0
	}
	p, err := strconv.Atoi(raw)
	if err != nil || p < 1 || p > 65535 {
		*errs = append(*errs, fmt.Errorf("%s must be a port number, got %q", bindings[key], raw))
		return 0
	}
	return p
}

// Validate reports every missing or invalid setting in one error.
func (c *Config) Validate() error {
	var errs []error
	require := func(val, env string) {
		if val == "" {
			errs = append(errs, fmt.Errorf("%s is required", env))
		}
	}

	require(c.API.BaseURL, "ALB_BASE_URL")
	if c.API.BaseURL != "" {
		if u, err := url.Parse(c.API.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Errorf("ALB_BASE_URL must be an absolute URL, got %q", c.API.BaseURL))
		}
	}
	require(c.Secrets.APIToken, "INGESTION_API_TOKEN_ARN")
	require(c.Secrets.OriginVerify, "ORIGIN_VERIFY_ARN")
	require(c.Secrets.DBPassword, "DB_PASSWORD_SECRET_ARN")

	if err := chunkstore.ValidateTable(c.DB.Table); err != nil {
		errs = append(errs, fmt.Errorf("CHUNK_TABLE_NAME: %w", err))
	}

	switch c.Oracle.Backend {
	case OraclePostgres:
		require(c.DB.Host, "DB_HOST")
		if c.DB.Port == 0 {
			errs = append(errs, fmt.Errorf("DB_PORT is required"))
		}
		require(c.DB.Name, "DB_NAME")
		require(c.DB.User, "DB_USER")
	case OracleDataAPI:
		require(c.Oracle.ClusterARN, "AURORA_CLUSTER_ARN")
		require(c.Oracle.SecretARN, "AURORA_SECRET_ARN")
		require(c.DB.Name, "DB_NAME")
	default:
		errs = append(errs, fmt.Errorf("CHUNK_ORACLE must be %q or %q, got %q", OraclePostgres, OracleDataAPI, c.Oracle.Backend))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return nil
}
