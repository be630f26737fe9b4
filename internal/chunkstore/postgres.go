// Package chunkstore answers whether the ingestion pipeline has written any
// chunks for a document. It is the source of truth the DLQ handler consults
// to tell a genuine task failure from one that raced a successful run.
//
// Two backends run the same query: PostgresOracle opens a short-lived
// connection with the batch's database password, and DataAPIOracle goes
// through the RDS Data API for Aurora clusters that expose it.
package chunkstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"net/url"
	"regexp"
	"strconv"
	"time"

	"github.com/lib/pq"
	"github.com/rs/zerolog"

	"github.com/fpang/eventbridge-dlq/internal/secrets"
)

const (
	// DefaultTable is the vector store's chunk table.
	DefaultTable = "data_burrow_table_hybrid2"

	// metadataColumn is the JSONB column holding per-chunk metadata, including
	// the owning document's doc_id.
	metadataColumn = "metadata_"

	// DefaultConnectTimeout bounds connection establishment.
	DefaultConnectTimeout = 10 * time.Second
)

// ErrStoreUnavailable marks a chunk query that could not complete. Without
// the answer the document status is unknowable, so callers must not guess.
var ErrStoreUnavailable = errors.New("chunk store unavailable")

var identifierRE = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]{0,62}$`)

// ValidateTable rejects anything that is not a plain SQL identifier.
func ValidateTable(table string) error {
	if !identifierRE.MatchString(table) {
		return fmt.Errorf("invalid chunk table name %q", table)
	}
	return nil
}

// countQuery builds the chunk count statement. Only the table and column
// identifiers are formatted in; the document ID is always a bind parameter
// written by the caller as placeholder.
func countQuery(table, placeholder string) string {
	return fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s->>'doc_id' = %s",
		pq.QuoteIdentifier(table), pq.QuoteIdentifier(metadataColumn), placeholder)
}

type sqlOpenFunc func(driverName, dsn string) (*sql.DB, error)

// PostgresConfig holds the connection target. The password is not part of
// it; it arrives with each batch's secrets.
type PostgresConfig struct {
	Host           string
	Port           int
	Database       string
	User           string
	SSLMode        string
	Table          string
	ConnectTimeout time.Duration
}

// PostgresOracle counts chunks over a direct lib/pq connection that is
// opened and closed within each call.
type PostgresOracle struct {
	cfg    PostgresConfig
	query  string
	openDB sqlOpenFunc
}

// NewPostgresOracle validates cfg and fills in defaults.
func NewPostgresOracle(cfg PostgresConfig) (*PostgresOracle, error) {
	if cfg.Table == "" {
		cfg.Table = DefaultTable
	}
	if err := ValidateTable(cfg.Table); err != nil {
		return nil, err
	}
	if cfg.Host == "" || cfg.Database == "" || cfg.User == "" {
		return nil, fmt.Errorf("postgres host, database and user are required")
	}
	if cfg.Port == 0 {
		cfg.Port = 5432
	}
	if cfg.SSLMode == "" {
		cfg.SSLMode = "require"
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = DefaultConnectTimeout
	}
	return &PostgresOracle{
		cfg:    cfg,
		query:  countQuery(cfg.Table, "$1"),
		openDB: sql.Open,
	}, nil
}

// Table returns the chunk table being queried.
func (o *PostgresOracle) Table() string { return o.cfg.Table }

// dsn builds a URL-form connection string. lib/pq takes connect_timeout in
// whole seconds, minimum 1.
func (o *PostgresOracle) dsn(password string) string {
	secs := int(o.cfg.ConnectTimeout.Round(time.Second) / time.Second)
	if secs < 1 {
		secs = 1
	}
	q := url.Values{}
	q.Set("sslmode", o.cfg.SSLMode)
	q.Set("connect_timeout", strconv.Itoa(secs))
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(o.cfg.User, password),
		Host:     net.JoinHostPort(o.cfg.Host, strconv.Itoa(o.cfg.Port)),
		Path:     "/" + o.cfg.Database,
		RawQuery: q.Encode(),
	}
	return u.String()
}

// ChunksExist reports whether any chunk row carries documentID.
func (o *PostgresOracle) ChunksExist(ctx context.Context, documentID string, creds secrets.Bundle) (bool, error) {
	logger := zerolog.Ctx(ctx)
	logger.Info().Str("documentId", documentID).Str("table", o.cfg.Table).Msg("Checking chunk store for existing chunks")

	db, err := o.openDB("postgres", o.dsn(creds.DBPassword))
	if err != nil {
		logger.Error().Err(err).Str("documentId", documentID).Msg("Failed to open chunk store")
		return false, fmt.Errorf("%w: open: %v", ErrStoreUnavailable, err)
	}
	defer db.Close()
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(0)

	start := time.Now()
	var count int64
	if err := db.QueryRowContext(ctx, o.query, documentID).Scan(&count); err != nil {
		logger.Error().Err(err).Str("documentId", documentID).Dur("elapsed", time.Since(start)).Msg("Failed to check chunk store for chunks")
		return false, fmt.Errorf("%w: count chunks for %s: %v", ErrStoreUnavailable, documentID, err)
	}

	logger.Info().
		Str("documentId", documentID).
		Int64("chunkCount", count).
		Bool("chunksExist", count > 0).
		Dur("elapsed", time.Since(start)).
		Msg("Chunk store check complete")
	return count > 0, nil
}
