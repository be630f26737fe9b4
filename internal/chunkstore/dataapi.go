package chunkstore

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/rdsdata"
	rdsdatatypes "github.com/aws/aws-sdk-go-v2/service/rdsdata/types"
	"github.com/rs/zerolog"

	"github.com/fpang/eventbridge-dlq/internal/secrets"
)

// DataAPI is the subset of the RDS Data API client used here.
type DataAPI interface {
	ExecuteStatement(ctx context.Context, in *rdsdata.ExecuteStatementInput, optFns ...func(*rdsdata.Options)) (*rdsdata.ExecuteStatementOutput, error)
}

// DataAPIOracle counts chunks through the RDS Data API. Authentication uses
// the cluster's Secrets Manager secret, so the batch DB password is unused.
type DataAPIOracle struct {
	client     DataAPI
	clusterARN string
	secretARN  string
	database   string
	table      string
	query      string
}

// NewDataAPIOracle validates the target and returns an oracle.
func NewDataAPIOracle(client DataAPI, clusterARN, secretARN, database, table string) (*DataAPIOracle, error) {
	if table == "" {
		table = DefaultTable
	}
	if err := ValidateTable(table); err != nil {
		return nil, err
	}
	if clusterARN == "" || secretARN == "" {
		return nil, fmt.Errorf("data API cluster and secret ARNs are required")
	}
	return &DataAPIOracle{
		client:     client,
		clusterARN: clusterARN,
		secretARN:  secretARN,
		database:   database,
		table:      table,
		query:      countQuery(table, ":doc_id"),
	}, nil
}

// Table returns the chunk table being queried.
func (o *DataAPIOracle) Table() string { return o.table }

// ChunksExist reports whether any chunk row carries documentID.
func (o *DataAPIOracle) ChunksExist(ctx context.Context, documentID string, _ secrets.Bundle) (bool, error) {
	logger := zerolog.Ctx(ctx)
	logger.Info().Str("documentId", documentID).Str("table", o.table).Msg("Checking chunk store for existing chunks")

	in := &rdsdata.ExecuteStatementInput{
		ResourceArn: aws.String(o.clusterARN),
		SecretArn:   aws.String(o.secretARN),
		Sql:         aws.String(o.query),
		Parameters: []rdsdatatypes.SqlParameter{
			{Name: aws.String("doc_id"), Value: &rdsdatatypes.FieldMemberStringValue{Value: documentID}},
		},
	}
	if o.database != "" {
		in.Database = aws.String(o.database)
	}

	start := time.Now()
	out, err := o.client.ExecuteStatement(ctx, in)
	if err != nil {
		logger.Error().Err(err).Str("documentId", documentID).Dur("elapsed", time.Since(start)).Msg("Failed to check chunk store for chunks")
		return false, fmt.Errorf("%w: ExecuteStatement: %v", ErrStoreUnavailable, err)
	}

	count, err := countFromRecords(out.Records)
	if err != nil {
		logger.Error().Err(err).Str("documentId", documentID).Msg("Unexpected chunk count result")
		return false, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	logger.Info().
		Str("documentId", documentID).
		Int64("chunkCount", count).
		Bool("chunksExist", count > 0).
		Dur("elapsed", time.Since(start)).
		Msg("Chunk store check complete")
	return count > 0, nil
}

func countFromRecords(records [][]rdsdatatypes.Field) (int64, error) {
	if len(records) != 1 || len(records[0]) != 1 {
		return 0, fmt.Errorf("expected a single count column, got %d rows", len(records))
	}
	switch v := records[0][0].(type) {
	case *rdsdatatypes.FieldMemberLongValue:
		return v.Value, nil
	case *rdsdatatypes.FieldMemberIsNull:
		return 0, nil
	default:
		return 0, fmt.Errorf("unexpected count field type %T", v)
	}
}
