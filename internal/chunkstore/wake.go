package chunkstore

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/rds"
	"github.com/rs/zerolog"

	"github.com/fpang/eventbridge-dlq/internal/secrets"
)

// Oracle reports whether a document has chunks.
type Oracle interface {
	ChunksExist(ctx context.Context, documentID string, creds secrets.Bundle) (bool, error)
}

// ClusterAPI is the subset of the RDS client used to wake a stopped cluster.
type ClusterAPI interface {
	DescribeDBClusters(ctx context.Context, in *rds.DescribeDBClustersInput, optFns ...func(*rds.Options)) (*rds.DescribeDBClustersOutput, error)
	StartDBCluster(ctx context.Context, in *rds.StartDBClusterInput, optFns ...func(*rds.Options)) (*rds.StartDBClusterOutput, error)
}

// probeTimeout bounds the describe/start calls made after a store failure.
const probeTimeout = 5 * time.Second

// ClusterWaker wraps an Oracle. When a query fails and the Aurora cluster
// turns out to be stopped, it starts the cluster. The query error is
// returned unchanged either way, so the batch is still redriven.
type ClusterWaker struct {
	Oracle    Oracle
	Client    ClusterAPI
	ClusterID string
}

// NewClusterWaker accepts a cluster ARN or identifier.
func NewClusterWaker(oracle Oracle, client ClusterAPI, cluster string) *ClusterWaker {
	return &ClusterWaker{Oracle: oracle, Client: client, ClusterID: clusterIdentifier(cluster)}
}

// clusterIdentifier strips an ARN down to the cluster name.
func clusterIdentifier(cluster string) string {
	if idx := strings.LastIndex(cluster, ":"); idx >= 0 && idx < len(cluster)-1 {
		return cluster[idx+1:]
	}
	return cluster
}

func (w *ClusterWaker) ChunksExist(ctx context.Context, documentID string, creds secrets.Bundle) (bool, error) {
	exists, err := w.Oracle.ChunksExist(ctx, documentID, creds)
	if err == nil || !errors.Is(err, ErrStoreUnavailable) {
		return exists, err
	}
	w.wake(ctx)
	return false, err
}

func (w *ClusterWaker) wake(ctx context.Context) {
	logger := zerolog.Ctx(ctx).With().Str("clusterId", w.ClusterID).Logger()
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), probeTimeout)
	defer cancel()

	out, err := w.Client.DescribeDBClusters(ctx, &rds.DescribeDBClustersInput{
		DBClusterIdentifier: aws.String(w.ClusterID),
	})
	if err != nil {
		logger.Warn().Err(err).Msg("DescribeDBClusters failed after chunk store error")
		return
	}
	if len(out.DBClusters) == 0 {
		logger.Warn().Msg("DB cluster not found")
		return
	}

	status := aws.ToString(out.DBClusters[0].Status)
	if status != "stopped" {
		logger.Info().Str("clusterStatus", status).Msg("Chunk store unavailable; cluster not stopped")
		return
	}
	if _, err := w.Client.StartDBCluster(ctx, &rds.StartDBClusterInput{
		DBClusterIdentifier: aws.String(w.ClusterID),
	}); err != nil {
		logger.Error().Err(err).Msg("StartDBCluster failed")
		return
	}
	logger.Warn().Msg("Started stopped Aurora cluster; batch will be redriven")
}
