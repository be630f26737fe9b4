// Package lambdaboot builds the DLQ handler's dependencies at cold start.
//
// Both the Lambda and the replay CLI need the same AWS clients, secret
// loader, chunk oracle and documents API client. This package turns a
// loaded config into those pieces so each binary's startup is a short
// composition of helpers.
package lambdaboot

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/rds"
	"github.com/aws/aws-sdk-go-v2/service/rdsdata"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/rs/zerolog/log"

	"github.com/fpang/eventbridge-dlq/internal/chunkstore"
	"github.com/fpang/eventbridge-dlq/internal/config"
	"github.com/fpang/eventbridge-dlq/internal/docsapi"
	"github.com/fpang/eventbridge-dlq/internal/logging"
	"github.com/fpang/eventbridge-dlq/internal/reconcile"
	"github.com/fpang/eventbridge-dlq/internal/secrets"
)

// AWSClients holds the AWS SDK clients the handler uses.
type AWSClients struct {
	Config         aws.Config
	SecretsManager *secretsmanager.Client
	SSM            *ssm.Client
	RDSData        *rdsdata.Client
	RDS            *rds.Client
}

// InitAWS loads the default AWS config and returns it along with the
// handler's clients.
func InitAWS(ctx context.Context) AWSClients {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load AWS config")
	}
	log.Debug().Str("region", cfg.Region).Msg("AWS config loaded")
	return AWSClients{
		Config:         cfg,
		SecretsManager: secretsmanager.NewFromConfig(cfg),
		SSM:            ssm.NewFromConfig(cfg),
		RDSData:        rdsdata.NewFromConfig(cfg),
		RDS:            rds.NewFromConfig(cfg),
	}
}

// NewSecretLoader returns a loader that resolves each reference through
// Secrets Manager or Parameter Store.
func NewSecretLoader(cfg *config.Config, sm secrets.SecretsManagerAPI, ps secrets.ParameterStoreAPI) secrets.Loader {
	return secrets.Loader{
		Fetcher: secrets.NewRouter(sm, ps),
		Refs: secrets.Refs{
			APIToken:     cfg.Secrets.APIToken,
			OriginVerify: cfg.Secrets.OriginVerify,
			DBPassword:   cfg.Secrets.DBPassword,
		},
	}
}

// NewOracle builds the configured chunk oracle. When a cluster ARN is set
// the oracle is wrapped so a stopped cluster gets started on failure.
func NewOracle(cfg *config.Config, data chunkstore.DataAPI, cluster chunkstore.ClusterAPI) (chunkstore.Oracle, error) {
	var oracle chunkstore.Oracle
	switch cfg.Oracle.Backend {
	case config.OracleDataAPI:
		o, err := chunkstore.NewDataAPIOracle(data, cfg.Oracle.ClusterARN, cfg.Oracle.SecretARN, cfg.DB.Name, cfg.DB.Table)
		if err != nil {
			return nil, fmt.Errorf("data API oracle: %w", err)
		}
		oracle = o
	case config.OraclePostgres:
		o, err := chunkstore.NewPostgresOracle(chunkstore.PostgresConfig{
			Host:           cfg.DB.Host,
			Port:           cfg.DB.Port,
			Database:       cfg.DB.Name,
			User:           cfg.DB.User,
			SSLMode:        cfg.DB.SSLMode,
			Table:          cfg.DB.Table,
			ConnectTimeout: cfg.DB.ConnectTimeout,
		})
		if err != nil {
			return nil, fmt.Errorf("postgres oracle: %w", err)
		}
		oracle = o
	default:
		return nil, fmt.Errorf("unknown chunk oracle %q", cfg.Oracle.Backend)
	}

	if cfg.Oracle.ClusterARN != "" && cluster != nil {
		oracle = chunkstore.NewClusterWaker(oracle, cluster, cfg.Oracle.ClusterARN)
	}
	return oracle, nil
}

// NewUpdater returns the documents API client.
func NewUpdater(cfg *config.Config) *docsapi.Client {
	return docsapi.NewClient(cfg.API.BaseURL, cfg.API.DocsPath, cfg.API.Timeout)
}

// NewHandler wires a reconcile.Handler from cfg and clients.
func NewHandler(cfg *config.Config, clients AWSClients) (*reconcile.Handler, error) {
	oracle, err := NewOracle(cfg, clients.RDSData, clients.RDS)
	if err != nil {
		return nil, err
	}
	return &reconcile.Handler{
		Secrets: NewSecretLoader(cfg, clients.SecretsManager, clients.SSM),
		Oracle:  oracle,
		Updater: NewUpdater(cfg),
	}, nil
}

// StartupLog prepares the cold-start summary for cfg. Only references and
// targets are recorded, never credentials.
func StartupLog(name string, cfg *config.Config, initStart time.Time) *logging.StartupLogger {
	s := logging.NewStartupLogger(name).
		InitDuration(time.Since(initStart)).
		SecretRef("apiToken", cfg.Secrets.APIToken).
		SecretRef("originVerify", cfg.Secrets.OriginVerify).
		SecretRef("dbPassword", cfg.Secrets.DBPassword).
		Endpoint("documentsAPI", cfg.API.BaseURL+cfg.API.DocsPath).
		Config("oracle", cfg.Oracle.Backend).
		Config("chunkTable", cfg.DB.Table).
		Config("apiTimeout", cfg.API.Timeout.String()).
		Feature("clusterWake", cfg.Oracle.ClusterARN != "")

	switch cfg.Oracle.Backend {
	case config.OracleDataAPI:
		s.Database("chunkStore", cfg.Oracle.ClusterARN+"/"+cfg.DB.Name)
	default:
		s.Database("chunkStore", net.JoinHostPort(cfg.DB.Host, strconv.Itoa(cfg.DB.Port))+"/"+cfg.DB.Name).
			Config("dbSSLMode", cfg.DB.SSLMode).
			Config("dbConnectTimeout", cfg.DB.ConnectTimeout.String())
	}
	return s
}
