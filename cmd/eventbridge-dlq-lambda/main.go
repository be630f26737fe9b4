// Package main provides the Lambda entry point for the ingestion DLQ.
//
// EventBridge delivers failed ECS ingestion tasks to an SQS dead-letter
// queue. This Lambda consumes that queue, checks the vector store for the
// document's chunks, and sets the document's status on the documents API:
//   - Object Created:    finished if chunks exist, failed otherwise
//   - Object Tags Added/
//     Object Deleted:    delete_failed if chunks exist, deleted otherwise
//
// Secrets are fetched per batch, not at cold start, so rotations take
// effect without a redeploy.
//
// Build with version info:
//
//	go build -ldflags="-X main.commitHash=${COMMIT_HASH}"
package main

import (
	"context"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/rs/zerolog/log"

	"github.com/fpang/eventbridge-dlq/internal/config"
	"github.com/fpang/eventbridge-dlq/internal/lambdaboot"
	"github.com/fpang/eventbridge-dlq/internal/logging"
	"github.com/fpang/eventbridge-dlq/internal/reconcile"
)

const name = "eventbridge-dlq-lambda"

var commitHash = "dev"

var handler *reconcile.Handler

func init() {
	initStart := time.Now()
	logging.Init(name)

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}
	logging.SetLevel(cfg.Log.Level)

	clients := lambdaboot.InitAWS(context.Background())
	handler, err = lambdaboot.NewHandler(cfg, clients)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build DLQ handler")
	}

	lambdaboot.StartupLog(name, cfg, initStart).
		CommitHash(commitHash).
		Log()
}

func main() {
	lambda.Start(handler.Handle)
}
