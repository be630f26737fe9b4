// Package main provides dlq-replay, a CLI that runs the DLQ handler locally
// against a saved SQS event or a single message body.
//
// It reads the same environment configuration as the Lambda and uses the
// local AWS credentials. With --dry-run the chunk store is still queried but
// no status is written; the decision is logged instead.
//
// Usage:
//
//	dlq-replay --file event.json
//	dlq-replay --body '{"containerOverrides": [...]}' --dry-run
//	aws sqs receive-message ... | dlq-replay --file -
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/fpang/eventbridge-dlq/internal/config"
	"github.com/fpang/eventbridge-dlq/internal/lambdaboot"
	"github.com/fpang/eventbridge-dlq/internal/logging"
)

const name = "dlq-replay"

var (
	inputFile string
	inputBody string
	dryRun    bool
)

var rootCmd = &cobra.Command{
	Use:   name,
	Short: "Replay ingestion DLQ messages through the status reconciler",
	Long: "Replay ingestion DLQ messages through the status reconciler.\n\n" +
		"Input is either an SQS event ({\"Records\": [...]}) or a single message body.",
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logging.Init(name)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runReplay(cmd.Context(), cmd.InOrStdin())
	},
}

func init() {
	rootCmd.Flags().StringVarP(&inputFile, "file", "f", "", "file holding an SQS event or message body (- for stdin)")
	rootCmd.Flags().StringVarP(&inputBody, "body", "b", "", "a single message body")
	rootCmd.Flags().BoolVar(&dryRun, "dry-run", false, "query the chunk store but only log the status that would be set")
	rootCmd.MarkFlagsMutuallyExclusive("file", "body")
	rootCmd.MarkFlagsOneRequired("file", "body")
}

func runReplay(ctx context.Context, stdin io.Reader) error {
	start := time.Now()

	data, err := readInput(stdin)
	if err != nil {
		return err
	}
	event, err := parseInput(data)
	if err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logging.SetLevel(cfg.Log.Level)

	h, err := lambdaboot.NewHandler(cfg, lambdaboot.InitAWS(ctx))
	if err != nil {
		return err
	}
	if dryRun {
		h.Updater = dryRunUpdater{}
	}
	h.Metrics = io.Discard

	lambdaboot.StartupLog(name, cfg, start).
		Feature("dryRun", dryRun).
		Config("records", fmt.Sprint(len(event.Records))).
		Log()

	if err := h.Handle(ctx, event); err != nil {
		return fmt.Errorf("replay failed: %w", err)
	}
	log.Info().Int("records", len(event.Records)).Dur("elapsed", time.Since(start)).Msg("Replay complete")
	return nil
}

func readInput(stdin io.Reader) ([]byte, error) {
	if inputBody != "" {
		return []byte(inputBody), nil
	}
	if inputFile == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("read stdin: %w", err)
		}
		return data, nil
	}
	data, err := os.ReadFile(inputFile)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", inputFile, err)
	}
	return data, nil
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		log.Error().Err(err).Msg("dlq-replay failed")
		os.Exit(1)
	}
}
