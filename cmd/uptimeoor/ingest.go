package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ethpandaops/uptimeoor/pkg/ingest"
	"github.com/ethpandaops/uptimeoor/pkg/models"
)

var (
	ingestRunFile    string
	ingestResultFile string
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Record a completed run",
	Long: `Classify a test result for a run and fold it into the configured
database: the run record, one bucket per configured size and the
routine's timeline.`,
	RunE: runIngest,
}

func init() {
	rootCmd.AddCommand(ingestCmd)
	ingestCmd.Flags().StringVar(&ingestRunFile, "run", "", "Path to the run JSON file")
	ingestCmd.Flags().StringVar(&ingestResultFile, "result", "", "Path to the test result JSON file")
	ingestCmd.Flags().StringVarP(&outputFormat, "output", "o", "yaml", `Output format: "yaml" or "json"`)

	_ = ingestCmd.MarkFlagRequired("run")
	_ = ingestCmd.MarkFlagRequired("result")
}

func runIngest(cmd *cobra.Command, _ []string) error {
	run, err := readEntity[models.Run](ingestRunFile)
	if err != nil {
		return err
	}

	result, err := readEntity[models.TestResult](ingestResultFile)
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	sizes, err := cfg.Buckets.ParsedSizes()
	if err != nil {
		return err
	}

	ctx := cmd.Context()

	st, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}

	defer func() { _ = st.Stop() }()

	opts := make([]ingest.Option, 0, 1)

	c, err := openCache(ctx, cfg)
	if err != nil {
		return err
	}

	if c != nil {
		defer func() { _ = c.Stop() }()

		opts = append(opts, ingest.WithCache(c))
	}

	out, err := ingest.New(log, st, sizes, opts...).Complete(ctx, run, result)
	if err != nil {
		return fmt.Errorf("completing run %s: %w", run.ID, err)
	}

	return writeOutput(cmd.OutOrStdout(), outputFormat, out)
}
