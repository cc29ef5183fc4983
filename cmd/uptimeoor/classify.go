package main

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ethpandaops/uptimeoor/pkg/models"
)

var classifyResultFile string

var classifyCmd = &cobra.Command{
	Use:   "classify",
	Short: "Classify a test result without storing it",
	Long: `Read a test result JSON file and print the run record patch it
produces: status, failure type, stats and durations.`,
	RunE: runClassify,
}

func init() {
	rootCmd.AddCommand(classifyCmd)
	classifyCmd.Flags().StringVar(&classifyResultFile, "result", "", "Path to the test result JSON file")
	classifyCmd.Flags().StringVarP(&outputFormat, "output", "o", "yaml", `Output format: "yaml" or "json"`)

	_ = classifyCmd.MarkFlagRequired("result")
}

func runClassify(cmd *cobra.Command, _ []string) error {
	result, err := readEntity[models.TestResult](classifyResultFile)
	if err != nil {
		return err
	}

	patch := models.GetPatchFromResult(result)

	log.WithFields(logrus.Fields{
		"status":    patch.Status,
		"fail_type": patch.FailType,
		"events":    len(result.Events),
	}).Debug("Classified result")

	if err := writeOutput(cmd.OutOrStdout(), outputFormat, patch); err != nil {
		return fmt.Errorf("writing patch: %w", err)
	}

	return nil
}
