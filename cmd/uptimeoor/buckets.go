package main

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ethpandaops/uptimeoor/pkg/models"
)

var (
	bucketsRoutine string
	bucketsSize    string
	bucketsWindow  string
)

var bucketsCmd = &cobra.Command{
	Use:   "buckets",
	Short: "List a routine's uptime buckets",
	Long: `List the stored buckets of one size for a routine. With --window the
listing is limited to that trailing window, and --size defaults to the
window's usual granularity.`,
	RunE: runBuckets,
}

func init() {
	rootCmd.AddCommand(bucketsCmd)
	bucketsCmd.Flags().StringVar(&bucketsRoutine, "routine", "", "Routine ID")
	bucketsCmd.Flags().StringVar(&bucketsSize, "size", "", "Bucket size: min5, hour, day, week or month")
	bucketsCmd.Flags().StringVar(&bucketsWindow, "window", "", "Trailing window: day, week, month, quarter or year")
	bucketsCmd.Flags().StringVarP(&outputFormat, "output", "o", "yaml", `Output format: "yaml" or "json"`)

	_ = bucketsCmd.MarkFlagRequired("routine")
}

func runBuckets(cmd *cobra.Command, _ []string) error {
	size, filter, err := bucketQuery(bucketsSize, bucketsWindow, time.Now())
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx := cmd.Context()

	st, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}

	defer func() { _ = st.Stop() }()

	buckets, err := st.ListBuckets(ctx, bucketsRoutine, size, filter)
	if err != nil {
		return err
	}

	log.WithFields(logrus.Fields{
		"routine": bucketsRoutine,
		"size":    size,
		"count":   len(buckets),
	}).Debug("Listed buckets")

	return writeOutput(cmd.OutOrStdout(), outputFormat, buckets)
}

// bucketQuery resolves the --size and --window flags.
func bucketQuery(sizeFlag, windowFlag string, now time.Time) (models.BucketSize, models.DateFilter, error) {
	var filter models.DateFilter

	if windowFlag != "" {
		window := models.UptimeWindow(windowFlag)

		f, err := models.WindowRange(window, now)
		if err != nil {
			return "", filter, err
		}

		filter = f

		if sizeFlag == "" {
			size, err := models.GranularityForWindow(window)
			if err != nil {
				return "", filter, err
			}

			return size, filter, nil
		}
	}

	if sizeFlag == "" {
		return "", filter, fmt.Errorf("--size is required without --window")
	}

	size, err := models.ParseBucketSize(sizeFlag)
	if err != nil {
		return "", filter, err
	}

	return size, filter, nil
}
