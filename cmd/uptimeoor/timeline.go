package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/ethpandaops/uptimeoor/pkg/models"
)

var (
	timelineRoutine string
	timelineWindow  string
	timelineRebuild bool
)

var timelineCmd = &cobra.Command{
	Use:   "timeline",
	Short: "Show a routine's status timeline",
	Long: `Print the routine's status spans within a trailing window. With
--rebuild the spans are recomputed from the stored run records instead of
read from the timeline table.`,
	RunE: runTimeline,
}

func init() {
	rootCmd.AddCommand(timelineCmd)
	timelineCmd.Flags().StringVar(&timelineRoutine, "routine", "", "Routine ID")
	timelineCmd.Flags().StringVar(&timelineWindow, "window", string(models.WindowDay),
		"Trailing window: day, week, month, quarter or year")
	timelineCmd.Flags().BoolVar(&timelineRebuild, "rebuild", false, "Recompute spans from run records")
	timelineCmd.Flags().StringVarP(&outputFormat, "output", "o", "yaml", `Output format: "yaml" or "json"`)

	_ = timelineCmd.MarkFlagRequired("routine")
}

func runTimeline(cmd *cobra.Command, _ []string) error {
	now := time.Now()

	filter, err := models.WindowRange(models.UptimeWindow(timelineWindow), now)
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

	if !timelineRebuild {
		events, err := st.ListTimelineEvents(ctx, timelineRoutine, filter)
		if err != nil {
			return err
		}

		return writeOutput(cmd.OutOrStdout(), outputFormat, events)
	}

	var records []*models.RunRecord

	for start := 0; ; start += models.MaxPageSize {
		page, err := models.NewPagination(start, start+models.MaxPageSize)
		if err != nil {
			return err
		}

		batch, err := st.ListRunRecords(ctx, timelineRoutine, filter, page)
		if err != nil {
			return err
		}

		records = append(records, batch...)

		if len(batch) < page.Limit() {
			break
		}
	}

	events, err := models.BuildTimeline(records, now)
	if err != nil {
		return err
	}

	return writeOutput(cmd.OutOrStdout(), outputFormat, events)
}
