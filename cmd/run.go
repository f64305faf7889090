package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/hirepath/searchpulse/internal/pipeline"
	"github.com/hirepath/searchpulse/internal/telemetry"
)

func newRunCmd() *cobra.Command {
	var (
		dateFlag        string
		backfill        int
		skipInspections bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Executes one pipeline run",
		Long: `Runs ingestion, anomaly detection, sitemap sync, and the inspection
rotation for a single date. The default date trails today by the provider's
reporting delay, since the freshest days are still incomplete upstream.`,

		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}

			date, err := targetDate(dateFlag, appInstance.Config().Provider.ReportingDelayDays)
			if err != nil {
				return err
			}
			opts := pipeline.Options{SkipInspections: skipInspections}

			if backfill > 0 {
				reports, err := appInstance.Runner().RunBackfill(cmd.Context(), date, backfill, opts)
				for _, report := range reports {
					fmt.Fprint(cmd.OutOrStdout(), report)
				}
				if err != nil {
					return fmt.Errorf("backfill: %w", err)
				}
				return nil
			}

			report, err := appInstance.Runner().Run(cmd.Context(), date, opts)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), report)
			return nil
		},
	}

	cmd.Flags().StringVar(&dateFlag, "date", "", "target date (YYYY-MM-DD, default: today minus the reporting delay)")
	cmd.Flags().IntVar(&backfill, "backfill", 0, "also process this many days before the target date, oldest first")
	cmd.Flags().BoolVar(&skipInspections, "skip-inspections", false, "skip the URL inspection rotation")

	return cmd
}

// targetDate resolves the run date from the flag or the reporting delay.
func targetDate(flag string, reportingDelayDays int) (time.Time, error) {
	if flag == "" {
		return telemetry.Day(time.Now().UTC().AddDate(0, 0, -reportingDelayDays)), nil
	}
	date, err := time.ParseInLocation("2006-01-02", flag, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse --date: %w", err)
	}
	return telemetry.Day(date), nil
}
