package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/hirepath/searchpulse/internal/searchconsole"
	"github.com/hirepath/searchpulse/internal/telemetry"
)

func newCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Verifies connectivity to the configured provider and store",
		Long: `Probes the analytics provider with a one-row query, lists submitted
sitemaps, and reports the results. Useful after changing credentials or
configuration.`,

		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}

			probe := telemetry.Day(time.Now().UTC().AddDate(0, 0, -appInstance.Config().Provider.ReportingDelayDays))
			rows, err := appInstance.Analytics().Query(
				cmd.Context(), probe, probe, []string{searchconsole.DimensionPage}, 1,
			)
			if err != nil {
				return fmt.Errorf("analytics probe: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "analytics: ok (%d row(s) for %s)\n",
				len(rows), telemetry.DayString(probe))

			sitemaps, err := appInstance.Inspector().ListSitemaps(cmd.Context())
			if err != nil {
				return fmt.Errorf("list sitemaps: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "sitemaps: ok (%d submitted)\n", len(sitemaps))

			return nil
		},
	}
}
