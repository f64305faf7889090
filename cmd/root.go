// Package cmd defines and implements the CLI commands for the searchpulse
// executable.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hirepath/searchpulse/internal/app"
	"github.com/hirepath/searchpulse/internal/config"
	"github.com/hirepath/searchpulse/internal/pipeline"
	"github.com/hirepath/searchpulse/internal/searchconsole"
)

var cfgFile string

// appKeyType is the key for storing the App in the context.
type appKeyType string

const appKey appKeyType = "app"

// App defines the application surface the commands use. Keeping it an
// interface lets tests inject a fake container.
type App interface {
	Close()
	Config() config.Config
	Logger() *zap.Logger
	Analytics() searchconsole.AnalyticsProvider
	Inspector() searchconsole.InspectionProvider
	Runner() *pipeline.Runner
}

// newApp is the application factory. It is a variable so tests can replace
// it with a fake.
var newApp = func(ctx context.Context, configPath string) (App, error) {
	return app.New(ctx, configPath)
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "searchpulse",
		Short: "Batch pipeline for search performance telemetry.",
		Long: `searchpulse ingests daily search performance reports, detects traffic
anomalies against rolling baselines, and rotates URL inspections under a
daily budget.`,

		// Runs after flags are parsed but before the subcommand's RunE, so
		// every command sees a fully wired container.
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := newApp(cmd.Context(), cfgFile)
			if err != nil {
				return fmt.Errorf("initialize application services: %w", err)
			}
			cmd.SetContext(context.WithValue(cmd.Context(), appKey, appInstance))
			return nil
		},

		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			if appInstance, ok := cmd.Context().Value(appKey).(App); ok && appInstance != nil {
				appInstance.Close()
			}
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file path")

	cmd.AddCommand(newRunCmd())
	cmd.AddCommand(newCheckCmd())

	return cmd
}

func resolveApp(ctx context.Context) (App, error) {
	appInstance, ok := ctx.Value(appKey).(App)
	if !ok || appInstance == nil {
		return nil, errors.New("application services not initialized")
	}
	return appInstance, nil
}

// Execute is the main entry point.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "searchpulse: %v\n", err)
		os.Exit(1)
	}
}
