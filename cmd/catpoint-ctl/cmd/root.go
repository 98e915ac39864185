package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap/zapcore"

	"github.com/oshokin/catpoint/internal/config"
	"github.com/oshokin/catpoint/internal/logger"
	"github.com/oshokin/catpoint/internal/service/client"
	"github.com/oshokin/catpoint/internal/version"
)

var (
	// cfgPath stores the configuration file path.
	cfgPath string
	// serverAddress overrides the server address from the configuration file.
	serverAddress string
	// verbose enables debug logging.
	verbose bool

	// rootCmd is the base command; subcommands do the work.
	rootCmd = &cobra.Command{
		Use:   "catpoint-ctl",
		Short: "Control a catpoint security controller.",
		Long: `Command line client for the catpoint security controller.

Shows the current status, changes the arming mode, manages sensors and uploads
camera frames for classification. Every command prints the resulting status.`,
		SilenceUsage: true,
		PersistentPreRun: func(*cobra.Command, []string) {
			// Only problems are logged unless asked otherwise; results go to stdout.
			level := zapcore.WarnLevel
			if verbose {
				level = zapcore.DebugLevel
			}

			logger.SetLogger(logger.New(nil, logger.WithLevel(level)))
		},
	}
)

// Execute runs the catpoint-ctl CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	rootCmd.AddCommand(
		statusCmd(),
		armCmd(),
		disarmCmd(),
		alarmCmd(),
		sensorCmd(),
		imageCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// run executes action with a signal-aware context.
func run(cmd *cobra.Command, action client.Action) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	return client.Run(ctx, &client.Options{
		ConfigPath:    cfgPath,
		ServerAddress: serverAddress,
		Output:        cmd.OutOrStdout(),
	}, action)
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	rootCmd.PersistentFlags().
		StringVarP(&cfgPath, "config", "c", config.DefaultConfigFilename, "path to configuration file")
	rootCmd.PersistentFlags().
		StringVarP(&serverAddress, "server", "s", "", "server address (overrides config)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}
