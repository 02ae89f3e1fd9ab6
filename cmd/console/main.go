package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/noah-isme/gema-exam-console/internal/config"
	"github.com/noah-isme/gema-exam-console/internal/logging"
	"github.com/noah-isme/gema-exam-console/internal/results"
	"github.com/noah-isme/gema-exam-console/pkg/examclient"
)

// env is what every command needs after flags and config are merged.
type env struct {
	cfg    config.ConsoleConfig
	logger zerolog.Logger
	client *examclient.Client
}

func main() {
	rootCmd := &cobra.Command{
		Use:           "gema-console",
		Short:         "Instructor console for live exam results",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	persistent := rootCmd.PersistentFlags()
	persistent.String("api-url", "", "Exam API base URL (overrides GEMA_CONSOLE_API_URL)")
	persistent.String("token", "", "Bearer token (overrides GEMA_CONSOLE_TOKEN)")
	persistent.Duration("poll", 0, "Change polling interval (overrides GEMA_CONSOLE_POLL_INTERVAL)")
	persistent.String("export-dir", "", "Directory for export files")
	persistent.String("log-level", "", "Log level")
	persistent.String("log-file", "", "Log file; the console never logs to the terminal")

	rootCmd.AddCommand(
		newWatchCmd(),
		newExportCmd(),
		newOverviewCmd(),
		newTokenCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadEnv reads the console config with the command's flags bound over viper.
func loadEnv(cmd *cobra.Command) (env, error) {
	cfg, err := config.LoadConsole(cmd.Flags())
	if err != nil {
		return env{}, err
	}

	logger := logging.New(logging.Options{
		Level:   cfg.LogLevel,
		File:    cfg.LogFile,
		Service: "exam-console",
	})

	return env{
		cfg:    cfg,
		logger: logger,
		client: examclient.New(cfg.APIURL, cfg.Token),
	}, nil
}

func (e env) newView() *results.View {
	return results.NewView(e.client, results.ViewOptions{
		PollInterval:  e.cfg.PollInterval,
		RetryInterval: e.cfg.RetryInterval,
		CloseDelay:    results.DefaultCloseDelay,
		Logger:        e.logger,
	})
}
