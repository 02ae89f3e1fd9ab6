package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/noah-isme/gema-exam-console/internal/console"
	"github.com/noah-isme/gema-exam-console/internal/results"
)

func newWatchCmd() *cobra.Command {
	var examID uint

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Open the live results screen of an exam",
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := loadEnv(cmd)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			view := e.newView()
			defer view.Close()

			exporter := results.NewExporter(e.client, nil, e.logger)
			exporter.Workbooks().Warm()

			e.logger.Info().Uint("exam_id", examID).Str("api", e.cfg.APIURL).Msg("console started")
			return console.Run(ctx, view, exporter, console.Options{
				ExamID:    examID,
				ExportDir: e.cfg.ExportDir,
				Logger:    e.logger,
			})
		},
	}

	cmd.Flags().UintVarP(&examID, "exam", "e", 0, "Exam ID (required)")
	_ = cmd.MarkFlagRequired("exam")
	return cmd
}
