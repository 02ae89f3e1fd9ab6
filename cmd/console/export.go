package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/noah-isme/gema-exam-console/internal/console"
	"github.com/noah-isme/gema-exam-console/internal/results"
)

func newExportCmd() *cobra.Command {
	var (
		examID     uint
		format     string
		search     string
		status     string
		sortBy     string
		descending bool
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export an exam's results as CSV or XLSX",
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := loadEnv(cmd)
			if err != nil {
				return err
			}

			view := e.newView()
			defer view.Close()

			if err := view.SelectExam(cmd.Context(), examID); err != nil {
				return err
			}
			view.SetQuery(results.Query{
				Search:     search,
				Status:     status,
				Sort:       results.ParseSortField(sortBy),
				Descending: descending,
			})

			exporter := results.NewExporter(e.client, nil, e.logger)
			artifact, err := exporter.ExportView(cmd.Context(), view, results.ParseFormat(format))
			if err != nil {
				return fmt.Errorf("export: %w", err)
			}

			path, err := console.WriteArtifact(e.cfg.ExportDir, artifact)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "wrote %d rows to %s\n", artifact.Rows, path)
			if artifact.FellBack {
				fmt.Fprintln(out, "workbook writer unavailable, exported csv instead")
			}
			if artifact.ImagesMissing > 0 {
				fmt.Fprintf(out, "%d evidence images could not be embedded\n", artifact.ImagesMissing)
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.UintVarP(&examID, "exam", "e", 0, "Exam ID (required)")
	f.StringVarP(&format, "format", "f", string(results.FormatCSV), "csv or xlsx")
	f.StringVar(&search, "search", "", "Filter by student name or id")
	f.StringVar(&status, "status", results.StatusAll, "Filter by status")
	f.StringVar(&sortBy, "sort", string(results.SortByName), "name, total, submitted_at or cheating")
	f.BoolVar(&descending, "desc", false, "Sort descending")
	_ = cmd.MarkFlagRequired("exam")
	return cmd
}
