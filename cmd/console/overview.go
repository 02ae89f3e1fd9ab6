package main

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/noah-isme/gema-exam-console/internal/results"
)

func newOverviewCmd() *cobra.Command {
	var (
		studentID  uint
		sortBy     string
		descending bool
	)

	cmd := &cobra.Command{
		Use:   "overview",
		Short: "Show a student's official result per exam",
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := loadEnv(cmd)
			if err != nil {
				return err
			}

			rows, err := results.StudentOverview(cmd.Context(), e.client, studentID, results.Query{
				Sort:       results.ParseSortField(sortBy),
				Descending: descending,
			})
			if err != nil {
				return fmt.Errorf("load overview: %w", err)
			}

			fmt.Fprintln(cmd.OutOrStdout(), renderOverview(rows))
			return nil
		},
	}

	f := cmd.Flags()
	f.UintVarP(&studentID, "student", "s", 0, "Student ID (required)")
	f.StringVar(&sortBy, "sort", string(results.SortBySubmitted), "name, total, submitted_at or cheating")
	f.BoolVar(&descending, "desc", true, "Sort descending")
	_ = cmd.MarkFlagRequired("student")
	return cmd
}

func renderOverview(rows []results.Row) string {
	if len(rows) == 0 {
		return "no results"
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		Headers("Exam", "Submission", "Status", "Total", "Confirmed", "Submitted")
	for _, row := range rows {
		title := row.ExamTitle
		if title == "" {
			title = fmt.Sprintf("exam %d", row.ExamID)
		}
		submitted := "-"
		if row.SubmittedAt != nil {
			submitted = row.SubmittedAt.Local().Format("2006-01-02 15:04")
		}
		confirmed := "no"
		if row.IsConfirmed() {
			confirmed = "yes"
		}
		t.Row(title, fmt.Sprint(row.SubmissionID), row.Status, fmt.Sprintf("%.2f", row.RankScore()), confirmed, submitted)
	}
	return t.String()
}
