package console

import (
	"context"
	"errors"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/noah-isme/gema-exam-console/internal/results"
)

// Run drives the results screen until the user quits or ctx is done.
func Run(ctx context.Context, view *results.View, exporter *results.Exporter, opts Options) error {
	program := tea.NewProgram(New(ctx, view, exporter, opts), tea.WithAltScreen(), tea.WithContext(ctx))

	// Send blocks until the update loop takes the message, and the view may
	// notify from inside Update, so delivery happens off the caller.
	view.OnChange(func(event results.Event) {
		go program.Send(viewEventMsg(event))
	})
	defer view.OnChange(nil)

	_, err := program.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}
