package cli

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/nconklindev/refmatch/internal/ui"
)

// runTUI starts the interactive workflow. Export settings come from the
// config file and environment.
func (a *App) runTUI(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	plan, err := a.config.ExportPlan()
	if err != nil {
		return err
	}

	model := ui.New(ctx, ui.Options{Export: plan})
	p := tea.NewProgram(model,
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
		tea.WithContext(ctx),
	)
	_, err = p.Run()
	return err
}
