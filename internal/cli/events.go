package cli

import (
	"clarity-canvas/internal/model"

	"github.com/spf13/cobra"
)

func newEventsCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Event log commands",
	}
	cmd.AddCommand(newEventsListCmd(app))
	return cmd
}

func newEventsListCmd(app *App) *cobra.Command {
	var entity string
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the most recent events, oldest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, s, err := loadDB(app)
			if err != nil {
				return writeErr(cmd, err)
			}
			evs, err := s.ListEvents(cmd.Context(), entity, limit)
			if err != nil {
				return writeErr(cmd, err)
			}
			if evs == nil {
				evs = []model.Event{}
			}
			return writeOut(cmd, app, map[string]any{"data": evs})
		},
	}
	cmd.Flags().StringVar(&entity, "entity", "", "Only events for this entity id")
	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum events to return (0 = all)")
	return cmd
}
