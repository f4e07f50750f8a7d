package cli

import (
	"strings"

	"clarity-canvas/internal/mutate"

	"github.com/spf13/cobra"
)

func newRolloverCmd(app *App) *cobra.Command {
	var from, to string

	cmd := &cobra.Command{
		Use:   "rollover",
		Short: "Move every task in one role group into another (default today -> overdue)",
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := openWorkspace(app, sessionOpts{})
			if err != nil {
				return writeErr(cmd, err)
			}
			if strings.TrimSpace(from) == "" {
				from = ws.cfg.Rollover.From
			}
			if strings.TrimSpace(to) == "" {
				to = ws.cfg.Rollover.To
			}
			l := ws.cfg.Layout
			res, err := ws.session.Rollover(from, to, mutate.Layout{Padding: l.Padding, Header: l.Header, RowSpacing: l.RowSpacing})
			if err != nil {
				return writeErr(cmd, err)
			}
			if res.MovedCount > 0 {
				if err := ws.save(); err != nil {
					return writeErr(cmd, err)
				}
			}
			app.log().Info("rollover", "from", from, "to", to, "reason", res.Reason, "moved", res.MovedCount)
			return writeOut(cmd, app, map[string]any{"data": res})
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "Source group role (default from config)")
	cmd.Flags().StringVar(&to, "to", "", "Destination group role (default from config)")
	return cmd
}
