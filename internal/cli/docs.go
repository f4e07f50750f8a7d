package cli

import (
	"fmt"
	"strings"

	"clarity-canvas/internal/docs"

	"github.com/spf13/cobra"
)

func newDocsCmd(app *App) *cobra.Command {
	var (
		raw     bool
		section string
	)

	cmd := &cobra.Command{
		Use:   "docs [topic]",
		Short: "Read the canvas help pages",
		Long:  "Without a topic, lists every page with its title and sections.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return writeOut(cmd, app, map[string]any{"data": map[string]any{"topics": docs.List()}})
			}

			page, ok := docs.Lookup(args[0])
			if !ok {
				return writeErr(cmd, fmt.Errorf("unknown docs topic: %q (run `clarity-canvas docs` to list topics)", args[0]))
			}
			body := page.Markdown
			if section != "" {
				if body, ok = page.Section(section); !ok {
					return writeErr(cmd, fmt.Errorf("topic %q has no section %q (sections: %s)", page.Topic, section, strings.Join(page.Sections, ", ")))
				}
			}

			if raw {
				_, err := fmt.Fprint(cmd.OutOrStdout(), body)
				return err
			}
			return writeOut(cmd, app, map[string]any{"data": map[string]any{
				"topic":    page.Topic,
				"title":    page.Title,
				"section":  section,
				"markdown": body,
			}})
		},
	}

	cmd.Flags().BoolVar(&raw, "raw", false, "Print raw markdown (no envelope)")
	cmd.Flags().StringVar(&section, "section", "", "Only print this section of the page")

	return cmd
}
