package cli

import (
	"errors"
	"strings"

	"clarity-canvas/internal/publish"

	"github.com/spf13/cobra"
)

func newPublishCmd(app *App) *cobra.Command {
	var toDir string
	var includeDone bool
	var overwrite bool

	cmd := &cobra.Command{
		Use:   "publish",
		Short: "Export derived Markdown pages (not canonical)",
	}

	canvasCmd := &cobra.Command{
		Use:   "canvas",
		Short: "Publish an index of all groups plus one page per group",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, _, err := loadDB(app)
			if err != nil {
				return writeErr(cmd, err)
			}
			toDir = strings.TrimSpace(toDir)
			if toDir == "" {
				return writeErr(cmd, errors.New("missing --to"))
			}
			title := app.Workspace
			if title == "" {
				title = "Canvas"
			}
			res, err := publish.WriteCanvas(db, toDir, publish.WriteOptions{
				IncludeDone: includeDone,
				Overwrite:   overwrite,
				Title:       title,
			})
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"data": res})
		},
	}

	groupCmd := &cobra.Command{
		Use:   "group <group-id|role>",
		Short: "Publish a single group as Markdown",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, _, err := loadDB(app)
			if err != nil {
				return writeErr(cmd, err)
			}
			toDir = strings.TrimSpace(toDir)
			if toDir == "" {
				return writeErr(cmd, errors.New("missing --to"))
			}
			id := args[0]
			if _, ok := db.FindGroup(id); !ok {
				if g, ok := db.GroupByRole(id); ok {
					id = g.ID
				}
			}
			res, err := publish.WriteGroup(db, id, toDir, publish.WriteOptions{
				IncludeDone: includeDone,
				Overwrite:   overwrite,
			})
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"data": res})
		},
	}

	for _, c := range []*cobra.Command{canvasCmd, groupCmd} {
		c.Flags().StringVar(&toDir, "to", "", "Output directory")
		c.Flags().BoolVar(&includeDone, "include-done", false, "Include done tasks")
		c.Flags().BoolVar(&overwrite, "overwrite", false, "Overwrite existing files")
	}

	cmd.AddCommand(canvasCmd, groupCmd)
	return cmd
}
