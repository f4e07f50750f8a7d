package cli

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"

	"clarity-canvas/internal/containment"
	"clarity-canvas/internal/format"
	"clarity-canvas/internal/store"

	"github.com/spf13/cobra"
)

func newCanvasCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "canvas",
		Short: "Whole-canvas commands (resolve, import, export)",
	}

	cmd.AddCommand(newCanvasResolveCmd(app))
	cmd.AddCommand(newCanvasImportCmd(app))
	cmd.AddCommand(newCanvasExportCmd(app))

	return cmd
}

func newCanvasResolveCmd(app *App) *cobra.Command {
	var onlyChanged bool

	cmd := &cobra.Command{
		Use:   "resolve",
		Short: "Show the containment parent of every node next to its recorded parent",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, _, err := loadDB(app)
			if err != nil {
				return writeErr(cmd, err)
			}
			all := containment.ResolveAll(db.Groups(), db.Tasks())
			out := make([]containment.Resolution, 0, len(all))
			for _, r := range all {
				if onlyChanged && !r.Changed {
					continue
				}
				out = append(out, r)
			}
			return writeOut(cmd, app, map[string]any{"data": out})
		},
	}
	cmd.Flags().BoolVar(&onlyChanged, "changed", false, "Only list nodes whose recorded parent is stale")
	return cmd
}

func newCanvasImportCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import <file|->",
		Short: "Replace the workspace canvas with a YAML/JSON snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var b []byte
			var err error
			if args[0] == "-" {
				b, err = io.ReadAll(cmd.InOrStdin())
			} else {
				b, err = os.ReadFile(args[0])
			}
			if err != nil {
				return writeErr(cmd, err)
			}
			if len(bytes.TrimSpace(b)) == 0 {
				return writeErr(cmd, fmt.Errorf("empty snapshot: %s", args[0]))
			}
			next, err := store.LoadWire(b)
			if err != nil {
				return writeErr(cmd, err)
			}
			_, s, err := loadDB(app)
			if err != nil {
				return writeErr(cmd, err)
			}
			if err := s.Save(next); err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{
				"data": map[string]any{
					"groups": len(next.Groups()),
					"tasks":  len(next.Tasks()),
				},
			})
		},
	}
	return cmd
}

func newCanvasExportCmd(app *App) *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the workspace canvas as a YAML snapshot",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, _, err := loadDB(app)
			if err != nil {
				return writeErr(cmd, err)
			}
			out = strings.TrimSpace(out)
			if out == "" || out == "-" {
				return format.WriteYAML(cmd.OutOrStdout(), db.Wire())
			}
			var buf bytes.Buffer
			if err := format.WriteYAML(&buf, db.Wire()); err != nil {
				return writeErr(cmd, err)
			}
			if err := os.WriteFile(out, buf.Bytes(), 0o644); err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"data": map[string]any{"path": out}})
		},
	}
	cmd.Flags().StringVar(&out, "out", "", "Output file (default stdout)")
	return cmd
}
