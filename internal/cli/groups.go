package cli

import (
	"errors"
	"strings"

	"clarity-canvas/internal/containment"
	"clarity-canvas/internal/model"
	"clarity-canvas/internal/mutate"

	"github.com/spf13/cobra"
)

func newGroupsCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "groups",
		Short: "Group commands",
	}

	cmd.AddCommand(newGroupsListCmd(app))
	cmd.AddCommand(newGroupsShowCmd(app))
	cmd.AddCommand(newGroupsCreateCmd(app))
	cmd.AddCommand(newGroupsMoveCmd(app))
	cmd.AddCommand(newGroupsResizeCmd(app))
	cmd.AddCommand(newGroupsReparentCmd(app))

	return cmd
}

func newGroupsListCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List groups (creation order)",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, _, err := loadDB(app)
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"data": db.Groups()})
		},
	}
	return cmd
}

func newGroupsShowCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <group-id|role>",
		Short: "Show a group and the tasks that resolve into it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, _, err := loadDB(app)
			if err != nil {
				return writeErr(cmd, err)
			}
			g, ok := db.FindGroup(args[0])
			if !ok {
				g, ok = db.GroupByRole(args[0])
			}
			if !ok {
				return writeErr(cmd, errNotFound("group", args[0]))
			}
			members := containment.Members(g.ID, db.Tasks(), db.Groups())
			if members == nil {
				members = []model.Task{}
			}
			return writeOut(cmd, app, map[string]any{
				"data": map[string]any{
					"group":          g,
					"resolvedParent": nullableID(containment.ResolveGroupParent(g, db.Groups())),
					"tasks":          members,
				},
			})
		},
	}
	return cmd
}

// rectFlags binds --x/--y/--width/--height.
type rectFlags struct {
	x, y, w, h float64
}

func (f *rectFlags) bind(cmd *cobra.Command) {
	cmd.Flags().Float64Var(&f.x, "x", 0, "Left edge (canvas coordinates)")
	cmd.Flags().Float64Var(&f.y, "y", 0, "Top edge (canvas coordinates)")
	cmd.Flags().Float64Var(&f.w, "width", 300, "Width")
	cmd.Flags().Float64Var(&f.h, "height", 600, "Height")
}

func (f rectFlags) rect() model.Rect {
	return model.Rect{Point: model.Point{X: f.x, Y: f.y}, Size: model.Size{Width: f.w, Height: f.h}}
}

func newGroupsCreateCmd(app *App) *cobra.Command {
	var name string
	var role string
	var r rectFlags

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a group; its parent is derived from where it sits",
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(name) == "" {
				return writeErr(cmd, errors.New("missing --name"))
			}
			ws, err := openWorkspace(app, sessionOpts{})
			if err != nil {
				return writeErr(cmd, err)
			}
			g, err := ws.session.CreateGroup(name, role, r.rect())
			if err != nil {
				return writeErr(cmd, err)
			}
			if err := ws.save(); err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"data": g})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "Group name")
	cmd.Flags().StringVar(&role, "role", "", "Optional role (today|overdue|inbox|...)")
	r.bind(cmd)
	return cmd
}

func newGroupsMoveCmd(app *App) *cobra.Command {
	var x, y float64

	cmd := &cobra.Command{
		Use:   "move <group-id>",
		Short: "Move a group and everything inside it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := openWorkspace(app, sessionOpts{})
			if err != nil {
				return writeErr(cmd, err)
			}
			res, err := ws.session.MoveGroup(args[0], model.Point{X: x, Y: y})
			if err != nil {
				return writeErr(cmd, err)
			}
			if err := ws.save(); err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"data": groupChangeOut(res)})
		},
	}
	cmd.Flags().Float64Var(&x, "x", 0, "New left edge")
	cmd.Flags().Float64Var(&y, "y", 0, "New top edge")
	_ = cmd.MarkFlagRequired("x")
	_ = cmd.MarkFlagRequired("y")
	return cmd
}

func newGroupsResizeCmd(app *App) *cobra.Command {
	var r rectFlags

	cmd := &cobra.Command{
		Use:   "resize <group-id>",
		Short: "Replace a group's bounds; tasks are re-resolved",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := openWorkspace(app, sessionOpts{})
			if err != nil {
				return writeErr(cmd, err)
			}
			cur, ok := ws.db.FindGroup(args[0])
			if !ok {
				return writeErr(cmd, mutate.NotFoundError{Kind: model.EntityKindGroup, ID: args[0]})
			}
			// Unset flags keep the current value.
			b := cur.Bounds
			if cmd.Flags().Changed("x") {
				b.X = r.x
			}
			if cmd.Flags().Changed("y") {
				b.Y = r.y
			}
			if cmd.Flags().Changed("width") {
				b.Width = r.w
			}
			if cmd.Flags().Changed("height") {
				b.Height = r.h
			}
			res, err := ws.session.ResizeGroup(args[0], b)
			if err != nil {
				return writeErr(cmd, err)
			}
			if err := ws.save(); err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"data": groupChangeOut(res)})
		},
	}
	r.bind(cmd)
	return cmd
}

func newGroupsReparentCmd(app *App) *cobra.Command {
	var parent string
	var root bool

	cmd := &cobra.Command{
		Use:   "reparent <group-id>",
		Short: "Set a group's parent explicitly (--parent <group-id> or --root)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			parent = strings.TrimSpace(parent)
			if (parent == "") == !root {
				return writeErr(cmd, errors.New("pass exactly one of --parent or --root"))
			}
			ws, err := openWorkspace(app, sessionOpts{})
			if err != nil {
				return writeErr(cmd, err)
			}
			res, err := ws.session.ReparentGroup(args[0], parent)
			if err != nil {
				return writeErr(cmd, err)
			}
			if err := ws.save(); err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"data": groupChangeOut(res)})
		},
	}
	cmd.Flags().StringVar(&parent, "parent", "", "New parent group id")
	cmd.Flags().BoolVar(&root, "root", false, "Move the group to the canvas root")
	return cmd
}

func groupChangeOut(res mutate.GroupChangeResult) map[string]any {
	carried := res.Carried
	if carried == nil {
		carried = []string{}
	}
	reparented := res.Reparented
	if reparented == nil {
		reparented = []string{}
	}
	return map[string]any{
		"group":        res.Group,
		"changed":      res.Changed,
		"prevParentId": nullableID(res.PrevParentID),
		"carried":      carried,
		"reparented":   reparented,
	}
}

func nullableID(id string) any {
	if id == "" {
		return nil
	}
	return id
}
