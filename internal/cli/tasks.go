package cli

import (
	"errors"
	"strings"

	"clarity-canvas/internal/containment"
	"clarity-canvas/internal/model"

	"github.com/spf13/cobra"
)

func newTasksCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tasks",
		Short: "Task commands",
	}

	cmd.AddCommand(newTasksListCmd(app))
	cmd.AddCommand(newTasksShowCmd(app))
	cmd.AddCommand(newTasksCreateCmd(app))
	cmd.AddCommand(newTasksMoveCmd(app))

	return cmd
}

func newTasksListCmd(app *App) *cobra.Command {
	var groupID string
	var inbox bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks (optionally those resolving into --group)",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, _, err := loadDB(app)
			if err != nil {
				return writeErr(cmd, err)
			}
			tasks := db.Tasks()
			if g := strings.TrimSpace(groupID); g != "" {
				grp, ok := db.FindGroup(g)
				if !ok {
					// Roles are accepted too: --group today.
					grp, ok = db.GroupByRole(g)
				}
				if !ok {
					return writeErr(cmd, errNotFound("group", g))
				}
				tasks = containment.Members(grp.ID, tasks, db.Groups())
			}
			out := make([]model.Task, 0, len(tasks))
			for _, t := range tasks {
				if cmd.Flags().Changed("inbox") && t.IsInInbox != inbox {
					continue
				}
				out = append(out, t)
			}
			return writeOut(cmd, app, map[string]any{"data": out})
		},
	}
	cmd.Flags().StringVar(&groupID, "group", "", "Group id or role")
	cmd.Flags().BoolVar(&inbox, "inbox", false, "Filter by inbox flag")
	return cmd
}

func newTasksShowCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <task-id>",
		Short: "Show a task with its recorded and resolved parent",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, _, err := loadDB(app)
			if err != nil {
				return writeErr(cmd, err)
			}
			t, ok := db.FindTask(args[0])
			if !ok {
				return writeErr(cmd, errNotFound("task", args[0]))
			}
			return writeOut(cmd, app, map[string]any{
				"data": map[string]any{
					"task":           t,
					"resolvedParent": nullableID(containment.ResolveParent(containment.NodeFromTask(t), db.Groups())),
				},
			})
		},
	}
	return cmd
}

func newTasksCreateCmd(app *App) *cobra.Command {
	var title string
	var x, y float64
	var inbox bool

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a task at a canvas position",
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(title) == "" {
				return writeErr(cmd, errors.New("missing --title"))
			}
			ws, err := openWorkspace(app, sessionOpts{})
			if err != nil {
				return writeErr(cmd, err)
			}
			t, err := ws.session.CreateTask(title, model.Point{X: x, Y: y}, inbox)
			if err != nil {
				return writeErr(cmd, err)
			}
			if err := ws.save(); err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"data": t})
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "Task title")
	cmd.Flags().Float64Var(&x, "x", 0, "Left edge")
	cmd.Flags().Float64Var(&y, "y", 0, "Top edge")
	cmd.Flags().BoolVar(&inbox, "inbox", false, "Mark the task as an inbox task (never rolled over)")
	return cmd
}

func newTasksMoveCmd(app *App) *cobra.Command {
	var x, y float64

	cmd := &cobra.Command{
		Use:   "move <task-id>",
		Short: "Move a task; its parent group is re-derived from the new position",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := openWorkspace(app, sessionOpts{})
			if err != nil {
				return writeErr(cmd, err)
			}
			res, err := ws.session.MoveTask(args[0], model.Point{X: x, Y: y})
			if err != nil {
				return writeErr(cmd, err)
			}
			if err := ws.save(); err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{
				"data": map[string]any{
					"task":         res.Task,
					"changed":      res.Changed,
					"prevParentId": nullableID(res.PrevParentID),
				},
			})
		},
	}
	cmd.Flags().Float64Var(&x, "x", 0, "New left edge")
	cmd.Flags().Float64Var(&y, "y", 0, "New top edge")
	_ = cmd.MarkFlagRequired("x")
	_ = cmd.MarkFlagRequired("y")
	return cmd
}
