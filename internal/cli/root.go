package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"clarity-canvas/internal/canvas"
	"clarity-canvas/internal/format"
	"clarity-canvas/internal/store"

	"github.com/spf13/cobra"
)

type App struct {
	Dir        string
	Workspace  string
	PrettyJSON bool
	Format     string
	LogLevel   string
	Connect    bool

	logger *slog.Logger
}

func NewRootCmd() *cobra.Command {
	app := &App{}

	cmd := &cobra.Command{
		Use:          "clarity-canvas",
		Short:        "Spatial task canvas (local-first) CLI + TUI",
		SilenceUsage: true,
		Example: strings.TrimSpace(`
  # Start the interactive canvas
  clarity-canvas

  # Create a workspace with Inbox/Today/Overdue groups
  clarity-canvas init

  # Move everything left in Today into Overdue
  clarity-canvas rollover

  # Share a workspace through a relay
  clarity-canvas relay serve --addr :8765
  clarity-canvas sync listen --url ws://127.0.0.1:8765/ws
`),
		RunE: func(cmd *cobra.Command, args []string) error {
			// No subcommand => interactive TUI.
			if cmd.HasSubCommands() && len(args) == 0 {
				return runTUI(cmd, app)
			}
			return cmd.Help()
		},
	}

	cmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		logger, err := newLogger(cmd.ErrOrStderr(), app.LogLevel)
		if err != nil {
			return writeErr(cmd, err)
		}
		app.logger = logger
		return nil
	}

	cmd.PersistentFlags().StringVar(&app.Dir, "dir", envOr("CLARITY_CANVAS_DIR", ""), "Path to store dir (advanced: overrides workspace resolution)")
	cmd.PersistentFlags().StringVar(&app.Workspace, "workspace", envOr("CLARITY_CANVAS_WORKSPACE", ""), "Workspace name (default: 'default')")
	cmd.PersistentFlags().BoolVar(&app.PrettyJSON, "pretty", false, "Pretty-print JSON output")
	cmd.PersistentFlags().StringVar(&app.Format, "format", envOr("CLARITY_CANVAS_FORMAT", "json"), "Output format (json|yaml)")
	cmd.PersistentFlags().StringVar(&app.LogLevel, "log-level", envOr("CLARITY_CANVAS_LOG_LEVEL", "warn"), "Log level (debug|info|warn|error)")
	cmd.Flags().BoolVar(&app.Connect, "connect", false, "Connect the canvas to the configured relay")

	cmd.AddCommand(newInitCmd(app))
	cmd.AddCommand(newGroupsCmd(app))
	cmd.AddCommand(newTasksCmd(app))
	cmd.AddCommand(newCanvasCmd(app))
	cmd.AddCommand(newRolloverCmd(app))
	cmd.AddCommand(newEventsCmd(app))
	cmd.AddCommand(newRelayCmd(app))
	cmd.AddCommand(newSyncCmd(app))
	cmd.AddCommand(newPublishCmd(app))
	cmd.AddCommand(newDocsCmd(app))

	return cmd
}

func newLogger(w io.Writer, level string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.TrimSpace(level))); err != nil {
		return nil, fmt.Errorf("invalid --log-level %q", level)
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl})), nil
}

func (app *App) log() *slog.Logger {
	if app.logger == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return app.logger
}

func loadDB(app *App) (*store.DB, store.Store, error) {
	dir := app.Dir
	if dir == "" {
		// Workspace-first:
		// 1) --workspace
		// 2) ~/.clarity-canvas/config.json currentWorkspace
		// 3) default workspace ("default")
		if app.Workspace != "" {
			d, err := store.WorkspaceDir(app.Workspace)
			if err != nil {
				return nil, store.Store{}, err
			}
			dir = d
		} else if cfg, err := store.LoadConfig(); err == nil && cfg.CurrentWorkspace != "" {
			d, err := store.WorkspaceDir(cfg.CurrentWorkspace)
			if err != nil {
				return nil, store.Store{}, err
			}
			app.Workspace = cfg.CurrentWorkspace
			dir = d
		} else {
			app.Workspace = "default"
			d, err := store.WorkspaceDir(app.Workspace)
			if err != nil {
				return nil, store.Store{}, err
			}
			dir = d
		}
		app.Dir = dir
	}

	s := store.Store{Dir: dir}
	db, err := s.Load()
	if err != nil {
		return nil, s, err
	}
	return db, s, nil
}

// workspace is a loaded store plus the session driving it.
type workspace struct {
	db      *store.DB
	store   store.Store
	cfg     store.CanvasConfig
	session *canvas.Session
}

type sessionOpts struct {
	// saver builds the persistence hook once the store is loaded.
	saver    func(s store.Store, db *store.DB) canvas.Notifier
	pub      canvas.Publisher
	onChange func()
}

func openWorkspace(app *App, opts sessionOpts) (*workspace, error) {
	db, s, err := loadDB(app)
	if err != nil {
		return nil, err
	}
	gcfg, err := store.LoadConfig()
	if err != nil {
		return nil, err
	}
	replicaID, err := store.EnsureDeviceID()
	if err != nil {
		return nil, err
	}
	cfg := gcfg.Canvas.Resolved()
	var saver canvas.Notifier
	if opts.saver != nil {
		saver = opts.saver(s, db)
	}
	sess := canvas.New(canvas.Options{
		Store:     db,
		Logger:    app.log(),
		ReplicaID: replicaID,
		Config:    cfg,
		Saver:     saver,
		Events:    s,
		Publisher: opts.pub,
		OnChange:  opts.onChange,
	})
	return &workspace{db: db, store: s, cfg: cfg, session: sess}, nil
}

func (w *workspace) save() error {
	return w.store.Save(w.db)
}

func envOr(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func writeOut(cmd *cobra.Command, app *App, v any) error {
	return format.Write(cmd.OutOrStdout(), v, app.Format, app.PrettyJSON)
}

func writeErr(cmd *cobra.Command, err error) error {
	fmt.Fprintln(cmd.ErrOrStderr(), err.Error())
	return err
}
