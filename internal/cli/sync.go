package cli

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"clarity-canvas/internal/canvas"
	"clarity-canvas/internal/realtime"
	"clarity-canvas/internal/rollover"
	"clarity-canvas/internal/store"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func newSyncCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Realtime sync commands",
	}
	cmd.AddCommand(newSyncListenCmd(app))
	return cmd
}

func newSyncListenCmd(app *App) *cobra.Command {
	var url string
	var withRollover bool
	var debounce time.Duration

	cmd := &cobra.Command{
		Use:   "listen",
		Short: "Apply relay events to this workspace until interrupted",
		Long: strings.TrimSpace(`
Connect to a relay and apply remote position/bounds/parent events to the local
workspace. Events are gated exactly like the interactive canvas: while a local
gesture or lock is active they are dropped. Changes are saved with a debounce.

With --rollover the daily Today -> Overdue pass also runs here, at the
configured local time.
`),
		RunE: func(cmd *cobra.Command, args []string) error {
			var saver *store.DebouncedSaver
			ws, err := openWorkspace(app, sessionOpts{
				saver: func(s store.Store, db *store.DB) canvas.Notifier {
					saver = store.NewDebouncedSaver(store.DebouncedSaverOpts{
						Store:    s,
						DB:       db,
						Debounce: debounce,
						OnError: func(err error) {
							app.log().Warn("sync: save failed", "err", err)
						},
					})
					return saver
				},
			})
			if err != nil {
				return writeErr(cmd, err)
			}

			target := strings.TrimSpace(url)
			if target == "" {
				target = ws.cfg.RelayURL
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			conn, err := realtime.Dial(ctx, target, app.log())
			if err != nil {
				return writeErr(cmd, err)
			}
			defer conn.Close()
			ws.session.SetPublisher(conn)
			app.log().Info("sync: connected", "url", target, "replica", ws.session.ReplicaID())

			if withRollover {
				sched, err := rollover.New(rollover.Options{
					Runner: ws.session,
					Logger: app.log(),
					At:     ws.cfg.Rollover.At,
				})
				if err != nil {
					return writeErr(cmd, err)
				}
				sched.Start()
				defer sched.Stop()
			}

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				return conn.Run(gctx, func(ev realtime.Event) {
					if _, err := ws.session.HandleRemote(gctx, ev); err != nil {
						app.log().Warn("sync: apply failed", "event", ev.ID, "entity", ev.EntityID, "err", err)
					}
				})
			})
			runErr := g.Wait()
			if errors.Is(runErr, context.Canceled) {
				runErr = nil
			}

			flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := saver.Flush(flushCtx); err != nil {
				return writeErr(cmd, err)
			}
			if runErr != nil {
				return writeErr(cmd, runErr)
			}
			return writeOut(cmd, app, map[string]any{
				"data": map[string]any{
					"url":   target,
					"stats": ws.session.Ingestor().Stats(),
					"saves": saver.Saves(),
				},
			})
		},
	}
	cmd.Flags().StringVar(&url, "url", "", "Relay websocket URL (default from config / CLARITY_CANVAS_RELAY_URL)")
	cmd.Flags().BoolVar(&withRollover, "rollover", false, "Also run the scheduled daily rollover")
	cmd.Flags().DurationVar(&debounce, "debounce", 500*time.Millisecond, "Save debounce")
	return cmd
}
