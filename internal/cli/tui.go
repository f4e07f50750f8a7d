package cli

import (
	"context"
	"sync/atomic"
	"time"

	"clarity-canvas/internal/canvas"
	"clarity-canvas/internal/realtime"
	"clarity-canvas/internal/store"
	"clarity-canvas/internal/tui"

	"github.com/spf13/cobra"
)

func runTUI(cmd *cobra.Command, app *App) error {
	changes := make(chan struct{}, 1)
	var saver *store.DebouncedSaver
	ws, err := openWorkspace(app, sessionOpts{
		saver: func(s store.Store, db *store.DB) canvas.Notifier {
			saver = store.NewDebouncedSaver(store.DebouncedSaverOpts{
				Store: s,
				DB:    db,
				OnError: func(err error) {
					app.log().Warn("tui: save failed", "err", err)
				},
			})
			return saver
		},
		onChange: func() {
			select {
			case changes <- struct{}{}:
			default:
			}
		},
	})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	var relayState atomic.Value
	relayState.Store("")
	if app.Connect {
		relayState.Store("relay: offline")
		conn, err := realtime.Dial(ctx, ws.cfg.RelayURL, app.log())
		if err != nil {
			// The canvas stays usable offline.
			app.log().Warn("tui: relay unavailable", "url", ws.cfg.RelayURL, "err", err)
		} else {
			defer conn.Close()
			ws.session.SetPublisher(conn)
			relayState.Store("relay: connected")
			go func() {
				err := conn.Run(ctx, func(ev realtime.Event) {
					if _, err := ws.session.HandleRemote(ctx, ev); err != nil {
						app.log().Warn("tui: apply failed", "event", ev.ID, "err", err)
					}
				})
				if err != nil && ctx.Err() == nil {
					app.log().Warn("tui: relay disconnected", "err", err)
				}
				ws.session.SetPublisher(nil)
				relayState.Store("relay: offline")
			}()
		}
	}

	runErr := tui.Run(tui.Options{
		Session:   ws.session,
		Workspace: app.Workspace,
		Changes:   changes,
		Status:    func() string { return relayState.Load().(string) },
	})

	flushCtx, flushCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer flushCancel()
	if err := saver.Flush(flushCtx); err != nil && runErr == nil {
		runErr = err
	}
	return runErr
}
