package cli

import (
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"clarity-canvas/internal/realtime"

	"github.com/spf13/cobra"
)

func newRelayCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "relay",
		Short: "Realtime relay commands",
	}
	cmd.AddCommand(newRelayServeCmd(app))
	return cmd
}

func newRelayServeCmd(app *App) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run a websocket relay that fans canvas events out to every connected replica",
		Example: strings.TrimSpace(`
# Serve on all interfaces
clarity-canvas relay serve --addr :8765

# Then, on each replica
clarity-canvas sync listen --url ws://host:8765/ws
`),
		RunE: func(cmd *cobra.Command, args []string) error {
			listenAddr := strings.TrimSpace(addr)
			if listenAddr == "" {
				return writeErr(cmd, errors.New("relay: missing --addr"))
			}

			ln, err := net.Listen("tcp", listenAddr)
			if err != nil {
				return writeErr(cmd, err)
			}
			actualAddr := ln.Addr().String()

			_ = writeOut(cmd, app, map[string]any{
				"data": map[string]any{
					"addr":      actualAddr,
					"url":       "ws://" + actualAddr + "/ws",
					"startedAt": time.Now().UTC().Format(time.RFC3339Nano),
				},
			})
			fmt.Fprintf(cmd.ErrOrStderr(), "Relay running at ws://%s/ws\n", actualAddr)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			srv := realtime.NewServer(realtime.NewHub(), app.log())
			return srv.Serve(ctx, ln)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8765", "Bind address (host:port or :port)")
	return cmd
}
