package cli

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/rshade/greenledger/internal/server"
)

// NewServeCmd creates the serve command.
func NewServeCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		Long: `Serves entries, reports, compliance and calculation metadata over HTTP until
interrupted. Routes live under /v1; /healthz answers liveness probes.`,
		Example: `  greenledger serve --addr 0.0.0.0:8080`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return withSession(ctx, func(sess *session) error {
				serverCfg := sess.cfg.Server
				if addr != "" {
					serverCfg.Addr = addr
				}
				cmd.Printf("Serving on http://%s\n", serverCfg.Addr)
				return server.New(sess.store, sess.engine).ListenAndServe(ctx, serverCfg)
			})
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default: server.addr)")

	return cmd
}
