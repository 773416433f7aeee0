package commands

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/nonibytes/pipeq/internal/api"
	"github.com/nonibytes/pipeq/internal/cliopt"
	"github.com/nonibytes/pipeq/internal/cliutil"
	"github.com/nonibytes/pipeq/internal/logging"
)

func NewServeCmd(st *cliopt.State) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the configured collections over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cliutil.LoadConfig(st.Options.Config)
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Server.Addr = addr
			}

			// The config file picks the server's logger unless a flag overrides it.
			log := st.Log()
			if !cmd.Flags().Changed("log-level") && !cmd.Flags().Changed("log-format") {
				l, err := logging.New(cfg.Log.Level, cfg.Log.Format)
				if err != nil {
					return err
				}
				defer l.Sync() //nolint:errcheck
				log = l
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			store, cols, err := cliutil.OpenCollections(ctx, st.Options.Config, cfg, log)
			if err != nil {
				return err
			}
			defer store.Close()

			names := make([]string, len(cols))
			for i, c := range cols {
				names[i] = c.Name()
			}
			log.Info("store ready",
				zap.String("backend", string(store.Backend())),
				zap.Strings("collections", names))

			srv := api.New(cols, log, api.Options{
				RatePerMinute: cfg.Server.RatePerMinute,
				Burst:         cfg.Server.Burst,
			})

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				return srv.Serve(gctx, cfg.Server.Addr)
			})
			g.Go(func() error {
				<-gctx.Done()
				log.Info("shutdown requested")
				return nil
			})
			if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			log.Info("server stopped")
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides server.addr)")
	return cmd
}
