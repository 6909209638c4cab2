package commands

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/paydesk/remitsheet/internal/parser"
	"github.com/paydesk/remitsheet/internal/search"
	"github.com/paydesk/remitsheet/internal/server"
)

func newServeCommand(flags *globalFlags) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the batch over a local JSON API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(flags)
			if err != nil {
				return err
			}
			defer a.close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			engine, err := a.openEngine(ctx)
			if err != nil {
				return err
			}
			if addr == "" {
				addr = a.cfg.Server.Addr
			}

			srv := server.New(server.Deps{
				Engine:       engine,
				Searcher:     search.New(a.client, a.cfg.Directory.MinSearchLength, a.log),
				Directory:    a.client,
				Parser:       parser.Init(ctx, a.cfg.Parser.APIKey, a.cfg.Parser.Model, a.log).WithMetrics(a.metrics),
				History:      a.recorder(),
				DefaultSheet: a.cfg.DefaultSheet(),
				SheetOptions: a.cfg.Batch.SheetOptions,
				Metrics:      a.metrics,
				Logger:       a.log,
			})
			printf(cmd, "Listening on http://%s\n", addr)
			return srv.ListenAndServe(ctx, addr)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (defaults to server.addr)")

	return cmd
}
