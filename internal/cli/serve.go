package cli

import (
	"github.com/spf13/cobra"

	"oshaberi/internal/web"
)

func newServeCmd(root *Options) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the browser chat",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.loadForLLM()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("addr") {
				cfg.Server.Addr = addr
			}
			logger := newLogger(cfg, cmd.ErrOrStderr())
			b, err := newBackend(cfg, logger)
			if err != nil {
				return err
			}
			srv, err := web.New(b.chat, b.store, web.Options{
				Addr:        cfg.Server.Addr,
				IdleTimeout: cfg.Session.IdleTimeout,
				Logger:      logger,
			})
			if err != nil {
				return err
			}
			return srv.Run(cmd.Context())
		},
	}
	cmd.Flags().StringVar(&addr, "addr", web.DefaultAddr, "listen address")
	return cmd
}
