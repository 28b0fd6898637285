package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"oshaberi/internal/chat"
	"oshaberi/internal/tui"
)

func newChatCmd(root *Options) *cobra.Command {
	opts := &sessionOptions{}
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Chat in the terminal",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.loadForLLM()
			if err != nil {
				return err
			}

			// The terminal belongs to the UI; logs go to log.file or nowhere.
			var logOut io.Writer = io.Discard
			if cfg.Log.File != "" {
				f, err := os.OpenFile(cfg.Log.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
				if err != nil {
					return fmt.Errorf("open log file: %w", err)
				}
				defer f.Close()
				logOut = f
			}

			b, err := newBackend(cfg, newLogger(cfg, logOut))
			if err != nil {
				return err
			}
			sess := b.store.Get(chat.NewID())
			if err := opts.apply(sess, cmd.Flags().Changed("temperature")); err != nil {
				return err
			}
			return tui.Run(cmd.Context(), b.chat, sess)
		},
	}
	cmd.Flags().StringVarP(&opts.Style, "style", "s", "", "style key (see: oshaberi styles)")
	cmd.Flags().Float64VarP(&opts.Temperature, "temperature", "t", chat.DefaultTemperature, "sampling temperature in [0, 1]")
	return cmd
}
