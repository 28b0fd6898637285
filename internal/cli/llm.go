package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"oshaberi/internal/chat"
	"oshaberi/internal/llm"
	"oshaberi/internal/stream"
)

type llmTestOptions struct {
	Model string
	URL   string
	Token string
}

func newLLMCmd(root *Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "llm",
		Short: "Inspect the completion backend",
	}
	cmd.AddCommand(newLLMTestCmd(root))
	return cmd
}

func newLLMTestCmd(root *Options) *cobra.Command {
	opts := &llmTestOptions{}
	cmd := &cobra.Command{
		Use:   "test",
		Short: "Test LLM connectivity with config or flags",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLLMTest(cmd, root, opts)
		},
	}
	cmd.Flags().StringVar(&opts.Model, "model", "", "override deployment name")
	cmd.Flags().StringVar(&opts.URL, "url", "", "override endpoint url")
	cmd.Flags().StringVar(&opts.Token, "token", "", "override api key")
	return cmd
}

func runLLMTest(cmd *cobra.Command, root *Options, opts *llmTestOptions) error {
	cfg, err := root.load()
	if err != nil {
		return err
	}
	cfg.LLM.Model = firstNonEmpty(opts.Model, cfg.LLM.Model)
	cfg.LLM.URL = firstNonEmpty(opts.URL, cfg.LLM.URL)
	cfg.LLM.Token = firstNonEmpty(opts.Token, cfg.LLM.Token)
	if err := cfg.RequireLLM(); err != nil {
		return err
	}

	logger := newLogger(cfg, cmd.ErrOrStderr())
	b, err := newBackend(cfg, logger)
	if err != nil {
		return err
	}
	outcome, err := b.completer.Complete(cmd.Context(), []llm.Message{
		{Role: llm.RoleUser, Content: "ping"},
	}, chat.DefaultTemperature)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	switch o := outcome.(type) {
	case *chat.Alert:
		fmt.Fprintf(cmd.ErrOrStderr(), "%s: %s\n", o.Kind, o.Message)
		return ErrAlerted
	case *chat.Streaming:
		defer o.Close()
		reply, err := stream.Collect(stream.TrimLeading(stream.Deltas(o.Chunks)), nil)
		if err != nil {
			kind := chat.Classify(err)
			logger.Error("stream failed", "kind", kind.String(), "error", err)
			fmt.Fprintf(cmd.ErrOrStderr(), "%s: %s\n", kind, kind.Advisory())
			return ErrAlerted
		}
		fmt.Fprintf(out, "ok %s (%s): %s\n", cfg.LLM.Model, cfg.LLM.Type, reply)
		return nil
	default:
		return fmt.Errorf("unexpected completion outcome %T", outcome)
	}
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if strings.TrimSpace(value) != "" {
			return value
		}
	}
	return ""
}
