package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"oshaberi/internal/chat"
)

type askOptions struct {
	InputFile string
	sessionOptions
}

func newAskCmd(root *Options) *cobra.Command {
	opts := &askOptions{}
	cmd := &cobra.Command{
		Use:   "ask [text...]",
		Short: "Send one message and stream the reply",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAsk(cmd, root, opts, args)
		},
	}
	cmd.Flags().StringVarP(&opts.InputFile, "file", "F", "", "message file, use -F- for stdin")
	cmd.Flags().StringVarP(&opts.Style, "style", "s", "", "style key (see: oshaberi styles)")
	cmd.Flags().Float64VarP(&opts.Temperature, "temperature", "t", chat.DefaultTemperature, "sampling temperature in [0, 1]")
	return cmd
}

func runAsk(cmd *cobra.Command, root *Options, opts *askOptions, args []string) error {
	input, err := readInput(args, opts.InputFile, cmd.InOrStdin())
	if err != nil {
		return err
	}
	if strings.TrimSpace(input) == "" {
		return fmt.Errorf("input is required")
	}

	cfg, err := root.loadForLLM()
	if err != nil {
		return err
	}
	b, err := newBackend(cfg, newLogger(cfg, cmd.ErrOrStderr()))
	if err != nil {
		return err
	}
	sess := b.store.Get(chat.NewID())
	if err := opts.apply(sess, cmd.Flags().Changed("temperature")); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	result, err := b.chat.Turn(cmd.Context(), sess, input, func(fragment string) error {
		_, writeErr := fmt.Fprint(out, fragment)
		return writeErr
	})
	if err != nil {
		return err
	}
	if result.Alert != nil {
		fmt.Fprintln(cmd.ErrOrStderr(), result.Alert.Message)
		return ErrAlerted
	}
	_, _ = fmt.Fprintln(out)
	return nil
}

func readInput(args []string, inputFile string, stdin io.Reader) (string, error) {
	if inputFile != "" && len(args) > 0 {
		return "", fmt.Errorf("input args and -F are mutually exclusive")
	}
	if inputFile == "" {
		if len(args) == 0 {
			return "", fmt.Errorf("missing input: provide args or -F")
		}
		return strings.Join(args, " "), nil
	}
	if inputFile == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		return trimTrailingNewline(string(data)), nil
	}
	data, err := os.ReadFile(inputFile)
	if err != nil {
		return "", fmt.Errorf("read file: %w", err)
	}
	return trimTrailingNewline(string(data)), nil
}

func trimTrailingNewline(value string) string {
	return strings.TrimRight(value, "\r\n")
}
