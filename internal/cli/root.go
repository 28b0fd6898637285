package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"oshaberi/internal/config"
)

// ErrAlerted means the user already saw an advisory; the process should
// exit non-zero without printing anything else.
var ErrAlerted = errors.New("completion alert")

type Options struct {
	Config string
	viper  *viper.Viper
}

func NewRootCmd() *cobra.Command {
	opts := &Options{viper: viper.New()}
	root := &cobra.Command{
		Use:           config.AppName,
		Short:         "oshaberi - chat with a persona over Azure OpenAI",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig(opts)
		},
	}

	root.PersistentFlags().StringVar(
		&opts.Config,
		"config",
		"",
		"config file (default: ./oshaberi.yaml)",
	)

	root.AddCommand(newVersionCmd())
	root.AddCommand(newStylesCmd(opts))
	root.AddCommand(newAskCmd(opts))
	root.AddCommand(newChatCmd(opts))
	root.AddCommand(newServeCmd(opts))
	root.AddCommand(newLLMCmd(opts))
	return root
}

func initConfig(opts *Options) error {
	if err := config.LoadDotEnv(); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
	}
	return config.Init(opts.viper, opts.Config)
}

func (o *Options) load() (config.Config, error) {
	return config.Load(o.viper)
}

// loadForLLM loads config and insists on the settings a completion needs.
func (o *Options) loadForLLM() (config.Config, error) {
	cfg, err := o.load()
	if err != nil {
		return cfg, err
	}
	if err := cfg.RequireLLM(); err != nil {
		return cfg, fmt.Errorf("%w (set ENDPOINT_URL, DEPLOYMENT_NAME and AZURE_OPENAI_API_KEY, or llm.* in the config file)", err)
	}
	return cfg, nil
}
