package cli

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"oshaberi/internal/chat"
	"oshaberi/internal/config"
	"oshaberi/internal/llm"
	"oshaberi/internal/logging"
)

// newLLMClient is a variable so tests can swap in a scripted backend.
var newLLMClient = func(cfg config.LLMConfig) (llm.Client, error) {
	httpClient := &http.Client{Timeout: cfg.Timeout}
	switch cfg.Type {
	case config.TypeAzure:
		client, err := llm.NewAzureClient(llm.AzureConfig{
			Endpoint:   cfg.URL,
			Token:      cfg.Token,
			Deployment: cfg.Model,
			APIVersion: cfg.APIVersion,
			HTTPClient: httpClient,
		})
		if err != nil {
			return nil, err
		}
		return client, nil
	case config.TypeOpenAI:
		client, err := llm.NewOpenAIClient(llm.OpenAIConfig{
			BaseURL:    cfg.URL,
			Token:      cfg.Token,
			Model:      cfg.Model,
			HTTPClient: httpClient,
		})
		if err != nil {
			return nil, err
		}
		return client, nil
	default:
		return nil, fmt.Errorf("unsupported llm.type: %s", cfg.Type)
	}
}

type backend struct {
	chat      *chat.Chat
	completer *chat.Completer
	store     *chat.Store
}

func newBackend(cfg config.Config, logger *slog.Logger) (*backend, error) {
	client, err := newLLMClient(cfg.LLM)
	if err != nil {
		return nil, err
	}
	styles, err := cfg.Registry()
	if err != nil {
		return nil, err
	}
	defaults, err := cfg.Defaults(styles)
	if err != nil {
		return nil, err
	}
	store, err := chat.NewStore(styles, defaults, logger)
	if err != nil {
		return nil, err
	}
	completer := chat.NewCompleter(client, cfg.LLM.Model, logger)
	return &backend{
		chat:      chat.New(completer, logger),
		completer: completer,
		store:     store,
	}, nil
}

func newLogger(cfg config.Config, w io.Writer) *slog.Logger {
	return logging.New(cfg.Log.Level, w)
}

// sessionOptions holds the per-invocation overrides of --style and
// --temperature shared by ask and chat.
type sessionOptions struct {
	Style       string
	Temperature float64
}

func (o sessionOptions) apply(sess *chat.Session, temperatureSet bool) error {
	if o.Style != "" {
		if err := sess.SelectStyle(o.Style); err != nil {
			return err
		}
	}
	if temperatureSet {
		if err := sess.SetTemperature(o.Temperature); err != nil {
			return err
		}
	}
	return nil
}
