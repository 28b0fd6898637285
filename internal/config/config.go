package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"oshaberi/internal/chat"
	"oshaberi/internal/llm"
	"oshaberi/internal/style"
)

const (
	AppName   = "oshaberi"
	EnvPrefix = "OSHABERI"

	TypeAzure  = "azure"
	TypeOpenAI = "openai"
)

type Config struct {
	LLM     LLMConfig     `mapstructure:"llm"`
	Server  ServerConfig  `mapstructure:"server"`
	Session SessionConfig `mapstructure:"session"`
	Chat    ChatConfig    `mapstructure:"chat"`
	Log     LogConfig     `mapstructure:"log"`
	Styles  []style.Style `mapstructure:"styles"`
}

type LLMConfig struct {
	Type       string        `mapstructure:"type"`
	URL        string        `mapstructure:"url"`
	Model      string        `mapstructure:"model"`
	Token      string        `mapstructure:"token"`
	APIVersion string        `mapstructure:"api_version"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

type SessionConfig struct {
	IdleTimeout time.Duration `mapstructure:"idle_timeout"`
}

type ChatConfig struct {
	Style       string  `mapstructure:"style"`
	Temperature float64 `mapstructure:"temperature"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
	// File receives the log of the terminal chat, which owns the screen.
	File string `mapstructure:"file"`
}

// MissingError reports settings a command needs but nobody provided.
type MissingError struct {
	Keys []string
}

func (e *MissingError) Error() string {
	return fmt.Sprintf("configuration missing: %s", strings.Join(e.Keys, ", "))
}

// Legacy variable names kept working next to the OSHABERI_ ones.
var legacyEnv = map[string]string{
	"llm.url":   "ENDPOINT_URL",
	"llm.model": "DEPLOYMENT_NAME",
	"llm.token": "AZURE_OPENAI_API_KEY",
}

// SetDefaults registers every key so AutomaticEnv can reach it on Unmarshal.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("llm.type", TypeAzure)
	v.SetDefault("llm.url", "")
	v.SetDefault("llm.model", "")
	v.SetDefault("llm.token", "")
	v.SetDefault("llm.api_version", llm.DefaultAzureAPIVersion)
	v.SetDefault("llm.timeout", 120*time.Second)
	v.SetDefault("server.addr", "127.0.0.1:8080")
	v.SetDefault("session.idle_timeout", 30*time.Minute)
	v.SetDefault("chat.style", "")
	v.SetDefault("chat.temperature", chat.DefaultTemperature)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "")
}

// Init prepares v the way every command expects: config file lookup,
// OSHABERI_ environment overrides, legacy variables and defaults. A missing
// config file is not an error.
func Init(v *viper.Viper, configFile string) error {
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName(AppName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/" + AppName)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, legacy := range legacyEnv {
		prefixed := EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, prefixed, legacy); err != nil {
			return fmt.Errorf("bind %s: %w", key, err)
		}
	}
	SetDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

// LoadDotEnv reads .env style files into the process environment without
// overriding variables that are already set. Missing files are skipped.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

func Load(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	switch c.LLM.Type {
	case TypeAzure, TypeOpenAI:
	default:
		return fmt.Errorf("invalid llm.type: %s", c.LLM.Type)
	}
	if c.LLM.Timeout < 0 {
		return fmt.Errorf("invalid llm.timeout: %s", c.LLM.Timeout)
	}
	if err := chat.ValidateTemperature(c.Chat.Temperature); err != nil {
		return fmt.Errorf("chat.temperature: %w", err)
	}
	for i, s := range c.Styles {
		if strings.TrimSpace(s.Key) == "" {
			return fmt.Errorf("styles[%d]: key is required", i)
		}
	}
	return nil
}

// RequireLLM fails with *MissingError unless the endpoint, deployment and
// key are all set.
func (c Config) RequireLLM() error {
	var missing []string
	if strings.TrimSpace(c.LLM.URL) == "" {
		missing = append(missing, "llm.url")
	}
	if strings.TrimSpace(c.LLM.Model) == "" {
		missing = append(missing, "llm.model")
	}
	if strings.TrimSpace(c.LLM.Token) == "" {
		missing = append(missing, "llm.token")
	}
	if len(missing) > 0 {
		return &MissingError{Keys: missing}
	}
	return nil
}

// Registry builds the style registry with configured styles merged over the
// builtin ones.
func (c Config) Registry() (*style.Registry, error) {
	return style.New(c.Styles...)
}

// Defaults resolves the session defaults against the registry.
func (c Config) Defaults(styles *style.Registry) (chat.Defaults, error) {
	d := chat.Defaults{Style: c.Chat.Style, Temperature: c.Chat.Temperature}
	if d.Style == "" {
		d.Style = styles.Default()
	}
	if !styles.Has(d.Style) {
		return d, fmt.Errorf("chat.style %q: %w", d.Style, style.ErrStyleNotFound)
	}
	return d, nil
}
