// Package style holds the persona registry: each style pairs a system prompt
// with the greeting that opens a fresh conversation.
package style

import (
	_ "embed"
	"errors"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed styles.yaml
var builtinYAML []byte

var ErrStyleNotFound = errors.New("style not found")

const (
	MaxKeyLength    = 32
	MaxPromptLength = 32 * 1024
)

// Style is one persona. Title and Placeholder are display hints only.
type Style struct {
	Key          string `yaml:"key" mapstructure:"key"`
	Title        string `yaml:"title" mapstructure:"title"`
	SystemPrompt string `yaml:"system_prompt" mapstructure:"system_prompt"`
	Greeting     string `yaml:"greeting" mapstructure:"greeting"`
	Placeholder  string `yaml:"placeholder" mapstructure:"placeholder"`
}

// Registry is read-only after construction and safe for concurrent use.
type Registry struct {
	styles []Style
	index  map[string]int
}

// Builtin returns the styles shipped with the binary, in display order.
func Builtin() ([]Style, error) {
	var styles []Style
	if err := yaml.Unmarshal(builtinYAML, &styles); err != nil {
		return nil, fmt.Errorf("parse builtin styles: %w", err)
	}
	return styles, nil
}

// New builds a registry from the builtin styles with custom entries merged
// over them: a custom key that matches a builtin overrides its non-empty
// fields in place, new keys are appended.
func New(custom ...Style) (*Registry, error) {
	builtin, err := Builtin()
	if err != nil {
		return nil, err
	}
	return FromStyles(merge(builtin, custom)...)
}

// FromStyles builds a registry from exactly the given styles. The first one
// becomes the default.
func FromStyles(styles ...Style) (*Registry, error) {
	if len(styles) == 0 {
		return nil, errors.New("style registry is empty")
	}
	r := &Registry{
		styles: make([]Style, 0, len(styles)),
		index:  make(map[string]int, len(styles)),
	}
	for _, s := range styles {
		if err := Validate(s); err != nil {
			return nil, err
		}
		if _, dup := r.index[s.Key]; dup {
			return nil, fmt.Errorf("duplicate style %q", s.Key)
		}
		r.index[s.Key] = len(r.styles)
		r.styles = append(r.styles, s)
	}
	return r, nil
}

func (r *Registry) Lookup(key string) (Style, error) {
	i, ok := r.index[key]
	if !ok {
		return Style{}, fmt.Errorf("%w: %q", ErrStyleNotFound, key)
	}
	return r.styles[i], nil
}

func (r *Registry) Has(key string) bool {
	_, ok := r.index[key]
	return ok
}

func (r *Registry) Keys() []string {
	keys := make([]string, len(r.styles))
	for i, s := range r.styles {
		keys[i] = s.Key
	}
	return keys
}

func (r *Registry) All() []Style {
	out := make([]Style, len(r.styles))
	copy(out, r.styles)
	return out
}

// Default is the first registered style.
func (r *Registry) Default() string {
	return r.styles[0].Key
}

// Next returns the key following key, wrapping around. Unknown keys map to
// the default.
func (r *Registry) Next(key string) string {
	i, ok := r.index[key]
	if !ok {
		return r.Default()
	}
	return r.styles[(i+1)%len(r.styles)].Key
}

func Validate(s Style) error {
	fieldErrors := make([]string, 0, 3)
	switch {
	case strings.TrimSpace(s.Key) == "":
		fieldErrors = append(fieldErrors, "key is required")
	case len(s.Key) > MaxKeyLength:
		fieldErrors = append(fieldErrors, fmt.Sprintf("key too long (max %d characters)", MaxKeyLength))
	case !isValidKey(s.Key):
		fieldErrors = append(fieldErrors, "key must contain only lowercase letters, digits, underscores, and hyphens")
	}
	if strings.TrimSpace(s.SystemPrompt) == "" {
		fieldErrors = append(fieldErrors, "system_prompt is required")
	} else if len(s.SystemPrompt) > MaxPromptLength {
		fieldErrors = append(fieldErrors, fmt.Sprintf("system_prompt too long (max %d bytes)", MaxPromptLength))
	}
	if strings.TrimSpace(s.Greeting) == "" {
		fieldErrors = append(fieldErrors, "greeting is required")
	}
	if len(fieldErrors) > 0 {
		return fmt.Errorf("invalid style %q: %s", s.Key, strings.Join(fieldErrors, "; "))
	}
	return nil
}

func isValidKey(key string) bool {
	for _, c := range key {
		if !((c >= 'a' && c <= 'z') || (c >= '0' && c <= '9') || c == '_' || c == '-') {
			return false
		}
	}
	return true
}

func merge(defaults, custom []Style) []Style {
	result := make([]Style, len(defaults))
	copy(result, defaults)

	for _, cs := range custom {
		found := false
		for i, ds := range result {
			if ds.Key == cs.Key {
				result[i] = overlay(ds, cs)
				found = true
				break
			}
		}
		if !found {
			result = append(result, cs)
		}
	}
	return result
}

func overlay(base, override Style) Style {
	if override.Title != "" {
		base.Title = override.Title
	}
	if override.SystemPrompt != "" {
		base.SystemPrompt = override.SystemPrompt
	}
	if override.Greeting != "" {
		base.Greeting = override.Greeting
	}
	if override.Placeholder != "" {
		base.Placeholder = override.Placeholder
	}
	return base
}
