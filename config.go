package rpc

import (
	"fmt"
	"os"

	"github.com/hashicorp/go-multierror"
	"gopkg.in/yaml.v3"
)

type (
	// Config is the declarative form of a registry.
	Config struct {
		ErrorEvent       string        `yaml:"error_event"`
		SharedErrorEvent bool          `yaml:"shared_error_event"`
		UnownedErrorKey  interface{}   `yaml:"unowned_error_key,omitempty"`
		Handlers         []EntryConfig `yaml:"handlers"`
	}

	EntryConfig struct {
		Method        string   `yaml:"method"`
		Pattern       string   `yaml:"pattern"`
		Events        []string `yaml:"events"`
		Completion    string   `yaml:"completion,omitempty"`
		Discriminator int      `yaml:"discriminator"`
		ErrorPolicy   string   `yaml:"error_policy,omitempty"`
		Keyed         bool     `yaml:"keyed,omitempty"`
		RetainSettled bool     `yaml:"retain_settled,omitempty"`
	}
)

func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg, err := ParseConfig(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

func ParseConfig(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return &cfg, nil
}

// Entry converts the document form into a registration entry.
func (c EntryConfig) Entry() (Entry, error) {
	pattern, err := ParsePattern(c.Pattern)
	if err != nil {
		return Entry{}, fmt.Errorf("%s: %w", c.Method, err)
	}
	policy, err := ParseErrorPolicy(c.ErrorPolicy)
	if err != nil {
		return Entry{}, fmt.Errorf("%s: %w", c.Method, err)
	}
	return Entry{
		Method:        c.Method,
		Events:        c.Events,
		Pattern:       pattern,
		Discriminator: c.Discriminator,
		Completion:    c.Completion,
		ErrorPolicy:   policy,
		Keyed:         c.Keyed,
		RetainSettled: c.RetainSettled,
	}, nil
}

// Registry registers every handler of the document. All failing entries are
// reported together; the registry is returned only when none failed.
func (c *Config) Registry(opts ...RegistryOption) (*Registry, error) {
	if c.ErrorEvent != "" {
		opts = append(opts, WithErrorEvent(c.ErrorEvent))
	}
	if c.SharedErrorEvent {
		opts = append(opts, WithSharedErrorEvent())
	}
	if c.UnownedErrorKey != nil {
		opts = append(opts, WithUnownedErrorKey(c.UnownedErrorKey))
	}
	r := NewRegistry(opts...)

	var result *multierror.Error
	for i, h := range c.Handlers {
		entry, err := h.Entry()
		if err == nil {
			err = r.Register(entry)
		}
		if err != nil {
			result = multierror.Append(result, fmt.Errorf("handler #%d: %w", i, err))
		}
	}
	if err := result.ErrorOrNil(); err != nil {
		return nil, err
	}
	return r, nil
}

// Dispatcher builds the registry described by the document.
func (c *Config) Dispatcher(opts ...RegistryOption) (*Dispatcher, error) {
	r, err := c.Registry(opts...)
	if err != nil {
		return nil, err
	}
	return r.Build(), nil
}

// ConfigOf renders the registrations of d back into document form.
func ConfigOf(d *Dispatcher) *Config {
	cfg := &Config{ErrorEvent: d.ErrorEvent(), SharedErrorEvent: d.SharedErrorEvent()}
	if key, ok := d.UnownedErrorKey(); ok {
		cfg.UnownedErrorKey = key
	}
	for _, e := range d.Entries() {
		events := make([]string, 0, len(e.Events))
		for _, event := range e.Events {
			if event != e.Completion {
				events = append(events, event)
			}
		}
		h := EntryConfig{
			Method:        e.Method,
			Pattern:       e.Pattern.String(),
			Events:        events,
			Completion:    e.Completion,
			Discriminator: e.Discriminator,
			Keyed:         e.Keyed,
			RetainSettled: e.RetainSettled,
		}
		if e.Pattern == PatternStream {
			h.ErrorPolicy = e.ErrorPolicy.String()
		}
		cfg.Handlers = append(cfg.Handlers, h)
	}
	return cfg
}
