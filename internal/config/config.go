package config

import (
	"fmt"
	"os"
	"regexp"
	"unicode/utf8"

	"gopkg.in/yaml.v3"
)

// Properties a window can be named after.
const (
	PropertyClass    = "class"
	PropertyAppID    = "app_id"
	PropertyInstance = "instance"
	PropertyName     = "name"
)

// DefaultSeparator joins rendered window tokens in a workspace title.
const DefaultSeparator = "|"

// Config is the top-level configuration document.
type Config struct {
	Aliases Aliases           `yaml:"aliases"`
	Icons   map[string]string `yaml:"icons"`
	General General           `yaml:"general"`
	Options Options           `yaml:"options"`
}

// Aliases holds the three ordered alias scopes. The class and app_id scopes
// are matched with the same priority; sway populates app_id where X11 clients
// carry a class.
type Aliases struct {
	Name     AliasList `yaml:"name"`
	Instance AliasList `yaml:"instance"`
	Class    AliasList `yaml:"class"`
	AppID    AliasList `yaml:"app_id"`
}

// Alias maps a regex pattern to a replacement label.
type Alias struct {
	Pattern string
	Label   string
}

// AliasList preserves the declaration order of alias entries. Order matters:
// the first matching pattern in a scope wins.
type AliasList []Alias

// UnmarshalYAML decodes an alias scope from a YAML mapping while keeping the
// file's key order and rejecting duplicate patterns.
func (l *AliasList) UnmarshalYAML(value *yaml.Node) error {
	if value == nil || value.Kind == 0 {
		*l = nil
		return nil
	}
	if value.Kind != yaml.MappingNode {
		return fmt.Errorf("aliases must be a mapping of pattern to label")
	}
	result := make(AliasList, 0, len(value.Content)/2)
	seen := map[string]struct{}{}
	for i := 0; i < len(value.Content); i += 2 {
		keyNode := value.Content[i]
		valNode := value.Content[i+1]
		if keyNode.Kind != yaml.ScalarNode {
			return fmt.Errorf("alias pattern must be a string")
		}
		pattern := keyNode.Value
		if _, exists := seen[pattern]; exists {
			return fmt.Errorf("duplicate alias pattern %q", pattern)
		}
		seen[pattern] = struct{}{}
		var label string
		if err := valNode.Decode(&label); err != nil {
			return fmt.Errorf("alias %q: %w", pattern, err)
		}
		result = append(result, Alias{Pattern: pattern, Label: label})
	}
	*l = result
	return nil
}

// General holds display tuning options.
type General struct {
	Separator       string
	SplitAt         string
	EmptyLabel      string
	DefaultIcon     string
	DisplayProperty string

	decoded bool
}

// UnmarshalYAML decodes general options, distinguishing an absent separator
// (which gets the default) from an explicitly empty one.
func (g *General) UnmarshalYAML(value *yaml.Node) error {
	type rawGeneral struct {
		Separator       *string `yaml:"separator"`
		SplitAt         string  `yaml:"split_at"`
		EmptyLabel      string  `yaml:"empty_label"`
		DefaultIcon     string  `yaml:"default_icon"`
		DisplayProperty string  `yaml:"display_property"`
	}
	var raw rawGeneral
	if err := value.Decode(&raw); err != nil {
		return err
	}
	if raw.Separator != nil {
		g.Separator = *raw.Separator
	} else {
		g.Separator = DefaultSeparator
	}
	g.SplitAt = raw.SplitAt
	g.EmptyLabel = raw.EmptyLabel
	g.DefaultIcon = raw.DefaultIcon
	g.DisplayProperty = raw.DisplayProperty
	g.decoded = true
	return nil
}

// Options holds the boolean behavior switches.
type Options struct {
	NoNames          bool `yaml:"no_names"`
	NoIconNames      bool `yaml:"no_icon_names"`
	RemoveDuplicates bool `yaml:"remove_duplicates"`
	FocusFix         bool `yaml:"focus_fix"`
}

// Default returns the built-in configuration used when no file exists.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// Load reads and validates a configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a serialized configuration document.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if !c.General.decoded {
		// The document had no general section; UnmarshalYAML never ran.
		c.General.Separator = DefaultSeparator
	}
	if c.General.DisplayProperty == "" {
		c.General.DisplayProperty = PropertyClass
	}
}

// Validate checks option values and compiles every alias pattern so malformed
// regexes are rejected at load time rather than during resolution.
func (c *Config) Validate() error {
	switch c.General.DisplayProperty {
	case PropertyClass, PropertyAppID, PropertyInstance, PropertyName:
	default:
		return fmt.Errorf("display_property must be one of class, app_id, instance, name; got %q", c.General.DisplayProperty)
	}
	if c.General.SplitAt != "" && utf8.RuneCountInString(c.General.SplitAt) != 1 {
		return fmt.Errorf("split_at must be a single character, got %q", c.General.SplitAt)
	}
	scopes := []struct {
		name string
		list AliasList
	}{
		{"name", c.Aliases.Name},
		{"instance", c.Aliases.Instance},
		{"class", c.Aliases.Class},
		{"app_id", c.Aliases.AppID},
	}
	for _, scope := range scopes {
		for _, alias := range scope.list {
			if _, err := regexp.Compile(alias.Pattern); err != nil {
				return fmt.Errorf("aliases.%s: invalid pattern %q: %w", scope.name, alias.Pattern, err)
			}
		}
	}
	return nil
}
