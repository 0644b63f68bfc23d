// Package rules resolves a window's identity properties into the (icon,
// label) token shown in workspace titles, driven by the configured alias
// scopes and icon table.
package rules

import (
	"fmt"
	"regexp"

	"github.com/roosta/i3wsr/internal/config"
	"github.com/roosta/i3wsr/internal/state"
)

// Token is the resolved display value for one window. Both fields may be
// empty; a window with no usable identity still occupies a token slot.
type Token struct {
	Icon  string
	Label string
}

// Pattern is one compiled alias entry.
type Pattern struct {
	re    *regexp.Regexp
	label string
}

// Resolver holds the compiled alias scopes plus the config driving fallback
// and icon lookup. Resolvers are immutable once built; a config reload builds
// a fresh one.
type Resolver struct {
	cfg      *config.Config
	name     []Pattern
	instance []Pattern
	class    []Pattern
	appID    []Pattern
}

// Compile builds a resolver from a validated configuration. Patterns are
// compiled in declaration order; that order is the only tie-break between
// entries of the same scope.
func Compile(cfg *config.Config) (*Resolver, error) {
	r := &Resolver{cfg: cfg}
	var err error
	if r.name, err = compileScope("name", cfg.Aliases.Name); err != nil {
		return nil, err
	}
	if r.instance, err = compileScope("instance", cfg.Aliases.Instance); err != nil {
		return nil, err
	}
	if r.class, err = compileScope("class", cfg.Aliases.Class); err != nil {
		return nil, err
	}
	if r.appID, err = compileScope("app_id", cfg.Aliases.AppID); err != nil {
		return nil, err
	}
	return r, nil
}

func compileScope(scope string, aliases config.AliasList) ([]Pattern, error) {
	patterns := make([]Pattern, 0, len(aliases))
	for _, alias := range aliases {
		re, err := regexp.Compile(alias.Pattern)
		if err != nil {
			return nil, fmt.Errorf("aliases.%s: invalid pattern %q: %w", scope, alias.Pattern, err)
		}
		patterns = append(patterns, Pattern{re: re, label: alias.Label})
	}
	return patterns, nil
}

// Config returns the configuration this resolver was compiled from.
func (r *Resolver) Config() *config.Config {
	return r.cfg
}

// Resolve maps a window to its display token. Never fails: a window with no
// identity yields an empty label and at most the default icon.
func (r *Resolver) Resolve(win state.Window) Token {
	label := r.resolveLabel(win)
	return Token{
		Label: label,
		Icon:  r.resolveIcon(win, label),
	}
}

// resolveLabel applies alias scopes in priority order name > instance >
// class/app_id; the first matching pattern anywhere in that order wins. With
// no alias match the configured display property is shown, falling back
// class/app_id -> instance -> name when it is absent.
func (r *Resolver) resolveLabel(win state.Window) string {
	if win.Name != "" {
		if label, ok := matchScope(r.name, win.Name); ok {
			return label
		}
	}
	if win.Instance != "" {
		if label, ok := matchScope(r.instance, win.Instance); ok {
			return label
		}
	}
	if win.Class != "" {
		if label, ok := matchScope(r.class, win.Class); ok {
			return label
		}
	}
	if win.AppID != "" {
		if label, ok := matchScope(r.appID, win.AppID); ok {
			return label
		}
	}
	if value := propertyValue(win, r.cfg.General.DisplayProperty); value != "" {
		return value
	}
	return fallbackValue(win)
}

func matchScope(patterns []Pattern, value string) (string, bool) {
	for _, p := range patterns {
		if p.re.MatchString(value) {
			return p.label, true
		}
	}
	return "", false
}

func propertyValue(win state.Window, property string) string {
	switch property {
	case config.PropertyClass:
		return win.Class
	case config.PropertyAppID:
		return win.AppID
	case config.PropertyInstance:
		return win.Instance
	case config.PropertyName:
		return win.Name
	default:
		return ""
	}
}

// fallbackValue walks the fixed chain class/app_id -> instance -> name.
func fallbackValue(win state.Window) string {
	if win.Class != "" {
		return win.Class
	}
	if win.AppID != "" {
		return win.AppID
	}
	if win.Instance != "" {
		return win.Instance
	}
	return win.Name
}

// resolveIcon is independent of label resolution: the icons table is probed
// with the resolved label, then the raw display property, then the raw
// class/app_id, before the default icon applies.
func (r *Resolver) resolveIcon(win state.Window, label string) string {
	icons := r.cfg.Icons
	if label != "" {
		if icon, ok := icons[label]; ok {
			return icon
		}
	}
	if raw := propertyValue(win, r.cfg.General.DisplayProperty); raw != "" {
		if icon, ok := icons[raw]; ok {
			return icon
		}
	}
	if win.Class != "" {
		if icon, ok := icons[win.Class]; ok {
			return icon
		}
	}
	if win.AppID != "" {
		if icon, ok := icons[win.AppID]; ok {
			return icon
		}
	}
	return r.cfg.General.DefaultIcon
}
