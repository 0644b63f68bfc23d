// Package title folds resolved window tokens into a workspace display string
// and splices it onto the workspace's sticky name prefix.
package title

import (
	"strings"
	"unicode/utf8"

	"github.com/roosta/i3wsr/internal/config"
	"github.com/roosta/i3wsr/internal/rules"
)

// Render produces the display text for a single token.
func Render(tok rules.Token, opts config.Options) string {
	if opts.NoNames {
		return tok.Icon
	}
	if opts.NoIconNames && tok.Icon != "" {
		return tok.Icon
	}
	switch {
	case tok.Icon != "" && tok.Label != "":
		return tok.Icon + " " + tok.Label
	case tok.Icon != "":
		return tok.Icon
	default:
		return tok.Label
	}
}

// Compose renders a workspace's ordered tokens into one title string. An
// empty token sequence means the workspace has no qualifying windows and
// yields the configured empty label verbatim.
func Compose(tokens []rules.Token, cfg *config.Config) string {
	if len(tokens) == 0 {
		return cfg.General.EmptyLabel
	}
	rendered := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		rendered = append(rendered, Render(tok, cfg.Options))
	}
	if cfg.Options.RemoveDuplicates {
		rendered = dedupe(rendered)
	}
	return strings.Join(rendered, cfg.General.Separator)
}

// dedupe collapses duplicate rendered tokens, keeping first occurrences.
// Equality is on the final rendered text: two windows that render the same
// are indistinguishable and collapse to one.
func dedupe(rendered []string) []string {
	seen := make(map[string]struct{}, len(rendered))
	unique := rendered[:0]
	for _, s := range rendered {
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		unique = append(unique, s)
	}
	return unique
}

// BuildName splices the composed title onto the sticky prefix of the current
// workspace name. The prefix runs up to and including the split boundary (the
// configured split_at character, else the first space). A space boundary
// already supplies the spacing; any other boundary gets a space inserted
// after it, so "1:old" becomes "1: Firefox". A name without the boundary is
// entirely sticky: it is returned unchanged with no suffix.
//
// The operation is idempotent: applied to its own output it reproduces the
// same prefix and therefore the same name.
func BuildName(current, composed, splitAt string) string {
	boundary := ' '
	if splitAt != "" {
		boundary, _ = utf8.DecodeRuneInString(splitAt)
	}
	idx := strings.IndexRune(current, boundary)
	if idx < 0 {
		return current
	}
	prefix := current[:idx+utf8.RuneLen(boundary)]
	if boundary != ' ' {
		return prefix + " " + composed
	}
	return prefix + composed
}
