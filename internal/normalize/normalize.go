// Package normalize builds join keys from raw cell values.
package normalize

import (
	"regexp"
	"strings"

	"github.com/sells-group/chassis-cli/internal/table"
)

// Config toggles the key normalization stages. Stages always apply in the
// same order: trim, collapse internal whitespace, uppercase, strip leading
// zeros.
type Config struct {
	Trim              bool `yaml:"trim" mapstructure:"trim"`
	CollapseSpaces    bool `yaml:"collapse_spaces" mapstructure:"collapse_spaces"`
	Uppercase         bool `yaml:"uppercase" mapstructure:"uppercase"`
	StripLeadingZeros bool `yaml:"strip_leading_zeros" mapstructure:"strip_leading_zeros"`
}

// Default enables every stage.
func Default() Config {
	return Config{Trim: true, CollapseSpaces: true, Uppercase: true, StripLeadingZeros: true}
}

var (
	innerSpace   = regexp.MustCompile(`\s+`)
	leadingZeros = regexp.MustCompile(`^0+`)
)

// Key normalizes a single cell into a join key. Null cells stringify to ""
// before the pipeline, so the key is always a non-nil string and a null key
// collides with an all-whitespace one.
func Key(c table.Cell, cfg Config) string {
	s := c.String()
	if cfg.Trim {
		s = strings.TrimSpace(s)
	}
	if cfg.CollapseSpaces {
		// Runs of internal whitespace are removed entirely, not squashed
		// to a single space: "AB 12" and "AB12" must match.
		s = innerSpace.ReplaceAllString(s, "")
	}
	if cfg.Uppercase {
		s = strings.ToUpper(s)
	}
	if cfg.StripLeadingZeros {
		s = leadingZeros.ReplaceAllString(s, "")
	}
	return s
}

// keySep separates the parts of a composite key. The unit separator cannot
// appear in normalized parts, so "A_B"+"C" and "A"+"B_C" never alias.
const keySep = "\x1f"

// CompositeKey joins already-normalized key parts.
func CompositeKey(parts ...string) string {
	return strings.Join(parts, keySep)
}
