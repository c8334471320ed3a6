// Package resolve guesses which real column of a user-supplied table fills a
// semantic role (style, department, allocation). Three strategies run in
// order: all-required-tokens containment, any-candidate containment, fuzzy
// similarity. Resolution is a pure function of its inputs.
package resolve

import (
	"fmt"
	"strings"

	"github.com/agext/levenshtein"
)

// DefaultThreshold is the fuzzy-match acceptance score. The legacy variants
// disagreed (0.6-0.9); 0.7 is the unified default and the value is tunable
// through config.
const DefaultThreshold = 0.7

// Role names a semantic role and the column names that can satisfy it.
type Role struct {
	Name string
	// Candidates are acceptable column names in priority order.
	Candidates []string
	// Required tokens must ALL appear in a column name for the tier-1
	// match (e.g. both "chassis" and "alloc" for the allocation role).
	Required []string
}

// Options tunes a single resolution call.
type Options struct {
	// Threshold is the minimum fuzzy similarity in [0,1]. Zero means
	// DefaultThreshold.
	Threshold float64
	// FallbackFirst returns the table's first column instead of failing.
	// Opt-in per call site, never the default.
	FallbackFirst bool
}

// NotResolvedError reports a role with no acceptable column. It carries the
// available column names so the caller can offer a manual pick.
type NotResolvedError struct {
	Role    string
	Columns []string
}

func (e *NotResolvedError) Error() string {
	return fmt.Sprintf("no column matches role %q (available: %s)", e.Role, strings.Join(e.Columns, ", "))
}

// Column selects the best column for a role, or fails with NotResolvedError.
func Column(columns []string, role Role, opts Options) (string, error) {
	threshold := opts.Threshold
	if threshold == 0 {
		threshold = DefaultThreshold
	}

	lowered := make([]string, len(columns))
	for i, col := range columns {
		lowered[i] = strings.ToLower(col)
	}

	// Tier 1: a column containing every required token wins outright.
	if len(role.Required) > 0 {
		for i, col := range lowered {
			if containsAll(col, role.Required) {
				return columns[i], nil
			}
		}
	}

	// Tier 2: substring containment, candidates in priority order, then
	// columns in table order.
	for _, cand := range role.Candidates {
		cand = strings.ToLower(cand)
		for i, col := range lowered {
			if strings.Contains(col, cand) {
				return columns[i], nil
			}
		}
	}

	// Tier 3: fuzzy similarity. The highest-priority candidate with any
	// column above threshold decides; among columns, highest score wins.
	params := levenshtein.NewParams()
	for _, cand := range role.Candidates {
		cand = strings.ToLower(cand)
		best := -1
		bestScore := threshold
		for i, col := range lowered {
			score := levenshtein.Similarity(cand, col, params)
			if score > bestScore {
				best = i
				bestScore = score
			}
		}
		if best >= 0 {
			return columns[best], nil
		}
	}

	if opts.FallbackFirst && len(columns) > 0 {
		return columns[0], nil
	}

	return "", &NotResolvedError{Role: role.Name, Columns: columns}
}

func containsAll(col string, tokens []string) bool {
	for _, tok := range tokens {
		if !strings.Contains(col, strings.ToLower(tok)) {
			return false
		}
	}
	return true
}
