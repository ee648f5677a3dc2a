// Package vocab implements the vocabulary find/replace stage:
// longest-match, word-boundary-aware substitution loaded from a TOML
// file of arbitrarily named sections.
package vocab

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"unicode"

	"github.com/pelletier/go-toml/v2"
)

// Section is one named group of replacement rules in the vocabulary
// TOML file: an optional enabled
// flag (default true), an optional case_sensitive flag (default
// false), and any number of "pattern" = "replacement" pairs.
type Section struct {
	Enabled       *bool             `toml:"enabled"`
	CaseSensitive bool              `toml:"case_sensitive"`
	Replacements  map[string]string `toml:"-"`
}

// rawSection lets go-toml/v2 decode the flattened pattern/replacement
// pairs alongside the two reserved keys, since the library has no
// direct analog of serde's #[serde(flatten)].
type rawSection map[string]any

func (s rawSection) toSection(name string) (Section, error) {
	sec := Section{Replacements: make(map[string]string)}
	enabled := true
	sec.Enabled = &enabled

	for k, v := range s {
		switch k {
		case "enabled":
			b, ok := v.(bool)
			if !ok {
				return Section{}, fmt.Errorf("vocab: section %q: enabled must be bool", name)
			}
			sec.Enabled = &b
		case "case_sensitive":
			b, ok := v.(bool)
			if !ok {
				return Section{}, fmt.Errorf("vocab: section %q: case_sensitive must be bool", name)
			}
			sec.CaseSensitive = b
		default:
			str, ok := v.(string)
			if !ok {
				return Section{}, fmt.Errorf("vocab: section %q: pattern %q must map to a string", name, k)
			}
			sec.Replacements[k] = str
		}
	}
	return sec, nil
}

// rule is a compiled, ready-to-match replacement.
type rule struct {
	pattern       string // lowercased if !caseSensitive
	replacement   string
	caseSensitive bool
}

// Vocabulary holds the compiled rule set, sorted longest-pattern-first
// so multi-word phrases win over single-word substrings of themselves.
type Vocabulary struct {
	rules []rule
}

// Load reads and compiles a vocabulary TOML file. A missing file is not
// an error — it yields an empty Vocabulary so callers can treat
// "no file configured" and "file configured but empty" identically.
func Load(path string) (*Vocabulary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Vocabulary{}, nil
		}
		return nil, fmt.Errorf("vocab: read %q: %w", path, err)
	}
	return Parse(data)
}

// Parse compiles a vocabulary document already read into memory.
func Parse(data []byte) (*Vocabulary, error) {
	var doc map[string]rawSection
	if err := toml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("vocab: parse: %w", err)
	}

	var rules []rule
	for name, raw := range doc {
		sec, err := raw.toSection(name)
		if err != nil {
			return nil, err
		}
		if sec.Enabled != nil && !*sec.Enabled {
			continue
		}
		for pattern, replacement := range sec.Replacements {
			p := pattern
			if !sec.CaseSensitive {
				p = strings.ToLower(p)
			}
			rules = append(rules, rule{pattern: p, replacement: replacement, caseSensitive: sec.CaseSensitive})
		}
	}

	// Longest pattern first so "gonna go" matches before "go" does.
	sort.SliceStable(rules, func(i, j int) bool {
		return len(rules[i].pattern) > len(rules[j].pattern)
	})

	return &Vocabulary{rules: rules}, nil
}

// Apply runs every rule over text in longest-pattern-first order and
// returns the result. An empty Vocabulary returns text unchanged.
func (v *Vocabulary) Apply(text string) string {
	if v == nil || len(v.rules) == 0 {
		return text
	}
	result := text
	for _, r := range v.rules {
		result = replaceWordBoundary(result, r.pattern, r.replacement, r.caseSensitive)
	}
	return result
}

// replaceWordBoundary replaces every non-overlapping occurrence of
// pattern in text whose boundaries sit at non-alphanumeric characters
// or string ends. Comparison is case-insensitive unless caseSensitive
// is set; the original casing of unmatched text is always preserved.
func replaceWordBoundary(text, pattern, replacement string, caseSensitive bool) string {
	if pattern == "" {
		return text
	}
	haystack := text
	if !caseSensitive {
		haystack = strings.ToLower(text)
	}

	var b strings.Builder
	i := 0
	for i < len(text) {
		idx := strings.Index(haystack[i:], pattern)
		if idx < 0 {
			b.WriteString(text[i:])
			break
		}
		start := i + idx
		end := start + len(pattern)

		if isWordBoundary(text, start) && isWordBoundary(text, end) {
			b.WriteString(text[i:start])
			b.WriteString(replacement)
			i = end
		} else {
			// Not a whole-word match; keep the matched byte and
			// resume scanning just past it to avoid an infinite loop.
			b.WriteString(text[i : start+1])
			i = start + 1
		}
	}
	return b.String()
}

func isWordBoundary(text string, pos int) bool {
	if pos <= 0 || pos >= len(text) {
		return true
	}
	before := rune(text[pos-1])
	after := rune(text[pos])
	return !isWordChar(before) || !isWordChar(after)
}

func isWordChar(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}
