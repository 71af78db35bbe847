package rules

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrInvalidRegex is returned when a pattern or its flags cannot be compiled
var ErrInvalidRegex = errors.New("invalid regex")

// Pattern is a compiled rule pattern together with its match mode
type Pattern struct {
	re     *regexp.Regexp
	global bool
	sticky bool
	named  bool
}

// Compile compiles pattern with the given flag characters. Flags outside
// AllowedFlags or repeated flags are rejected the same way a malformed
// pattern is.
func Compile(pattern, flags string) (*Pattern, error) {
	p := &Pattern{}
	var inline strings.Builder
	seen := make(map[rune]bool, len(flags))

	for _, c := range flags {
		if seen[c] {
			return nil, fmt.Errorf("%w: duplicate flag %q", ErrInvalidRegex, c)
		}
		seen[c] = true

		switch c {
		case 'g':
			p.global = true
		case 'y':
			p.sticky = true
		case 'i', 'm', 's':
			inline.WriteRune(c)
		case 'u', 'd':
			// RE2 is always Unicode aware and match indices are not exposed
		default:
			return nil, fmt.Errorf("%w: unknown flag %q", ErrInvalidRegex, c)
		}
	}

	expr := pattern
	if inline.Len() > 0 {
		expr = "(?" + inline.String() + ")" + pattern
	}

	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRegex, err)
	}

	p.re = re
	for _, name := range re.SubexpNames() {
		if name != "" {
			p.named = true
			break
		}
	}

	return p, nil
}

// MustCompile is like Compile but panics on error
func MustCompile(pattern, flags string) *Pattern {
	p, err := Compile(pattern, flags)
	if err != nil {
		panic(err)
	}
	return p
}

// Global reports whether every match is replaced
func (p *Pattern) Global() bool {
	return p.global
}

// String returns the compiled expression
func (p *Pattern) String() string {
	return p.re.String()
}

// matches returns submatch index slices that the replace would substitute
func (p *Pattern) matches(s string) [][]int {
	n := 1
	if p.global {
		n = -1
	}

	all := p.re.FindAllStringSubmatchIndex(s, n)
	if !p.sticky {
		return all
	}

	// Sticky matches must start exactly where the previous one ended
	pos := 0
	for i, m := range all {
		if m[0] != pos {
			return all[:i]
		}
		pos = m[1]
	}
	return all
}

// Replace substitutes matches of p in s with replacement, expanding
// substitution tokens, and calls onMatch once per substituted match.
// It returns the new text and the number of substitutions.
func (p *Pattern) Replace(s, replacement string, onMatch func()) (string, int) {
	matches := p.matches(s)
	if len(matches) == 0 {
		return s, 0
	}

	var b strings.Builder
	b.Grow(len(s))
	last := 0
	for _, m := range matches {
		b.WriteString(s[last:m[0]])
		b.WriteString(p.expand(replacement, s, m))
		last = m[1]
		if onMatch != nil {
			onMatch()
		}
	}
	b.WriteString(s[last:])

	return b.String(), len(matches)
}
