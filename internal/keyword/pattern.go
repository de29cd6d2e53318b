// Package keyword compiles a keyword list and an inclusion mode into a
// case-insensitive text matcher.
package keyword

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrInvalidConfiguration is returned for an inclusion mode other than all/one.
var ErrInvalidConfiguration = errors.New("invalid configuration")

// Mode selects how keywords combine.
type Mode string

const (
	// ModeAll requires every keyword to appear, in any order.
	ModeAll Mode = "all"
	// ModeOne requires at least one keyword to appear.
	ModeOne Mode = "one"
)

// ParseMode accepts exactly "all" or "one".
func ParseMode(raw string) (Mode, error) {
	switch m := Mode(raw); m {
	case ModeAll, ModeOne:
		return m, nil
	default:
		return "", fmt.Errorf("%w: unknown include option %q", ErrInvalidConfiguration, raw)
	}
}

// Pattern is a compiled keyword matcher. It is immutable and safe for
// concurrent use.
//
// In ModeAll a text matches when one of its lines contains every keyword,
// which is what a chain of (?=.*k) lookaheads matches. RE2 has no
// lookaheads, so each keyword is compiled on its own instead.
type Pattern struct {
	mode  Mode
	terms []*regexp.Regexp
	any   *regexp.Regexp
	text  string
}

// Build lowercases and escapes every keyword and compiles them for mode.
// Keywords are literals: ".", "+", "(" and friends match only themselves.
func Build(keywords []string, mode string) (*Pattern, error) {
	m, err := ParseMode(mode)
	if err != nil {
		return nil, err
	}

	escaped := make([]string, len(keywords))
	for i, k := range keywords {
		escaped[i] = regexp.QuoteMeta(strings.ToLower(k))
	}

	p := &Pattern{mode: m}

	switch m {
	case ModeAll:
		var sb strings.Builder
		p.terms = make([]*regexp.Regexp, len(escaped))
		for i, k := range escaped {
			p.terms[i] = regexp.MustCompile("(?i)" + k)
			sb.WriteString("(?=.*" + k + ")")
		}
		p.text = sb.String()
	case ModeOne:
		p.text = strings.Join(escaped, "|")
		p.any = regexp.MustCompile("(?i)(?:" + p.text + ")")
	}

	return p, nil
}

// MatchString reports whether text satisfies the keyword criteria.
func (p *Pattern) MatchString(text string) bool {
	if p.mode == ModeOne {
		return p.any.MatchString(text)
	}

	for _, line := range strings.Split(text, "\n") {
		if p.matchesAll(line) {
			return true
		}
	}
	return false
}

func (p *Pattern) matchesAll(line string) bool {
	for _, term := range p.terms {
		if !term.MatchString(line) {
			return false
		}
	}
	return true
}

// Mode returns the inclusion mode the pattern was built for.
func (p *Pattern) Mode() Mode {
	return p.mode
}

// String renders the pattern in lookahead / alternation form, e.g.
// "(?=.*climate)(?=.*g\.7)".
func (p *Pattern) String() string {
	return p.text
}
