package normalize

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"wayback-news/internal/config"
)

var (
	timestampSeparators = strings.NewReplacer("-", "", " ", "", ":", "")
	whitespaceRun       = regexp.MustCompile(`\s+`)
)

// Timestamp converts "2020-01-02 03:04:05" into the archive's compact
// "20200102030405" form by dropping hyphens, spaces and colons. Nothing is
// validated.
func Timestamp(raw string) string {
	return timestampSeparators.Replace(raw)
}

// Keywords splits a comma-separated keyword list. An empty input yields a
// single empty keyword, which matches every anchor.
func Keywords(raw string) []string {
	return strings.Split(raw, ",")
}

// archive timestamp layouts by digit count
var timestampLayouts = map[int]string{
	4:  "2006",
	6:  "200601",
	8:  "20060102",
	10: "2006010215",
	12: "200601021504",
	14: "20060102150405",
}

// ParseTimestamp parses a compact archive timestamp of 4 to 14 digits (UTC).
func ParseTimestamp(compact string) (time.Time, error) {
	layout, ok := timestampLayouts[len(compact)]
	if !ok {
		return time.Time{}, fmt.Errorf("unsupported timestamp length %d: %q", len(compact), compact)
	}
	t, err := time.ParseInLocation(layout, compact, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp %q: %w", compact, err)
	}
	return t, nil
}

type Normalizer struct {
	cfg *config.Config
}

func NewNormalizer(cfg *config.Config) *Normalizer {
	return &Normalizer{cfg: cfg}
}

// Title applies the configured cleanup to anchor text. With both options off
// the text is returned untouched.
func (n *Normalizer) Title(text string) string {
	if n.cfg.Extract.TrimNBSP {
		text = strings.ReplaceAll(text, "\u00A0", " ")
	}

	if n.cfg.Extract.CollapseSpaces {
		text = strings.TrimSpace(whitespaceRun.ReplaceAllString(text, " "))
	}

	return text
}
