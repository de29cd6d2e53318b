package scraper

// Article is one matching anchor of a snapshot. Link is the href part that
// follows the snapshot's timestep segment.
type Article struct {
	Link  string `json:"link"`
	Title string `json:"title"`
}

// TextMatcher is satisfied by *regexp.Regexp and *keyword.Pattern.
type TextMatcher interface {
	MatchString(s string) bool
}
