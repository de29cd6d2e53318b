package scraper

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

type Scraper struct {
	cleanTitle func(string) string
}

// NewScraper builds an extractor. cleanTitle post-processes anchor text into
// the article title; nil keeps the text as is.
func NewScraper(cleanTitle func(string) string) *Scraper {
	if cleanTitle == nil {
		cleanTitle = func(s string) string { return s }
	}
	return &Scraper{cleanTitle: cleanTitle}
}

// ExtractArticles returns the anchors of an archived page that belong to the
// snapshot identified by timestep, whose text matches pattern and whose
// relative link matches shape. Titles are unique; the first anchor in
// document order wins.
func (s *Scraper) ExtractArticles(html string, pattern, shape TextMatcher, timestep string) ([]Article, error) {
	if timestep == "" {
		return nil, fmt.Errorf("empty timestep")
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	marker := timestep + "/"
	articles := make([]Article, 0)
	seen := make(map[string]struct{})

	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")

		parts := strings.Split(href, marker)
		if len(parts) < 2 {
			return // Not part of this snapshot
		}
		// A repeated marker ends the link
		link := parts[1]

		text := sel.Text()
		if !pattern.MatchString(text) {
			return
		}

		title := s.cleanTitle(text)
		if _, dup := seen[title]; dup {
			return
		}
		if !shape.MatchString(link) {
			return // Navigation, ads, section fronts
		}

		articles = append(articles, Article{Link: link, Title: title})
		seen[title] = struct{}{}
	})

	return articles, nil
}
