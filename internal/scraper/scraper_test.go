package scraper

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wayback-news/internal/keyword"
)

const timestep = "20200102030405"

var guardianShape = regexp.MustCompile(`theguardian.com/(.*)/(.*)/(.*)/(.*)/(.*)$`)

const snapshotHTML = `<html><body>
<nav>
  <a href="/web/20200102030405/https://www.theguardian.com/environment">Climate</a>
</nav>
<div class="fc-container">
  <a href="/web/20200102030405/https://www.theguardian.com/environment/2020/jan/02/climate-summit-opens">Climate summit opens</a>
  <a href="/web/20200102030405/https://www.theguardian.com/world/2020/jan/02/climate-summit-opens-live">Climate summit opens</a>
  <a href="/web/20191231000000/https://www.theguardian.com/environment/2019/dec/31/climate-review">Climate review of the year</a>
  <a href="/web/20200102030405/https://www.theguardian.com/sport/2020/jan/02/football-results">Football results</a>
  <a href="/web/20200102030405/https://www.theguardian.com/science/2020/jan/02/arctic-ice">Arctic ice and <b>climate</b> change</a>
  <a>Climate without href</a>
</div>
</body></html>`

func mustPattern(t *testing.T, mode string, keywords ...string) *keyword.Pattern {
	t.Helper()
	p, err := keyword.Build(keywords, mode)
	require.NoError(t, err)
	return p
}

func TestExtractArticles_FiltersAndDeduplicates(t *testing.T) {
	s := NewScraper(nil)

	articles, err := s.ExtractArticles(snapshotHTML, mustPattern(t, "one", "climate"), guardianShape, timestep)
	require.NoError(t, err)

	assert.Equal(t, []Article{
		{
			Link:  "https://www.theguardian.com/environment/2020/jan/02/climate-summit-opens",
			Title: "Climate summit opens",
		},
		{
			Link:  "https://www.theguardian.com/science/2020/jan/02/arctic-ice",
			Title: "Arctic ice and climate change",
		},
	}, articles)
}

func TestExtractArticles_FirstTitleWins(t *testing.T) {
	html := `
<a href="/web/20200102030405/https://time.com/111/first/">Election night</a>
<a href="/web/20200102030405/https://time.com/222/second/">Election night</a>`

	shape := regexp.MustCompile(`time.com/([0-9]*)/(.*)/$`)
	articles, err := NewScraper(nil).ExtractArticles(html, mustPattern(t, "all", "election"), shape, timestep)
	require.NoError(t, err)

	require.Len(t, articles, 1)
	assert.Equal(t, "https://time.com/111/first/", articles[0].Link)
}

func TestExtractArticles_ShapeMismatchExcluded(t *testing.T) {
	html := `<a href="/web/20200102030405/https://www.theguardian.com/environment">Climate</a>`

	articles, err := NewScraper(nil).ExtractArticles(html, mustPattern(t, "one", "climate"), guardianShape, timestep)
	require.NoError(t, err)
	assert.Empty(t, articles)
	assert.NotNil(t, articles)
}

func TestExtractArticles_ShapeRejectionDoesNotReserveTitle(t *testing.T) {
	html := `
<a href="/web/20200102030405/https://www.theguardian.com/environment">Climate</a>
<a href="/web/20200102030405/https://www.theguardian.com/environment/2020/jan/02/climate">Climate</a>`

	articles, err := NewScraper(nil).ExtractArticles(html, mustPattern(t, "one", "climate"), guardianShape, timestep)
	require.NoError(t, err)
	require.Len(t, articles, 1)
	assert.Equal(t, "https://www.theguardian.com/environment/2020/jan/02/climate", articles[0].Link)
}

func TestExtractArticles_LinkStopsAtRepeatedTimestep(t *testing.T) {
	html := `<a href="/web/20200102030405/https://time.com/1/a/20200102030405/b/">Election night</a>`

	shape := regexp.MustCompile(`time.com/([0-9]*)/(.*)/$`)
	articles, err := NewScraper(nil).ExtractArticles(html, mustPattern(t, "one", "election"), shape, timestep)
	require.NoError(t, err)
	require.Len(t, articles, 1)
	assert.Equal(t, "https://time.com/1/a/", articles[0].Link)
}

func TestExtractArticles_CleansTitles(t *testing.T) {
	html := `<a href="/web/20200102030405/https://time.com/1/a/">  Election
	night </a>`

	clean := func(s string) string { return "[" + s[2:10] + "]" }
	shape := regexp.MustCompile(`time.com/([0-9]*)/(.*)/$`)

	articles, err := NewScraper(clean).ExtractArticles(html, mustPattern(t, "one", "election"), shape, timestep)
	require.NoError(t, err)
	require.Len(t, articles, 1)
	assert.Equal(t, "[Election]", articles[0].Title)
}

func TestExtractArticles_EmptyTimestep(t *testing.T) {
	_, err := NewScraper(nil).ExtractArticles(snapshotHTML, mustPattern(t, "one", "x"), guardianShape, "")
	assert.Error(t, err)
}
