package app

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wayback-news/internal/archive"
	"wayback-news/internal/config"
	"wayback-news/internal/keyword"
	"wayback-news/internal/observability"
	"wayback-news/internal/scraper"
	"wayback-news/internal/sources"
	"wayback-news/internal/storage"
)

const (
	guardianSnapshot = "http://web.archive.org/web/20200102025901/https://www.theguardian.com/international"
	timeSnapshot     = "http://web.archive.org/web/20200102000000/https://time.com/"
)

const guardianHTML = `<html><body>
<a href="/web/20200102025901/https://www.theguardian.com/environment/2020/jan/02/climate-talks">Climate talks resume</a>
<a href="/web/20200102025901/https://www.theguardian.com/environment">Climate</a>
</body></html>`

const timeHTML = `<html><body>
<a href="/web/20200102000000/https://time.com/5757891/climate-change-summit/">Climate change summit</a>
<a href="/web/20200102000000/https://time.com/5757892/election-night/">Election night</a>
</body></html>`

type lookup struct {
	res archive.Resolution
	err error
}

type fakeResolver struct {
	mu      sync.Mutex
	byHome  map[string]lookup
	calls   []string
	seenTSs []string
}

func (f *fakeResolver) Closest(ctx context.Context, siteURL, timestamp string) (archive.Resolution, error) {
	f.mu.Lock()
	f.calls = append(f.calls, siteURL)
	f.seenTSs = append(f.seenTSs, timestamp)
	f.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return archive.Resolution{}, err
	}
	l, ok := f.byHome[siteURL]
	if !ok {
		return archive.NotFound(), nil
	}
	return l.res, l.err
}

type fakePages struct {
	byURL map[string]string
	fail  map[string]error
}

func (f *fakePages) FetchPage(_ context.Context, snapshotURL string) (string, error) {
	if err, ok := f.fail[snapshotURL]; ok {
		return "", err
	}
	return f.byURL[snapshotURL], nil
}

type memoryHistory struct {
	mu      sync.Mutex
	records []*storage.SnapshotRecord
}

func (m *memoryHistory) SaveSnapshot(_ context.Context, rec *storage.SnapshotRecord) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.records {
		if r.CheckSum == rec.CheckSum {
			return false, nil
		}
	}
	m.records = append(m.records, rec)
	return true, nil
}

func (m *memoryHistory) CountBySource(_ context.Context, source string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, r := range m.records {
		if r.Source == source {
			n++
		}
	}
	return n, nil
}

func (m *memoryHistory) Close() error { return nil }

func found(u string) lookup {
	return lookup{res: archive.Found(archive.Snapshot{URL: u, Available: true})}
}

func newOrchestrator(t *testing.T, resolver *fakeResolver, pages *fakePages, history storage.Repository) *Orchestrator {
	t.Helper()

	registry, err := sources.NewRegistry(sources.Defaults())
	require.NoError(t, err)

	cfg := config.Default()
	return NewOrchestrator(
		cfg,
		observability.NewNop(),
		observability.NewMetrics(prometheus.NewRegistry()),
		registry,
		resolver,
		pages,
		scraper.NewScraper(nil),
		history,
	)
}

func defaultPages() *fakePages {
	return &fakePages{byURL: map[string]string{
		guardianSnapshot: guardianHTML,
		timeSnapshot:     timeHTML,
	}}
}

func TestRun_ExtractsPerSource(t *testing.T) {
	resolver := &fakeResolver{byHome: map[string]lookup{
		"theguardian.com/international": found(guardianSnapshot),
		"time.com":                      found(timeSnapshot),
	}}
	o := newOrchestrator(t, resolver, defaultPages(), nil)

	res, err := o.Run(context.Background(), Request{
		Timestamp: "2020-01-02 03:04:05",
		Keywords:  []string{"climate"},
		Include:   "all",
		Sources:   []string{"guardian", "time"},
	})
	require.NoError(t, err)

	g, ok := res.Get("guardian")
	require.True(t, ok)
	assert.True(t, g.Found)
	assert.Equal(t, "20200102025901", g.Timestep)
	assert.Equal(t, []scraper.Article{
		{Link: "https://www.theguardian.com/environment/2020/jan/02/climate-talks", Title: "Climate talks resume"},
	}, g.Articles)

	tm, ok := res.Get("time")
	require.True(t, ok)
	assert.Equal(t, []scraper.Article{
		{Link: "https://time.com/5757891/climate-change-summit/", Title: "Climate change summit"},
	}, tm.Articles)

	for _, ts := range resolver.seenTSs {
		assert.Equal(t, "20200102030405", ts)
	}
}

func TestRun_NoSnapshotYieldsEmptyEntry(t *testing.T) {
	o := newOrchestrator(t, &fakeResolver{}, defaultPages(), nil)

	res, err := o.Run(context.Background(), Request{
		Timestamp: "2020-01-02",
		Keywords:  []string{"climate"},
		Include:   "one",
		Sources:   []string{"economist"},
	})
	require.NoError(t, err)

	entry, ok := res.Get("economist")
	require.True(t, ok)
	assert.False(t, entry.Found)
	assert.NoError(t, entry.Err)

	body, err := json.Marshal(res)
	require.NoError(t, err)
	assert.JSONEq(t, `{"economist":{}}`, string(body))
}

func TestRun_SourceIsolation(t *testing.T) {
	resolver := &fakeResolver{byHome: map[string]lookup{
		"theguardian.com/international": {err: errors.New("connection reset")},
		"time.com":                      found(timeSnapshot),
	}}
	o := newOrchestrator(t, resolver, defaultPages(), nil)

	res, err := o.Run(context.Background(), Request{
		Timestamp: "20200102",
		Keywords:  []string{"climate"},
		Include:   "all",
		Sources:   []string{"guardian", "time"},
	})
	require.NoError(t, err)

	g, _ := res.Get("guardian")
	var retrieval *RetrievalError
	require.True(t, errors.As(g.Err, &retrieval))
	assert.Equal(t, StageLookup, retrieval.Stage)
	assert.Equal(t, "guardian", retrieval.Source)

	tm, _ := res.Get("time")
	assert.NoError(t, tm.Err)
	assert.Len(t, tm.Articles, 1)
}

func TestRun_FetchFailureKeepsTimestep(t *testing.T) {
	resolver := &fakeResolver{byHome: map[string]lookup{"time.com": found(timeSnapshot)}}
	pages := defaultPages()
	pages.fail = map[string]error{timeSnapshot: errors.New("503")}
	o := newOrchestrator(t, resolver, pages, nil)

	res, err := o.Run(context.Background(), Request{
		Timestamp: "20200102",
		Keywords:  []string{"climate"},
		Include:   "all",
		Sources:   []string{"time"},
	})
	require.NoError(t, err)

	body, err := json.Marshal(res)
	require.NoError(t, err)
	assert.JSONEq(t, `{"time":{"timestep":"20200102000000","error":"time: fetch failed: 503"}}`, string(body))
}

func TestRun_UnknownSourceFailsBeforeLookup(t *testing.T) {
	resolver := &fakeResolver{}
	o := newOrchestrator(t, resolver, defaultPages(), nil)

	_, err := o.Run(context.Background(), Request{
		Timestamp: "2020",
		Keywords:  []string{"climate"},
		Include:   "all",
		Sources:   []string{"time", "bbc"},
	})
	assert.ErrorIs(t, err, sources.ErrUnknownSource)
	assert.Empty(t, resolver.calls)
}

func TestRun_InvalidMode(t *testing.T) {
	resolver := &fakeResolver{}
	o := newOrchestrator(t, resolver, defaultPages(), nil)

	_, err := o.Run(context.Background(), Request{
		Timestamp: "2020",
		Keywords:  []string{"climate"},
		Include:   "any",
	})
	assert.ErrorIs(t, err, keyword.ErrInvalidConfiguration)
	assert.Empty(t, resolver.calls)
}

func TestRun_KeepsRequestOrderAndSpelling(t *testing.T) {
	resolver := &fakeResolver{byHome: map[string]lookup{"time.com": found(timeSnapshot)}}
	o := newOrchestrator(t, resolver, defaultPages(), nil)

	res, err := o.Run(context.Background(), Request{
		Timestamp: "20200102",
		Keywords:  []string{"election"},
		Include:   "one",
		Sources:   []string{"Time", "reuters", "time"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"Time", "reuters"}, res.Sources())

	body, err := json.Marshal(res)
	require.NoError(t, err)
	assert.Equal(t,
		`{"Time":{"timestep":"20200102000000","articles":[{"link":"https://time.com/5757892/election-night/","title":"Election night"}]},"reuters":{}}`,
		string(body))
}

func TestRun_AllSourcesByDefault(t *testing.T) {
	resolver := &fakeResolver{}
	o := newOrchestrator(t, resolver, defaultPages(), nil)

	res, err := o.Run(context.Background(), Request{Timestamp: "2020", Keywords: []string{""}, Include: "all"})
	require.NoError(t, err)
	assert.Equal(t, []string{"guardian", "time", "economist", "reuters"}, res.Sources())
	assert.Len(t, resolver.calls, 4)
}

func TestRun_FoundWithoutMatchesHasEmptyArticles(t *testing.T) {
	resolver := &fakeResolver{byHome: map[string]lookup{"time.com": found(timeSnapshot)}}
	o := newOrchestrator(t, resolver, defaultPages(), nil)

	res, err := o.Run(context.Background(), Request{
		Timestamp: "20200102",
		Keywords:  []string{"olympics"},
		Include:   "all",
		Sources:   []string{"time"},
	})
	require.NoError(t, err)

	body, err := json.Marshal(res)
	require.NoError(t, err)
	assert.JSONEq(t, `{"time":{"timestep":"20200102000000","articles":[]}}`, string(body))
}

func TestRun_Cancelled(t *testing.T) {
	o := newOrchestrator(t, &fakeResolver{}, defaultPages(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := o.Run(ctx, Request{Timestamp: "2020", Keywords: []string{"x"}, Include: "all"})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, res)
}

func TestRun_RecordsHistory(t *testing.T) {
	resolver := &fakeResolver{byHome: map[string]lookup{"time.com": found(timeSnapshot)}}
	history := &memoryHistory{}
	o := newOrchestrator(t, resolver, defaultPages(), history)

	req := Request{
		Timestamp: "2020-01-02",
		Keywords:  []string{"climate"},
		Include:   "all",
		Sources:   []string{"time", "reuters"},
	}
	for i := 0; i < 2; i++ {
		_, err := o.Run(context.Background(), req)
		require.NoError(t, err)
	}

	require.Len(t, history.records, 1)
	rec := history.records[0]
	assert.Equal(t, "time", rec.Source)
	assert.Equal(t, "20200102", rec.RequestedTimestamp)
	assert.Equal(t, "20200102000000", rec.Timestep)
	assert.Equal(t, "climate", rec.Keywords)
	assert.Equal(t, "all", rec.Mode)
	assert.Len(t, rec.CheckSum, 64)
	assert.False(t, rec.CapturedAt.IsZero())

	n, err := history.CountBySource(context.Background(), "time")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
