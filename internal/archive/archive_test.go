package archive

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wayback-news/internal/config"
	"wayback-news/internal/fetcher"
	"wayback-news/internal/observability"
)

func newResolver(t *testing.T, handler http.HandlerFunc) *Resolver {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := config.Default()
	cfg.Archive.AvailabilityURL = srv.URL + "/wayback/available"
	cfg.HTTP.MaxRetries = 0

	logger := observability.NewNop()
	return NewResolver(cfg, fetcher.NewFetcher(cfg, logger), logger)
}

func TestClosest_Found(t *testing.T) {
	r := newResolver(t, func(w http.ResponseWriter, req *http.Request) {
		assert.Equal(t, "/wayback/available", req.URL.Path)
		assert.Equal(t, "theguardian.com/international", req.URL.Query().Get("url"))
		assert.Equal(t, "20200102030405", req.URL.Query().Get("timestamp"))

		_, _ = w.Write([]byte(`{"url":"theguardian.com/international","archived_snapshots":{"closest":{"status":"200","available":true,"url":"http://web.archive.org/web/20200102025901/https://www.theguardian.com/international","timestamp":"20200102025901"}}}`))
	})

	res, err := r.Closest(context.Background(), "theguardian.com/international", "20200102030405")
	require.NoError(t, err)

	assert.True(t, res.Found)
	assert.Equal(t, "http://web.archive.org/web/20200102025901/https://www.theguardian.com/international", res.Snapshot.URL)
	assert.Equal(t, "20200102025901", res.Snapshot.Timestamp)
	assert.True(t, res.Snapshot.Available)
}

func TestClosest_NotFound(t *testing.T) {
	for _, body := range []string{
		`{"url":"example.invalid","archived_snapshots":{}}`,
		`{"url":"example.invalid","archived_snapshots":null}`,
	} {
		r := newResolver(t, func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(body))
		})

		res, err := r.Closest(context.Background(), "example.invalid", "2020")
		require.NoError(t, err, body)
		assert.False(t, res.Found, body)
		assert.Equal(t, NotFound(), res)
	}
}

func TestClosest_Malformed(t *testing.T) {
	bodies := map[string]string{
		"invalid json":               `{"archived_snapshots":`,
		"missing archived_snapshots": `{"url":"x"}`,
		"closest without url":        `{"archived_snapshots":{"closest":{"available":true}}}`,
	}

	for name, body := range bodies {
		t.Run(name, func(t *testing.T) {
			r := newResolver(t, func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(body))
			})

			_, err := r.Closest(context.Background(), "x", "2020")
			assert.ErrorIs(t, err, ErrMalformedResponse)
		})
	}
}

func TestClosest_UpstreamError(t *testing.T) {
	r := newResolver(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	_, err := r.Closest(context.Background(), "x", "2020")

	var statusErr *fetcher.StatusError
	require.True(t, errors.As(err, &statusErr), "got %v", err)
	assert.Equal(t, http.StatusServiceUnavailable, statusErr.StatusCode)
}

func TestTimestep(t *testing.T) {
	prefixes := config.Default().Archive.SnapshotPrefixes

	tests := []struct {
		url     string
		want    string
		wantErr bool
	}{
		{"http://web.archive.org/web/20200102025901/https://www.theguardian.com/international", "20200102025901", false},
		{"https://web.archive.org/web/20200102025901/http://time.com/", "20200102025901", false},
		{"http://web.archive.org/web/", "", true},
		{"https://example.com/20200102/", "", true},
	}

	for _, tt := range tests {
		got, err := Timestep(tt.url, prefixes)
		if tt.wantErr {
			assert.Error(t, err, tt.url)
			continue
		}
		require.NoError(t, err, tt.url)
		assert.Equal(t, tt.want, got)
	}
}

type stubGetter struct {
	body string
	err  error
}

func (s stubGetter) Fetch(_ context.Context, urlStr string) (*fetcher.FetchResponse, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &fetcher.FetchResponse{StatusCode: http.StatusOK, Body: []byte(s.body), URL: urlStr}, nil
}

type stubRenderer struct{ html string }

func (s stubRenderer) Render(_ context.Context, _ string) (string, error) {
	return s.html, nil
}

func TestSnapshotFetcher(t *testing.T) {
	plain := NewSnapshotFetcher(stubGetter{body: "<html>plain</html>"}, nil)
	html, err := plain.FetchPage(context.Background(), "http://web.archive.org/web/1/x")
	require.NoError(t, err)
	assert.Equal(t, "<html>plain</html>", html)

	rendered := NewSnapshotFetcher(stubGetter{err: errors.New("must not be called")}, stubRenderer{html: "<html>rendered</html>"})
	html, err = rendered.FetchPage(context.Background(), "http://web.archive.org/web/1/x")
	require.NoError(t, err)
	assert.Equal(t, "<html>rendered</html>", html)

	failing := NewSnapshotFetcher(stubGetter{err: errors.New("boom")}, nil)
	_, err = failing.FetchPage(context.Background(), "http://web.archive.org/web/1/x")
	assert.Error(t, err)
}
