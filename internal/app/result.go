package app

import (
	"bytes"
	"encoding/json"

	"wayback-news/internal/scraper"
)

// SourceResult is the outcome of one source. A source with no snapshot has
// Found false and no Err; it serialises as an empty object.
type SourceResult struct {
	Found    bool
	Timestep string
	Articles []scraper.Article
	Err      error
}

// MarshalJSON renders {} for a missing snapshot, {timestep, articles} for a
// found one and {timestep?, error} for a failed one.
func (r SourceResult) MarshalJSON() ([]byte, error) {
	switch {
	case r.Err != nil:
		return json.Marshal(struct {
			Timestep string `json:"timestep,omitempty"`
			Error    string `json:"error"`
		}{Timestep: r.Timestep, Error: r.Err.Error()})
	case !r.Found:
		return []byte("{}"), nil
	}

	articles := r.Articles
	if articles == nil {
		articles = []scraper.Article{}
	}
	return json.Marshal(struct {
		Timestep string            `json:"timestep"`
		Articles []scraper.Article `json:"articles"`
	}{Timestep: r.Timestep, Articles: articles})
}

// Result maps requested source names to their outcome, in request order.
type Result struct {
	order   []string
	entries map[string]SourceResult
}

func newResult(capacity int) *Result {
	return &Result{
		order:   make([]string, 0, capacity),
		entries: make(map[string]SourceResult, capacity),
	}
}

func (r *Result) set(name string, sr SourceResult) {
	if _, ok := r.entries[name]; !ok {
		r.order = append(r.order, name)
	}
	r.entries[name] = sr
}

// Get returns the entry for name as it was requested.
func (r *Result) Get(name string) (SourceResult, bool) {
	sr, ok := r.entries[name]
	return sr, ok
}

// Sources lists the result keys in request order.
func (r *Result) Sources() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

func (r *Result) Len() int {
	return len(r.order)
}

// MarshalJSON writes an object whose keys keep request order.
func (r *Result) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, name := range r.order {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(name)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')

		val, err := json.Marshal(r.entries[name])
		if err != nil {
			return nil, err
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
