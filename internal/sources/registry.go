// Package sources holds the immutable registry of news sites whose archived
// homepages can be searched.
package sources

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrUnknownSource is returned when a requested source is not registered.
var ErrUnknownSource = errors.New("unknown source")

// Definition is the serialisable form of a source, as found in sources.yaml.
type Definition struct {
	Name    string `yaml:"name" json:"name"`
	Link    string `yaml:"link" json:"link"`
	Pattern string `yaml:"pattern" json:"pattern"`
}

// Descriptor is a registered source with its link-shape matcher compiled.
type Descriptor struct {
	Name     string
	Homepage string
	Shape    *regexp.Regexp
}

// Registry is built once at start-up and only read afterwards.
type Registry struct {
	byName map[string]*Descriptor
	order  []string
	defs   []Definition
}

// Defaults returns the built-in source list.
func Defaults() []Definition {
	return []Definition{
		{Name: "guardian", Link: "theguardian.com/international", Pattern: `theguardian.com/(.*)/(.*)/(.*)/(.*)/(.*)$`},
		{Name: "time", Link: "time.com", Pattern: `time.com/([0-9]*)/(.*)/$`},
		{Name: "economist", Link: "economist.com", Pattern: `economist.com/(.*)/(.*)/(.*)/(.*)/(.*)$`},
		{Name: "reuters", Link: "reuters.com", Pattern: `reuters.com/article/(.*)/(.*)`},
	}
}

// NewRegistry compiles defs in order. Names are keyed lowercase and must be unique.
func NewRegistry(defs []Definition) (*Registry, error) {
	if len(defs) == 0 {
		return nil, fmt.Errorf("no sources defined")
	}

	r := &Registry{
		byName: make(map[string]*Descriptor, len(defs)),
		order:  make([]string, 0, len(defs)),
		defs:   make([]Definition, 0, len(defs)),
	}

	for i, def := range defs {
		key := strings.ToLower(strings.TrimSpace(def.Name))
		if key == "" {
			return nil, fmt.Errorf("source #%d: name is required", i+1)
		}
		if def.Link == "" {
			return nil, fmt.Errorf("source %q: link is required", key)
		}
		if def.Pattern == "" {
			return nil, fmt.Errorf("source %q: pattern is required", key)
		}
		if _, dup := r.byName[key]; dup {
			return nil, fmt.Errorf("source %q defined twice", key)
		}

		shape, err := regexp.Compile(def.Pattern)
		if err != nil {
			return nil, fmt.Errorf("source %q: invalid pattern: %w", key, err)
		}

		r.byName[key] = &Descriptor{Name: key, Homepage: def.Link, Shape: shape}
		r.order = append(r.order, key)
		r.defs = append(r.defs, Definition{Name: key, Link: def.Link, Pattern: def.Pattern})
	}

	return r, nil
}

// Lookup finds a source by name, ignoring case.
func (r *Registry) Lookup(name string) (*Descriptor, error) {
	d, ok := r.byName[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownSource, name)
	}
	return d, nil
}

// Names lists registered sources in definition order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

func (r *Registry) Definitions() []Definition {
	out := make([]Definition, len(r.defs))
	copy(out, r.defs)
	return out
}
