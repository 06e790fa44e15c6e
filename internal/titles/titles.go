// Package titles maps collection names to the cover titles configured for them.
//
// The mapping is YAML keyed by collection name, each value a list whose first
// two entries are the Chinese and English titles:
//
//	Movies:
//	  - 电影
//	  - Movies
package titles

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/sahilm/fuzzy"
	"gopkg.in/yaml.v3"

	"github.com/mmcdole/covergen/internal/domain"
)

// Mapping is a parsed title configuration
type Mapping struct {
	titles map[string]domain.Title
	keys   []string // Configuration order
}

// normalize makes hand-typed configuration parseable: full-width colons
// become ASCII and tabs become spaces
func normalize(text string) string {
	text = strings.ReplaceAll(text, "：", ":")
	return strings.ReplaceAll(text, "\t", "  ")
}

// Parse parses a title configuration. Any structural problem yields an
// error wrapping domain.ErrTitleConfig.
func Parse(text string) (*Mapping, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal([]byte(normalize(text)), &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrTitleConfig, err)
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		return nil, fmt.Errorf("%w: no entries", domain.ErrTitleConfig)
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("%w: top level must be a mapping", domain.ErrTitleConfig)
	}

	m := &Mapping{titles: make(map[string]domain.Title)}
	for i := 0; i+1 < len(root.Content); i += 2 {
		k, v := root.Content[i], root.Content[i+1]
		if v.Kind != yaml.SequenceNode || len(v.Content) < 2 {
			return nil, fmt.Errorf("%w: entry %q (line %d) must list a Chinese and an English title",
				domain.ErrTitleConfig, k.Value, k.Line)
		}
		zh, en := v.Content[0], v.Content[1]
		if zh.Kind != yaml.ScalarNode || en.Kind != yaml.ScalarNode {
			return nil, fmt.Errorf("%w: entry %q (line %d) titles must be plain text",
				domain.ErrTitleConfig, k.Value, k.Line)
		}
		if _, dup := m.titles[k.Value]; !dup {
			m.keys = append(m.keys, k.Value)
		}
		m.titles[k.Value] = domain.Title{Zh: scalar(zh), En: scalar(en)}
	}
	return m, nil
}

func scalar(n *yaml.Node) string {
	if n.Tag == "!!null" {
		return ""
	}
	return n.Value
}

// Lookup returns the configured title for a collection name. An entry whose
// Chinese title is blank counts as unmapped.
func (m *Mapping) Lookup(name string) (domain.Title, bool) {
	if m == nil {
		return domain.Title{}, false
	}
	t, ok := m.titles[name]
	if !ok || strings.TrimSpace(t.Zh) == "" {
		return domain.Title{}, false
	}
	return t, true
}

// Keys returns the configured collection names in configuration order
func (m *Mapping) Keys() []string {
	if m == nil {
		return nil
	}
	return append([]string(nil), m.keys...)
}

// Resolver answers title lookups for one run. A malformed configuration is
// reported once and every lookup falls back to the collection name.
type Resolver struct {
	mapping *Mapping
	err     error
}

// NewResolver parses text; an empty configuration is not an error
func NewResolver(text string, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	if strings.TrimSpace(stripComments(text)) == "" {
		return &Resolver{}
	}
	m, err := Parse(text)
	if err != nil {
		logger.Warn("title configuration ignored, using collection names", "error", err)
		return &Resolver{err: err}
	}
	return &Resolver{mapping: m}
}

// Err returns the configuration error, if any
func (r *Resolver) Err() error {
	return r.err
}

// Title returns the configured title for name, or name itself as the
// Chinese title with no English title
func (r *Resolver) Title(name string) domain.Title {
	if t, ok := r.mapping.Lookup(name); ok {
		return t
	}
	return domain.Title{Zh: name}
}

// Suggestion pairs a configured key that matches no collection with the
// closest collection name
type Suggestion struct {
	Key     string
	Closest string // Empty when nothing is similar
}

// collectionNames implements fuzzy.Source over lowercased names
type collectionNames []string

func (c collectionNames) String(i int) string { return c[i] }
func (c collectionNames) Len() int            { return len(c) }

// Unmatched lists configured keys that name none of the given collections,
// each with a fuzzy suggestion, so typos in the configuration surface
func (r *Resolver) Unmatched(names []string) []Suggestion {
	if r.mapping == nil {
		return nil
	}

	present := make(map[string]bool, len(names))
	lower := make(collectionNames, len(names))
	for i, n := range names {
		present[n] = true
		lower[i] = strings.ToLower(n)
	}

	var out []Suggestion
	for _, key := range r.mapping.Keys() {
		if present[key] {
			continue
		}
		s := Suggestion{Key: key}
		if matches := fuzzy.FindFrom(strings.ToLower(key), lower); len(matches) > 0 {
			s.Closest = names[matches[0].Index]
		}
		out = append(out, s)
	}
	return out
}

func stripComments(text string) string {
	var b strings.Builder
	for _, line := range strings.Split(text, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "#") {
			continue
		}
		b.WriteString(line)
		b.WriteByte('\n')
	}
	return b.String()
}
