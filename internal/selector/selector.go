// Package selector filters catalog items down to distinct, usable cover images
// and resolves each survivor to the concrete image that will be rendered.
package selector

import (
	"github.com/mmcdole/covergen/internal/domain"
)

// Selector carries the dedup state of one synthesis. Feeding several catalog pages
// through the same Selector keeps tags seen on earlier pages suppressed.
type Selector struct {
	family        domain.StyleFamily
	preferPrimary bool
	seen          map[string]struct{}
}

// New creates a Selector for the given style family and priority flag
func New(family domain.StyleFamily, preferPrimary bool) *Selector {
	return &Selector{
		family:        family,
		preferPrimary: preferPrimary,
		seen:          make(map[string]struct{}),
	}
}

// Select is the one-shot form: filter, dedup and resolve items in input order.
// It returns domain.ErrNoUsableItems when nothing survives.
func Select(items []domain.CatalogItem, style domain.Style, preferPrimary bool) ([]domain.Selection, error) {
	out := New(style.Family(), preferPrimary).Add(items)
	if len(out) == 0 {
		return nil, domain.ErrNoUsableItems
	}
	return out, nil
}

// Add filters the next batch of items and returns the accepted selections in input order
func (s *Selector) Add(items []domain.CatalogItem) []domain.Selection {
	var out []domain.Selection
	for _, item := range items {
		sel, ok := s.accept(item)
		if !ok {
			continue
		}
		out = append(out, sel)
	}
	return out
}

// Seen returns how many distinct dedup tags have been claimed so far
func (s *Selector) Seen() int {
	return len(s.seen)
}

func (s *Selector) accept(item domain.CatalogItem) (domain.Selection, bool) {
	tags := dedupTags(item)
	for _, tag := range tags {
		if _, dup := s.seen[tag]; dup {
			return domain.Selection{}, false
		}
	}

	if !usable(item, s.family) {
		return domain.Selection{}, false
	}

	sel, ok := Resolve(item, s.preferPrimary)
	if !ok {
		return domain.Selection{}, false
	}

	// Claim every tag, not just the one rendered, so later items overlapping
	// through a different field are still rejected.
	for _, tag := range tags {
		s.seen[tag] = struct{}{}
	}
	return sel, true
}

// dedupTags returns one tag per non-empty image descriptor
func dedupTags(item domain.CatalogItem) []string {
	tags := make([]string, 0, len(item.Images))
	for _, img := range item.Images {
		if img.Tag == "" {
			continue
		}
		tags = append(tags, img.DedupKey())
	}
	return tags
}

// usable reports whether the item carries an image its family can render
func usable(item domain.CatalogItem, family domain.StyleFamily) bool {
	for _, kind := range acceptedKinds(item.Type, family) {
		if item.HasImage(kind) {
			return true
		}
	}
	return false
}

func acceptedKinds(t domain.ItemType, family domain.StyleFamily) []domain.ImageKind {
	switch {
	case t.IsMusic():
		return []domain.ImageKind{domain.ImageKindParentBackdrop, domain.ImageKindAlbumPrimary, domain.ImageKindPrimary}
	case family == domain.FamilyMulti:
		return []domain.ImageKind{domain.ImageKindPrimary, domain.ImageKindBackdrop, domain.ImageKindParentBackdrop}
	default:
		return []domain.ImageKind{domain.ImageKindBackdrop, domain.ImageKindParentBackdrop, domain.ImageKindPrimary}
	}
}
