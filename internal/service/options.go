package service

import (
	"slices"
	"time"

	"github.com/mmcdole/covergen/internal/domain"
	"github.com/mmcdole/covergen/internal/retry"
)

// Sort keys accepted by the catalog listing
const (
	SortRandom       = "Random"
	SortDateCreated  = "DateCreated"
	SortPremiereDate = "PremiereDate"
)

// Options is the immutable configuration of one pipeline invocation
type Options struct {
	Style        domain.Style
	Params       domain.StyleParams
	SortBy       string
	Exclude      []string // "<server>-<libraryId>" keys
	Libraries    []string // Optional name filters; empty selects every collection
	CoversInput  string   // Directory of per-collection custom images
	CoversOutput string   // Directory receiving a copy of each artifact
	Force        bool     // Regenerate even when history says the cover is current
	UseMainFont  bool     // Multi styles render with the single-style fonts
	BatchSize    int
	MaxBatches   int
	ImagePolicy  retry.Policy
}

// DefaultOptions returns the options used when nothing is configured
func DefaultOptions() Options {
	return Options{
		Style:       domain.StyleSingle1,
		Params:      domain.DefaultStyleParams(),
		SortBy:      SortRandom,
		BatchSize:   defaultBatchSize,
		MaxBatches:  defaultMaxBatches,
		ImagePolicy: retry.Fixed(3, time.Second),
	}
}

// normalized fills zero values with defaults
func (o Options) normalized() Options {
	def := DefaultOptions()
	if !o.Style.Valid() {
		o.Style = def.Style
	}
	o.Params = o.Params.Normalize()
	switch o.SortBy {
	case SortRandom, SortDateCreated, SortPremiereDate:
	default:
		o.SortBy = def.SortBy
	}
	if o.BatchSize <= 0 {
		o.BatchSize = def.BatchSize
	}
	if o.MaxBatches <= 0 {
		o.MaxBatches = def.MaxBatches
	}
	if o.ImagePolicy.MaxAttempts <= 0 {
		o.ImagePolicy = def.ImagePolicy
	}
	return o
}

// fontFamily returns the font family the style renders with
func (o Options) fontFamily() domain.StyleFamily {
	if o.UseMainFont {
		return domain.FamilySingle
	}
	return o.Style.Family()
}

// excluded reports whether the collection is on the exclude list
func (o Options) excluded(server string, col domain.Collection) bool {
	return slices.Contains(o.Exclude, col.ExclusionKey(server))
}

// includeTypes returns the item types listed for a regular library
func (o Options) includeTypes() []domain.ItemType {
	if o.SortBy == SortDateCreated && o.Style.Family() == domain.FamilySingle {
		return []domain.ItemType{domain.ItemTypeMovie, domain.ItemTypeEpisode}
	}
	return []domain.ItemType{domain.ItemTypeMovie, domain.ItemTypeSeries}
}
