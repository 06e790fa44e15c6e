package service

import (
	"context"
	"fmt"

	"github.com/mmcdole/covergen/internal/domain"
	"github.com/mmcdole/covergen/internal/selector"
)

// collect lists the collection's items and returns the selections to render,
// truncated to what the style needs.
func (s *CoverService) collect(ctx context.Context, srv Server, col domain.Collection, opts Options) ([]domain.Selection, error) {
	sel := selector.New(opts.Style.Family(), opts.Params.PreferPrimary)

	var (
		out  []domain.Selection
		want int
		err  error
	)
	switch col.Type {
	case domain.CollectionTypeBoxSets:
		want = containerWant(opts.Style)
		out, err = s.descend(ctx, srv, col, sel, opts, domain.ItemTypeBoxSet,
			[]domain.ItemType{domain.ItemTypeBoxSet, domain.ItemTypeMovie}, want)
	case domain.CollectionTypePlaylists:
		want = containerWant(opts.Style)
		out, err = s.descend(ctx, srv, col, sel, opts, domain.ItemTypePlaylist,
			[]domain.ItemType{
				domain.ItemTypePlaylist, domain.ItemTypeMovie, domain.ItemTypeSeries,
				domain.ItemTypeEpisode, domain.ItemTypeAudio,
			}, want)
	case domain.CollectionTypeMusic:
		want = opts.Style.RequiredItems()
		out, err = s.paged(ctx, srv, col, sel, opts,
			[]domain.ItemType{domain.ItemTypeMusicAlbum, domain.ItemTypeAudio}, want)
	default:
		want = opts.Style.RequiredItems()
		out, err = s.paged(ctx, srv, col, sel, opts, opts.includeTypes(), want)
	}

	if err != nil {
		if len(out) == 0 {
			return nil, fmt.Errorf("list items: %w", err)
		}
		s.logger.Warn("item listing interrupted, using partial results",
			"server", srv.Name(), "library", col.Name, "selected", len(out), "error", err)
	}
	if len(out) == 0 {
		return nil, domain.ErrNoUsableItems
	}
	if len(out) > want {
		out = out[:want]
	}
	return out, nil
}

// containerWant is how many selections a box set or playlist library needs
func containerWant(style domain.Style) int {
	if style.Family() == domain.FamilyMulti {
		return domain.MaxGridImages
	}
	return 1
}

// paged reads the collection in fixed batches, carrying dedup state across pages
func (s *CoverService) paged(ctx context.Context, srv Server, col domain.Collection, sel *selector.Selector, opts Options, types []domain.ItemType, want int) ([]domain.Selection, error) {
	return fetchPages(ctx, func(ctx context.Context, offset, limit int) ([]domain.Selection, int, error) {
		items, err := srv.ListItems(ctx, domain.ItemQuery{
			ParentID:     col.ID,
			SortBy:       opts.SortBy,
			IncludeTypes: types,
			Offset:       offset,
			Limit:        limit,
		})
		if err != nil {
			return nil, 0, err
		}
		return sel.Add(items), len(items), nil
	}, opts.BatchSize, opts.MaxBatches, want)
}

// descend reads one batch of the collection, then the contents of each
// container in it until enough selections are gathered
func (s *CoverService) descend(ctx context.Context, srv Server, col domain.Collection, sel *selector.Selector, opts Options, container domain.ItemType, types []domain.ItemType, want int) ([]domain.Selection, error) {
	query := domain.ItemQuery{
		ParentID:     col.ID,
		SortBy:       opts.SortBy,
		IncludeTypes: types,
		Limit:        opts.BatchSize,
	}
	top, err := srv.ListItems(ctx, query)
	if err != nil {
		return nil, err
	}
	out := sel.Add(top)

	for _, item := range top {
		if len(out) >= want {
			break
		}
		if item.Type != container {
			continue
		}
		query.ParentID = item.ID
		children, err := srv.ListItems(ctx, query)
		if err != nil {
			return out, err
		}
		out = append(out, sel.Add(children)...)
	}
	return out, nil
}
