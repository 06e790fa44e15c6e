package service

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/mmcdole/covergen/internal/domain"
)

// ErrNoCollection indicates no collection location contains a notified item path
var ErrNoCollection = errors.New("no library contains the item")

// Notify updates the collection holding a newly added item. The item path is
// matched against the collection locations reported by the server. The
// update is skipped when the item already produced the newest cover.
func (s *CoverService) Notify(ctx context.Context, srv Server, itemID, itemPath string, opts Options) (Outcome, error) {
	opts = opts.normalized()

	cols, err := srv.ListCollections(ctx)
	if err != nil {
		return Outcome{Server: srv.Name()}, err
	}
	col, ok := collectionFor(cols, itemPath)
	if !ok {
		return Outcome{Server: srv.Name()}, fmt.Errorf("%w: %s", ErrNoCollection, itemPath)
	}

	logger := s.logger.With("server", srv.Name(), "library", col.Name, "item", itemID)
	out := Outcome{Server: srv.Name(), Collection: col}

	if opts.excluded(srv.Name(), col) {
		logger.Info("library excluded")
		out.Status = StatusExcluded
		return out, nil
	}

	skip, err := s.history.ShouldSkip(srv.Name(), col.ID, itemID)
	if err != nil {
		logger.Warn("failed to read cover history", "error", err)
	} else if skip {
		logger.Info("item is already the newest cover source")
		out.Status = StatusSkipped
		out.Err = domain.ErrUpToDate
		return out, nil
	}
	if _, err := s.history.Record(srv.Name(), col.ID, itemID); err != nil {
		logger.Warn("failed to record cover history", "error", err)
	}

	opts.SortBy = SortDateCreated
	opts.Force = true
	return s.Update(ctx, srv, col, opts), nil
}

// collectionFor returns the collection with the longest location containing path
func collectionFor(cols []domain.Collection, path string) (domain.Collection, bool) {
	path = filepath.Clean(path)
	var (
		best    domain.Collection
		bestLen = -1
	)
	for _, col := range cols {
		for _, loc := range col.Locations {
			if loc == "" {
				continue
			}
			loc = filepath.Clean(loc)
			if path != loc && !strings.HasPrefix(path, strings.TrimSuffix(loc, string(filepath.Separator))+string(filepath.Separator)) {
				continue
			}
			if len(loc) > bestLen {
				best, bestLen = col, len(loc)
			}
		}
	}
	return best, bestLen >= 0
}
