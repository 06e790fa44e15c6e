package service

import (
	"context"
)

const (
	defaultBatchSize  = 20
	defaultMaxBatches = 5
)

// fetchPages is a private helper that handles pagination.
// fetch returns the accepted results of one page and the raw page length.
// Paging stops once want results are gathered, a page comes back short,
// or maxPages pages have been read.
func fetchPages[T any](
	ctx context.Context,
	fetch func(ctx context.Context, offset, limit int) ([]T, int, error),
	pageSize, maxPages, want int,
) ([]T, error) {
	if pageSize <= 0 {
		pageSize = defaultBatchSize
	}
	if maxPages <= 0 {
		maxPages = defaultMaxBatches
	}

	var all []T
	offset := 0

	for page := 0; page < maxPages; page++ {
		select {
		case <-ctx.Done():
			return all, ctx.Err()
		default:
		}

		items, raw, err := fetch(ctx, offset, pageSize)
		if err != nil {
			return all, err
		}

		all = append(all, items...)

		if len(all) >= want || raw < pageSize {
			break
		}
		offset += pageSize
	}

	return all, nil
}
