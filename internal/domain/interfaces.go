package domain

import "context"

// ItemQuery describes one page of a catalog listing
type ItemQuery struct {
	ParentID     string
	SortBy       string
	IncludeTypes []ItemType
	Offset       int
	Limit        int
}

// MediaCatalog is the media server surface the cover pipeline reads from
type MediaCatalog interface {
	// Name identifies the server in history keys and exclusion keys
	Name() string
	ListCollections(ctx context.Context) ([]Collection, error)
	ListItems(ctx context.Context, q ItemQuery) ([]CatalogItem, error)
	FetchImage(ctx context.Context, loc ImageLocator) ([]byte, error)
}

// ArtifactSink accepts a finished cover for a collection
type ArtifactSink interface {
	SetCollectionImage(ctx context.Context, collectionID string, art CoverArtifact) error
}

// KeyValueStore persists opaque blobs by key
type KeyValueStore interface {
	Get(key string) ([]byte, bool, error)
	Set(key string, value []byte) error
	Delete(key string) error
	// Keys lists stored keys with the given prefix, sorted
	Keys(prefix string) ([]string, error)
}
