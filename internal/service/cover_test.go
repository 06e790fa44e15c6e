package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmcdole/covergen/internal/compose"
	"github.com/mmcdole/covergen/internal/domain"
	"github.com/mmcdole/covergen/internal/history"
	"github.com/mmcdole/covergen/internal/retry"
	"github.com/mmcdole/covergen/internal/store"
	"github.com/mmcdole/covergen/internal/titles"
)

// fakeServer is an in-memory media server
type fakeServer struct {
	name        string
	collections []domain.Collection
	children    map[string][]domain.CatalogItem // parent id -> items, in listing order
	failures    map[string]int                  // image tag -> failures before success

	mu      sync.Mutex
	queries []domain.ItemQuery
	fetches map[string]int
	uploads map[string]domain.CoverArtifact
}

func newFakeServer(name string, cols ...domain.Collection) *fakeServer {
	return &fakeServer{
		name:        name,
		collections: cols,
		children:    make(map[string][]domain.CatalogItem),
		failures:    make(map[string]int),
		fetches:     make(map[string]int),
		uploads:     make(map[string]domain.CoverArtifact),
	}
}

func (f *fakeServer) Name() string { return f.name }

func (f *fakeServer) ListCollections(ctx context.Context) ([]domain.Collection, error) {
	return f.collections, nil
}

func (f *fakeServer) ListItems(ctx context.Context, q domain.ItemQuery) ([]domain.CatalogItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, q)

	items := f.children[q.ParentID]
	if q.Offset >= len(items) {
		return nil, nil
	}
	end := min(q.Offset+q.Limit, len(items))
	return items[q.Offset:end], nil
}

func (f *fakeServer) FetchImage(ctx context.Context, loc domain.ImageLocator) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetches[loc.Tag]++
	if f.failures[loc.Tag] < 0 || f.fetches[loc.Tag] <= f.failures[loc.Tag] {
		return nil, fmt.Errorf("%w: image %s", domain.ErrTransient, loc.Tag)
	}
	return []byte("img-" + loc.Tag), nil
}

func (f *fakeServer) SetCollectionImage(ctx context.Context, collectionID string, art domain.CoverArtifact) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.uploads[collectionID] = art
	return nil
}

func (f *fakeServer) parents() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, q := range f.queries {
		out = append(out, q.ParentID)
	}
	return out
}

type fakeFonts struct {
	families []domain.StyleFamily
	err      error
}

func (f *fakeFonts) ResolveAll(ctx context.Context, family domain.StyleFamily) (domain.FontPair, error) {
	f.families = append(f.families, family)
	return domain.FontPair{}, f.err
}

type fakeEngine struct {
	requests []compose.Request
}

func (f *fakeEngine) Compose(req compose.Request) (domain.CoverArtifact, error) {
	f.requests = append(f.requests, req)
	return domain.CoverArtifact{Data: []byte("cover"), Format: domain.FormatJPEG}, nil
}

type failingHistory struct {
	records int
}

func (f *failingHistory) ShouldSkip(server, collectionID, candidateItemID string) (bool, error) {
	return false, nil
}

func (f *failingHistory) Record(server, collectionID, itemID string) ([]domain.HistoryEntry, error) {
	f.records++
	return nil, fmt.Errorf("%w: disk full", domain.ErrPersist)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type harness struct {
	svc     *CoverService
	fonts   *fakeFonts
	engine  *fakeEngine
	history *history.Cache
}

func newHarness(t *testing.T, titleConfig string) *harness {
	t.Helper()
	st, err := store.Open("")
	require.NoError(t, err)

	h := &harness{
		fonts:   &fakeFonts{},
		engine:  &fakeEngine{},
		history: history.New(st, discardLogger()),
	}
	h.svc = NewCoverService(h.fonts, h.history, h.engine, titles.NewResolver(titleConfig, discardLogger()), discardLogger())
	return h
}

func testOptions(style domain.Style) Options {
	opts := DefaultOptions()
	opts.Style = style
	opts.ImagePolicy = retry.Fixed(3, 0)
	return opts
}

func movie(id string) domain.CatalogItem {
	return domain.CatalogItem{
		ID:   id,
		Name: id,
		Type: domain.ItemTypeMovie,
		Images: []domain.ImageDescriptor{
			{Kind: domain.ImageKindPrimary, OwnerID: id, Tag: "p-" + id},
		},
	}
}

func movies(prefix string, n int) []domain.CatalogItem {
	out := make([]domain.CatalogItem, n)
	for i := range out {
		out[i] = movie(fmt.Sprintf("%s%02d", prefix, i))
	}
	return out
}

func TestUpdateSingleUploadsAndRecordsHistory(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, "")
	col := domain.Collection{ID: "lib1", Name: "Anime", Type: "tvshows"}
	srv := newFakeServer("home", col)
	srv.children["lib1"] = []domain.CatalogItem{movie("m1"), movie("m2")}
	opts := testOptions(domain.StyleSingle1)

	out := h.svc.Update(ctx, srv, col, opts)
	require.NoError(t, out.Err)
	assert.Equal(t, StatusUpdated, out.Status)
	assert.Equal(t, 1, out.Images)

	require.Len(t, h.engine.requests, 1)
	req := h.engine.requests[0]
	assert.Equal(t, [][]byte{[]byte("img-p-m1")}, req.Images)
	assert.Equal(t, domain.Title{Zh: "Anime"}, req.Title)
	assert.Equal(t, domain.StyleSingle1, req.Style)
	assert.Equal(t, []domain.StyleFamily{domain.FamilySingle}, h.fonts.families)

	assert.Contains(t, srv.uploads, "lib1")
	latest, ok, err := h.history.Latest("home", "lib1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "m1", latest.ItemID)

	// The newest item already produced the cover
	out = h.svc.Update(ctx, srv, col, opts)
	assert.Equal(t, StatusSkipped, out.Status)
	assert.ErrorIs(t, out.Err, domain.ErrUpToDate)
	assert.Len(t, h.engine.requests, 1)

	opts.Force = true
	out = h.svc.Update(ctx, srv, col, opts)
	assert.Equal(t, StatusUpdated, out.Status)
	assert.Len(t, h.engine.requests, 2)
}

func TestUpdateRegularLibraryQuery(t *testing.T) {
	h := newHarness(t, "")
	col := domain.Collection{ID: "lib1", Name: "Movies", Type: "movies"}
	srv := newFakeServer("home", col)
	srv.children["lib1"] = movies("m", 3)

	opts := testOptions(domain.StyleSingle2)
	opts.SortBy = SortDateCreated
	out := h.svc.Update(context.Background(), srv, col, opts)
	require.NoError(t, out.Err)

	require.Len(t, srv.queries, 1)
	assert.Equal(t, domain.ItemQuery{
		ParentID:     "lib1",
		SortBy:       SortDateCreated,
		IncludeTypes: []domain.ItemType{domain.ItemTypeMovie, domain.ItemTypeEpisode},
		Offset:       0,
		Limit:        20,
	}, srv.queries[0])
}

func TestUpdateMultiPagesUntilEnoughDistinctItems(t *testing.T) {
	h := newHarness(t, "")
	col := domain.Collection{ID: "lib1", Name: "Shows", Type: "tvshows"}
	srv := newFakeServer("home", col)

	// The first page is twenty episodes sharing one series backdrop
	var page1 []domain.CatalogItem
	for i := range 20 {
		page1 = append(page1, domain.CatalogItem{
			ID:   fmt.Sprintf("ep%02d", i),
			Type: domain.ItemTypeEpisode,
			Images: []domain.ImageDescriptor{
				{Kind: domain.ImageKindParentBackdrop, OwnerID: "series1", Tag: "shared"},
			},
		})
	}
	srv.children["lib1"] = append(page1, movies("m", 40)...)

	out := h.svc.Update(context.Background(), srv, col, testOptions(domain.StyleMulti1))
	require.NoError(t, out.Err)
	assert.Equal(t, StatusUpdated, out.Status)

	var offsets []int
	for _, q := range srv.queries {
		offsets = append(offsets, q.Offset)
		assert.Equal(t, []domain.ItemType{domain.ItemTypeMovie, domain.ItemTypeSeries}, q.IncludeTypes)
	}
	assert.Equal(t, []int{0, 20}, offsets, "paging stops once sixteen items are selected")

	require.Len(t, h.engine.requests, 1)
	req := h.engine.requests[0]
	require.Len(t, req.Images, domain.MaxGridImages)
	assert.Equal(t, []byte("img-shared"), req.Images[0])
	assert.Equal(t, []byte("img-p-m00"), req.Images[1])

	entries, err := h.history.Entries("home", "lib1")
	require.NoError(t, err)
	require.Len(t, entries, domain.HistoryLimit)
	assert.Equal(t, "series1", entries[0].ItemID, "first selection is the newest entry")
	assert.Equal(t, "m07", entries[len(entries)-1].ItemID)
}

func TestUpdateBoxSetsDescendIntoContainers(t *testing.T) {
	h := newHarness(t, "")
	col := domain.Collection{ID: "sets", Name: "Collections", Type: domain.CollectionTypeBoxSets}
	srv := newFakeServer("home", col)
	srv.children["sets"] = []domain.CatalogItem{
		{ID: "bs1", Type: domain.ItemTypeBoxSet},
		{ID: "bs2", Type: domain.ItemTypeBoxSet},
	}
	srv.children["bs1"] = []domain.CatalogItem{{ID: "empty", Type: domain.ItemTypeMovie}}
	srv.children["bs2"] = []domain.CatalogItem{movie("m1"), movie("m2")}

	out := h.svc.Update(context.Background(), srv, col, testOptions(domain.StyleSingle1))
	require.NoError(t, out.Err)

	assert.Equal(t, []string{"sets", "bs1", "bs2"}, srv.parents())
	for _, q := range srv.queries {
		assert.Equal(t, []domain.ItemType{domain.ItemTypeBoxSet, domain.ItemTypeMovie}, q.IncludeTypes)
	}
	require.Len(t, h.engine.requests, 1)
	assert.Equal(t, [][]byte{[]byte("img-p-m1")}, h.engine.requests[0].Images)
}

func TestUpdateCustomImages(t *testing.T) {
	h := newHarness(t, "Anime:\n  - 动漫\n  - ANIME\n")
	col := domain.Collection{ID: "lib1", Name: "Anime", Type: "tvshows"}
	srv := newFakeServer("home", col)

	input := t.TempDir()
	dir := filepath.Join(input, "Anime")
	require.NoError(t, os.MkdirAll(dir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.png"), []byte("b"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.JPG"), []byte("a"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0644))

	opts := testOptions(domain.StyleMulti2)
	opts.CoversInput = input
	out := h.svc.Update(context.Background(), srv, col, opts)
	require.NoError(t, out.Err)
	assert.True(t, out.Custom)

	assert.Empty(t, srv.queries, "custom images bypass the catalog")
	require.Len(t, h.engine.requests, 1)
	assert.Equal(t, [][]byte{[]byte("a"), []byte("b")}, h.engine.requests[0].Images)
	assert.Equal(t, domain.Title{Zh: "动漫", En: "ANIME"}, h.engine.requests[0].Title)

	_, ok, err := h.history.Latest("home", "lib1")
	require.NoError(t, err)
	assert.False(t, ok, "custom images leave history untouched")
}

func TestUpdateRetriesAndSkipsFailedImages(t *testing.T) {
	h := newHarness(t, "")
	col := domain.Collection{ID: "lib1", Name: "Movies", Type: "movies"}
	srv := newFakeServer("home", col)
	srv.children["lib1"] = movies("m", 3)
	srv.failures["p-m00"] = -1 // never succeeds
	srv.failures["p-m01"] = 2  // succeeds on the third attempt

	out := h.svc.Update(context.Background(), srv, col, testOptions(domain.StyleMulti1))
	require.NoError(t, out.Err)

	assert.Equal(t, 3, srv.fetches["p-m00"])
	assert.Equal(t, 3, srv.fetches["p-m01"])
	require.Len(t, h.engine.requests, 1)
	assert.Equal(t, [][]byte{[]byte("img-p-m01"), []byte("img-p-m02")}, h.engine.requests[0].Images)

	entries, err := h.history.Entries("home", "lib1")
	require.NoError(t, err)
	var ids []string
	for _, e := range entries {
		ids = append(ids, e.ItemID)
	}
	assert.Equal(t, []string{"m01", "m02"}, ids, "only rendered items are recorded")
}

func TestUpdateEmptyOutcomes(t *testing.T) {
	h := newHarness(t, "")
	col := domain.Collection{ID: "lib1", Name: "Movies", Type: "movies"}
	srv := newFakeServer("home", col)

	out := h.svc.Update(context.Background(), srv, col, testOptions(domain.StyleSingle1))
	assert.Equal(t, StatusEmpty, out.Status)
	assert.ErrorIs(t, out.Err, domain.ErrNoUsableItems)

	srv.children["lib1"] = movies("m", 1)
	srv.failures["p-m00"] = -1
	out = h.svc.Update(context.Background(), srv, col, testOptions(domain.StyleSingle1))
	assert.Equal(t, StatusEmpty, out.Status)
	assert.ErrorIs(t, out.Err, domain.ErrNoImages)
	assert.Empty(t, srv.uploads)
}

func TestUpdateFontFailure(t *testing.T) {
	h := newHarness(t, "")
	h.fonts.err = fmt.Errorf("%w: zh", domain.ErrResourceUnavailable)
	col := domain.Collection{ID: "lib1", Name: "Movies", Type: "movies"}
	srv := newFakeServer("home", col)
	srv.children["lib1"] = movies("m", 1)

	opts := testOptions(domain.StyleMulti2)
	opts.UseMainFont = true
	out := h.svc.Update(context.Background(), srv, col, opts)
	assert.Equal(t, StatusFailed, out.Status)
	assert.ErrorIs(t, out.Err, domain.ErrResourceUnavailable)
	assert.Equal(t, []domain.StyleFamily{domain.FamilySingle}, h.fonts.families)
	assert.Empty(t, srv.uploads)
}

func TestUpdatePersistFailureStillUpdates(t *testing.T) {
	hist := &failingHistory{}
	engine := &fakeEngine{}
	svc := NewCoverService(&fakeFonts{}, hist, engine, titles.NewResolver("", nil), discardLogger())
	col := domain.Collection{ID: "lib1", Name: "Movies", Type: "movies"}
	srv := newFakeServer("home", col)
	srv.children["lib1"] = movies("m", 20)

	out := svc.Update(context.Background(), srv, col, testOptions(domain.StyleMulti1))
	require.NoError(t, out.Err)
	assert.Equal(t, StatusUpdated, out.Status)
	assert.Equal(t, 1, hist.records, "recording stops at the first persist failure")
	assert.Contains(t, srv.uploads, "lib1")
}

func TestUpdateWritesOutputCopy(t *testing.T) {
	h := newHarness(t, "")
	col := domain.Collection{ID: "lib1", Name: "Kids/Family", Type: "movies"}
	srv := newFakeServer("home", col)
	srv.children["lib1"] = movies("m", 1)

	opts := testOptions(domain.StyleSingle1)
	opts.CoversOutput = filepath.Join(t.TempDir(), "out")
	out := h.svc.Update(context.Background(), srv, col, opts)
	require.NoError(t, out.Err)

	assert.Equal(t, filepath.Join(opts.CoversOutput, "Kids_Family.jpg"), out.OutputPath)
	data, err := os.ReadFile(out.OutputPath)
	require.NoError(t, err)
	assert.Equal(t, []byte("cover"), data)
}

func TestRunExcludesAndFilters(t *testing.T) {
	h := newHarness(t, "")
	movieLib := domain.Collection{ID: "a", Name: "Movies", Type: "movies"}
	showLib := domain.Collection{ID: "b", Name: "TV Shows", Type: "tvshows"}
	musicLib := domain.Collection{ID: "c", Name: "Music", Type: domain.CollectionTypeMusic}
	srv := newFakeServer("home", movieLib, showLib, musicLib)
	srv.children["a"] = movies("m", 1)
	srv.children["b"] = movies("s", 1)

	opts := testOptions(domain.StyleSingle1)
	opts.Exclude = []string{"home-a"}
	opts.Libraries = []string{"movies", "tv"}

	res, err := h.svc.Run(context.Background(), []Server{srv}, opts)
	require.NoError(t, err)
	require.Len(t, res.Outcomes, 2)
	assert.Equal(t, StatusExcluded, res.Outcomes[0].Status)
	assert.Equal(t, StatusUpdated, res.Outcomes[1].Status)
	assert.Equal(t, 1, res.Count(StatusUpdated))
	assert.False(t, res.AllFailed())
	assert.Equal(t, []string{"b"}, srv.parents())
	assert.Equal(t, []string{"Movies", "TV Shows", "Music"}, res.Catalog, "filtered libraries still count as known")
}

func TestRunStopsBetweenCollections(t *testing.T) {
	h := newHarness(t, "")
	srv := newFakeServer("home", domain.Collection{ID: "a", Name: "Movies", Type: "movies"})
	srv.children["a"] = movies("m", 1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res, err := h.svc.Run(ctx, []Server{srv}, testOptions(domain.StyleSingle1))
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Empty(t, res.Outcomes)
	assert.Empty(t, srv.uploads)
}

func TestNotify(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, "")
	movieLib := domain.Collection{ID: "a", Name: "Movies", Type: "movies", Locations: []string{"/media/movies"}}
	kidsLib := domain.Collection{ID: "b", Name: "Kids", Type: "movies", Locations: []string{"/media/movies/kids"}}
	srv := newFakeServer("home", movieLib, kidsLib)
	srv.children["b"] = []domain.CatalogItem{movie("new"), movie("old")}

	out, err := h.svc.Notify(ctx, srv, "new", "/media/movies/kids/New (2024)/new.mkv", testOptions(domain.StyleSingle1))
	require.NoError(t, err)
	assert.Equal(t, "b", out.Collection.ID)
	assert.Equal(t, StatusUpdated, out.Status)
	require.Len(t, srv.queries, 1)
	assert.Equal(t, SortDateCreated, srv.queries[0].SortBy)

	out, err = h.svc.Notify(ctx, srv, "new", "/media/movies/kids/New (2024)/new.mkv", testOptions(domain.StyleSingle1))
	require.NoError(t, err)
	assert.Equal(t, StatusSkipped, out.Status)

	_, err = h.svc.Notify(ctx, srv, "x", "/elsewhere/x.mkv", testOptions(domain.StyleSingle1))
	assert.ErrorIs(t, err, ErrNoCollection)
}

func TestFetchPagesStopsOnShortPage(t *testing.T) {
	var offsets []int
	got, err := fetchPages(context.Background(), func(ctx context.Context, offset, limit int) ([]int, int, error) {
		offsets = append(offsets, offset)
		if offset >= 40 {
			return []int{offset}, 5, nil
		}
		return nil, limit, nil
	}, 20, 5, 3)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 20, 40}, offsets)
	assert.Equal(t, []int{40}, got)
}

func TestDefaultOptionsImagePolicy(t *testing.T) {
	opts := Options{}.normalized()
	assert.Equal(t, retry.Fixed(3, time.Second), opts.ImagePolicy)
	assert.Equal(t, domain.StyleSingle1, opts.Style)
	assert.Equal(t, SortRandom, opts.SortBy)
}
