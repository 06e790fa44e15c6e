package fonts

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmcdole/covergen/internal/domain"
	"github.com/mmcdole/covergen/internal/retry"
)

var (
	zhSingle = domain.FontRole{Lang: domain.LangZh, Family: domain.FamilySingle}
	enSingle = domain.FontRole{Lang: domain.LangEn, Family: domain.FamilySingle}
	zhMulti  = domain.FontRole{Lang: domain.LangZh, Family: domain.FamilyMulti}
)

func fakeTTF(marker string) []byte {
	return append([]byte{0x00, 0x01, 0x00, 0x00}, []byte(marker)...)
}

type fontServer struct {
	*httptest.Server
	hits  atomic.Int32
	paths chan string
}

func newFontServer(t *testing.T, handler func(w http.ResponseWriter, r *http.Request)) *fontServer {
	t.Helper()
	fs := &fontServer{paths: make(chan string, 64)}
	fs.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fs.hits.Add(1)
		select {
		case fs.paths <- r.URL.Path:
		default:
		}
		handler(w, r)
	}))
	t.Cleanup(fs.Close)
	return fs
}

func serveFont(w http.ResponseWriter, r *http.Request) {
	w.Write(fakeTTF(r.URL.Path))
}

func newTestResolver(t *testing.T, dir string, sources map[domain.FontRole]Source) *Resolver {
	t.Helper()
	r, err := NewResolver(Config{
		Dir:     dir,
		Sources: sources,
		Policy:  retry.Fixed(3, time.Millisecond),
		Timeout: 5 * time.Second,
	}, nil)
	require.NoError(t, err)
	return r
}

func TestResolveCacheHitThenURLChange(t *testing.T) {
	srv := newFontServer(t, serveFont)
	dir := t.TempDir()
	urlX := srv.URL + "/x.ttf"
	urlY := srv.URL + "/y.ttf"

	// Seed a cache produced from X
	require.NoError(t, os.WriteFile(filepath.Join(dir, "zh.ttf"), fakeTTF("old"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "zh_url.hash"), []byte(HashURL(urlX)), 0o644))

	r := newTestResolver(t, dir, map[domain.FontRole]Source{zhSingle: {URL: urlX}})
	res, err := r.Resolve(context.Background(), zhSingle)
	require.NoError(t, err)
	assert.Equal(t, domain.FontSourceCache, res.Source)
	assert.Equal(t, filepath.Join(dir, "zh.ttf"), res.Path)
	assert.Equal(t, int32(0), srv.hits.Load())

	r = newTestResolver(t, dir, map[domain.FontRole]Source{zhSingle: {URL: urlY}})
	res, err = r.Resolve(context.Background(), zhSingle)
	require.NoError(t, err)
	assert.Equal(t, domain.FontSourceDownload, res.Source)
	assert.Equal(t, int32(1), srv.hits.Load())
	assert.Equal(t, HashURL(urlY), res.Hash)

	stored, err := os.ReadFile(filepath.Join(dir, "zh_url.hash"))
	require.NoError(t, err)
	assert.Equal(t, HashURL(urlY), string(stored))

	data, err := os.ReadFile(res.Path)
	require.NoError(t, err)
	assert.Equal(t, fakeTTF("/y.ttf"), data)

	// Unchanged URL and a valid file: no further network use
	_, err = r.Resolve(context.Background(), zhSingle)
	require.NoError(t, err)
	assert.Equal(t, int32(1), srv.hits.Load())
}

func TestResolveRedownloadsInvalidCachedFile(t *testing.T) {
	srv := newFontServer(t, serveFont)
	dir := t.TempDir()
	u := srv.URL + "/zh.ttf"

	require.NoError(t, os.WriteFile(filepath.Join(dir, "zh.ttf"), []byte("<html>"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "zh_url.hash"), []byte(HashURL(u)), 0o644))

	r := newTestResolver(t, dir, map[domain.FontRole]Source{zhSingle: {URL: u}})
	res, err := r.Resolve(context.Background(), zhSingle)
	require.NoError(t, err)
	assert.Equal(t, domain.FontSourceDownload, res.Source)
	assert.Equal(t, int32(1), srv.hits.Load())
	assert.NoError(t, Validate(res.Path))
}

func TestResolveLocalOverride(t *testing.T) {
	srv := newFontServer(t, serveFont)
	dir := t.TempDir()

	local := filepath.Join(t.TempDir(), "mine.otf")
	require.NoError(t, os.WriteFile(local, []byte("OTTO-local"), 0o644))

	r := newTestResolver(t, dir, map[domain.FontRole]Source{zhSingle: {URL: srv.URL + "/zh.ttf", LocalPath: local}})
	res, err := r.Resolve(context.Background(), zhSingle)
	require.NoError(t, err)
	assert.Equal(t, domain.FontSourceLocal, res.Source)
	assert.Equal(t, local, res.Path)
	assert.Equal(t, int32(0), srv.hits.Load())

	broken := filepath.Join(t.TempDir(), "broken.ttf")
	require.NoError(t, os.WriteFile(broken, nil, 0o644))
	r = newTestResolver(t, dir, map[domain.FontRole]Source{zhSingle: {URL: srv.URL + "/zh.ttf", LocalPath: broken}})
	res, err = r.Resolve(context.Background(), zhSingle)
	require.NoError(t, err)
	assert.Equal(t, domain.FontSourceDownload, res.Source)
	assert.Equal(t, int32(1), srv.hits.Load())
}

func TestResolveInvalidDownloadFallsBackToPreviousFile(t *testing.T) {
	srv := newFontServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>rate limited</html>"))
	})
	dir := t.TempDir()
	previous := filepath.Join(dir, "zh.ttf")
	require.NoError(t, os.WriteFile(previous, fakeTTF("previous"), 0o644))

	r := newTestResolver(t, dir, map[domain.FontRole]Source{zhSingle: {URL: srv.URL + "/new.ttf"}})
	res, err := r.Resolve(context.Background(), zhSingle)
	require.NoError(t, err)
	assert.Equal(t, domain.FontSourceStale, res.Source)
	assert.Equal(t, previous, res.Path)
	assert.Equal(t, int32(3), srv.hits.Load(), "direct strategy uses its whole retry budget")

	data, err := os.ReadFile(previous)
	require.NoError(t, err)
	assert.Equal(t, fakeTTF("previous"), data)

	leftovers, _ := filepath.Glob(filepath.Join(dir, "*.temp"))
	assert.Empty(t, leftovers)
	_, err = os.Stat(filepath.Join(dir, "zh_url.hash"))
	assert.True(t, os.IsNotExist(err), "hash is only written after a successful download")
}

func TestResolveFailsWithoutAnyValidFile(t *testing.T) {
	srv := newFontServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	})
	r := newTestResolver(t, t.TempDir(), map[domain.FontRole]Source{zhSingle: {URL: srv.URL + "/zh.ttf"}})

	_, err := r.Resolve(context.Background(), zhSingle)
	require.ErrorIs(t, err, domain.ErrResourceUnavailable)
	assert.ErrorIs(t, err, domain.ErrTransient)
}

func TestResolveTriesMirrorFirst(t *testing.T) {
	mirror := newFontServer(t, serveFont)
	r, err := NewResolver(Config{
		Dir:         t.TempDir(),
		Sources:     map[domain.FontRole]Source{zhMulti: {URL: "https://fonts.example.com/a/multi.otf"}},
		MirrorBase:  mirror.URL + "/",
		MirrorHosts: []string{"fonts.example.com"},
		Policy:      retry.Fixed(1, 0),
	}, nil)
	require.NoError(t, err)

	res, err := r.Resolve(context.Background(), zhMulti)
	require.NoError(t, err)
	assert.Equal(t, domain.FontSourceDownload, res.Source)
	assert.Equal(t, "zh_multi_1.otf", filepath.Base(res.Path))
	assert.Equal(t, "/https://fonts.example.com/a/multi.otf", <-mirror.paths)
	_, err = os.Stat(filepath.Join(filepath.Dir(res.Path), "zh_url_multi_1.hash"))
	assert.NoError(t, err)
}

func TestResolveSameRoleConcurrentlyDownloadsOnce(t *testing.T) {
	srv := newFontServer(t, func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(50 * time.Millisecond)
		serveFont(w, r)
	})
	r := newTestResolver(t, t.TempDir(), map[domain.FontRole]Source{zhSingle: {URL: srv.URL + "/zh.ttf"}})

	const callers = 8
	results := make([]domain.FontResource, callers)
	errs := make([]error, callers)
	var wg sync.WaitGroup
	for i := range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i], errs[i] = r.Resolve(context.Background(), zhSingle)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), srv.hits.Load())
	downloads := 0
	for i := range callers {
		require.NoError(t, errs[i])
		assert.Equal(t, results[0].Path, results[i].Path)
		if results[i].Source == domain.FontSourceDownload {
			downloads++
		} else {
			assert.Equal(t, domain.FontSourceCache, results[i].Source)
		}
	}
	assert.Equal(t, 1, downloads)
}

func TestResolveThroughProxy(t *testing.T) {
	var hosts []string
	var mu sync.Mutex
	proxy := newFontServer(t, func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		hosts = append(hosts, r.Host)
		mu.Unlock()
		serveFont(w, r)
	})

	r, err := NewResolver(Config{
		Dir:     t.TempDir(),
		Sources: map[domain.FontRole]Source{enSingle: {URL: "http://fonts.example.test/en.ttf"}},
		Proxy:   proxy.URL,
		Policy:  retry.Fixed(1, 0),
		Timeout: 5 * time.Second,
	}, nil)
	require.NoError(t, err)

	res, err := r.Resolve(context.Background(), enSingle)
	require.NoError(t, err)
	assert.Equal(t, domain.FontSourceDownload, res.Source)
	assert.Equal(t, int32(1), proxy.hits.Load())
	assert.Equal(t, []string{"fonts.example.test"}, hosts)

	data, err := os.ReadFile(res.Path)
	require.NoError(t, err)
	assert.Equal(t, fakeTTF("/en.ttf"), data)
}

func TestResolveFailingMirrorFallsThroughToDirect(t *testing.T) {
	mirror := newFontServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "mirror down", http.StatusInternalServerError)
	})
	origin := newFontServer(t, serveFont)
	originURL, err := url.Parse(origin.URL)
	require.NoError(t, err)

	r, err := NewResolver(Config{
		Dir:         t.TempDir(),
		Sources:     map[domain.FontRole]Source{zhSingle: {URL: origin.URL + "/zh.ttf"}},
		MirrorBase:  mirror.URL,
		MirrorHosts: []string{originURL.Hostname()},
		Policy:      retry.Fixed(2, time.Millisecond),
		Timeout:     5 * time.Second,
	}, nil)
	require.NoError(t, err)

	res, err := r.Resolve(context.Background(), zhSingle)
	require.NoError(t, err)
	assert.Equal(t, domain.FontSourceDownload, res.Source)
	assert.Equal(t, int32(2), mirror.hits.Load(), "mirror uses its retry budget")
	assert.Equal(t, int32(1), origin.hits.Load())
	assert.Equal(t, "/zh.ttf", <-origin.paths)
}

func TestResolveRejectsWOFFDownload(t *testing.T) {
	srv := newFontServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("wOF2 compressed font"))
	})
	r := newTestResolver(t, t.TempDir(), map[domain.FontRole]Source{enSingle: {URL: srv.URL + "/en.woff2"}})

	_, err := r.Resolve(context.Background(), enSingle)
	assert.ErrorIs(t, err, domain.ErrResourceUnavailable)
}

func TestReadFontRefusesUnresolvedResource(t *testing.T) {
	p := filepath.Join(t.TempDir(), "zh.ttf")
	require.NoError(t, os.WriteFile(p, fakeTTF("x"), 0o644))

	_, err := ReadFont(domain.FontResource{Role: zhSingle, Path: p})
	assert.ErrorIs(t, err, domain.ErrResourceUnavailable)

	data, err := ReadFont(domain.FontResource{Role: zhSingle, Path: p, Valid: true})
	require.NoError(t, err)
	assert.Equal(t, fakeTTF("x"), data)
}

func TestStrategiesOrder(t *testing.T) {
	r, err := NewResolver(Config{
		Dir:        t.TempDir(),
		MirrorBase: "https://mirror.example",
		Proxy:      "http://127.0.0.1:7890",
	}, nil)
	require.NoError(t, err)

	names := func(rawURL string) []string {
		var out []string
		for _, s := range r.strategies(rawURL) {
			out = append(out, s.name)
		}
		return out
	}
	assert.Equal(t, []string{"mirror", "proxy", "direct"}, names("https://raw.githubusercontent.com/a/b/zh.ttf"))
	assert.Equal(t, []string{"proxy", "direct"}, names("https://cdn.example.com/zh.ttf"))
	assert.Equal(t, "https://mirror.example/https://github.com/x.ttf", MirrorURL("https://mirror.example/", "https://github.com/x.ttf"))
}

func TestResolveAll(t *testing.T) {
	srv := newFontServer(t, serveFont)
	r := newTestResolver(t, t.TempDir(), map[domain.FontRole]Source{
		zhSingle: {URL: srv.URL + "/zh.ttf"},
		enSingle: {URL: srv.URL + "/en"},
	})

	pair, err := r.ResolveAll(context.Background(), domain.FamilySingle)
	require.NoError(t, err)
	assert.Equal(t, "zh.ttf", filepath.Base(pair.Zh.Path))
	assert.Equal(t, "en.ttf", filepath.Base(pair.En.Path), "extension falls back to .ttf")

	data, err := ReadFont(pair.En)
	require.NoError(t, err)
	assert.Equal(t, fakeTTF("/en"), data)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content []byte
		valid   bool
	}{
		{"truetype", "a.ttf", fakeTTF(""), true},
		{"opentype", "a.otf", []byte("OTTO...."), true},
		{"woff", "a.woff", []byte("wOFF...."), false},
		{"woff2", "a.woff2", []byte("wOF2...."), false},
		{"collection", "a.ttc", []byte("ttcf...."), true},
		{"svg", "a.svg", []byte("\n<svg xmlns=\"\">"), true},
		{"svg xml", "a.svg", []byte("<?xml version=\"1.0\"?>"), true},
		{"bdf", "a.bdf", []byte("STARTFONT 2.1"), true},
		{"bdf wrong header", "a.bdf", []byte("FONT"), false},
		{"html", "a.ttf", []byte("<!DOCTYPE html>"), false},
		{"empty", "a.ttf", nil, false},
	}
	dir := t.TempDir()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := filepath.Join(dir, strings.ReplaceAll(tt.name, " ", "_")+"-"+tt.file)
			require.NoError(t, os.WriteFile(p, tt.content, 0o644))
			err := Validate(p)
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, domain.ErrResourceInvalid)
			}
		})
	}

	assert.ErrorIs(t, Validate(filepath.Join(dir, "missing.ttf")), domain.ErrResourceInvalid)
}

func TestExtFromURL(t *testing.T) {
	assert.Equal(t, ".otf", extFromURL("https://x/fonts/multi_1_en.otf"))
	assert.Equal(t, ".ttf", extFromURL("https://x/fonts/wendao.TTF?raw=true"))
	assert.Equal(t, ".ttf", extFromURL("https://x/download"))
	assert.Equal(t, ".woff2", extFromURL("https://x/EmblemaOne.woff2"))
}
