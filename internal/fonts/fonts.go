// Package fonts acquires the typefaces used for cover titles. Each role is
// resolved from a local override, a cached download keyed by the origin URL
// hash, or a fresh download through a mirror, proxy and direct chain.
package fonts

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/mmcdole/covergen/internal/domain"
	"github.com/mmcdole/covergen/internal/retry"
)

const (
	fallbackExt    = ".ttf"
	defaultTimeout = 60 * time.Second
)

// Source is where one role's typeface comes from
type Source struct {
	URL       string
	LocalPath string
}

// Config configures a Resolver
type Config struct {
	Dir         string                     // Cache directory
	Sources     map[domain.FontRole]Source // Per-role origin and override
	MirrorBase  string                     // Mirror prefix for eligible hosts
	MirrorHosts []string                   // Hosts routed through the mirror
	Proxy       string                     // HTTP proxy URL
	Policy      retry.Policy               // Per-strategy retry budget
	Timeout     time.Duration              // Per-request timeout
}

// DefaultMirrorHosts are the hosts that are slow to reach without a mirror
var DefaultMirrorHosts = []string{"github.com", "raw.githubusercontent.com"}

// DefaultPolicy is three attempts two seconds apart
func DefaultPolicy() retry.Policy {
	return retry.Fixed(3, 2*time.Second)
}

// Resolver is the ResourceCache for fonts
type Resolver struct {
	cfg     Config
	logger  *slog.Logger
	direct  Origin
	proxied Origin

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// Option configures a Resolver
type Option func(*Resolver)

// WithOrigin replaces the direct origin
func WithOrigin(o Origin) Option {
	return func(r *Resolver) { r.direct = o }
}

// NewResolver creates a Resolver. The cache directory is created on demand.
func NewResolver(cfg Config, logger *slog.Logger, opts ...Option) (*Resolver, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Dir == "" {
		return nil, errors.New("font cache directory is required")
	}
	if cfg.Policy.MaxAttempts == 0 {
		cfg.Policy = DefaultPolicy()
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.MirrorHosts == nil {
		cfg.MirrorHosts = DefaultMirrorHosts
	}

	r := &Resolver{
		cfg:    cfg,
		logger: logger,
		direct: NewHTTPOrigin(cfg.Timeout),
		locks:  make(map[string]*sync.Mutex),
	}
	if cfg.Proxy != "" {
		p, err := NewProxyOrigin(cfg.Proxy, cfg.Timeout)
		if err != nil {
			return nil, err
		}
		r.proxied = p
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// HashURL returns the cache key recorded for an origin URL
func HashURL(rawURL string) string {
	sum := md5.Sum([]byte(rawURL))
	return hex.EncodeToString(sum[:])
}

// ResolveAll resolves the Chinese and English roles of a family concurrently
func (r *Resolver) ResolveAll(ctx context.Context, family domain.StyleFamily) (domain.FontPair, error) {
	var pair domain.FontPair
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		res, err := r.Resolve(gctx, domain.FontRole{Lang: domain.LangZh, Family: family})
		pair.Zh = res
		return err
	})
	g.Go(func() error {
		res, err := r.Resolve(gctx, domain.FontRole{Lang: domain.LangEn, Family: family})
		pair.En = res
		return err
	})
	if err := g.Wait(); err != nil {
		return domain.FontPair{}, err
	}
	return pair, nil
}

// Resolve returns a usable font file for role. Concurrent calls for the same
// role are serialized, across processes as well via a lock file.
func (r *Resolver) Resolve(ctx context.Context, role domain.FontRole) (domain.FontResource, error) {
	src := r.cfg.Sources[role]
	res := domain.FontResource{Role: role, URL: src.URL, LocalPath: src.LocalPath}

	if src.LocalPath != "" {
		err := Validate(src.LocalPath)
		if err == nil {
			res.Path = src.LocalPath
			res.Valid = true
			res.Source = domain.FontSourceLocal
			return res, nil
		}
		r.logger.Warn("local font override rejected", "role", role.String(), "path", src.LocalPath, "error", err)
	}

	unlock, err := r.lock(ctx, role)
	if err != nil {
		return res, err
	}
	defer unlock()

	if src.URL == "" {
		if stale, ok := r.lastValid(role, ""); ok {
			return r.stale(res, stale), nil
		}
		return res, fmt.Errorf("%w: no url configured for %s", domain.ErrResourceUnavailable, role)
	}

	target := r.targetPath(role, src.URL)
	sidecar := r.hashPath(role)
	want := HashURL(src.URL)
	res.Path = target

	if stored, err := os.ReadFile(sidecar); err == nil && strings.TrimSpace(string(stored)) == want {
		if err := Validate(target); err == nil {
			res.Hash = want
			res.Valid = true
			res.Source = domain.FontSourceCache
			return res, nil
		}
		r.logger.Info("cached font failed validation, downloading again", "role", role.String(), "path", target)
	}

	if err := r.download(ctx, role, src.URL, target); err != nil {
		if stale, ok := r.lastValid(role, target); ok {
			r.logger.Warn("font download failed, using previous file", "role", role.String(), "path", stale, "error", err)
			return r.stale(res, stale), nil
		}
		return res, err
	}

	if err := os.WriteFile(sidecar, []byte(want), 0o644); err != nil {
		// The file is usable; only the next run's cache hit is lost
		r.logger.Error("failed to write font hash", "role", role.String(), "path", sidecar, "error", err)
	} else {
		res.Hash = want
	}
	res.Valid = true
	res.Source = domain.FontSourceDownload
	return res, nil
}

func (r *Resolver) stale(res domain.FontResource, p string) domain.FontResource {
	res.Path = p
	res.Valid = true
	res.Source = domain.FontSourceStale
	if stored, err := os.ReadFile(r.hashPath(res.Role)); err == nil {
		res.Hash = strings.TrimSpace(string(stored))
	}
	return res
}

// download walks the strategy chain until one strategy yields a valid file at target
func (r *Resolver) download(ctx context.Context, role domain.FontRole, rawURL, target string) error {
	if err := os.MkdirAll(r.cfg.Dir, 0o755); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrResourceUnavailable, err)
	}

	var errs []error
	for _, s := range r.strategies(rawURL) {
		err := retry.Do(ctx, r.cfg.Policy, func(attempt int) error {
			err := r.fetchOnce(ctx, s, target)
			if err != nil {
				r.logger.Debug("font download attempt failed",
					"role", role.String(), "strategy", s.name, "attempt", attempt, "error", err)
			}
			return err
		})
		if err == nil {
			r.logger.Info("font downloaded", "role", role.String(), "strategy", s.name, "path", target)
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		r.logger.Warn("font download strategy exhausted", "role", role.String(), "strategy", s.name, "error", err)
		errs = append(errs, fmt.Errorf("%s: %w", s.name, err))
	}
	return fmt.Errorf("%w: %s: %w", domain.ErrResourceUnavailable, rawURL, errors.Join(errs...))
}

// fetchOnce downloads into a temporary file beside target and renames it into
// place only after it validates
func (r *Resolver) fetchOnce(ctx context.Context, s strategy, target string) error {
	tmp := target + "." + uuid.NewString() + ".temp"
	f, err := os.Create(tmp)
	if err != nil {
		return retry.Permanent(err)
	}

	fetchErr := s.origin.Fetch(ctx, s.url, f)
	closeErr := f.Close()
	if fetchErr == nil {
		fetchErr = closeErr
	}
	if fetchErr == nil {
		fetchErr = validateAs(tmp, filepath.Ext(target))
	}
	if fetchErr != nil {
		os.Remove(tmp)
		return fetchErr
	}

	if err := os.Rename(tmp, target); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}

// lastValid finds a previously downloaded file for role that still validates,
// preferring preferred
func (r *Resolver) lastValid(role domain.FontRole, preferred string) (string, bool) {
	if preferred != "" && Validate(preferred) == nil {
		return preferred, true
	}
	matches, _ := filepath.Glob(filepath.Join(r.cfg.Dir, role.CacheName()+".*"))
	for _, m := range matches {
		switch filepath.Ext(m) {
		case ".temp", ".lock", ".hash":
			continue
		}
		if Validate(m) == nil {
			return m, true
		}
	}
	return "", false
}

func (r *Resolver) targetPath(role domain.FontRole, rawURL string) string {
	return filepath.Join(r.cfg.Dir, role.CacheName()+extFromURL(rawURL))
}

func (r *Resolver) hashPath(role domain.FontRole) string {
	name := string(role.Lang) + "_url"
	if role.Family == domain.FamilyMulti {
		name += "_multi_1"
	}
	return filepath.Join(r.cfg.Dir, name+".hash")
}

// lock serializes resolution of one role in-process and across processes
func (r *Resolver) lock(ctx context.Context, role domain.FontRole) (func(), error) {
	name := role.CacheName()

	r.mu.Lock()
	l, ok := r.locks[name]
	if !ok {
		l = &sync.Mutex{}
		r.locks[name] = l
	}
	r.mu.Unlock()
	l.Lock()

	if err := os.MkdirAll(r.cfg.Dir, 0o755); err != nil {
		l.Unlock()
		return nil, fmt.Errorf("%w: %v", domain.ErrResourceUnavailable, err)
	}
	fl := flock.New(filepath.Join(r.cfg.Dir, name+".lock"))
	locked, err := fl.TryLockContext(ctx, 100*time.Millisecond)
	if err != nil || !locked {
		l.Unlock()
		if err == nil {
			err = ctx.Err()
		}
		return nil, fmt.Errorf("lock font cache for %s: %w", name, err)
	}

	return func() {
		fl.Unlock()
		l.Unlock()
	}, nil
}

// extFromURL returns the lowercased extension of the URL path, or .ttf
func extFromURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fallbackExt
	}
	ext := strings.ToLower(path.Ext(u.Path))
	if ext == "" || len(ext) > 6 {
		return fallbackExt
	}
	return ext
}

// ReadFont returns the bytes of a resolved font. Resources that were not
// resolved to a valid file are refused.
func ReadFont(res domain.FontResource) ([]byte, error) {
	if !res.Valid || res.Path == "" {
		return nil, fmt.Errorf("%w: %s", domain.ErrResourceUnavailable, res.Role)
	}
	return os.ReadFile(res.Path)
}
