// Package service runs the cover pipeline: select source items, fetch their
// images, resolve fonts, compose the artifact and deliver it.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/mmcdole/covergen/internal/compose"
	"github.com/mmcdole/covergen/internal/domain"
)

// Server is a media server the pipeline reads from and delivers to
type Server interface {
	domain.MediaCatalog
	domain.ArtifactSink
}

// FontResolver resolves the typefaces of one style family
type FontResolver interface {
	ResolveAll(ctx context.Context, family domain.StyleFamily) (domain.FontPair, error)
}

// HistoryCache decides whether a resynthesis is redundant and records what was used
type HistoryCache interface {
	ShouldSkip(server, collectionID, candidateItemID string) (bool, error)
	Record(server, collectionID, itemID string) ([]domain.HistoryEntry, error)
}

// Compositor renders a cover artifact
type Compositor interface {
	Compose(req compose.Request) (domain.CoverArtifact, error)
}

// TitleSource maps a collection name to the titles drawn on its cover
type TitleSource interface {
	Title(name string) domain.Title
}

// CoverService orchestrates cover synthesis across servers and collections
type CoverService struct {
	fonts   FontResolver
	history HistoryCache
	engine  Compositor
	titles  TitleSource
	logger  *slog.Logger
}

// NewCoverService creates a new cover service
func NewCoverService(fonts FontResolver, history HistoryCache, engine Compositor, titles TitleSource, logger *slog.Logger) *CoverService {
	if logger == nil {
		logger = slog.Default()
	}
	return &CoverService{
		fonts:   fonts,
		history: history,
		engine:  engine,
		titles:  titles,
		logger:  logger,
	}
}

// Run updates every collection of every server. The stop signal is observed
// only between collections; a collection in flight always completes.
func (s *CoverService) Run(ctx context.Context, servers []Server, opts Options) (Result, error) {
	opts = opts.normalized()
	start := time.Now()
	var res Result

	s.logger.Info("starting cover run", "style", opts.Style.Label(), "servers", len(servers))

	for _, srv := range servers {
		cols, err := srv.ListCollections(ctx)
		if err != nil {
			s.logger.Warn("failed to list collections", "server", srv.Name(), "error", err)
			res.Outcomes = append(res.Outcomes, Outcome{
				Server: srv.Name(),
				Status: StatusFailed,
				Err:    err,
			})
			continue
		}
		for _, col := range cols {
			res.Catalog = append(res.Catalog, col.Name)
		}
		cols = MatchCollections(cols, opts.Libraries)

		for _, col := range cols {
			select {
			case <-ctx.Done():
				s.logger.Info("cover run stopped", "server", srv.Name())
				res.Duration = time.Since(start)
				return res, ctx.Err()
			default:
			}
			// A started collection runs to completion even if the run is stopped
			res.Outcomes = append(res.Outcomes, s.Update(context.WithoutCancel(ctx), srv, col, opts))
		}
	}

	res.Duration = time.Since(start)
	s.logger.Info("cover run complete",
		"updated", res.Count(StatusUpdated),
		"skipped", res.Count(StatusSkipped),
		"failed", res.Count(StatusFailed),
		"duration", res.Duration)
	return res, nil
}

// Update runs the pipeline for one collection
func (s *CoverService) Update(ctx context.Context, srv Server, col domain.Collection, opts Options) Outcome {
	opts = opts.normalized()
	start := time.Now()
	out := Outcome{Server: srv.Name(), Collection: col}
	logger := s.logger.With("server", srv.Name(), "library", col.Name)

	if opts.excluded(srv.Name(), col) {
		logger.Info("library excluded")
		out.Status = StatusExcluded
		return out
	}

	err := s.update(ctx, srv, col, opts, &out, logger)
	out.Duration = time.Since(start)
	out.Err = err
	switch {
	case err == nil:
		out.Status = StatusUpdated
		logger.Info("cover updated", "images", out.Images, "duration", out.Duration)
	case errors.Is(err, domain.ErrUpToDate):
		out.Status = StatusSkipped
		logger.Info("cover is up to date")
	case errors.Is(err, domain.ErrNoUsableItems), errors.Is(err, domain.ErrNoImages):
		out.Status = StatusEmpty
		logger.Warn("no usable images", "error", err)
	default:
		out.Status = StatusFailed
		logger.Error("cover update failed", "error", err)
	}
	return out
}

func (s *CoverService) update(ctx context.Context, srv Server, col domain.Collection, opts Options, out *Outcome, logger *slog.Logger) error {
	title := s.titles.Title(col.Name)

	images, err := customImages(opts.CoversInput, col.Name, opts.Style.Family())
	if err != nil {
		logger.Warn("failed to read custom images", "error", err)
	}

	var used []domain.Selection
	if len(images) > 0 {
		logger.Info("using custom images", "count", len(images))
		out.Custom = true
	} else {
		selections, err := s.collect(ctx, srv, col, opts)
		if err != nil {
			return err
		}

		if !opts.Force {
			skip, err := s.history.ShouldSkip(srv.Name(), col.ID, selections[0].SourceItemID)
			if err != nil {
				logger.Warn("failed to read cover history", "error", err)
			} else if skip {
				return domain.ErrUpToDate
			}
		}

		images, used = s.fetchImages(ctx, srv, selections, opts, logger)
		if len(images) == 0 {
			return fmt.Errorf("%w: every image download failed", domain.ErrNoImages)
		}
	}
	out.Images = len(images)

	fonts, err := s.fonts.ResolveAll(ctx, opts.fontFamily())
	if err != nil {
		return fmt.Errorf("resolve fonts: %w", err)
	}

	art, err := s.engine.Compose(compose.Request{
		Images: images,
		Title:  title,
		Fonts:  fonts,
		Style:  opts.Style,
		Params: opts.Params,
	})
	if err != nil {
		return fmt.Errorf("compose: %w", err)
	}

	if opts.CoversOutput != "" {
		path, err := saveOutput(opts.CoversOutput, col.Name, art)
		if err != nil {
			logger.Error("failed to save cover copy", "error", err)
		} else {
			out.OutputPath = path
		}
	}

	if err := srv.SetCollectionImage(ctx, col.ID, art); err != nil {
		return fmt.Errorf("upload cover: %w", err)
	}

	s.recordHistory(srv.Name(), col.ID, used, logger)
	return nil
}

// recordHistory stores the used items oldest first so the first selection
// becomes the newest entry. It stops at the first persist failure.
func (s *CoverService) recordHistory(server, collectionID string, used []domain.Selection, logger *slog.Logger) {
	for i := len(used) - 1; i >= 0; i-- {
		if _, err := s.history.Record(server, collectionID, used[i].SourceItemID); err != nil {
			logger.Warn("failed to record cover history", "item", used[i].SourceItemID, "error", err)
			if errors.Is(err, domain.ErrPersist) {
				return
			}
		}
	}
}
