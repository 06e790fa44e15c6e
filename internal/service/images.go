package service

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/mmcdole/covergen/internal/domain"
	"github.com/mmcdole/covergen/internal/retry"
)

// customExtensions are the image files picked up from a custom image directory
var customExtensions = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".bmp": true, ".gif": true, ".webp": true,
}

// imageLimit is how many source images one style family renders
func imageLimit(family domain.StyleFamily) int {
	if family == domain.FamilyMulti {
		return domain.MaxGridImages
	}
	return 1
}

// safeName turns a collection name into a single path element
func safeName(name string) string {
	r := strings.NewReplacer("/", "_", "\\", "_", "\x00", "")
	name = strings.TrimSpace(r.Replace(name))
	if name == "" || name == "." || name == ".." {
		return "_"
	}
	return name
}

// customImages reads <root>/<collection name>/ in file name order. A missing
// directory is not an error.
func customImages(root, name string, family domain.StyleFamily) ([][]byte, error) {
	if root == "" {
		return nil, nil
	}
	dir := filepath.Join(root, safeName(name))
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if customExtensions[strings.ToLower(filepath.Ext(e.Name()))] {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)

	limit := imageLimit(family)
	var images [][]byte
	for _, f := range files {
		if len(images) >= limit {
			break
		}
		data, err := os.ReadFile(filepath.Join(dir, f))
		if err != nil {
			return images, fmt.Errorf("read custom image: %w", err)
		}
		images = append(images, data)
	}
	return images, nil
}

// fetchImages downloads selections in order until the style has enough images.
// Selections whose download fails are skipped; the returned selections are
// the ones that produced an image.
func (s *CoverService) fetchImages(ctx context.Context, srv domain.MediaCatalog, selections []domain.Selection, opts Options, logger *slog.Logger) ([][]byte, []domain.Selection) {
	limit := imageLimit(opts.Style.Family())
	var (
		images [][]byte
		used   []domain.Selection
	)
	for _, sel := range selections {
		if len(images) >= limit {
			break
		}
		var data []byte
		err := retry.Do(ctx, opts.ImagePolicy, func(attempt int) error {
			var err error
			data, err = srv.FetchImage(ctx, sel.Locator)
			if err != nil {
				logger.Debug("image download failed", "image", sel.Locator.String(), "attempt", attempt, "error", err)
			}
			if errors.Is(err, domain.ErrAuthFailed) {
				return retry.Permanent(err)
			}
			return err
		})
		if err != nil {
			logger.Warn("giving up on image", "image", sel.Locator.String(), "error", err)
			continue
		}
		images = append(images, data)
		used = append(used, sel)
	}
	return images, used
}

// saveOutput writes a copy of the artifact as <dir>/<collection name><ext>
func saveOutput(dir, name string, art domain.CoverArtifact) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}
	path := filepath.Join(dir, safeName(name)+art.Format.Extension())
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, art.Data, 0644); err != nil {
		return "", err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return "", err
	}
	return path, nil
}
