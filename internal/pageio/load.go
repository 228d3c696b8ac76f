// Package pageio loads drawing sets from disk and writes comparison
// artifacts back out.
package pageio

import (
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"sheetdiff/internal/ocr"
	"sheetdiff/internal/raster"
	"sheetdiff/internal/sheetid"
	apperrors "sheetdiff/pkg/errors"

	_ "golang.org/x/image/tiff"
)

// SupportedFormats lists the page file extensions that can be loaded.
var SupportedFormats = []string{".tiff", ".tif", ".png", ".jpg", ".jpeg"}

// IsSupportedFormat checks if the file extension is a supported page format.
func IsSupportedFormat(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, f := range SupportedFormats {
		if ext == f {
			return true
		}
	}
	return false
}

// Load decodes a single page image.
func Load(path string) (image.Image, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	defer file.Close()

	img, _, err := image.Decode(file)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrCodeInvalidInput, err, "failed to decode %s", filepath.Base(path))
	}
	return img, nil
}

// IdentifyFunc returns the sheet identifier of a loaded page, or "" when it
// has none.
type IdentifyFunc func(ctx context.Context, path string, img image.Image) (string, error)

// ByFilename reads the identifier from the page's file name.
func ByFilename(_ context.Context, path string, _ image.Image) (string, error) {
	return sheetid.FromFilename(path), nil
}

// ByTitleBlock reads the identifier from the title block with id, falling
// back to the file name when recognition finds nothing.
func ByTitleBlock(id *ocr.Identifier) IdentifyFunc {
	return func(ctx context.Context, path string, img image.Image) (string, error) {
		got, err := id.Identify(ctx, img)
		if err != nil {
			return "", fmt.Errorf("%s: %w", filepath.Base(path), err)
		}
		if got == "" {
			return sheetid.FromFilename(path), nil
		}
		return got, nil
	}
}

// List returns the supported page files in dir in lexical order.
func List(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", dir, err)
	}
	var paths []string
	for _, e := range entries {
		if e.IsDir() || !IsSupportedFormat(e.Name()) {
			continue
		}
		paths = append(paths, filepath.Join(dir, e.Name()))
	}
	sort.Strings(paths)
	return paths, nil
}

// LoadDir loads every page in dir as one drawing set. Page indices follow
// the lexical file order. A nil identify uses ByFilename.
func LoadDir(ctx context.Context, dir string, origin raster.Origin, identify IdentifyFunc) ([]*raster.Page, error) {
	if identify == nil {
		identify = ByFilename
	}
	paths, err := List(dir)
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return nil, apperrors.New(apperrors.ErrCodeInvalidInput, "no %s pages found in %s", origin, dir)
	}

	pages := make([]*raster.Page, 0, len(paths))
	for i, path := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		img, err := Load(path)
		if err != nil {
			return nil, err
		}
		id, err := identify(ctx, path, img)
		if err != nil {
			return nil, err
		}
		page, err := raster.NewPage(img, id, origin, i)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
		}
		pages = append(pages, page)
	}
	return pages, nil
}
