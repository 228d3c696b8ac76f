// Package drawing pairs the pages of an old and a new drawing set by their
// sheet identifier.
package drawing

import (
	"strings"

	"sheetdiff/internal/raster"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// Pair is one old page and one new page sharing a normalized identifier.
type Pair struct {
	Old        *raster.Page
	New        *raster.Page
	Identifier string // As written on the new page
	Key        string // Normalized identifier
}

// Batch is the pairing of two page collections.
type Batch struct {
	Pairs []Pair

	// Identifiers present on one side only, in input order.
	UnmatchedOld []string
	UnmatchedNew []string

	// Page indices whose identifier is empty after normalization.
	UnidentifiedOld []int
	UnidentifiedNew []int

	// Repeated identifiers within one side. Only the first page carrying an
	// identifier takes part in matching.
	DuplicateOld []string
	DuplicateNew []string
}

// Unmatched reports whether any page was left out of the pairs.
func (b *Batch) Unmatched() bool {
	return len(b.UnmatchedOld)+len(b.UnmatchedNew)+
		len(b.UnidentifiedOld)+len(b.UnidentifiedNew)+
		len(b.DuplicateOld)+len(b.DuplicateNew) > 0
}

// NormalizeIdentifier returns the matching key of an identifier: Unicode
// NFKC, surrounding whitespace trimmed, case folded.
func NormalizeIdentifier(id string) string {
	s := strings.TrimSpace(norm.NFKC.String(id))
	if s == "" {
		return ""
	}
	return cases.Fold().String(s)
}

// Match pairs old and new pages by normalized identifier in O(n+m).
// Pairs and unmatched-old identifiers follow old input order; unmatched-new
// identifiers follow new input order. Nil pages are ignored.
func Match(oldPages, newPages []*raster.Page) Batch {
	var b Batch

	newIndex, newOrder := index(newPages, &b.UnidentifiedNew, &b.DuplicateNew)
	oldIndex, oldOrder := index(oldPages, &b.UnidentifiedOld, &b.DuplicateOld)

	for _, key := range oldOrder {
		oldPage := oldIndex[key]
		newPage, ok := newIndex[key]
		if !ok {
			b.UnmatchedOld = append(b.UnmatchedOld, oldPage.Identifier())
			continue
		}
		b.Pairs = append(b.Pairs, Pair{
			Old:        oldPage,
			New:        newPage,
			Identifier: newPage.Identifier(),
			Key:        key,
		})
	}

	for _, key := range newOrder {
		if _, ok := oldIndex[key]; !ok {
			b.UnmatchedNew = append(b.UnmatchedNew, newIndex[key].Identifier())
		}
	}
	return b
}

// index builds the key -> first page map and the keys in first-seen order.
func index(pages []*raster.Page, unidentified *[]int, duplicates *[]string) (map[string]*raster.Page, []string) {
	idx := make(map[string]*raster.Page, len(pages))
	order := make([]string, 0, len(pages))
	for i, p := range pages {
		if p == nil {
			continue
		}
		key := NormalizeIdentifier(p.Identifier())
		if key == "" {
			*unidentified = append(*unidentified, pageIndex(p, i))
			continue
		}
		if _, dup := idx[key]; dup {
			*duplicates = append(*duplicates, p.Identifier())
			continue
		}
		idx[key] = p
		order = append(order, key)
	}
	return idx, order
}

// pageIndex prefers the page's own index and falls back to its slice position.
func pageIndex(p *raster.Page, pos int) int {
	if p.Index() >= 0 {
		return p.Index()
	}
	return pos
}
