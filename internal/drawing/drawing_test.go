package drawing

import (
	"image"
	"reflect"
	"slices"
	"testing"

	"sheetdiff/internal/raster"
)

func pages(t *testing.T, origin raster.Origin, ids ...string) []*raster.Page {
	t.Helper()
	out := make([]*raster.Page, len(ids))
	for i, id := range ids {
		p, err := raster.NewPage(image.NewRGBA(image.Rect(0, 0, 4, 4)), id, origin, i)
		if err != nil {
			t.Fatalf("NewPage failed: %v", err)
		}
		out[i] = p
	}
	return out
}

func pairKeys(b Batch) []string {
	keys := make([]string, len(b.Pairs))
	for i, p := range b.Pairs {
		keys[i] = p.Key
	}
	return keys
}

func TestMatch_UnmatchedBothSides(t *testing.T) {
	oldPages := pages(t, raster.OriginOld, "A-101", "A-102", "A-103", "A-104", "A-105")
	newPages := pages(t, raster.OriginNew, "A-101", "A-102", "A-103", "A-106", "A-107")

	b := Match(oldPages, newPages)

	if got := pairKeys(b); !reflect.DeepEqual(got, []string{"a-101", "a-102", "a-103"}) {
		t.Errorf("pairs: got %v", got)
	}
	if !reflect.DeepEqual(b.UnmatchedOld, []string{"A-104", "A-105"}) {
		t.Errorf("unmatched old: got %v", b.UnmatchedOld)
	}
	if !reflect.DeepEqual(b.UnmatchedNew, []string{"A-106", "A-107"}) {
		t.Errorf("unmatched new: got %v", b.UnmatchedNew)
	}
	for _, p := range b.Pairs {
		if p.Old.Origin() != raster.OriginOld || p.New.Origin() != raster.OriginNew {
			t.Errorf("pair %s has swapped pages", p.Key)
		}
		if p.Old.Identifier() != p.New.Identifier() {
			t.Errorf("pair %s joins %q and %q", p.Key, p.Old.Identifier(), p.New.Identifier())
		}
	}
	if !b.Unmatched() {
		t.Error("Unmatched() should be true")
	}
}

func TestNormalizeIdentifier(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"A-101", "a-101"},
		{"  a-101\t", "a-101"},
		{"Ａ－１０１", "a-101"}, // full-width forms
		{"M-2.1", "m-2.1"},
		{"STRASSE", "strasse"},
		{"", ""},
		{" \n ", ""},
	}
	for _, tt := range tests {
		if got := NormalizeIdentifier(tt.in); got != tt.want {
			t.Errorf("NormalizeIdentifier(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestMatch_NormalizedEquality(t *testing.T) {
	b := Match(
		pages(t, raster.OriginOld, "a-101 ", "S-2"),
		pages(t, raster.OriginNew, " A-101", "s-2"),
	)
	if len(b.Pairs) != 2 || b.Unmatched() {
		t.Fatalf("got %d pairs, batch %+v", len(b.Pairs), b)
	}
	if b.Pairs[0].Identifier != " A-101" {
		t.Errorf("identifier should come from the new page, got %q", b.Pairs[0].Identifier)
	}
}

func TestMatch_OrderIndependent(t *testing.T) {
	ids := []string{"A-1", "A-2", "B-7", "C-3", "D-9"}
	newIDs := []string{"C-3", "A-1", "E-5", "B-7"}

	reference := Match(pages(t, raster.OriginOld, ids...), pages(t, raster.OriginNew, newIDs...))
	want := pairKeys(reference)
	slices.Sort(want)

	permuted := []string{"D-9", "C-3", "B-7", "A-2", "A-1"}
	permutedNew := []string{"B-7", "E-5", "A-1", "C-3"}
	got := pairKeys(Match(pages(t, raster.OriginOld, permuted...), pages(t, raster.OriginNew, permutedNew...)))
	slices.Sort(got)

	if !reflect.DeepEqual(got, want) {
		t.Errorf("match set changed with order: got %v, want %v", got, want)
	}
	if !reflect.DeepEqual(want, []string{"a-1", "b-7", "c-3"}) {
		t.Errorf("unexpected match set %v", want)
	}
}

func TestMatch_Unidentified(t *testing.T) {
	b := Match(
		pages(t, raster.OriginOld, "A-1", "", "  "),
		pages(t, raster.OriginNew, "", "A-1"),
	)
	if len(b.Pairs) != 1 {
		t.Fatalf("pairs: got %d, want 1", len(b.Pairs))
	}
	if !reflect.DeepEqual(b.UnidentifiedOld, []int{1, 2}) {
		t.Errorf("unidentified old: got %v", b.UnidentifiedOld)
	}
	if !reflect.DeepEqual(b.UnidentifiedNew, []int{0}) {
		t.Errorf("unidentified new: got %v", b.UnidentifiedNew)
	}
	if len(b.UnmatchedOld) != 0 || len(b.UnmatchedNew) != 0 {
		t.Errorf("empty identifiers leaked into unmatched lists: %v %v", b.UnmatchedOld, b.UnmatchedNew)
	}
}

func TestMatch_Duplicates(t *testing.T) {
	oldPages := pages(t, raster.OriginOld, "A-1", "a-1", "A-2")
	newPages := pages(t, raster.OriginNew, "A-1", "A-2", "A-2 ")

	b := Match(oldPages, newPages)

	if len(b.Pairs) != 2 {
		t.Fatalf("pairs: got %d, want 2", len(b.Pairs))
	}
	if b.Pairs[0].Old != oldPages[0] {
		t.Error("first occurrence should win on the old side")
	}
	if b.Pairs[1].New != newPages[1] {
		t.Error("first occurrence should win on the new side")
	}
	if !reflect.DeepEqual(b.DuplicateOld, []string{"a-1"}) {
		t.Errorf("duplicate old: got %v", b.DuplicateOld)
	}
	if !reflect.DeepEqual(b.DuplicateNew, []string{"A-2 "}) {
		t.Errorf("duplicate new: got %v", b.DuplicateNew)
	}

	// No page may appear in more than one pair.
	seen := map[*raster.Page]bool{}
	for _, p := range b.Pairs {
		if seen[p.Old] || seen[p.New] {
			t.Fatalf("page reused in pair %s", p.Key)
		}
		seen[p.Old], seen[p.New] = true, true
	}
}

func TestMatch_Empty(t *testing.T) {
	b := Match(nil, nil)
	if len(b.Pairs) != 0 || b.Unmatched() {
		t.Errorf("got %+v", b)
	}
}
