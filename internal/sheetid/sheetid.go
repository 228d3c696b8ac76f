// Package sheetid recognizes drawing sheet identifiers such as "A-101",
// "S2.01" or "M_3" in file names and title-block text.
package sheetid

import (
	"path/filepath"
	"regexp"
	"strings"
	"unicode"
)

// candidate is a discipline prefix of one to three letters, an optional
// separator and a sheet number with an optional decimal part.
var candidate = regexp.MustCompile(`(?i)([A-Z]{1,3})[-_. ]?(\d{1,4}(?:\.\d{1,3})?)`)

// Prefixes that number revisions or versions rather than sheets.
var ignoredPrefixes = map[string]bool{
	"REV": true,
	"VER": true,
	"V":   true,
}

// keywords that introduce the sheet number in a title block.
var keywords = []string{"SHEET", "DWG", "DRAWING"}

// keywordWindow is how far before a candidate a keyword may appear.
const keywordWindow = 24

type match struct {
	id    string
	start int
}

// Parse returns the canonical form of the first identifier in s
// ("PREFIX-NUMBER", prefix upper-cased) and whether one was found.
func Parse(s string) (string, bool) {
	ms := find(s)
	if len(ms) == 0 {
		return "", false
	}
	return ms[0].id, true
}

// FromFilename extracts the identifier from a file name, ignoring the
// directory and extension. It returns "" when none is found.
func FromFilename(path string) string {
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	id, _ := Parse(base)
	return id
}

// FromText picks the sheet identifier out of recognized title-block text.
// A candidate shortly after a keyword such as "SHEET" wins; otherwise the
// last candidate is used, since the sheet number usually closes the block.
func FromText(text string) string {
	ms := find(text)
	if len(ms) == 0 {
		return ""
	}
	upper := strings.ToUpper(text)
	for _, m := range ms {
		from := max(0, m.start-keywordWindow)
		window := upper[from:m.start]
		for _, kw := range keywords {
			if strings.Contains(window, kw) {
				return m.id
			}
		}
	}
	return ms[len(ms)-1].id
}

func find(s string) []match {
	var out []match
	for _, loc := range candidate.FindAllStringSubmatchIndex(s, -1) {
		start, end := loc[0], loc[1]
		if start > 0 && isAlnum(s[start-1]) {
			continue
		}
		if end < len(s) && isAlnum(s[end]) {
			continue
		}
		prefix := strings.ToUpper(s[loc[2]:loc[3]])
		if ignoredPrefixes[prefix] {
			continue
		}
		out = append(out, match{id: prefix + "-" + s[loc[4]:loc[5]], start: start})
	}
	return out
}

func isAlnum(b byte) bool {
	r := rune(b)
	return r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r))
}
