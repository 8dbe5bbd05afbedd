// Package tags turns the free text a user sends into tag labels.
package tags

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Separator splits a tag message into individual tags.
const Separator = ","

// Parse splits raw on commas, trims every piece and drops the empty ones.
// Duplicates are kept; the store collapses them on commit.
func Parse(raw string) []string {
	pieces := strings.Split(raw, Separator)
	out := make([]string, 0, len(pieces))
	for _, p := range pieces {
		if t := Normalize(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// Normalize trims whitespace and puts the text in Unicode NFC so that
// composed and decomposed spellings of a tag are the same row.
func Normalize(s string) string {
	return strings.TrimSpace(norm.NFC.String(s))
}

// Join renders tags back for display.
func Join(list []string) string {
	return strings.Join(list, Separator+" ")
}
