package store

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// NormalizeArtistName derives the dedup key for an artist display name:
// NFKC-normalized, lowercased, with runs of whitespace collapsed to single
// spaces. Spelling variants that normalize identically must map to the same
// artist row.
func NormalizeArtistName(name string) string {
	lowered := strings.ToLower(strings.TrimSpace(name))
	normalized := norm.NFKC.String(lowered)
	return strings.Join(strings.Fields(normalized), " ")
}
