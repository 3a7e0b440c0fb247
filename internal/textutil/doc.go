// Package textutil provides fuzzy title matching for deduplication, clustering,
// and tier-1 cross-checks.
//
// TokenSetRatio compares two strings as sets of normalized tokens, so reordered
// words and a title that is a subset of another still score 100. Scores are
// integers in [0, 100].
package textutil
