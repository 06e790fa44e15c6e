package service

import (
	"sort"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"

	"github.com/mmcdole/covergen/internal/domain"
)

// maxFilterDistance bounds the typo tolerance of a collection filter
const maxFilterDistance = 2

// MatchCollections returns the collections selected by any of the queries, in
// catalog order. A query matches a collection id exactly, or its name by
// exact, prefix, substring, subsequence or near-miss comparison.
func MatchCollections(cols []domain.Collection, queries []string) []domain.Collection {
	if len(queries) == 0 {
		return cols
	}

	var out []domain.Collection
	for _, col := range cols {
		for _, q := range queries {
			if matchScore(col, q) >= 0 {
				out = append(out, col)
				break
			}
		}
	}
	return out
}

// RankCollections orders collections by how well their names match the query.
// Collections that do not match are dropped.
func RankCollections(cols []domain.Collection, query string) []domain.Collection {
	type rankedCollection struct {
		col   domain.Collection
		score int
	}

	ranked := make([]rankedCollection, 0, len(cols))
	for _, col := range cols {
		if score := matchScore(col, query); score >= 0 {
			ranked = append(ranked, rankedCollection{col: col, score: score})
		}
	}

	// Sort by score (lower is better)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].score < ranked[j].score
	})

	results := make([]domain.Collection, len(ranked))
	for i, r := range ranked {
		results[i] = r.col
	}
	return results
}

// matchScore calculates a match score for ranking.
// Lower score = better match; -1 = no match.
func matchScore(col domain.Collection, query string) int {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return -1
	}
	if strings.EqualFold(col.ID, query) {
		return 0
	}

	name := strings.ToLower(col.Name)

	// Exact match is best
	if name == query {
		return 0
	}

	// Prefix match is very good
	if strings.HasPrefix(name, query) {
		return 10
	}

	// Contains match is good
	if strings.Contains(name, query) {
		return 50
	}

	// Subsequence match, ranked by how many runes were skipped
	if fuzzy.MatchFold(query, name) {
		return 100 + fuzzy.RankMatchFold(query, name)
	}

	// Typo tolerance
	if d := fuzzy.LevenshteinDistance(query, name); d <= maxFilterDistance {
		return 200 + d
	}

	return -1
}
