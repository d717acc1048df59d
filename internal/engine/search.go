package engine

import (
	"context"
	"sort"
	"strings"
	"unicode"

	"github.com/lazypower/retain/internal/model"
)

// KeywordSearcher is the built-in Searcher: token overlap with a bigram
// tiebreaker over one owner's memories. Intentionally cheap — no embeddings
// needed for the default deployment; swap in a vector searcher via
// Engine.SetSearcher when one is available.
type KeywordSearcher struct {
	store Store
}

// NewKeywordSearcher returns the default store-backed searcher.
func NewKeywordSearcher(st Store) *KeywordSearcher {
	return &KeywordSearcher{store: st}
}

// minBigramOnlySimilarity gates candidates that share no whole token with
// the query.
const minBigramOnlySimilarity = 0.2

// Search ranks the owner's memories against the query. An empty query
// returns the owner's memories in store order (most important first).
func (s *KeywordSearcher) Search(ctx context.Context, owner, query string, limit int) ([]model.Memory, error) {
	memories, err := s.store.ListByOwner(ctx, owner)
	if err != nil {
		return nil, err
	}
	if query == "" {
		if limit > 0 && len(memories) > limit {
			memories = memories[:limit]
		}
		return memories, nil
	}

	type ranked struct {
		m     model.Memory
		score float64
	}
	queryTokens := queryTokenSet(query)
	queryBigrams := bigrams(strings.ToLower(query))

	var results []ranked
	for _, m := range memories {
		overlap := tokenOverlap(queryTokens, queryTokenSet(m.Content))
		sim := bigramSimilarity(queryBigrams, bigrams(strings.ToLower(m.Content)))
		// Without a shared token, demand a real bigram echo. Stray shared
		// character pairs show up between any two English sentences.
		if overlap == 0 && sim < minBigramOnlySimilarity {
			continue
		}
		results = append(results, ranked{m: m, score: overlap*0.7 + sim*0.3})
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].score != results[j].score {
			return results[i].score > results[j].score
		}
		return results[i].m.Importance > results[j].m.Importance
	})

	out := make([]model.Memory, 0, len(results))
	for _, r := range results {
		out = append(out, r.m)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

// BigramConsistency is the built-in ConsistencyChecker: a memory agrees
// with the owner's record in proportion to its best bigram similarity with
// any other memory. Result is in [0,2].
type BigramConsistency struct {
	store Store
}

// NewBigramConsistency returns the default store-backed checker.
func NewBigramConsistency(st Store) *BigramConsistency {
	return &BigramConsistency{store: st}
}

// Check returns 2 * the best similarity to another of the owner's memories.
// A lone memory has nothing to agree with and scores 0.
func (c *BigramConsistency) Check(ctx context.Context, m *model.Memory) (float64, error) {
	others, err := c.store.ListByOwner(ctx, m.Owner)
	if err != nil {
		return 0, err
	}

	own := bigrams(strings.ToLower(m.Content))
	var best float64
	for _, o := range others {
		if o.ID == m.ID {
			continue
		}
		if sim := bigramSimilarity(own, bigrams(strings.ToLower(o.Content))); sim > best {
			best = sim
		}
	}
	return best * 2.0, nil
}

func queryTokenSet(text string) map[string]bool {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	set := make(map[string]bool, len(fields))
	for _, f := range fields {
		set[f] = true
	}
	return set
}

// tokenOverlap is the fraction of query tokens present in the candidate.
func tokenOverlap(query, candidate map[string]bool) float64 {
	if len(query) == 0 {
		return 0
	}
	shared := 0
	for t := range query {
		if candidate[t] {
			shared++
		}
	}
	return float64(shared) / float64(len(query))
}

// bigramSimilarity is the Jaccard index of two bigram sets.
func bigramSimilarity(a, b map[string]bool) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	shared := 0
	for bg := range a {
		if b[bg] {
			shared++
		}
	}
	union := len(a) + len(b) - shared
	if union == 0 {
		return 1
	}
	return float64(shared) / float64(union)
}

func bigrams(s string) map[string]bool {
	if len(s) < 2 {
		return nil
	}
	m := make(map[string]bool, len(s)-1)
	for i := 0; i < len(s)-1; i++ {
		m[s[i:i+2]] = true
	}
	return m
}
