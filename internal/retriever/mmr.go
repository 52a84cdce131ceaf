package retriever

import (
	"sort"
	"strings"

	"docsense/internal/domain"
)

// SelectMMR picks a diverse top-k subset of candidates by greedy Maximal
// Marginal Relevance. Each step scores the remaining candidates as
//
//	lambda*similarity - (1-lambda)*maxOverlap(candidate, selected)
//
// where overlap is word-set overlap with the already-selected chunks. Pure
// top-k by similarity tends to return near-duplicates; trading a little
// relevance for diversity buys broader context for the same budget.
//
// The selection is deterministic: candidates are stably ordered by descending
// similarity and ties keep the earlier candidate.
func SelectMMR(candidates []domain.Candidate, k int, lambda float64) []domain.Candidate {
	if len(candidates) == 0 || k <= 0 {
		return nil
	}
	if lambda < 0 {
		lambda = 0
	}
	if lambda > 1 {
		lambda = 1
	}

	pool := make([]domain.Candidate, len(candidates))
	copy(pool, candidates)
	sort.SliceStable(pool, func(i, j int) bool {
		return pool[i].Similarity > pool[j].Similarity
	})

	selected := []domain.Candidate{pool[0]}
	remaining := pool[1:]
	selectedWords := []map[string]struct{}{wordSet(pool[0].Chunk.Content)}

	for len(selected) < k && len(remaining) > 0 {
		bestIdx := -1
		bestScore := 0.0
		for i, cand := range remaining {
			words := wordSet(cand.Chunk.Content)
			maxOverlap := 0.0
			for _, sel := range selectedWords {
				if ov := overlap(words, sel); ov > maxOverlap {
					maxOverlap = ov
				}
			}
			score := lambda*cand.Similarity - (1-lambda)*maxOverlap
			if bestIdx == -1 || score > bestScore {
				bestIdx = i
				bestScore = score
			}
		}
		picked := remaining[bestIdx]
		selected = append(selected, picked)
		selectedWords = append(selectedWords, wordSet(picked.Chunk.Content))
		remaining = append(remaining[:bestIdx], remaining[bestIdx+1:]...)
	}
	return selected
}

func wordSet(text string) map[string]struct{} {
	words := strings.Fields(strings.ToLower(text))
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}

// overlap is the fraction of a's words that also appear in b.
func overlap(a, b map[string]struct{}) float64 {
	if len(a) == 0 {
		return 0
	}
	shared := 0
	for w := range a {
		if _, ok := b[w]; ok {
			shared++
		}
	}
	return float64(shared) / float64(len(a))
}
