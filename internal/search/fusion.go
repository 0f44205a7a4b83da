package search

import "sort"

// scored pairs a record ID with one retriever's score for it.
type scored struct {
	ID    string
	Score float64
}

// fusedScore carries the combined score for one record during ranking.
type fusedScore struct {
	ID       string
	Score    float64
	Semantic float64
	Lexical  float64
}

// similarityFromDistance converts a cosine distance into a similarity in
// (0, 1], with distance 0 mapping to 1.
func similarityFromDistance(distance float64) float64 {
	return 1 / (1 + distance)
}

// normalizeByMax scales a batch of keyword scores into [0, 1] by
// dividing by the batch maximum. A non-positive maximum divides by 1
// instead, so an all-zero batch stays all zeros.
func normalizeByMax(hits []scored) []scored {
	max := 0.0
	for _, h := range hits {
		if h.Score > max {
			max = h.Score
		}
	}
	if max <= 0 {
		max = 1
	}

	out := make([]scored, len(hits))
	for i, h := range hits {
		out[i] = scored{ID: h.ID, Score: h.Score / max}
	}
	return out
}

// fuse merges semantic and lexical candidates into one weighted ranking.
// Semantic inputs must already be similarities and lexical inputs must
// already be normalized. A record missing from one list contributes zero
// on that component.
func fuse(semantic, lexical []scored, w Weights) []fusedScore {
	byID := make(map[string]*fusedScore, len(semantic)+len(lexical))
	order := make([]string, 0, len(semantic)+len(lexical))

	get := func(id string) *fusedScore {
		if f, ok := byID[id]; ok {
			return f
		}
		f := &fusedScore{ID: id}
		byID[id] = f
		order = append(order, id)
		return f
	}

	for _, s := range semantic {
		get(s.ID).Semantic = s.Score
	}
	for _, l := range lexical {
		get(l.ID).Lexical = l.Score
	}

	results := make([]fusedScore, 0, len(order))
	for _, id := range order {
		f := byID[id]
		f.Score = w.Semantic*f.Semantic + w.Lexical*f.Lexical
		results = append(results, *f)
	}

	sortFused(results)
	return results
}

// sortFused orders by fused score descending. Ties fall back to the
// semantic component and then to record ID, keeping equal-scored runs
// deterministic across processes.
func sortFused(results []fusedScore) {
	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		if results[i].Semantic != results[j].Semantic {
			return results[i].Semantic > results[j].Semantic
		}
		return results[i].ID < results[j].ID
	})
}
