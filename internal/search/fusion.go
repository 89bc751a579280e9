package search

import "sort"

// DefaultRRFConstant is the standard RRF smoothing parameter. k=60 is
// empirically validated across domains (Azure AI Search, OpenSearch, etc.).
const DefaultRRFConstant = 60

// RRFFusion combines ranked result lists using Reciprocal Rank Fusion:
//
//	RRF_score(d) = Σ 1 / (K + rank_i)
//
// where rank_i is the document's 1-indexed position in list i. Documents
// missing from a list simply contribute nothing for that list.
type RRFFusion struct {
	K int
}

// NewRRFFusion creates an RRF fusion instance. If k <= 0, defaults to 60.
func NewRRFFusion(k int) *RRFFusion {
	if k <= 0 {
		k = DefaultRRFConstant
	}
	return &RRFFusion{K: k}
}

// Fuse merges the vector and lexical lists and returns the top limit results
// by fused score. When the same key appears in both lists the vector copy is
// kept, so the richer payload survives deduplication.
func (f *RRFFusion) Fuse(vector, lexical []*Result, limit int) []*Result {
	if len(vector) == 0 && len(lexical) == 0 {
		return []*Result{}
	}

	type fused struct {
		result *Result
		score  float64
	}
	scores := make(map[string]*fused, len(vector)+len(lexical))
	order := make([]string, 0, len(vector)+len(lexical))

	accumulate := func(list []*Result) {
		for rank, r := range list {
			key := r.Key()
			entry, ok := scores[key]
			if !ok {
				entry = &fused{result: r}
				scores[key] = entry
				order = append(order, key)
			}
			entry.score += 1.0 / float64(f.K+rank+1)
		}
	}

	// Vector first: its copy wins on duplicate keys.
	accumulate(vector)
	accumulate(lexical)

	out := make([]*Result, 0, len(order))
	for _, key := range order {
		entry := scores[key]
		r := *entry.result
		r.Score = entry.score
		out = append(out, &r)
	}

	// Stable sort keeps first-seen (vector-list) order among equals.
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Score > out[j].Score
	})

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
