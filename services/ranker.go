package services

import (
	"math"
	"sort"
)

// Candidate is anything rankable by its embedding.
type Candidate[T any] struct {
	Item      T
	Embedding []float32
}

// Ranked is a candidate with its similarity to the query.
type Ranked[T any] struct {
	Item       T
	Similarity float64
}

// CosineSimilarity returns 0 when either vector has zero magnitude. Vectors of
// different length are compared over their common prefix.
func CosineSimilarity(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}

	var dot, magA, magB float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
	}
	for _, v := range a {
		magA += float64(v) * float64(v)
	}
	for _, v := range b {
		magB += float64(v) * float64(v)
	}

	if magA == 0 || magB == 0 {
		return 0
	}
	return dot / (math.Sqrt(magA) * math.Sqrt(magB))
}

// Rank scores every candidate against the query and returns the topK best,
// highest first. Ties keep corpus order. topK <= 0 returns everything.
func Rank[T any](query []float32, corpus []Candidate[T], topK int) []Ranked[T] {
	ranked := make([]Ranked[T], len(corpus))
	for i, c := range corpus {
		ranked[i] = Ranked[T]{Item: c.Item, Similarity: CosineSimilarity(query, c.Embedding)}
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Similarity > ranked[j].Similarity
	})

	if topK > 0 && topK < len(ranked) {
		ranked = ranked[:topK]
	}
	return ranked
}
