package faq

import (
	"math"
	"sort"
	"sync"
)

// Index is an in-memory vector index over document chunks, scored by
// brute-force cosine similarity. FAQ documents are small enough that a
// linear scan beats carrying a vector database.
type Index struct {
	mu     sync.RWMutex
	chunks []Chunk
}

// NewIndex returns an empty index.
func NewIndex() *Index {
	return &Index{}
}

// Upsert replaces the indexed chunks for a study.
func (ix *Index) Upsert(studyID string, chunks []Chunk) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	kept := ix.chunks[:0]
	for _, c := range ix.chunks {
		if c.StudyID != studyID {
			kept = append(kept, c)
		}
	}
	ix.chunks = append(kept, chunks...)
}

// Search returns the topK chunks for a study ranked by cosine similarity to
// the query vector.
func (ix *Index) Search(studyID string, query []float64, topK int) []Chunk {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	type scored struct {
		sim   float64
		chunk Chunk
	}
	var candidates []scored
	for _, c := range ix.chunks {
		if c.StudyID != studyID || len(c.Embedding) == 0 {
			continue
		}
		candidates = append(candidates, scored{sim: cosineSimilarity(query, c.Embedding), chunk: c})
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].sim > candidates[j].sim
	})
	if topK > len(candidates) {
		topK = len(candidates)
	}
	out := make([]Chunk, 0, topK)
	for _, s := range candidates[:topK] {
		out = append(out, s.chunk)
	}
	return out
}

func cosineSimilarity(a, b []float64) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, magA, magB float64
	for i := 0; i < n; i++ {
		dot += a[i] * b[i]
		magA += a[i] * a[i]
		magB += b[i] * b[i]
	}
	if magA == 0 || magB == 0 {
		return 0
	}
	return dot / (math.Sqrt(magA) * math.Sqrt(magB))
}
