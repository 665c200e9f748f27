// Package search provides the hybrid retrieval engine: parallel keyword and
// vector branches, score fusion, and result shaping.
package search

import (
	"sort"
	"strings"

	"github.com/Dry-U/File-tools/pkg/utils"
)

// Candidate is one path's raw evidence going into fusion.
type Candidate struct {
	Path     string
	Filename string
	Content  string
	Text     float64 // raw keyword score, engine-native scale
	Vector   float64 // raw vector similarity
	HasText  bool
	HasVec   bool
}

// FusionParams are the fusion knobs for one query.
type FusionParams struct {
	Query             string
	TextWeight        float64
	VectorWeight      float64
	HybridBoost       float64
	FilenameBoost     float64
	CharOverlapWeight float64
}

// Fused is a candidate after fusion, with branch scores normalized to [0,1].
type Fused struct {
	Path        string
	Score       float64
	TextScore   float64
	VectorScore float64
	Source      string // "text", "vector", or "hybrid"
}

// Fuse normalizes each branch by its maximum, combines them with the given
// weights, applies the hybrid agreement boost and filename bonus, and returns
// candidates sorted by score descending with path as the deterministic
// tie-break. Single-branch normalization means a keyword-only run produces
// the same ordering as a hybrid run whose vector branch returned nothing.
func Fuse(candidates []*Candidate, p FusionParams) []*Fused {
	var maxText, maxVec float64
	for _, c := range candidates {
		if c.HasText && c.Text > maxText {
			maxText = c.Text
		}
		if c.HasVec && c.Vector > maxVec {
			maxVec = c.Vector
		}
	}

	queryLower := strings.ToLower(p.Query)
	queryCJK := utils.HasCJK(p.Query)

	results := make([]*Fused, 0, len(candidates))
	for _, c := range candidates {
		f := &Fused{Path: c.Path}
		if c.HasText && maxText > 0 {
			f.TextScore = c.Text / maxText
		}
		if c.HasVec && maxVec > 0 {
			f.VectorScore = utils.Clamp01(c.Vector / maxVec)
		}

		f.Score = p.TextWeight*f.TextScore + p.VectorWeight*f.VectorScore

		switch {
		case c.HasText && c.HasVec:
			f.Source = "hybrid"
			if p.HybridBoost > 0 {
				f.Score *= p.HybridBoost
			}
		case c.HasVec:
			f.Source = "vector"
		default:
			f.Source = "text"
		}

		if p.FilenameBoost > 0 && queryLower != "" &&
			strings.Contains(strings.ToLower(c.Filename), queryLower) {
			f.Score += p.FilenameBoost
		}

		// Secondary evidence for CJK queries: single characters shared with the
		// document still count even when no full term matched.
		if queryCJK && p.CharOverlapWeight > 0 {
			overlap := utils.CJKOverlap(p.Query, c.Filename+" "+c.Content)
			f.Score += p.CharOverlapWeight * overlap
		}

		results = append(results, f)
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Path < results[j].Path
	})
	return results
}
