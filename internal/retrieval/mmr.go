package retrieval

// applyMMR selects up to k candidate indices by Maximal Marginal Relevance:
// each round picks the candidate maximizing
//
//	lambda*relevance - (1-lambda)*maxSimilarityToSelected
//
// Ties break toward the earlier candidate, so insertion order is stable.
// Without the diversity term, near-duplicate examples from copy-pasted
// documentation would crowd out everything else.
func applyMMR(embeddings [][]float32, relevance []float64, k int, lambda float64) []int {
	n := len(embeddings)
	if n == 0 || k <= 0 {
		return nil
	}

	var selected []int
	remaining := make([]int, n)
	for i := range remaining {
		remaining[i] = i
	}

	for len(selected) < k && len(remaining) > 0 {
		bestPos := -1
		bestScore := 0.0

		for pos, idx := range remaining {
			maxSim := 0.0
			for _, sel := range selected {
				sim := cosineSimilarity(embeddings[idx], embeddings[sel])
				if sim > maxSim {
					maxSim = sim
				}
			}
			score := lambda*relevance[idx] - (1-lambda)*maxSim
			if bestPos == -1 || score > bestScore {
				bestPos = pos
				bestScore = score
			}
		}

		selected = append(selected, remaining[bestPos])
		remaining = append(remaining[:bestPos], remaining[bestPos+1:]...)
	}

	return selected
}
