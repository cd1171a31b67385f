package retrieval

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestApplyMMR_PrefersDiverseSecondPick(t *testing.T) {
	// Two near-identical candidates and one orthogonal outlier. Pure
	// relevance ranking would pick both duplicates; MMR must not.
	embeddings := [][]float32{
		{1, 0},
		{1, 0},
		{0, 1},
	}
	relevance := []float64{1.0, 0.99, 0.8}

	selected := applyMMR(embeddings, relevance, 2, 0.5)
	assert.Equal(t, []int{0, 2}, selected)
}

func TestApplyMMR_TieBreaksToInsertionOrder(t *testing.T) {
	embeddings := [][]float32{{1, 0}, {1, 0}, {1, 0}}
	relevance := []float64{0.5, 0.5, 0.5}

	selected := applyMMR(embeddings, relevance, 2, 0.5)
	assert.Equal(t, []int{0, 1}, selected)
}

func TestApplyMMR_Bounds(t *testing.T) {
	assert.Nil(t, applyMMR(nil, nil, 3, 0.5))
	assert.Nil(t, applyMMR([][]float32{{1}}, []float64{1}, 0, 0.5))

	selected := applyMMR([][]float32{{1, 0}, {0, 1}}, []float64{0.9, 0.8}, 5, 0.5)
	assert.Len(t, selected, 2, "k larger than candidate count selects everything")
}
