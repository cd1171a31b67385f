package retrieval

import (
	"context"
	"testing"

	"jacref/internal/extractor"
	"jacref/internal/rules"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testContent() *extractor.ExtractedContent {
	return &extractor.ExtractedContent{
		Signatures: map[string][]string{},
		Examples: map[string][]extractor.CodeExample{
			"node": {{Code: "node City { has name: str; }", SourceFile: "a.md"}},
		},
		KeywordsFound: map[string]bool{"node": true},
	}
}

func TestRetriever_RetrieveForAssembly_PriorityOrderAndDedup(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, &stubEmbedder{dim: 4})
	retriever := NewRetriever(store, Options{})

	// high-priority rule without topic/construct match scores lower than the
	// boosted normal-priority rule, but must still sort first. Two nuggets
	// share content to exercise prefix dedup.
	nuggets := []rules.RuleNugget{
		{
			ID: "boosted", Content: "nodes connect with ++>",
			TopicIDs: []string{"node"}, ConstructTypes: []string{"node"},
			Priority: 2, Category: rules.CategorySyntaxRule,
		},
		{
			ID: "critical", Content: "always use with entry",
			TopicIDs: []string{"general"}, ConstructTypes: []string{"general"},
			Priority: 1, Category: rules.CategorySyntaxRule,
		},
		{
			ID: "duplicate", Content: "always use with entry",
			TopicIDs: []string{"general"}, ConstructTypes: []string{"general"},
			Priority: 1, Category: rules.CategorySyntaxRule,
		},
	}
	_, err := retriever.EnsureRulesIndexed(ctx, nuggets)
	require.NoError(t, err)

	_, err = retriever.IndexExamples(ctx, testContent())
	require.NoError(t, err)

	result, err := retriever.RetrieveForAssembly(ctx, testContent())
	require.NoError(t, err)

	require.Len(t, result.Rules, 2, "identical content collapses")
	assert.Equal(t, "always use with entry", result.Rules[0], "priority 1 leads despite lower score")
	assert.Equal(t, "nodes connect with ++>", result.Rules[1])

	require.Contains(t, result.Examples, "node")
	assert.Equal(t, []string{"[node] node City { has name: str; }"}, result.Examples["node"])

	assert.Equal(t, 2, result.Stats.RulesRetrieved)
	assert.Equal(t, 1, result.Stats.ExampleTypes)
	assert.Equal(t, 1, result.Stats.ConstructsQueried)
}

func TestRetriever_EnsureRulesIndexed_SkipsWhenPopulated(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, &stubEmbedder{dim: 4})
	retriever := NewRetriever(store, Options{})

	first := []rules.RuleNugget{{ID: "r1", Content: "rule one", Priority: 1}}
	_, err := retriever.EnsureRulesIndexed(ctx, first)
	require.NoError(t, err)

	// Second call must not replace the collection.
	second := []rules.RuleNugget{
		{ID: "r2", Content: "rule two", Priority: 1},
		{ID: "r3", Content: "rule three", Priority: 1},
	}
	_, err = retriever.EnsureRulesIndexed(ctx, second)
	require.NoError(t, err)

	scored, err := store.QueryByTopic(ctx, "anything", nil, 10)
	require.NoError(t, err)
	require.Len(t, scored, 1)
	assert.Equal(t, "rule one", scored[0].Content)
}

func TestRetriever_EnsureReady_Idempotent(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, &stubEmbedder{dim: 4})
	retriever := NewRetriever(store, Options{})

	_, err := retriever.IndexExamples(ctx, testContent())
	require.NoError(t, err)

	// EnsureReady after indexing must not wipe the collection again.
	require.NoError(t, retriever.EnsureReady(ctx))
	ok, err := store.HasConstructType(ctx, "node")
	require.NoError(t, err)
	assert.True(t, ok)
}
