package rules

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONL_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.jsonl")
	in := []RuleNugget{
		{
			ID:             "rule-syntax-001",
			Content:        "Use ++> to connect",
			TopicIDs:       []string{"graph"},
			ConstructTypes: []string{"connect"},
			Priority:       PriorityHigh,
			Category:       CategorySyntaxRule,
		},
		{
			ID:             "rule-topic-walkers",
			Content:        "9. walkers: spawn and visit",
			TopicIDs:       []string{"walkers"},
			ConstructTypes: []string{"walker", "spawn"},
			Priority:       PriorityNormal,
			Category:       CategoryTopicDefinition,
		},
	}

	require.NoError(t, WriteJSONL(path, in))
	out, err := LoadJSONL(path)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestLoadJSONL_DefaultsAndBlankLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.jsonl")
	raw := `{"id":"r1","content":"bare nugget"}

{"id":"r2","content":"tagged","priority":1,"category":"verified_example"}
`
	require.NoError(t, os.WriteFile(path, []byte(raw), 0o644))

	nuggets, err := LoadJSONL(path)
	require.NoError(t, err)
	require.Len(t, nuggets, 2)

	assert.Equal(t, PriorityNormal, nuggets[0].Priority)
	assert.Equal(t, CategorySyntaxRule, nuggets[0].Category)
	assert.Equal(t, PriorityHigh, nuggets[1].Priority)
	assert.Equal(t, CategoryVerifiedExample, nuggets[1].Category)
}

func TestRegenerate_SplitsWhenRulesMissing(t *testing.T) {
	dir := t.TempDir()
	docPath := filepath.Join(dir, "instructions.md")
	rulesPath := filepath.Join(dir, "rules.jsonl")
	require.NoError(t, os.WriteFile(docPath, []byte(testDocument), 0o644))

	nuggets, err := Regenerate(docPath, rulesPath)
	require.NoError(t, err)
	assert.Len(t, nuggets, 10)

	_, err = os.Stat(rulesPath)
	assert.NoError(t, err, "rules file gets written")
}

func TestRegenerate_LoadsWhenRulesFresh(t *testing.T) {
	dir := t.TempDir()
	docPath := filepath.Join(dir, "instructions.md")
	rulesPath := filepath.Join(dir, "rules.jsonl")
	require.NoError(t, os.WriteFile(docPath, []byte(testDocument), 0o644))

	// Rules file newer than the document, holding different content.
	require.NoError(t, WriteJSONL(rulesPath, []RuleNugget{
		{ID: "custom", Content: "hand edited", Priority: 1, Category: CategorySyntaxRule},
	}))
	old := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(docPath, old, old))

	nuggets, err := Regenerate(docPath, rulesPath)
	require.NoError(t, err)
	require.Len(t, nuggets, 1)
	assert.Equal(t, "custom", nuggets[0].ID)
}

func TestRegenerate_ResplitsWhenDocumentNewer(t *testing.T) {
	dir := t.TempDir()
	docPath := filepath.Join(dir, "instructions.md")
	rulesPath := filepath.Join(dir, "rules.jsonl")

	require.NoError(t, WriteJSONL(rulesPath, []RuleNugget{{ID: "stale", Content: "old"}}))
	old := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(rulesPath, old, old))
	require.NoError(t, os.WriteFile(docPath, []byte(testDocument), 0o644))

	nuggets, err := Regenerate(docPath, rulesPath)
	require.NoError(t, err)
	assert.Len(t, nuggets, 10)
}
