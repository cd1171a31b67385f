package rules

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testDocument = `Follow these directives for every answer.

## HIGH-FAILURE SYNTAX RULES
- Use ++> to connect, never -->
  WRONG: a --> b
- Wrap top-level statements in with entry

TOPICS (31 total):

9. walkers: spawn, visit, report
walkers traverse the graph
7. graph: connection operators like ++>

PATTERNS TO FOLLOW:
- PATTERN report-shape: walkers report dicts
  report {"ok": True};
- PATTERN has-typed: has fields always typed
---
## VERIFIED SYNTAX EXAMPLES

# spawn a walker on root
root spawn Tour();
# connect two nodes
a ++> b;
## GOLDEN STYLE EXAMPLE
node City { has name: str; }`

func TestSplitter_Split_AllSections(t *testing.T) {
	nuggets := Splitter{}.Split(testDocument)
	require.Len(t, nuggets, 10)

	ids := make([]string, len(nuggets))
	for i, n := range nuggets {
		ids[i] = n.ID
	}
	assert.Equal(t, []string{
		"rule-global-directives",
		"rule-syntax-001", "rule-syntax-002",
		"rule-topic-walkers", "rule-topic-graph",
		"rule-pattern-001", "rule-pattern-002",
		"rule-example-001", "rule-example-002",
		"rule-golden-style",
	}, ids)
}

func TestSplitter_Split_NuggetFields(t *testing.T) {
	nuggets := Splitter{}.Split(testDocument)
	byID := make(map[string]RuleNugget, len(nuggets))
	for _, n := range nuggets {
		byID[n.ID] = n
	}

	global := byID["rule-global-directives"]
	assert.Equal(t, CategoryGlobalDirective, global.Category)
	assert.Equal(t, PriorityHigh, global.Priority)
	assert.Equal(t, "Follow these directives for every answer.", global.Content)
	assert.Equal(t, []string{"global"}, global.TopicIDs)

	syntax := byID["rule-syntax-001"]
	assert.Equal(t, PriorityHigh, syntax.Priority)
	assert.Contains(t, syntax.Content, "WRONG: a --> b")
	assert.Contains(t, syntax.ConstructTypes, "connect")
	assert.Contains(t, syntax.ConstructTypes, "traverse")

	topic := byID["rule-topic-walkers"]
	assert.Equal(t, PriorityNormal, topic.Priority)
	assert.Equal(t, []string{"walkers"}, topic.TopicIDs)
	assert.Contains(t, topic.Content, "walkers traverse the graph")

	pattern := byID["rule-pattern-001"]
	assert.Equal(t, CategoryPatternDef, pattern.Category)
	assert.Equal(t, PriorityNormal, pattern.Priority)
	assert.Contains(t, pattern.Content, "report-shape")

	example := byID["rule-example-002"]
	assert.Equal(t, PriorityHigh, example.Priority)
	assert.Equal(t, "# connect two nodes\na ++> b;", example.Content)

	golden := byID["rule-golden-style"]
	assert.Equal(t, CategoryGoldenStyle, golden.Category)
	assert.True(t, strings.HasPrefix(golden.Content, "## GOLDEN STYLE EXAMPLE"))
}

func TestSplitter_Split_Deterministic(t *testing.T) {
	first := Splitter{}.Split(testDocument)
	second := Splitter{}.Split(testDocument)
	assert.Equal(t, first, second)
}

func TestSplitter_Split_MissingSections(t *testing.T) {
	doc := "Just some prose.\nNo markers at all.\n"
	assert.Empty(t, Splitter{}.Split(doc))

	goldenOnly := "intro\n## GOLDEN STYLE EXAMPLE\nnode A { has x: int; }\n"
	nuggets := Splitter{}.Split(goldenOnly)
	require.Len(t, nuggets, 1)
	assert.Equal(t, "rule-golden-style", nuggets[0].ID)
}

func TestDetectConstructTypes_Fallback(t *testing.T) {
	assert.Equal(t, []string{"general"}, DetectConstructTypes("nothing of note here"))
	assert.Contains(t, DetectConstructTypes("spawn a walker"), "walker")
	assert.Contains(t, DetectConstructTypes("spawn a walker"), "spawn")
}

func TestDetectTopicIDs(t *testing.T) {
	got := DetectTopicIDs("use with entry and can abilities")
	assert.Contains(t, got, "abilities")
	assert.Equal(t, []string{"general"}, DetectTopicIDs("plain sentence"))
}
