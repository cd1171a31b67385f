package extractor

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractor_Extract_Idempotent(t *testing.T) {
	code := `node City {
    has name: str;
}

node City {
    has name: str;
    has population: int;
}`
	ex := New(nil)

	first := ex.Extract(code, "city.jac")
	require.Len(t, first, 1)
	assert.Len(t, first[0].Attributes, 2)

	second := ex.Extract(code, "city.jac")
	require.Len(t, second, 1)
	assert.Equal(t, first[0].Skeleton(), second[0].Skeleton())
}

func TestDefinition_Merge_UnionByName(t *testing.T) {
	a := &Definition{
		Kind: KindNode, Name: "City",
		Attributes: []Attribute{{Name: "name"}},
		Docstring:  "short",
	}
	b := &Definition{
		Kind: KindNode, Name: "City",
		Parent:     "Place",
		Attributes: []Attribute{{Name: "name", TypeHint: "str"}, {Name: "population", TypeHint: "int"}},
		Abilities:  []AbilitySignature{{Name: "grow"}},
		Docstring:  "a longer docstring",
	}

	a.Merge(b)

	assert.Equal(t, "a longer docstring", a.Docstring)
	assert.Equal(t, "Place", a.Parent)
	require.Len(t, a.Attributes, 2)
	assert.Equal(t, "str", a.Attributes[0].TypeHint, "missing type filled from merge source")
	require.Len(t, a.Abilities, 1)

	// mismatched identity is a no-op
	c := &Definition{Kind: KindWalker, Name: "City", Docstring: "even longer than the other one"}
	a.Merge(c)
	assert.Equal(t, "a longer docstring", a.Docstring)
}

func TestDeduplicate_PreservesFirstSeenOrder(t *testing.T) {
	defs := []*Definition{
		{Kind: KindWalker, Name: "B"},
		{Kind: KindNode, Name: "A"},
		{Kind: KindWalker, Name: "B", Abilities: []AbilitySignature{{Name: "run"}}},
	}
	out := Deduplicate(defs)
	require.Len(t, out, 2)
	assert.Equal(t, "B", out[0].Name)
	assert.Equal(t, "A", out[1].Name)
	assert.Len(t, out[0].Abilities, 1)
}

func TestExtractor_ExtractFromMarkdown_AutoClosesBrace(t *testing.T) {
	markdown := "Some docs.\n\n```jac\nnode Device {\n    has id: str;\n```\n\n" +
		"```jaclang\nwalker Ping {\n    can send with entry;\n}\n```\n"

	ex := New(nil)
	defs := ex.ExtractFromMarkdown(markdown)
	require.Len(t, defs, 2)
	assert.Equal(t, "Device", defs[0].Name)
	assert.Equal(t, "Ping", defs[1].Name)
}

func TestRenderSkeleton_SectionOrder(t *testing.T) {
	defs := []*Definition{
		{Kind: KindGlobal, Name: "limit", Attributes: []Attribute{{Name: "limit", Default: "5"}}},
		{Kind: KindNode, Name: "City", Attributes: []Attribute{{Name: "name", TypeHint: "str"}}},
		{Kind: KindWalker, Name: "Tour"},
	}
	doc := RenderSkeleton(defs, 3)

	assert.Contains(t, doc, "# Jac API Reference (Skeleton)")
	assert.Contains(t, doc, "# Extracted from 3 source files")

	nodes := strings.Index(doc, "## Nodes")
	walkers := strings.Index(doc, "## Walkers")
	globals := strings.Index(doc, "## Globals")
	require.NotEqual(t, -1, nodes)
	require.NotEqual(t, -1, walkers)
	require.NotEqual(t, -1, globals)
	assert.Less(t, nodes, walkers)
	assert.Less(t, walkers, globals)

	assert.Contains(t, doc, "glob limit = 5;")
	assert.Contains(t, doc, "node City {")
}

func TestExtractor_ProcessDirectory(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.jac"),
		[]byte("node A { has x: int; }\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sub.txt"),
		[]byte("not jac\n"), 0o644))
	sub := filepath.Join(dir, "nested")
	require.NoError(t, os.Mkdir(sub, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(sub, "b.jac"),
		[]byte("walker B { can go with entry; }\n"), 0o644))

	ex := New(nil)
	result, err := ex.ProcessDirectory(dir)
	require.NoError(t, err)

	assert.Equal(t, 2, result.TotalFiles)
	assert.Len(t, result.Definitions, 2)
	assert.Equal(t, 1, result.Totals["node"])
	assert.Equal(t, 1, result.Totals["walker"])
}
