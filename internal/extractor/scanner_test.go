package extractor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenizer_MatchBrace_SkipsStringsAndComments(t *testing.T) {
	code := `node A {
    has label: str = "closing } brace";
    # a comment with }
    #* block comment
       with } inside *#
    can act with entry {
        print('{');
    }
}`
	tok := newTokenizer(code)
	end := tok.matchBrace(len("node A "))
	require.NotEqual(t, -1, end)
	assert.Equal(t, len(code)-1, end)
}

func TestTokenizer_MatchBrace_Unclosed(t *testing.T) {
	tok := newTokenizer("node A { has x: int;")
	assert.Equal(t, -1, tok.matchBrace(len("node A ")))
}

func TestScanStrategy_Extract_Archetype(t *testing.T) {
	code := `# A person in the graph
node Person(Base) {
    has name: str;
    has age: int = 0;
    static has count: int = 0;
    can greet with entry {
        print("hi");
    }
    def describe(verbose: bool) -> str {
        return self.name;
    }
}`
	defs := ScanStrategy{}.Extract(code, "person.jac")
	require.Len(t, defs, 1)

	d := defs[0]
	assert.Equal(t, KindNode, d.Kind)
	assert.Equal(t, "Person", d.Name)
	assert.Equal(t, "Base", d.Parent)
	assert.Equal(t, "A person in the graph", d.Docstring)
	assert.Equal(t, 1, d.LineNumber)

	require.Len(t, d.Attributes, 3)
	assert.Equal(t, "has name: str;", d.Attributes[0].Signature())
	assert.Equal(t, "has age: int = 0;", d.Attributes[1].Signature())
	assert.True(t, d.Attributes[2].IsStatic)

	require.Len(t, d.Abilities, 1)
	assert.Equal(t, "can greet with entry;", d.Abilities[0].Signature())

	require.Len(t, d.Functions, 1)
	assert.Equal(t, "def describe(verbose: bool) -> str;", d.Functions[0].Signature())
}

func TestScanStrategy_Extract_TopLevelDefExcludedFromBodies(t *testing.T) {
	code := `walker W {
    def inner() -> int {
        return 1;
    }
}

def standalone(x: int) -> int {
    return x * 2;
}

glob counter: int = 0;`
	defs := ScanStrategy{}.Extract(code, "mix.jac")
	require.Len(t, defs, 3)

	assert.Equal(t, KindWalker, defs[0].Kind)
	require.Len(t, defs[0].Functions, 1)
	assert.Equal(t, "inner", defs[0].Functions[0].Name)

	// inner must not reappear as a top-level function
	assert.Equal(t, KindFunction, defs[1].Kind)
	assert.Equal(t, "standalone", defs[1].Name)

	assert.Equal(t, KindGlobal, defs[2].Kind)
	assert.Equal(t, "counter", defs[2].Name)
	assert.Equal(t, "int", defs[2].Attributes[0].TypeHint)
	assert.Equal(t, "0", defs[2].Attributes[0].Default)
}

func TestScanStrategy_Extract_ModifierPrefixes(t *testing.T) {
	code := `obj Service {
    override static can handle(req: str) -> str;
    async def fetch(url: str);
}`
	defs := ScanStrategy{}.Extract(code, "svc.jac")
	require.Len(t, defs, 1)

	require.Len(t, defs[0].Abilities, 1)
	ab := defs[0].Abilities[0]
	assert.True(t, ab.IsOverride)
	assert.True(t, ab.IsStatic)
	assert.Equal(t, "override static can handle(req: str) -> str;", ab.Signature())

	require.Len(t, defs[0].Functions, 1)
	assert.True(t, defs[0].Functions[0].IsAsync)
	assert.Equal(t, "async def fetch(url: str);", defs[0].Functions[0].Signature())
}

func TestParseDocstring_DropsSectionMarkers(t *testing.T) {
	block := "## SECTION\n# first line\n# second line\n"
	assert.Equal(t, "first line second line", parseDocstring(block))
}
