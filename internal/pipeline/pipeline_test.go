package pipeline

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jacref/internal/config"
	"jacref/internal/llm"
)

type scriptedGenerator struct {
	reply   string
	prompts []string
}

func (g *scriptedGenerator) Query(_ context.Context, prompt string) (string, error) {
	g.prompts = append(g.prompts, prompt)
	return g.reply, nil
}

func (g *scriptedGenerator) QueryStream(ctx context.Context, prompt string, onToken llm.TokenFunc) (string, error) {
	out, err := g.Query(ctx, prompt)
	if err == nil && onToken != nil {
		onToken(out)
	}
	return out, err
}

func stubGeneratorFactory(t *testing.T, gen llm.Generator) {
	t.Helper()
	orig := llm.NewGenerator
	llm.NewGenerator = func(llm.Options) (llm.Generator, error) { return gen, nil }
	t.Cleanup(func() { llm.NewGenerator = orig })
}

// passingDocument carries every default required pattern so the final
// document check succeeds without a compiler.
const passingDocument = `# Jac Reference

` + "```jac" + `
node City { has name: str; }
walker Visitor { can travel with entry { visit [-->]; } }
def ask() -> str by llm();

with entry {
    root ++> City();
    a +>: Road() :+> b;
    for c in [->:Road:->] { print(c); }
    spawn root Visitor();
}
` + "```" + `
`

func testPipelineConfig(t *testing.T) (*config.Config, string) {
	t.Helper()
	dir := t.TempDir()

	docs := filepath.Join(dir, "docs")
	require.NoError(t, os.MkdirAll(docs, 0o755))
	source := "node City {\n    has name: str;\n}\n\nwalker Visitor {\n    can travel with entry;\n}\n"
	require.NoError(t, os.WriteFile(filepath.Join(docs, "graph.jac"), []byte(source), 0o644))

	md := "Spawn a walker:\n\n```jac\nwith entry {\n    spawn root Visitor();\n}\n```\n"
	require.NoError(t, os.WriteFile(filepath.Join(docs, "guide.md"), []byte(md), 0o644))

	jsonl := `{"id": "rule-syntax-001", "content": "- Always terminate statements with a semicolon", "priority": 1, "category": "syntax_rule"}` + "\n"
	rulesPath := filepath.Join(dir, "rules.jsonl")
	require.NoError(t, os.WriteFile(rulesPath, []byte(jsonl), 0o644))

	cfg := config.Default()
	cfg.Source.DocsDir = docs
	cfg.Source.RulesJSONL = rulesPath
	cfg.RAG.Enabled = false
	cfg.Validation.JacBinary = filepath.Join(dir, "no-such-compiler")

	return cfg, filepath.Join(dir, "reference.md")
}

func TestPipeline_Run_MonolithicEndToEnd(t *testing.T) {
	gen := &scriptedGenerator{reply: passingDocument}
	stubGeneratorFactory(t, gen)

	cfg, output := testPipelineConfig(t)
	p := New(cfg, output)

	summary, err := p.Run(context.Background())
	require.NoError(t, err)
	require.NotNil(t, summary)

	assert.Equal(t, output, summary.Artifact)
	assert.Equal(t, "scan", summary.Strategy)
	assert.False(t, summary.RAGEnabled)
	assert.Equal(t, 1, summary.RuleCount)
	assert.GreaterOrEqual(t, summary.TotalSignatures, 2)
	assert.GreaterOrEqual(t, summary.SourceFiles, 2)
	assert.True(t, summary.FinalValid)
	assert.Empty(t, summary.FinalIssues)
	assert.Equal(t, "monolithic", summary.AssembleMode)
	assert.Equal(t, "PASS", summary.Recommendation)

	require.Len(t, summary.Stages, 5)
	names := make([]string, 0, len(summary.Stages))
	for _, stage := range summary.Stages {
		names = append(names, stage.Name)
		assert.Equal(t, "ok", stage.Status)
	}
	assert.Equal(t, []string{"extract", "rules", "index", "assemble", "validate"}, names)

	// Exactly one generation call, with the extracted content substituted in.
	require.Len(t, gen.prompts, 1)
	assert.NotContains(t, gen.prompts[0], "{content}")
	assert.Contains(t, gen.prompts[0], "node City")

	written, err := os.ReadFile(output)
	require.NoError(t, err)
	assert.Equal(t, passingDocument, string(written))
}

func TestPipeline_Run_WritesValidationReport(t *testing.T) {
	stubGeneratorFactory(t, &scriptedGenerator{reply: passingDocument})

	cfg, output := testPipelineConfig(t)
	summary, err := New(cfg, output).Run(context.Background())
	require.NoError(t, err)

	data, err := os.ReadFile(output + ".validation.json")
	require.NoError(t, err)

	var report Summary
	require.NoError(t, json.Unmarshal(data, &report))
	assert.Equal(t, summary.Artifact, report.Artifact)
	assert.Equal(t, summary.FinalValid, report.FinalValid)
	assert.Equal(t, summary.RuleCount, report.RuleCount)
}

func TestPipeline_Run_FinalIssuesOnSparseDocument(t *testing.T) {
	stubGeneratorFactory(t, &scriptedGenerator{reply: "# Reference\n\nNo code here.\n"})

	cfg, output := testPipelineConfig(t)
	summary, err := New(cfg, output).Run(context.Background())
	require.NoError(t, err)

	assert.False(t, summary.FinalValid)
	assert.NotEmpty(t, summary.FinalIssues)
	assert.Equal(t, "REVIEW", summary.Recommendation)
	joined := strings.Join(summary.FinalIssues, "\n")
	assert.Contains(t, joined, "with entry")
}

func TestPipeline_Run_SkipValidation(t *testing.T) {
	stubGeneratorFactory(t, &scriptedGenerator{reply: passingDocument})

	cfg, output := testPipelineConfig(t)
	p := New(cfg, output)
	p.SkipValidation = true

	summary, err := p.Run(context.Background())
	require.NoError(t, err)

	last := summary.Stages[len(summary.Stages)-1]
	assert.Equal(t, "validate", last.Name)
	assert.Equal(t, "skipped", last.Status)
	assert.Empty(t, summary.Recommendation)

	_, err = os.Stat(output + ".validation.json")
	assert.True(t, os.IsNotExist(err))

	written, readErr := os.ReadFile(output)
	require.NoError(t, readErr)
	assert.Equal(t, passingDocument, string(written))
}

func TestPipeline_Run_MissingDocsDir(t *testing.T) {
	stubGeneratorFactory(t, &scriptedGenerator{reply: passingDocument})

	cfg, output := testPipelineConfig(t)
	cfg.Source.DocsDir = filepath.Join(t.TempDir(), "absent")

	summary, err := New(cfg, output).Run(context.Background())
	require.Error(t, err)
	require.NotNil(t, summary)
	assert.NotEmpty(t, summary.Error)
}

func TestPipeline_LoadTemplate_RequiresPlaceholder(t *testing.T) {
	cfg := config.Default()
	path := filepath.Join(t.TempDir(), "prompt.txt")
	require.NoError(t, os.WriteFile(path, []byte("no placeholder at all"), 0o644))
	cfg.Assembly.PromptPath = path

	p := New(cfg, "out.md")
	_, err := p.loadTemplate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "{content}")
}
