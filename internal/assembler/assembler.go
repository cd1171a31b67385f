// Package assembler builds the single-call LLM prompt that compresses the
// extracted corpus into one reference document, either monolithically or
// RAG-enhanced.
package assembler

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"jacref/internal/extractor"
	"jacref/internal/llm"
	"jacref/internal/retrieval"
)

// contentPlaceholder is the substitution point in the prompt template.
const contentPlaceholder = "{content}"

// maxSignaturesPerType caps how many deduplicated signatures each construct
// section contributes to the RAG prompt.
const maxSignaturesPerType = 10

// ProgressFunc reports coarse assembly progress.
type ProgressFunc func(step, total int, message string)

// Assembler issues exactly one generation call. It never retries internally;
// any failure, including empty model output, surfaces as an error.
type Assembler struct {
	gen        llm.Generator
	template   string
	retriever  *retrieval.Retriever
	OnProgress ProgressFunc
	OnToken    llm.TokenFunc
}

// New builds an assembler. A nil retriever selects the monolithic path.
func New(gen llm.Generator, template string, retriever *retrieval.Retriever) *Assembler {
	return &Assembler{gen: gen, template: template, retriever: retriever}
}

func (a *Assembler) progress(step, total int, message string) {
	if a.OnProgress != nil {
		a.OnProgress(step, total, message)
	}
}

// Assemble produces the final document from extracted content in a single
// LLM call.
func (a *Assembler) Assemble(ctx context.Context, content *extractor.ExtractedContent, ce *extractor.ContentExtractor) (string, error) {
	if a.retriever != nil {
		return a.assembleWithRAG(ctx, content, ce)
	}
	return a.assembleMonolithic(ctx, content, ce)
}

func (a *Assembler) assembleMonolithic(ctx context.Context, content *extractor.ExtractedContent, ce *extractor.ContentExtractor) (string, error) {
	a.progress(0, 2, "Formatting extracted content...")

	prompt := strings.Replace(a.template, contentPlaceholder, ce.FormatForAssembly(content), 1)

	a.progress(1, 2, "Assembling with LLM...")

	result, err := a.query(ctx, prompt)
	if err != nil {
		return "", err
	}

	a.progress(2, 2, "Assembly complete")
	return result, nil
}

func (a *Assembler) assembleWithRAG(ctx context.Context, content *extractor.ExtractedContent, ce *extractor.ContentExtractor) (string, error) {
	a.progress(0, 3, "Retrieving relevant rules and examples...")

	ret, err := a.retriever.RetrieveForAssembly(ctx, content)
	if err != nil {
		return "", fmt.Errorf("rag retrieval: %w", err)
	}
	a.progress(1, 3, fmt.Sprintf("Retrieved %d rules, %d example types",
		ret.Stats.RulesRetrieved, ret.Stats.ExampleTypes))

	prompt := a.buildRAGPrompt(content, ce, ret)

	a.progress(2, 3, "Assembling with LLM (RAG-enhanced)...")

	result, err := a.query(ctx, prompt)
	if err != nil {
		return "", err
	}

	a.progress(3, 3, "Assembly complete (RAG)")
	return result, nil
}

// query makes the one generation call, streaming when a token callback is
// set.
func (a *Assembler) query(ctx context.Context, prompt string) (string, error) {
	if a.OnToken != nil {
		return a.gen.QueryStream(ctx, prompt, a.OnToken)
	}
	return a.gen.Query(ctx, prompt)
}

var (
	topicLineRe = regexp.MustCompile(`^\d+\.`)
	wsRe        = regexp.MustCompile(`\s+`)
)

// ruleBuckets partitions retrieved rule texts by shape: bullets and WRONG:
// examples are syntax rules, PATTERN blocks are patterns, numbered entries
// are topics, comment-led snippets are verified examples.
type ruleBuckets struct {
	syntax   []string
	topics   []string
	patterns []string
	verified []string
	other    []string
}

func bucketRules(ruleTexts []string) ruleBuckets {
	var b ruleBuckets
	for _, text := range ruleTexts {
		trimmed := strings.TrimSpace(text)
		switch {
		case strings.HasPrefix(trimmed, "PATTERN") || strings.HasPrefix(trimmed, "- PATTERN"):
			b.patterns = append(b.patterns, text)
		case strings.Contains(text, "WRONG:") || strings.Contains(text, "Wrong:") || strings.HasPrefix(text, "- "):
			b.syntax = append(b.syntax, text)
		case topicLineRe.MatchString(trimmed):
			b.topics = append(b.topics, text)
		case strings.HasPrefix(text, "#") || strings.Contains(firstN(text, 50), "with entry"):
			b.verified = append(b.verified, text)
		default:
			b.other = append(b.other, text)
		}
	}
	return b
}

func firstN(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s
}

// buildRAGPrompt substitutes a retrieval-curated content block into the
// template: priority-ordered rules, deduplicated signatures capped per type,
// MMR-diverse examples, the keyword list, and a syntax verification summary.
func (a *Assembler) buildRAGPrompt(content *extractor.ExtractedContent, ce *extractor.ContentExtractor, ret *retrieval.Result) string {
	var parts []string

	buckets := bucketRules(ret.Rules)
	if len(buckets.syntax) > 0 || len(buckets.verified) > 0 {
		parts = append(parts, "# RAG-SELECTED RULES (priority order)")
		parts = append(parts, buckets.syntax...)
		parts = append(parts, buckets.verified...)
	}

	parts = append(parts, "\n# EXTRACTED SIGNATURES (from source docs)")
	for _, constructType := range []string{"node", "edge", "walker", "obj", "class", "enum", "function", "glob"} {
		sigs := content.Signatures[constructType]
		if len(sigs) == 0 {
			continue
		}
		parts = append(parts, "\n## "+strings.ToUpper(constructType))
		seen := map[string]bool{}
		count := 0
		for _, sig := range sigs {
			if count >= maxSignaturesPerType {
				break
			}
			normalized := wsRe.ReplaceAllString(strings.TrimSpace(sig), " ")
			if len(normalized) <= 10 || seen[normalized] {
				continue
			}
			seen[normalized] = true
			parts = append(parts, sig)
			count++
		}
	}

	parts = append(parts, "\n\n# RAG-SELECTED EXAMPLES (MMR-diverse)")
	constructs := make([]string, 0, len(ret.Examples))
	for ct := range ret.Examples {
		constructs = append(constructs, ct)
	}
	sort.Strings(constructs)
	for _, ct := range constructs {
		texts := ret.Examples[ct]
		if len(texts) == 0 {
			continue
		}
		parts = append(parts, "\n## "+strings.ToUpper(ct)+" EXAMPLES")
		for _, text := range texts {
			parts = append(parts, "```jac\n"+text+"\n```")
		}
	}

	parts = append(parts, "\n\n# KEYWORDS FOUND: "+strings.Join(content.SortedKeywords(), ", "))

	verification := ce.VerifySyntaxPatterns(content)
	if len(verification) > 0 {
		parts = append(parts, "\n# SYNTAX VERIFICATION (from official docs)")
		names := make([]string, 0, len(verification))
		for name := range verification {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			status := "NOT FOUND"
			if verification[name] {
				status = "OK"
			}
			parts = append(parts, fmt.Sprintf("# - %s: %s", name, status))
		}
	}

	return strings.Replace(a.template, contentPlaceholder, strings.Join(parts, "\n"), 1)
}
