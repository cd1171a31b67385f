// Package pipeline chains extraction, rule splitting, retrieval, assembly
// and validation into a single run.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"jacref/internal/assembler"
	"jacref/internal/config"
	"jacref/internal/extractor"
	"jacref/internal/jac"
	"jacref/internal/llm"
	"jacref/internal/retrieval"
	"jacref/internal/rules"
	"jacref/internal/validator"
)

// Pipeline runs the full assembly flow from source docs to a validated
// reference document.
type Pipeline struct {
	Config         *config.Config
	OutputPath     string
	Stream         bool
	OnToken        llm.TokenFunc
	SkipValidation bool
}

// Summary is the machine-readable run outcome.
type Summary struct {
	Artifact        string                `json:"artifact"`
	Strategy        string                `json:"extraction_strategy"`
	AssembleMode    string                `json:"assemble_mode,omitempty"`
	TotalSignatures int                   `json:"total_signatures"`
	TotalExamples   int                   `json:"total_examples"`
	SourceFiles     int                   `json:"source_files"`
	RuleCount       int                   `json:"rule_count"`
	RAGEnabled      bool                  `json:"rag_enabled"`
	TokensStreamed  int                   `json:"tokens_streamed,omitempty"`
	Stages          []StageStatus         `json:"stages,omitempty"`
	Validation      validator.CheckResult `json:"validation"`
	FinalValid      bool                  `json:"final_valid"`
	FinalIssues     []string              `json:"final_issues,omitempty"`
	Recommendation  string                `json:"recommendation,omitempty"`
	Error           string                `json:"error,omitempty"`
}

// StageStatus records one stage's outcome for the summary.
type StageStatus struct {
	Name       string `json:"name"`
	Status     string `json:"status"`
	DurationMS int64  `json:"duration_ms"`
}

func (s *Summary) recordStage(name string, start time.Time, err error) {
	status := "ok"
	if err != nil {
		status = "failed"
	}
	s.Stages = append(s.Stages, StageStatus{
		Name:       name,
		Status:     status,
		DurationMS: time.Since(start).Milliseconds(),
	})
}

func New(cfg *config.Config, outputPath string) *Pipeline {
	return &Pipeline{Config: cfg, OutputPath: outputPath}
}

// Run executes every stage. The returned summary is non-nil even on error
// so callers can still report partial progress.
func (p *Pipeline) Run(ctx context.Context) (*Summary, error) {
	summary := &Summary{Artifact: p.OutputPath, RAGEnabled: p.Config.RAG.Enabled}

	start := time.Now()
	content, ex, err := p.extractStage(summary)
	summary.recordStage("extract", start, err)
	if err != nil {
		summary.Error = err.Error()
		return summary, err
	}

	start = time.Now()
	nuggets, err := p.rulesStage(summary)
	summary.recordStage("rules", start, err)
	if err != nil {
		summary.Error = err.Error()
		return summary, err
	}

	start = time.Now()
	retriever := p.ragStage(ctx, summary, content, nuggets)
	summary.recordStage("index", start, nil)
	summary.AssembleMode = "monolithic"
	if retriever != nil {
		summary.AssembleMode = "rag"
	}

	start = time.Now()
	document, err := p.assembleStage(ctx, summary, content, ex, retriever)
	summary.recordStage("assemble", start, err)
	if err != nil {
		summary.Error = err.Error()
		return summary, err
	}

	if err := os.WriteFile(p.OutputPath, []byte(document), 0o644); err != nil {
		summary.Error = err.Error()
		return summary, fmt.Errorf("failed to write artifact: %w", err)
	}
	fmt.Printf("📄 Wrote %s (%d bytes)\n", p.OutputPath, len(document))

	if p.SkipValidation {
		summary.Stages = append(summary.Stages, StageStatus{Name: "validate", Status: "skipped"})
		return summary, nil
	}

	start = time.Now()
	err = p.validateStage(ctx, summary, document)
	summary.recordStage("validate", start, err)
	if err != nil {
		summary.Error = err.Error()
		return summary, err
	}

	return summary, nil
}

func (p *Pipeline) extractStage(summary *Summary) (*extractor.ExtractedContent, *extractor.ContentExtractor, error) {
	fmt.Println("🔍 Extracting signatures and examples...")

	parser := jac.NewCommandParser(p.Config.Validation.JacBinary)
	base := extractor.New(parser)
	summary.Strategy = base.StrategyName()
	ex := extractor.NewContentExtractor(base)

	dir := p.Config.Source.DocsDir
	if dir == "" {
		dir = "docs"
	}
	content, err := ex.ExtractFromDirectory(dir)
	if err != nil {
		return nil, nil, fmt.Errorf("extraction failed: %w", err)
	}

	if extra := p.Config.Source.ExamplesDir; extra != "" && extra != dir {
		more, err := ex.ExtractFromDirectory(extra)
		if err != nil {
			log.Printf("Warning: examples dir %s: %v", extra, err)
		} else {
			mergeContent(content, more)
		}
	}

	summary.TotalSignatures = content.TotalSignatures
	summary.TotalExamples = content.TotalExamples
	summary.SourceFiles = content.SourceFiles
	fmt.Printf("  -> %d signatures, %d examples from %d files\n",
		content.TotalSignatures, content.TotalExamples, content.SourceFiles)
	return content, ex, nil
}

func mergeContent(dst, src *extractor.ExtractedContent) {
	for ct, sigs := range src.Signatures {
		dst.Signatures[ct] = append(dst.Signatures[ct], sigs...)
	}
	for ct, examples := range src.Examples {
		dst.Examples[ct] = append(dst.Examples[ct], examples...)
	}
	for kw := range src.KeywordsFound {
		dst.KeywordsFound[kw] = true
	}
	dst.TotalSignatures += src.TotalSignatures
	dst.TotalExamples += src.TotalExamples
	dst.SourceFiles += src.SourceFiles
}

func (p *Pipeline) rulesStage(summary *Summary) ([]rules.RuleNugget, error) {
	doc := p.Config.Source.RulesDoc
	jsonl := p.Config.Source.RulesJSONL
	if doc == "" && jsonl == "" {
		return nil, nil
	}

	fmt.Println("📚 Loading rule nuggets...")
	var (
		nuggets []rules.RuleNugget
		err     error
	)
	switch {
	case doc != "" && jsonl != "":
		nuggets, err = rules.Regenerate(doc, jsonl)
	case jsonl != "":
		nuggets, err = rules.LoadJSONL(jsonl)
	default:
		var data []byte
		if data, err = os.ReadFile(doc); err == nil {
			nuggets = (rules.Splitter{}).Split(string(data))
		}
	}
	if err != nil {
		return nil, fmt.Errorf("rule loading failed: %w", err)
	}
	summary.RuleCount = len(nuggets)
	fmt.Printf("  -> %d rule nuggets\n", len(nuggets))
	return nuggets, nil
}

// ragStage sets up retrieval. Any failure degrades to the monolithic path
// with a logged warning rather than aborting the run.
func (p *Pipeline) ragStage(ctx context.Context, summary *Summary, content *extractor.ExtractedContent, nuggets []rules.RuleNugget) *retrieval.Retriever {
	if !p.Config.RAG.Enabled {
		return nil
	}

	fmt.Println("🧠 Initializing retrieval store...")
	retriever, err := p.initRetriever(ctx, content, nuggets)
	if err != nil {
		log.Printf("Warning: RAG unavailable, falling back to monolithic assembly: %v", err)
		summary.RAGEnabled = false
		return nil
	}
	return retriever
}

func (p *Pipeline) initRetriever(ctx context.Context, content *extractor.ExtractedContent, nuggets []rules.RuleNugget) (*retrieval.Retriever, error) {
	embedCfg := p.Config.RAG.Embedding
	embedder, err := retrieval.NewEmbedder(ctx, retrieval.EmbedderOptions{
		Provider:  embedCfg.Provider,
		APIKey:    embedCfg.APIKey,
		Model:     embedCfg.Model,
		Dimension: embedCfg.Dimension,
		BaseURL:   embedCfg.BaseURL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create embedder: %w", err)
	}

	store, err := retrieval.NewStore(p.Config.RAG.DBPath, embedder)
	if err != nil {
		return nil, fmt.Errorf("failed to open retrieval store: %w", err)
	}

	retriever := retrieval.NewRetriever(store, retrieval.Options{
		RulesPerSection:    p.Config.RAG.RulesPerSection,
		ExamplesPerSection: p.Config.RAG.ExamplesPerSection,
		MMRLambda:          p.Config.RAG.MMRLambda,
	})

	if err := retriever.EnsureReady(ctx); err != nil {
		store.Close()
		return nil, err
	}
	if len(nuggets) > 0 {
		if _, err := retriever.EnsureRulesIndexed(ctx, nuggets); err != nil {
			store.Close()
			return nil, fmt.Errorf("rule indexing failed: %w", err)
		}
	}
	indexed, err := retriever.IndexExamples(ctx, content)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("example indexing failed: %w", err)
	}
	fmt.Printf("  -> Indexed %d examples for this run\n", indexed)
	return retriever, nil
}

func (p *Pipeline) assembleStage(ctx context.Context, summary *Summary, content *extractor.ExtractedContent, ex *extractor.ContentExtractor, retriever *retrieval.Retriever) (string, error) {
	fmt.Println("✍️  Assembling reference document...")

	template, err := p.loadTemplate()
	if err != nil {
		return "", err
	}

	gen, err := llm.NewGenerator(llm.Options{
		Provider:    p.Config.Assembly.Provider,
		Model:       p.Config.Assembly.Model,
		APIKey:      p.Config.Assembly.APIKey,
		MaxTokens:   p.Config.Assembly.MaxTokens,
		Temperature: p.Config.Assembly.Temperature,
	})
	if err != nil {
		return "", fmt.Errorf("failed to create generator: %w", err)
	}

	asm := assembler.New(gen, template, retriever)
	asm.OnProgress = func(step, total int, message string) {
		fmt.Printf("  [%d/%d] %s\n", step, total, message)
	}
	if p.Stream {
		emit := p.OnToken
		if emit == nil {
			emit = func(token string) { fmt.Print(token) }
		}
		asm.OnToken = func(token string) {
			summary.TokensStreamed++
			emit(token)
		}
	}

	document, err := asm.Assemble(ctx, content, ex)
	if err != nil {
		return "", fmt.Errorf("assembly failed: %w", err)
	}

	// Soft check only: a lossy compression is expected, losing the critical
	// patterns themselves is not.
	stage := validator.New(nil).ValidateStage(ex.FormatForAssembly(content), document)
	for _, issue := range stage.Issues {
		log.Printf("Warning: assembly output: %s", issue)
	}
	return document, nil
}

func (p *Pipeline) loadTemplate() (string, error) {
	if p.Config.Assembly.PromptPath == "" {
		return defaultTemplate, nil
	}
	data, err := os.ReadFile(p.Config.Assembly.PromptPath)
	if err != nil {
		return "", fmt.Errorf("failed to read prompt template: %w", err)
	}
	if !strings.Contains(string(data), "{content}") {
		return "", fmt.Errorf("prompt template %s has no {content} placeholder", p.Config.Assembly.PromptPath)
	}
	return string(data), nil
}

func (p *Pipeline) validateStage(ctx context.Context, summary *Summary, document string) error {
	fmt.Println("✅ Validating assembled document...")

	parser := jac.NewCommandParser(p.Config.Validation.JacBinary)
	v := validator.New(parser)

	final := v.ValidateFinal(document, nil)
	summary.FinalValid = final.IsValid
	summary.FinalIssues = final.Issues
	for _, issue := range final.Issues {
		log.Printf("Warning: %s", issue)
	}

	if !parser.Available() {
		log.Printf("Warning: jac binary %q not found, skipping example syntax check", p.Config.Validation.JacBinary)
		summary.Recommendation = recommend(summary, p.Config)
		return p.writeValidationReport(summary)
	}

	if p.Config.Validation.Strict {
		result, err := v.ValidateStrict(ctx, document, nil)
		summary.Validation = result
		if err != nil {
			summary.Recommendation = "REVIEW"
			_ = p.writeValidationReport(summary)
			return err
		}
	} else {
		summary.Validation = v.ValidateAllExamples(ctx, document, p.Config.Validation.FailThreshold, nil)
	}
	fmt.Printf("  -> %d blocks: %d passed, %d failed, %d skipped (%.1f%%)\n",
		summary.Validation.TotalBlocks, summary.Validation.Passed,
		summary.Validation.Failed, summary.Validation.Skipped, summary.Validation.PassRate)

	summary.Recommendation = recommend(summary, p.Config)
	return p.writeValidationReport(summary)
}

// recommend condenses the validation outcome to PASS or REVIEW.
func recommend(summary *Summary, cfg *config.Config) string {
	if !summary.FinalValid {
		return "REVIEW"
	}
	checked := summary.Validation.Passed + summary.Validation.Failed
	if checked > 0 && summary.Validation.PassRate < cfg.Validation.FailThreshold {
		return "REVIEW"
	}
	return "PASS"
}

func (p *Pipeline) writeValidationReport(summary *Summary) error {
	path := p.OutputPath + ".validation.json"
	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write validation report: %w", err)
	}
	return nil
}
