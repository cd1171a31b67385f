// Package validator checks that critical syntax survives compression and
// that fenced code examples in the assembled document actually parse.
package validator

import (
	"context"
	"fmt"
	"log"
	"regexp"
	"runtime"
	"strings"
	"sync"

	"jacref/internal/jac"
)

// DefaultFailThreshold is the minimum example pass rate, in percent, before
// a warning is emitted.
const DefaultFailThreshold = 90.0

// ValidationError reports a strict validation failure.
type ValidationError struct {
	FailedBlocks int
	Summary      string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%d code blocks failed syntax check:\n%s", e.FailedBlocks, e.Summary)
}

// StageResult is the outcome of comparing a stage's output against its
// input.
type StageResult struct {
	IsValid         bool     `json:"is_valid"`
	Issues          []string `json:"issues"`
	MissingPatterns []string `json:"missing_patterns"`
	SizeRatio       float64  `json:"size_ratio"`
}

// BlockError describes one failing code block.
type BlockError struct {
	Block       int    `json:"block"`
	Error       string `json:"error"`
	CodePreview string `json:"code_preview"`
}

// CheckResult aggregates a syntax check run over all fenced blocks.
type CheckResult struct {
	TotalBlocks int          `json:"total_blocks"`
	Passed      int          `json:"passed"`
	Failed      int          `json:"failed"`
	Skipped     int          `json:"skipped"`
	PassRate    float64      `json:"pass_rate"`
	Errors      []BlockError `json:"errors"`
}

// ProgressFunc reports per-block progress during a check run.
type ProgressFunc func(current, total int, message string)

// Validator validates assembled documents. The parser may be nil, in which
// case example checking reports everything as skipped.
type Validator struct {
	parser jac.Parser

	// MinSizeRatio is the smallest acceptable output/input size ratio.
	MinSizeRatio float64
	// RequiredPatternRatio is the fraction of input patterns that must be
	// preserved in the output.
	RequiredPatternRatio float64
	// Classify tunes block classification heuristics.
	Classify ClassifyOptions
	// Workers bounds concurrent parser invocations. Zero means NumCPU.
	Workers int
}

// New builds a validator with default thresholds.
func New(parser jac.Parser) *Validator {
	return &Validator{
		parser:               parser,
		MinSizeRatio:         0.1,
		RequiredPatternRatio: 0.5,
	}
}

var fencedBlockRe = regexp.MustCompile("(?is)```(?:jac|jaclang)[ \t]*\n(.*?)```")

// Block is a fenced code block with its position among all extracted blocks.
type Block struct {
	Index int
	Code  string
}

// ExtractBlocks returns the jac-tagged fenced blocks in text, skipping
// trivial ones.
func ExtractBlocks(text string) []Block {
	var blocks []Block
	for i, m := range fencedBlockRe.FindAllStringSubmatch(text, -1) {
		code := strings.TrimSpace(m[1])
		if code == "" || strings.HasPrefix(code, "//") || len(code) <= 10 {
			continue
		}
		blocks = append(blocks, Block{Index: i, Code: code})
	}
	return blocks
}

// ValidateStage compares a compression stage's output to its input: output
// must be non-empty, not too small, keep code fences balanced, and preserve
// enough of the input's critical patterns.
func (v *Validator) ValidateStage(inputText, outputText string) StageResult {
	if strings.TrimSpace(outputText) == "" {
		return StageResult{Issues: []string{"Output is empty"}}
	}

	var issues, missing []string
	inputLen := len(inputText)
	if inputLen == 0 {
		inputLen = 1
	}
	sizeRatio := float64(len(outputText)) / float64(inputLen)

	if sizeRatio < v.MinSizeRatio {
		issues = append(issues, fmt.Sprintf("Output too small: %.1f%% of input (min: %.0f%%)",
			sizeRatio*100, v.MinSizeRatio*100))
	}

	if strings.Count(outputText, "```")%2 != 0 {
		issues = append(issues, "Unbalanced code fences")
	}

	inputPatterns := FindPatterns(inputText)
	outputPatterns := FindPatterns(outputText)
	if len(inputPatterns) > 0 {
		for name := range inputPatterns {
			if !outputPatterns[name] {
				missing = append(missing, name)
			}
		}
		preserved := float64(len(outputPatterns)) / float64(len(inputPatterns))
		if preserved < v.RequiredPatternRatio {
			issues = append(issues, fmt.Sprintf("Too many patterns lost: %.0f%% preserved (need %.0f%%)",
				preserved*100, v.RequiredPatternRatio*100))
		}
	}

	return StageResult{
		IsValid:         len(issues) == 0,
		Issues:          issues,
		MissingPatterns: missing,
		SizeRatio:       sizeRatio,
	}
}

// ValidateFinal checks the final document for the required pattern set and
// balanced fences. A nil required list uses DefaultRequiredPatterns.
func (v *Validator) ValidateFinal(text string, required []string) StageResult {
	if required == nil {
		required = DefaultRequiredPatterns
	}

	var issues, missing []string
	found := FindPatterns(text)
	for _, name := range required {
		if !found[name] {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		issues = append(issues, fmt.Sprintf("Missing required patterns: %v", missing))
	}
	if strings.Count(text, "```")%2 != 0 {
		issues = append(issues, "Unbalanced code fences")
	}

	return StageResult{
		IsValid:         len(issues) == 0,
		Issues:          issues,
		MissingPatterns: missing,
		SizeRatio:       1.0,
	}
}

// parseJac parses code and returns whether it is syntactically valid plus
// the first error message when it is not.
func (v *Validator) parseJac(ctx context.Context, code string) (bool, string) {
	mod, err := v.parser.Parse(ctx, code, "check.jac")
	if err != nil {
		return false, err.Error()
	}
	if mod.HasSyntaxErrors() {
		if len(mod.SyntaxErrors) > 0 {
			return false, mod.SyntaxErrors[0]
		}
		return false, "syntax error"
	}
	return true, ""
}

// blockOutcome: ok==nil means skipped.
type blockOutcome struct {
	ok  *bool
	err string
}

// checkBlock classifies and parses one block. Statement blocks are rewritten
// first; declaration and complete blocks get one rewrite retry on failure.
func (v *Validator) checkBlock(ctx context.Context, code string) blockOutcome {
	switch classifyBlock(code, v.Classify) {
	case CategoryFragment, CategoryClientSide, CategoryAPINotation:
		return blockOutcome{}
	case CategoryStatements:
		ok, errMsg := v.parseJac(ctx, prepareForCheck(code))
		return blockOutcome{ok: &ok, err: errMsg}
	}

	ok, errMsg := v.parseJac(ctx, code)
	if !ok {
		ok, errMsg = v.parseJac(ctx, prepareForCheck(code))
	}
	return blockOutcome{ok: &ok, err: errMsg}
}

// checkAll runs the parser over every block with bounded concurrency,
// keeping results in block order.
func (v *Validator) checkAll(ctx context.Context, blocks []Block, onProgress ProgressFunc) []blockOutcome {
	workers := v.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers > len(blocks) {
		workers = len(blocks)
	}

	outcomes := make([]blockOutcome, len(blocks))
	jobs := make(chan int)

	var mu sync.Mutex
	completed := 0

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				outcomes[i] = v.checkBlock(ctx, blocks[i].Code)
				if onProgress != nil {
					mu.Lock()
					completed++
					onProgress(completed, len(blocks), fmt.Sprintf("Validating %d/%d blocks", completed, len(blocks)))
					mu.Unlock()
				}
			}
		}()
	}
	for i := range blocks {
		jobs <- i
	}
	close(jobs)
	wg.Wait()
	return outcomes
}

func preview(code string, limit int) string {
	p := code
	if len(p) > limit {
		p = p[:limit]
	}
	p = strings.ReplaceAll(p, "\n", " ")
	if len(code) > limit {
		p += "..."
	}
	return p
}

// tally folds block outcomes into a CheckResult. Skipped blocks do not count
// toward the pass rate.
func tally(blocks []Block, outcomes []blockOutcome, previewLen int, emptyRate float64) CheckResult {
	result := CheckResult{TotalBlocks: len(blocks)}
	for i, out := range outcomes {
		switch {
		case out.ok == nil:
			result.Skipped++
		case *out.ok:
			result.Passed++
		default:
			result.Failed++
			result.Errors = append(result.Errors, BlockError{
				Block:       blocks[i].Index + 1,
				Error:       out.err,
				CodePreview: preview(blocks[i].Code, previewLen),
			})
		}
	}
	checked := result.Passed + result.Failed
	if checked > 0 {
		result.PassRate = float64(result.Passed) / float64(checked) * 100
	} else {
		result.PassRate = emptyRate
	}
	return result
}

// ValidateAllExamples syntax-checks every fenced block. A pass rate below
// failThreshold logs a warning with up to five sample errors; zero threshold
// uses the default.
func (v *Validator) ValidateAllExamples(ctx context.Context, text string, failThreshold float64, onProgress ProgressFunc) CheckResult {
	if failThreshold == 0 {
		failThreshold = DefaultFailThreshold
	}
	blocks := ExtractBlocks(text)
	if len(blocks) == 0 {
		return CheckResult{}
	}

	outcomes := v.checkAll(ctx, blocks, onProgress)
	result := tally(blocks, outcomes, 150, 0.0)

	if result.Passed+result.Failed > 0 && result.PassRate < failThreshold {
		log.Printf("WARNING: Only %.1f%% of examples passed syntax check (threshold: %.0f%%)",
			result.PassRate, failThreshold)
		for i, e := range result.Errors {
			if i >= 5 {
				break
			}
			log.Printf("  Block %d: %s", e.Block, e.Error)
		}
	}
	return result
}

// ValidateStrict syntax-checks every fenced block and returns a
// ValidationError if any block fails. A block-free document passes with a
// full rate.
func (v *Validator) ValidateStrict(ctx context.Context, text string, onProgress ProgressFunc) (CheckResult, error) {
	blocks := ExtractBlocks(text)
	if len(blocks) == 0 {
		return CheckResult{PassRate: 100.0}, nil
	}

	outcomes := v.checkAll(ctx, blocks, onProgress)
	result := tally(blocks, outcomes, 200, 100.0)

	if result.Failed > 0 {
		var lines []string
		for i, e := range result.Errors {
			if i >= 5 {
				break
			}
			lines = append(lines, fmt.Sprintf("  [block %d] %s", e.Block, e.Error))
		}
		return result, &ValidationError{
			FailedBlocks: result.Failed,
			Summary:      strings.Join(lines, "\n"),
		}
	}
	return result, nil
}
