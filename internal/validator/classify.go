package validator

import (
	"regexp"
	"strings"
)

// BlockCategory classifies a fenced code block for checking purposes.
type BlockCategory string

const (
	CategoryComplete     BlockCategory = "complete"
	CategoryDeclarations BlockCategory = "declarations"
	CategoryStatements   BlockCategory = "statements"
	CategoryClientSide   BlockCategory = "client_side"
	CategoryAPINotation  BlockCategory = "api_notation"
	CategoryFragment     BlockCategory = "fragment"
)

var (
	topLevelRe = regexp.MustCompile(
		`^\s*(?:node|walker|edge|obj|enum|class|async\s+walker|` +
			`def|async\s+def|can|import|glob|test|include|with\s+entry)\b`)
	clientBlockRe   = regexp.MustCompile(`\bcl\s*\{`)
	svImportRe      = regexp.MustCompile(`\bsv\s+import\b`)
	jsxRe           = regexp.MustCompile(`<[A-Z]\w+[\s/>]`)
	nodeDefRe       = regexp.MustCompile(`\bnode\s+\w+`)
	anyArchetypeRe  = regexp.MustCompile(`\b(?:node|walker|edge|obj|enum|class)\s+\w+`)
	graphTypeRe     = regexp.MustCompile(`\b(?:node|walker|obj)\s+\w+`)
	withEntryRe     = regexp.MustCompile(`with\s+entry`)
	topLevelFuncRe  = regexp.MustCompile(`(?m)^\s*(?:def|can)\s+\w+`)
	importStmtRe    = regexp.MustCompile(`(?m)^\s*import\s+`)
	globStmtRe      = regexp.MustCompile(`(?m)^\s*glob\s+`)
	bracketedExprRe = regexp.MustCompile(`^\s*\[[-<>:!\w\s,()?.]+\]\s*$`)
)

var fragmentMarkers = []string{"...", "# ...", "// ...", "/* ... */", "...}", "{..."}

// ClassifyOptions tunes the fragment heuristics. Zero values take the
// defaults.
type ClassifyOptions struct {
	// MinLines below which a block is a fragment.
	MinLines int
	// StandaloneLines is the minimum non-blank line count before the
	// standalone-expression ratio applies.
	StandaloneLines int
	// StandaloneRatio above which a block is a syntax-reference fragment.
	StandaloneRatio float64
}

func (o ClassifyOptions) withDefaults() ClassifyOptions {
	if o.MinLines == 0 {
		o.MinLines = 2
	}
	if o.StandaloneLines == 0 {
		o.StandaloneLines = 5
	}
	if o.StandaloneRatio == 0 {
		o.StandaloneRatio = 0.5
	}
	return o
}

// nonBlankLines returns trimmed lines that are neither empty nor comments.
func nonBlankLines(code string) []string {
	var out []string
	for _, ln := range strings.Split(strings.TrimSpace(code), "\n") {
		t := strings.TrimSpace(ln)
		if t == "" || strings.HasPrefix(t, "#") || strings.HasPrefix(t, "//") {
			continue
		}
		out = append(out, t)
	}
	return out
}

// classifyBlock decides how a block should be checked. Fragments, client-side
// UI code and API notation are skipped; statement blocks get wrapped before
// parsing.
func classifyBlock(code string, opts ClassifyOptions) BlockCategory {
	opts = opts.withDefaults()
	nonBlank := nonBlankLines(code)

	if len(nonBlank) < opts.MinLines {
		return CategoryFragment
	}
	for _, marker := range fragmentMarkers {
		if strings.Contains(code, marker) {
			return CategoryFragment
		}
	}

	if clientBlockRe.MatchString(code) || svImportRe.MatchString(code) {
		return CategoryClientSide
	}
	if jsxRe.MatchString(code) && !nodeDefRe.MatchString(code) {
		return CategoryClientSide
	}

	if strings.Contains(code, "__jac__.") && !graphTypeRe.MatchString(code) {
		return CategoryAPINotation
	}

	// Syntax reference blocks are mostly independent one-liner demos that
	// do not form a parseable program.
	standalone := 0
	for _, ln := range nonBlank {
		trimmed := strings.TrimRight(ln, " \t")
		if bracketedExprRe.MatchString(ln) ||
			(!strings.HasSuffix(trimmed, ";") && !strings.HasSuffix(trimmed, "{") &&
				!strings.HasSuffix(trimmed, "}") && !topLevelRe.MatchString(ln)) {
			standalone++
		}
	}
	if len(nonBlank) >= opts.StandaloneLines &&
		float64(standalone)/float64(len(nonBlank)) > opts.StandaloneRatio {
		return CategoryFragment
	}

	hasArchetype := anyArchetypeRe.MatchString(code)
	hasEntry := withEntryRe.MatchString(code)
	hasTopLevelFunc := topLevelFuncRe.MatchString(code)

	if hasArchetype || (hasEntry && hasTopLevelFunc) {
		return CategoryComplete
	}

	bare := 0
	for _, ln := range nonBlank {
		if !topLevelRe.MatchString(ln) {
			bare++
		}
	}
	if bare > 0 {
		return CategoryStatements
	}
	return CategoryDeclarations
}
