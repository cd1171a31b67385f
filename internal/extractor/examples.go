package extractor

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

// CodeExample is one fenced snippet lifted from documentation, tagged with
// the construct type it illustrates.
type CodeExample struct {
	Code          string   `json:"code"`
	ConstructType string   `json:"construct_type"`
	SourceFile    string   `json:"source_file,omitempty"`
	LineCount     int      `json:"line_count"`
	Keywords      []string `json:"keywords,omitempty"`
}

// ExtractedContent aggregates one pass over a documentation corpus:
// signatures and examples grouped by construct type, plus the set of
// language keywords observed anywhere in the corpus.
type ExtractedContent struct {
	Signatures      map[string][]string      `json:"signatures"`
	Examples        map[string][]CodeExample `json:"examples"`
	KeywordsFound   map[string]bool          `json:"-"`
	TotalSignatures int                      `json:"total_signatures"`
	TotalExamples   int                      `json:"total_examples"`
	SourceFiles     int                      `json:"source_files"`
}

func newExtractedContent() *ExtractedContent {
	return &ExtractedContent{
		Signatures:    map[string][]string{},
		Examples:      map[string][]CodeExample{},
		KeywordsFound: map[string]bool{},
	}
}

// SortedKeywords returns the observed keywords in lexical order.
func (c *ExtractedContent) SortedKeywords() []string {
	out := make([]string, 0, len(c.KeywordsFound))
	for k := range c.KeywordsFound {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// constructKeywords maps a detector regex to the construct type it signals.
// Order matters for classification: the first match tags the example.
var constructKeywords = []struct {
	construct string
	re        *regexp.Regexp
}{
	{"node", regexp.MustCompile(`\bnode\s+\w+`)},
	{"edge", regexp.MustCompile(`\bedge\s+\w+`)},
	{"walker", regexp.MustCompile(`\bwalker\s+\w+`)},
	{"obj", regexp.MustCompile(`\bobj\s+\w+`)},
	{"enum", regexp.MustCompile(`\benum\s+\w+`)},
	{"glob", regexp.MustCompile(`\bglob\s+\w+`)},
	{"function", regexp.MustCompile(`\bdef\s+\w+`)},
	{"ability", regexp.MustCompile(`\bcan\s+\w+`)},
	{"test", regexp.MustCompile(`\btest\s+\w+`)},
	{"spawn", regexp.MustCompile(`\bspawn\b`)},
	{"visit", regexp.MustCompile(`\bvisit\b`)},
	{"report", regexp.MustCompile(`\breport\b`)},
	{"connect", regexp.MustCompile(`\+\+>|-->|<\+\+|<--`)},
	{"entry", regexp.MustCompile(`with\s+(entry|exit)`)},
	{"llm", regexp.MustCompile(`by\s+llm`)},
	{"import", regexp.MustCompile(`\bimport\b`)},
}

// detectKeywords returns the construct keywords present in code, in detector
// order.
func detectKeywords(code string) []string {
	var found []string
	for _, ck := range constructKeywords {
		if ck.re.MatchString(code) {
			found = append(found, ck.construct)
		}
	}
	return found
}

// classifyExample picks the construct type a snippet illustrates: the first
// matching structural detector, falling back to "general".
func classifyExample(code string) string {
	kws := detectKeywords(code)
	if len(kws) == 0 {
		return "general"
	}
	return kws[0]
}

// ContentExtractor runs the deterministic corpus pass: signatures via the
// configured extraction strategy, examples straight from fenced blocks.
type ContentExtractor struct {
	extractor *Extractor
}

func NewContentExtractor(ex *Extractor) *ContentExtractor {
	return &ContentExtractor{extractor: ex}
}

// ExtractFromDirectory walks the corpus of .md and .jac files under dir and
// builds the combined ExtractedContent.
func (ce *ContentExtractor) ExtractFromDirectory(dir string) (*ExtractedContent, error) {
	content := newExtractedContent()

	err := filepath.WalkDir(dir, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.IsDir() {
			return nil
		}
		switch filepath.Ext(entry.Name()) {
		case ".md":
			data, rerr := os.ReadFile(path)
			if rerr != nil {
				return rerr
			}
			content.SourceFiles++
			ce.addMarkdown(content, string(data), filepath.Base(path))
		case ".jac":
			data, rerr := os.ReadFile(path)
			if rerr != nil {
				return rerr
			}
			content.SourceFiles++
			ce.addSource(content, string(data), filepath.Base(path))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("extract from %s: %w", dir, err)
	}
	return content, nil
}

func (ce *ContentExtractor) addMarkdown(content *ExtractedContent, markdown, sourceFile string) {
	for _, m := range fencedJacRe.FindAllStringSubmatch(markdown, -1) {
		code := strings.TrimSpace(m[1])
		if code == "" {
			continue
		}
		kws := detectKeywords(code)
		construct := "general"
		if len(kws) > 0 {
			construct = kws[0]
		}
		content.Examples[construct] = append(content.Examples[construct], CodeExample{
			Code:          code,
			ConstructType: construct,
			SourceFile:    sourceFile,
			LineCount:     strings.Count(code, "\n") + 1,
			Keywords:      kws,
		})
		content.TotalExamples++
		for _, kw := range kws {
			content.KeywordsFound[kw] = true
		}
	}

	for _, d := range ce.extractor.ExtractFromMarkdown(markdown) {
		ce.addDefinition(content, d)
	}
}

func (ce *ContentExtractor) addSource(content *ExtractedContent, code, sourceFile string) {
	for _, kw := range detectKeywords(code) {
		content.KeywordsFound[kw] = true
	}
	for _, d := range ce.extractor.Extract(code, sourceFile) {
		ce.addDefinition(content, d)
	}
}

func (ce *ContentExtractor) addDefinition(content *ExtractedContent, d *Definition) {
	group := string(d.Kind)
	switch d.Kind {
	case KindFunction, KindAbility:
		group = "function"
	}
	content.Signatures[group] = append(content.Signatures[group], d.Skeleton())
	content.TotalSignatures++
}

// signatureGroupOrder fixes the section order of FormatForAssembly output.
var signatureGroupOrder = []string{"node", "edge", "walker", "obj", "class", "enum", "function", "glob", "test"}

// FormatForAssembly renders the extracted content as the monolithic prompt
// body: signature sections, then example sections, then the keyword list.
func (ce *ContentExtractor) FormatForAssembly(content *ExtractedContent) string {
	var parts []string

	parts = append(parts, "# EXTRACTED SIGNATURES (from source docs)")
	for _, group := range signatureGroupOrder {
		sigs := content.Signatures[group]
		if len(sigs) == 0 {
			continue
		}
		parts = append(parts, "\n## "+strings.ToUpper(group))
		seen := map[string]bool{}
		for _, sig := range sigs {
			normalized := strings.Join(strings.Fields(sig), " ")
			if len(normalized) <= 10 || seen[normalized] {
				continue
			}
			seen[normalized] = true
			parts = append(parts, sig)
		}
	}

	parts = append(parts, "\n\n# EXTRACTED EXAMPLES")
	constructs := make([]string, 0, len(content.Examples))
	for ct := range content.Examples {
		constructs = append(constructs, ct)
	}
	sort.Strings(constructs)
	for _, ct := range constructs {
		examples := content.Examples[ct]
		if len(examples) == 0 {
			continue
		}
		parts = append(parts, "\n## "+strings.ToUpper(ct)+" EXAMPLES")
		for _, ex := range examples {
			parts = append(parts, "```jac\n"+ex.Code+"\n```")
		}
	}

	parts = append(parts, "\n\n# KEYWORDS FOUND: "+strings.Join(content.SortedKeywords(), ", "))

	return strings.Join(parts, "\n")
}

// VerifySyntaxPatterns checks which tracked syntax patterns appear anywhere
// in the corpus's examples. Used to annotate the assembly prompt with what
// the reference material actually demonstrates.
func (ce *ContentExtractor) VerifySyntaxPatterns(content *ExtractedContent) map[string]bool {
	var corpus strings.Builder
	for _, examples := range content.Examples {
		for _, ex := range examples {
			corpus.WriteString(ex.Code)
			corpus.WriteString("\n")
		}
	}
	text := corpus.String()

	verified := map[string]bool{}
	for _, ck := range constructKeywords {
		verified[ck.construct] = ck.re.MatchString(text)
	}
	return verified
}
