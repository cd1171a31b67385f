package extractor

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"jacref/internal/jac"
)

// Strategy is one way of turning Jac source into definitions. Strategies are
// interchangeable; the scanner is always available, the AST walker only when
// the compiler is.
type Strategy interface {
	Name() string
	Extract(code, filePath string) []*Definition
}

// Extractor runs a primary strategy with the scanner as fallback when the
// primary yields nothing for a given input.
type Extractor struct {
	primary  Strategy
	fallback Strategy
}

// New picks the AST strategy when a usable parser is supplied, otherwise the
// scanner alone. Selection happens once, at construction.
func New(parser jac.Parser) *Extractor {
	scan := ScanStrategy{}
	if parser != nil {
		if cp, ok := parser.(*jac.CommandParser); ok && !cp.Available() {
			return &Extractor{primary: scan}
		}
		return &Extractor{primary: ASTStrategy{Parser: parser}, fallback: scan}
	}
	return &Extractor{primary: scan}
}

// StrategyName reports which strategy handles input first.
func (e *Extractor) StrategyName() string { return e.primary.Name() }

// Extract parses code into deduplicated definitions.
func (e *Extractor) Extract(code, filePath string) []*Definition {
	defs := e.primary.Extract(code, filePath)
	if len(defs) == 0 && e.fallback != nil {
		defs = e.fallback.Extract(code, filePath)
	}
	return Deduplicate(defs)
}

var fencedJacRe = regexp.MustCompile("(?is)```jac(?:lang)?[ \t]*\n(.*?)```")

// ExtractFromMarkdown pulls definitions out of fenced jac blocks. Partial
// snippets with one unclosed brace get it appended before parsing.
func (e *Extractor) ExtractFromMarkdown(markdown string) []*Definition {
	var all []*Definition
	for _, m := range fencedJacRe.FindAllStringSubmatch(markdown, -1) {
		code := m[1]
		if strings.Count(code, "{") == strings.Count(code, "}")+1 {
			code += "\n}"
		}
		all = append(all, e.Extract(code, "")...)
	}
	return Deduplicate(all)
}

// FileResult holds what was extracted from one source file.
type FileResult struct {
	File        string
	Definitions []*Definition
	Err         error
}

// DirectoryResult aggregates a corpus walk.
type DirectoryResult struct {
	Files       []FileResult
	Definitions []*Definition
	TotalFiles  int
	Totals      map[string]int
}

// ProcessFile extracts from one .jac file on disk.
func (e *Extractor) ProcessFile(path string) FileResult {
	data, err := os.ReadFile(path)
	if err != nil {
		return FileResult{File: path, Err: fmt.Errorf("read %s: %w", path, err)}
	}
	defs := e.Extract(string(data), filepath.Base(path))
	return FileResult{File: path, Definitions: defs}
}

// ProcessDirectory walks dir recursively, extracting from every .jac file.
// Per-file errors are recorded, never fatal.
func (e *Extractor) ProcessDirectory(dir string) (*DirectoryResult, error) {
	result := &DirectoryResult{Totals: map[string]int{}}

	err := filepath.WalkDir(dir, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".jac") {
			return nil
		}
		result.TotalFiles++
		fr := e.ProcessFile(path)
		result.Files = append(result.Files, fr)
		if fr.Err == nil {
			result.Definitions = append(result.Definitions, fr.Definitions...)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", dir, err)
	}

	for k, v := range CountByKind(result.Definitions) {
		result.Totals[k] = v
	}
	return result, nil
}

// Skeleton renders the directory result as one body-less reference document.
func (r *DirectoryResult) Skeleton() string {
	return RenderSkeleton(r.Definitions, r.TotalFiles)
}
