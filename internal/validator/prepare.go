package validator

import (
	"fmt"
	"regexp"
	"strings"
)

// typeRefPatterns match typed connect and traversal forms that reference an
// archetype by name. Referenced names that are never declared in the block
// get a stub so the parse can succeed.
var typeRefPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\+>:\s*(\w+)\s*\(`),
	regexp.MustCompile(`\+\+>\s*(\w+)\s*\(`),
	regexp.MustCompile(`<\+:\s*(\w+)\s*\(`),
	regexp.MustCompile(`\[->\s*:\s*(\w+)\s*:\s*->`),
	regexp.MustCompile(`\[-->\]\s*\(\?\s*:\s*(\w+)`),
}

var (
	archetypeNameRe = regexp.MustCompile(`\b(?:node|edge|walker|obj|enum|class)\s+(\w+)`)
	declStartRe     = regexp.MustCompile(
		`^\s*(?:node|walker|edge|obj|enum|class|async\s+walker|def|async\s+def|` +
			`can|import|glob|test|include)\b`)
)

// stripInlineComment removes a trailing # comment, keeping # characters that
// appear inside string literals.
func stripInlineComment(line string) string {
	var inStr byte
	for i := 0; i < len(line); i++ {
		ch := line[i]
		if (ch == '"' || ch == '\'') && (i == 0 || line[i-1] != '\\') {
			switch {
			case inStr == 0:
				inStr = ch
			case inStr == ch:
				inStr = 0
			}
		} else if ch == '#' && inStr == 0 {
			return strings.TrimRight(line[:i], " \t")
		}
	}
	return line
}

// prepareForCheck rewrites a block so it can parse standalone: inline
// comments stripped, stubs synthesized for referenced but undeclared
// archetypes, and bare statements wrapped in a with entry block.
func prepareForCheck(code string) string {
	lines := strings.Split(code, "\n")
	cleaned := make([]string, len(lines))
	for i, ln := range lines {
		cleaned[i] = stripInlineComment(ln)
	}
	code = strings.Join(cleaned, "\n")

	defined := make(map[string]bool)
	for _, m := range archetypeNameRe.FindAllStringSubmatch(code, -1) {
		defined[m[1]] = true
	}

	var stubs []string
	for _, p := range typeRefPatterns {
		for _, m := range p.FindAllStringSubmatch(code, -1) {
			name := m[1]
			if !defined[name] && name[0] >= 'A' && name[0] <= 'Z' {
				stubs = append(stubs, fmt.Sprintf("node %s { has val: int = 0; }", name))
				defined[name] = true
			}
		}
	}

	var declarations, statements []string
	inDecl := false
	braceDepth := 0

	for _, line := range cleaned {
		stripped := strings.TrimSpace(line)

		if inDecl {
			declarations = append(declarations, line)
			braceDepth += strings.Count(stripped, "{") - strings.Count(stripped, "}")
			if braceDepth <= 0 {
				inDecl = false
				braceDepth = 0
			}
			continue
		}

		if stripped == "" || strings.HasPrefix(stripped, "#") {
			continue
		}

		if declStartRe.MatchString(stripped) {
			declarations = append(declarations, line)
			braceDepth = strings.Count(stripped, "{") - strings.Count(stripped, "}")
			if braceDepth > 0 {
				inDecl = true
			}
		} else {
			statements = append(statements, line)
		}
	}

	if len(statements) == 0 {
		if len(stubs) > 0 {
			return strings.Join(append(stubs, declarations...), "\n")
		}
		return code
	}

	parts := append([]string{}, stubs...)
	parts = append(parts, declarations...)
	parts = append(parts, "with entry {")
	for _, s := range statements {
		parts = append(parts, "    "+s)
	}
	parts = append(parts, "}")
	return strings.Join(parts, "\n")
}
