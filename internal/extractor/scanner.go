package extractor

import (
	"regexp"
	"strings"
)

// tokenizer walks Jac source byte by byte so brace matching can skip braces
// inside string literals, `#` line comments, and `#* ... *#` block comments.
type tokenizer struct {
	code string
	pos  int
}

func newTokenizer(code string) *tokenizer {
	return &tokenizer{code: code}
}

func (t *tokenizer) skipComment() {
	if t.pos+1 < len(t.code) && t.code[t.pos:t.pos+2] == "#*" {
		end := strings.Index(t.code[t.pos+2:], "*#")
		if end == -1 {
			t.pos = len(t.code)
			return
		}
		t.pos += 2 + end + 2
		return
	}
	for t.pos < len(t.code) && t.code[t.pos] != '\n' {
		t.pos++
	}
}

func (t *tokenizer) skipString() {
	quote := t.code[t.pos]
	t.pos++
	for t.pos < len(t.code) {
		ch := t.code[t.pos]
		t.pos++
		if ch == '\\' && t.pos < len(t.code) {
			t.pos++
		} else if ch == quote {
			return
		}
	}
}

// matchBrace returns the index of the closing brace matching the opener at
// start, or -1 when the source runs out first.
func (t *tokenizer) matchBrace(start int) int {
	t.pos = start
	if t.pos >= len(t.code) || t.code[t.pos] != '{' {
		return -1
	}

	depth := 0
	for t.pos < len(t.code) {
		switch ch := t.code[t.pos]; {
		case ch == '#':
			t.skipComment()
		case ch == '"' || ch == '\'':
			t.skipString()
		case ch == '{':
			depth++
			t.pos++
		case ch == '}':
			depth--
			t.pos++
			if depth == 0 {
				return t.pos - 1
			}
		default:
			t.pos++
		}
	}
	return -1
}

var (
	archetypeRe = regexp.MustCompile(
		`((?:#[^\n]*\n)*)?` + // leading comment block, becomes the docstring
			`(node|edge|walker|obj(?:ect)?|class|enum|test)\s+` +
			`(\w+)` +
			`(?:\s*<[^>]*>)?` + // generics, discarded
			`(?:\s*\(\s*([\w\s,]+?)\s*\))?` + // inheritance list
			`\s*\{`)

	hasRe = regexp.MustCompile(
		`(static\s+)?has\s+(\w+)\s*` +
			`(?::\s*([^=;]+?))?` +
			`(?:\s*=\s*([^;]+?))?` +
			`\s*;`)

	canRe = regexp.MustCompile(
		`(override\s+)?(static\s+)?(async\s+)?can\s+(\w+)` +
			`(?:\s*\(([^)]*)\))?` +
			`(?:\s*->\s*([^\s{]+))?` +
			`(?:\s+(with\s+[^{;]+?))?` +
			`\s*(?:\{|;)`)

	defRe = regexp.MustCompile(
		`(override\s+)?(static\s+)?(async\s+)?def\s+(\w+)` +
			`(?:\s*\(([^)]*)\))?` +
			`(?:\s*->\s*([^\s{;]+))?` +
			`\s*(?:\{|;)`)

	globRe = regexp.MustCompile(
		`glob\s+(\w+)\s*` +
			`(?::\s*([^=;]+?))?` +
			`(?:\s*=\s*([^;]+?))?` +
			`\s*;`)
)

// ScanStrategy extracts definitions with regexes plus tokenizer-backed brace
// matching. It needs no compiler and tolerates malformed input, at the cost
// of missing grammar features the regexes do not model.
type ScanStrategy struct{}

func (ScanStrategy) Name() string { return "scan" }

func (s ScanStrategy) Extract(code, filePath string) []*Definition {
	var defs []*Definition
	tok := newTokenizer(code)

	var covered [][2]int
	for _, m := range archetypeRe.FindAllStringSubmatchIndex(code, -1) {
		braceStart := m[1] - 1
		braceEnd := tok.matchBrace(braceStart)
		if braceEnd == -1 {
			continue
		}
		covered = append(covered, [2]int{m[0], braceEnd + 1})

		body := code[braceStart+1 : braceEnd]
		d := &Definition{
			Kind:       keywordKind(group(code, m, 2)),
			Name:       group(code, m, 3),
			Parent:     normalizeParent(group(code, m, 4)),
			Docstring:  parseDocstring(group(code, m, 1)),
			FileSource: filePath,
			LineNumber: strings.Count(code[:m[0]], "\n") + 1,
		}
		d.Attributes = scanAttributes(body)
		d.Abilities = scanAbilities(body)
		d.Functions = scanFunctions(body)
		defs = append(defs, d)
	}

	defs = append(defs, s.topLevelFunctions(code, covered, filePath)...)
	defs = append(defs, s.globals(code, covered, filePath)...)
	return defs
}

// topLevelFunctions finds def declarations outside every archetype body.
func (ScanStrategy) topLevelFunctions(code string, covered [][2]int, filePath string) []*Definition {
	var defs []*Definition
	for _, m := range defRe.FindAllStringSubmatchIndex(code, -1) {
		if inRanges(m[0], covered) {
			continue
		}
		fn := functionFromMatch(code, m)
		defs = append(defs, &Definition{
			Kind:       KindFunction,
			Name:       fn.Name,
			Functions:  []FunctionSignature{fn},
			FileSource: filePath,
			LineNumber: strings.Count(code[:m[0]], "\n") + 1,
		})
	}
	return defs
}

func (ScanStrategy) globals(code string, covered [][2]int, filePath string) []*Definition {
	var defs []*Definition
	for _, m := range globRe.FindAllStringSubmatchIndex(code, -1) {
		if inRanges(m[0], covered) {
			continue
		}
		name := group(code, m, 1)
		defs = append(defs, &Definition{
			Kind: KindGlobal,
			Name: name,
			Attributes: []Attribute{{
				Name:     name,
				TypeHint: strings.TrimSpace(group(code, m, 2)),
				Default:  strings.TrimSpace(group(code, m, 3)),
			}},
			FileSource: filePath,
			LineNumber: strings.Count(code[:m[0]], "\n") + 1,
		})
	}
	return defs
}

func scanAttributes(body string) []Attribute {
	var attrs []Attribute
	for _, m := range hasRe.FindAllStringSubmatch(body, -1) {
		attrs = append(attrs, Attribute{
			Name:     m[2],
			TypeHint: strings.TrimSpace(m[3]),
			Default:  strings.TrimSpace(m[4]),
			IsStatic: m[1] != "",
		})
	}
	return attrs
}

func scanAbilities(body string) []AbilitySignature {
	var abilities []AbilitySignature
	for _, m := range canRe.FindAllStringSubmatch(body, -1) {
		abilities = append(abilities, AbilitySignature{
			Name:       m[4],
			Params:     strings.TrimSpace(m[5]),
			HasParams:  strings.Contains(m[0], "("),
			ReturnType: strings.TrimSpace(m[6]),
			Trigger:    strings.TrimSpace(m[7]),
			IsAsync:    m[3] != "",
			IsStatic:   m[2] != "",
			IsOverride: m[1] != "",
		})
	}
	return abilities
}

func scanFunctions(body string) []FunctionSignature {
	var fns []FunctionSignature
	for _, m := range defRe.FindAllStringSubmatchIndex(body, -1) {
		fns = append(fns, functionFromMatch(body, m))
	}
	return fns
}

func functionFromMatch(code string, m []int) FunctionSignature {
	return FunctionSignature{
		Name:       group(code, m, 4),
		Params:     strings.TrimSpace(group(code, m, 5)),
		HasParams:  strings.Contains(code[m[0]:m[1]], "("),
		ReturnType: strings.TrimSpace(group(code, m, 6)),
		IsAsync:    group(code, m, 3) != "",
		IsStatic:   group(code, m, 2) != "",
		IsOverride: group(code, m, 1) != "",
	}
}

// group extracts submatch n from a FindAllStringSubmatchIndex result.
func group(code string, m []int, n int) string {
	lo, hi := m[2*n], m[2*n+1]
	if lo < 0 {
		return ""
	}
	return code[lo:hi]
}

func inRanges(pos int, ranges [][2]int) bool {
	for _, r := range ranges {
		if pos >= r[0] && pos < r[1] {
			return true
		}
	}
	return false
}

func keywordKind(keyword string) DefinitionKind {
	switch keyword {
	case "node":
		return KindNode
	case "edge":
		return KindEdge
	case "walker":
		return KindWalker
	case "obj", "object":
		return KindObject
	case "class":
		return KindClass
	case "enum":
		return KindEnum
	case "test":
		return KindTest
	default:
		return KindObject
	}
}

func normalizeParent(raw string) string {
	if raw == "" {
		return ""
	}
	parts := strings.Split(raw, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return strings.Join(parts, ", ")
}

// parseDocstring flattens a leading `#` comment block into one line. Lines
// starting with `##` are section markers, not docs, and are dropped.
func parseDocstring(block string) string {
	if block == "" {
		return ""
	}
	var lines []string
	for _, line := range strings.Split(strings.TrimSpace(block), "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimSpace(line[1:])
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, " ")
}
