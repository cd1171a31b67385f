// Package extractor turns Jac source code into body-less structural
// signatures. Two strategies produce the same Definition shape: a regex and
// brace-matching scanner that needs no compiler, and an AST walker over the
// Jac compiler's parse tree.
package extractor

import (
	"fmt"
	"strings"
)

// DefinitionKind values mirror the Jac keywords they render as.
type DefinitionKind string

const (
	KindNode     DefinitionKind = "node"
	KindEdge     DefinitionKind = "edge"
	KindWalker   DefinitionKind = "walker"
	KindObject   DefinitionKind = "obj"
	KindClass    DefinitionKind = "class"
	KindEnum     DefinitionKind = "enum"
	KindAbility  DefinitionKind = "can"
	KindFunction DefinitionKind = "def"
	KindGlobal   DefinitionKind = "glob"
	KindTest     DefinitionKind = "test"
)

// kindOrder fixes the display order of skeleton sections.
var kindOrder = []DefinitionKind{
	KindNode, KindEdge, KindWalker, KindObject, KindClass,
	KindFunction, KindGlobal, KindEnum, KindTest,
}

var kindTitles = map[DefinitionKind]string{
	KindNode:     "Nodes",
	KindEdge:     "Edges",
	KindWalker:   "Walkers",
	KindObject:   "Objects",
	KindClass:    "Classes",
	KindFunction: "Functions",
	KindGlobal:   "Globals",
	KindEnum:     "Enums",
	KindTest:     "Tests",
}

// Attribute is one `has` declaration with its optional type and default.
type Attribute struct {
	Name     string `json:"name"`
	TypeHint string `json:"type_hint,omitempty"`
	Default  string `json:"default,omitempty"`
	IsStatic bool   `json:"is_static,omitempty"`
}

// Signature renders the attribute as a one-line declaration ending in ";".
func (a Attribute) Signature() string {
	var b strings.Builder
	if a.IsStatic {
		b.WriteString("static ")
	}
	b.WriteString("has ")
	b.WriteString(a.Name)
	if a.TypeHint != "" {
		b.WriteString(": ")
		b.WriteString(a.TypeHint)
	}
	if a.Default != "" {
		b.WriteString(" = ")
		b.WriteString(a.Default)
	}
	b.WriteString(";")
	return b.String()
}

// AbilitySignature is a `can` declaration without its body. Trigger holds the
// event clause, such as "with Person entry".
type AbilitySignature struct {
	Name       string `json:"name"`
	Params     string `json:"params,omitempty"`
	HasParams  bool   `json:"has_params,omitempty"`
	ReturnType string `json:"return_type,omitempty"`
	Trigger    string `json:"trigger,omitempty"`
	IsAsync    bool   `json:"is_async,omitempty"`
	IsStatic   bool   `json:"is_static,omitempty"`
	IsOverride bool   `json:"is_override,omitempty"`
}

func (a AbilitySignature) Signature() string {
	parts := make([]string, 0, 5)
	if a.IsOverride {
		parts = append(parts, "override")
	}
	if a.IsStatic {
		parts = append(parts, "static")
	}
	if a.IsAsync {
		parts = append(parts, "async")
	}
	parts = append(parts, "can")
	if a.Name != "" {
		parts = append(parts, a.Name)
	}
	sig := strings.Join(parts, " ")
	if a.Params != "" || a.HasParams {
		sig += "(" + a.Params + ")"
	}
	if a.ReturnType != "" {
		sig += " -> " + a.ReturnType
	}
	if a.Trigger != "" {
		sig += " " + a.Trigger
	}
	return sig + ";"
}

// FunctionSignature is a `def` declaration without its body.
type FunctionSignature struct {
	Name       string `json:"name"`
	Params     string `json:"params,omitempty"`
	HasParams  bool   `json:"has_params,omitempty"`
	ReturnType string `json:"return_type,omitempty"`
	IsAsync    bool   `json:"is_async,omitempty"`
	IsStatic   bool   `json:"is_static,omitempty"`
	IsOverride bool   `json:"is_override,omitempty"`
}

func (f FunctionSignature) Signature() string {
	parts := make([]string, 0, 5)
	if f.IsOverride {
		parts = append(parts, "override")
	}
	if f.IsStatic {
		parts = append(parts, "static")
	}
	if f.IsAsync {
		parts = append(parts, "async")
	}
	parts = append(parts, "def", f.Name)
	sig := strings.Join(parts, " ")
	if f.Params != "" || f.HasParams {
		sig += "(" + f.Params + ")"
	}
	if f.ReturnType != "" {
		sig += " -> " + f.ReturnType
	}
	return sig + ";"
}

// Definition is one structural declaration with its implementation discarded.
// (Kind, Name) is the natural dedup key.
type Definition struct {
	Kind       DefinitionKind      `json:"kind"`
	Name       string              `json:"name"`
	Parent     string              `json:"parent,omitempty"`
	Attributes []Attribute         `json:"attributes,omitempty"`
	Abilities  []AbilitySignature  `json:"abilities,omitempty"`
	Functions  []FunctionSignature `json:"functions,omitempty"`
	Docstring  string              `json:"docstring,omitempty"`
	FileSource string              `json:"file_source,omitempty"`
	LineNumber int                 `json:"line_number,omitempty"`
	IsAsync    bool                `json:"is_async,omitempty"`
}

// Skeleton renders the definition as body-less Jac. Functions and globals
// render without braces; everything else gets a header, one line per member,
// and a closing brace.
func (d *Definition) Skeleton() string {
	var lines []string

	if d.Docstring != "" {
		lines = append(lines, "# "+d.Docstring)
	}

	switch d.Kind {
	case KindFunction:
		for _, fn := range d.Functions {
			lines = append(lines, fn.Signature())
		}
		return strings.Join(lines, "\n")
	case KindGlobal:
		for _, attr := range d.Attributes {
			line := "glob " + attr.Name
			if attr.TypeHint != "" {
				line += ": " + attr.TypeHint
			}
			if attr.Default != "" {
				line += " = " + attr.Default
			}
			lines = append(lines, line+";")
		}
		return strings.Join(lines, "\n")
	}

	header := ""
	if d.IsAsync {
		header = "async "
	}
	header += fmt.Sprintf("%s %s", d.Kind, d.Name)
	if d.Parent != "" {
		header += "(" + d.Parent + ")"
	}
	lines = append(lines, header+" {")

	for _, attr := range d.Attributes {
		lines = append(lines, "    "+attr.Signature())
	}
	for _, ab := range d.Abilities {
		lines = append(lines, "    "+ab.Signature())
	}
	for _, fn := range d.Functions {
		lines = append(lines, "    "+fn.Signature())
	}
	lines = append(lines, "}")

	return strings.Join(lines, "\n")
}

// Merge folds other into d when (kind, name) match. Members union by name,
// the more complete field wins, and the longest docstring survives. Kind and
// Name never change.
func (d *Definition) Merge(other *Definition) {
	if other == nil || d.Kind != other.Kind || d.Name != other.Name {
		return
	}

	if len(other.Docstring) > len(d.Docstring) {
		d.Docstring = other.Docstring
	}
	if d.Parent == "" {
		d.Parent = other.Parent
	}

	attrIdx := make(map[string]int, len(d.Attributes))
	for i, a := range d.Attributes {
		attrIdx[a.Name] = i
	}
	for _, a := range other.Attributes {
		i, ok := attrIdx[a.Name]
		if !ok {
			d.Attributes = append(d.Attributes, a)
			continue
		}
		if d.Attributes[i].TypeHint == "" {
			d.Attributes[i].TypeHint = a.TypeHint
		}
		if d.Attributes[i].Default == "" {
			d.Attributes[i].Default = a.Default
		}
	}

	abSeen := make(map[string]bool, len(d.Abilities))
	for _, ab := range d.Abilities {
		abSeen[ab.Name] = true
	}
	for _, ab := range other.Abilities {
		if !abSeen[ab.Name] {
			d.Abilities = append(d.Abilities, ab)
			abSeen[ab.Name] = true
		}
	}

	fnSeen := make(map[string]bool, len(d.Functions))
	for _, fn := range d.Functions {
		fnSeen[fn.Name] = true
	}
	for _, fn := range other.Functions {
		if !fnSeen[fn.Name] {
			d.Functions = append(d.Functions, fn)
			fnSeen[fn.Name] = true
		}
	}
}

// Deduplicate groups definitions by (kind, name) and merges duplicates,
// preserving first-seen order.
func Deduplicate(defs []*Definition) []*Definition {
	type key struct {
		kind DefinitionKind
		name string
	}
	seen := make(map[key]*Definition, len(defs))
	var order []key
	for _, d := range defs {
		k := key{d.Kind, d.Name}
		if existing, ok := seen[k]; ok {
			existing.Merge(d)
		} else {
			seen[k] = d
			order = append(order, k)
		}
	}
	out := make([]*Definition, 0, len(order))
	for _, k := range order {
		out = append(out, seen[k])
	}
	return out
}

// RenderSkeleton produces the full skeleton document: a short provenance
// header followed by per-kind sections in fixed order.
func RenderSkeleton(defs []*Definition, totalFiles int) string {
	deduped := Deduplicate(defs)

	var sections []string
	sections = append(sections,
		"# Jac API Reference (Skeleton)",
		fmt.Sprintf("# Extracted from %d source files", totalFiles),
		fmt.Sprintf("# %d unique definitions (from %d total)", len(deduped), len(defs)),
		"",
	)

	byKind := make(map[DefinitionKind][]*Definition)
	for _, d := range deduped {
		byKind[d.Kind] = append(byKind[d.Kind], d)
	}

	for _, kind := range kindOrder {
		group := byKind[kind]
		if len(group) == 0 {
			continue
		}
		title, ok := kindTitles[kind]
		if !ok {
			title = string(kind)
		}
		sections = append(sections, "## "+title, "")
		for _, d := range group {
			sections = append(sections, d.Skeleton(), "")
		}
	}

	return strings.Join(sections, "\n")
}

// CountByKind aggregates per-kind totals for stats reporting. Ability counts
// include member abilities, not just top-level ones.
func CountByKind(defs []*Definition) map[string]int {
	counts := map[string]int{}
	for _, d := range defs {
		counts[string(d.Kind)]++
		counts["abilities"] += len(d.Abilities)
	}
	return counts
}
