// Package jac holds the parse-tree model for Jac declarations and the
// boundary to the Jac compiler. The compiler itself is an external service:
// jacref only consumes its AST dump and its syntax verdict, never its full
// diagnostics.
package jac

import (
	"encoding/json"
	"fmt"
)

// Decl is one top-level declaration in a parsed module. Concrete variants are
// Archetype, Enum, GlobalVars and Ability; consumers dispatch with a type
// switch rather than probing for optional fields.
type Decl interface {
	declNode()
}

// Module is the parse result for one source unit. A module with syntax errors
// still carries whatever body the parser recovered; callers must consult
// HasSyntaxErrors before trusting Body.
type Module struct {
	Name         string
	Body         []Decl
	SyntaxErrors []string
}

// HasSyntaxErrors reports whether the parse produced any syntax diagnostics.
func (m *Module) HasSyntaxErrors() bool {
	return len(m.SyntaxErrors) > 0
}

// FirstError returns the first syntax diagnostic, or "" when the parse was clean.
func (m *Module) FirstError() string {
	if len(m.SyntaxErrors) == 0 {
		return ""
	}
	return m.SyntaxErrors[0]
}

// Archetype is a node/edge/walker/obj/class declaration with its member block.
type Archetype struct {
	ArchType  string     `json:"arch_type"`
	Name      string     `json:"name"`
	Bases     []string   `json:"bases,omitempty"`
	IsAsync   bool       `json:"is_async,omitempty"`
	Has       []HasGroup `json:"has,omitempty"`
	Abilities []Ability  `json:"abilities,omitempty"`
}

// Enum is an enum declaration. Member values are not modeled: the extractor
// only needs the name and base list.
type Enum struct {
	Name  string   `json:"name"`
	Bases []string `json:"bases,omitempty"`
}

// GlobalVars is one `glob` statement, possibly declaring several variables.
type GlobalVars struct {
	Assignments []Assignment `json:"assignments"`
}

// Ability is a `can` or `def` member, or a free-standing one at module level.
// Exactly one of Func and Event is set for signatured abilities; both may be
// nil for a bare `can name;` declaration.
type Ability struct {
	Name       string    `json:"name"`
	IsDef      bool      `json:"is_def,omitempty"`
	IsAsync    bool      `json:"is_async,omitempty"`
	IsStatic   bool      `json:"is_static,omitempty"`
	IsOverride bool      `json:"is_override,omitempty"`
	Func       *FuncSig  `json:"func,omitempty"`
	Event      *EventSig `json:"event,omitempty"`
}

// FuncSig is a parameter list plus optional return type.
type FuncSig struct {
	Params     []Param `json:"params,omitempty"`
	ReturnType string  `json:"return_type,omitempty"`
}

// EventSig is an event-binding clause, e.g. "with Person entry". Raw keeps the
// clause exactly as the compiler unparsed it.
type EventSig struct {
	Raw string `json:"raw"`
}

// Param is one formal parameter.
type Param struct {
	Name    string `json:"name"`
	Type    string `json:"type,omitempty"`
	Default string `json:"default,omitempty"`
}

// HasGroup is one `has` statement; a single statement can declare several
// variables and the static modifier applies to the whole group.
type HasGroup struct {
	IsStatic bool     `json:"is_static,omitempty"`
	Vars     []HasVar `json:"vars"`
}

// HasVar is one declared attribute.
type HasVar struct {
	Name    string `json:"name"`
	Type    string `json:"type,omitempty"`
	Default string `json:"default,omitempty"`
}

// Assignment is one global variable assignment.
type Assignment struct {
	Name  string `json:"name"`
	Type  string `json:"type,omitempty"`
	Value string `json:"value,omitempty"`
}

func (*Archetype) declNode()  {}
func (*Enum) declNode()       {}
func (*GlobalVars) declNode() {}
func (*Ability) declNode()    {}

// moduleEnvelope mirrors the compiler's AST dump wire format.
type moduleEnvelope struct {
	Name   string          `json:"name"`
	Body   []declEnvelope  `json:"body"`
	Errors []string        `json:"errors"`
}

type declEnvelope struct {
	Kind string          `json:"kind"`
	Raw  json.RawMessage `json:"-"`
}

func (d *declEnvelope) UnmarshalJSON(data []byte) error {
	var probe struct {
		Kind string `json:"kind"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return err
	}
	d.Kind = probe.Kind
	d.Raw = append(d.Raw[:0], data...)
	return nil
}

// DecodeModule decodes the compiler's JSON AST dump into a Module. Body items
// with an unknown kind tag are skipped: newer compiler versions may emit
// constructs this model does not cover, and extraction should degrade rather
// than fail.
func DecodeModule(data []byte) (*Module, error) {
	var env moduleEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode ast dump: %w", err)
	}

	mod := &Module{
		Name:         env.Name,
		SyntaxErrors: env.Errors,
	}
	for _, item := range env.Body {
		decl, err := decodeDecl(item)
		if err != nil {
			return nil, err
		}
		if decl != nil {
			mod.Body = append(mod.Body, decl)
		}
	}
	return mod, nil
}

func decodeDecl(env declEnvelope) (Decl, error) {
	switch env.Kind {
	case "archetype":
		var d Archetype
		if err := json.Unmarshal(env.Raw, &d); err != nil {
			return nil, fmt.Errorf("decode archetype: %w", err)
		}
		return &d, nil
	case "enum":
		var d Enum
		if err := json.Unmarshal(env.Raw, &d); err != nil {
			return nil, fmt.Errorf("decode enum: %w", err)
		}
		return &d, nil
	case "global_vars":
		var d GlobalVars
		if err := json.Unmarshal(env.Raw, &d); err != nil {
			return nil, fmt.Errorf("decode global_vars: %w", err)
		}
		return &d, nil
	case "ability":
		var d Ability
		if err := json.Unmarshal(env.Raw, &d); err != nil {
			return nil, fmt.Errorf("decode ability: %w", err)
		}
		return &d, nil
	default:
		return nil, nil
	}
}
