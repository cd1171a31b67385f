package extractor

import (
	"context"
	"strings"

	"jacref/internal/jac"
)

// ASTStrategy builds definitions from the compiler's parse tree. It yields
// more faithful signatures than the scanner but requires the jac binary.
type ASTStrategy struct {
	Parser jac.Parser
}

func (ASTStrategy) Name() string { return "ast" }

func (s ASTStrategy) Extract(code, filePath string) []*Definition {
	if s.Parser == nil {
		return nil
	}
	mod, err := s.Parser.Parse(context.Background(), code, filePath)
	if err != nil || mod == nil || mod.HasSyntaxErrors() {
		return nil
	}

	var defs []*Definition
	for _, decl := range mod.Body {
		switch node := decl.(type) {
		case *jac.Archetype:
			defs = append(defs, archetypeDefinition(node, filePath))
		case *jac.Enum:
			defs = append(defs, &Definition{
				Kind:       KindEnum,
				Name:       node.Name,
				Parent:     normalizeParent(strings.Join(node.Bases, ", ")),
				FileSource: filePath,
			})
		case *jac.GlobalVars:
			for _, assign := range node.Assignments {
				defs = append(defs, &Definition{
					Kind: KindGlobal,
					Name: assign.Name,
					Attributes: []Attribute{{
						Name:     assign.Name,
						TypeHint: assign.Type,
						Default:  assign.Value,
					}},
					FileSource: filePath,
				})
			}
		case *jac.Ability:
			defs = append(defs, topLevelAbilityDefinition(node, filePath))
		}
	}
	return defs
}

func archetypeDefinition(node *jac.Archetype, filePath string) *Definition {
	d := &Definition{
		Kind:       keywordKind(node.ArchType),
		Name:       node.Name,
		Parent:     normalizeParent(strings.Join(node.Bases, ", ")),
		FileSource: filePath,
		IsAsync:    node.IsAsync,
	}

	for _, grp := range node.Has {
		for _, v := range grp.Vars {
			d.Attributes = append(d.Attributes, Attribute{
				Name:     v.Name,
				TypeHint: v.Type,
				Default:  v.Default,
				IsStatic: grp.IsStatic,
			})
		}
	}

	for _, ab := range node.Abilities {
		if ab.IsDef {
			d.Functions = append(d.Functions, functionFromAbility(&ab))
		} else {
			d.Abilities = append(d.Abilities, abilityFromDecl(&ab))
		}
	}
	return d
}

// topLevelAbilityDefinition wraps a free-standing can or def in its own
// definition so it survives deduplication alongside archetypes.
func topLevelAbilityDefinition(node *jac.Ability, filePath string) *Definition {
	if node.IsDef {
		fn := functionFromAbility(node)
		return &Definition{
			Kind:       KindFunction,
			Name:       fn.Name,
			Functions:  []FunctionSignature{fn},
			FileSource: filePath,
		}
	}
	ab := abilityFromDecl(node)
	return &Definition{
		Kind:       KindAbility,
		Name:       ab.Name,
		Abilities:  []AbilitySignature{ab},
		FileSource: filePath,
	}
}

func abilityFromDecl(node *jac.Ability) AbilitySignature {
	sig := AbilitySignature{
		Name:       node.Name,
		IsAsync:    node.IsAsync,
		IsStatic:   node.IsStatic,
		IsOverride: node.IsOverride,
	}
	if node.Func != nil {
		sig.Params = renderParams(node.Func.Params)
		sig.HasParams = true
		sig.ReturnType = node.Func.ReturnType
	}
	if node.Event != nil {
		sig.Trigger = node.Event.Raw
	}
	return sig
}

func functionFromAbility(node *jac.Ability) FunctionSignature {
	sig := FunctionSignature{
		Name:       node.Name,
		IsAsync:    node.IsAsync,
		IsStatic:   node.IsStatic,
		IsOverride: node.IsOverride,
	}
	if node.Func != nil {
		sig.Params = renderParams(node.Func.Params)
		sig.HasParams = true
		sig.ReturnType = node.Func.ReturnType
	}
	return sig
}

func renderParams(params []jac.Param) string {
	if len(params) == 0 {
		return ""
	}
	parts := make([]string, 0, len(params))
	for _, p := range params {
		s := p.Name
		if p.Type != "" {
			s += ": " + p.Type
		}
		if p.Default != "" {
			s += " = " + p.Default
		}
		parts = append(parts, s)
	}
	return strings.Join(parts, ", ")
}
