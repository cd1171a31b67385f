package jac

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeModule_DispatchesByKind(t *testing.T) {
	dump := `{
		"name": "graph.jac",
		"body": [
			{"kind": "archetype", "arch_type": "node", "name": "City",
			 "has": [{"vars": [{"name": "name", "type": "str"}]}],
			 "abilities": [{"name": "describe", "is_def": true,
			                "func": {"params": [{"name": "verbose", "type": "bool"}], "return_type": "str"}}]},
			{"kind": "enum", "name": "Color", "bases": ["Base"]},
			{"kind": "global_vars", "assignments": [{"name": "limit", "value": "5"}]},
			{"kind": "ability", "name": "main", "event": {"raw": "with entry"}}
		],
		"errors": []
	}`

	mod, err := DecodeModule([]byte(dump))
	require.NoError(t, err)
	assert.Equal(t, "graph.jac", mod.Name)
	assert.False(t, mod.HasSyntaxErrors())
	require.Len(t, mod.Body, 4)

	arch, ok := mod.Body[0].(*Archetype)
	require.True(t, ok)
	assert.Equal(t, "node", arch.ArchType)
	assert.Equal(t, "City", arch.Name)
	require.Len(t, arch.Has, 1)
	assert.Equal(t, "name", arch.Has[0].Vars[0].Name)
	require.Len(t, arch.Abilities, 1)
	assert.Equal(t, "str", arch.Abilities[0].Func.ReturnType)

	enum, ok := mod.Body[1].(*Enum)
	require.True(t, ok)
	assert.Equal(t, []string{"Base"}, enum.Bases)

	globals, ok := mod.Body[2].(*GlobalVars)
	require.True(t, ok)
	assert.Equal(t, "limit", globals.Assignments[0].Name)

	ability, ok := mod.Body[3].(*Ability)
	require.True(t, ok)
	assert.Equal(t, "with entry", ability.Event.Raw)
}

func TestDecodeModule_SkipsUnknownKinds(t *testing.T) {
	dump := `{"name": "m.jac", "body": [
		{"kind": "import_stmt", "path": "os"},
		{"kind": "archetype", "arch_type": "walker", "name": "Visitor"}
	], "errors": []}`

	mod, err := DecodeModule([]byte(dump))
	require.NoError(t, err)
	require.Len(t, mod.Body, 1)
	arch := mod.Body[0].(*Archetype)
	assert.Equal(t, "Visitor", arch.Name)
}

func TestDecodeModule_CarriesSyntaxErrors(t *testing.T) {
	dump := `{"name": "bad.jac", "body": [], "errors": ["line 3: missing semicolon", "line 7: unexpected token"]}`

	mod, err := DecodeModule([]byte(dump))
	require.NoError(t, err)
	assert.True(t, mod.HasSyntaxErrors())
	assert.Equal(t, "line 3: missing semicolon", mod.FirstError())
}

func TestDecodeModule_RejectsMalformedDump(t *testing.T) {
	_, err := DecodeModule([]byte("not json"))
	assert.Error(t, err)
}

func TestNewCommandParser_DefaultsBinary(t *testing.T) {
	assert.Equal(t, "jac", NewCommandParser("").Binary)
	assert.Equal(t, "jac", NewCommandParser("   ").Binary)
	assert.Equal(t, "jac-nightly", NewCommandParser("jac-nightly").Binary)
}

func TestCommandParser_Available(t *testing.T) {
	assert.False(t, NewCommandParser("definitely-not-a-real-binary-xyz").Available())
}
