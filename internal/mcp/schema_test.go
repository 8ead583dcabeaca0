package mcp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shyam-habarakada/agent-md/internal/manifest"
)

func TestBuildInputSchema_RequiredAndOptional(t *testing.T) {
	action := manifest.Action{
		Name: "add_todo",
		Params: []manifest.Param{
			{Name: "title", Type: "string", Required: true, Description: "The todo text"},
			{Name: "due", Type: "string", Required: false},
		},
	}

	schema := BuildInputSchema(action)

	assert.Equal(t, "object", schema.Type)
	assert.Equal(t, []string{"title"}, schema.Required)

	title, ok := schema.Properties["title"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "string", title["type"])
	assert.Equal(t, "The todo text", title["description"])

	due, ok := schema.Properties["due"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "string", due["type"])
	assert.NotContains(t, due, "description")
}

func TestBuildInputSchema_NoParams(t *testing.T) {
	schema := BuildInputSchema(manifest.Action{Name: "list_todos"})

	assert.Equal(t, "object", schema.Type)
	assert.Empty(t, schema.Properties)
	assert.Empty(t, schema.Required)
}

func TestBuildInputSchema_TypeMapping(t *testing.T) {
	action := manifest.Action{
		Name: "mixed",
		Params: []manifest.Param{
			{Name: "s", Type: "string"},
			{Name: "n", Type: "number"},
			{Name: "i", Type: "integer"},
			{Name: "b", Type: "boolean"},
			{Name: "x", Type: "datetime"},
		},
	}

	schema := BuildInputSchema(action)

	expected := map[string]string{
		"s": "string",
		"n": "number",
		"i": "number",
		"b": "boolean",
		"x": "string", // unrecognized tags project to string
	}
	for name, want := range expected {
		prop := schema.Properties[name].(map[string]interface{})
		assert.Equal(t, want, prop["type"], "param %s", name)
	}
}

func TestBuildInputSchema_RequiredKeepsDeclarationOrder(t *testing.T) {
	action := manifest.Action{
		Name: "move",
		Params: []manifest.Param{
			{Name: "from", Type: "string", Required: true},
			{Name: "note", Type: "string"},
			{Name: "to", Type: "string", Required: true},
		},
	}

	schema := BuildInputSchema(action)
	assert.Equal(t, []string{"from", "to"}, schema.Required)
}

func TestBuildInputSchema_DuplicateParamOverwrites(t *testing.T) {
	action := manifest.Action{
		Name: "dup",
		Params: []manifest.Param{
			{Name: "q", Type: "number"},
			{Name: "q", Type: "string", Description: "second wins"},
		},
	}

	schema := BuildInputSchema(action)
	require.Len(t, schema.Properties, 1)

	prop := schema.Properties["q"].(map[string]interface{})
	assert.Equal(t, "string", prop["type"])
	assert.Equal(t, "second wins", prop["description"])
}

func TestBuildTool_NameAndDescription(t *testing.T) {
	contract := &manifest.Contract{AppName: "Todo App"}
	action := manifest.Action{Name: "add_todo", Description: "Add a new todo item"}

	tool := BuildTool(contract, action, "agentmd")

	assert.Equal(t, "agentmd_add_todo", tool.Name)
	assert.Equal(t, "[Todo App] Add a new todo item", tool.Description)
	assert.Equal(t, "object", tool.InputSchema.Type)
}

func TestBuildTool_EmptyPrefixFallsBack(t *testing.T) {
	tool := BuildTool(&manifest.Contract{AppName: "App"}, manifest.Action{Name: "act"}, "")
	assert.Equal(t, DefaultToolPrefix+"_act", tool.Name)
}
