package mcp

import (
	"fmt"

	mcpTypes "github.com/mark3labs/mcp-go/mcp"

	"github.com/shyam-habarakada/agent-md/internal/manifest"
)

// DefaultToolPrefix namespaces the bridge's tools on the RPC surface.
const DefaultToolPrefix = "agentmd"

// BuildInputSchema derives a tool-call input schema from an action's
// parameter list. An action with no parameters gets an empty object schema
// with no required set. Repeated parameter names overwrite earlier entries
// in the property map, mirroring contract semantics; the required list keeps
// declaration order.
func BuildInputSchema(action manifest.Action) mcpTypes.ToolInputSchema {
	schema := mcpTypes.ToolInputSchema{
		Type:       "object",
		Properties: make(map[string]interface{}),
	}

	for _, param := range action.Params {
		prop := map[string]interface{}{
			"type": schemaType(param.Type),
		}
		if param.Description != "" {
			prop["description"] = param.Description
		}
		schema.Properties[param.Name] = prop

		if param.Required {
			schema.Required = append(schema.Required, param.Name)
		}
	}

	return schema
}

// schemaType maps a manifest type tag to a JSON schema type. Unrecognized
// tags fall back to string, the safest projection.
func schemaType(tag string) string {
	switch tag {
	case "string":
		return "string"
	case "number", "integer":
		return "number"
	case "boolean":
		return "boolean"
	default:
		return "string"
	}
}

// BuildTool projects one declared action into the tool exposed over RPC:
// the namespaced name, the app-bracketed description, and the derived input
// schema. Tools carry no state; they are recomputed from the contract on
// every tools/list.
func BuildTool(contract *manifest.Contract, action manifest.Action, prefix string) mcpTypes.Tool {
	if prefix == "" {
		prefix = DefaultToolPrefix
	}

	return mcpTypes.Tool{
		Name:        fmt.Sprintf("%s_%s", prefix, action.Name),
		Description: fmt.Sprintf("[%s] %s", contract.AppName, action.Description),
		InputSchema: BuildInputSchema(action),
	}
}
