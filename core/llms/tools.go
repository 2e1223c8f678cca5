package llms

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
)

// Tool describes a function the model may call during generation.
type Tool struct {
	Name        string
	Description string
	// Parameters is the JSON schema of the tool's argument object.
	Parameters *jsonschema.Schema

	// Execute runs the tool with the raw JSON arguments the model produced.
	Execute func(ctx context.Context, arguments string) (string, error)
}

// NewTool builds a tool whose argument schema is reflected from T and whose
// arguments are unmarshalled into T before execution.
func NewTool[T any](name, description string, execute func(context.Context, T) (string, error)) Tool {
	reflector := jsonschema.Reflector{DoNotReference: true}
	var zero T

	return Tool{
		Name:        name,
		Description: description,
		Parameters:  reflector.Reflect(zero),
		Execute: func(ctx context.Context, arguments string) (string, error) {
			var args T
			if err := json.Unmarshal([]byte(arguments), &args); err != nil {
				return "", fmt.Errorf("failed to unmarshal tool arguments: %w", err)
			}
			return execute(ctx, args)
		},
	}
}
