package microservice

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/chopralab/sciborg/pkg/command"
	"github.com/chopralab/sciborg/pkg/llms"
	"github.com/chopralab/sciborg/pkg/utils"
)

// FunctionInfo describes a driver function for LLM-assisted descriptor
// generation: the function's signature and documentation as text.
type FunctionInfo struct {
	Name         string
	Microservice string
	Signature    string
	Doc          string
}

const describePrompt = `Create a command from the below information. Do not include any parameters that are not in the function signature. Data types must be one of str, int, float or bool. Mark a parameter optional only when the signature gives it a default.

name: %s
microservice: %s
signature: %s
documentation:
%s`

// DescribeCommand asks the LLM to produce a command descriptor for a
// driver function from its signature and documentation. The output is
// constrained to the command descriptor schema and validated before it
// is returned.
func DescribeCommand(ctx context.Context, llm llms.Provider, fn FunctionInfo) (*command.InfoCommand, error) {
	if fn.Name == "" || fn.Signature == "" {
		return nil, fmt.Errorf("function name and signature are required")
	}

	schema, err := llms.SchemaFor(&command.InfoCommand{})
	if err != nil {
		return nil, fmt.Errorf("failed to derive command schema: %w", err)
	}

	prompt := fmt.Sprintf(describePrompt, fn.Name, fn.Microservice, fn.Signature, fn.Doc)
	response, err := llm.GenerateStructured(ctx,
		[]llms.Message{llms.UserMessage(prompt)},
		nil,
		&llms.StructuredOutputConfig{Format: "json", Schema: schema},
	)
	if err != nil {
		return nil, fmt.Errorf("descriptor generation failed: %w", err)
	}

	var info command.InfoCommand
	if err := json.Unmarshal([]byte(strings.TrimSpace(response.Text)), &info); err != nil {
		return nil, fmt.Errorf("descriptor is not valid JSON: %w", err)
	}
	if err := info.Validate(); err != nil {
		return nil, fmt.Errorf("generated descriptor is invalid: %w", err)
	}
	return &info, nil
}

// SaveDescriptor writes a microservice descriptor as JSON into the
// state directory under basePath and returns the file path.
func SaveDescriptor(basePath string, info *command.InfoMicroservice) (string, error) {
	dir, err := utils.EnsureDataDir(basePath)
	if err != nil {
		return "", err
	}

	data, err := json.MarshalIndent(info, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode descriptor: %w", err)
	}

	path := filepath.Join(dir, info.Name+".json")
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write descriptor: %w", err)
	}
	return path, nil
}

// LoadDescriptor reads a microservice descriptor from a JSON file.
func LoadDescriptor(path string) (*command.InfoMicroservice, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read descriptor: %w", err)
	}

	var info command.InfoMicroservice
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, fmt.Errorf("failed to parse descriptor: %w", err)
	}
	if err := info.Validate(); err != nil {
		return nil, fmt.Errorf("descriptor is invalid: %w", err)
	}
	return &info, nil
}
