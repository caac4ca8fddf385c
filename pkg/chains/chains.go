// Package chains builds workflows from natural-language requests. The
// planner drafts an ordered list of commands as free text; the
// constructor produces an executable run workflow as schema-constrained
// JSON, with one repair round when the model's output fails to parse or
// resolve against the command library.
package chains

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/chopralab/sciborg/pkg/command"
	"github.com/chopralab/sciborg/pkg/llms"
	"github.com/chopralab/sciborg/pkg/workflow"
)

const planPrompt = `Find relevant commands in the provided command library JSON to plan out how the user request could be fulfilled. Only return a numbered list of commands, in the order they should run, with a short reason for each. Do not invent commands that are not in the library.

User Request:
%s

Command Library:
%s`

// Planner drafts an ordered command plan for a request against a
// command library.
type Planner struct {
	llm     llms.Provider
	library *command.DriverLibrary
}

func NewPlanner(llm llms.Provider, library *command.DriverLibrary) *Planner {
	return &Planner{llm: llm, library: library}
}

// Plan returns a numbered list of library commands fulfilling the
// request.
func (p *Planner) Plan(ctx context.Context, request string) (string, error) {
	libraryJSON, err := libraryJSON(p.library)
	if err != nil {
		return "", err
	}

	prompt := fmt.Sprintf(planPrompt, request, libraryJSON)
	response, err := p.llm.Generate(ctx, []llms.Message{llms.UserMessage(prompt)}, nil)
	if err != nil {
		return "", fmt.Errorf("planning failed: %w", err)
	}
	return strings.TrimSpace(response.Text), nil
}

const constructPrompt = `Create a workflow from the provided command library JSON that fulfills the user request. Use only commands that are in the library, keep their names, microservice names and UUIDs exactly as given, and set parameter values from the request. Order the commands so the workflow runs correctly.

User Request:
%s

Command Library:
%s`

const repairPrompt = `The previous output you generated to the question was the following:
%s

The previous output generated an error. Please fix this error in your response.
Error:
%s`

// Constructor produces executable run workflows from requests. The
// output is constrained to the run workflow JSON schema and verified by
// resolving every command against the library before it is returned.
type Constructor struct {
	llm         llms.Provider
	library     *command.DriverLibrary
	interpreter *workflow.Interpreter
	schema      map[string]any
}

func NewConstructor(llm llms.Provider, library *command.DriverLibrary) (*Constructor, error) {
	schema, err := llms.SchemaFor(&workflow.RunWorkflow{})
	if err != nil {
		return nil, fmt.Errorf("failed to derive workflow schema: %w", err)
	}
	return &Constructor{
		llm:         llm,
		library:     library,
		interpreter: workflow.NewInterpreter(library),
		schema:      schema,
	}, nil
}

// Construct builds a run workflow for the request. A workflow that
// fails to parse or resolve is sent back to the model once, with the
// previous output and the error, before giving up.
func (c *Constructor) Construct(ctx context.Context, request string) (*workflow.RunWorkflow, error) {
	libraryJSON, err := libraryJSON(c.library)
	if err != nil {
		return nil, err
	}

	messages := []llms.Message{
		llms.UserMessage(fmt.Sprintf(constructPrompt, request, libraryJSON)),
	}

	var lastOutput string
	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		if attempt > 0 {
			messages = append(messages,
				llms.AssistantMessage(lastOutput),
				llms.UserMessage(fmt.Sprintf(repairPrompt, lastOutput, lastErr)),
			)
		}

		response, err := c.llm.GenerateStructured(ctx, messages, nil, &llms.StructuredOutputConfig{
			Format: "json",
			Schema: c.schema,
		})
		if err != nil {
			return nil, fmt.Errorf("construction failed: %w", err)
		}
		lastOutput = response.Text

		run, err := c.parse(response.Text)
		if err == nil {
			return run, nil
		}
		lastErr = err
	}

	return nil, fmt.Errorf("workflow construction failed after repair: %w", lastErr)
}

// ConstructAndRun builds the workflow and executes it against the
// library's driver commands.
func (c *Constructor) ConstructAndRun(ctx context.Context, request string) (*workflow.RunWorkflow, []command.Result, error) {
	run, err := c.Construct(ctx, request)
	if err != nil {
		return nil, nil, err
	}
	results, err := c.interpreter.InterpretAndRun(run)
	if err != nil {
		return run, nil, err
	}
	return run, results, nil
}

func (c *Constructor) parse(text string) (*workflow.RunWorkflow, error) {
	var run workflow.RunWorkflow
	if err := json.Unmarshal([]byte(text), &run); err != nil {
		return nil, fmt.Errorf("output is not a valid workflow: %w", err)
	}
	if run.Len() == 0 {
		return nil, fmt.Errorf("workflow contains no commands")
	}

	// Resolving checks every command exists in the library and its
	// parameters satisfy their specs.
	if _, err := c.interpreter.Interpret(&run); err != nil {
		return nil, err
	}
	return &run, nil
}

func libraryJSON(library *command.DriverLibrary) (string, error) {
	if library == nil {
		return "", fmt.Errorf("a command library is required")
	}
	encoded, err := json.Marshal(library.ToInfoLibrary())
	if err != nil {
		return "", fmt.Errorf("failed to encode command library: %w", err)
	}
	return string(encoded), nil
}
