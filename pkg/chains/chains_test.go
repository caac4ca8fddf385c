package chains

import (
	"context"
	"strings"
	"testing"

	"github.com/chopralab/sciborg/pkg/command"
	"github.com/chopralab/sciborg/pkg/llms"
	"github.com/chopralab/sciborg/pkg/param"
)

type scriptedLLM struct {
	responses []*llms.Response
	calls     [][]llms.Message
}

func (s *scriptedLLM) Generate(_ context.Context, messages []llms.Message, _ []llms.ToolDefinition) (*llms.Response, error) {
	s.calls = append(s.calls, messages)
	if len(s.responses) == 0 {
		return &llms.Response{Text: "done"}, nil
	}
	response := s.responses[0]
	s.responses = s.responses[1:]
	return response, nil
}

func (s *scriptedLLM) GenerateStructured(ctx context.Context, messages []llms.Message, tools []llms.ToolDefinition, _ *llms.StructuredOutputConfig) (*llms.Response, error) {
	return s.Generate(ctx, messages, tools)
}

func (s *scriptedLLM) GetModelName() string    { return "gpt-4o" }
func (s *scriptedLLM) GetMaxTokens() int       { return 4096 }
func (s *scriptedLLM) GetTemperature() float64 { return 0 }
func (s *scriptedLLM) Close() error            { return nil }

func testLibrary(t *testing.T) *command.DriverLibrary {
	t.Helper()

	ms := command.NewDriverMicroservice("synthesizer", "A microwave synthesizer.")
	cmds := []command.InfoCommand{
		{Name: "open_lid", Desc: "Open the lid."},
		{Name: "close_lid", Desc: "Close the lid."},
		{
			Name: "set_temperature",
			Desc: "Set the temperature.",
			Parameters: map[string]*param.Spec{
				"temperature": {
					Name:       "temperature",
					DataType:   param.TypeInt,
					LowerLimit: 25,
					UpperLimit: 250,
				},
			},
		},
	}
	for _, info := range cmds {
		cmd, err := command.NewDriverCommand(info, func(args command.Args) (command.Result, error) {
			return nil, nil
		})
		if err != nil {
			t.Fatalf("failed to build %s: %v", info.Name, err)
		}
		if err := ms.Add(cmd); err != nil {
			t.Fatalf("failed to add %s: %v", info.Name, err)
		}
	}

	library := command.NewDriverLibrary("lab")
	if err := library.Add(ms); err != nil {
		t.Fatalf("failed to add microservice: %v", err)
	}
	return library
}

func TestPlannerIncludesLibraryAndRequest(t *testing.T) {
	llm := &scriptedLLM{responses: []*llms.Response{
		{Text: "1. open_lid\n2. set_temperature\n3. close_lid"},
	}}
	planner := NewPlanner(llm, testLibrary(t))

	plan, err := planner.Plan(context.Background(), "Heat the sample to 150 C.")
	if err != nil {
		t.Fatalf("Plan() error = %v", err)
	}
	if !strings.Contains(plan, "open_lid") {
		t.Errorf("plan = %q", plan)
	}

	prompt := llm.calls[0][0].Content
	if !strings.Contains(prompt, "Heat the sample to 150 C.") {
		t.Errorf("prompt missing the request: %q", prompt)
	}
	if !strings.Contains(prompt, "set_temperature") {
		t.Errorf("prompt missing the command library: %q", prompt)
	}
}

const validWorkflowJSON = `{
  "name": "heat_sample",
  "commands": [
    {"name": "open_lid", "microservice": "synthesizer", "parameters": {}, "save_vars": {}},
    {"name": "set_temperature", "microservice": "synthesizer",
     "parameters": {"temperature": {"value": 150, "from_var": false, "var_name": ""}},
     "save_vars": {}},
    {"name": "close_lid", "microservice": "synthesizer", "parameters": {}, "save_vars": {}}
  ]
}`

func TestConstructorBuildsWorkflow(t *testing.T) {
	llm := &scriptedLLM{responses: []*llms.Response{{Text: validWorkflowJSON}}}
	constructor, err := NewConstructor(llm, testLibrary(t))
	if err != nil {
		t.Fatalf("NewConstructor() error = %v", err)
	}

	run, err := constructor.Construct(context.Background(), "Heat the sample to 150 C.")
	if err != nil {
		t.Fatalf("Construct() error = %v", err)
	}
	if run.Len() != 3 {
		t.Fatalf("workflow has %d commands, want 3", run.Len())
	}
	if run.Commands[1].Name != "set_temperature" {
		t.Errorf("second command = %q", run.Commands[1].Name)
	}
	if len(llm.calls) != 1 {
		t.Errorf("llm calls = %d, want 1", len(llm.calls))
	}
}

func TestConstructorRepairsInvalidOutput(t *testing.T) {
	llm := &scriptedLLM{responses: []*llms.Response{
		{Text: `{"name": "broken", "commands": [{"name": "melt_everything", "microservice": "synthesizer", "parameters": {}, "save_vars": {}}]}`},
		{Text: validWorkflowJSON},
	}}
	constructor, err := NewConstructor(llm, testLibrary(t))
	if err != nil {
		t.Fatalf("NewConstructor() error = %v", err)
	}

	run, err := constructor.Construct(context.Background(), "Heat the sample.")
	if err != nil {
		t.Fatalf("Construct() error = %v", err)
	}
	if run.Len() != 3 {
		t.Errorf("workflow has %d commands, want 3", run.Len())
	}

	if len(llm.calls) != 2 {
		t.Fatalf("llm calls = %d, want a repair round", len(llm.calls))
	}
	repair := llm.calls[1]
	last := repair[len(repair)-1].Content
	if !strings.Contains(last, "previous output generated an error") {
		t.Errorf("repair prompt = %q", last)
	}
	if !strings.Contains(last, "melt_everything") {
		t.Errorf("repair prompt should carry the failing output: %q", last)
	}
}

func TestConstructorGivesUpAfterOneRepair(t *testing.T) {
	llm := &scriptedLLM{responses: []*llms.Response{
		{Text: "not json"},
		{Text: "still not json"},
	}}
	constructor, err := NewConstructor(llm, testLibrary(t))
	if err != nil {
		t.Fatalf("NewConstructor() error = %v", err)
	}

	if _, err := constructor.Construct(context.Background(), "Heat the sample."); err == nil {
		t.Error("Construct() should fail after the repair round")
	}
	if len(llm.calls) != 2 {
		t.Errorf("llm calls = %d, want 2", len(llm.calls))
	}
}

func TestConstructAndRun(t *testing.T) {
	llm := &scriptedLLM{responses: []*llms.Response{{Text: validWorkflowJSON}}}
	constructor, err := NewConstructor(llm, testLibrary(t))
	if err != nil {
		t.Fatalf("NewConstructor() error = %v", err)
	}

	run, results, err := constructor.ConstructAndRun(context.Background(), "Heat the sample to 150 C.")
	if err != nil {
		t.Fatalf("ConstructAndRun() error = %v", err)
	}
	if run.Len() != 3 || len(results) != 3 {
		t.Errorf("got %d commands and %d results, want 3 and 3", run.Len(), len(results))
	}
}
