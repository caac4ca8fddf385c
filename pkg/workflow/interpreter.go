package workflow

import (
	"fmt"

	"github.com/chopralab/sciborg/pkg/command"
)

// Interpreter converts wire-form run workflows into executable driver
// workflows against a library of driver commands. It runs on the device
// side of the system, where the actual functions live.
type Interpreter struct {
	Library *command.DriverLibrary
}

func NewInterpreter(library *command.DriverLibrary) *Interpreter {
	if library == nil {
		library = command.NewDriverLibrary("default")
	}
	return &Interpreter{Library: library}
}

// Interpret resolves each run command against the library and builds a
// driver workflow with cloned commands so library state is untouched.
func (i *Interpreter) Interpret(run *RunWorkflow) (*DriverWorkflow, error) {
	if run == nil {
		return nil, fmt.Errorf("cannot interpret a nil workflow")
	}

	driver := NewDriverWorkflow(run.Name)
	for _, rc := range run.Commands {
		cmd, err := i.Library.Resolve(rc)
		if err != nil {
			return nil, err
		}

		clone, err := cmd.Clone()
		if err != nil {
			return nil, err
		}
		if err := clone.ApplyRunCommand(rc); err != nil {
			return nil, err
		}
		driver.Append(clone)
	}
	return driver, nil
}

// InterpretCommand wraps a single run command in a one-step workflow and
// interprets it.
func (i *Interpreter) InterpretCommand(rc *command.RunCommand, name string) (*DriverWorkflow, error) {
	if name == "" {
		name = "undefined"
	}
	return i.Interpret(&RunWorkflow{Name: name, Commands: []*command.RunCommand{rc}})
}

// InterpretAndRun interprets a run workflow and executes it, feeding
// each step its static kwargs and save-var bindings from the wire form.
func (i *Interpreter) InterpretAndRun(run *RunWorkflow) ([]command.Result, error) {
	driver, err := i.Interpret(run)
	if err != nil {
		return nil, err
	}

	listArgs := make([]command.Args, 0, run.Len())
	listSaveVars := make([]map[string]string, 0, run.Len())
	for _, rc := range run.Commands {
		listArgs = append(listArgs, rc.Kwargs())
		listSaveVars = append(listSaveVars, rc.SaveVars)
	}

	return driver.Exec(listArgs, listSaveVars)
}
