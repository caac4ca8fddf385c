// Package workflow sequences commands into ordered, executable
// procedures. Run workflows are the serializable wire form, driver
// workflows execute against bound functions with a shared globals map,
// and the interpreter converts between the two against a command
// library.
package workflow

import (
	"fmt"

	"github.com/chopralab/sciborg/pkg/command"
)

// RunWorkflow is an ordered list of run commands in wire form.
type RunWorkflow struct {
	Name     string                `json:"name"`
	Commands []*command.RunCommand `json:"commands"`
}

func (w *RunWorkflow) Append(cmd *command.RunCommand) {
	w.Commands = append(w.Commands, cmd)
}

func (w *RunWorkflow) Len() int {
	return len(w.Commands)
}

// InfoWorkflow is an ordered list of described commands without
// execution details.
type InfoWorkflow struct {
	Name     string                 `json:"name"`
	Commands []*command.InfoCommand `json:"commands"`
}

func (w *InfoWorkflow) Append(cmd *command.InfoCommand) {
	w.Commands = append(w.Commands, cmd)
}

func (w *InfoWorkflow) Len() int {
	return len(w.Commands)
}

// ToRunWorkflow converts each info command into a run command. The
// varNames and saveVars slices align positionally with the commands and
// may be nil, or contain nil entries for steps with no bindings.
func (w *InfoWorkflow) ToRunWorkflow(varNames, saveVars []map[string]string) (*RunWorkflow, error) {
	if varNames == nil {
		varNames = make([]map[string]string, len(w.Commands))
	}
	if saveVars == nil {
		saveVars = make([]map[string]string, len(w.Commands))
	}
	if len(varNames) != len(w.Commands) {
		return nil, fmt.Errorf("command and var name lists must be of the same length: %d != %d", len(w.Commands), len(varNames))
	}
	if len(saveVars) != len(w.Commands) {
		return nil, fmt.Errorf("command and save var lists must be of the same length: %d != %d", len(w.Commands), len(saveVars))
	}

	run := &RunWorkflow{Name: w.Name + "_run"}
	for i, info := range w.Commands {
		rc, err := info.ToRunCommand(varNames[i], saveVars[i], nil)
		if err != nil {
			return nil, err
		}
		run.Append(rc)
	}
	return run, nil
}

// DriverWorkflow is an ordered list of executable commands sharing a
// globals map. Commands read bound parameters from Globals and write
// saved results back to it.
type DriverWorkflow struct {
	Name     string
	Commands []*command.DriverCommand
	Globals  map[string]any
}

func NewDriverWorkflow(name string) *DriverWorkflow {
	return &DriverWorkflow{
		Name:    name,
		Globals: make(map[string]any),
	}
}

func (w *DriverWorkflow) Append(cmd *command.DriverCommand) {
	w.Commands = append(w.Commands, cmd)
}

func (w *DriverWorkflow) Len() int {
	return len(w.Commands)
}

// ClearGlobals resets the shared globals map.
func (w *DriverWorkflow) ClearGlobals() {
	w.Globals = make(map[string]any)
}

// Exec runs the workflow commands in order. listArgs and listSaveVars
// align positionally with the commands; nil slices or entries mean no
// static args or no saved results for that step. Execution stops at the
// first failing command and returns the results accumulated so far.
func (w *DriverWorkflow) Exec(listArgs []command.Args, listSaveVars []map[string]string) ([]command.Result, error) {
	if w.Globals == nil {
		w.Globals = make(map[string]any)
	}
	if listArgs == nil {
		listArgs = make([]command.Args, len(w.Commands))
	}
	if listSaveVars == nil {
		listSaveVars = make([]map[string]string, len(w.Commands))
	}
	if len(listArgs) != len(w.Commands) {
		return nil, fmt.Errorf("command and argument lists must be of the same length: %d != %d", len(w.Commands), len(listArgs))
	}
	if len(listSaveVars) != len(w.Commands) {
		return nil, fmt.Errorf("command and save var lists must be of the same length: %d != %d", len(w.Commands), len(listSaveVars))
	}

	results := make([]command.Result, 0, len(w.Commands))
	for i, cmd := range w.Commands {
		result, err := cmd.Execute(w.Globals, listSaveVars[i], listArgs[i])
		if err != nil {
			return results, fmt.Errorf("workflow '%s' step %d (%s): %w", w.Name, i, cmd.Name, err)
		}
		results = append(results, result)
	}
	return results, nil
}

// ToInfoWorkflow strips execution details from every command.
func (w *DriverWorkflow) ToInfoWorkflow() *InfoWorkflow {
	info := &InfoWorkflow{Name: w.Name}
	for _, cmd := range w.Commands {
		info.Append(cmd.ToInfoCommand())
	}
	return info
}
