// Package command models the callable operations a laboratory
// microservice exposes. An InfoCommand describes an operation without
// knowing how to execute it, a RunCommand is the wire form of an
// invocation, and a DriverCommand binds a Go function that performs the
// work against validated parameters.
package command

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/chopralab/sciborg/pkg/param"
)

// Args holds named arguments for a command invocation.
type Args map[string]any

// Result holds the named outputs of a command execution.
type Result map[string]any

// Func executes a command with fully resolved argument values.
type Func func(args Args) (Result, error)

// InfoCommand describes a command without execution details. It is the
// form published to agents and remote callers.
type InfoCommand struct {
	Name            string                 `json:"name" yaml:"name"`
	Microservice    string                 `json:"microservice" yaml:"microservice"`
	UUID            uuid.UUID              `json:"uuid" yaml:"uuid"`
	Desc            string                 `json:"desc,omitempty" yaml:"desc,omitempty"`
	Parameters      map[string]*param.Spec `json:"parameters" yaml:"parameters"`
	HasReturn       bool                   `json:"has_return" yaml:"has_return"`
	ReturnSignature map[string]string      `json:"return_signature,omitempty" yaml:"return_signature,omitempty"`
}

// Validate checks the command definition and its parameter specs.
func (c *InfoCommand) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("command requires a name")
	}
	if !c.HasReturn {
		c.ReturnSignature = nil
	}
	for name, spec := range c.Parameters {
		if spec == nil {
			return fmt.Errorf("command '%s' parameter '%s' has no spec", c.Name, name)
		}
		if err := spec.Validate(); err != nil {
			return fmt.Errorf("command '%s': %w", c.Name, err)
		}
	}
	return nil
}

// ToRunCommand builds an executable invocation of this command.
// varNames binds parameters to workflow globals resolved at run time,
// saveVars maps result keys to globals written after execution, and args
// sets static parameter values.
func (c *InfoCommand) ToRunCommand(varNames, saveVars map[string]string, args Args) (*RunCommand, error) {
	if varNames == nil {
		varNames = map[string]string{}
	}
	if saveVars == nil {
		saveVars = map[string]string{}
	}

	if c.ReturnSignature != nil {
		for key := range saveVars {
			if _, ok := c.ReturnSignature[key]; !ok {
				return nil, fmt.Errorf("key '%s' is not a valid return key for command '%s'", key, c.Name)
			}
		}
	}
	for key := range varNames {
		if _, ok := c.Parameters[key]; !ok {
			return nil, fmt.Errorf("variable name key '%s' does not correspond to a parameter of command '%s'", key, c.Name)
		}
	}
	for key := range args {
		if _, ok := c.Parameters[key]; !ok {
			return nil, fmt.Errorf("argument key '%s' does not correspond to a parameter of command '%s'", key, c.Name)
		}
	}

	parameters := make(map[string]*param.Param, len(c.Parameters))
	for name, spec := range c.Parameters {
		p, err := spec.New(nil)
		if err != nil {
			return nil, fmt.Errorf("command '%s': %w", c.Name, err)
		}
		if varName, ok := varNames[name]; ok {
			p.SetVarName(varName)
		}
		if value, ok := args[name]; ok {
			if err := p.Set(value); err != nil {
				return nil, fmt.Errorf("command '%s': %w", c.Name, err)
			}
		}
		parameters[name] = p
	}

	saved := make(map[string]string, len(saveVars))
	for k, v := range saveVars {
		saved[k] = v
	}

	return &RunCommand{
		Name:         c.Name,
		Microservice: c.Microservice,
		UUID:         c.UUID,
		Parameters:   parameters,
		SaveVars:     saved,
	}, nil
}

// RunCommand is the serializable form of a command invocation, addressed
// to a microservice by name and UUID.
type RunCommand struct {
	Name         string                  `json:"name"`
	Microservice string                  `json:"microservice"`
	UUID         uuid.UUID               `json:"uuid"`
	Parameters   map[string]*param.Param `json:"parameters"`
	SaveVars     map[string]string       `json:"save_vars"`
}

// Kwargs extracts static argument values, skipping parameters bound to
// workflow globals.
func (c *RunCommand) Kwargs() Args {
	args := make(Args)
	for name, p := range c.Parameters {
		if !p.FromVar {
			args[name] = p.Value
		}
	}
	return args
}

// DriverCommand binds an executable function to a described command.
// Arguments are validated against the parameter specs before the
// function runs.
type DriverCommand struct {
	Name            string                 `json:"name" yaml:"name"`
	Microservice    string                 `json:"microservice" yaml:"microservice"`
	UUID            uuid.UUID              `json:"uuid" yaml:"uuid"`
	Desc            string                 `json:"desc,omitempty" yaml:"desc,omitempty"`
	Parameters      map[string]*param.Spec `json:"parameters" yaml:"parameters"`
	HasReturn       bool                   `json:"has_return" yaml:"has_return"`
	ReturnSignature map[string]string      `json:"return_signature,omitempty" yaml:"return_signature,omitempty"`

	fn     Func
	params map[string]*param.Param
}

// NewDriverCommand builds a driver command and instantiates its working
// parameters at their defaults.
func NewDriverCommand(info InfoCommand, fn Func) (*DriverCommand, error) {
	if fn == nil {
		return nil, fmt.Errorf("driver command '%s' requires a function", info.Name)
	}
	if err := info.Validate(); err != nil {
		return nil, err
	}

	c := &DriverCommand{
		Name:            info.Name,
		Microservice:    info.Microservice,
		UUID:            info.UUID,
		Desc:            info.Desc,
		Parameters:      info.Parameters,
		HasReturn:       info.HasReturn,
		ReturnSignature: info.ReturnSignature,
		fn:              fn,
	}
	if err := c.initParams(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *DriverCommand) initParams() error {
	c.params = make(map[string]*param.Param, len(c.Parameters))
	for name, spec := range c.Parameters {
		p, err := spec.New(nil)
		if err != nil {
			return fmt.Errorf("command '%s': %w", c.Name, err)
		}
		c.params[name] = p
	}
	return nil
}

// Param returns the current value of a working parameter.
func (c *DriverCommand) Param(name string) (any, bool) {
	p, ok := c.params[name]
	if !ok {
		return nil, false
	}
	return p.Value, true
}

// SetParam assigns a working parameter, validating against its spec.
func (c *DriverCommand) SetParam(name string, value any) error {
	p, ok := c.params[name]
	if !ok {
		return fmt.Errorf("key '%s' not found, must be one of %v", name, c.paramNames())
	}
	return p.Set(value)
}

// SetVarName binds a working parameter to a workflow global.
func (c *DriverCommand) SetVarName(paramName, varName string) error {
	p, ok := c.params[paramName]
	if !ok {
		return fmt.Errorf("key '%s' not found, must be one of %v", paramName, c.paramNames())
	}
	p.SetVarName(varName)
	return nil
}

func (c *DriverCommand) paramNames() []string {
	names := make([]string, 0, len(c.params))
	for name := range c.params {
		names = append(names, name)
	}
	return names
}

// Execute runs the command. Static args and workflow globals update the
// working parameters first; if any assignment fails, all parameters are
// reverted to their prior values and the function is not called. Results
// named in saveVars are written back to globals.
func (c *DriverCommand) Execute(globals map[string]any, saveVars map[string]string, args Args) (Result, error) {
	if c.fn == nil {
		return nil, fmt.Errorf("command '%s' has no executable function", c.Name)
	}
	if globals == nil {
		globals = map[string]any{}
	}
	if saveVars == nil {
		saveVars = map[string]string{}
	}

	for key := range args {
		if _, ok := c.params[key]; !ok {
			return nil, fmt.Errorf("key '%s' not found, must be one of %v", key, c.paramNames())
		}
	}

	if err := c.updateParams(globals, args); err != nil {
		return nil, err
	}

	resolved := make(Args, len(c.params))
	for name, p := range c.params {
		resolved[name] = p.Value
	}

	result, err := c.fn(resolved)
	if err != nil {
		return nil, err
	}

	if !c.HasReturn {
		return nil, nil
	}

	for resultVar, globalVar := range saveVars {
		value, ok := result[resultVar]
		if !ok {
			return nil, fmt.Errorf("result key '%s' not found in output of command '%s'", resultVar, c.Name)
		}
		globals[globalVar] = value
	}
	return result, nil
}

// updateParams applies args then globals-bound values, reverting all
// parameters if any single assignment is invalid.
func (c *DriverCommand) updateParams(globals map[string]any, args Args) error {
	prev := make(map[string]any, len(c.params))
	for name, p := range c.params {
		prev[name] = p.Value
	}

	revert := func() {
		for name, value := range prev {
			c.params[name].Value = value
		}
	}

	for key, value := range args {
		if err := c.params[key].Set(value); err != nil {
			revert()
			return err
		}
	}

	for name, p := range c.params {
		if !p.FromVar {
			continue
		}
		value, ok := globals[p.VarName]
		if !ok {
			continue
		}
		if err := c.params[name].Set(value); err != nil {
			revert()
			return err
		}
	}
	return nil
}

// ToInfoCommand strips execution details, leaving the published form.
func (c *DriverCommand) ToInfoCommand() *InfoCommand {
	return &InfoCommand{
		Name:            c.Name,
		Microservice:    c.Microservice,
		UUID:            c.UUID,
		Desc:            c.Desc,
		Parameters:      c.Parameters,
		HasReturn:       c.HasReturn,
		ReturnSignature: c.ReturnSignature,
	}
}

// ApplyRunCommand copies parameter values and variable bindings from a
// run command onto the working parameters.
func (c *DriverCommand) ApplyRunCommand(rc *RunCommand) error {
	for name, p := range rc.Parameters {
		target, ok := c.params[name]
		if !ok {
			return fmt.Errorf("parameter '%s' of run command '%s' not found on driver command", name, rc.Name)
		}
		if p.FromVar {
			target.SetVarName(p.VarName)
			continue
		}
		if p.Value == nil {
			continue
		}
		if err := target.Set(p.Value); err != nil {
			return err
		}
	}
	return nil
}

// Clone returns a copy with freshly instantiated working parameters, so
// concurrent workflows do not share mutable state.
func (c *DriverCommand) Clone() (*DriverCommand, error) {
	clone := &DriverCommand{
		Name:            c.Name,
		Microservice:    c.Microservice,
		UUID:            c.UUID,
		Desc:            c.Desc,
		Parameters:      c.Parameters,
		HasReturn:       c.HasReturn,
		ReturnSignature: c.ReturnSignature,
		fn:              c.fn,
	}
	if err := clone.initParams(); err != nil {
		return nil, err
	}
	return clone, nil
}
