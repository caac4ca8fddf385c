// Package microservice assembles driver microservices from registered
// methods and serves them over HTTP. A built microservice publishes a
// descriptor remote agents use to construct commands and workflows.
package microservice

import (
	"fmt"

	"github.com/chopralab/sciborg/pkg/command"
	"github.com/chopralab/sciborg/pkg/param"
)

// Method is a driver function registered with the builder.
type Method struct {
	// Name of the command.
	Name string
	// Desc describes what the command does.
	Desc string
	// Params are the command's parameter specs, keyed by name.
	Params map[string]*param.Spec
	// Returns maps result keys to their descriptions. Empty means the
	// command returns nothing.
	Returns map[string]string
	// Func executes the command.
	Func command.Func
}

// Builder assembles a driver microservice from registered methods.
type Builder struct {
	name    string
	desc    string
	methods []Method
}

func NewBuilder(name, desc string) *Builder {
	return &Builder{name: name, desc: desc}
}

// Add registers a method. Calls chain.
func (b *Builder) Add(method Method) *Builder {
	b.methods = append(b.methods, method)
	return b
}

// Build validates every method and assembles the microservice.
func (b *Builder) Build() (*command.DriverMicroservice, error) {
	if b.name == "" {
		return nil, fmt.Errorf("microservice requires a name")
	}

	ms := command.NewDriverMicroservice(b.name, b.desc)
	for _, method := range b.methods {
		cmd, err := command.NewDriverCommand(command.InfoCommand{
			Name:            method.Name,
			Desc:            method.Desc,
			Parameters:      method.Params,
			HasReturn:       len(method.Returns) > 0,
			ReturnSignature: method.Returns,
		}, method.Func)
		if err != nil {
			return nil, fmt.Errorf("method '%s': %w", method.Name, err)
		}
		if err := ms.Add(cmd); err != nil {
			return nil, err
		}
	}
	return ms, nil
}
