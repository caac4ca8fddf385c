package main

import (
	"fmt"

	"github.com/chopralab/sciborg/pkg/command"
	"github.com/chopralab/sciborg/pkg/drivers"
)

// driver is a built-in instrument a CLI command can operate.
type driver struct {
	microservice *command.DriverMicroservice
	reset        func()
}

// builtinDriver instantiates one of the virtual instruments by name.
func builtinDriver(name string) (*driver, error) {
	switch name {
	case "microwave", "microwave_synthesizer":
		synth := drivers.NewMicrowaveSynthesizer()
		ms, err := synth.Microservice()
		if err != nil {
			return nil, err
		}
		return &driver{microservice: ms, reset: synth.Reset}, nil
	case "liquid_handler":
		handler := drivers.NewLiquidHandler()
		ms, err := handler.Microservice()
		if err != nil {
			return nil, err
		}
		return &driver{microservice: ms, reset: handler.Reset}, nil
	default:
		return nil, fmt.Errorf("unknown driver %q (available: microwave, liquid_handler)", name)
	}
}
