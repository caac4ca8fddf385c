package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/chopralab/sciborg/pkg/agent"
	"github.com/chopralab/sciborg/pkg/benchmark"
)

// BenchmarkCmd scores an agent against a task.
type BenchmarkCmd struct {
	Input       string   `help:"Task input given to the agent each iteration." required:""`
	Expect      []string `help:"Accepted final outputs (exact match, repeatable)."`
	ExpectRegex []string `name:"expect-regex" help:"Accepted final output patterns (repeatable)."`

	Driver     string `help:"Driver the agent operates (microwave, liquid_handler)." default:"microwave"`
	Agent      string `help:"Agent name from the config file."`
	Iterations int    `help:"Number of iterations to run." default:"10"`
}

func (c *BenchmarkCmd) Run(cli *CLI) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig(cli.Config)
	if err != nil {
		return err
	}

	drv, err := builtinDriver(c.Driver)
	if err != nil {
		return err
	}

	var comparator benchmark.Comparator
	switch {
	case len(c.Expect) > 0:
		comparator = benchmark.NewOutputComparator(c.Expect...)
	case len(c.ExpectRegex) > 0:
		comparator, err = benchmark.NewRegexComparator(c.ExpectRegex...)
		if err != nil {
			return err
		}
	default:
		return fmt.Errorf("--expect or --expect-regex is required")
	}

	factory := func() (*agent.Agent, error) {
		a, _, err := buildAgent(cfg, c.Agent, drv, nil)
		return a, err
	}

	runner, err := benchmark.NewRunner(factory, c.Input, comparator, benchmark.WithReset(drv.reset))
	if err != nil {
		return err
	}

	report, err := runner.Run(ctx, c.Iterations)
	if err != nil {
		return err
	}

	fmt.Printf("Iterations: %d\n", report.Iterations)
	fmt.Printf("Success:    %d\n", report.Success)
	fmt.Printf("Fail:       %d\n", report.Fail)
	fmt.Printf("Score:      %.2f\n", report.Score)
	return nil
}
