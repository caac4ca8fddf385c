// Package benchmark scores agents against repeatable tasks. Each
// iteration builds a fresh agent, resets the system under test, invokes
// the agent with the task input, and judges the run with a comparator:
// by final output, by the action path taken, or by the state the system
// ends up in.
package benchmark

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/chopralab/sciborg/pkg/agent"
)

// Comparator judges whether a completed agent run succeeded.
type Comparator interface {
	Compare(result *agent.Result) (bool, error)
}

// initialValidator is implemented by comparators that can check the
// system is in its expected starting state after a reset.
type initialValidator interface {
	ValidateInitial() error
}

// Report summarizes a benchmark.
type Report struct {
	Iterations int
	Success    int
	Fail       int
	Score      float64
}

// Runner runs a benchmark task. The factory must return a fresh agent
// each call so no memory leaks between iterations.
type Runner struct {
	factory    func() (*agent.Agent, error)
	input      string
	comparator Comparator
	reset      func()
	logger     *slog.Logger
}

// RunnerOption customizes a Runner.
type RunnerOption func(*Runner)

// WithReset sets a function that restores the system under test to its
// initial state before each iteration.
func WithReset(reset func()) RunnerOption {
	return func(r *Runner) { r.reset = reset }
}

// WithRunnerLogger sets the runner's logger.
func WithRunnerLogger(logger *slog.Logger) RunnerOption {
	return func(r *Runner) { r.logger = logger }
}

func NewRunner(factory func() (*agent.Agent, error), input string, comparator Comparator, opts ...RunnerOption) (*Runner, error) {
	if factory == nil {
		return nil, fmt.Errorf("runner requires an agent factory")
	}
	if input == "" {
		return nil, fmt.Errorf("runner requires an initial input")
	}
	if comparator == nil {
		return nil, fmt.Errorf("runner requires a comparator")
	}

	r := &Runner{
		factory:    factory,
		input:      input,
		comparator: comparator,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Run executes the benchmark for the given number of iterations and
// returns the score. Iteration failures, including agent errors, count
// as failed runs rather than aborting the benchmark.
func (r *Runner) Run(ctx context.Context, iterations int) (*Report, error) {
	if iterations < 1 {
		return nil, fmt.Errorf("iterations must be at least 1")
	}

	report := &Report{Iterations: iterations}
	for i := 0; i < iterations; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		ok, err := r.iteration(ctx)
		if err != nil {
			r.logger.Warn("benchmark iteration errored", "iteration", i+1, "error", err)
			ok = false
		}

		if ok {
			report.Success++
		} else {
			report.Fail++
		}
		r.logger.Debug("benchmark iteration finished",
			"iteration", i+1,
			"success", ok,
			"running_score", float64(report.Success)/float64(i+1))
	}

	report.Score = float64(report.Success) / float64(report.Iterations)
	r.logInfo(report)
	return report, nil
}

func (r *Runner) iteration(ctx context.Context) (bool, error) {
	if r.reset != nil {
		r.reset()
	}
	if validator, ok := r.comparator.(initialValidator); ok {
		if err := validator.ValidateInitial(); err != nil {
			return false, fmt.Errorf("initial state mismatch: %w", err)
		}
	}

	a, err := r.factory()
	if err != nil {
		return false, fmt.Errorf("failed to build agent: %w", err)
	}

	result, err := a.Invoke(ctx, r.input)
	if err != nil {
		return false, fmt.Errorf("agent failed: %w", err)
	}

	return r.comparator.Compare(result)
}

func (r *Runner) logInfo(report *Report) {
	a, err := r.factory()
	if err != nil {
		r.logger.Warn("failed to build agent for benchmark log", "error", err)
		return
	}

	tools := make([]string, 0, len(a.Tools()))
	for _, tool := range a.Tools() {
		tools = append(tools, tool.Name())
	}

	r.logger.Info("benchmark complete",
		"input", r.input,
		"tools", tools,
		"iterations", report.Iterations,
		"success", report.Success,
		"fail", report.Fail,
		"score", report.Score)
}
