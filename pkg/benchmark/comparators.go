package benchmark

import (
	"encoding/json"
	"fmt"
	"regexp"

	"github.com/chopralab/sciborg/pkg/agent"
)

// OutputComparator succeeds when the agent's final output exactly
// matches any of the accepted strings.
type OutputComparator struct {
	accepted []string
}

func NewOutputComparator(accepted ...string) *OutputComparator {
	return &OutputComparator{accepted: accepted}
}

func (c *OutputComparator) Compare(result *agent.Result) (bool, error) {
	for _, want := range c.accepted {
		if result.Output == want {
			return true, nil
		}
	}
	return false, nil
}

// RegexComparator succeeds when any pattern matches the agent's final
// output.
type RegexComparator struct {
	patterns []*regexp.Regexp
}

func NewRegexComparator(patterns ...string) (*RegexComparator, error) {
	c := &RegexComparator{patterns: make([]*regexp.Regexp, 0, len(patterns))}
	for _, pattern := range patterns {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid pattern %q: %w", pattern, err)
		}
		c.patterns = append(c.patterns, re)
	}
	return c, nil
}

func (c *RegexComparator) Compare(result *agent.Result) (bool, error) {
	for _, re := range c.patterns {
		if re.MatchString(result.Output) {
			return true, nil
		}
	}
	return false, nil
}

// SchemaComparator parses the agent's final output as JSON and runs a
// validation function over it. Output that is not valid JSON fails the
// iteration without erroring the benchmark.
type SchemaComparator struct {
	validate func(map[string]any) error
}

func NewSchemaComparator(validate func(map[string]any) error) *SchemaComparator {
	return &SchemaComparator{validate: validate}
}

func (c *SchemaComparator) Compare(result *agent.Result) (bool, error) {
	var parsed map[string]any
	if err := json.Unmarshal([]byte(result.Output), &parsed); err != nil {
		return false, nil
	}
	if c.validate != nil {
		if err := c.validate(parsed); err != nil {
			return false, nil
		}
	}
	return true, nil
}

// PathStep describes one expected tool call in an action path. A
// wildcard step matches any tool call. When Validate is set the step's
// arguments must pass it as well.
type PathStep struct {
	Name     string
	Wildcard bool
	Validate func(map[string]any) error
}

// Step matches a tool call by name only.
func Step(name string) PathStep {
	return PathStep{Name: name}
}

// StepWithArgs matches a tool call by name and validates its arguments.
func StepWithArgs(name string, validate func(map[string]any) error) PathStep {
	return PathStep{Name: name, Validate: validate}
}

// Wildcard matches any single tool call.
func Wildcard() PathStep {
	return PathStep{Wildcard: true}
}

// PathComparator succeeds when the sequence of tool calls the agent
// made matches any of the desired paths. A path matches only when its
// length equals the number of steps taken.
type PathComparator struct {
	paths [][]PathStep
}

func NewPathComparator(paths ...[]PathStep) *PathComparator {
	return &PathComparator{paths: paths}
}

func (c *PathComparator) Compare(result *agent.Result) (bool, error) {
	for _, path := range c.paths {
		if matchPath(path, result.Steps) {
			return true, nil
		}
	}
	return false, nil
}

func matchPath(path []PathStep, steps []agent.Step) bool {
	if len(path) != len(steps) {
		return false
	}
	for i, want := range path {
		if want.Wildcard {
			continue
		}
		if want.Name != steps[i].Tool {
			return false
		}
		if want.Validate != nil {
			if err := want.Validate(steps[i].Args); err != nil {
				return false
			}
		}
	}
	return true
}

// StateComparator judges a run by the state the system under test ends
// up in, ignoring the agent's final output. Current reads a snapshot of
// the system state; the comparator succeeds when any desired validator
// accepts it. When Initial is set the runner checks it after each reset
// before invoking the agent.
type StateComparator struct {
	current func() map[string]any
	desired []func(map[string]any) error
	initial func(map[string]any) error
}

// StateOption customizes a StateComparator.
type StateOption func(*StateComparator)

// WithInitialState sets a validator for the system's post-reset state.
func WithInitialState(validate func(map[string]any) error) StateOption {
	return func(c *StateComparator) { c.initial = validate }
}

func NewStateComparator(current func() map[string]any, desired []func(map[string]any) error, opts ...StateOption) (*StateComparator, error) {
	if current == nil {
		return nil, fmt.Errorf("state comparator requires a state snapshot function")
	}
	if len(desired) == 0 {
		return nil, fmt.Errorf("state comparator requires at least one desired state")
	}

	c := &StateComparator{current: current, desired: desired}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *StateComparator) ValidateInitial() error {
	if c.initial == nil {
		return nil
	}
	return c.initial(c.current())
}

func (c *StateComparator) Compare(_ *agent.Result) (bool, error) {
	state := c.current()
	for _, validate := range c.desired {
		if err := validate(state); err == nil {
			return true, nil
		}
	}
	return false, nil
}
