// Package param defines validated parameter specifications for device
// commands. A Spec describes a parameter (type, limits, allowed values,
// default) and stamps out Param instances whose values are checked
// against the Spec on every assignment.
package param

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// DataType enumerates the primitive types a parameter can hold.
type DataType string

const (
	TypeString DataType = "str"
	TypeInt    DataType = "int"
	TypeFloat  DataType = "float"
	TypeBool   DataType = "bool"
)

func (t DataType) IsValid() bool {
	switch t {
	case TypeString, TypeInt, TypeFloat, TypeBool:
		return true
	}
	return false
}

// Spec describes a parameter and the constraints its values must satisfy.
// UpperLimit, LowerLimit, AllowedValues and Default are coerced to the
// declared DataType during Validate.
type Spec struct {
	Name          string   `json:"name" yaml:"name"`
	DataType      DataType `json:"data_type" yaml:"data_type"`
	Desc          string   `json:"desc,omitempty" yaml:"desc,omitempty"`
	Precision     int      `json:"precision,omitempty" yaml:"precision,omitempty"`
	UpperLimit    any      `json:"upper_limit,omitempty" yaml:"upper_limit,omitempty"`
	LowerLimit    any      `json:"lower_limit,omitempty" yaml:"lower_limit,omitempty"`
	AllowedValues []any    `json:"allowed_values,omitempty" yaml:"allowed_values,omitempty"`
	IsOptional    bool     `json:"is_optional,omitempty" yaml:"is_optional,omitempty"`
	IsList        bool     `json:"is_list,omitempty" yaml:"is_list,omitempty"`
	Default       any      `json:"default,omitempty" yaml:"default,omitempty"`
	FromVar       bool     `json:"from_var,omitempty" yaml:"from_var,omitempty"`
	VarName       string   `json:"var_name,omitempty" yaml:"var_name,omitempty"`

	validated bool
}

// Validate coerces limits, allowed values and the default to the declared
// data type and checks their consistency. It must be called (directly or
// via New) before a Spec is used.
func (s *Spec) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("parameter spec requires a name")
	}
	if !s.DataType.IsValid() {
		return fmt.Errorf("parameter '%s' has invalid data type '%s'", s.Name, s.DataType)
	}
	if s.Precision == 0 {
		s.Precision = -1
	}
	if s.Precision < -1 {
		return fmt.Errorf("parameter '%s' precision must be -1 or positive, got %d", s.Name, s.Precision)
	}

	var err error
	if s.UpperLimit != nil {
		if s.UpperLimit, err = s.cast(s.UpperLimit); err != nil {
			return fmt.Errorf("parameter '%s' upper limit: %w", s.Name, err)
		}
	}
	if s.LowerLimit != nil {
		if s.LowerLimit, err = s.cast(s.LowerLimit); err != nil {
			return fmt.Errorf("parameter '%s' lower limit: %w", s.Name, err)
		}
	}
	if s.UpperLimit != nil && s.LowerLimit != nil {
		less, err := lessThan(s.UpperLimit, s.LowerLimit)
		if err != nil {
			return fmt.Errorf("parameter '%s' limits: %w", s.Name, err)
		}
		if less {
			return fmt.Errorf("parameter '%s' upper limit %v must be greater than or equal to lower limit %v",
				s.Name, s.UpperLimit, s.LowerLimit)
		}
	}

	for i, allowed := range s.AllowedValues {
		if s.AllowedValues[i], err = s.cast(allowed); err != nil {
			return fmt.Errorf("parameter '%s' allowed value %v: %w", s.Name, allowed, err)
		}
	}

	if s.Default != nil {
		coerced, err := s.coerce(s.Default)
		if err != nil {
			return fmt.Errorf("parameter '%s' default: %w", s.Name, err)
		}
		if err := s.check(coerced); err != nil {
			return fmt.Errorf("parameter '%s' default: %w", s.Name, err)
		}
		s.Default = coerced
	}

	s.validated = true
	return nil
}

// New creates a Param instance from this spec. A nil value falls back to
// the spec default. The value is validated against the spec constraints.
func (s *Spec) New(value any) (*Param, error) {
	if !s.validated {
		if err := s.Validate(); err != nil {
			return nil, err
		}
	}

	p := &Param{
		Spec:    s,
		FromVar: s.FromVar,
		VarName: s.VarName,
	}

	if value == nil {
		p.Value = s.Default
		return p, nil
	}

	if err := p.Set(value); err != nil {
		return nil, err
	}
	return p, nil
}

// coerce converts a candidate value (scalar or list per IsList) to the
// declared data type.
func (s *Spec) coerce(value any) (any, error) {
	if !s.IsList {
		return s.cast(value)
	}

	var elems []any
	switch v := value.(type) {
	case []any:
		elems = v
	case []int:
		for _, e := range v {
			elems = append(elems, e)
		}
	case []float64:
		for _, e := range v {
			elems = append(elems, e)
		}
	case []string:
		for _, e := range v {
			elems = append(elems, e)
		}
	case []bool:
		for _, e := range v {
			elems = append(elems, e)
		}
	default:
		return nil, fmt.Errorf("expected a list, got %T", value)
	}

	out := make([]any, len(elems))
	for i, elem := range elems {
		cast, err := s.cast(elem)
		if err != nil {
			return nil, err
		}
		out[i] = cast
	}
	return out, nil
}

// cast converts a single scalar to the declared data type. Numeric
// widening and string forms of numbers are allowed; lossy conversions
// are rejected.
func (s *Spec) cast(value any) (any, error) {
	switch s.DataType {
	case TypeString:
		if str, ok := value.(string); ok {
			return str, nil
		}
		return nil, fmt.Errorf("expected string, got %T", value)

	case TypeInt:
		switch v := value.(type) {
		case int:
			return v, nil
		case int32:
			return int(v), nil
		case int64:
			return int(v), nil
		case float64:
			if v == math.Trunc(v) {
				return int(v), nil
			}
			return nil, fmt.Errorf("expected int, got non-integral float %v", v)
		case float32:
			f := float64(v)
			if f == math.Trunc(f) {
				return int(f), nil
			}
			return nil, fmt.Errorf("expected int, got non-integral float %v", v)
		case string:
			n, err := strconv.Atoi(v)
			if err != nil {
				return nil, fmt.Errorf("expected int, got string %q", v)
			}
			return n, nil
		}
		return nil, fmt.Errorf("expected int, got %T", value)

	case TypeFloat:
		switch v := value.(type) {
		case float64:
			return s.round(v), nil
		case float32:
			return s.round(float64(v)), nil
		case int:
			return float64(v), nil
		case int32:
			return float64(v), nil
		case int64:
			return float64(v), nil
		case string:
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return nil, fmt.Errorf("expected float, got string %q", v)
			}
			return s.round(f), nil
		}
		return nil, fmt.Errorf("expected float, got %T", value)

	case TypeBool:
		if b, ok := value.(bool); ok {
			return b, nil
		}
		return nil, fmt.Errorf("expected bool, got %T", value)
	}
	return nil, fmt.Errorf("unknown data type '%s'", s.DataType)
}

func (s *Spec) round(v float64) float64 {
	if s.Precision <= 0 {
		return v
	}
	scale := math.Pow(10, float64(s.Precision))
	return math.Round(v*scale) / scale
}

// check validates a coerced value against limits and allowed values.
func (s *Spec) check(value any) error {
	if value == nil {
		return nil
	}

	elems := []any{value}
	if list, ok := value.([]any); ok && s.IsList {
		elems = list
	}

	for _, elem := range elems {
		if s.UpperLimit != nil {
			above, err := lessThan(s.UpperLimit, elem)
			if err != nil {
				return err
			}
			if above {
				return fmt.Errorf("%s has value: %v, expected below upper limit: %v", s.Name, elem, s.UpperLimit)
			}
		}
		if s.LowerLimit != nil {
			below, err := lessThan(elem, s.LowerLimit)
			if err != nil {
				return err
			}
			if below {
				return fmt.Errorf("%s has value: %v, expected above lower limit: %v", s.Name, elem, s.LowerLimit)
			}
		}
		if len(s.AllowedValues) > 0 {
			found := false
			for _, allowed := range s.AllowedValues {
				if allowed == elem {
					found = true
					break
				}
			}
			if !found {
				return fmt.Errorf("%s has value: %v, expected one of: %v", s.Name, elem, s.AllowedValues)
			}
		}
	}
	return nil
}

// Clone returns a deep copy of the spec.
func (s *Spec) Clone() *Spec {
	clone := *s
	if s.AllowedValues != nil {
		clone.AllowedValues = append([]any(nil), s.AllowedValues...)
	}
	return &clone
}

func lessThan(a, b any) (bool, error) {
	switch av := a.(type) {
	case int:
		switch bv := b.(type) {
		case int:
			return av < bv, nil
		case float64:
			return float64(av) < bv, nil
		}
	case float64:
		switch bv := b.(type) {
		case int:
			return av < float64(bv), nil
		case float64:
			return av < bv, nil
		}
	case string:
		if bv, ok := b.(string); ok {
			return av < bv, nil
		}
	}
	return false, fmt.Errorf("cannot compare %T with %T", a, b)
}

// Param is a concrete parameter instance bound to a Spec. Assignments go
// through Set so the spec constraints always hold.
type Param struct {
	Spec    *Spec
	Value   any
	FromVar bool
	VarName string
}

// Set validates and assigns a new value. The previous value is kept on
// failure.
func (p *Param) Set(value any) error {
	coerced, err := p.Spec.coerce(value)
	if err != nil {
		return fmt.Errorf("%s: %w", p.Spec.Name, err)
	}
	if err := p.Spec.check(coerced); err != nil {
		return err
	}
	p.Value = coerced
	return nil
}

// SetVarName marks the parameter to be resolved from a workflow global
// at execution time.
func (p *Param) SetVarName(varName string) {
	p.FromVar = true
	p.VarName = varName
}

// Clone returns a copy of the parameter bound to the same spec.
func (p *Param) Clone() *Param {
	clone := *p
	return &clone
}

// paramJSON is the wire form of a Param: only the value and variable
// binding travel, the spec stays server side.
type paramJSON struct {
	Value   any    `json:"value"`
	FromVar bool   `json:"from_var"`
	VarName string `json:"var_name"`
}

func (p *Param) MarshalJSON() ([]byte, error) {
	return json.Marshal(paramJSON{
		Value:   p.Value,
		FromVar: p.FromVar,
		VarName: p.VarName,
	})
}

func (p *Param) UnmarshalJSON(data []byte) error {
	var raw paramJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	p.Value = raw.Value
	p.FromVar = raw.FromVar
	p.VarName = raw.VarName
	return nil
}
