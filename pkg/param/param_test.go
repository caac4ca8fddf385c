package param

import (
	"encoding/json"
	"testing"
)

func voltageSpec() *Spec {
	return &Spec{
		Name:       "voltage",
		DataType:   TypeFloat,
		UpperLimit: 240.0,
		LowerLimit: 60.0,
		Default:    120.0,
		Desc:       "Voltage in volts",
	}
}

func TestSpec_Validate(t *testing.T) {
	tests := []struct {
		name    string
		spec    *Spec
		wantErr bool
	}{
		{
			name:    "valid float spec",
			spec:    voltageSpec(),
			wantErr: false,
		},
		{
			name:    "missing name",
			spec:    &Spec{DataType: TypeInt},
			wantErr: true,
		},
		{
			name:    "invalid data type",
			spec:    &Spec{Name: "x", DataType: "complex"},
			wantErr: true,
		},
		{
			name: "upper limit below lower limit",
			spec: &Spec{
				Name:       "x",
				DataType:   TypeInt,
				UpperLimit: 1,
				LowerLimit: 10,
			},
			wantErr: true,
		},
		{
			name: "limit type mismatch",
			spec: &Spec{
				Name:       "x",
				DataType:   TypeInt,
				UpperLimit: "ten",
			},
			wantErr: true,
		},
		{
			name: "default above upper limit",
			spec: &Spec{
				Name:       "x",
				DataType:   TypeFloat,
				UpperLimit: 10.0,
				Default:    11.0,
			},
			wantErr: true,
		},
		{
			name: "default outside allowed values",
			spec: &Spec{
				Name:          "mode",
				DataType:      TypeString,
				AllowedValues: []any{"fast", "slow"},
				Default:       "medium",
			},
			wantErr: true,
		},
		{
			name: "valid allowed values spec",
			spec: &Spec{
				Name:          "mode",
				DataType:      TypeString,
				AllowedValues: []any{"fast", "slow"},
				Default:       "slow",
			},
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.spec.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Spec.Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestSpec_New(t *testing.T) {
	spec := voltageSpec()

	// Nil value falls back to the default
	p, err := spec.New(nil)
	if err != nil {
		t.Fatalf("Spec.New(nil) error = %v", err)
	}
	if p.Value != 120.0 {
		t.Errorf("Spec.New(nil) value = %v, want 120.0", p.Value)
	}

	// Valid value inside limits
	p, err = spec.New(220.0)
	if err != nil {
		t.Fatalf("Spec.New(220.0) error = %v", err)
	}
	if p.Value != 220.0 {
		t.Errorf("Spec.New(220.0) value = %v, want 220.0", p.Value)
	}

	// Invalid value above upper limit
	if _, err := spec.New(300.0); err == nil {
		t.Error("Spec.New(300.0) expected error for value above upper limit")
	}

	// Invalid value below lower limit
	if _, err := spec.New(10.0); err == nil {
		t.Error("Spec.New(10.0) expected error for value below lower limit")
	}
}

func TestSpec_New_IntCoercion(t *testing.T) {
	spec := &Spec{
		Name:       "duration",
		DataType:   TypeInt,
		UpperLimit: 60,
		LowerLimit: 1,
	}

	// JSON numbers arrive as float64; integral floats are accepted
	p, err := spec.New(float64(30))
	if err != nil {
		t.Fatalf("Spec.New(30.0) error = %v", err)
	}
	if p.Value != 30 {
		t.Errorf("Spec.New(30.0) value = %v (%T), want int 30", p.Value, p.Value)
	}

	// Non-integral floats are rejected for int params
	if _, err := spec.New(30.5); err == nil {
		t.Error("Spec.New(30.5) expected error for non-integral float")
	}

	// String forms of numbers are cast
	p, err = spec.New("30")
	if err != nil {
		t.Fatalf("Spec.New(\"30\") error = %v", err)
	}
	if p.Value != 30 {
		t.Errorf("Spec.New(\"30\") value = %v (%T), want int 30", p.Value, p.Value)
	}

	// Non-numeric strings are rejected
	if _, err := spec.New("thirty"); err == nil {
		t.Error("Spec.New(\"thirty\") expected error for non-numeric string")
	}
}

func TestSpec_StringNumberCasting(t *testing.T) {
	// String forms of numbers in defaults and limits are cast to the
	// declared type during validation.
	floatSpec := &Spec{
		Name:     "temp",
		DataType: TypeFloat,
		Default:  "120.0",
	}
	if err := floatSpec.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if floatSpec.Default != 120.0 {
		t.Errorf("default = %v (%T), want float64 120.0", floatSpec.Default, floatSpec.Default)
	}

	intSpec := &Spec{
		Name:       "duration",
		DataType:   TypeInt,
		UpperLimit: "60",
		LowerLimit: "1",
		Default:    "30",
	}
	if err := intSpec.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if intSpec.UpperLimit != 60 || intSpec.LowerLimit != 1 {
		t.Errorf("limits = %v/%v, want ints 60/1", intSpec.UpperLimit, intSpec.LowerLimit)
	}
	if intSpec.Default != 30 {
		t.Errorf("default = %v (%T), want int 30", intSpec.Default, intSpec.Default)
	}

	// A fractional string still cannot become an int
	badInt := &Spec{
		Name:     "duration",
		DataType: TypeInt,
		Default:  "30.5",
	}
	if err := badInt.Validate(); err == nil {
		t.Error("Validate() expected error for fractional string on an int spec")
	}

	// A non-numeric string default fails validation
	badFloat := &Spec{
		Name:     "temp",
		DataType: TypeFloat,
		Default:  "warm",
	}
	if err := badFloat.Validate(); err == nil {
		t.Error("Validate() expected error for non-numeric string default")
	}
}

func TestSpec_Precision(t *testing.T) {
	spec := &Spec{
		Name:      "temperature",
		DataType:  TypeFloat,
		Precision: 2,
	}

	p, err := spec.New(98.4567)
	if err != nil {
		t.Fatalf("Spec.New() error = %v", err)
	}
	if p.Value != 98.46 {
		t.Errorf("precision rounding = %v, want 98.46", p.Value)
	}
}

func TestSpec_ListValues(t *testing.T) {
	spec := &Spec{
		Name:       "readings",
		DataType:   TypeFloat,
		IsList:     true,
		UpperLimit: 100.0,
		LowerLimit: 0.0,
	}

	p, err := spec.New([]float64{1.5, 50.0, 99.9})
	if err != nil {
		t.Fatalf("Spec.New(list) error = %v", err)
	}
	values, ok := p.Value.([]any)
	if !ok {
		t.Fatalf("list value type = %T, want []any", p.Value)
	}
	if len(values) != 3 {
		t.Errorf("list length = %d, want 3", len(values))
	}

	// One element out of range fails the whole assignment
	if _, err := spec.New([]float64{1.5, 120.0}); err == nil {
		t.Error("Spec.New(list with out-of-range element) expected error")
	}
}

func TestParam_Set_KeepsValueOnFailure(t *testing.T) {
	spec := voltageSpec()
	p, err := spec.New(120.0)
	if err != nil {
		t.Fatalf("Spec.New() error = %v", err)
	}

	if err := p.Set(999.0); err == nil {
		t.Fatal("Set(999.0) expected error")
	}
	if p.Value != 120.0 {
		t.Errorf("value after failed Set = %v, want 120.0 unchanged", p.Value)
	}
}

func TestParam_SetVarName(t *testing.T) {
	spec := voltageSpec()
	p, err := spec.New(nil)
	if err != nil {
		t.Fatalf("Spec.New() error = %v", err)
	}

	p.SetVarName("voltage_1")
	if !p.FromVar {
		t.Error("FromVar = false, want true after SetVarName")
	}
	if p.VarName != "voltage_1" {
		t.Errorf("VarName = %q, want %q", p.VarName, "voltage_1")
	}
}

func TestParam_JSONRoundTrip(t *testing.T) {
	spec := voltageSpec()
	p, err := spec.New(220.0)
	if err != nil {
		t.Fatalf("Spec.New() error = %v", err)
	}
	p.SetVarName("v1")

	data, err := json.Marshal(p)
	if err != nil {
		t.Fatalf("Marshal error = %v", err)
	}

	var decoded Param
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal error = %v", err)
	}
	if decoded.Value != 220.0 {
		t.Errorf("decoded value = %v, want 220.0", decoded.Value)
	}
	if !decoded.FromVar || decoded.VarName != "v1" {
		t.Errorf("decoded var binding = (%v, %q), want (true, \"v1\")", decoded.FromVar, decoded.VarName)
	}
}
