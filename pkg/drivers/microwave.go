// Package drivers provides virtual instrument drivers and REST callers
// that plug into the command model. The virtual instruments track real
// state machines so agents operating them can be exercised and scored
// without hardware.
package drivers

import (
	"fmt"
	"math/rand/v2"
	"sync"

	"github.com/google/uuid"

	"github.com/chopralab/sciborg/pkg/command"
	"github.com/chopralab/sciborg/pkg/param"
)

// Heating parameter ranges accepted by the synthesizer.
const (
	MinDuration    = 1
	MaxDuration    = 60
	MinTemperature = 25
	MaxTemperature = 250
	MinPressure    = 1.0
	MaxPressure    = 10.0
	MinVial        = 1
	MaxVial        = 10
)

// MicrowaveState is a snapshot of the synthesizer's state machine. Its
// JSON form doubles as the device state schema for FSA memory.
type MicrowaveState struct {
	SessionID     string   `json:"session_id" jsonschema_description:"ID of the allocated session, empty if none"`
	LidStatus     string   `json:"lid_status" jsonschema:"enum=open,enum=closed"`
	VialStatus    string   `json:"vial_status" jsonschema:"enum=loaded,enum=unloaded"`
	VialNumber    int      `json:"vial_number" jsonschema_description:"number of the loaded vial, 0 if none"`
	HeatingStatus string   `json:"heating_status" jsonschema:"enum=not_heating,enum=heating"`
	Temperature   *int     `json:"temperature" jsonschema_description:"set temperature in celsius, null if not set"`
	Duration      *int     `json:"duration" jsonschema_description:"set duration in minutes, null if not set"`
	Pressure      *float64 `json:"pressure" jsonschema_description:"set pressure in atm, null if not set"`
}

// MicrowaveSynthesizer is a virtual microwave synthesizer. Operations
// enforce the instrument's state machine: a session must be allocated
// first, the lid must be open to load a vial and closed to heat, and
// heating requires all three heating parameters to be set.
type MicrowaveSynthesizer struct {
	mu    sync.Mutex
	state MicrowaveState
}

func NewMicrowaveSynthesizer() *MicrowaveSynthesizer {
	s := &MicrowaveSynthesizer{}
	s.Reset()
	return s
}

// Reset restores the power-on state: lid closed, no vial, no session,
// no heating parameters.
func (s *MicrowaveSynthesizer) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = MicrowaveState{
		LidStatus:     "closed",
		VialStatus:    "unloaded",
		HeatingStatus: "not_heating",
	}
}

// State returns a snapshot of the current state.
func (s *MicrowaveSynthesizer) State() MicrowaveState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *MicrowaveSynthesizer) checkSession(sessionID string) error {
	if sessionID != s.state.SessionID || s.state.SessionID == "" {
		return fmt.Errorf("Error: Incorrect session ID provided")
	}
	return nil
}

// AllocateSession allocates a session and returns its ID. Must be
// called before any other operation.
func (s *MicrowaveSynthesizer) AllocateSession() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.SessionID = uuid.NewString()
	return s.state.SessionID
}

// OpenLid opens the lid. Must be run prior to loading a vial.
func (s *MicrowaveSynthesizer) OpenLid(sessionID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkSession(sessionID); err != nil {
		return "", err
	}
	if s.state.LidStatus == "open" {
		return "", fmt.Errorf("Error: Lid is already open")
	}
	s.state.LidStatus = "open"
	return "lid_open", nil
}

// CloseLid closes the lid. Must be run prior to heating.
func (s *MicrowaveSynthesizer) CloseLid(sessionID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkSession(sessionID); err != nil {
		return "", err
	}
	if s.state.LidStatus == "closed" {
		return "", fmt.Errorf("Error: Lid is already closed")
	}
	s.state.LidStatus = "closed"
	return "lid_closed", nil
}

// LoadVial loads a vial. The lid must be open and no vial loaded.
func (s *MicrowaveSynthesizer) LoadVial(sessionID string, vialNum int) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkSession(sessionID); err != nil {
		return "", err
	}
	if s.state.LidStatus == "closed" {
		return "", fmt.Errorf("Error: Vial cannot be loaded when the lid is closed")
	}
	if s.state.VialStatus == "loaded" {
		return "", fmt.Errorf("Error: A vial cannot be loaded when a vial is already loaded")
	}
	if vialNum < MinVial || vialNum > MaxVial {
		return "", fmt.Errorf("Error: Vial number must be between %d and %d", MinVial, MaxVial)
	}
	s.state.VialNumber = vialNum
	s.state.VialStatus = "loaded"
	return fmt.Sprintf("vial %d loaded", vialNum), nil
}

// UnloadVial removes the loaded vial. The lid must be open.
func (s *MicrowaveSynthesizer) UnloadVial(sessionID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkSession(sessionID); err != nil {
		return "", err
	}
	if s.state.LidStatus == "closed" {
		return "", fmt.Errorf("Error: Vial cannot be unloaded when the lid is closed")
	}
	if s.state.VialStatus == "unloaded" {
		return "", fmt.Errorf("Error: A vial cannot be unloaded when no vial is loaded")
	}
	unloaded := s.state.VialNumber
	s.state.VialNumber = 0
	s.state.VialStatus = "unloaded"
	return fmt.Sprintf("vial %d unloaded", unloaded), nil
}

// UpdateHeatingParameters sets the duration, temperature and pressure
// used by the next heating run.
func (s *MicrowaveSynthesizer) UpdateHeatingParameters(sessionID string, duration, temperature int, pressure float64) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkSession(sessionID); err != nil {
		return "", err
	}
	s.state.Duration = &duration
	s.state.Temperature = &temperature
	s.state.Pressure = &pressure
	return fmt.Sprintf("set to heat for %d mins, at temperature %d and pressure %g", duration, temperature, pressure), nil
}

// HeatVial starts heating. The lid must be closed and all heating
// parameters set.
func (s *MicrowaveSynthesizer) HeatVial(sessionID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkSession(sessionID); err != nil {
		return "", err
	}
	if s.state.LidStatus == "open" {
		return "", fmt.Errorf("Error: Lid must be closed prior to heating")
	}
	if s.state.Temperature == nil {
		return "", fmt.Errorf("Error: Temperature is not set")
	}
	if s.state.Pressure == nil {
		return "", fmt.Errorf("Error: Pressure is not set")
	}
	if s.state.Duration == nil {
		return "", fmt.Errorf("Error: Duration is not set")
	}
	s.state.HeatingStatus = "heating"
	return "vial heating", nil
}

// PercentConversion reports the conversion of the synthesis reaction
// after a heating run.
func (s *MicrowaveSynthesizer) PercentConversion(sessionID string) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkSession(sessionID); err != nil {
		return 0, err
	}
	return rand.Float64(), nil
}

// SecretPhrase returns the secret phrase. Only used when explicitly
// asked for, as a canary in benchmarking.
func (s *MicrowaveSynthesizer) SecretPhrase() string {
	return "Chopra lab"
}

// Microservice publishes the synthesizer's operations as a driver
// microservice.
func (s *MicrowaveSynthesizer) Microservice() (*command.DriverMicroservice, error) {
	ms := command.NewDriverMicroservice("microwave_synthesizer", "A virtual microwave synthesizer for chemical reactions.")

	sessionParam := func() *param.Spec {
		return &param.Spec{
			Name:     "session_ID",
			DataType: param.TypeString,
			Desc:     "the id of the current session",
		}
	}

	commands := []struct {
		info command.InfoCommand
		fn   command.Func
	}{
		{
			info: command.InfoCommand{
				Name:            "allocate_session",
				Desc:            "Allocates a session on the microwave synthesizer. Must be called prior to any other action.",
				HasReturn:       true,
				ReturnSignature: map[string]string{"session_ID": "the id of the allocated session"},
			},
			fn: func(args command.Args) (command.Result, error) {
				return command.Result{"session_ID": s.AllocateSession()}, nil
			},
		},
		{
			info: command.InfoCommand{
				Name:            "open_lid",
				Desc:            "Opens the lid on the microwave synthesizer. Must be run prior to loading a vial.",
				Parameters:      map[string]*param.Spec{"session_ID": sessionParam()},
				HasReturn:       true,
				ReturnSignature: map[string]string{"status": "the result of the operation"},
			},
			fn: func(args command.Args) (command.Result, error) {
				status, err := s.OpenLid(stringArg(args, "session_ID"))
				if err != nil {
					return nil, err
				}
				return command.Result{"status": status}, nil
			},
		},
		{
			info: command.InfoCommand{
				Name:            "close_lid",
				Desc:            "Closes the lid on the microwave synthesizer. Must be run prior to heating.",
				Parameters:      map[string]*param.Spec{"session_ID": sessionParam()},
				HasReturn:       true,
				ReturnSignature: map[string]string{"status": "the result of the operation"},
			},
			fn: func(args command.Args) (command.Result, error) {
				status, err := s.CloseLid(stringArg(args, "session_ID"))
				if err != nil {
					return nil, err
				}
				return command.Result{"status": status}, nil
			},
		},
		{
			info: command.InfoCommand{
				Name: "load_vial",
				Desc: "Loads a vial into the microwave synthesizer. Must be run prior to heating.",
				Parameters: map[string]*param.Spec{
					"session_ID": sessionParam(),
					"vial_num": {
						Name:       "vial_num",
						DataType:   param.TypeInt,
						Desc:       "number of the vial to load",
						LowerLimit: MinVial,
						UpperLimit: MaxVial,
					},
				},
				HasReturn:       true,
				ReturnSignature: map[string]string{"status": "the result of the operation"},
			},
			fn: func(args command.Args) (command.Result, error) {
				status, err := s.LoadVial(stringArg(args, "session_ID"), intArg(args, "vial_num"))
				if err != nil {
					return nil, err
				}
				return command.Result{"status": status}, nil
			},
		},
		{
			info: command.InfoCommand{
				Name:            "unload_vial",
				Desc:            "Unloads a vial from the microwave synthesizer. Must be run after heating.",
				Parameters:      map[string]*param.Spec{"session_ID": sessionParam()},
				HasReturn:       true,
				ReturnSignature: map[string]string{"status": "the result of the operation"},
			},
			fn: func(args command.Args) (command.Result, error) {
				status, err := s.UnloadVial(stringArg(args, "session_ID"))
				if err != nil {
					return nil, err
				}
				return command.Result{"status": status}, nil
			},
		},
		{
			info: command.InfoCommand{
				Name: "update_heating_parameters",
				Desc: "Sets the heating parameters of the microwave synthesizer. Must be run prior to heating.",
				Parameters: map[string]*param.Spec{
					"session_ID": sessionParam(),
					"duration": {
						Name:       "duration",
						DataType:   param.TypeInt,
						Desc:       "heating duration in minutes",
						LowerLimit: MinDuration,
						UpperLimit: MaxDuration,
					},
					"temperature": {
						Name:       "temperature",
						DataType:   param.TypeInt,
						Desc:       "heating temperature in celsius",
						LowerLimit: MinTemperature,
						UpperLimit: MaxTemperature,
					},
					"pressure": {
						Name:       "pressure",
						DataType:   param.TypeFloat,
						Desc:       "heating pressure in atm",
						LowerLimit: MinPressure,
						UpperLimit: MaxPressure,
					},
				},
				HasReturn:       true,
				ReturnSignature: map[string]string{"status": "the result of the operation"},
			},
			fn: func(args command.Args) (command.Result, error) {
				status, err := s.UpdateHeatingParameters(
					stringArg(args, "session_ID"),
					intArg(args, "duration"),
					intArg(args, "temperature"),
					floatArg(args, "pressure"),
				)
				if err != nil {
					return nil, err
				}
				return command.Result{"status": status}, nil
			},
		},
		{
			info: command.InfoCommand{
				Name:            "heat_vial",
				Desc:            "Heats the loaded vial to the set heating parameters. Must be run after loading a vial, closing the lid, and updating the heating parameters.",
				Parameters:      map[string]*param.Spec{"session_ID": sessionParam()},
				HasReturn:       true,
				ReturnSignature: map[string]string{"status": "the result of the operation"},
			},
			fn: func(args command.Args) (command.Result, error) {
				status, err := s.HeatVial(stringArg(args, "session_ID"))
				if err != nil {
					return nil, err
				}
				return command.Result{"status": status}, nil
			},
		},
		{
			info: command.InfoCommand{
				Name:            "get_percent_conversion",
				Desc:            "Gets the percent conversion of synthesis after running the experiment. Can only be called after heating.",
				Parameters:      map[string]*param.Spec{"session_ID": sessionParam()},
				HasReturn:       true,
				ReturnSignature: map[string]string{"percent_conversion": "the percent conversion of the synthesis reaction"},
			},
			fn: func(args command.Args) (command.Result, error) {
				conversion, err := s.PercentConversion(stringArg(args, "session_ID"))
				if err != nil {
					return nil, err
				}
				return command.Result{"percent_conversion": conversion}, nil
			},
		},
		{
			info: command.InfoCommand{
				Name:            "get_secret_phrase",
				Desc:            "Gets the secret phrase, only use this when explicitly told.",
				HasReturn:       true,
				ReturnSignature: map[string]string{"secret_phrase": "the secret phrase"},
			},
			fn: func(args command.Args) (command.Result, error) {
				return command.Result{"secret_phrase": s.SecretPhrase()}, nil
			},
		},
	}

	for _, c := range commands {
		cmd, err := command.NewDriverCommand(c.info, c.fn)
		if err != nil {
			return nil, err
		}
		if err := ms.Add(cmd); err != nil {
			return nil, err
		}
	}
	return ms, nil
}

func stringArg(args command.Args, key string) string {
	v, _ := args[key].(string)
	return v
}

func intArg(args command.Args, key string) int {
	switch v := args[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return 0
}

func floatArg(args command.Args, key string) float64 {
	switch v := args[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case int64:
		return float64(v)
	}
	return 0
}
