package drivers

import (
	"sync"

	"github.com/chopralab/sciborg/pkg/command"
	"github.com/chopralab/sciborg/pkg/microservice"
	"github.com/chopralab/sciborg/pkg/param"
)

// LiquidHandlerState is a snapshot of the handler's position and the
// volume currently held.
type LiquidHandlerState struct {
	XPosition int     `json:"x_position"`
	YPosition int     `json:"y_position"`
	Volume    float64 `json:"volume"`
}

// LiquidHandler is a virtual pipetting robot used as a benchmarking
// fixture: move to a position, aspirate, dispense.
type LiquidHandler struct {
	mu    sync.Mutex
	state LiquidHandlerState
}

func NewLiquidHandler() *LiquidHandler {
	return &LiquidHandler{}
}

// Reset returns the handler to the origin with an empty tip.
func (h *LiquidHandler) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.state = LiquidHandlerState{}
}

// State returns a snapshot of the current state.
func (h *LiquidHandler) State() LiquidHandlerState {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// Move positions the head at the given coordinates.
func (h *LiquidHandler) Move(x, y int) (int, int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.state.XPosition = x
	h.state.YPosition = y
	return x, y
}

// Aspirate draws up the given volume.
func (h *LiquidHandler) Aspirate(volume float64) float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.state.Volume += volume
	return volume
}

// Dispense expels the given volume.
func (h *LiquidHandler) Dispense(volume float64) float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.state.Volume -= volume
	if h.state.Volume < 0 {
		h.state.Volume = 0
	}
	return volume
}

// Microservice publishes the handler's operations as a driver
// microservice.
func (h *LiquidHandler) Microservice() (*command.DriverMicroservice, error) {
	return microservice.NewBuilder("liquid_handler", "A virtual liquid handling robot.").
		Add(microservice.Method{
			Name: "move",
			Desc: "Moves the head to the given position.",
			Params: map[string]*param.Spec{
				"x_position": {Name: "x_position", DataType: param.TypeInt, Desc: "target x coordinate"},
				"y_position": {Name: "y_position", DataType: param.TypeInt, Desc: "target y coordinate"},
			},
			Returns: map[string]string{
				"x_position": "the x coordinate after the move",
				"y_position": "the y coordinate after the move",
			},
			Func: func(args command.Args) (command.Result, error) {
				x, y := h.Move(intArg(args, "x_position"), intArg(args, "y_position"))
				return command.Result{"x_position": x, "y_position": y}, nil
			},
		}).
		Add(microservice.Method{
			Name: "aspirate",
			Desc: "Draws up the given volume.",
			Params: map[string]*param.Spec{
				"volume": {Name: "volume", DataType: param.TypeFloat, Desc: "volume to aspirate", LowerLimit: 0.0},
			},
			Returns: map[string]string{"volume": "the aspirated volume"},
			Func: func(args command.Args) (command.Result, error) {
				return command.Result{"volume": h.Aspirate(floatArg(args, "volume"))}, nil
			},
		}).
		Add(microservice.Method{
			Name: "dispense",
			Desc: "Expels the given volume.",
			Params: map[string]*param.Spec{
				"volume": {Name: "volume", DataType: param.TypeFloat, Desc: "volume to dispense", LowerLimit: 0.0},
			},
			Returns: map[string]string{"volume": "the dispensed volume"},
			Func: func(args command.Args) (command.Result, error) {
				return command.Result{"volume": h.Dispense(floatArg(args, "volume"))}, nil
			},
		}).
		Add(microservice.Method{
			Name:    "reset",
			Desc:    "Returns the handler to the origin with an empty tip.",
			Returns: map[string]string{"reset": "whether the reset completed"},
			Func: func(args command.Args) (command.Result, error) {
				h.Reset()
				return command.Result{"reset": true}, nil
			},
		}).
		Build()
}
