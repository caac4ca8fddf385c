package command

import (
	"fmt"

	"github.com/google/uuid"
)

// InfoMicroservice is the published description of a device or software
// service: a named set of info commands.
type InfoMicroservice struct {
	Name     string                  `json:"name" yaml:"name"`
	UUID     uuid.UUID               `json:"uuid" yaml:"uuid"`
	Desc     string                  `json:"desc,omitempty" yaml:"desc,omitempty"`
	Commands map[string]*InfoCommand `json:"commands" yaml:"commands"`
}

// Validate checks that commands are keyed by their own name and belong
// to this microservice.
func (m *InfoMicroservice) Validate() error {
	if m.Name == "" {
		return fmt.Errorf("microservice requires a name")
	}
	for key, cmd := range m.Commands {
		if cmd.Name != key {
			return fmt.Errorf("command key '%s' does not match command name '%s'", key, cmd.Name)
		}
		if cmd.Microservice != m.Name {
			return fmt.Errorf("command '%s' belongs to microservice '%s', not '%s'", cmd.Name, cmd.Microservice, m.Name)
		}
		if err := cmd.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// DriverMicroservice holds the executable commands of a single device or
// software service.
type DriverMicroservice struct {
	Name     string
	UUID     uuid.UUID
	Desc     string
	Commands map[string]*DriverCommand
}

// NewDriverMicroservice creates an empty driver microservice with a
// fresh UUID.
func NewDriverMicroservice(name, desc string) *DriverMicroservice {
	return &DriverMicroservice{
		Name:     name,
		UUID:     uuid.New(),
		Desc:     desc,
		Commands: make(map[string]*DriverCommand),
	}
}

// Add registers a driver command, stamping it with the microservice
// identity.
func (m *DriverMicroservice) Add(cmd *DriverCommand) error {
	if cmd == nil {
		return fmt.Errorf("cannot add nil command to microservice '%s'", m.Name)
	}
	if _, exists := m.Commands[cmd.Name]; exists {
		return fmt.Errorf("command '%s' already registered on microservice '%s'", cmd.Name, m.Name)
	}
	cmd.Microservice = m.Name
	cmd.UUID = m.UUID
	m.Commands[cmd.Name] = cmd
	return nil
}

// Get returns a driver command by name.
func (m *DriverMicroservice) Get(name string) (*DriverCommand, bool) {
	cmd, ok := m.Commands[name]
	return cmd, ok
}

// ToInfoMicroservice strips execution details from every command.
func (m *DriverMicroservice) ToInfoMicroservice() *InfoMicroservice {
	commands := make(map[string]*InfoCommand, len(m.Commands))
	for name, cmd := range m.Commands {
		commands[name] = cmd.ToInfoCommand()
	}
	return &InfoMicroservice{
		Name:     m.Name,
		UUID:     m.UUID,
		Desc:     m.Desc,
		Commands: commands,
	}
}

// DriverLibrary is a collection of driver microservices addressable by
// name or by UUID.
type DriverLibrary struct {
	Name          string
	Desc          string
	microservices map[string]*DriverMicroservice
	byUUID        map[string]*DriverMicroservice
}

func NewDriverLibrary(name string) *DriverLibrary {
	return &DriverLibrary{
		Name:          name,
		microservices: make(map[string]*DriverMicroservice),
		byUUID:        make(map[string]*DriverMicroservice),
	}
}

// Add registers a microservice under both its name and UUID.
func (l *DriverLibrary) Add(m *DriverMicroservice) error {
	if m == nil {
		return fmt.Errorf("cannot add nil microservice to library '%s'", l.Name)
	}
	if _, exists := l.microservices[m.Name]; exists {
		return fmt.Errorf("microservice '%s' already registered in library '%s'", m.Name, l.Name)
	}
	l.microservices[m.Name] = m
	l.byUUID[m.UUID.String()] = m
	return nil
}

// Get returns a microservice by name.
func (l *DriverLibrary) Get(name string) (*DriverMicroservice, bool) {
	m, ok := l.microservices[name]
	return m, ok
}

// GetByUUID returns a microservice by its UUID.
func (l *DriverLibrary) GetByUUID(id uuid.UUID) (*DriverMicroservice, bool) {
	m, ok := l.byUUID[id.String()]
	return m, ok
}

// Microservices returns all registered microservices.
func (l *DriverLibrary) Microservices() map[string]*DriverMicroservice {
	return l.microservices
}

// Resolve finds the driver command a run command addresses, trying the
// UUID first and falling back to the microservice name.
func (l *DriverLibrary) Resolve(rc *RunCommand) (*DriverCommand, error) {
	m, ok := l.byUUID[rc.UUID.String()]
	if !ok {
		m, ok = l.microservices[rc.Microservice]
	}
	if !ok {
		return nil, fmt.Errorf("microservice '%s' (uuid %s) not found in command library", rc.Microservice, rc.UUID)
	}

	cmd, ok := m.Commands[rc.Name]
	if !ok {
		return nil, fmt.Errorf("run command '%s' not found on microservice '%s'", rc.Name, m.Name)
	}
	return cmd, nil
}

// ToInfoLibrary returns the published form of the whole library.
func (l *DriverLibrary) ToInfoLibrary() map[string]*InfoMicroservice {
	out := make(map[string]*InfoMicroservice, len(l.microservices))
	for name, m := range l.microservices {
		out[name] = m.ToInfoMicroservice()
	}
	return out
}
