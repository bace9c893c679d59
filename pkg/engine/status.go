package engine

import (
	"encoding/json"
	"fmt"
)

// RunStatus represents the overall status of a provisioning run.
type RunStatus string

const (
	// RunStatusRunning indicates the run is currently executing.
	RunStatusRunning RunStatus = "running"

	// RunStatusSucceeded indicates every entity, channel and link was provisioned.
	RunStatusSucceeded RunStatus = "succeeded"

	// RunStatusPartial indicates the run completed but some entities or links failed.
	RunStatusPartial RunStatus = "partial"

	// RunStatusFailed indicates a fatal error aborted the run.
	RunStatusFailed RunStatus = "failed"
)

// IsTerminal returns true if the run status represents a final state.
func (s RunStatus) IsTerminal() bool {
	return s == RunStatusSucceeded || s == RunStatusFailed || s == RunStatusPartial
}

// Validate checks if the run status is valid.
func (s RunStatus) Validate() error {
	switch s {
	case RunStatusRunning, RunStatusSucceeded, RunStatusPartial, RunStatusFailed:
		return nil
	default:
		return fmt.Errorf("invalid run status: %s", s)
	}
}

// MarshalJSON implements custom JSON marshaling for type-safe enum serialization.
func (s RunStatus) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(s))
}

// UnmarshalJSON implements custom JSON unmarshaling with validation.
func (s *RunStatus) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	*s = RunStatus(str)
	return s.Validate()
}

// ComponentKind is the remote kind of a correlated object. The values are the
// connectable type names the remote API expects in connection requests.
type ComponentKind string

const (
	KindProcessor         ComponentKind = "PROCESSOR"
	KindInputPort         ComponentKind = "INPUT_PORT"
	KindOutputPort        ComponentKind = "OUTPUT_PORT"
	KindControllerService ComponentKind = "CONTROLLER_SERVICE"
	KindProcessGroup      ComponentKind = "PROCESS_GROUP"
)

// IsPort returns true for input and output ports.
func (k ComponentKind) IsPort() bool {
	return k == KindInputPort || k == KindOutputPort
}

// Connectable returns true if the kind may be the endpoint of a connection.
func (k ComponentKind) Connectable() bool {
	return k == KindProcessor || k.IsPort()
}

// Role is the wiring role of a property path.
type Role string

const (
	// RolePlain marks a configuration value.
	RolePlain Role = "plain"

	// RoleWriter marks a path whose values are written to (conn:WriterChannel).
	RoleWriter Role = "writer-channel"

	// RoleReader marks a path whose values are read from (conn:ReaderChannel).
	RoleReader Role = "reader-channel"
)

// PortDirection returns the direction of the port a channel of this role
// exposes: writers feed an input port, readers drain an output port.
func (r Role) PortDirection() PortDirection {
	if r == RoleReader {
		return PortOutput
	}
	return PortInput
}

// Validate checks if the role is valid.
func (r Role) Validate() error {
	switch r {
	case RolePlain, RoleWriter, RoleReader:
		return nil
	default:
		return fmt.Errorf("invalid role: %s", r)
	}
}

// PortDirection selects input or output ports of a process group.
type PortDirection string

const (
	PortInput  PortDirection = "input"
	PortOutput PortDirection = "output"
)

// Kind returns the component kind of a port with this direction.
func (d PortDirection) Kind() ComponentKind {
	if d == PortOutput {
		return KindOutputPort
	}
	return KindInputPort
}

// LinkOrigin records which query shape produced a link.
type LinkOrigin string

const (
	LinkDirect LinkOrigin = "direct"
	LinkWriter LinkOrigin = "writer-channel"
	LinkReader LinkOrigin = "reader-channel"
)

// ServiceState is the run state of a controller service.
type ServiceState string

const (
	ServiceEnabled   ServiceState = "ENABLED"
	ServiceEnabling  ServiceState = "ENABLING"
	ServiceDisabled  ServiceState = "DISABLED"
	ServiceDisabling ServiceState = "DISABLING"
)

// MissingKeyPolicy decides how links without a relationship key are wired.
type MissingKeyPolicy string

const (
	// MissingKeyFail drops the link with a diagnostic.
	MissingKeyFail MissingKeyPolicy = "fail"

	// MissingKeyDefault wires the configured default relationship.
	MissingKeyDefault MissingKeyPolicy = "default"

	// MissingKeyUnrestricted wires the link with empty relationship sets.
	MissingKeyUnrestricted MissingKeyPolicy = "unrestricted"
)

// Validate checks if the policy is valid.
func (p MissingKeyPolicy) Validate() error {
	switch p {
	case MissingKeyFail, MissingKeyDefault, MissingKeyUnrestricted:
		return nil
	case "":
		return fmt.Errorf("missing key policy is required")
	default:
		return fmt.Errorf("invalid missing key policy: %s", p)
	}
}

// Phase names one step of a run.
type Phase string

const (
	PhasePlan           Phase = "plan"
	PhasePolicy         Phase = "policy"
	PhaseServices       Phase = "services"
	PhaseProcessors     Phase = "processors"
	PhaseDirectLinks    Phase = "direct-links"
	PhaseWriterChannels Phase = "writer-channels"
	PhaseReaderChannels Phase = "reader-channels"
	PhaseChannelLinks   Phase = "channel-links"
	PhaseCleanup        Phase = "cleanup"
	PhaseActivation     Phase = "activation"
)
