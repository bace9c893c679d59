package engine

import (
	"context"

	"github.com/openfroyo/nifictl/pkg/rdf"
)

// Graph is the graph store the engine derives plans from and writes
// correlations back to.
type Graph interface {
	// Query evaluates one fixed query shape and returns its ordered solutions.
	Query(ctx context.Context, p rdf.Pattern) ([]rdf.Solution, error)

	// Insert adds one fact. Malformed terms are rejected.
	Insert(ctx context.Context, tr rdf.Triple) error
}

// ControlPlane is the remote flow engine. Every mutation of an existing
// object carries the version held by the RemoteObject passed in; a version
// mismatch is a conflict error for that call only.
type ControlPlane interface {
	// CreateProcessor creates a processor of the given engine type in a group.
	CreateProcessor(ctx context.Context, groupID, engineType string) (*RemoteObject, error)

	// UpdateProcessor replaces the given configuration properties.
	UpdateProcessor(ctx context.Context, obj *RemoteObject, properties map[string]string) (*RemoteObject, error)

	// StartProcessor requests the RUNNING state. It does not wait.
	StartProcessor(ctx context.Context, obj *RemoteObject) error

	// CreateService creates a controller service of the given engine type in a group.
	CreateService(ctx context.Context, groupID, engineType string) (*RemoteObject, error)

	// UpdateService replaces the given configuration properties.
	UpdateService(ctx context.Context, obj *RemoteObject, properties map[string]string) (*RemoteObject, error)

	// EnableService requests the ENABLED state. Enablement is asynchronous.
	EnableService(ctx context.Context, obj *RemoteObject) error

	// ServiceState reads the current run state of a controller service.
	ServiceState(ctx context.Context, id string) (ServiceState, error)

	// ListServices lists the controller services of a group.
	ListServices(ctx context.Context, groupID string) ([]RemoteObject, error)

	// UploadTemplate uploads raw template content and returns the template id.
	UploadTemplate(ctx context.Context, groupID, name string, content []byte) (string, error)

	// InstantiateTemplate instantiates an uploaded template into a group.
	InstantiateTemplate(ctx context.Context, groupID, templateID string) (*Subgraph, error)

	// DeleteTemplate removes an uploaded template.
	DeleteTemplate(ctx context.Context, templateID string) error

	// ListPorts lists the input or output ports of a group.
	ListPorts(ctx context.Context, groupID string, dir PortDirection) ([]RemoteObject, error)

	// SetVariables sets group variables, replacing existing ones of the same name.
	SetVariables(ctx context.Context, groupID string, vars []Variable) error

	// StartGroup requests the RUNNING state for a group and its components.
	StartGroup(ctx context.Context, groupID string) error

	// CreateConnection creates one connection.
	CreateConnection(ctx context.Context, req ConnectionRequest) (*RemoteObject, error)
}

// PlanGate decides whether a derived plan may be executed.
type PlanGate interface {
	// CheckPlan returns an error wrapping ErrPolicyDenied if the plan must not run.
	CheckPlan(ctx context.Context, plan *Plan) error
}

// TemplateLoader resolves the template configured for a channel type.
type TemplateLoader interface {
	// LoadTemplate returns the template name and content for a channel type
	// used in the given role.
	LoadTemplate(channelType string, role Role) (string, []byte, error)
}

// CorrelationLookup resolves subjects to the remote objects created for them.
type CorrelationLookup interface {
	Lookup(subject rdf.Term) (CorrelationEntry, bool)
}
