package engine

import (
	"time"

	"github.com/openfroyo/nifictl/pkg/rdf"
)

// AttributeRecord is one attribute fact of a process or service instance,
// joined with what the ontology declares about its property path.
type AttributeRecord struct {
	// Subject is the instance the fact belongs to.
	Subject rdf.Term `json:"subject"`

	// EngineType is the remote type identifier declared by the ontology type.
	EngineType string `json:"engine_type"`

	// Path is the property path of the fact.
	Path rdf.Term `json:"path"`

	// Value is the object of the fact.
	Value rdf.Term `json:"value"`

	// Datatype is the declared scalar datatype, if any.
	Datatype *rdf.Term `json:"datatype,omitempty"`

	// Class is the declared class reference, if any.
	Class *rdf.Term `json:"class,omitempty"`

	// Key is the remote property key, if any.
	Key *string `json:"key,omitempty"`
}

// Role returns the wiring role of the record's path.
func (r AttributeRecord) Role() Role {
	if r.Class == nil {
		return RolePlain
	}
	switch r.Class.Value {
	case rdf.ConnWriterChannel:
		return RoleWriter
	case rdf.ConnReaderChannel:
		return RoleReader
	default:
		return RolePlain
	}
}

// ClassTyped reports whether the path denotes a relationship slot rather
// than a configuration value.
func (r AttributeRecord) ClassTyped() bool {
	return r.Class != nil
}

// ChannelRecord is one keyed attribute of a channel instance. A channel
// without keyed attributes yields a single record with Key and Value unset.
type ChannelRecord struct {
	Subject     rdf.Term  `json:"subject"`
	ChannelType rdf.Term  `json:"channel_type"`
	Key         *string   `json:"key,omitempty"`
	Value       *rdf.Term `json:"value,omitempty"`
}

// LinkDescriptor is one connection to create between two correlated subjects.
type LinkDescriptor struct {
	Source rdf.Term   `json:"source"`
	Target rdf.Term   `json:"target"`
	Key    *string    `json:"key,omitempty"`
	Origin LinkOrigin `json:"origin"`
}

// Entity is an aggregated process or service instance.
type Entity struct {
	Subject    rdf.Term          `json:"subject"`
	Kind       ComponentKind     `json:"kind"`
	EngineType string            `json:"engine_type"`
	Records    []AttributeRecord `json:"records"`
}

// Properties folds every record that is not class-typed into a remote
// configuration map. Records without a remote key cannot be placed and are
// returned separately. A key set more than once keeps the last value.
func (e Entity) Properties() (map[string]string, []AttributeRecord) {
	props := make(map[string]string)
	var unkeyed []AttributeRecord

	for _, rec := range e.Records {
		if rec.ClassTyped() {
			continue
		}
		if rec.Key == nil {
			unkeyed = append(unkeyed, rec)
			continue
		}
		props[*rec.Key] = rec.Value.Value
	}

	return props, unkeyed
}

// ChannelEntity is an aggregated channel instance.
type ChannelEntity struct {
	Subject     rdf.Term        `json:"subject"`
	ChannelType rdf.Term        `json:"channel_type"`
	Role        Role            `json:"role"`
	Records     []ChannelRecord `json:"records"`
}

// Variables returns the group variables bound from the channel's keyed
// attributes, in record order.
func (c ChannelEntity) Variables() []Variable {
	var vars []Variable
	for _, rec := range c.Records {
		if rec.Key == nil || rec.Value == nil {
			continue
		}
		vars = append(vars, Variable{Name: *rec.Key, Value: rec.Value.Value})
	}
	return vars
}

// Variable is one name/value pair of a process group's variable registry.
type Variable struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// RejectedRow is a query result that could not be mapped or aggregated.
type RejectedRow struct {
	Shape   string `json:"shape"`
	Subject string `json:"subject,omitempty"`
	Code    string `json:"code"`
	Error   string `json:"error"`
}

// Plan is the derived provisioning plan of one instance graph.
type Plan struct {
	// ID is the unique identifier for this plan.
	ID string `json:"id"`

	// CreatedAt is when the plan was derived.
	CreatedAt time.Time `json:"created_at"`

	Services       []Entity         `json:"services"`
	Processors     []Entity         `json:"processors"`
	WriterChannels []ChannelEntity  `json:"writer_channels"`
	ReaderChannels []ChannelEntity  `json:"reader_channels"`
	DirectLinks    []LinkDescriptor `json:"direct_links"`
	WriterLinks    []LinkDescriptor `json:"writer_links"`
	ReaderLinks    []LinkDescriptor `json:"reader_links"`

	// Rejected lists rows skipped during derivation.
	Rejected []RejectedRow `json:"rejected,omitempty"`

	// Summary provides statistics about the plan.
	Summary PlanSummary `json:"summary"`
}

// PlanSummary provides statistics about a plan.
type PlanSummary struct {
	Services       int `json:"services"`
	Processors     int `json:"processors"`
	WriterChannels int `json:"writer_channels"`
	ReaderChannels int `json:"reader_channels"`
	Links          int `json:"links"`
	Rejected       int `json:"rejected"`
}

// ChannelTypes returns the distinct channel types of the plan in first-seen order.
func (p *Plan) ChannelTypes() []rdf.Term {
	seen := make(map[rdf.Term]bool)
	var types []rdf.Term
	for _, list := range [][]ChannelEntity{p.WriterChannels, p.ReaderChannels} {
		for _, ch := range list {
			if !seen[ch.ChannelType] {
				seen[ch.ChannelType] = true
				types = append(types, ch.ChannelType)
			}
		}
	}
	return types
}

func (p *Plan) summarize() {
	p.Summary = PlanSummary{
		Services:       len(p.Services),
		Processors:     len(p.Processors),
		WriterChannels: len(p.WriterChannels),
		ReaderChannels: len(p.ReaderChannels),
		Links:          len(p.DirectLinks) + len(p.WriterLinks) + len(p.ReaderLinks),
		Rejected:       len(p.Rejected),
	}
}

// CorrelationEntry maps an ontology subject to the remote object created for it.
type CorrelationEntry struct {
	Subject  rdf.Term      `json:"subject"`
	RemoteID string        `json:"remote_id"`
	GroupID  string        `json:"group_id"`
	Kind     ComponentKind `json:"kind"`
}

// RemoteObject is a created or listed object of the remote engine.
type RemoteObject struct {
	ID      string        `json:"id"`
	GroupID string        `json:"group_id"`
	Kind    ComponentKind `json:"kind"`
	Type    string        `json:"type,omitempty"`
	Name    string        `json:"name,omitempty"`
	State   string        `json:"state,omitempty"`

	// Version is the revision the next mutation must carry.
	Version int64 `json:"version"`
}

// Subgraph is what one template instantiation created.
type Subgraph struct {
	Groups      []RemoteObject `json:"groups"`
	Processors  []RemoteObject `json:"processors"`
	InputPorts  []RemoteObject `json:"input_ports"`
	OutputPorts []RemoteObject `json:"output_ports"`
}

// Endpoint is one side of a connection.
type Endpoint struct {
	ID      string        `json:"id"`
	GroupID string        `json:"group_id"`
	Kind    ComponentKind `json:"kind"`
}

// ConnectionRequest describes one connection to create. A nil relationship
// set creates an unrestricted connection.
type ConnectionRequest struct {
	GroupID       string   `json:"group_id"`
	Source        Endpoint `json:"source"`
	Destination   Endpoint `json:"destination"`
	Relationships []string `json:"relationships,omitempty"`
}

// Failure is one per-entity or per-link failure of a run.
type Failure struct {
	Phase   Phase      `json:"phase"`
	Subject string     `json:"subject,omitempty"`
	Class   ErrorClass `json:"class"`
	Code    string     `json:"code,omitempty"`
	Message string     `json:"message"`
}

// RunSummary counts the outcomes of a run.
type RunSummary struct {
	ServicesCreated    int `json:"services_created"`
	ProcessorsCreated  int `json:"processors_created"`
	ChannelsCreated    int `json:"channels_created"`
	ConnectionsCreated int `json:"connections_created"`
	TemplatesUploaded  int `json:"templates_uploaded"`
	TemplatesDeleted   int `json:"templates_deleted"`
	EntitiesFailed     int `json:"entities_failed"`
	LinksDropped       int `json:"links_dropped"`
	RowsRejected       int `json:"rows_rejected"`
	Warnings           int `json:"warnings"`
}

// RunReport is the outcome of one provisioning run.
type RunReport struct {
	RunID        string             `json:"run_id"`
	StartedAt    time.Time          `json:"started_at"`
	CompletedAt  time.Time          `json:"completed_at"`
	Status       RunStatus          `json:"status"`
	Summary      RunSummary         `json:"summary"`
	Failures     []Failure          `json:"failures,omitempty"`
	Correlations []CorrelationEntry `json:"correlations,omitempty"`
	Error        string             `json:"error,omitempty"`
}

// Duration returns how long the run took.
func (r *RunReport) Duration() time.Duration {
	return r.CompletedAt.Sub(r.StartedAt)
}
