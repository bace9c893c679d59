package nifi

import "encoding/xml"

// Revision is the optimistic-locking token every mutation carries.
type Revision struct {
	ClientID string `json:"clientId,omitempty"`
	Version  int64  `json:"version"`
}

// Bundle identifies the extension bundle a type ships in.
type Bundle struct {
	Group    string `json:"group"`
	Artifact string `json:"artifact"`
	Version  string `json:"version"`
}

// DocumentedType is one processor or controller service type offered by the engine.
type DocumentedType struct {
	Type        string   `json:"type"`
	Description string   `json:"description,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	Bundle      *Bundle  `json:"bundle,omitempty"`
}

type processorTypesEntity struct {
	ProcessorTypes []DocumentedType `json:"processorTypes"`
}

type serviceTypesEntity struct {
	ControllerServiceTypes []DocumentedType `json:"controllerServiceTypes"`
}

// About describes the remote engine.
type About struct {
	Title            string `json:"title"`
	Version          string `json:"version"`
	URI              string `json:"uri"`
	ContentViewerURL string `json:"contentViewerUrl,omitempty"`
	Timezone         string `json:"timezone,omitempty"`
	BuildTag         string `json:"buildTag,omitempty"`
	BuildRevision    string `json:"buildRevision,omitempty"`
	BuildBranch      string `json:"buildBranch,omitempty"`
}

type aboutEntity struct {
	About About `json:"about"`
}

// PropertyDescriptor describes one configuration property of a type.
type PropertyDescriptor struct {
	Name         string `json:"name"`
	DisplayName  string `json:"displayName"`
	Description  string `json:"description"`
	DefaultValue string `json:"defaultValue,omitempty"`
	Required     bool   `json:"required"`
	Sensitive    bool   `json:"sensitive,omitempty"`
}

// Relationship is one outgoing relationship of a processor.
type Relationship struct {
	Name          string `json:"name"`
	Description   string `json:"description,omitempty"`
	AutoTerminate bool   `json:"autoTerminate,omitempty"`
}

// ProcessorConfig is the configuration section of a processor.
type ProcessorConfig struct {
	Properties  map[string]*string            `json:"properties,omitempty"`
	Descriptors map[string]PropertyDescriptor `json:"descriptors,omitempty"`
}

// Processor is the component section of a processor entity.
type Processor struct {
	ID            string           `json:"id,omitempty"`
	ParentGroupID string           `json:"parentGroupId,omitempty"`
	Name          string           `json:"name,omitempty"`
	Type          string           `json:"type,omitempty"`
	State         string           `json:"state,omitempty"`
	Description   string           `json:"description,omitempty"`
	Relationships []Relationship   `json:"relationships,omitempty"`
	Config        *ProcessorConfig `json:"config,omitempty"`
}

// ProcessorEntity is a processor together with its revision.
type ProcessorEntity struct {
	ID        string    `json:"id,omitempty"`
	Revision  Revision  `json:"revision"`
	Component Processor `json:"component"`
}

// ControllerService is the component section of a controller service entity.
type ControllerService struct {
	ID            string                        `json:"id,omitempty"`
	ParentGroupID string                        `json:"parentGroupId,omitempty"`
	Name          string                        `json:"name,omitempty"`
	Type          string                        `json:"type,omitempty"`
	State         string                        `json:"state,omitempty"`
	Properties    map[string]*string            `json:"properties,omitempty"`
	Descriptors   map[string]PropertyDescriptor `json:"descriptors,omitempty"`
}

// ControllerServiceEntity is a controller service together with its revision.
type ControllerServiceEntity struct {
	ID        string            `json:"id,omitempty"`
	Revision  Revision          `json:"revision"`
	Component ControllerService `json:"component"`
}

type controllerServicesEntity struct {
	ControllerServices []ControllerServiceEntity `json:"controllerServices"`
}

// Port is the component section of an input or output port.
type Port struct {
	ID            string `json:"id"`
	ParentGroupID string `json:"parentGroupId"`
	Name          string `json:"name,omitempty"`
	Type          string `json:"type,omitempty"`
	State         string `json:"state,omitempty"`
}

// PortEntity is a port together with its revision.
type PortEntity struct {
	ID        string   `json:"id"`
	Revision  Revision `json:"revision"`
	Component Port     `json:"component"`
}

type inputPortsEntity struct {
	InputPorts []PortEntity `json:"inputPorts"`
}

type outputPortsEntity struct {
	OutputPorts []PortEntity `json:"outputPorts"`
}

// ProcessGroup is the component section of a process group entity.
type ProcessGroup struct {
	ID            string `json:"id"`
	ParentGroupID string `json:"parentGroupId,omitempty"`
	Name          string `json:"name,omitempty"`
}

// ProcessGroupEntity is a process group together with its revision.
type ProcessGroupEntity struct {
	ID              string       `json:"id"`
	Revision        Revision     `json:"revision"`
	Component       ProcessGroup `json:"component"`
	RunningCount    int          `json:"runningCount,omitempty"`
	StoppedCount    int          `json:"stoppedCount,omitempty"`
	InvalidCount    int          `json:"invalidCount,omitempty"`
	DisabledCount   int          `json:"disabledCount,omitempty"`
	InputPortCount  int          `json:"inputPortCount,omitempty"`
	OutputPortCount int          `json:"outputPortCount,omitempty"`
}

// Connectable is one endpoint of a connection.
type Connectable struct {
	ID      string `json:"id"`
	GroupID string `json:"groupId"`
	Type    string `json:"type"`
}

// Connection is the component section of a connection entity.
type Connection struct {
	ID                     string      `json:"id,omitempty"`
	ParentGroupID          string      `json:"parentGroupId,omitempty"`
	Source                 Connectable `json:"source"`
	Destination            Connectable `json:"destination"`
	SelectedRelationships  []string    `json:"selectedRelationships,omitempty"`
	AvailableRelationships []string    `json:"availableRelationships,omitempty"`
}

// ConnectionEntity is a connection together with its revision.
type ConnectionEntity struct {
	ID        string     `json:"id,omitempty"`
	Revision  Revision   `json:"revision"`
	Component Connection `json:"component"`
}

// Flow is the content of a process group.
type Flow struct {
	ProcessGroups []ProcessGroupEntity `json:"processGroups"`
	Processors    []ProcessorEntity    `json:"processors"`
	InputPorts    []PortEntity         `json:"inputPorts"`
	OutputPorts   []PortEntity         `json:"outputPorts"`
	Connections   []ConnectionEntity   `json:"connections"`
}

type flowEntity struct {
	Flow Flow `json:"flow"`
}

// ProcessGroupFlow is the flow of one process group as seen from the flow API.
type ProcessGroupFlow struct {
	ID            string `json:"id"`
	ParentGroupID string `json:"parentGroupId,omitempty"`
	Flow          Flow   `json:"flow"`
}

type processGroupFlowEntity struct {
	ProcessGroupFlow ProcessGroupFlow `json:"processGroupFlow"`
}

type templateInstanceRequest struct {
	TemplateID string  `json:"templateId"`
	OriginX    float64 `json:"originX"`
	OriginY    float64 `json:"originY"`
}

// templateEntity is the XML reply of a template upload.
type templateEntity struct {
	XMLName  xml.Name `xml:"templateEntity"`
	Template struct {
		ID      string `xml:"id"`
		GroupID string `xml:"groupId"`
		Name    string `xml:"name"`
	} `xml:"template"`
}

type variable struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type variableEntity struct {
	Variable variable `json:"variable"`
}

type variableRegistry struct {
	ProcessGroupID string           `json:"processGroupId"`
	Variables      []variableEntity `json:"variables"`
}

type variableRegistryEntity struct {
	ProcessGroupRevision Revision         `json:"processGroupRevision"`
	VariableRegistry     variableRegistry `json:"variableRegistry"`
}

type runStatusEntity struct {
	Revision Revision `json:"revision"`
	State    string   `json:"state"`
}

type scheduleComponentsEntity struct {
	ID    string `json:"id"`
	State string `json:"state"`
}
