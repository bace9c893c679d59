package nifi

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/openfroyo/nifictl/pkg/engine"
)

// UploadTemplate uploads template XML into a group and returns the template id.
// The upload endpoint replies with XML only.
func (c *Client) UploadTemplate(ctx context.Context, groupID, name string, content []byte) (string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("template", name+".xml")
	if err != nil {
		return "", engine.NewPermanentError("failed to build template upload", err).WithCode(engine.ErrCodeInternal)
	}
	if _, err := part.Write(content); err != nil {
		return "", engine.NewPermanentError("failed to build template upload", err).WithCode(engine.ErrCodeInternal)
	}
	if err := mw.Close(); err != nil {
		return "", engine.NewPermanentError("failed to build template upload", err).WithCode(engine.ErrCodeInternal)
	}

	var out templateEntity
	cl := &call{
		op:          "upload_template",
		method:      http.MethodPost,
		path:        "process-groups/" + groupID + "/templates/upload",
		body:        &buf,
		contentType: mw.FormDataContentType(),
		accept:      "application/xml",
		decode: func(r io.Reader) error {
			return xml.NewDecoder(r).Decode(&out)
		},
	}
	if err := c.do(ctx, cl); err != nil {
		return "", err
	}
	if out.Template.ID == "" {
		return "", engine.NewPermanentError(fmt.Sprintf("template upload of %s returned no id", name), nil).
			WithCode(engine.ErrCodeInternal).
			WithOperation("upload_template")
	}
	return out.Template.ID, nil
}

// InstantiateTemplate instantiates an uploaded template into a group.
func (c *Client) InstantiateTemplate(ctx context.Context, groupID, templateID string) (*engine.Subgraph, error) {
	in := templateInstanceRequest{TemplateID: templateID}
	var out flowEntity
	if err := c.doJSON(ctx, "instantiate_template", http.MethodPost,
		"process-groups/"+groupID+"/template-instance", in, &out); err != nil {
		return nil, err
	}
	return subgraph(&out.Flow), nil
}

// DeleteTemplate removes an uploaded template.
func (c *Client) DeleteTemplate(ctx context.Context, templateID string) error {
	return c.doJSON(ctx, "delete_template", http.MethodDelete, "templates/"+templateID, nil, nil)
}

// ListPorts lists the input or output ports of a group.
func (c *Client) ListPorts(ctx context.Context, groupID string, dir engine.PortDirection) ([]engine.RemoteObject, error) {
	var ports []PortEntity
	switch dir {
	case engine.PortInput:
		var out inputPortsEntity
		if err := c.doJSON(ctx, "list_input_ports", http.MethodGet, "process-groups/"+groupID+"/input-ports", nil, &out); err != nil {
			return nil, err
		}
		ports = out.InputPorts
	case engine.PortOutput:
		var out outputPortsEntity
		if err := c.doJSON(ctx, "list_output_ports", http.MethodGet, "process-groups/"+groupID+"/output-ports", nil, &out); err != nil {
			return nil, err
		}
		ports = out.OutputPorts
	default:
		return nil, engine.NewPermanentError(fmt.Sprintf("invalid port direction %q", dir), nil).WithCode(engine.ErrCodeValidation)
	}

	objs := make([]engine.RemoteObject, 0, len(ports))
	for i := range ports {
		objs = append(objs, portObject(&ports[i], dir.Kind()))
	}
	return objs, nil
}

// SetVariables sets group variables. The current registry revision is read
// first; variables not named in vars are left unchanged.
func (c *Client) SetVariables(ctx context.Context, groupID string, vars []engine.Variable) error {
	path := "process-groups/" + groupID + "/variable-registry"

	var current variableRegistryEntity
	if err := c.doJSON(ctx, "get_variables", http.MethodGet, path, nil, &current); err != nil {
		return err
	}

	update := variableRegistryEntity{
		ProcessGroupRevision: current.ProcessGroupRevision,
		VariableRegistry: variableRegistry{
			ProcessGroupID: groupID,
			Variables:      make([]variableEntity, 0, len(vars)),
		},
	}
	for _, v := range vars {
		update.VariableRegistry.Variables = append(update.VariableRegistry.Variables,
			variableEntity{Variable: variable{Name: v.Name, Value: v.Value}})
	}

	return c.doJSON(ctx, "set_variables", http.MethodPut, path, update, nil)
}

// StartGroup requests the RUNNING state for a group and its components.
func (c *Client) StartGroup(ctx context.Context, groupID string) error {
	in := scheduleComponentsEntity{ID: groupID, State: stateRunning}
	return c.doJSON(ctx, "start_group", http.MethodPut, "flow/process-groups/"+groupID, in, nil)
}

// GetGroup reads a process group.
func (c *Client) GetGroup(ctx context.Context, groupID string) (*ProcessGroupEntity, error) {
	var out ProcessGroupEntity
	if err := c.doJSON(ctx, "get_group", http.MethodGet, "process-groups/"+groupID, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GroupFlow reads the flow of a process group: its child groups,
// processors, ports and connections.
func (c *Client) GroupFlow(ctx context.Context, groupID string) (*ProcessGroupFlow, error) {
	var out processGroupFlowEntity
	if err := c.doJSON(ctx, "group_flow", http.MethodGet, "flow/process-groups/"+groupID, nil, &out); err != nil {
		return nil, err
	}
	return &out.ProcessGroupFlow, nil
}

func portObject(p *PortEntity, kind engine.ComponentKind) engine.RemoteObject {
	return engine.RemoteObject{
		ID:      p.ID,
		GroupID: p.Component.ParentGroupID,
		Kind:    kind,
		Name:    p.Component.Name,
		State:   p.Component.State,
		Version: p.Revision.Version,
	}
}

func subgraph(f *Flow) *engine.Subgraph {
	sg := &engine.Subgraph{}
	for i := range f.ProcessGroups {
		g := &f.ProcessGroups[i]
		sg.Groups = append(sg.Groups, engine.RemoteObject{
			ID:      g.ID,
			GroupID: g.Component.ParentGroupID,
			Kind:    engine.KindProcessGroup,
			Name:    g.Component.Name,
			Version: g.Revision.Version,
		})
	}
	for i := range f.Processors {
		sg.Processors = append(sg.Processors, *processorObject(&f.Processors[i]))
	}
	for i := range f.InputPorts {
		sg.InputPorts = append(sg.InputPorts, portObject(&f.InputPorts[i], engine.KindInputPort))
	}
	for i := range f.OutputPorts {
		sg.OutputPorts = append(sg.OutputPorts, portObject(&f.OutputPorts[i], engine.KindOutputPort))
	}
	return sg
}
