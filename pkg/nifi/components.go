package nifi

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/openfroyo/nifictl/pkg/engine"
)

// Run states accepted by the run-status endpoints.
const (
	stateRunning = "RUNNING"
	stateEnabled = "ENABLED"
)

func processorObject(e *ProcessorEntity) *engine.RemoteObject {
	return &engine.RemoteObject{
		ID:      e.ID,
		GroupID: e.Component.ParentGroupID,
		Kind:    engine.KindProcessor,
		Type:    e.Component.Type,
		Name:    e.Component.Name,
		State:   e.Component.State,
		Version: e.Revision.Version,
	}
}

func serviceObject(e *ControllerServiceEntity) *engine.RemoteObject {
	return &engine.RemoteObject{
		ID:      e.ID,
		GroupID: e.Component.ParentGroupID,
		Kind:    engine.KindControllerService,
		Type:    e.Component.Type,
		Name:    e.Component.Name,
		State:   e.Component.State,
		Version: e.Revision.Version,
	}
}

func stringPtrs(props map[string]string) map[string]*string {
	out := make(map[string]*string, len(props))
	for k, v := range props {
		v := v
		out[k] = &v
	}
	return out
}

// CreateProcessor creates a processor of the given type in a group.
func (c *Client) CreateProcessor(ctx context.Context, groupID, engineType string) (*engine.RemoteObject, error) {
	in := ProcessorEntity{Component: Processor{Type: engineType}}
	var out ProcessorEntity
	if err := c.doJSON(ctx, "create_processor", http.MethodPost,
		"process-groups/"+groupID+"/processors", in, &out); err != nil {
		return nil, err
	}
	return processorObject(&out), nil
}

// GetProcessor reads a processor including its descriptors and relationships.
func (c *Client) GetProcessor(ctx context.Context, id string) (*ProcessorEntity, error) {
	var out ProcessorEntity
	if err := c.doJSON(ctx, "get_processor", http.MethodGet, "processors/"+id, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateProcessor replaces the given configuration properties.
func (c *Client) UpdateProcessor(ctx context.Context, obj *engine.RemoteObject, properties map[string]string) (*engine.RemoteObject, error) {
	in := ProcessorEntity{
		Revision: Revision{Version: obj.Version},
		Component: Processor{
			ID:     obj.ID,
			Config: &ProcessorConfig{Properties: stringPtrs(properties)},
		},
	}
	var out ProcessorEntity
	if err := c.doJSON(ctx, "update_processor", http.MethodPut, "processors/"+obj.ID, in, &out); err != nil {
		return nil, err
	}
	return processorObject(&out), nil
}

// StartProcessor requests the RUNNING state.
func (c *Client) StartProcessor(ctx context.Context, obj *engine.RemoteObject) error {
	in := runStatusEntity{Revision: Revision{Version: obj.Version}, State: stateRunning}
	return c.doJSON(ctx, "start_processor", http.MethodPut, "processors/"+obj.ID+"/run-status", in, nil)
}

// DeleteProcessor deletes a processor at the given revision.
func (c *Client) DeleteProcessor(ctx context.Context, obj *engine.RemoteObject) error {
	cl, err := jsonCall("delete_processor", http.MethodDelete, "processors/"+obj.ID, nil, nil)
	if err != nil {
		return err
	}
	cl.query = versionQuery(obj.Version)
	return c.do(ctx, cl)
}

// CreateService creates a controller service of the given type in a group.
func (c *Client) CreateService(ctx context.Context, groupID, engineType string) (*engine.RemoteObject, error) {
	in := ControllerServiceEntity{Component: ControllerService{Type: engineType}}
	var out ControllerServiceEntity
	if err := c.doJSON(ctx, "create_service", http.MethodPost,
		"process-groups/"+groupID+"/controller-services", in, &out); err != nil {
		return nil, err
	}
	return serviceObject(&out), nil
}

// GetService reads a controller service including its descriptors.
func (c *Client) GetService(ctx context.Context, id string) (*ControllerServiceEntity, error) {
	var out ControllerServiceEntity
	if err := c.doJSON(ctx, "get_service", http.MethodGet, "controller-services/"+id, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateService replaces the given configuration properties.
func (c *Client) UpdateService(ctx context.Context, obj *engine.RemoteObject, properties map[string]string) (*engine.RemoteObject, error) {
	in := ControllerServiceEntity{
		Revision: Revision{Version: obj.Version},
		Component: ControllerService{
			ID:         obj.ID,
			Properties: stringPtrs(properties),
		},
	}
	var out ControllerServiceEntity
	if err := c.doJSON(ctx, "update_service", http.MethodPut, "controller-services/"+obj.ID, in, &out); err != nil {
		return nil, err
	}
	return serviceObject(&out), nil
}

// EnableService requests the ENABLED state.
func (c *Client) EnableService(ctx context.Context, obj *engine.RemoteObject) error {
	in := runStatusEntity{Revision: Revision{Version: obj.Version}, State: stateEnabled}
	return c.doJSON(ctx, "enable_service", http.MethodPut, "controller-services/"+obj.ID+"/run-status", in, nil)
}

// ServiceState reads the current state of a controller service.
func (c *Client) ServiceState(ctx context.Context, id string) (engine.ServiceState, error) {
	svc, err := c.GetService(ctx, id)
	if err != nil {
		return "", err
	}
	return engine.ServiceState(svc.Component.State), nil
}

// DeleteService deletes a controller service at the given revision.
func (c *Client) DeleteService(ctx context.Context, obj *engine.RemoteObject) error {
	cl, err := jsonCall("delete_service", http.MethodDelete, "controller-services/"+obj.ID, nil, nil)
	if err != nil {
		return err
	}
	cl.query = versionQuery(obj.Version)
	return c.do(ctx, cl)
}

// ListServices lists the controller services defined directly in a group.
func (c *Client) ListServices(ctx context.Context, groupID string) ([]engine.RemoteObject, error) {
	cl, err := jsonCall("list_services", http.MethodGet, "flow/process-groups/"+groupID+"/controller-services", nil, nil)
	if err != nil {
		return nil, err
	}
	var out controllerServicesEntity
	cl.out = &out
	cl.query = url.Values{
		"includeAncestorGroups":   {"false"},
		"includeDescendantGroups": {"false"},
	}.Encode()
	if err := c.do(ctx, cl); err != nil {
		return nil, err
	}

	objs := make([]engine.RemoteObject, 0, len(out.ControllerServices))
	for i := range out.ControllerServices {
		svc := &out.ControllerServices[i]
		if svc.Component.ParentGroupID != "" && svc.Component.ParentGroupID != groupID {
			continue
		}
		objs = append(objs, *serviceObject(svc))
	}
	return objs, nil
}

// CreateConnection creates one connection in req.GroupID.
func (c *Client) CreateConnection(ctx context.Context, req engine.ConnectionRequest) (*engine.RemoteObject, error) {
	in := ConnectionEntity{
		Component: Connection{
			Source:                 connectable(req.Source, req.GroupID),
			Destination:            connectable(req.Destination, req.GroupID),
			SelectedRelationships:  req.Relationships,
			AvailableRelationships: req.Relationships,
		},
	}
	var out ConnectionEntity
	if err := c.doJSON(ctx, "create_connection", http.MethodPost,
		"process-groups/"+req.GroupID+"/connections", in, &out); err != nil {
		return nil, err
	}
	return &engine.RemoteObject{
		ID:      out.ID,
		GroupID: out.Component.ParentGroupID,
		Version: out.Revision.Version,
	}, nil
}

func connectable(ep engine.Endpoint, fallbackGroup string) Connectable {
	group := ep.GroupID
	if group == "" {
		group = fallbackGroup
	}
	return Connectable{ID: ep.ID, GroupID: group, Type: string(ep.Kind)}
}

func versionQuery(version int64) string {
	return url.Values{"version": {strconv.FormatInt(version, 10)}}.Encode()
}
