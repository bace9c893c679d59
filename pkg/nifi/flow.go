package nifi

import (
	"context"
	"net/http"
	"strings"

	"github.com/openfroyo/nifictl/pkg/engine"
)

// About reads the engine's version information.
func (c *Client) About(ctx context.Context) (*About, error) {
	var out aboutEntity
	if err := c.doJSON(ctx, "about", http.MethodGet, "flow/about", nil, &out); err != nil {
		return nil, err
	}
	return &out.About, nil
}

// ProcessorTypes lists the processor types the engine offers.
func (c *Client) ProcessorTypes(ctx context.Context) ([]DocumentedType, error) {
	var out processorTypesEntity
	if err := c.doJSON(ctx, "processor_types", http.MethodGet, "flow/processor-types", nil, &out); err != nil {
		return nil, err
	}
	return out.ProcessorTypes, nil
}

// ServiceTypes lists the controller service types the engine offers.
func (c *Client) ServiceTypes(ctx context.Context) ([]DocumentedType, error) {
	var out serviceTypesEntity
	if err := c.doJSON(ctx, "service_types", http.MethodGet, "flow/controller-service-types", nil, &out); err != nil {
		return nil, err
	}
	return out.ControllerServiceTypes, nil
}

// FilterTypes keeps the types whose description or one of whose tags
// contains any of the filters, ignoring case. No filters keeps everything.
func FilterTypes(types []DocumentedType, filters []string) []DocumentedType {
	if len(filters) == 0 {
		return types
	}

	lower := make([]string, 0, len(filters))
	for _, f := range filters {
		lower = append(lower, strings.ToLower(f))
	}
	matches := func(s string) bool {
		s = strings.ToLower(s)
		for _, f := range lower {
			if strings.Contains(s, f) {
				return true
			}
		}
		return false
	}

	var out []DocumentedType
	for _, t := range types {
		keep := matches(t.Description)
		for _, tag := range t.Tags {
			keep = keep || matches(tag)
		}
		if keep {
			out = append(out, t)
		}
	}
	return out
}

// ActiveProcessors lists the running processors of a group.
func (c *Client) ActiveProcessors(ctx context.Context, groupID string) ([]ProcessorEntity, error) {
	flow, err := c.GroupFlow(ctx, groupID)
	if err != nil {
		return nil, err
	}

	var out []ProcessorEntity
	for _, p := range flow.Flow.Processors {
		if p.Component.State == stateRunning {
			out = append(out, p)
		}
	}
	return out, nil
}

// ActiveServices lists the enabled controller services of a group.
func (c *Client) ActiveServices(ctx context.Context, groupID string) ([]engine.RemoteObject, error) {
	services, err := c.ListServices(ctx, groupID)
	if err != nil {
		return nil, err
	}

	var out []engine.RemoteObject
	for _, s := range services {
		if engine.ServiceState(s.State) == engine.ServiceEnabled {
			out = append(out, s)
		}
	}
	return out, nil
}
