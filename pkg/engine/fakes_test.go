package engine

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/openfroyo/nifictl/pkg/rdf"
)

// fakePlane records every control-plane call as one line, in call order.
// Remote ids are allocated sequentially per prefix.
type fakePlane struct {
	calls []string
	seq   map[string]int

	// failCreate makes creation of these engine types fail.
	failCreate map[string]error
	// failUpdate makes updates of these remote ids fail.
	failUpdate map[string]error
	// failConnection makes connection creation fail.
	failConnection error
	// states is the sequence of states returned by ServiceState, per id.
	// The last state repeats.
	states map[string][]ServiceState
	// noPorts makes instantiated groups expose no ports.
	noPorts bool

	groupServices map[string][]RemoteObject
	connections   []ConnectionRequest
	variables     map[string][]Variable
	stateChecks   map[string]int
}

func newFakePlane() *fakePlane {
	return &fakePlane{
		seq:           make(map[string]int),
		failCreate:    make(map[string]error),
		failUpdate:    make(map[string]error),
		states:        make(map[string][]ServiceState),
		groupServices: make(map[string][]RemoteObject),
		variables:     make(map[string][]Variable),
		stateChecks:   make(map[string]int),
	}
}

func (f *fakePlane) next(prefix string) string {
	f.seq[prefix]++
	return fmt.Sprintf("%s-%d", prefix, f.seq[prefix])
}

func (f *fakePlane) record(format string, args ...interface{}) {
	f.calls = append(f.calls, fmt.Sprintf(format, args...))
}

func (f *fakePlane) CreateProcessor(_ context.Context, groupID, engineType string) (*RemoteObject, error) {
	f.record("create-processor %s", engineType)
	if err := f.failCreate[engineType]; err != nil {
		return nil, err
	}
	return &RemoteObject{ID: f.next("proc"), GroupID: groupID, Kind: KindProcessor, Type: engineType}, nil
}

func (f *fakePlane) UpdateProcessor(_ context.Context, obj *RemoteObject, props map[string]string) (*RemoteObject, error) {
	f.record("update-processor %s %s", obj.ID, formatProps(props))
	if err := f.failUpdate[obj.ID]; err != nil {
		return nil, err
	}
	updated := *obj
	updated.Version++
	return &updated, nil
}

func (f *fakePlane) StartProcessor(_ context.Context, obj *RemoteObject) error {
	f.record("start-processor %s", obj.ID)
	return nil
}

func (f *fakePlane) CreateService(_ context.Context, groupID, engineType string) (*RemoteObject, error) {
	f.record("create-service %s", engineType)
	if err := f.failCreate[engineType]; err != nil {
		return nil, err
	}
	return &RemoteObject{ID: f.next("svc"), GroupID: groupID, Kind: KindControllerService, Type: engineType}, nil
}

func (f *fakePlane) UpdateService(_ context.Context, obj *RemoteObject, props map[string]string) (*RemoteObject, error) {
	f.record("update-service %s %s", obj.ID, formatProps(props))
	if err := f.failUpdate[obj.ID]; err != nil {
		return nil, err
	}
	updated := *obj
	updated.Version++
	return &updated, nil
}

func (f *fakePlane) EnableService(_ context.Context, obj *RemoteObject) error {
	f.record("enable-service %s", obj.ID)
	return nil
}

func (f *fakePlane) ServiceState(_ context.Context, id string) (ServiceState, error) {
	f.record("service-state %s", id)
	n := f.stateChecks[id]
	f.stateChecks[id]++

	seq, ok := f.states[id]
	if !ok || len(seq) == 0 {
		return ServiceEnabled, nil
	}
	if n >= len(seq) {
		n = len(seq) - 1
	}
	return seq[n], nil
}

func (f *fakePlane) ListServices(_ context.Context, groupID string) ([]RemoteObject, error) {
	f.record("list-services %s", groupID)
	return f.groupServices[groupID], nil
}

func (f *fakePlane) UploadTemplate(_ context.Context, groupID, name string, _ []byte) (string, error) {
	f.record("upload-template %s", name)
	return f.next("tpl"), nil
}

func (f *fakePlane) InstantiateTemplate(_ context.Context, groupID, templateID string) (*Subgraph, error) {
	f.record("instantiate-template %s", templateID)
	return &Subgraph{
		Groups: []RemoteObject{{ID: f.next("group"), GroupID: groupID, Kind: KindProcessGroup}},
	}, nil
}

func (f *fakePlane) DeleteTemplate(_ context.Context, templateID string) error {
	f.record("delete-template %s", templateID)
	return nil
}

func (f *fakePlane) ListPorts(_ context.Context, groupID string, dir PortDirection) ([]RemoteObject, error) {
	f.record("list-ports %s %s", groupID, dir)
	if f.noPorts {
		return nil, nil
	}
	return []RemoteObject{{ID: f.next(string(dir) + "-port"), Kind: dir.Kind()}}, nil
}

func (f *fakePlane) SetVariables(_ context.Context, groupID string, vars []Variable) error {
	parts := make([]string, 0, len(vars))
	for _, v := range vars {
		parts = append(parts, v.Name+"="+v.Value)
	}
	f.record("set-variables %s %s", groupID, strings.Join(parts, ","))
	f.variables[groupID] = vars
	return nil
}

func (f *fakePlane) StartGroup(_ context.Context, groupID string) error {
	f.record("start-group %s", groupID)
	return nil
}

func (f *fakePlane) CreateConnection(_ context.Context, req ConnectionRequest) (*RemoteObject, error) {
	f.record("create-connection %s -> %s [%s]", req.Source.ID, req.Destination.ID, strings.Join(req.Relationships, ","))
	if f.failConnection != nil {
		return nil, f.failConnection
	}
	f.connections = append(f.connections, req)
	return &RemoteObject{ID: f.next("conn"), GroupID: req.GroupID}, nil
}

// count returns the number of recorded calls with the given prefix.
func (f *fakePlane) count(prefix string) int {
	n := 0
	for _, c := range f.calls {
		if strings.HasPrefix(c, prefix) {
			n++
		}
	}
	return n
}

func formatProps(props map[string]string) string {
	keys := make([]string, 0, len(props))
	for k := range props {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+props[k])
	}
	return "{" + strings.Join(parts, ",") + "}"
}

// memGraph is a Graph that only records inserts.
type memGraph struct {
	inserted []rdf.Triple
	failWith error
}

func (g *memGraph) Query(context.Context, rdf.Pattern) ([]rdf.Solution, error) {
	return nil, nil
}

func (g *memGraph) Insert(_ context.Context, tr rdf.Triple) error {
	if g.failWith != nil {
		return g.failWith
	}
	g.inserted = append(g.inserted, tr)
	return nil
}

// staticTemplates serves the same content for every configured type.
type staticTemplates map[string]string

func (s staticTemplates) LoadTemplate(channelType string, _ Role) (string, []byte, error) {
	name, ok := s[channelType]
	if !ok {
		return "", nil, NewPermanentError("no template", nil).WithCode(ErrCodeTemplateNotConfigured)
	}
	return name, []byte("<template/>"), nil
}
