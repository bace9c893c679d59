package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/openfroyo/nifictl/pkg/engine"
	"github.com/openfroyo/nifictl/pkg/nifi"
)

var (
	ontologyFile = filepath.Join("testdata", "ontology.ttl")
	flowFile     = filepath.Join("testdata", "flow.ttl")
	brokenFile   = filepath.Join("testdata", "broken.ttl")
	configFile   = filepath.Join("testdata", "nifictl.yaml")
)

// execute runs the root command with args and returns what it printed.
func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()

	cmd := newRootCommand("test", "none", "unknown")
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)

	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

// writeConfig writes a configuration file that adds extra to the test defaults.
func writeConfig(t *testing.T, extra string) string {
	t.Helper()
	base, err := os.ReadFile(configFile)
	if err != nil {
		t.Fatalf("failed to read config: %v", err)
	}
	path := filepath.Join(t.TempDir(), "nifictl.yaml")
	if err := os.WriteFile(path, append(base, []byte(extra)...), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

// fakeNiFi serves the part of the REST API the commands use. Every created
// object gets a fresh id.
type fakeNiFi struct {
	mu       sync.Mutex
	next     int
	requests []string
}

func newFakeNiFi(t *testing.T) (*fakeNiFi, string) {
	t.Helper()
	f := &fakeNiFi{}
	mux := http.NewServeMux()

	mux.HandleFunc("GET /nifi-api/flow/about", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]interface{}{"about": nifi.About{Title: "NiFi", Version: "1.23.2", URI: "http://nifi/"}})
	})
	mux.HandleFunc("GET /nifi-api/flow/processor-types", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]interface{}{"processorTypes": []nifi.DocumentedType{
			{Type: "org.example.Log", Description: "Logs attributes", Tags: []string{"logging"}},
			{Type: "org.example.Echo", Description: "Echoes a message", Tags: []string{"test"}},
		}})
	})
	mux.HandleFunc("POST /nifi-api/process-groups/{group}/processors", func(w http.ResponseWriter, r *http.Request) {
		var in nifi.ProcessorEntity
		_ = json.NewDecoder(r.Body).Decode(&in)
		id := f.id("p")
		writeJSON(w, nifi.ProcessorEntity{
			ID:        id,
			Revision:  nifi.Revision{Version: 1},
			Component: nifi.Processor{ID: id, ParentGroupID: r.PathValue("group"), Type: in.Component.Type, State: "STOPPED"},
		})
	})
	mux.HandleFunc("GET /nifi-api/processors/{id}", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, nifi.ProcessorEntity{
			ID:       r.PathValue("id"),
			Revision: nifi.Revision{Version: 1},
			Component: nifi.Processor{
				ID:   r.PathValue("id"),
				Name: "LogAttribute",
				Type: "org.example.Log",
				Config: &nifi.ProcessorConfig{Descriptors: map[string]nifi.PropertyDescriptor{
					"Log Level": {Name: "Log Level", Description: "Level to log at", DefaultValue: "info", Required: true},
				}},
				Relationships: []nifi.Relationship{{Name: "success", Description: "All flowfiles"}},
			},
		})
	})
	mux.HandleFunc("PUT /nifi-api/processors/{id}", func(w http.ResponseWriter, r *http.Request) {
		var in nifi.ProcessorEntity
		_ = json.NewDecoder(r.Body).Decode(&in)
		in.ID = r.PathValue("id")
		in.Revision.Version++
		in.Component.ParentGroupID = "root"
		writeJSON(w, in)
	})
	mux.HandleFunc("DELETE /nifi-api/processors/{id}", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, nifi.ProcessorEntity{ID: r.PathValue("id")})
	})
	mux.HandleFunc("POST /nifi-api/process-groups/{group}/controller-services", func(w http.ResponseWriter, r *http.Request) {
		var in nifi.ControllerServiceEntity
		_ = json.NewDecoder(r.Body).Decode(&in)
		id := f.id("s")
		writeJSON(w, nifi.ControllerServiceEntity{
			ID:        id,
			Revision:  nifi.Revision{Version: 1},
			Component: nifi.ControllerService{ID: id, ParentGroupID: r.PathValue("group"), Type: in.Component.Type, State: "DISABLED"},
		})
	})
	mux.HandleFunc("PUT /nifi-api/controller-services/{id}", func(w http.ResponseWriter, r *http.Request) {
		var in nifi.ControllerServiceEntity
		_ = json.NewDecoder(r.Body).Decode(&in)
		in.ID = r.PathValue("id")
		in.Revision.Version++
		in.Component.ParentGroupID = "root"
		writeJSON(w, in)
	})
	mux.HandleFunc("POST /nifi-api/process-groups/{group}/connections", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, nifi.ConnectionEntity{
			ID:        f.id("c"),
			Revision:  nifi.Revision{Version: 1},
			Component: nifi.Connection{ParentGroupID: r.PathValue("group")},
		})
	})

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Method + " " + r.URL.Path
		if r.URL.RawQuery != "" {
			key += "?" + r.URL.RawQuery
		}
		f.mu.Lock()
		f.requests = append(f.requests, key)
		f.mu.Unlock()
		mux.ServeHTTP(w, r)
	}))
	t.Cleanup(srv.Close)

	return f, srv.URL + "/nifi-api"
}

func (f *fakeNiFi) id(prefix string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.next++
	return fmt.Sprintf("%s-%d", prefix, f.next)
}

// count returns how many requests started with prefix.
func (f *fakeNiFi) count(prefix string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, r := range f.requests {
		if strings.HasPrefix(r, prefix) {
			n++
		}
	}
	return n
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func TestPlan_JSON(t *testing.T) {
	out, err := execute(t, "", "plan", "--config", configFile, "--ontology", ontologyFile, flowFile, "-o", "json")
	if err != nil {
		t.Fatalf("plan failed: %v", err)
	}

	var plan engine.Plan
	if err := json.Unmarshal([]byte(out), &plan); err != nil {
		t.Fatalf("failed to decode plan: %v\n%s", err, out)
	}
	want := engine.PlanSummary{Services: 1, Processors: 2, Links: 1}
	if plan.Summary != want {
		t.Errorf("expected summary %+v, got %+v", want, plan.Summary)
	}
}

func TestPlan_StdinTable(t *testing.T) {
	flow, err := os.ReadFile(flowFile)
	if err != nil {
		t.Fatalf("failed to read flow: %v", err)
	}

	out, err := execute(t, string(flow), "plan", "--config", configFile, "--ontology", ontologyFile)
	if err != nil {
		t.Fatalf("plan failed: %v", err)
	}
	for _, want := range []string{"1 services, 2 processors", "org.example.Echo", "org.example.CacheService", "success"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected output to contain %q, got:\n%s", want, out)
		}
	}
}

func TestPlan_Errors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{
			name: "watch without file",
			args: []string{"plan", "--config", configFile, "--watch"},
			want: "--watch",
		},
		{
			name: "unsupported output",
			args: []string{"plan", "--config", configFile, flowFile, "-o", "turtle"},
			want: "unsupported output format",
		},
		{
			name: "missing link policy",
			args: []string{"plan", "--ontology", ontologyFile, flowFile},
			want: "links.missing_key",
		},
		{
			name: "missing instance",
			args: []string{"plan", "--config", configFile, filepath.Join("testdata", "missing.ttl")},
			want: "missing.ttl",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, "", tt.args...)
			if err == nil {
				t.Fatal("expected an error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("expected error to mention %q, got %v", tt.want, err)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	denyAll := filepath.Join(t.TempDir(), "deny.rego")
	if err := os.WriteFile(denyAll, []byte(`package custom.deny

import rego.v1

deny contains violation if {
	some p in input.plan.processors
	violation := {"message": "no processors allowed", "subject": p.subject, "severity": "error"}
}
`), 0o644); err != nil {
		t.Fatalf("failed to write policy: %v", err)
	}

	tests := []struct {
		name     string
		config   string
		instance string
		wantErr  string
	}{
		{name: "clean", config: configFile, instance: flowFile},
		{name: "rejected rows", config: configFile, instance: brokenFile, wantErr: "rejected row"},
		{
			name:     "blocking violation",
			config:   writeConfig(t, "policy:\n  paths: ["+denyAll+"]\n"),
			instance: flowFile,
			wantErr:  "blocking policy violation",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := execute(t, "", "validate", "--config", tt.config,
				"--nifi-url", "http://localhost:8080/nifi-api", "--ontology", ontologyFile, tt.instance, "-o", "json")

			var v validation
			if jerr := json.Unmarshal([]byte(out), &v); jerr != nil {
				t.Fatalf("failed to decode result: %v\n%s", jerr, out)
			}

			if tt.wantErr == "" {
				if err != nil || !v.Valid {
					t.Fatalf("expected valid, got %v (%+v)", err, v)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
			}
			if v.Valid {
				t.Error("expected result to be invalid")
			}
		})
	}
}

func TestRun(t *testing.T) {
	fake, url := newFakeNiFi(t)
	dir := t.TempDir()
	reportFile := filepath.Join(dir, "report.json")
	graphFile := filepath.Join(dir, "out.ttl")

	_, err := execute(t, "", "run", "--config", configFile, "--nifi-url", url,
		"--ontology", ontologyFile, flowFile, "--no-start",
		"--report", reportFile, "--emit-graph", graphFile)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	data, err := os.ReadFile(reportFile)
	if err != nil {
		t.Fatalf("failed to read report: %v", err)
	}
	var report engine.RunReport
	if err := json.Unmarshal(data, &report); err != nil {
		t.Fatalf("failed to decode report: %v", err)
	}
	if report.Status != engine.RunStatusSucceeded {
		t.Errorf("expected status succeeded, got %s (%+v)", report.Status, report.Failures)
	}
	s := report.Summary
	if s.ServicesCreated != 1 || s.ProcessorsCreated != 2 || s.ConnectionsCreated != 1 {
		t.Errorf("unexpected summary %+v", s)
	}
	if len(report.Correlations) != 3 {
		t.Errorf("expected 3 correlations, got %d", len(report.Correlations))
	}

	if n := fake.count("PUT /nifi-api/processors/p-1/run-status"); n != 0 {
		t.Errorf("expected nothing started with --no-start, got %d start calls", n)
	}

	graph, err := os.ReadFile(graphFile)
	if err != nil {
		t.Fatalf("failed to read emitted graph: %v", err)
	}
	if !strings.Contains(string(graph), "remoteId") {
		t.Errorf("expected emitted graph to carry remote ids, got:\n%s", graph)
	}
}

func TestRun_PolicyDenied(t *testing.T) {
	fake, url := newFakeNiFi(t)
	denyAll := filepath.Join(t.TempDir(), "deny.rego")
	if err := os.WriteFile(denyAll, []byte(`package custom.deny

import rego.v1

deny contains violation if {
	count(input.plan.processors) > 0
	violation := {"message": "denied", "severity": "error"}
}
`), 0o644); err != nil {
		t.Fatalf("failed to write policy: %v", err)
	}
	cfg := writeConfig(t, "policy:\n  enforce: true\n  paths: ["+denyAll+"]\n")

	out, err := execute(t, "", "run", "--config", cfg, "--nifi-url", url,
		"--ontology", ontologyFile, flowFile, "-o", "json")
	if err == nil {
		t.Fatal("expected an enforced denial to fail the run")
	}

	var report engine.RunReport
	if err := json.Unmarshal([]byte(out), &report); err != nil {
		t.Fatalf("failed to decode report: %v", err)
	}
	if report.Status != engine.RunStatusFailed {
		t.Errorf("expected status failed, got %s", report.Status)
	}
	if n := fake.count("POST "); n != 0 {
		t.Errorf("expected no objects created, got %d", n)
	}
}

func TestInfo(t *testing.T) {
	_, url := newFakeNiFi(t)

	out, err := execute(t, "", "info", "--nifi-url", url, "--root-group", "root", "-o", "json")
	if err != nil {
		t.Fatalf("info failed: %v", err)
	}
	var about nifi.About
	if err := json.Unmarshal([]byte(out), &about); err != nil {
		t.Fatalf("failed to decode about: %v", err)
	}
	if about.Version != "1.23.2" {
		t.Errorf("expected version 1.23.2, got %s", about.Version)
	}

	if _, err := execute(t, "", "info", "--root-group", "root"); err == nil {
		t.Error("expected a missing url to fail")
	}
}

func TestListTypes(t *testing.T) {
	_, url := newFakeNiFi(t)

	out, err := execute(t, "", "list", "types", "--nifi-url", url, "--root-group", "root", "--filter", "LOG", "-o", "json")
	if err != nil {
		t.Fatalf("list types failed: %v", err)
	}
	var types []nifi.DocumentedType
	if err := json.Unmarshal([]byte(out), &types); err != nil {
		t.Fatalf("failed to decode types: %v", err)
	}
	if len(types) != 1 || types[0].Type != "org.example.Log" {
		t.Errorf("expected only org.example.Log, got %+v", types)
	}

	out, err = execute(t, "", "list", "types", "--nifi-url", url, "--root-group", "root", "-o", "turtle")
	if err != nil {
		t.Fatalf("list types as turtle failed: %v", err)
	}
	if !strings.Contains(out, "Echoes a message") || !strings.Contains(out, "logging") {
		t.Errorf("unexpected turtle output:\n%s", out)
	}
}

func TestListType(t *testing.T) {
	fake, url := newFakeNiFi(t)

	out, err := execute(t, "", "list", "type", "org.example.Log", "--nifi-url", url, "--root-group", "root", "-o", "turtle")
	if err != nil {
		t.Fatalf("list type failed: %v", err)
	}
	if !strings.Contains(out, "org.example.Log") {
		t.Errorf("expected the stub to carry the engine type, got:\n%s", out)
	}
	if n := fake.count("DELETE /nifi-api/processors/p-1?version=1"); n != 1 {
		t.Errorf("expected the temporary processor to be deleted once, got %d (%v)", n, fake.requests)
	}

	out, err = execute(t, "", "list", "type", "org.example.Log", "--nifi-url", url, "--root-group", "root")
	if err != nil {
		t.Fatalf("list type failed: %v", err)
	}
	if !strings.Contains(out, "Log Level") || !strings.Contains(out, "success") {
		t.Errorf("unexpected table output:\n%s", out)
	}
}

func TestListTypes_Full(t *testing.T) {
	fake, url := newFakeNiFi(t)

	out, err := execute(t, "", "list", "types", "--nifi-url", url, "--root-group", "root", "--filter", "LOG", "--full", "-o", "json")
	if err != nil {
		t.Fatalf("list types --full failed: %v", err)
	}
	var procs []nifi.Processor
	if err := json.Unmarshal([]byte(out), &procs); err != nil {
		t.Fatalf("failed to decode descriptors: %v", err)
	}
	if len(procs) != 1 || procs[0].Config == nil || procs[0].Config.Descriptors["Log Level"].DefaultValue != "info" {
		t.Errorf("expected the full descriptor of org.example.Log, got %+v", procs)
	}
	if n := fake.count("POST /nifi-api/process-groups/root/processors"); n != 1 {
		t.Errorf("expected one temporary processor for the filtered type, got %d", n)
	}
	if n := fake.count("DELETE /nifi-api/processors/p-1?version=1"); n != 1 {
		t.Errorf("expected the temporary processor to be deleted once, got %d (%v)", n, fake.requests)
	}

	out, err = execute(t, "", "list", "types", "--nifi-url", url, "--root-group", "root", "--full")
	if err != nil {
		t.Fatalf("list types --full as table failed: %v", err)
	}
	if strings.Count(out, "Log Level") != 2 {
		t.Errorf("expected one property table per type, got:\n%s", out)
	}
	if n := fake.count("DELETE /nifi-api/processors/"); n != 3 {
		t.Errorf("expected every temporary processor to be deleted, got %d", n)
	}
}

func TestListActive_InvalidArg(t *testing.T) {
	if _, err := execute(t, "", "list", "active", "ports", "--nifi-url", "http://localhost", "--root-group", "root"); err == nil {
		t.Error("expected an unknown component kind to fail")
	}
}
