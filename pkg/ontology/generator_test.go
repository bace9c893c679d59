package ontology

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/openfroyo/nifictl/pkg/engine"
	"github.com/openfroyo/nifictl/pkg/nifi"
	"github.com/openfroyo/nifictl/pkg/rdf"
	"github.com/openfroyo/nifictl/pkg/stores"
)

func echoProcessor() *nifi.ProcessorEntity {
	return &nifi.ProcessorEntity{
		ID: "p-1",
		Component: nifi.Processor{
			Name: "Echo",
			Type: "org.example.Echo",
			Relationships: []nifi.Relationship{
				{Name: "success", Description: "All messages"},
			},
			Config: &nifi.ProcessorConfig{
				Descriptors: map[string]nifi.PropertyDescriptor{
					"Message Text": {Name: "Message Text", DisplayName: "Message", Required: true},
					"Delay":        {Name: "Delay", DefaultValue: "1 sec"},
				},
			},
		},
	}
}

func TestSafeName(t *testing.T) {
	tests := map[string]string{
		"Message Text":     "message-text",
		"success":          "success",
		"Max Batch (bytes)": "max-batch--bytes-",
		"ssl.context":      "ssl-context",
	}
	for in, want := range tests {
		if got := SafeName(in); got != want {
			t.Errorf("SafeName(%q): expected %q, got %q", in, want, got)
		}
	}
}

func TestStub_Processor(t *testing.T) {
	triples, err := Stub(FromProcessor(echoProcessor()))
	if err != nil {
		t.Fatalf("Stub failed: %v", err)
	}

	node := rdf.IRI(rdf.NSNifi + "Echo")
	if triples[0] != (rdf.Triple{Subject: node, Predicate: rdf.IRI(rdf.RDFType), Object: rdf.IRI(rdf.NifiProcess)}) {
		t.Errorf("expected type assertion first, got %s", triples[0])
	}

	count := func(pred string, obj rdf.Term) int {
		n := 0
		for _, tr := range triples {
			if tr.Predicate.Value == pred && tr.Object == obj {
				n++
			}
		}
		return n
	}

	if count(rdf.NifiType, rdf.Literal("org.example.Echo")) != 1 {
		t.Error("expected engine type")
	}
	if count(rdf.SHClass, rdf.IRI(rdf.ConnWriterChannel)) != 1 {
		t.Error("expected one writer property for the success relationship")
	}
	if count(rdf.SHClass, rdf.IRI(rdf.ConnReaderChannel)) != 1 {
		t.Error("expected one reader property for incoming links")
	}
	if count(rdf.SHDatatype, rdf.IRI(rdf.XSDString)) != 2 {
		t.Error("expected one datatype property per descriptor")
	}
	if count(rdf.SHMinCount, rdf.TypedLiteral("1", rdf.XSDInteger)) != 1 {
		t.Error("expected required descriptor to have minCount 1")
	}
	if count(rdf.SHDefaultValue, rdf.Literal("1 sec")) != 1 {
		t.Error("expected default value of Delay")
	}
}

func TestStub_Service(t *testing.T) {
	triples, err := Stub(FromService(&nifi.ControllerServiceEntity{
		Component: nifi.ControllerService{
			Type:        "org.example.Cache",
			Descriptors: map[string]nifi.PropertyDescriptor{"Size": {Name: "Size"}},
		},
	}))
	if err != nil {
		t.Fatalf("Stub failed: %v", err)
	}

	if triples[0].Subject != rdf.IRI(rdf.NSNifi+"Cache") || triples[0].Object != rdf.IRI(rdf.NifiService) {
		t.Errorf("expected service node named after the type, got %s", triples[0])
	}
	for _, tr := range triples {
		if tr.Predicate.Value == rdf.SHClass {
			t.Errorf("expected no channel properties on a service, got %s", tr)
		}
	}
}

func TestStub_RequiresType(t *testing.T) {
	if _, err := Stub(Component{Name: "x"}); err == nil {
		t.Error("expected missing type to fail")
	}
}

// The generated stub must be consumable by the planner as is.
func TestStub_Plannable(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteStub(&buf, FromProcessor(echoProcessor())); err != nil {
		t.Fatalf("WriteStub failed: %v", err)
	}

	ctx := context.Background()
	store, err := stores.NewMemoryStore(ctx)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	defer store.Close()

	if _, err := store.Load(ctx, &buf, rdf.FormatTurtle, "stub.ttl"); err != nil {
		t.Fatalf("failed to load stub: %v", err)
	}
	instance := `
@prefix nifi: <https://w3id.org/conn/nifi#> .
<http://example.com/ns#echo> a nifi:Echo ; nifi:message-text "hi" ; nifi:delay "5 sec" .
`
	if _, err := store.Load(ctx, strings.NewReader(instance), rdf.FormatTurtle, "instance.ttl"); err != nil {
		t.Fatalf("failed to load instance: %v", err)
	}

	plan, err := engine.NewPlanner(store, zerolog.Nop()).Plan(ctx)
	if err != nil {
		t.Fatalf("Plan failed: %v", err)
	}
	if len(plan.Processors) != 1 || len(plan.Rejected) != 0 {
		t.Fatalf("expected one processor and no rejections, got %+v", plan.Summary)
	}

	p := plan.Processors[0]
	props, unkeyed := p.Properties()
	if p.EngineType != "org.example.Echo" || props["Message Text"] != "hi" || props["Delay"] != "5 sec" || len(unkeyed) != 0 {
		t.Errorf("unexpected processor %s with %v", p.EngineType, props)
	}
}

func TestDescribeTypes(t *testing.T) {
	triples := DescribeTypes([]nifi.DocumentedType{
		{Type: "org.example.Echo", Description: "Echoes", Tags: []string{"a", "b"}},
		{Type: "org.example.Log"},
	})
	if len(triples) != 5 {
		t.Fatalf("expected 5 triples, got %d", len(triples))
	}
	if triples[0].Subject == triples[4].Subject {
		t.Error("expected one node per type")
	}
}
