package rdf

import (
	"bytes"
	"strings"
	"testing"
)

const sampleTurtle = `
@prefix : <https://w3id.org/conn#> .
@prefix nifi: <https://w3id.org/conn/nifi#> .
@prefix ex: <http://example.com/ns#> .

ex:echo a ex:EchoProcess ;
  ex:message "hi" .

[] a :NifiChannel ;
  :writer ex:w ;
  :reader ex:r .
`

func TestReadAll_Turtle(t *testing.T) {
	triples, err := ReadAll(strings.NewReader(sampleTurtle), FormatTurtle)
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}

	if len(triples) != 5 {
		t.Fatalf("expected 5 triples, got %d", len(triples))
	}

	first := triples[0]
	if first.Subject != IRI("http://example.com/ns#echo") {
		t.Errorf("unexpected subject: %s", first.Subject)
	}
	if first.Predicate != IRI(RDFType) {
		t.Errorf("expected rdf:type predicate, got %s", first.Predicate)
	}

	msg := triples[1]
	if msg.Object != Literal("hi") {
		t.Errorf("expected plain literal \"hi\", got %s", msg.Object)
	}

	channel := triples[2]
	if !channel.Subject.IsBlank() {
		t.Fatalf("expected blank node subject, got %s", channel.Subject)
	}
}

func TestReadAll_BlankNodesAreScopedPerDocument(t *testing.T) {
	doc := `_:x <http://example.com/ns#p> "v" .`

	a, err := ReadAll(strings.NewReader(doc), FormatNTriples)
	if err != nil {
		t.Fatalf("first read failed: %v", err)
	}
	b, err := ReadAll(strings.NewReader(doc), FormatNTriples)
	if err != nil {
		t.Fatalf("second read failed: %v", err)
	}

	if a[0].Subject == b[0].Subject {
		t.Errorf("expected distinct blank nodes across documents, both are %s", a[0].Subject)
	}
}

func TestEncode_RoundTrip(t *testing.T) {
	in := []Triple{
		{Subject: IRI("http://example.com/ns#echo"), Predicate: IRI(NifiRemoteID), Object: Literal("1234-abcd")},
		{Subject: Blank("b1"), Predicate: IRI(NifiKey), Object: LangLiteral("bericht", "nl")},
	}

	var buf bytes.Buffer
	if err := Encode(&buf, in, FormatNTriples); err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	dec, err := NewDecoder(&buf, FormatNTriples, "")
	if err != nil {
		t.Fatalf("NewDecoder failed: %v", err)
	}
	out, err := dec.DecodeAll()
	if err != nil {
		t.Fatalf("DecodeAll failed: %v", err)
	}

	if len(out) != len(in) {
		t.Fatalf("expected %d triples, got %d", len(in), len(out))
	}
	for i := range in {
		if out[i] != in[i] {
			t.Errorf("triple %d: expected %s, got %s", i, in[i], out[i])
		}
	}
}

func TestFormatFromPath(t *testing.T) {
	if got := FormatFromPath("graph.nt"); got != FormatNTriples {
		t.Errorf("expected ntriples, got %s", got)
	}
	if got := FormatFromPath("ontology.ttl"); got != FormatTurtle {
		t.Errorf("expected turtle, got %s", got)
	}
	if got := FormatFromPath("-"); got != FormatTurtle {
		t.Errorf("expected turtle for stdin, got %s", got)
	}
}
