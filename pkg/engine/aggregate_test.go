package engine

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/openfroyo/nifictl/pkg/rdf"
)

func attr(subject, engineType, path, value string) AttributeRecord {
	key := path
	return AttributeRecord{
		Subject:    rdf.IRI(ex + subject),
		EngineType: engineType,
		Path:       rdf.IRI(ex + path),
		Value:      rdf.Literal(value),
		Key:        &key,
	}
}

func TestAggregate_Partition(t *testing.T) {
	rng := rand.New(rand.NewSource(7))

	for round := 0; round < 20; round++ {
		var records []AttributeRecord
		subjects := make(map[rdf.Term]bool)
		n := rng.Intn(40)
		for i := 0; i < n; i++ {
			s := fmt.Sprintf("s%d", rng.Intn(8))
			records = append(records, attr(s, "T", fmt.Sprintf("p%d", i), "v"))
			subjects[rdf.IRI(ex+s)] = true
		}

		groups := Aggregate(records, func(r AttributeRecord) rdf.Term { return r.Subject })
		if len(groups) != len(subjects) {
			t.Fatalf("round %d: expected %d groups, got %d", round, len(subjects), len(groups))
		}

		seen := make(map[rdf.Term]bool)
		total := 0
		for _, g := range groups {
			for _, rec := range g.Records {
				if rec.Subject != g.Subject {
					t.Fatalf("round %d: record of %s in group %s", round, rec.Subject, g.Subject)
				}
				if seen[rec.Path] {
					t.Fatalf("round %d: record %s appears twice", round, rec.Path)
				}
				seen[rec.Path] = true
				total++
			}
		}
		if total != len(records) {
			t.Fatalf("round %d: expected %d records across groups, got %d", round, len(records), total)
		}
	}
}

func TestAggregate_Order(t *testing.T) {
	records := []AttributeRecord{
		attr("b", "T", "p1", "1"),
		attr("a", "T", "p2", "2"),
		attr("b", "T", "p3", "3"),
		attr("a", "T", "p4", "4"),
	}

	groups := Aggregate(records, func(r AttributeRecord) rdf.Term { return r.Subject })
	if len(groups) != 2 {
		t.Fatalf("expected 2 groups, got %d", len(groups))
	}
	if groups[0].Subject != rdf.IRI(ex+"b") || groups[1].Subject != rdf.IRI(ex+"a") {
		t.Errorf("expected first-seen subject order b, a; got %s, %s", groups[0].Subject, groups[1].Subject)
	}
	if groups[0].Records[0].Value.Value != "1" || groups[0].Records[1].Value.Value != "3" {
		t.Errorf("expected records of b in input order, got %v", groups[0].Records)
	}
}

func TestAggregateEntities_ConflictingEngineTypes(t *testing.T) {
	records := []AttributeRecord{
		attr("echo", "org.example.Echo", "msg", "hi"),
		attr("twice", "org.example.A", "x", "1"),
		attr("twice", "org.example.B", "y", "2"),
	}

	entities, rejected := aggregateEntities(records, KindProcessor, "process-attributes")
	if len(entities) != 1 || entities[0].EngineType != "org.example.Echo" {
		t.Fatalf("expected only echo to aggregate, got %+v", entities)
	}
	if len(rejected) != 1 || rejected[0].Subject != rdf.IRI(ex+"twice").String() {
		t.Fatalf("expected twice to be rejected, got %+v", rejected)
	}
}

func TestEntityProperties(t *testing.T) {
	class := rdf.IRI(rdf.ConnWriterChannel)
	e := Entity{
		Records: []AttributeRecord{
			attr("echo", "T", "msg", "first"),
			attr("echo", "T", "msg", "second"),
			{Subject: rdf.IRI(ex + "echo"), Path: rdf.IRI(ex + "out"), Value: rdf.IRI(ex + "ch"), Class: &class},
			{Subject: rdf.IRI(ex + "echo"), Path: rdf.IRI(ex + "note"), Value: rdf.Literal("n")},
		},
	}

	props, unkeyed := e.Properties()
	if len(props) != 1 || props["msg"] != "second" {
		t.Errorf("expected {msg: second}, got %v", props)
	}
	if len(unkeyed) != 1 || unkeyed[0].Path != rdf.IRI(ex+"note") {
		t.Errorf("expected note to be unkeyed, got %v", unkeyed)
	}
}
