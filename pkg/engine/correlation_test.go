package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/openfroyo/nifictl/pkg/rdf"
)

func TestCorrelationStore_OneToOne(t *testing.T) {
	ctx := context.Background()
	graph := &memGraph{}
	store := NewCorrelationStore(graph)

	echo := rdf.IRI(ex + "echo")
	log := rdf.IRI(ex + "log")

	if err := store.Record(ctx, CorrelationEntry{Subject: echo, RemoteID: "p-1", GroupID: "root", Kind: KindProcessor}); err != nil {
		t.Fatalf("Record failed: %v", err)
	}

	err := store.Record(ctx, CorrelationEntry{Subject: echo, RemoteID: "p-2", Kind: KindProcessor})
	if !errors.Is(err, ErrDuplicateCorrelation) {
		t.Errorf("expected duplicate subject to fail, got %v", err)
	}

	err = store.Record(ctx, CorrelationEntry{Subject: log, RemoteID: "p-1", Kind: KindProcessor})
	if !errors.Is(err, ErrDuplicateCorrelation) {
		t.Errorf("expected duplicate remote id to fail, got %v", err)
	}

	if err := store.Record(ctx, CorrelationEntry{Subject: log, RemoteID: "p-2", Kind: KindProcessor}); err != nil {
		t.Fatalf("Record failed: %v", err)
	}

	if store.Len() != 2 {
		t.Fatalf("expected 2 correlations, got %d", store.Len())
	}
	entry, ok := store.Lookup(echo)
	if !ok || entry.RemoteID != "p-1" {
		t.Errorf("expected echo -> p-1, got %+v", entry)
	}

	entries := store.Entries()
	if entries[0].Subject != echo || entries[1].Subject != log {
		t.Errorf("expected entries in record order, got %+v", entries)
	}

	// p-1 with a group, p-2 without.
	if len(graph.inserted) != 3 {
		t.Fatalf("expected 3 write-back facts, got %d", len(graph.inserted))
	}
	first := graph.inserted[0]
	if first.Subject != echo || first.Predicate != rdf.IRI(rdf.NifiRemoteID) || first.Object != rdf.Literal("p-1") {
		t.Errorf("unexpected write-back fact %s", first)
	}
	if graph.inserted[1].Predicate != rdf.IRI(rdf.NifiRemoteGroup) {
		t.Errorf("expected remote group fact, got %s", graph.inserted[1])
	}
}

func TestCorrelationStore_WriteBackFailureKeepsEntry(t *testing.T) {
	boom := errors.New("disk full")
	store := NewCorrelationStore(&memGraph{failWith: boom})
	echo := rdf.IRI(ex + "echo")

	err := store.Record(context.Background(), CorrelationEntry{Subject: echo, RemoteID: "p-1"})
	if !errors.Is(err, boom) {
		t.Fatalf("expected insert error, got %v", err)
	}
	if _, ok := store.Lookup(echo); !ok {
		t.Error("expected entry to be kept after write-back failure")
	}
}

func TestCorrelationStore_MemoryOnly(t *testing.T) {
	store := NewCorrelationStore(nil)
	if err := store.Record(context.Background(), CorrelationEntry{Subject: rdf.Blank("b0"), RemoteID: "x"}); err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	if _, ok := store.Lookup(rdf.Blank("b0")); !ok {
		t.Error("expected blank node subject to be correlated")
	}
}
