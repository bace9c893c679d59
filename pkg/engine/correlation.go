package engine

import (
	"context"
	"fmt"

	"github.com/openfroyo/nifictl/pkg/rdf"
)

// CorrelationStore maps ontology subjects to the remote objects created for
// them during one run. Each entry is also written back to the graph under
// nifi:remoteId and nifi:remoteGroup.
//
// A CorrelationStore belongs to a single run and is not safe for concurrent use.
type CorrelationStore struct {
	graph    Graph
	entries  map[rdf.Term]CorrelationEntry
	byRemote map[string]rdf.Term
	order    []rdf.Term
}

// NewCorrelationStore creates an empty store writing back to graph.
// A nil graph keeps correlations in memory only.
func NewCorrelationStore(graph Graph) *CorrelationStore {
	return &CorrelationStore{
		graph:    graph,
		entries:  make(map[rdf.Term]CorrelationEntry),
		byRemote: make(map[string]rdf.Term),
	}
}

// Record adds a correlation. A subject or remote id that is already
// correlated is rejected with ErrDuplicateCorrelation. If the write-back to
// the graph fails the entry is kept and the insert error is returned.
func (s *CorrelationStore) Record(ctx context.Context, entry CorrelationEntry) error {
	if prev, ok := s.entries[entry.Subject]; ok {
		return NewPermanentError("subject is already correlated", nil).
			WithCode(ErrCodeDuplicateCorrelation).
			WithResource(entry.Subject.String()).
			WithDetail("remote_id", prev.RemoteID)
	}
	if prev, ok := s.byRemote[entry.RemoteID]; ok {
		return NewPermanentError("remote object is already correlated", nil).
			WithCode(ErrCodeDuplicateCorrelation).
			WithResource(entry.Subject.String()).
			WithDetail("remote_id", entry.RemoteID).
			WithDetail("correlated_subject", prev.String())
	}

	s.entries[entry.Subject] = entry
	s.byRemote[entry.RemoteID] = entry.Subject
	s.order = append(s.order, entry.Subject)

	if s.graph == nil {
		return nil
	}

	facts := []rdf.Triple{
		{Subject: entry.Subject, Predicate: rdf.IRI(rdf.NifiRemoteID), Object: rdf.Literal(entry.RemoteID)},
	}
	if entry.GroupID != "" {
		facts = append(facts, rdf.Triple{
			Subject: entry.Subject, Predicate: rdf.IRI(rdf.NifiRemoteGroup), Object: rdf.Literal(entry.GroupID),
		})
	}
	for _, tr := range facts {
		if err := s.graph.Insert(ctx, tr); err != nil {
			return fmt.Errorf("failed to write correlation of %s: %w", entry.Subject, err)
		}
	}

	return nil
}

// Lookup returns the correlation of a subject.
func (s *CorrelationStore) Lookup(subject rdf.Term) (CorrelationEntry, bool) {
	e, ok := s.entries[subject]
	return e, ok
}

// Entries returns every correlation in the order it was recorded.
func (s *CorrelationStore) Entries() []CorrelationEntry {
	out := make([]CorrelationEntry, 0, len(s.order))
	for _, subject := range s.order {
		out = append(out, s.entries[subject])
	}
	return out
}

// Len returns the number of correlations.
func (s *CorrelationStore) Len() int {
	return len(s.order)
}
