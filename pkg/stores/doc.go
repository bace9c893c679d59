// Package stores provides the graph store that provisioning runs query.
//
// SQLiteStore keeps triples in a single table, one row per fact, with terms in
// their canonical N-Triples form. Input documents are parsed with pkg/rdf and
// inserted in one transaction per document; blank nodes are relabeled into a
// per-document scope. The schema is managed with golang-migrate from the
// embedded migrations directory.
//
// The fixed query shapes the planner relies on are defined in patterns.go as
// SQL joins over the triples table. Results are ordered by triple insertion
// id, which makes every query deterministic: subjects come out in the order
// their type assertion was loaded and attributes in the order the ontology
// declares their paths.
//
// Basic usage:
//
//	store, err := stores.NewMemoryStore(ctx)
//	if err != nil {
//		return err
//	}
//	defer store.Close()
//
//	if _, err := store.LoadFile(ctx, "ontology.ttl"); err != nil {
//		return err
//	}
//	rows, err := store.Query(ctx, stores.ProcessAttributes(rdf.NifiProcess))
package stores
