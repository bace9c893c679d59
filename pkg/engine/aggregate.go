package engine

import (
	"strings"

	"github.com/openfroyo/nifictl/pkg/rdf"
)

// Group is the records of one subject, in the order they were received.
type Group[R any] struct {
	Subject rdf.Term
	Records []R
}

// Aggregate groups records by subject. Groups appear in the order their
// subject is first seen and each group keeps its records in input order, so
// the groups partition the input.
func Aggregate[R any](records []R, subject func(R) rdf.Term) []Group[R] {
	index := make(map[rdf.Term]int)
	var groups []Group[R]

	for _, rec := range records {
		s := subject(rec)
		i, ok := index[s]
		if !ok {
			i = len(groups)
			index[s] = i
			groups = append(groups, Group[R]{Subject: s})
		}
		groups[i].Records = append(groups[i].Records, rec)
	}

	return groups
}

// aggregateEntities builds entities of the given kind. The first record's
// engine type is authoritative; a subject whose records disagree on it is
// declared by two ontology types and is rejected.
func aggregateEntities(records []AttributeRecord, kind ComponentKind, shape string) ([]Entity, []RejectedRow) {
	var entities []Entity
	var rejected []RejectedRow

	for _, g := range Aggregate(records, func(r AttributeRecord) rdf.Term { return r.Subject }) {
		engineType := g.Records[0].EngineType
		conflict := ""
		for _, rec := range g.Records[1:] {
			if rec.EngineType != engineType {
				conflict = rec.EngineType
				break
			}
		}
		if conflict != "" {
			rejected = append(rejected, RejectedRow{
				Shape:   shape,
				Subject: g.Subject.String(),
				Code:    ErrCodeMapping,
				Error:   "subject resolves to engine types " + engineType + " and " + conflict,
			})
			continue
		}

		entities = append(entities, Entity{
			Subject:    g.Subject,
			Kind:       kind,
			EngineType: engineType,
			Records:    g.Records,
		})
	}

	return entities, rejected
}

// aggregateChannels builds channel entities of the given role.
func aggregateChannels(records []ChannelRecord, role Role) []ChannelEntity {
	var channels []ChannelEntity
	for _, g := range Aggregate(records, func(r ChannelRecord) rdf.Term { return r.Subject }) {
		channels = append(channels, ChannelEntity{
			Subject:     g.Subject,
			ChannelType: g.Records[0].ChannelType,
			Role:        role,
			Records:     g.Records,
		})
	}
	return channels
}

// rejectAmbiguous removes every subject planned in more than one of the
// service, processor, writer-channel and reader-channel lists. Each list is
// aggregated on its own, so such a subject would otherwise be provisioned
// once per list.
func (p *Plan) rejectAmbiguous() []RejectedRow {
	var order []rdf.Term
	planned := make(map[rdf.Term][]string)
	note := func(s rdf.Term, as string) {
		if _, ok := planned[s]; !ok {
			order = append(order, s)
		}
		planned[s] = append(planned[s], as)
	}
	for _, e := range p.Services {
		note(e.Subject, string(KindControllerService))
	}
	for _, e := range p.Processors {
		note(e.Subject, string(KindProcessor))
	}
	for _, c := range p.WriterChannels {
		note(c.Subject, string(RoleWriter))
	}
	for _, c := range p.ReaderChannels {
		note(c.Subject, string(RoleReader))
	}

	var rejected []RejectedRow
	for _, s := range order {
		if as := planned[s]; len(as) > 1 {
			rejected = append(rejected, RejectedRow{
				Shape:   "plan",
				Subject: s.String(),
				Code:    ErrCodeMapping,
				Error:   "subject is planned as " + strings.Join(as, " and "),
			})
		}
	}
	if len(rejected) == 0 {
		return nil
	}

	single := func(s rdf.Term) bool { return len(planned[s]) == 1 }
	p.Services = keepEntities(p.Services, single)
	p.Processors = keepEntities(p.Processors, single)
	p.WriterChannels = keepChannels(p.WriterChannels, single)
	p.ReaderChannels = keepChannels(p.ReaderChannels, single)
	return rejected
}

func keepEntities(entities []Entity, keep func(rdf.Term) bool) []Entity {
	out := entities[:0]
	for _, e := range entities {
		if keep(e.Subject) {
			out = append(out, e)
		}
	}
	return out
}

func keepChannels(channels []ChannelEntity, keep func(rdf.Term) bool) []ChannelEntity {
	out := channels[:0]
	for _, c := range channels {
		if keep(c.Subject) {
			out = append(out, c)
		}
	}
	return out
}
