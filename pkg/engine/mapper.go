package engine

import (
	"fmt"

	"github.com/openfroyo/nifictl/pkg/rdf"
	"github.com/openfroyo/nifictl/pkg/stores"
)

// Field declares one variable a shape reads from a solution.
type Field struct {
	Name string

	// Required fields must be bound in every row.
	Required bool

	// Literal fields must be bound to literals when bound at all.
	Literal bool
}

// Row is a solution that passed its shape's field checks. Required fields
// are bound, so Term never returns the unbound term for them.
type Row struct {
	sol rdf.Solution
}

// Term returns the binding of a field, or the unbound term.
func (r Row) Term(name string) rdf.Term {
	t, _ := r.sol.Get(name)
	return t
}

// Optional returns the binding of a field, or nil if it is unbound.
func (r Row) Optional(name string) *rdf.Term {
	t, ok := r.sol.Get(name)
	if !ok {
		return nil
	}
	return &t
}

// Lexical returns the lexical value of a bound field, or nil.
func (r Row) Lexical(name string) *string {
	t, ok := r.sol.Get(name)
	if !ok {
		return nil
	}
	v := t.Value
	return &v
}

// Shape is a declared translator from the solutions of one query pattern to
// typed records.
type Shape[R any] struct {
	name      string
	pattern   rdf.Pattern
	fields    []Field
	exclusive [][2]string
	build     func(Row) (R, error)
}

// DefineShape declares a shape. Every field must be projected by the
// pattern and every exclusive pair must name two optional fields.
func DefineShape[R any](name string, pattern rdf.Pattern, fields []Field, exclusive [][2]string, build func(Row) (R, error)) (*Shape[R], error) {
	declared := make(map[string]Field, len(fields))
	for _, f := range fields {
		if !pattern.HasVar(f.Name) {
			return nil, fmt.Errorf("shape %s: field %q is not projected by pattern %s", name, f.Name, pattern.Name)
		}
		if _, dup := declared[f.Name]; dup {
			return nil, fmt.Errorf("shape %s: field %q declared twice", name, f.Name)
		}
		declared[f.Name] = f
	}

	for _, pair := range exclusive {
		for _, n := range pair {
			f, ok := declared[n]
			if !ok {
				return nil, fmt.Errorf("shape %s: exclusive field %q is not declared", name, n)
			}
			if f.Required {
				return nil, fmt.Errorf("shape %s: exclusive field %q is required", name, n)
			}
		}
	}

	return &Shape[R]{
		name:      name,
		pattern:   pattern,
		fields:    fields,
		exclusive: exclusive,
		build:     build,
	}, nil
}

// MustDefineShape is like DefineShape but panics on an invalid declaration.
// It is meant for package level shape variables.
func MustDefineShape[R any](name string, pattern rdf.Pattern, fields []Field, exclusive [][2]string, build func(Row) (R, error)) *Shape[R] {
	s, err := DefineShape(name, pattern, fields, exclusive, build)
	if err != nil {
		panic(err)
	}
	return s
}

// Name returns the shape name.
func (s *Shape[R]) Name() string {
	return s.name
}

// Pattern returns the query pattern the shape reads.
func (s *Shape[R]) Pattern() rdf.Pattern {
	return s.pattern
}

// Map translates one solution. It fails with ErrMapping naming the first
// missing or ill-typed field, or with ErrFieldExclusivity if both fields of
// an exclusive pair are bound.
func (s *Shape[R]) Map(sol rdf.Solution) (R, error) {
	var zero R

	for _, f := range s.fields {
		t, ok := sol.Get(f.Name)
		if !ok {
			if f.Required {
				return zero, s.mappingError(sol, f.Name, "required binding is absent")
			}
			continue
		}
		if f.Literal && !t.IsLiteral() {
			return zero, s.mappingError(sol, f.Name, fmt.Sprintf("expected a literal, got %s", t.Kind))
		}
	}

	for _, pair := range s.exclusive {
		_, a := sol.Get(pair[0])
		_, b := sol.Get(pair[1])
		if a && b {
			return zero, NewPermanentError(
				fmt.Sprintf("%s: %s and %s are mutually exclusive", s.name, pair[0], pair[1]), nil).
				WithCode(ErrCodeFieldExclusivity).
				WithResource(subjectOf(sol)).
				WithDetail("fields", []string{pair[0], pair[1]})
		}
	}

	return s.build(Row{sol: sol})
}

func (s *Shape[R]) mappingError(sol rdf.Solution, field, reason string) *EngineError {
	return NewPermanentError(fmt.Sprintf("%s: field %s: %s", s.name, field, reason), nil).
		WithCode(ErrCodeMapping).
		WithResource(subjectOf(sol)).
		WithDetail("field", field)
}

// subjectOf names the entity a row is about, for diagnostics.
func subjectOf(sol rdf.Solution) string {
	for _, name := range []string{"subject", "source"} {
		if t, ok := sol.Get(name); ok {
			return t.String()
		}
	}
	return ""
}

// Declared shapes, one per query pattern.
var (
	attributeFields = []Field{
		{Name: "subject", Required: true},
		{Name: "ty", Required: true, Literal: true},
		{Name: "p", Required: true},
		{Name: "value", Required: true},
		{Name: "datatype"},
		{Name: "class"},
		{Name: "nifi_key", Literal: true},
	}

	channelFields = []Field{
		{Name: "subject", Required: true},
		{Name: "channel_type", Required: true},
		{Name: "nifi_key", Literal: true},
		{Name: "value"},
	}

	linkFields = []Field{
		{Name: "source", Required: true},
		{Name: "target", Required: true},
		{Name: "key", Literal: true},
	}

	datatypeOrClass = [][2]string{{"datatype", "class"}}

	processShape = MustDefineShape("process-attributes",
		stores.ProcessAttributes(rdf.NifiProcess), attributeFields, datatypeOrClass, buildAttribute)

	serviceShape = MustDefineShape("service-attributes",
		stores.ProcessAttributes(rdf.NifiService), attributeFields, datatypeOrClass, buildAttribute)

	writerChannelShape = MustDefineShape("writer-channel-attributes",
		stores.ChannelAttributes(rdf.ConnWriterChannel), channelFields, nil, buildChannelRecord)

	readerChannelShape = MustDefineShape("reader-channel-attributes",
		stores.ChannelAttributes(rdf.ConnReaderChannel), channelFields, nil, buildChannelRecord)

	directLinkShape = MustDefineShape("direct-links",
		stores.DirectLinks(), linkFields, nil, buildLink(LinkDirect))

	writerLinkShape = MustDefineShape("writer-links",
		stores.WriterLinks(), linkFields, nil, buildLink(LinkWriter))

	readerLinkShape = MustDefineShape("reader-links",
		stores.ReaderLinks(), linkFields, nil, buildLink(LinkReader))
)

func buildAttribute(r Row) (AttributeRecord, error) {
	rec := AttributeRecord{
		Subject:    r.Term("subject"),
		EngineType: r.Term("ty").Value,
		Path:       r.Term("p"),
		Value:      r.Term("value"),
		Datatype:   r.Optional("datatype"),
		Class:      r.Optional("class"),
		Key:        r.Lexical("nifi_key"),
	}

	// A plain value ends up in the remote configuration, which only holds strings.
	if !rec.ClassTyped() && !rec.Value.IsLiteral() {
		return AttributeRecord{}, NewPermanentError(
			fmt.Sprintf("value of %s must be a literal, got %s", rec.Path.Short(), rec.Value.Kind), nil).
			WithCode(ErrCodeMapping).
			WithResource(rec.Subject.String()).
			WithDetail("field", "value")
	}

	return rec, nil
}

func buildChannelRecord(r Row) (ChannelRecord, error) {
	return ChannelRecord{
		Subject:     r.Term("subject"),
		ChannelType: r.Term("channel_type"),
		Key:         r.Lexical("nifi_key"),
		Value:       r.Optional("value"),
	}, nil
}

func buildLink(origin LinkOrigin) func(Row) (LinkDescriptor, error) {
	return func(r Row) (LinkDescriptor, error) {
		return LinkDescriptor{
			Source: r.Term("source"),
			Target: r.Term("target"),
			Key:    r.Lexical("key"),
			Origin: origin,
		}, nil
	}
}
