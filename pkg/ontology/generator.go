// Package ontology generates ontology stubs for engine types.
//
// A stub describes one processor or controller service type in the shape the
// planner consumes: the type node with its engine type, and a shape with one
// property per configuration descriptor, one writer-channel property per
// outgoing relationship and, for processors, one reader-channel property for
// incoming links. Stubs are a starting point: paths are derived from
// descriptor names and every descriptor is typed xsd:string.
package ontology

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/openfroyo/nifictl/pkg/nifi"
	"github.com/openfroyo/nifictl/pkg/rdf"
)

// ConnTag tags a documented type in type listings.
const ConnTag = rdf.NSConn + "tag"

// Property is one configuration descriptor of a component type.
type Property struct {
	Name         string
	DisplayName  string
	Description  string
	DefaultValue string
	Required     bool
}

// Relationship is one outgoing relationship of a processor type.
type Relationship struct {
	Name        string
	Description string
}

// Component describes an engine type to generate a stub for.
type Component struct {
	// Name is the local name of the generated type node.
	Name string
	// Type is the engine type identifier.
	Type string
	// Service marks controller service types.
	Service bool

	Properties    []Property
	Relationships []Relationship
}

// FromProcessor builds a component description from a fetched processor.
func FromProcessor(p *nifi.ProcessorEntity) Component {
	c := Component{
		Name: p.Component.Name,
		Type: p.Component.Type,
	}
	if p.Component.Config != nil {
		c.Properties = properties(p.Component.Config.Descriptors)
	}
	for _, r := range p.Component.Relationships {
		c.Relationships = append(c.Relationships, Relationship{Name: r.Name, Description: r.Description})
	}
	return c
}

// FromService builds a component description from a fetched controller service.
func FromService(s *nifi.ControllerServiceEntity) Component {
	return Component{
		Name:       s.Component.Name,
		Type:       s.Component.Type,
		Service:    true,
		Properties: properties(s.Component.Descriptors),
	}
}

// properties orders descriptors by name.
func properties(descriptors map[string]nifi.PropertyDescriptor) []Property {
	names := make([]string, 0, len(descriptors))
	for name := range descriptors {
		names = append(names, name)
	}
	sort.Strings(names)

	props := make([]Property, 0, len(names))
	for _, name := range names {
		d := descriptors[name]
		props = append(props, Property{
			Name:         name,
			DisplayName:  d.DisplayName,
			Description:  d.Description,
			DefaultValue: d.DefaultValue,
			Required:     d.Required,
		})
	}
	return props
}

// SafeName maps a descriptor or relationship name to a path local name:
// letters are lowercased, everything else becomes '-'.
func SafeName(name string) string {
	var b strings.Builder
	for _, r := range name {
		if ('a' <= r && r <= 'z') || ('A' <= r && r <= 'Z') {
			b.WriteRune(r | 0x20)
		} else {
			b.WriteByte('-')
		}
	}
	return b.String()
}

// builder accumulates triples with sequential blank node labels.
type builder struct {
	triples []rdf.Triple
	blanks  int
}

func (b *builder) blank() rdf.Term {
	b.blanks++
	return rdf.Blank(fmt.Sprintf("s%d", b.blanks))
}

func (b *builder) add(s rdf.Term, p string, o rdf.Term) {
	b.triples = append(b.triples, rdf.Triple{Subject: s, Predicate: rdf.IRI(p), Object: o})
}

func (b *builder) addText(s rdf.Term, p, text string) {
	if text != "" {
		b.add(s, p, rdf.Literal(text))
	}
}

// Stub returns the ontology triples for one component type.
func Stub(c Component) ([]rdf.Triple, error) {
	if c.Type == "" {
		return nil, fmt.Errorf("component type is required")
	}
	name := c.Name
	if name == "" {
		name = c.Type[strings.LastIndex(c.Type, ".")+1:]
	}

	b := &builder{}
	node := rdf.IRI(rdf.NSNifi + name)

	class := rdf.NifiProcess
	if c.Service {
		class = rdf.NifiService
	}
	b.add(node, rdf.RDFType, rdf.IRI(class))

	props := b.blank()
	b.add(node, rdf.ConnProcessProperties, props)
	b.add(props, rdf.NifiType, rdf.Literal(c.Type))

	shape := b.blank()
	b.add(node, rdf.ConnShape, shape)

	for _, p := range c.Properties {
		prop := b.blank()
		b.add(shape, rdf.SHProperty, prop)
		b.add(prop, rdf.SHDatatype, rdf.IRI(rdf.XSDString))
		b.add(prop, rdf.SHPath, rdf.IRI(rdf.NSNifi+SafeName(p.Name)))
		b.add(prop, rdf.NifiKey, rdf.Literal(p.Name))
		b.addText(prop, rdf.SHName, p.DisplayName)
		b.addText(prop, rdf.SHDescription, p.Description)
		minCount := "0"
		if p.Required {
			minCount = "1"
		}
		b.add(prop, rdf.SHMinCount, rdf.TypedLiteral(minCount, rdf.XSDInteger))
		b.addText(prop, rdf.SHDefaultValue, p.DefaultValue)
	}

	if c.Service {
		return b.triples, nil
	}

	for _, r := range c.Relationships {
		prop := b.blank()
		b.add(shape, rdf.SHProperty, prop)
		b.add(prop, rdf.SHClass, rdf.IRI(rdf.ConnWriterChannel))
		b.add(prop, rdf.SHPath, rdf.IRI(rdf.NSNifi+SafeName(r.Name)))
		b.add(prop, rdf.NifiKey, rdf.Literal(r.Name))
		b.addText(prop, rdf.SHName, r.Name)
		b.addText(prop, rdf.SHDescription, r.Description)
	}

	in := b.blank()
	b.add(shape, rdf.SHProperty, in)
	b.add(in, rdf.SHClass, rdf.IRI(rdf.ConnReaderChannel))
	b.add(in, rdf.SHPath, rdf.IRI(rdf.NifiIncomingChannel))
	b.add(in, rdf.SHName, rdf.Literal("Incoming channel"))
	b.add(in, rdf.SHDescription, rdf.Literal("Combination of all incoming channels"))

	return b.triples, nil
}

// WriteStub writes the stub of one component type as Turtle.
func WriteStub(w io.Writer, c Component) error {
	triples, err := Stub(c)
	if err != nil {
		return err
	}
	return rdf.Encode(w, triples, rdf.FormatTurtle)
}

// DescribeTypes returns one anonymous node per documented type, carrying its
// description and tags.
func DescribeTypes(types []nifi.DocumentedType) []rdf.Triple {
	b := &builder{}
	for _, t := range types {
		node := b.blank()
		b.add(node, rdf.RDFType, rdf.IRI(rdf.NSConn+t.Type))
		b.addText(node, rdf.RDFSComment, t.Description)
		for _, tag := range t.Tags {
			b.add(node, ConnTag, rdf.Literal(tag))
		}
	}
	return b.triples
}
