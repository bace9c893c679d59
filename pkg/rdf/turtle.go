package rdf

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	knakk "github.com/knakk/rdf"
)

// Format is a triple serialization format.
type Format string

const (
	// FormatTurtle is text/turtle.
	FormatTurtle Format = "turtle"
	// FormatNTriples is application/n-triples.
	FormatNTriples Format = "ntriples"
)

// FormatFromPath guesses the format from a file extension. Unknown
// extensions (and stdin) are read as Turtle, which is a superset of N-Triples.
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".nt":
		return FormatNTriples
	default:
		return FormatTurtle
	}
}

func (f Format) knakk() (knakk.Format, error) {
	switch f {
	case FormatTurtle, "":
		return knakk.Turtle, nil
	case FormatNTriples:
		return knakk.NTriples, nil
	default:
		return 0, fmt.Errorf("unsupported triple format: %s", f)
	}
}

// NewScope returns a fresh blank node scope. Every loaded document gets its
// own scope so that anonymous nodes from different documents never collide.
func NewScope() string {
	return "d" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}

// Decoder reads triples from one document, rewriting blank node labels into
// the document's scope.
type Decoder struct {
	dec   knakk.TripleDecoder
	scope string
}

// NewDecoder creates a decoder for r. An empty scope disables relabeling.
func NewDecoder(r io.Reader, format Format, scope string) (*Decoder, error) {
	kf, err := format.knakk()
	if err != nil {
		return nil, err
	}
	return &Decoder{
		dec:   knakk.NewTripleDecoder(r, kf),
		scope: scope,
	}, nil
}

// Decode returns the next triple, or io.EOF at the end of the document.
func (d *Decoder) Decode() (Triple, error) {
	kt, err := d.dec.Decode()
	if err != nil {
		return Triple{}, err
	}

	subj, err := d.convert(kt.Subj)
	if err != nil {
		return Triple{}, err
	}
	pred, err := d.convert(kt.Pred)
	if err != nil {
		return Triple{}, err
	}
	obj, err := d.convert(kt.Obj)
	if err != nil {
		return Triple{}, err
	}

	return Triple{Subject: subj, Predicate: pred, Object: obj}, nil
}

// DecodeAll reads the whole document.
func (d *Decoder) DecodeAll() ([]Triple, error) {
	var triples []Triple
	for {
		tr, err := d.Decode()
		if errors.Is(err, io.EOF) {
			return triples, nil
		}
		if err != nil {
			return nil, fmt.Errorf("failed to decode triple %d: %w", len(triples)+1, err)
		}
		triples = append(triples, tr)
	}
}

func (d *Decoder) convert(t knakk.Term) (Term, error) {
	switch t.Type() {
	case knakk.TermIRI:
		return IRI(t.String()), nil
	case knakk.TermBlank:
		label := strings.TrimPrefix(t.String(), "_:")
		if d.scope != "" {
			label = d.scope + "_" + label
		}
		return Blank(label), nil
	case knakk.TermLiteral:
		lit, ok := t.(knakk.Literal)
		if !ok {
			return Literal(t.String()), nil
		}
		if lang := lit.Lang(); lang != "" {
			return LangLiteral(lit.String(), lang), nil
		}
		return TypedLiteral(lit.String(), lit.DataType.String()), nil
	default:
		return Term{}, fmt.Errorf("%w: unknown term type for %q", ErrMalformedTerm, t.String())
	}
}

// ReadAll decodes every triple of r into a fresh scope.
func ReadAll(r io.Reader, format Format) ([]Triple, error) {
	dec, err := NewDecoder(r, format, NewScope())
	if err != nil {
		return nil, err
	}
	return dec.DecodeAll()
}

// Encode writes triples to w in the given format.
func Encode(w io.Writer, triples []Triple, format Format) error {
	kf, err := format.knakk()
	if err != nil {
		return err
	}

	enc := knakk.NewTripleEncoder(w, kf)
	for i, tr := range triples {
		kt, err := toKnakkTriple(tr)
		if err != nil {
			return fmt.Errorf("triple %d: %w", i+1, err)
		}
		if err := enc.Encode(kt); err != nil {
			return fmt.Errorf("failed to encode triple %d: %w", i+1, err)
		}
	}
	return enc.Close()
}

func toKnakkTriple(tr Triple) (knakk.Triple, error) {
	if err := tr.Validate(); err != nil {
		return knakk.Triple{}, err
	}

	var subj knakk.Subject
	if tr.Subject.IsBlank() {
		b, err := knakk.NewBlank(tr.Subject.Value)
		if err != nil {
			return knakk.Triple{}, err
		}
		subj = b
	} else {
		iri, err := knakk.NewIRI(tr.Subject.Value)
		if err != nil {
			return knakk.Triple{}, err
		}
		subj = iri
	}

	pred, err := knakk.NewIRI(tr.Predicate.Value)
	if err != nil {
		return knakk.Triple{}, err
	}

	var obj knakk.Object
	switch tr.Object.Kind {
	case KindIRI:
		iri, err := knakk.NewIRI(tr.Object.Value)
		if err != nil {
			return knakk.Triple{}, err
		}
		obj = iri
	case KindBlank:
		b, err := knakk.NewBlank(tr.Object.Value)
		if err != nil {
			return knakk.Triple{}, err
		}
		obj = b
	default:
		lit, err := toKnakkLiteral(tr.Object)
		if err != nil {
			return knakk.Triple{}, err
		}
		obj = lit
	}

	return knakk.Triple{Subj: subj, Pred: pred, Obj: obj}, nil
}

func toKnakkLiteral(t Term) (knakk.Literal, error) {
	switch {
	case t.Lang != "":
		return knakk.NewLangLiteral(t.Value, t.Lang)
	case t.Datatype != "":
		dt, err := knakk.NewIRI(t.Datatype)
		if err != nil {
			return knakk.Literal{}, err
		}
		return knakk.NewTypedLiteral(t.Value, dt), nil
	default:
		return knakk.NewLiteral(t.Value)
	}
}
