package rdf

import (
	"errors"
	"fmt"
	"strings"
)

// TermKind identifies the kind of an RDF term.
type TermKind int

const (
	// KindNone is the zero value and denotes an unbound term.
	KindNone TermKind = iota
	// KindIRI is a named node.
	KindIRI
	// KindBlank is an anonymous node, scoped to the document it was read from.
	KindBlank
	// KindLiteral is a lexical value with an optional datatype or language tag.
	KindLiteral
)

// String returns the string representation of the kind.
func (k TermKind) String() string {
	switch k {
	case KindIRI:
		return "iri"
	case KindBlank:
		return "blank"
	case KindLiteral:
		return "literal"
	default:
		return "none"
	}
}

// ErrMalformedTerm is returned when a term cannot be parsed or is not valid in its position.
var ErrMalformedTerm = errors.New("malformed term")

// Term is a single RDF term.
//
// Terms are comparable and are used as map keys for subject identity.
type Term struct {
	Kind     TermKind
	Value    string
	Datatype string
	Lang     string
}

// IRI returns a named node term.
func IRI(value string) Term {
	return Term{Kind: KindIRI, Value: value}
}

// Blank returns a blank node term with the given label.
func Blank(label string) Term {
	return Term{Kind: KindBlank, Value: label}
}

// Literal returns a plain string literal.
func Literal(value string) Term {
	return Term{Kind: KindLiteral, Value: value}
}

// TypedLiteral returns a literal with an explicit datatype.
// xsd:string is normalized to a plain literal.
func TypedLiteral(value, datatype string) Term {
	if datatype == XSDString {
		datatype = ""
	}
	return Term{Kind: KindLiteral, Value: value, Datatype: datatype}
}

// LangLiteral returns a language-tagged literal.
func LangLiteral(value, lang string) Term {
	return Term{Kind: KindLiteral, Value: value, Lang: lang}
}

// IsZero reports whether the term is unbound.
func (t Term) IsZero() bool {
	return t.Kind == KindNone
}

// IsIRI reports whether the term is a named node.
func (t Term) IsIRI() bool { return t.Kind == KindIRI }

// IsBlank reports whether the term is a blank node.
func (t Term) IsBlank() bool { return t.Kind == KindBlank }

// IsLiteral reports whether the term is a literal.
func (t Term) IsLiteral() bool { return t.Kind == KindLiteral }

// String returns the canonical N-Triples form of the term. The graph store
// keeps terms in this form, so two terms are equal exactly when their
// canonical forms are equal.
func (t Term) String() string {
	switch t.Kind {
	case KindIRI:
		return "<" + t.Value + ">"
	case KindBlank:
		return "_:" + t.Value
	case KindLiteral:
		s := `"` + escapeLiteral(t.Value) + `"`
		switch {
		case t.Lang != "":
			return s + "@" + t.Lang
		case t.Datatype != "":
			return s + "^^<" + t.Datatype + ">"
		default:
			return s
		}
	default:
		return ""
	}
}

// MarshalText encodes the term in canonical form.
func (t Term) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText decodes a canonical term. The empty string is the unbound term.
func (t *Term) UnmarshalText(data []byte) error {
	if len(data) == 0 {
		*t = Term{}
		return nil
	}
	parsed, err := ParseTerm(string(data))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Short returns a compact, human readable form: the local name of an IRI,
// the label of a blank node or the lexical value of a literal.
func (t Term) Short() string {
	switch t.Kind {
	case KindIRI:
		if i := strings.LastIndexAny(t.Value, "#/"); i >= 0 && i < len(t.Value)-1 {
			return t.Value[i+1:]
		}
		return t.Value
	case KindBlank:
		return "_:" + t.Value
	default:
		return t.Value
	}
}

// ParseTerm parses a term from its canonical form.
func ParseTerm(s string) (Term, error) {
	switch {
	case strings.HasPrefix(s, "<"):
		if !strings.HasSuffix(s, ">") || len(s) < 3 {
			return Term{}, fmt.Errorf("%w: unterminated IRI %q", ErrMalformedTerm, s)
		}
		return IRI(s[1 : len(s)-1]), nil
	case strings.HasPrefix(s, "_:"):
		if len(s) == 2 {
			return Term{}, fmt.Errorf("%w: empty blank node label", ErrMalformedTerm)
		}
		return Blank(s[2:]), nil
	case strings.HasPrefix(s, `"`):
		return parseLiteral(s)
	default:
		return Term{}, fmt.Errorf("%w: %q", ErrMalformedTerm, s)
	}
}

func parseLiteral(s string) (Term, error) {
	end := -1
	for i := 1; i < len(s); i++ {
		if s[i] == '\\' {
			i++
			continue
		}
		if s[i] == '"' {
			end = i
			break
		}
	}
	if end < 0 {
		return Term{}, fmt.Errorf("%w: unterminated literal %q", ErrMalformedTerm, s)
	}

	value, err := unescapeLiteral(s[1:end])
	if err != nil {
		return Term{}, err
	}

	rest := s[end+1:]
	switch {
	case rest == "":
		return Literal(value), nil
	case strings.HasPrefix(rest, "@"):
		return LangLiteral(value, rest[1:]), nil
	case strings.HasPrefix(rest, "^^<") && strings.HasSuffix(rest, ">"):
		return TypedLiteral(value, rest[3:len(rest)-1]), nil
	default:
		return Term{}, fmt.Errorf("%w: literal suffix %q", ErrMalformedTerm, rest)
	}
}

var literalEscaper = strings.NewReplacer(
	`\`, `\\`,
	`"`, `\"`,
	"\n", `\n`,
	"\r", `\r`,
	"\t", `\t`,
)

func escapeLiteral(s string) string {
	return literalEscaper.Replace(s)
}

func unescapeLiteral(s string) (string, error) {
	if !strings.Contains(s, `\`) {
		return s, nil
	}

	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '\\' {
			b.WriteByte(c)
			continue
		}
		i++
		if i >= len(s) {
			return "", fmt.Errorf("%w: dangling escape", ErrMalformedTerm)
		}
		switch s[i] {
		case '\\':
			b.WriteByte('\\')
		case '"':
			b.WriteByte('"')
		case 'n':
			b.WriteByte('\n')
		case 'r':
			b.WriteByte('\r')
		case 't':
			b.WriteByte('\t')
		default:
			return "", fmt.Errorf("%w: unknown escape \\%c", ErrMalformedTerm, s[i])
		}
	}
	return b.String(), nil
}

// Triple is a single statement.
type Triple struct {
	Subject   Term
	Predicate Term
	Object    Term
}

// Validate checks the positional constraints of RDF: the subject is a named
// or blank node, the predicate is a named node and the object is bound.
func (tr Triple) Validate() error {
	if !tr.Subject.IsIRI() && !tr.Subject.IsBlank() {
		return fmt.Errorf("%w: subject must be an IRI or blank node, got %s", ErrMalformedTerm, tr.Subject.Kind)
	}
	if !tr.Predicate.IsIRI() {
		return fmt.Errorf("%w: predicate must be an IRI, got %s", ErrMalformedTerm, tr.Predicate.Kind)
	}
	if tr.Object.IsZero() {
		return fmt.Errorf("%w: object is unbound", ErrMalformedTerm)
	}
	if tr.Subject.Value == "" || tr.Predicate.Value == "" {
		return fmt.Errorf("%w: empty subject or predicate", ErrMalformedTerm)
	}
	return nil
}

// String returns the triple as one N-Triples line without the trailing newline.
func (tr Triple) String() string {
	return tr.Subject.String() + " " + tr.Predicate.String() + " " + tr.Object.String() + " ."
}

// Solution is one row of variable bindings. Unbound variables are absent.
type Solution map[string]Term

// Get returns the binding for name and whether it is bound.
func (s Solution) Get(name string) (Term, bool) {
	t, ok := s[name]
	if !ok || t.IsZero() {
		return Term{}, false
	}
	return t, true
}

// Pattern is one fixed query shape understood by a graph store.
type Pattern struct {
	// Name identifies the shape in logs and errors.
	Name string
	// Query is the store-specific query text.
	Query string
	// Params are named parameters bound to canonical term strings.
	Params map[string]Term
	// Vars lists the variables each solution may bind, in projection order.
	Vars []string
}

// HasVar reports whether the pattern projects the named variable.
func (p Pattern) HasVar(name string) bool {
	for _, v := range p.Vars {
		if v == name {
			return true
		}
	}
	return false
}
