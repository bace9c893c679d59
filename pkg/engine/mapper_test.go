package engine

import (
	"errors"
	"testing"

	"github.com/openfroyo/nifictl/pkg/rdf"
)

const ex = "http://example.com/ns#"

func testPattern() rdf.Pattern {
	return rdf.Pattern{Name: "test", Vars: []string{"subject", "name", "left", "right"}}
}

type testRecord struct {
	Subject rdf.Term
	Name    string
	Left    *rdf.Term
	Right   *rdf.Term
}

func buildTestRecord(r Row) (testRecord, error) {
	return testRecord{
		Subject: r.Term("subject"),
		Name:    r.Term("name").Value,
		Left:    r.Optional("left"),
		Right:   r.Optional("right"),
	}, nil
}

func testShape(t *testing.T) *Shape[testRecord] {
	t.Helper()
	s, err := DefineShape("test", testPattern(), []Field{
		{Name: "subject", Required: true},
		{Name: "name", Required: true, Literal: true},
		{Name: "left"},
		{Name: "right"},
	}, [][2]string{{"left", "right"}}, buildTestRecord)
	if err != nil {
		t.Fatalf("DefineShape failed: %v", err)
	}
	return s
}

func TestDefineShape_Validation(t *testing.T) {
	tests := []struct {
		name      string
		fields    []Field
		exclusive [][2]string
	}{
		{
			name:   "field not projected",
			fields: []Field{{Name: "subject", Required: true}, {Name: "missing"}},
		},
		{
			name:   "duplicate field",
			fields: []Field{{Name: "subject"}, {Name: "subject"}},
		},
		{
			name:      "exclusive pair names undeclared field",
			fields:    []Field{{Name: "subject"}, {Name: "left"}},
			exclusive: [][2]string{{"left", "right"}},
		},
		{
			name:      "exclusive pair names required field",
			fields:    []Field{{Name: "subject"}, {Name: "left", Required: true}, {Name: "right"}},
			exclusive: [][2]string{{"left", "right"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DefineShape("test", testPattern(), tt.fields, tt.exclusive, buildTestRecord)
			if err == nil {
				t.Error("expected declaration error, got nil")
			}
		})
	}
}

func TestMustDefineShape_Panics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic for invalid shape")
		}
	}()
	MustDefineShape("test", testPattern(), []Field{{Name: "nope"}}, nil, buildTestRecord)
}

func TestShapeMap(t *testing.T) {
	s := testShape(t)
	subject := rdf.IRI(ex + "a")

	rec, err := s.Map(rdf.Solution{
		"subject": subject,
		"name":    rdf.Literal("alpha"),
		"left":    rdf.IRI(ex + "l"),
	})
	if err != nil {
		t.Fatalf("Map failed: %v", err)
	}
	if rec.Name != "alpha" {
		t.Errorf("expected name alpha, got %q", rec.Name)
	}
	if rec.Left == nil || *rec.Left != rdf.IRI(ex+"l") {
		t.Errorf("expected left binding, got %v", rec.Left)
	}
	if rec.Right != nil {
		t.Errorf("expected absent optional to map to nil, got %v", *rec.Right)
	}
}

func TestShapeMap_Errors(t *testing.T) {
	s := testShape(t)
	subject := rdf.IRI(ex + "a")

	tests := []struct {
		name     string
		sol      rdf.Solution
		sentinel error
		field    string
	}{
		{
			name:     "missing required",
			sol:      rdf.Solution{"subject": subject},
			sentinel: ErrMapping,
			field:    "name",
		},
		{
			name:     "non-literal",
			sol:      rdf.Solution{"subject": subject, "name": rdf.IRI(ex + "n")},
			sentinel: ErrMapping,
			field:    "name",
		},
		{
			name: "exclusive pair",
			sol: rdf.Solution{
				"subject": subject,
				"name":    rdf.Literal("alpha"),
				"left":    rdf.IRI(ex + "l"),
				"right":   rdf.IRI(ex + "r"),
			},
			sentinel: ErrFieldExclusivity,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Map(tt.sol)
			if !errors.Is(err, tt.sentinel) {
				t.Fatalf("expected %v, got %v", tt.sentinel, err)
			}

			var ee *EngineError
			if !errors.As(err, &ee) {
				t.Fatalf("expected *EngineError, got %T", err)
			}
			if ee.Resource != subject.String() {
				t.Errorf("expected resource %s, got %s", subject, ee.Resource)
			}
			if tt.field != "" && ee.Details["field"] != tt.field {
				t.Errorf("expected field %s, got %v", tt.field, ee.Details["field"])
			}
		})
	}
}

func TestProcessShape_RejectsDatatypeAndClass(t *testing.T) {
	xsdString := rdf.IRI(rdf.XSDString)
	writer := rdf.IRI(rdf.ConnWriterChannel)

	_, err := processShape.Map(rdf.Solution{
		"subject":  rdf.IRI(ex + "broken"),
		"ty":       rdf.Literal("org.example.Broken"),
		"p":        rdf.IRI(ex + "weird"),
		"value":    rdf.Literal("x"),
		"datatype": xsdString,
		"class":    writer,
		"nifi_key": rdf.Literal("weird"),
	})
	if !errors.Is(err, ErrFieldExclusivity) {
		t.Fatalf("expected field exclusivity error, got %v", err)
	}
}

func TestProcessShape_PlainValueMustBeLiteral(t *testing.T) {
	_, err := processShape.Map(rdf.Solution{
		"subject": rdf.IRI(ex + "echo"),
		"ty":      rdf.Literal("org.example.Echo"),
		"p":       rdf.IRI(ex + "message"),
		"value":   rdf.IRI(ex + "notALiteral"),
	})
	if !errors.Is(err, ErrMapping) {
		t.Fatalf("expected mapping error, got %v", err)
	}

	rec, err := processShape.Map(rdf.Solution{
		"subject": rdf.IRI(ex + "echo"),
		"ty":      rdf.Literal("org.example.Echo"),
		"p":       rdf.IRI(ex + "out"),
		"value":   rdf.IRI(ex + "echoOut"),
		"class":   rdf.IRI(rdf.ConnWriterChannel),
	})
	if err != nil {
		t.Fatalf("expected class-typed IRI value to map, got %v", err)
	}
	if rec.Role() != RoleWriter {
		t.Errorf("expected role %s, got %s", RoleWriter, rec.Role())
	}
	if rec.Key != nil {
		t.Errorf("expected no key, got %q", *rec.Key)
	}
}
