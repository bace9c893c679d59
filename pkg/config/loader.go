package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/errors"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Format is the syntax of a configuration file.
type Format string

const (
	FormatCUE  Format = "cue"
	FormatYAML Format = "yaml"
)

// FormatOf picks the format from the file extension.
func FormatOf(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".cue":
		return FormatCUE, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("unsupported configuration file %s: expected .cue, .yaml or .yml", path)
	}
}

// Loader reads, unifies and validates configuration files.
type Loader struct {
	schemas   *SchemaRegistry
	validator *validator.Validate
}

// NewLoader creates a loader with the built-in schema.
func NewLoader() *Loader {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})

	return &Loader{
		schemas:   NewSchemaRegistry(),
		validator: v,
	}
}

// Load reads one configuration file. Relative template and ontology paths
// are resolved against the file's directory. An empty path yields the
// defaults. Load does not check required fields; call Validate once command
// line overrides are applied.
func (l *Loader) Load(path string) (*Config, error) {
	if path == "" {
		return l.Parse(nil, FormatYAML, "")
	}

	format, err := FormatOf(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration: %w", err)
	}

	cfg, err := l.Parse(data, format, path)
	if err != nil {
		return nil, err
	}
	cfg.resolvePaths(filepath.Dir(path))
	return cfg, nil
}

// Parse unifies data with the #Config schema and decodes the result.
func (l *Loader) Parse(data []byte, format Format, filename string) (*Config, error) {
	ctx := l.schemas.Context()

	var val cue.Value
	switch format {
	case FormatCUE:
		val = ctx.CompileBytes(data, cue.Filename(filename))
	case FormatYAML:
		doc := map[string]interface{}{}
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, ValidationErrors{{File: filename, Message: err.Error()}}
		}
		val = ctx.Encode(doc)
	default:
		return nil, fmt.Errorf("unsupported configuration format: %s", format)
	}
	if err := val.Err(); err != nil {
		return nil, convertCUEErrors(err, filename)
	}

	unified, err := l.schemas.Unify("config", val)
	if err != nil {
		return nil, convertCUEErrors(err, filename)
	}

	out, err := unified.MarshalJSON()
	if err != nil {
		return nil, convertCUEErrors(err, filename)
	}
	var cfg Config
	if err := json.Unmarshal(out, &cfg); err != nil {
		return nil, ValidationErrors{{File: filename, Message: err.Error()}}
	}
	return &cfg, nil
}

// Validate checks the whole configuration, as needed to plan or run.
func (l *Loader) Validate(cfg *Config) error {
	return l.validate(cfg, "")
}

// ValidateNiFi checks only the engine location, as needed by inspection
// commands.
func (l *Loader) ValidateNiFi(cfg *Config) error {
	return l.validate(&cfg.NiFi, "nifi")
}

func (l *Loader) validate(s interface{}, prefix string) error {
	err := l.validator.Struct(s)
	if err == nil {
		return nil
	}

	fieldErrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return ValidationErrors{{Message: err.Error()}}
	}

	errs := make(ValidationErrors, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		path := fe.Namespace()
		if _, rest, ok := strings.Cut(path, "."); ok {
			path = rest
		}
		if prefix != "" {
			path = prefix + "." + path
		}
		errs = append(errs, ValidationError{Path: path, Message: fieldMessage(fe)})
	}
	return errs
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "required_if":
		return fmt.Sprintf("is required when %s", strings.Replace(fe.Param(), " ", " is ", 1))
	case "url":
		return fmt.Sprintf("%q is not a URL", fe.Value())
	case "oneof":
		return fmt.Sprintf("%q is not one of: %s", fe.Value(), fe.Param())
	default:
		return fmt.Sprintf("failed on %s", fe.Tag())
	}
}

// convertCUEErrors converts CUE errors to ValidationErrors.
func convertCUEErrors(err error, filename string) ValidationErrors {
	var errs ValidationErrors
	for _, e := range errors.Errors(err) {
		ve := ValidationError{
			Path: cuePath(e.Path()),
			File: filename,
		}
		if pos := errors.Positions(e); len(pos) > 0 && pos[0].Filename() == filename {
			ve.Line = pos[0].Line()
			ve.Column = pos[0].Column()
		}
		format, args := e.Msg()
		ve.Message = fmt.Sprintf(format, args...)
		errs = append(errs, ve)
	}
	if len(errs) == 0 {
		errs = append(errs, ValidationError{File: filename, Message: err.Error()})
	}
	return errs
}

// cuePath joins the selectors of a CUE error path, dropping the leading
// definition selectors (#Config) the schema adds to every path.
func cuePath(selectors []string) string {
	for len(selectors) > 0 && strings.HasPrefix(selectors[0], "#") {
		selectors = selectors[1:]
	}
	return strings.Join(selectors, ".")
}

func (c *Config) resolvePaths(dir string) {
	resolve := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(dir, p)
	}

	for i := range c.Channels {
		c.Channels[i].Template = resolve(c.Channels[i].Template)
	}
	for i := range c.Ontology.Files {
		c.Ontology.Files[i] = resolve(c.Ontology.Files[i])
	}
	for i := range c.Policy.Paths {
		c.Policy.Paths[i] = resolve(c.Policy.Paths[i])
	}
}
