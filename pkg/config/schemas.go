package config

import (
	"fmt"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
)

// SchemaRegistry holds the CUE definitions configuration files are unified with.
type SchemaRegistry struct {
	ctx     *cue.Context
	schemas map[string]cue.Value
	mu      sync.RWMutex
}

// NewSchemaRegistry creates a registry holding the built-in #Config schema.
func NewSchemaRegistry() *SchemaRegistry {
	sr := &SchemaRegistry{
		ctx:     cuecontext.New(),
		schemas: make(map[string]cue.Value),
	}

	// Register built-in schemas
	sr.RegisterSchema("config", "#Config", builtinConfigSchema)

	return sr
}

// RegisterSchema compiles source and registers the definition def under name.
func (sr *SchemaRegistry) RegisterSchema(name, def, source string) error {
	sr.mu.Lock()
	defer sr.mu.Unlock()

	val := sr.ctx.CompileString(source, cue.Filename(name+".cue"))
	if err := val.Err(); err != nil {
		return fmt.Errorf("failed to compile schema %s: %w", name, err)
	}
	schema := val.LookupPath(cue.ParsePath(def))
	if !schema.Exists() {
		return fmt.Errorf("schema %s does not define %s", name, def)
	}
	if err := schema.Err(); err != nil {
		return fmt.Errorf("failed to compile schema %s: %w", name, err)
	}

	sr.schemas[name] = schema
	return nil
}

// GetSchema retrieves a registered schema.
func (sr *SchemaRegistry) GetSchema(name string) (cue.Value, bool) {
	sr.mu.RLock()
	defer sr.mu.RUnlock()

	schema, ok := sr.schemas[name]
	return schema, ok
}

// Context returns the CUE context the schemas were compiled in. Values
// unified with a schema must come from the same context.
func (sr *SchemaRegistry) Context() *cue.Context {
	return sr.ctx
}

// Unify unifies val with the named schema and checks the result is concrete.
func (sr *SchemaRegistry) Unify(name string, val cue.Value) (cue.Value, error) {
	schema, ok := sr.GetSchema(name)
	if !ok {
		return cue.Value{}, fmt.Errorf("schema %s not found", name)
	}

	unified := schema.Unify(val)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return unified, err
	}
	return unified, nil
}

// Required fields are checked after command line overrides, so the schema
// only constrains shapes and supplies defaults.
const builtinConfigSchema = `
#Duration: =~"^([0-9]+(\\.[0-9]+)?(ns|us|µs|ms|s|m|h))+$"

#Channel: {
	type:       string & !=""
	template:   string & !=""
	direction?: "writer" | "reader"
}

#Config: {
	nifi: {
		url?:                 string & =~"^https?://"
		root_group?:          string & !=""
		token?:               string
		insecure_skip_verify: bool | *false
		timeout:              string & #Duration | *"30s"
	}

	ontology: files: [...string] | *[]

	channels: [...#Channel] | *[]

	links: {
		missing_key?:          "fail" | "default" | "unrestricted"
		default_relationship?: string & !=""
	}

	readiness: {
		interval: string & #Duration | *"1s"
		retries:  *10 | int & >=0
	}

	start: bool | *true

	policy: {
		enforce: bool | *false
		paths:   [...string] | *[]
	}

	telemetry: {
		log_level:  *"info" | "trace" | "debug" | "warn" | "error"
		log_format: *"console" | "json"
		tracing: {
			exporter:  *"none" | "stdout" | "otlp"
			endpoint?: string
			insecure:  bool | *true
		}
		metrics_textfile?: string
	}
}
`
