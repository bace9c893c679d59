package policy

import (
	"time"

	"github.com/openfroyo/nifictl/pkg/engine"
)

// Severity represents the severity level of a policy violation.
type Severity string

const (
	// SeverityInfo is for informational messages.
	SeverityInfo Severity = "info"

	// SeverityWarning is for findings that should be reviewed.
	SeverityWarning Severity = "warning"

	// SeverityError is for violations that deny the plan.
	SeverityError Severity = "error"
)

// Blocking reports whether a violation of this severity denies the plan.
func (s Severity) Blocking() bool {
	return s == SeverityError
}

// Policy represents a policy rule with its Rego code.
type Policy struct {
	// Name is the unique name of the policy.
	Name string `json:"name"`

	// Description provides a human-readable description.
	Description string `json:"description"`

	// Rego contains the Rego policy code. Its deny set holds the violations.
	Rego string `json:"rego"`

	// Severity is the default severity for violations.
	Severity Severity `json:"severity"`

	// Enabled indicates if the policy is active.
	Enabled bool `json:"enabled"`

	// Source is the file the policy was loaded from. Empty for built-ins.
	Source string `json:"source,omitempty"`
}

// Violation is one entry of a policy's deny set.
type Violation struct {
	// Policy is the name of the policy that was violated.
	Policy string `json:"policy"`

	// Subject is the plan subject the violation is about, if any.
	Subject string `json:"subject,omitempty"`

	// Message is a human-readable violation message.
	Message string `json:"message"`

	// Severity is the violation severity level.
	Severity Severity `json:"severity"`
}

// Result is the outcome of evaluating every enabled policy against a plan.
type Result struct {
	// Allowed is false when at least one violation is blocking.
	Allowed bool `json:"allowed"`

	// Violations lists every violation in policy name order.
	Violations []Violation `json:"violations,omitempty"`

	// Warnings lists policies that could not be evaluated.
	Warnings []string `json:"warnings,omitempty"`

	// EvaluatedPolicies lists the names of the policies that were evaluated.
	EvaluatedPolicies []string `json:"evaluated_policies"`

	EvaluatedAt time.Time     `json:"evaluated_at"`
	Duration    time.Duration `json:"duration"`
}

// Blocking returns the violations that deny the plan.
func (r *Result) Blocking() []Violation {
	var out []Violation
	for _, v := range r.Violations {
		if v.Severity.Blocking() {
			out = append(out, v)
		}
	}
	return out
}

// Input is the document policies are evaluated against, available as input
// in Rego. Subjects and types are plain IRIs or blank node labels.
type Input struct {
	Plan PlanInput `json:"plan"`
}

// PlanInput is the policy view of a derived plan.
type PlanInput struct {
	ID         string             `json:"id"`
	Services   []EntityInput      `json:"services"`
	Processors []EntityInput      `json:"processors"`
	Channels   []ChannelInput     `json:"channels"`
	Links      []LinkInput        `json:"links"`
	Rejected   int                `json:"rejected"`
	Summary    engine.PlanSummary `json:"summary"`
}

// EntityInput is a service or processor with its folded properties.
type EntityInput struct {
	Subject    string            `json:"subject"`
	Kind       string            `json:"kind"`
	EngineType string            `json:"engine_type"`
	Properties map[string]string `json:"properties"`
}

// ChannelInput is a writer or reader channel with its group variables.
type ChannelInput struct {
	Subject     string            `json:"subject"`
	ChannelType string            `json:"channel_type"`
	Role        string            `json:"role"`
	Variables   map[string]string `json:"variables"`
}

// LinkInput is one connection the plan will create.
type LinkInput struct {
	Source string `json:"source"`
	Target string `json:"target"`
	Key    string `json:"key,omitempty"`
	Origin string `json:"origin"`
}

// NewInput builds the policy input of a plan.
func NewInput(plan *engine.Plan) *Input {
	in := PlanInput{
		ID:         plan.ID,
		Services:   entityInputs(plan.Services),
		Processors: entityInputs(plan.Processors),
		Channels:   []ChannelInput{},
		Links:      []LinkInput{},
		Rejected:   len(plan.Rejected),
		Summary:    plan.Summary,
	}

	for _, list := range [][]engine.ChannelEntity{plan.WriterChannels, plan.ReaderChannels} {
		for _, ch := range list {
			vars := make(map[string]string)
			for _, v := range ch.Variables() {
				vars[v.Name] = v.Value
			}
			in.Channels = append(in.Channels, ChannelInput{
				Subject:     ch.Subject.Value,
				ChannelType: ch.ChannelType.Value,
				Role:        string(ch.Role),
				Variables:   vars,
			})
		}
	}

	for _, list := range [][]engine.LinkDescriptor{plan.DirectLinks, plan.WriterLinks, plan.ReaderLinks} {
		for _, l := range list {
			link := LinkInput{
				Source: l.Source.Value,
				Target: l.Target.Value,
				Origin: string(l.Origin),
			}
			if l.Key != nil {
				link.Key = *l.Key
			}
			in.Links = append(in.Links, link)
		}
	}

	return &Input{Plan: in}
}

func entityInputs(entities []engine.Entity) []EntityInput {
	out := make([]EntityInput, 0, len(entities))
	for _, e := range entities {
		props, _ := e.Properties()
		out = append(out, EntityInput{
			Subject:    e.Subject.Value,
			Kind:       string(e.Kind),
			EngineType: e.EngineType,
			Properties: props,
		})
	}
	return out
}
