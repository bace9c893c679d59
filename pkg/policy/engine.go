package policy

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/open-policy-agent/opa/ast"
	"github.com/open-policy-agent/opa/rego"
	"github.com/rs/zerolog"

	"github.com/openfroyo/nifictl/pkg/engine"
)

// Engine compiles Rego policies and evaluates them against plans.
type Engine struct {
	mu       sync.RWMutex
	policies map[string]*compiledPolicy
	logger   zerolog.Logger
}

// compiledPolicy represents a compiled Rego policy.
type compiledPolicy struct {
	policy   *Policy
	query    rego.PreparedEvalQuery
	compiled time.Time
}

// NewEngine creates a policy engine holding the built-in policies.
func NewEngine(logger zerolog.Logger) (*Engine, error) {
	e := &Engine{
		policies: make(map[string]*compiledPolicy),
		logger:   logger.With().Str("component", "policy-engine").Logger(),
	}

	if err := e.loadBuiltinPolicies(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to load built-in policies: %w", err)
	}

	return e, nil
}

// EvaluatePlan evaluates every enabled policy against a plan.
func (e *Engine) EvaluatePlan(ctx context.Context, plan *engine.Plan) (*Result, error) {
	startTime := time.Now()
	e.mu.RLock()
	defer e.mu.RUnlock()

	input := NewInput(plan)
	result := &Result{Allowed: true}

	for _, name := range e.sortedNames() {
		cp := e.policies[name]
		if !cp.policy.Enabled {
			continue
		}
		result.EvaluatedPolicies = append(result.EvaluatedPolicies, name)

		violations, err := e.evaluatePolicy(ctx, cp, input)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			e.logger.Error().Err(err).
				Str("policy", name).
				Str("plan_id", plan.ID).
				Msg("Policy evaluation failed")
			result.Warnings = append(result.Warnings, fmt.Sprintf("policy %s evaluation failed: %v", name, err))
			continue
		}

		for _, v := range violations {
			if v.Severity.Blocking() {
				result.Allowed = false
			}
		}
		result.Violations = append(result.Violations, violations...)
	}

	result.EvaluatedAt = time.Now()
	result.Duration = time.Since(startTime)

	e.logger.Debug().
		Str("plan_id", plan.ID).
		Int("violations", len(result.Violations)).
		Dur("duration", result.Duration).
		Msg("Plan policy evaluation completed")

	return result, nil
}

// LoadPolicies loads policy files next to the policies already held.
func (e *Engine) LoadPolicies(ctx context.Context, paths []string) error {
	loader := NewLoader(e.logger)
	policies, err := loader.LoadFromPaths(ctx, paths)
	if err != nil {
		return fmt.Errorf("failed to load policies: %w", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	for i := range policies {
		if err := e.compileAndStorePolicy(ctx, &policies[i]); err != nil {
			return fmt.Errorf("failed to compile policy %s: %w", policies[i].Name, err)
		}
	}

	e.logger.Info().
		Int("count", len(policies)).
		Msg("Policies loaded")

	return nil
}

// ReplacePolicies drops every loaded policy and keeps the built-ins plus
// the given ones. It is the reload callback of Loader.Watch.
func (e *Engine) ReplacePolicies(ctx context.Context, policies []Policy) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.policies = make(map[string]*compiledPolicy)
	if err := e.loadBuiltinPolicies(ctx); err != nil {
		return err
	}
	for i := range policies {
		if err := e.compileAndStorePolicy(ctx, &policies[i]); err != nil {
			return fmt.Errorf("failed to compile policy %s: %w", policies[i].Name, err)
		}
	}
	return nil
}

// WatchPolicies replaces the loaded policies with the contents of paths
// whenever a policy file under them changes, then calls onReload. It returns
// once the watch is set up; watching stops when ctx is done.
func (e *Engine) WatchPolicies(ctx context.Context, paths []string, onReload func()) error {
	loader := NewLoader(e.logger)
	return loader.Watch(ctx, paths, func(policies []Policy) error {
		if err := e.ReplacePolicies(ctx, policies); err != nil {
			return err
		}
		if onReload != nil {
			onReload()
		}
		return nil
	})
}

// evaluatePolicy returns the deny set of one policy as violations.
func (e *Engine) evaluatePolicy(ctx context.Context, cp *compiledPolicy, input *Input) ([]Violation, error) {
	results, err := cp.query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return nil, fmt.Errorf("policy evaluation error: %w", err)
	}

	var violations []Violation
	for _, result := range results {
		if len(result.Expressions) == 0 {
			continue
		}
		denySet, ok := result.Expressions[0].Value.([]interface{})
		if !ok {
			continue
		}
		for _, d := range denySet {
			violations = append(violations, createViolation(cp.policy, d))
		}
	}

	sort.SliceStable(violations, func(i, j int) bool {
		return violations[i].Message < violations[j].Message
	})
	return violations, nil
}

// createViolation creates a Violation from one deny set entry: a string or
// an object with message, and optionally subject and severity.
func createViolation(policy *Policy, result interface{}) Violation {
	violation := Violation{
		Policy:   policy.Name,
		Severity: policy.Severity,
	}

	switch v := result.(type) {
	case string:
		violation.Message = v
	case map[string]interface{}:
		if msg, ok := v["message"].(string); ok {
			violation.Message = msg
		}
		if sev, ok := v["severity"].(string); ok {
			violation.Severity = Severity(sev)
		}
		if subject, ok := v["subject"].(string); ok {
			violation.Subject = subject
		}
	default:
		violation.Message = fmt.Sprintf("%v", result)
	}

	return violation
}

// compileAndStorePolicy compiles a policy and prepares its deny query.
func (e *Engine) compileAndStorePolicy(ctx context.Context, policy *Policy) error {
	module, err := ast.ParseModule(policy.Name, policy.Rego)
	if err != nil {
		return fmt.Errorf("failed to parse policy: %w", err)
	}
	if module == nil {
		return fmt.Errorf("policy %s is empty", policy.Name)
	}

	r := rego.New(
		rego.ParsedModule(module),
		rego.Query(module.Package.Path.String()+".deny"),
	)

	query, err := r.PrepareForEval(ctx)
	if err != nil {
		return fmt.Errorf("failed to prepare query: %w", err)
	}

	e.policies[policy.Name] = &compiledPolicy{
		policy:   policy,
		query:    query,
		compiled: time.Now(),
	}

	e.logger.Debug().
		Str("policy", policy.Name).
		Msg("Policy compiled")

	return nil
}

// loadBuiltinPolicies loads the built-in policies.
func (e *Engine) loadBuiltinPolicies(ctx context.Context) error {
	builtins := GetBuiltinPolicies()
	for i := range builtins {
		if err := e.compileAndStorePolicy(ctx, &builtins[i]); err != nil {
			return fmt.Errorf("failed to compile built-in policy %s: %w", builtins[i].Name, err)
		}
	}
	return nil
}

func (e *Engine) sortedNames() []string {
	names := make([]string, 0, len(e.policies))
	for name := range e.policies {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// GetPolicy returns a policy by name.
func (e *Engine) GetPolicy(name string) (*Policy, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	cp, exists := e.policies[name]
	if !exists {
		return nil, fmt.Errorf("policy not found: %s", name)
	}

	return cp.policy, nil
}

// ListPolicies returns all loaded policies in name order.
func (e *Engine) ListPolicies() []Policy {
	e.mu.RLock()
	defer e.mu.RUnlock()

	policies := make([]Policy, 0, len(e.policies))
	for _, name := range e.sortedNames() {
		policies = append(policies, *e.policies[name].policy)
	}

	return policies
}

// EnablePolicy enables a policy by name.
func (e *Engine) EnablePolicy(name string) error {
	return e.setEnabled(name, true)
}

// DisablePolicy disables a policy by name.
func (e *Engine) DisablePolicy(name string) error {
	return e.setEnabled(name, false)
}

func (e *Engine) setEnabled(name string, enabled bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	cp, exists := e.policies[name]
	if !exists {
		return fmt.Errorf("policy not found: %s", name)
	}

	cp.policy.Enabled = enabled
	e.logger.Info().Str("policy", name).Bool("enabled", enabled).Msg("Policy toggled")

	return nil
}

// Gate is the plan gate of a provisioning run. It implements engine.PlanGate.
type Gate struct {
	engine  *Engine
	enforce bool
	logger  zerolog.Logger

	mu   sync.Mutex
	last *Result
}

var _ engine.PlanGate = (*Gate)(nil)

// NewGate creates a gate. An advisory gate (enforce false) logs violations
// and never denies a plan.
func NewGate(e *Engine, enforce bool, logger zerolog.Logger) *Gate {
	return &Gate{
		engine:  e,
		enforce: enforce,
		logger:  logger.With().Str("component", "policy-gate").Logger(),
	}
}

// CheckPlan evaluates the plan and returns an error wrapping
// engine.ErrPolicyDenied when an enforcing gate finds blocking violations.
func (g *Gate) CheckPlan(ctx context.Context, plan *engine.Plan) error {
	result, err := g.engine.EvaluatePlan(ctx, plan)
	if err != nil {
		return engine.NewPermanentError("policy evaluation failed", err).
			WithCode(engine.ErrCodeInternal).
			WithOperation("check_plan")
	}

	g.mu.Lock()
	g.last = result
	g.mu.Unlock()

	for _, v := range result.Violations {
		g.logger.Warn().
			Str("policy", v.Policy).
			Str("severity", string(v.Severity)).
			Str("subject", v.Subject).
			Msg(v.Message)
	}

	if result.Allowed || !g.enforce {
		return nil
	}

	blocking := result.Blocking()
	msgs := make([]string, 0, len(blocking))
	for _, v := range blocking {
		msgs = append(msgs, fmt.Sprintf("%s: %s", v.Policy, v.Message))
	}
	return engine.NewPermanentError(
		fmt.Sprintf("plan denied by %d policy violation(s): %s", len(blocking), strings.Join(msgs, "; ")), nil).
		WithCode(engine.ErrCodePolicyDenied).
		WithResource(plan.ID).
		WithDetail("violations", blocking)
}

// LastResult returns the result of the most recent check, if any.
func (g *Gate) LastResult() *Result {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.last
}
