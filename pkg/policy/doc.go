// Package policy gates provisioning plans with Open Policy Agent (OPA).
//
// Policies are Rego modules whose deny set lists violations. Each entry is
// a string or an object with a message and, optionally, a subject and a
// severity overriding the policy's default. A plan is denied when at least
// one violation has severity error.
//
// # Input
//
// Policies see the plan as input.plan:
//
//	{
//	  "id": "...",
//	  "services":   [{"subject", "kind", "engine_type", "properties": {...}}],
//	  "processors": [{"subject", "kind", "engine_type", "properties": {...}}],
//	  "channels":   [{"subject", "channel_type", "role", "variables": {...}}],
//	  "links":      [{"source", "target", "key", "origin"}],
//	  "rejected":   0,
//	  "summary":    {...}
//	}
//
// # Built-in Policies
//
//   - engine-types (error): services and processors carry a fully qualified
//     engine type.
//   - sensitive-properties (warning): properties named like passwords,
//     secrets or tokens reference a variable instead of holding a literal.
//   - dangling-links (warning): both ends of every link are in the plan.
//   - rejected-rows (warning): no instance row was rejected.
//
// # Usage
//
//	eng, err := policy.NewEngine(logger)
//	if err != nil {
//	    return err
//	}
//	if err := eng.LoadPolicies(ctx, cfg.Policy.Paths); err != nil {
//	    return err
//	}
//	opts.Gate = policy.NewGate(eng, cfg.Policy.Enforce, logger)
//
// Custom policies are loaded from .rego files, named after the file, or from
// JSON files holding a Policy. Engine.WatchPolicies swaps them in again
// whenever a policy file changes.
package policy
