// Package engine derives a provisioning plan from an RDF graph and executes
// it against a NiFi control plane.
//
// # Overview
//
// A run goes through a fixed sequence of phases:
//
//  1. Plan - Run every query shape once, map rows into typed records, group
//     records by subject (Planner)
//  2. Policy - Optionally gate the plan before any remote call (PlanGate)
//  3. Services and processors - Create, correlate and configure one remote
//     object per entity (EntityProvisioner)
//  4. Direct links - Connect processor pairs (LinkResolver)
//  5. Channels - Upload each channel template once, instantiate it per
//     channel, correlate the generated port and bind group variables
//     (ChannelProvisioner)
//  6. Channel links - Connect processors to channel ports (LinkResolver)
//  7. Cleanup - Delete every uploaded template exactly once
//  8. Activation - Enable services, start processors and channel groups
//     (ReadinessPoller)
//
// Only a failed query and a denied policy gate abort a run. Every other
// failure is recorded against its subject and the run continues, ending in
// RunStatusPartial.
//
// # Correlation
//
// Remote identifiers only exist after creation, so links are resolved
// against the CorrelationStore filled by the provisioners rather than
// against the graph. Each correlation is also written back to the graph as
// nifi:remoteId and nifi:remoteGroup facts, which exported graphs carry.
//
// # Shapes
//
// Query rows are mapped with declared shapes (Shape). A shape lists its
// required and optional fields and the optional pairs that must not both be
// bound, and is checked against its pattern when it is declared:
//
//	var processShape = MustDefineShape("process-attributes",
//	    stores.ProcessAttributes(rdf.NifiProcess),
//	    []Field{{Name: "ty", Required: true, Literal: true}, ...},
//	    [][2]string{{"datatype", "class"}},
//	    buildAttribute)
//
// # Error Handling
//
// Errors are classified with EngineError:
//
//   - ErrorClassTransient: timeouts, unavailable engine, service not enabled
//   - ErrorClassThrottled: HTTP 429
//   - ErrorClassConflict: stale revision (HTTP 409)
//   - ErrorClassPermanent: mapping errors, correlation misses, missing templates
//
// Codes such as ErrCodeCorrelationMiss identify the failure; the sentinels
// (ErrMapping, ErrCorrelationMiss, ...) match them with errors.Is.
//
// # Concurrency
//
// A run issues remote calls one at a time from the calling goroutine.
// Readiness polling waits on a timer and returns early when the context is
// cancelled.
package engine
