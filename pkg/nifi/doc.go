// Package nifi is a client for the Apache NiFi REST API.
//
// Client implements engine.ControlPlane: processor and controller service
// lifecycle, template upload and instantiation, port discovery, group
// variables, group scheduling and connections. It also exposes the read-only
// calls the CLI uses for inspection (About, ProcessorTypes, ServiceTypes,
// GroupFlow).
//
// Every mutation of an existing object sends the revision held by the
// engine.RemoteObject passed in. Replies are classified into engine errors:
//
//	409              conflict    CONFLICT
//	404              permanent   NOT_FOUND
//	401, 403         permanent   PERMISSION_DENIED
//	429              throttled   RATE_LIMITED
//	408, 504         transient   TIMEOUT
//	5xx              transient   INTERNAL_ERROR
//	other 4xx        permanent   VALIDATION_ERROR
//
// Each request is traced as a client span and counted in the remote call
// metrics when a tracer and metrics are configured.
package nifi
