package policy

// GetBuiltinPolicies returns all built-in policies.
func GetBuiltinPolicies() []Policy {
	return []Policy{
		engineTypesPolicy(),
		sensitivePropertiesPolicy(),
		danglingLinksPolicy(),
		rejectedRowsPolicy(),
	}
}

// engineTypesPolicy requires fully qualified engine types on every entity.
func engineTypesPolicy() Policy {
	return Policy{
		Name:        "engine-types",
		Description: "Services and processors must declare a fully qualified engine type",
		Severity:    SeverityError,
		Enabled:     true,
		Rego: `package nifictl.policies.types

import rego.v1

entities contains e if {
	some e in input.plan.services
}

entities contains e if {
	some e in input.plan.processors
}

deny contains violation if {
	some e in entities
	not regex.match("^[A-Za-z_][A-Za-z0-9_$]*(\\.[A-Za-z_][A-Za-z0-9_$]*)+$", e.engine_type)
	violation := {
		"message": sprintf("%s has engine type '%s', expected a fully qualified class name", [e.subject, e.engine_type]),
		"subject": e.subject,
	}
}
`,
	}
}

// sensitivePropertiesPolicy flags secrets written as literals.
func sensitivePropertiesPolicy() Policy {
	return Policy{
		Name:        "sensitive-properties",
		Description: "Sensitive properties should reference a variable or parameter instead of a literal",
		Severity:    SeverityWarning,
		Enabled:     true,
		Rego: `package nifictl.policies.sensitive

import rego.v1

entities contains e if {
	some e in input.plan.services
}

entities contains e if {
	some e in input.plan.processors
}

deny contains violation if {
	some e in entities
	some key, value in e.properties
	regex.match("(?i)(password|passphrase|secret|token)", key)
	value != ""
	not regex.match("^[#$]\\{.+\\}$", value)
	violation := {
		"message": sprintf("%s sets sensitive property '%s' as a literal", [e.subject, key]),
		"subject": e.subject,
	}
}
`,
	}
}

// danglingLinksPolicy flags links whose ends are not part of the plan.
func danglingLinksPolicy() Policy {
	return Policy{
		Name:        "dangling-links",
		Description: "Links should connect processors and channels of the same plan",
		Severity:    SeverityWarning,
		Enabled:     true,
		Rego: `package nifictl.policies.links

import rego.v1

subjects contains s if {
	some e in input.plan.processors
	s := e.subject
}

subjects contains s if {
	some c in input.plan.channels
	s := c.subject
}

deny contains violation if {
	some l in input.plan.links
	not l.source in subjects
	violation := {
		"message": sprintf("link %s -> %s starts outside the plan", [l.source, l.target]),
		"subject": l.source,
	}
}

deny contains violation if {
	some l in input.plan.links
	not l.target in subjects
	violation := {
		"message": sprintf("link %s -> %s ends outside the plan", [l.source, l.target]),
		"subject": l.target,
	}
}
`,
	}
}

// rejectedRowsPolicy reports rows skipped during derivation.
func rejectedRowsPolicy() Policy {
	return Policy{
		Name:        "rejected-rows",
		Description: "Every instance row should map to a plan entry",
		Severity:    SeverityWarning,
		Enabled:     true,
		Rego: `package nifictl.policies.rejected

import rego.v1

deny contains violation if {
	input.plan.rejected > 0
	violation := {
		"message": sprintf("%d rows were rejected during derivation", [input.plan.rejected]),
	}
}
`,
	}
}
