package metrics

import "go.opentelemetry.io/otel/attribute"

func policyAttr(policy string) attribute.KeyValue {
	return attribute.String("overflow_policy", policy)
}

func severityAttr(severity string) attribute.KeyValue {
	return attribute.String("severity", severity)
}
