package platform

import "sort"

// processTypeLabels maps the platform's process-type tags to friendly labels.
// This is static configuration, not logic; unknown tags fall through verbatim.
var processTypeLabels = map[string]string{
	"AutoLaunchedFlow": "Autolaunched Flow",
	"Flow":             "Screen Flow",
	"CustomEvent":      "Record-Triggered / Platform Event",
	"Workflow":         "Workflow",
	"InvocableProcess": "Invocable Process",
	"LoginFlow":        "Login Flow",
	"RoutingFlow":      "Routing Flow",
	"Appointments":     "Appointments",
	"SurveyEnrich":     "Survey Enrich",
}

// ProcessTypeLabel returns the friendly label for a process-type tag.
// Unrecognized tags are returned as-is so newly introduced platform types
// still render something sensible.
func ProcessTypeLabel(processType string) string {
	if label, ok := processTypeLabels[processType]; ok {
		return label
	}
	return processType
}

// KnownProcessTypes returns the tags that have friendly labels, sorted,
// for building filter dropdowns.
func KnownProcessTypes() []string {
	types := make([]string, 0, len(processTypeLabels))
	for t := range processTypeLabels {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}
