package pipeline

import (
	"fmt"
)

const (
	// FailGlobal aborts the whole run on the first failure: all transformer chains run
	// before any consumer, so a transformer failure on one label prevents every consumer from running.
	FailGlobal FailurePolicy = "global"

	// FailPerLabel isolates label streams: each label runs its transformers then its consumers,
	// a failure stops only that label and the run reports every failed label at the end.
	// Producer failures still abort the run.
	FailPerLabel FailurePolicy = "label"
)

// FailurePolicy controls how far a plugin failure propagates.
type FailurePolicy string

// ParseFailurePolicy returns the policy named by s. An empty string selects FailGlobal.
func ParseFailurePolicy(s string) (FailurePolicy, error) {
	switch FailurePolicy(s) {
	case "", FailGlobal:
		return FailGlobal, nil
	case FailPerLabel:
		return FailPerLabel, nil
	default:
		return "", fmt.Errorf("unknown failure policy %q", s)
	}
}
