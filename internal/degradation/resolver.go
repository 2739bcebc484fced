package degradation

import (
	"fmt"
	"strings"
)

// ResolveFeatures derives the availability of every catalog feature from the
// current service states. A feature is available exactly when every service
// it requires reports healthy; degraded, unavailable and unknown all count
// against it. The function is pure: same inputs, same result.
func ResolveFeatures(catalog *Catalog, states map[ServiceID]ServiceState) map[FeatureID]FeatureState {
	features := catalog.Features()
	out := make(map[FeatureID]FeatureState, len(features))

	for _, f := range features {
		var affected []ServiceID
		for _, dep := range f.Requires {
			if states[dep].Status != StatusHealthy {
				affected = append(affected, dep)
			}
		}

		state := FeatureState{
			Available:        len(affected) == 0,
			AffectedServices: affected,
		}
		if !state.Available {
			names := serviceNames(catalog, affected)
			state.UserMessage = featureMessage(f, names)
			state.DegradedReason = strings.Join(names, ", ")
		}
		out[f.ID] = state
	}

	return out
}

// featureMessage builds the user-facing explanation for an unavailable
// feature from the affected service display names and the feature's
// alternative action.
func featureMessage(f Feature, names []string) string {
	verb := "is"
	if len(names) > 1 {
		verb = "are"
	}
	msg := fmt.Sprintf("%s %s currently unavailable.", strings.Join(names, ", "), verb)
	if f.AlternativeAction != "" {
		msg += " " + f.AlternativeAction
	}
	return msg
}

// serviceNames maps service ids to display names, falling back to the raw id
// for anything not in the catalog.
func serviceNames(catalog *Catalog, ids []ServiceID) []string {
	names := make([]string, 0, len(ids))
	for _, id := range ids {
		if svc, ok := catalog.Service(id); ok {
			names = append(names, svc.Name)
			continue
		}
		names = append(names, string(id))
	}
	return names
}
