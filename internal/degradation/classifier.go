package degradation

import (
	"fmt"
)

// partialOutageThreshold is the number of concurrently unavailable services
// that escalates the system to a partial outage.
const partialOutageThreshold = 2

// System status messages. The degraded message is a template taking the
// count of currently unavailable features.
const (
	MessageOperational    = "All systems operational"
	MessagePartialOutage  = "Multiple services are experiencing issues"
	MessageMajorOutage    = "A critical service is unavailable and core functionality is affected"
	MessageDegradedFormat = "Some features are limited: %d feature(s) currently unavailable"
)

// Classify derives the system-wide status from the current service states.
// Rules are checked in order, first match wins:
//
//  1. any critical service unavailable        -> major_outage
//  2. two or more services unavailable        -> partial_outage
//  3. any service unavailable or degraded     -> degraded
//  4. otherwise                               -> operational
//
// Unknown states do not trip rules 1-3 on their own; they affect feature
// availability instead. The function is pure: classification depends only on
// each service's status and impact level.
func Classify(catalog *Catalog, states map[ServiceID]ServiceState) SystemStatus {
	var (
		unavailable  int
		criticalDown bool
		anyDegraded  bool
	)

	for id, state := range states {
		switch state.Status {
		case StatusUnavailable:
			unavailable++
			anyDegraded = true
			if svc, ok := catalog.Service(id); ok && svc.Impact == ImpactCritical {
				criticalDown = true
			}
		case StatusDegraded:
			anyDegraded = true
		}
	}

	switch {
	case criticalDown:
		return SystemMajorOutage
	case unavailable >= partialOutageThreshold:
		return SystemPartialOutage
	case anyDegraded:
		return SystemDegraded
	default:
		return SystemOperational
	}
}

// StatusMessage returns the human summary accompanying a classification.
func StatusMessage(status SystemStatus, unavailableFeatures int) string {
	switch status {
	case SystemMajorOutage:
		return MessageMajorOutage
	case SystemPartialOutage:
		return MessagePartialOutage
	case SystemDegraded:
		return fmt.Sprintf(MessageDegradedFormat, unavailableFeatures)
	default:
		return MessageOperational
	}
}
