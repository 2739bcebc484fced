package degradation_test

import (
	"strings"
	"testing"

	"github.com/servifield/servifield/internal/degradation"
)

func TestResolveFeatures_AllHealthy(t *testing.T) {
	catalog := degradation.DefaultCatalog()

	features := degradation.ResolveFeatures(catalog, allHealthy(catalog))
	if len(features) != len(catalog.Features()) {
		t.Fatalf("expected %d feature states, got %d", len(catalog.Features()), len(features))
	}
	for id, state := range features {
		if !state.Available {
			t.Errorf("%s: expected available", id)
		}
		if len(state.AffectedServices) != 0 {
			t.Errorf("%s: expected no affected services, got %v", id, state.AffectedServices)
		}
		if state.UserMessage != "" {
			t.Errorf("%s: expected empty user message, got %q", id, state.UserMessage)
		}
	}
}

func TestResolveFeatures_UnavailableDependency(t *testing.T) {
	catalog := degradation.DefaultCatalog()

	states := withStatus(allHealthy(catalog), degradation.ServiceMessaging, degradation.StatusUnavailable)
	features := degradation.ResolveFeatures(catalog, states)

	wa := features[degradation.FeatureWhatsAppMessaging]
	if wa.Available {
		t.Fatal("whatsapp_messaging should be unavailable when messaging is down")
	}
	if len(wa.AffectedServices) != 1 || wa.AffectedServices[0] != degradation.ServiceMessaging {
		t.Errorf("affected services = %v", wa.AffectedServices)
	}
	if !strings.Contains(wa.UserMessage, "currently unavailable") {
		t.Errorf("user message = %q", wa.UserMessage)
	}

	// Features that do not depend on messaging are untouched.
	if !features[degradation.FeatureInvoiceGeneration].Available {
		t.Error("invoice_generation should stay available")
	}
	if !features[degradation.FeatureOnlinePayments].Available {
		t.Error("online_payments should stay available")
	}
}

func TestResolveFeatures_DegradedCountsAsUnhealthy(t *testing.T) {
	catalog := degradation.DefaultCatalog()

	states := withStatus(allHealthy(catalog), degradation.ServiceAI, degradation.StatusDegraded)
	features := degradation.ResolveFeatures(catalog, states)

	if features[degradation.FeatureAIResponses].Available {
		t.Error("ai_responses should be unavailable while ai is degraded")
	}
}

func TestResolveFeatures_UnknownCountsAsUnhealthy(t *testing.T) {
	catalog := degradation.DefaultCatalog()

	states := withStatus(allHealthy(catalog), degradation.ServiceAFIP, degradation.StatusUnknown)
	features := degradation.ResolveFeatures(catalog, states)

	if features[degradation.FeatureElectronicInvoicing].Available {
		t.Error("electronic_invoicing should be unavailable while afip is unknown")
	}
}

func TestResolveFeatures_AvailableMatchesAffectedServices(t *testing.T) {
	catalog := degradation.DefaultCatalog()

	states := allHealthy(catalog)
	withStatus(states, degradation.ServiceDatabase, degradation.StatusUnavailable)
	withStatus(states, degradation.ServiceAI, degradation.StatusDegraded)

	for id, state := range degradation.ResolveFeatures(catalog, states) {
		if state.Available != (len(state.AffectedServices) == 0) {
			t.Errorf("%s: available=%v with affected=%v", id, state.Available, state.AffectedServices)
		}
	}
}

func TestResolveFeatures_MultipleAffectedServices(t *testing.T) {
	catalog := degradation.DefaultCatalog()

	states := allHealthy(catalog)
	withStatus(states, degradation.ServiceAFIP, degradation.StatusUnavailable)
	withStatus(states, degradation.ServiceDatabase, degradation.StatusUnavailable)

	ei := degradation.ResolveFeatures(catalog, states)[degradation.FeatureElectronicInvoicing]
	if ei.Available {
		t.Fatal("electronic_invoicing should be unavailable")
	}
	if len(ei.AffectedServices) != 2 {
		t.Fatalf("expected both dependencies affected, got %v", ei.AffectedServices)
	}
	if !strings.Contains(ei.UserMessage, "are currently unavailable") {
		t.Errorf("expected plural message, got %q", ei.UserMessage)
	}
	if !strings.Contains(ei.DegradedReason, ", ") {
		t.Errorf("expected joined reason, got %q", ei.DegradedReason)
	}
}

func TestResolveFeatures_MessageIncludesAlternative(t *testing.T) {
	catalog := degradation.DefaultCatalog()

	states := withStatus(allHealthy(catalog), degradation.ServiceMercadoPago, degradation.StatusUnavailable)
	op := degradation.ResolveFeatures(catalog, states)[degradation.FeatureOnlinePayments]

	feature, ok := catalog.Feature(degradation.FeatureOnlinePayments)
	if !ok {
		t.Fatal("online_payments missing from catalog")
	}
	if feature.AlternativeAction == "" {
		t.Fatal("fixture expects online_payments to carry an alternative action")
	}
	if !strings.Contains(op.UserMessage, feature.AlternativeAction) {
		t.Errorf("message %q should include alternative %q", op.UserMessage, feature.AlternativeAction)
	}
}

func TestResolveFeatures_OnlyDependentsFlip(t *testing.T) {
	catalog := degradation.DefaultCatalog()

	baseline := degradation.ResolveFeatures(catalog, allHealthy(catalog))
	states := withStatus(allHealthy(catalog), degradation.ServiceMessaging, degradation.StatusUnavailable)
	after := degradation.ResolveFeatures(catalog, states)

	dependents := make(map[degradation.FeatureID]bool)
	for _, fid := range catalog.FeaturesRequiring(degradation.ServiceMessaging) {
		dependents[fid] = true
	}
	for id := range baseline {
		if dependents[id] {
			if after[id].Available {
				t.Errorf("%s depends on messaging and should have flipped", id)
			}
		} else if baseline[id].Available != after[id].Available {
			t.Errorf("%s does not depend on messaging but changed availability", id)
		}
	}
}
