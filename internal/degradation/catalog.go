package degradation

import (
	"fmt"
)

// Catalog is the static dependency map: every service the product relies on
// and every feature gated by those services. It is immutable after
// construction and safe for concurrent reads.
type Catalog struct {
	services     map[ServiceID]Service
	serviceOrder []ServiceID

	features     map[FeatureID]Feature
	featureOrder []FeatureID
}

// NewCatalog builds a catalog from static service and feature definitions.
// It rejects duplicate identifiers and features that require a service the
// catalog does not know.
func NewCatalog(services []Service, features []Feature) (*Catalog, error) {
	c := &Catalog{
		services: make(map[ServiceID]Service, len(services)),
		features: make(map[FeatureID]Feature, len(features)),
	}

	for _, svc := range services {
		if svc.ID == "" {
			return nil, fmt.Errorf("service with empty id")
		}
		if _, ok := c.services[svc.ID]; ok {
			return nil, fmt.Errorf("duplicate service %q", svc.ID)
		}
		c.services[svc.ID] = svc
		c.serviceOrder = append(c.serviceOrder, svc.ID)
	}

	for _, f := range features {
		if f.ID == "" {
			return nil, fmt.Errorf("feature with empty id")
		}
		if _, ok := c.features[f.ID]; ok {
			return nil, fmt.Errorf("duplicate feature %q", f.ID)
		}
		if len(f.Requires) == 0 {
			return nil, fmt.Errorf("feature %q requires no services", f.ID)
		}
		for _, dep := range f.Requires {
			if _, ok := c.services[dep]; !ok {
				return nil, fmt.Errorf("feature %q requires unknown service %q", f.ID, dep)
			}
		}
		c.features[f.ID] = f
		c.featureOrder = append(c.featureOrder, f.ID)
	}

	return c, nil
}

// DefaultCatalog returns the production catalog. The definitions are static
// and covered by tests; an invalid default is a programming mistake.
func DefaultCatalog() *Catalog {
	c, err := NewCatalog(DefaultServices(), DefaultFeatures())
	if err != nil {
		panic(err)
	}
	return c
}

// Service looks up a service definition.
func (c *Catalog) Service(id ServiceID) (Service, bool) {
	svc, ok := c.services[id]
	return svc, ok
}

// Feature looks up a feature definition.
func (c *Catalog) Feature(id FeatureID) (Feature, bool) {
	f, ok := c.features[id]
	return f, ok
}

// Services returns all service definitions in declaration order.
func (c *Catalog) Services() []Service {
	out := make([]Service, 0, len(c.serviceOrder))
	for _, id := range c.serviceOrder {
		out = append(out, c.services[id])
	}
	return out
}

// Features returns all feature definitions in declaration order.
func (c *Catalog) Features() []Feature {
	out := make([]Feature, 0, len(c.featureOrder))
	for _, id := range c.featureOrder {
		out = append(out, c.features[id])
	}
	return out
}

// FeaturesRequiring returns the ids of every feature that lists the service
// as a dependency, in declaration order.
func (c *Catalog) FeaturesRequiring(id ServiceID) []FeatureID {
	var out []FeatureID
	for _, fid := range c.featureOrder {
		f := c.features[fid]
		for _, dep := range f.Requires {
			if dep == id {
				out = append(out, fid)
				break
			}
		}
	}
	return out
}

// ServiceCount returns the number of configured services.
func (c *Catalog) ServiceCount() int {
	return len(c.services)
}

// DefaultServices returns the external dependencies of the production
// deployment.
func DefaultServices() []Service {
	return []Service{
		{
			ID:                  ServiceMercadoPago,
			Name:                "Mercado Pago",
			Description:         "Payment processing and checkout",
			Impact:              ImpactCritical,
			HasFallback:         true,
			FallbackDescription: "Payments can be registered manually and reconciled later",
		},
		{
			ID:                  ServiceMessaging,
			Name:                "WhatsApp Business API",
			Description:         "Customer and technician messaging",
			Impact:              ImpactHigh,
			HasFallback:         true,
			FallbackDescription: "Notifications fall back to SMS",
		},
		{
			ID:                  ServiceAI,
			Name:                "OpenAI",
			Description:         "Assisted responses, transcription and document extraction",
			Impact:              ImpactMedium,
			HasFallback:         true,
			FallbackDescription: "Agents respond manually",
		},
		{
			ID:                  ServiceAFIP,
			Name:                "AFIP",
			Description:         "Electronic invoice authorization",
			Impact:              ImpactHigh,
			HasFallback:         true,
			FallbackDescription: "Invoices queue for deferred CAE authorization",
		},
		{
			ID:          ServiceDatabase,
			Name:        "PostgreSQL",
			Description: "Primary datastore",
			Impact:      ImpactCritical,
		},
		{
			ID:                  ServiceCache,
			Name:                "Redis",
			Description:         "Session and query cache",
			Impact:              ImpactMedium,
			HasFallback:         true,
			FallbackDescription: "Reads go straight to the database",
		},
		{
			ID:                  ServiceStorage,
			Name:                "Object Storage",
			Description:         "Photos, signatures and generated documents",
			Impact:              ImpactMedium,
			HasFallback:         true,
			FallbackDescription: "Uploads are deferred until storage recovers",
		},
	}
}

// DefaultFeatures returns the feature dependency map of the production
// deployment. The cache is deliberately absent: its fallback keeps features
// usable, so cache trouble surfaces in the overall status only.
func DefaultFeatures() []Feature {
	return []Feature{
		{
			ID:                FeatureOnlinePayments,
			Name:              "Online payments",
			Description:       "Customers pay work orders through the checkout",
			Requires:          []ServiceID{ServiceMercadoPago},
			Severity:          SeverityError,
			AlternativeAction: "Register the payment manually and reconcile it once payments recover.",
		},
		{
			ID:          FeaturePaymentWebhooks,
			Name:        "Payment webhooks",
			Description: "Automatic confirmation of received payments",
			Requires:    []ServiceID{ServiceMercadoPago, ServiceDatabase},
			Severity:    SeverityWarning,
		},
		{
			ID:                FeatureWhatsAppMessaging,
			Name:              "WhatsApp messaging",
			Description:       "Outbound customer messages over WhatsApp",
			Requires:          []ServiceID{ServiceMessaging},
			Severity:          SeverityError,
			AlternativeAction: "Contact the customer by phone.",
		},
		{
			ID:          FeatureSMSNotifications,
			Name:        "SMS notifications",
			Description: "Fallback notification delivery over SMS",
			Requires:    []ServiceID{ServiceMessaging, ServiceDatabase},
			Severity:    SeverityWarning,
		},
		{
			ID:                FeatureAIResponses,
			Name:              "AI-assisted responses",
			Description:       "Suggested replies for incoming customer messages",
			Requires:          []ServiceID{ServiceAI},
			Severity:          SeverityInfo,
			AlternativeAction: "Write the reply yourself.",
		},
		{
			ID:          FeatureVoiceTranscription,
			Name:        "Voice transcription",
			Description: "Transcription of voice notes attached to work orders",
			Requires:    []ServiceID{ServiceAI, ServiceStorage},
			Severity:    SeverityInfo,
		},
		{
			ID:                FeatureDocumentExtraction,
			Name:              "Document extraction",
			Description:       "Automatic data capture from uploaded documents",
			Requires:          []ServiceID{ServiceAI, ServiceStorage},
			Severity:          SeverityWarning,
			AlternativeAction: "Enter the document data manually.",
		},
		{
			ID:          FeatureInvoiceGeneration,
			Name:        "Invoice generation",
			Description: "Drafting invoices for completed work orders",
			Requires:    []ServiceID{ServiceDatabase},
			Severity:    SeverityError,
		},
		{
			ID:                FeatureElectronicInvoicing,
			Name:              "Electronic invoicing",
			Description:       "CAE authorization of invoices with the tax authority",
			Requires:          []ServiceID{ServiceAFIP, ServiceDatabase},
			Severity:          SeverityError,
			AlternativeAction: "Invoices are queued and authorized automatically once AFIP recovers.",
		},
	}
}
