package types

// ServiceType classifies a provider service
type ServiceType string

const (
	ServiceTypePackage        ServiceType = "package"
	ServiceTypeAtomic         ServiceType = "atomic"
	ServiceTypeIndividualTest ServiceType = "individual_test"
	ServiceTypeCustomBundle   ServiceType = "custom_bundle"
)

// Valid reports whether t is one of the known service types
func (t ServiceType) Valid() bool {
	switch t {
	case ServiceTypePackage, ServiceTypeAtomic, ServiceTypeIndividualTest, ServiceTypeCustomBundle:
		return true
	}
	return false
}

// ServiceRecord is a bookable service (package or single test) as returned
// by the search endpoints. It is read-only to this module.
type ServiceRecord struct {
	// Identification
	ID              ID          `json:"id"`
	Name            string      `json:"provider_service_name_vn"`
	Description     string      `json:"short_description,omitempty"`
	ServiceType     ServiceType `json:"service_type"`
	ParentServiceID *ID         `json:"parent_service_id"` // Non-nil marks a package component

	// Pricing: singular XOR tiered
	DiscountedPrice *Price        `json:"discounted_price,omitempty"`
	PricingData     []PricingTier `json:"pricing_data,omitempty"`

	Provider *ProviderRef `json:"provider,omitempty"`
}

// PricingTier is one price level of a tiered service
type PricingTier struct {
	TierID    ID       `json:"tier_id"`
	Label     string   `json:"label"`
	Price     Price    `json:"price"`
	IsDefault bool     `json:"is_default"`
	Features  []string `json:"features,omitempty"`
}

// ProviderRef is the short provider reference embedded in service records
type ProviderRef struct {
	ID        ID     `json:"id"`
	BrandName string `json:"brand_name_vn"`
}

// IsPackage reports whether the record is a package
func (s *ServiceRecord) IsPackage() bool {
	return s.ServiceType == ServiceTypePackage
}

// IsIndividualTest reports whether the record is a single test
func (s *ServiceRecord) IsIndividualTest() bool {
	return s.ServiceType == ServiceTypeAtomic || s.ServiceType == ServiceTypeIndividualTest
}

// IsComponent reports whether the record is a sub-component of a package
func (s *ServiceRecord) IsComponent() bool {
	return s.ParentServiceID != nil && !s.ParentServiceID.IsZero()
}

// IsTiered reports whether the record carries tiered pricing
func (s *ServiceRecord) IsTiered() bool {
	return len(s.PricingData) > 0
}

// DefaultTier returns the tier flagged is_default, falling back to the first
// tier. Returns false for untiered records.
func (s *ServiceRecord) DefaultTier() (PricingTier, bool) {
	if len(s.PricingData) == 0 {
		return PricingTier{}, false
	}
	for _, tier := range s.PricingData {
		if tier.IsDefault {
			return tier, true
		}
	}
	return s.PricingData[0], true
}

// EffectivePrice returns the singular price, or the default tier's price
func (s *ServiceRecord) EffectivePrice() (Price, bool) {
	if s.DiscountedPrice != nil {
		return *s.DiscountedPrice, true
	}
	if tier, ok := s.DefaultTier(); ok {
		return tier.Price, true
	}
	return 0, false
}

// Validate checks identity, type and the singular-XOR-tiered price invariant
func (s *ServiceRecord) Validate() error {
	if s.ID.IsZero() {
		return ErrMissingID
	}
	if s.Name == "" {
		return ErrMissingName
	}
	if !s.ServiceType.Valid() {
		return ErrUnknownType
	}

	hasSingle := s.DiscountedPrice != nil
	if hasSingle && s.IsTiered() {
		return ErrAmbiguousPrice
	}
	if !hasSingle && !s.IsTiered() {
		return ErrMissingPrice
	}

	return nil
}

// ScoredRecord is a ServiceRecord with its relevance for one search.
// Computed fresh per search; never persisted.
type ScoredRecord struct {
	ServiceRecord
	RelevanceScore int `json:"relevanceScore"`
	Rank           int `json:"rank"` // Position in result set (1-based)
}

// Validate checks the scoring fields
func (r *ScoredRecord) Validate() error {
	if r.Rank < 1 {
		return ErrInvalidRank
	}
	if r.RelevanceScore < 0 {
		return ErrInvalidScore
	}
	return nil
}
