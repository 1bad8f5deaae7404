package types

import "strings"

// Coverage levels for package matches
const (
	CoverageHigh   = "high"
	CoverageMedium = "medium"
	CoverageLow    = "low"
)

// SmartSearchRequest is the /smart-search request body. PathwayID takes
// precedence over Query when both are set.
type SmartSearchRequest struct {
	Query         string `json:"query,omitempty"`
	PathwayID     ID     `json:"pathway_id,omitempty"`
	PatientAge    *int   `json:"patient_age,omitempty"`
	PatientGender string `json:"patient_gender,omitempty"`
}

// Body returns the request as sent on the wire: pathway_id wins over query,
// empty fields are dropped.
func (r SmartSearchRequest) Body() SmartSearchRequest {
	body := SmartSearchRequest{
		PatientAge:    r.PatientAge,
		PatientGender: strings.TrimSpace(r.PatientGender),
	}
	if !r.PathwayID.IsZero() {
		body.PathwayID = r.PathwayID
	} else if q := strings.TrimSpace(r.Query); q != "" {
		body.Query = q
	}
	return body
}

// SmartSearchResponse is the /smart-search payload
type SmartSearchResponse struct {
	Success          bool               `json:"success"`
	SuggestedPathway *PathwayRecord     `json:"suggested_pathway,omitempty"`
	Results          SmartSearchResults `json:"results"`
}

// SmartSearchResults groups packages by how well they cover the pathway
type SmartSearchResults struct {
	CompletePackages  []PackageMatch     `json:"complete_packages"`
	PartialPackages   []PackageMatch     `json:"partial_packages"`
	IndividualOptions *IndividualOptions `json:"individual_options,omitempty"`
}

// Empty reports whether the results carry nothing to show
func (r *SmartSearchResults) Empty() bool {
	return len(r.CompletePackages) == 0 && len(r.PartialPackages) == 0 && r.IndividualOptions == nil
}

// PackageMatch is a provider package scored against a pathway server-side
type PackageMatch struct {
	ProviderServiceID   ID            `json:"provider_service_id"`
	Name                string        `json:"name"`
	Provider            *ProviderRef  `json:"provider,omitempty"`
	Price               *Price        `json:"price,omitempty"`
	PricingData         []PricingTier `json:"pricing_data,omitempty"`
	CoverageScore       float64       `json:"coverage_score"`
	MatchedRequired     int           `json:"matched_required"`
	TotalRequired       int           `json:"total_required"`
	MatchedRecommended  int           `json:"matched_recommended"`
	MissingCanonicalIDs []ID          `json:"missing_canonical_ids,omitempty"`
}

// CoveragePercent returns the coverage score as a rounded percentage
func (m *PackageMatch) CoveragePercent() int {
	return int(m.CoverageScore*100 + 0.5)
}

// CoverageLevel buckets the coverage score: >= 90% high, >= 70% medium, else low
func (m *PackageMatch) CoverageLevel() string {
	pct := m.CoveragePercent()
	switch {
	case pct >= 90:
		return CoverageHigh
	case pct >= 70:
		return CoverageMedium
	default:
		return CoverageLow
	}
}

// AsService converts the match into a bookable package record
func (m *PackageMatch) AsService() ServiceRecord {
	rec := ServiceRecord{
		ID:          m.ProviderServiceID,
		Name:        m.Name,
		ServiceType: ServiceTypePackage,
		Provider:    m.Provider,
		PricingData: m.PricingData,
	}
	if len(m.PricingData) == 0 && m.Price != nil {
		price := *m.Price
		rec.DiscountedPrice = &price
	}
	return rec
}

// IndividualOptions prices the pathway as separately booked tests
type IndividualOptions struct {
	TotalPrice Price              `json:"total_price"`
	Services   []IndividualOption `json:"services"`
}

// IndividualOption maps one canonical service to the provider service offering it
type IndividualOption struct {
	CanonicalID      ID                `json:"canonical_id"`
	CanonicalService *CanonicalService `json:"canonical_service,omitempty"`
	ProviderService  *ServiceRecord    `json:"provider_service,omitempty"`
	Price            Price             `json:"price"`
}
