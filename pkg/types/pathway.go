package types

// DefaultPathwayCategory groups pathways that carry no category tag
const DefaultPathwayCategory = "Khác"

// PathwayRecord is a clinical pathway: a named bundle of required and
// recommended canonical services for a health scenario.
type PathwayRecord struct {
	ID                  ID                 `json:"id"`
	Code                string             `json:"code,omitempty"`
	Name                string             `json:"name_vn"`
	Category            string             `json:"category,omitempty"`
	IsCommon            bool               `json:"is_common"`
	RequiredServices    []PathwayComponent `json:"required_services,omitempty"`
	RecommendedServices []PathwayComponent `json:"recommended_services,omitempty"`
}

// PathwayComponent references a canonical service inside a pathway
type PathwayComponent struct {
	ID   ID     `json:"id"`
	Name string `json:"name_vn"`
	Code string `json:"code,omitempty"`
}

// CategoryOrDefault returns the category, or DefaultPathwayCategory when unset
func (p *PathwayRecord) CategoryOrDefault() string {
	if p.Category == "" {
		return DefaultPathwayCategory
	}
	return p.Category
}

// GroupPathways groups pathways by category, preserving input order within a group
func GroupPathways(pathways []PathwayRecord) map[string][]PathwayRecord {
	groups := make(map[string][]PathwayRecord)
	for _, p := range pathways {
		category := p.CategoryOrDefault()
		groups[category] = append(groups[category], p)
	}
	return groups
}

// CanonicalService is a provider-agnostic reference test used to match
// equivalent services across providers
type CanonicalService struct {
	ID       ID     `json:"id"`
	Code     string `json:"code,omitempty"`
	Name     string `json:"name_vn"`
	NameEN   string `json:"name_en,omitempty"`
	Category string `json:"category,omitempty"`
}

// Provider is a healthcare provider brand
type Provider struct {
	ID          ID     `json:"id"`
	BrandName   string `json:"brand_name_vn"`
	LogoURL     string `json:"logo_url,omitempty"`
	BranchCount int    `json:"branch_count,omitempty"`
}
