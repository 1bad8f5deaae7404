package types

// Branch is a provider location where a service can be booked
type Branch struct {
	ID       ID     `json:"id"`
	Name     string `json:"branch_name_vn"`
	Address  string `json:"address"`
	District string `json:"district"`
	City     string `json:"city"`
	Phone    string `json:"phone,omitempty"`
}

// ServiceDetail is a single service with its package components. Components
// is empty for single tests.
type ServiceDetail struct {
	ServiceRecord
	Components []ServiceRecord `json:"components"`
}
