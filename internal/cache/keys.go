package cache

// Session store keys for the reference datasets
const (
	KeyPathways          = "hh_pathways"
	KeyCanonicalServices = "hh_canonical_services"
	KeyPopularServices   = "hh_popular_services"
	KeyProviders         = "hh_providers"
	KeyTimestamp         = "hh_cache_timestamp"
)

// DatasetKeys lists the reference datasets in a fixed order
var DatasetKeys = []string{
	KeyPathways,
	KeyCanonicalServices,
	KeyPopularServices,
	KeyProviders,
}

// datasetNames maps short dataset names, as used by the tool and HTTP
// surfaces, to their store keys
var datasetNames = map[string]string{
	"pathways":           KeyPathways,
	"canonical_services": KeyCanonicalServices,
	"popular_services":   KeyPopularServices,
	"providers":          KeyProviders,
}

// DatasetKey resolves a short dataset name ("pathways", "providers", ...)
// or a full store key to the store key
func DatasetKey(name string) (string, bool) {
	if key, ok := datasetNames[name]; ok {
		return key, true
	}
	for _, key := range DatasetKeys {
		if key == name {
			return key, true
		}
	}
	return "", false
}

// DatasetNames returns the short dataset names in DatasetKeys order
func DatasetNames() []string {
	return []string{"pathways", "canonical_services", "popular_services", "providers"}
}
