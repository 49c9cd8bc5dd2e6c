package api

// DatasetInfo describes one loaded dataset for the info endpoint.
type DatasetInfo struct {
	Kind    string `json:"kind"`
	URL     string `json:"url"`
	Records int    `json:"records"`
	Dropped int    `json:"dropped"`
}

// Registry holds the public site description: title, login usernames and
// the datasets behind the dashboard.
type Registry struct {
	title     string
	usernames []string
	datasets  []DatasetInfo
}

// NewRegistry creates a new registry.
func NewRegistry(title string, usernames []string) *Registry {
	return &Registry{
		title:     title,
		usernames: usernames,
	}
}

// Register records a loaded dataset.
func (r *Registry) Register(info DatasetInfo) {
	r.datasets = append(r.datasets, info)
}

// Title returns the configured site title.
func (r *Registry) Title() string {
	if r.title != "" {
		return r.title
	}
	return "Geospatial Enterprise Solution"
}

// Usernames returns the usernames offered by the login selector.
func (r *Registry) Usernames() []string {
	if r.usernames == nil {
		return []string{}
	}
	return r.usernames
}

// Datasets returns the loaded datasets in registration order.
func (r *Registry) Datasets() []DatasetInfo {
	if r.datasets == nil {
		return []DatasetInfo{}
	}
	return r.datasets
}
