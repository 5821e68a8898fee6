package models

// Browser is one entry of the farm's capability catalog
type Browser struct {
	PlatformName string   `json:"platformName"`
	Name         string   `json:"name"`
	Version      string   `json:"version"`
	Image        string   `json:"image"`
	Type         string   `json:"type"`
	Resolutions  []string `json:"resolutions"`
}
