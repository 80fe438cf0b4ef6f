package domain

import "time"

// Installation records an organization's installation of the backend against
// a chat platform or tracker.
type Installation struct {
	ID             string            `json:"id"`
	OrganizationID string            `json:"organization_id"`
	Platform       string            `json:"platform"`
	Settings       map[string]string `json:"settings,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
}

// WorkflowRun records one routed request and its outcome, for auditing.
type WorkflowRun struct {
	ID             string     `json:"id"`
	OrganizationID string     `json:"organization_id"`
	ToolName       string     `json:"tool_name"`
	Status         CallStatus `json:"status"`
	DurationMs     int64      `json:"duration_ms"`
	StartedAt      time.Time  `json:"started_at"`
}

// ConnectorSource is a marketplace entry describing where a pluggable
// connector's manifest can be fetched from.
type ConnectorSource struct {
	ID       string         `json:"id"`
	Name     string         `json:"name"`
	Kind     string         `json:"kind"` // e.g. "mcp", "http"
	URL      string         `json:"url"`
	Manifest map[string]any `json:"manifest,omitempty"`
	Enabled  bool           `json:"enabled"`
}

// TokenRecord stores an OAuth credential for an installation. Values are
// opaque to the backend.
type TokenRecord struct {
	ID             string    `json:"id"`
	InstallationID string    `json:"installation_id"`
	Provider       string    `json:"provider"`
	AccessToken    string    `json:"access_token"`
	RefreshToken   string    `json:"refresh_token,omitempty"`
	ExpiresAt      time.Time `json:"expires_at,omitzero"`
}
