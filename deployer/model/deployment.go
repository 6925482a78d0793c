package model

// DeploymentResult holds the addressable URLs of a published round.
// Immutable once constructed.
type DeploymentResult struct {
	RepoURL   string `json:"repo_url"`
	CommitSHA string `json:"commit_sha"`
	PagesURL  string `json:"pages_url"`
}

// NotificationPayload is posted verbatim to the evaluation callback.
// It echoes the identifying fields of the request plus the deployment result.
type NotificationPayload struct {
	Email     string `json:"email"`
	Task      string `json:"task"`
	Round     int    `json:"round"`
	Nonce     string `json:"nonce"`
	RepoURL   string `json:"repo_url"`
	CommitSHA string `json:"commit_sha"`
	PagesURL  string `json:"pages_url"`
}
