package secrets

// KeySpec defines how to resolve a specific secret.
type KeySpec struct {
	// EnvVars lists environment variables to check, in priority order.
	EnvVars []string

	// Desc is a human-readable description for error messages and CLI display.
	Desc string
}

// knownKeys maps secret names to their resolution specs.
var knownKeys = map[string]KeySpec{
	GitHubToken: {
		EnvVars: []string{"GITHUB_TOKEN", "GH_TOKEN"},
		Desc:    "GitHub token for release catalog requests (raises the API rate limit)",
	},
}
