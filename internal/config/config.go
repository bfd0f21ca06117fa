package config

const (
	// DefaultPort is the default HTTP server port.
	DefaultPort = "8080"

	// DefaultDatabaseURL is empty; must be provided via flag or environment.
	DefaultDatabaseURL = ""

	// DefaultAuthSecret is empty; the bearer-token signing secret must be
	// provided via flag or environment.
	DefaultAuthSecret = ""
)
