package config

// GetServerAddr returns the address the HTTP server listens on.
func GetServerAddr() string {
	return ":" + GetEnvOrDefault("PORT", "8080")
}
