package env

import (
	"os"
	"strings"
)

// Get reads key, treating blank values as unset.
func Get(key, fallback string) string {
	if val := strings.TrimSpace(os.Getenv(key)); val != "" {
		return val
	}
	return fallback
}

// InstanceID names this process in lock values: GROCERYMART_INSTANCE_ID,
// else the hostname, else "local".
func InstanceID() string {
	if id := Get("GROCERYMART_INSTANCE_ID", ""); id != "" {
		return id
	}
	if host, err := os.Hostname(); err == nil && strings.TrimSpace(host) != "" {
		return host
	}
	return "local"
}
