package instance

import (
	"os"

	"github.com/tinkerly/tinkerly-backend/pkg/env"
)

// GetID identifies this process in lock ownership and logs. It prefers
// TINKERLY_INSTANCE_ID, then the hostname.
func GetID() string {
	if id := env.Get("TINKERLY_INSTANCE_ID", ""); id != "" {
		return id
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return "worker-0"
}
