// Package defaults provides default values for the bone CLI.
package defaults

import "time"

const (
	// ServerName is the name reported to MCP clients.
	ServerName = "bone"

	// GenerateTimeout bounds a single CLI generation, provider call included.
	GenerateTimeout = 2 * time.Minute

	// TokenTTL is the lifetime of tokens issued by `bone token`.
	TokenTTL = 24 * time.Hour
)
