package config

import "context"

// SecretProvider resolves secret references named by _SECRET_REF variables.
type SecretProvider interface {
	// GetParametersBatch returns the values of the given references. Missing
	// references are omitted from the map rather than reported as errors.
	GetParametersBatch(ctx context.Context, keys []string) (map[string]string, error)
}
