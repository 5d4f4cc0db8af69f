package ports

import "context"

// Secret is a retrieved secret value with version metadata.
type Secret struct {
	Value     string
	Version   string
	Metadata  map[string]string
	CreatedAt string
}

// SecretManager retrieves credentials backing gateway adapters (basic-auth
// creds, the webhook HMAC secret) from a pluggable backend: local/env, AWS
// Secrets Manager, or HashiCorp Vault.
type SecretManager interface {
	// GetSecret retrieves a secret by its path/name, e.g.
	// "subscriptions/gateways/{tag}". The Vault adapter prefixes the KV
	// mount path itself (plus "data/" for KV v2).
	GetSecret(ctx context.Context, path string) (*Secret, error)
}
