package secrets

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ledgerflow/subscriptions/internal/domain/ports"
	"go.uber.org/zap"
)

// localSecretManager implements ports.SecretManager over the local
// filesystem. Development only — use AWS Secrets Manager or Vault in
// production.
type localSecretManager struct {
	basePath string
	logger   *zap.Logger
}

func NewLocalSecretManager(basePath string, logger *zap.Logger) ports.SecretManager {
	return &localSecretManager{basePath: basePath, logger: logger}
}

func (m *localSecretManager) GetSecret(ctx context.Context, secretPath string) (*ports.Secret, error) {
	filePath := filepath.Join(m.basePath, secretPath)

	m.logger.Debug("reading secret from filesystem", zap.String("path", secretPath))

	data, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("secret not found: %s", secretPath)
		}
		return nil, fmt.Errorf("read secret: %w", err)
	}

	var secretData struct {
		Value     string            `json:"value"`
		Tags      map[string]string `json:"tags"`
		CreatedAt string            `json:"created_at"`
	}
	if err := json.Unmarshal(data, &secretData); err == nil && secretData.Value != "" {
		return &ports.Secret{
			Value:     secretData.Value,
			Version:   "v1",
			Metadata:  secretData.Tags,
			CreatedAt: secretData.CreatedAt,
		}, nil
	}

	return &ports.Secret{Value: string(data), Version: "v1"}, nil
}

// PutSecret is a local-dev convenience for seeding the filesystem store;
// it is not part of ports.SecretManager.
func (m *localSecretManager) PutSecret(ctx context.Context, secretPath, secretValue string, tags map[string]string) error {
	filePath := filepath.Join(m.basePath, secretPath)

	m.logger.Info("storing secret to filesystem", zap.String("path", secretPath))

	if err := os.MkdirAll(filepath.Dir(filePath), 0700); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}

	data, err := json.MarshalIndent(map[string]any{
		"value":      secretValue,
		"tags":       tags,
		"created_at": time.Now().UTC(),
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal secret: %w", err)
	}

	if err := os.WriteFile(filePath, data, 0600); err != nil {
		return fmt.Errorf("write secret: %w", err)
	}
	return nil
}
