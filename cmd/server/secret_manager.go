package main

import (
	"context"
	"os"

	"github.com/ledgerflow/subscriptions/internal/adapters/secrets"
	"github.com/ledgerflow/subscriptions/internal/domain/ports"
	"go.uber.org/zap"
)

// initSecretManager initializes the secret backend that supplies gateway
// credentials (basic-auth creds, webhook HMAC secret), chosen by the
// SECRET_MANAGER environment variable. Grounded on the teacher's
// cmd/server/secret_manager.go switch, trimmed to the backends this
// project actually wires: GCP and the mock backend from the teacher's
// EPX/ACH surface have no equivalent here and were dropped.
//
// Environment Variables:
//   - SECRET_MANAGER: "aws", "vault", or "local" (default: local)
//   - AWS_REGION: AWS region (required when SECRET_MANAGER=aws)
//   - AWS_PROFILE: AWS profile name (optional, for local development)
//   - AWS_SECRETS_ENDPOINT: custom endpoint, e.g. LocalStack (optional)
//   - VAULT_ADDR: Vault server address (required when SECRET_MANAGER=vault)
//   - VAULT_AUTH_METHOD: "token", "approle", or "kubernetes" (default: token;
//     the vault adapter's kubernetes authentication always fails)
//   - VAULT_TOKEN / VAULT_ROLE_ID+VAULT_SECRET_ID / VAULT_K8S_ROLE: per auth method
//   - LOCAL_SECRETS_BASE_PATH: base directory for file-based secrets (default: ./secrets)
func initSecretManager(ctx context.Context, logger *zap.Logger) ports.SecretManager {
	secretManagerType := getEnv("SECRET_MANAGER", "local")

	switch secretManagerType {
	case "aws":
		return initAWSSecretsManager(ctx, logger)
	case "vault":
		return initVaultAdapter(ctx, logger)
	case "local":
		return initLocalSecretManager(logger)
	default:
		logger.Warn("unknown SECRET_MANAGER type, falling back to local",
			zap.String("secret_manager", secretManagerType),
		)
		return initLocalSecretManager(logger)
	}
}

func initAWSSecretsManager(ctx context.Context, logger *zap.Logger) ports.SecretManager {
	region := os.Getenv("AWS_REGION")
	if region == "" {
		logger.Fatal("AWS_REGION is required when SECRET_MANAGER=aws")
	}

	cfg := secrets.DefaultAWSSecretsManagerConfig(region)
	if profile := os.Getenv("AWS_PROFILE"); profile != "" {
		cfg.Profile = profile
	}
	if endpoint := os.Getenv("AWS_SECRETS_ENDPOINT"); endpoint != "" {
		cfg.Endpoint = endpoint
	}

	sm, err := secrets.NewAWSSecretsManagerAdapter(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("failed to initialize AWS Secrets Manager", zap.Error(err), zap.String("region", region))
	}
	logger.Info("AWS Secrets Manager initialized", zap.String("region", region))
	return sm
}

func initVaultAdapter(ctx context.Context, logger *zap.Logger) ports.SecretManager {
	addr := os.Getenv("VAULT_ADDR")
	if addr == "" {
		logger.Fatal("VAULT_ADDR is required when SECRET_MANAGER=vault")
	}

	cfg := secrets.DefaultVaultConfig(addr)
	cfg.AuthMethod = getEnv("VAULT_AUTH_METHOD", "token")

	switch cfg.AuthMethod {
	case "token":
		token := os.Getenv("VAULT_TOKEN")
		if token == "" {
			logger.Fatal("VAULT_TOKEN is required for token auth")
		}
		cfg.Token = token
	case "approle":
		roleID := os.Getenv("VAULT_ROLE_ID")
		secretID := os.Getenv("VAULT_SECRET_ID")
		if roleID == "" || secretID == "" {
			logger.Fatal("VAULT_ROLE_ID and VAULT_SECRET_ID are required for approle auth")
		}
		cfg.RoleID = roleID
		cfg.SecretID = secretID
	case "kubernetes":
		role := os.Getenv("VAULT_K8S_ROLE")
		if role == "" {
			logger.Fatal("VAULT_K8S_ROLE is required for kubernetes auth")
		}
		cfg.K8sRole = role
		cfg.K8sTokenPath = getEnv("VAULT_K8S_TOKEN_PATH", "/var/run/secrets/kubernetes.io/serviceaccount/token")
	}

	if namespace := os.Getenv("VAULT_NAMESPACE"); namespace != "" {
		cfg.Namespace = namespace
	}
	if mountPath := os.Getenv("VAULT_MOUNT_PATH"); mountPath != "" {
		cfg.MountPath = mountPath
	}
	cfg.KVVersion = getEnv("VAULT_KV_VERSION", "v2")

	sm, err := secrets.NewVaultAdapter(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("failed to initialize Vault adapter", zap.Error(err), zap.String("vault_addr", addr))
	}
	logger.Info("Vault adapter initialized", zap.String("vault_addr", addr), zap.String("auth_method", cfg.AuthMethod))
	return sm
}

func initLocalSecretManager(logger *zap.Logger) ports.SecretManager {
	basePath := getEnv("LOCAL_SECRETS_BASE_PATH", "./secrets")
	logger.Warn("using local file-based secret manager, not for production use",
		zap.String("base_path", basePath),
	)
	return secrets.NewLocalSecretManager(basePath, logger)
}
