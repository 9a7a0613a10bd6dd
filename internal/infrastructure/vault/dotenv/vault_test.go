package dotenv_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unifiedui/docstore/internal/core/vault"
	"github.com/unifiedui/docstore/internal/infrastructure/vault/dotenv"
)

func writeSecrets(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "secrets.env")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestVault_GetSecretFromEnv(t *testing.T) {
	t.Setenv("DOCSTORE_TEST_SECRET", "env-value")

	v, err := dotenv.NewVault()
	require.NoError(t, err)

	value, err := v.GetSecret(context.Background(), "dotenv://DOCSTORE_TEST_SECRET")
	assert.NoError(t, err)
	assert.Equal(t, "env-value", value)
}

func TestVault_GetSecretFromFile(t *testing.T) {
	v, err := dotenv.NewVault(writeSecrets(t, "DB_PASS=file-value\n"))
	require.NoError(t, err)

	value, err := v.GetSecret(context.Background(), "dotenv://DB_PASS")
	assert.NoError(t, err)
	assert.Equal(t, "file-value", value)
	assert.Empty(t, os.Getenv("DB_PASS"), "file secrets are not exported")
}

func TestVault_EnvWinsOverFile(t *testing.T) {
	t.Setenv("DB_PASS_OVERRIDE", "env-value")
	v, err := dotenv.NewVault(writeSecrets(t, "DB_PASS_OVERRIDE=file-value\n"))
	require.NoError(t, err)

	value, err := v.GetSecret(context.Background(), "dotenv://DB_PASS_OVERRIDE")
	assert.NoError(t, err)
	assert.Equal(t, "env-value", value)
}

func TestVault_NotFound(t *testing.T) {
	v, err := dotenv.NewVault()
	require.NoError(t, err)

	value, err := v.GetSecret(context.Background(), "dotenv://non-existent")
	assert.Error(t, err)
	assert.Empty(t, value)
	assert.Contains(t, err.Error(), "secret not found")
}

func TestNewVault_MissingFile(t *testing.T) {
	_, err := dotenv.NewVault(filepath.Join(t.TempDir(), "missing.env"))

	assert.Error(t, err)
}

func TestResolve(t *testing.T) {
	t.Setenv("DOCSTORE_RESOLVE", "s3cret")
	v, err := dotenv.NewVault()
	require.NoError(t, err)
	ctx := context.Background()

	plain, err := vault.Resolve(ctx, v, vault.TypeDotEnv, "literal")
	require.NoError(t, err)
	assert.Equal(t, "literal", plain)

	secret, err := vault.Resolve(ctx, v, vault.TypeDotEnv, "dotenv://DOCSTORE_RESOLVE")
	require.NoError(t, err)
	assert.Equal(t, "s3cret", secret)

	_, err = vault.Resolve(ctx, nil, vault.TypeDotEnv, "dotenv://DOCSTORE_RESOLVE")
	assert.Error(t, err)

	_, err = vault.Resolve(ctx, v, vault.TypeDotEnv, "dotenv://MISSING_KEY_XYZ")
	assert.Error(t, err)
}
