package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unifiedui/docstore/internal/config"
	"github.com/unifiedui/docstore/internal/domain/models"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load()

	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:8080", cfg.Server.Address())
	assert.Equal(t, "mongodb", cfg.DocDB.Type)
	assert.Equal(t, "test", cfg.DocDB.Database)
	assert.Equal(t, "documents", cfg.DocDB.Collection)
	assert.Empty(t, cfg.DocDB.Hosts)
	assert.Nil(t, cfg.DocDB.Credentials())
	assert.Equal(t, 30*time.Second, cfg.DocDB.ConnectTimeout)
	assert.Equal(t, "none", cfg.Cache.Type)
	assert.Equal(t, "prometheus", cfg.Metrics.Type)
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("DOCDB_HOSTS", "db1:27017, db2 ,db3:27018")
	t.Setenv("DOCDB_REPLICA_SET", "rs0")
	t.Setenv("DOCDB_DATABASE", "app")
	t.Setenv("DOCDB_COLLECTION", "users")
	t.Setenv("DOCDB_USERNAME", "svc")
	t.Setenv("DOCDB_PASSWORD", "dotenv://DOCDB_SECRET")
	t.Setenv("DOCDB_INDICES", "email:unique;-created")
	t.Setenv("CACHE_TYPE", "redis")
	t.Setenv("CACHE_TTL_SECONDS", "60")

	cfg, err := config.Load()

	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, []string{"db1:27017", "db2", "db3:27018"}, cfg.DocDB.Hosts)
	assert.Equal(t, "rs0", cfg.DocDB.ReplicaSet)
	assert.Equal(t, "users", cfg.DocDB.Collection)
	assert.Len(t, cfg.DocDB.Indices, 2)
	assert.Equal(t, time.Minute, cfg.Cache.TTL)

	creds := cfg.DocDB.Credentials()
	require.NotNil(t, creds)
	assert.Equal(t, "svc", creds.Username)
	assert.Equal(t, "dotenv://DOCDB_SECRET", creds.Password)
}

func TestLoad_InvalidSettings(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{name: "indices", key: "DOCDB_INDICES", value: "email:sparse"},
		{name: "docdb type", key: "DOCDB_TYPE", value: "couchdb"},
		{name: "cache type", key: "CACHE_TYPE", value: "memcached"},
		{name: "metrics type", key: "METRICS_TYPE", value: "statsd"},
		{name: "vault type", key: "VAULT_TYPE", value: "azure"},
		{name: "password without user", key: "DOCDB_PASSWORD", value: "x"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)

			_, err := config.Load()

			assert.Error(t, err)
		})
	}
}

func TestParseIndices(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    []models.IndexSpec
		wantErr bool
	}{
		{name: "empty", input: "", want: nil},
		{
			name:  "unique single key",
			input: "email:unique",
			want: []models.IndexSpec{
				{Keys: models.Sort{{Field: "email", Order: models.SortAsc}}, Unique: true},
			},
		},
		{
			name:  "compound with name",
			input: " lastName + -firstName : name=by_name ; -created ",
			want: []models.IndexSpec{
				{
					Keys: models.Sort{
						{Field: "lastName", Order: models.SortAsc},
						{Field: "firstName", Order: models.SortDesc},
					},
					Name: "by_name",
				},
				{Keys: models.Sort{{Field: "created", Order: models.SortDesc}}},
			},
		},
		{name: "unique and name", input: "sku:unique,name=sku_u", want: []models.IndexSpec{
			{Keys: models.Sort{{Field: "sku", Order: models.SortAsc}}, Unique: true, Name: "sku_u"},
		}},
		{name: "empty key", input: "a+", wantErr: true},
		{name: "bare dash", input: "-", wantErr: true},
		{name: "unknown option", input: "a:sparse", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := config.ParseIndices(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
