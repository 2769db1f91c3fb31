package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("DATABASE_HOST", "db.internal")
	t.Setenv("POSTGRES_DB", "talentbridge")
	t.Setenv("POSTGRES_USER", "talentbridge")
	t.Setenv("POSTGRES_PASSWORD", "secret")
	t.Setenv("MINIO_ACCESS_KEY_ID", "minio")
	t.Setenv("MINIO_SECRET_ACCESS_KEY", "miniosecret")
}

func TestLoad_DefaultsAndOverrides(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("API_PORT", "9090")
	t.Setenv("AUTH_ACCESS_TTL_MINUTES", "30")
	t.Setenv("API_ALLOWED_ORIGINS", "https://app.example.com, https://staging.example.com")

	cfg, err := Load()
	require.NoError(t, err)

	require.Equal(t, 9090, cfg.API.Port)
	require.Equal(t, "db.internal", cfg.Database.Host)
	require.Equal(t, 5432, cfg.Database.Port)
	require.Equal(t, "disable", cfg.Database.SSLMode)
	require.Equal(t, 30, cfg.Auth.AccessTTLMinutes)
	require.Equal(t, 168, cfg.Auth.RefreshTTLHours)
	require.Equal(t,
		[]string{"https://app.example.com", "https://staging.example.com"},
		cfg.API.Origins(),
	)
	require.Equal(t,
		[]string{"avatars", "company-logos", "resumes"},
		cfg.MinIO.Buckets(),
	)
}

func TestLoad_InvalidPortFails(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("API_PORT", "0")

	_, err := Load()
	require.Error(t, err)
	require.Contains(t, err.Error(), "api port")
}

func TestOrigins_EmptyMeansNone(t *testing.T) {
	cfg := APIConfig{AllowedOrigins: ""}
	require.Empty(t, cfg.Origins())
}

func TestDSN_IncludesAllFields(t *testing.T) {
	d := DatabaseConfig{
		Host:     "db",
		Port:     5432,
		Name:     "app",
		User:     "u",
		Password: "p",
		SSLMode:  "disable",
	}
	require.Equal(t, "host=db port=5432 user=u password=p dbname=app sslmode=disable", d.DSN())
}
