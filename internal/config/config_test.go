package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("ENV", "missing")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "missing", cfg.Env)
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "coursemarks", cfg.Database.DBName)
	assert.Equal(t, 30, cfg.Database.StatementTimeout)
	assert.Equal(t, "marks.events", cfg.NATS.Subject)
	assert.Empty(t, cfg.Events.Driver)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("ENV", "missing")
	t.Setenv("DB_HOST", "db.internal")
	t.Setenv("DB_PORT", "6543")
	t.Setenv("PORT", "9090")
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "collector:4317")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, "6543", cfg.Database.Port)
	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, "collector:4317", cfg.Telemetry.OTLPEndpoint)
}

func TestLoad_LocalFile(t *testing.T) {
	t.Setenv("ENV", "local")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "5439", cfg.Database.Port)
	assert.Contains(t, cfg.Server.CORSOrigins, "http://localhost:3000")
	assert.Equal(t, []string{"localhost:9092"}, cfg.Kafka.Brokers)
}
