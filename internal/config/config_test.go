package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("POSTGRES_DSN", "")
	t.Setenv("REPORT_IT_DEPARTMENT", "")
	t.Setenv("UPLOAD_ALLOWED_TYPES", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:8080", cfg.App.Addr())
	assert.Equal(t, 30*time.Second, cfg.App.RequestTimeout())
	assert.Empty(t, cfg.Postgres.DSN)
	assert.Equal(t, "IT", cfg.Reports.ITDepartment)
	assert.Equal(t, "Monitoring", cfg.Reports.MonitoringDepartment)
	assert.Equal(t, 5, cfg.Tickets.IDMaxRetries)
	assert.Equal(t, int64(3*1024*1024), cfg.Storage.MaxUploadBytes)
	assert.Contains(t, cfg.Storage.AllowedTypes, "image/png")
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("APP_PORT", "9090")
	t.Setenv("REPORT_OPERATIONS_DEPARTMENT", "Operation Wing")
	t.Setenv("UPLOAD_ALLOWED_TYPES", "image/png, image/gif ,")
	t.Setenv("TICKET_ID_MAX_RETRIES", "not-a-number")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.App.Port)
	assert.Equal(t, "Operation Wing", cfg.Reports.OperationsDepartment)
	assert.Equal(t, []string{"image/png", "image/gif"}, cfg.Storage.AllowedTypes)
	assert.Equal(t, 5, cfg.Tickets.IDMaxRetries)
}

func TestLoad_InvalidRedisDB(t *testing.T) {
	t.Setenv("REDIS_DB", "x")

	_, err := Load()
	assert.Error(t, err)
}

func TestExportConfig_Location(t *testing.T) {
	assert.Equal(t, time.UTC, ExportConfig{Timezone: "Not/AZone"}.Location())
	assert.Equal(t, "UTC", ExportConfig{Timezone: "UTC"}.Location().String())
}
