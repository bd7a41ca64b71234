package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig_Load_Defaults(t *testing.T) {
	cfg, zoneList, err := Load()
	require.NoError(t, err)
	assert.NotNil(t, cfg)
	assert.Empty(t, zoneList)

	assert.Equal(t, 8090, cfg.Server.Port)
	assert.Equal(t, "localhost", cfg.Database.Host)
	assert.False(t, cfg.Database.Enabled)
	assert.False(t, cfg.Redis.Enabled)
	assert.Equal(t, 30.0, cfg.Pipeline.FPS)
	assert.Equal(t, 100, cfg.Store.Capacity)
	assert.True(t, cfg.WebSocket.Enabled)
}

func TestConfig_EnvironmentOverrides(t *testing.T) {
	os.Setenv("PORT", "9191")
	os.Setenv("DB_HOST", "test-db")
	os.Setenv("REDIS_HOST", "test-redis")
	defer func() {
		os.Unsetenv("PORT")
		os.Unsetenv("DB_HOST")
		os.Unsetenv("REDIS_HOST")
	}()

	cfg, _, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9191, cfg.Server.Port)
	assert.Equal(t, "test-db", cfg.Database.Host)
	assert.Equal(t, "test-redis", cfg.Redis.Host)
}

func TestConfig_Validation(t *testing.T) {
	tests := []struct {
		name         string
		modifyConfig func(*Config)
		expectError  bool
	}{
		{name: "valid config", modifyConfig: func(*Config) {}, expectError: false},
		{name: "negative port", modifyConfig: func(c *Config) { c.Server.Port = -1 }, expectError: true},
		{name: "port too high", modifyConfig: func(c *Config) { c.Server.Port = 70000 }, expectError: true},
		{name: "invalid alpha", modifyConfig: func(c *Config) { c.Pipeline.StabilizerAlpha = 1.5 }, expectError: true},
		{name: "zero capacity", modifyConfig: func(c *Config) { c.Store.Capacity = 0 }, expectError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{
				Server:   ServerConfig{Port: 8090},
				Pipeline: PipelineConfig{StabilizerAlpha: 0.3},
				Store:    StoreConfig{Capacity: 100},
			}
			tt.modifyConfig(cfg)
			err := validate(cfg)
			if tt.expectError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestConfig_DatabaseDSN(t *testing.T) {
	cfg := &Config{Database: DatabaseConfig{
		Host: "localhost", Port: 5432, User: "testuser",
		Password: "testpass", Database: "testdb", SSLMode: "disable",
	}}
	assert.Equal(t, "host=localhost port=5432 user=testuser password=testpass dbname=testdb sslmode=disable", cfg.GetDatabaseDSN())
}

func TestConfig_RedisAddr(t *testing.T) {
	cfg := &Config{Redis: RedisConfig{Host: "redis-server", Port: 6379}}
	assert.Equal(t, "redis-server:6379", cfg.GetRedisAddr())
}

func TestConfig_ZoneParsingAndValidation(t *testing.T) {
	zoneConfigs := []ZoneConfig{
		{
			ID:   "R1",
			Name: "Restricted",
			Type: "RESTRICTED",
			Points: []PointConfig{
				{X: 0, Y: 0}, {X: 10, Y: 0}, {X: 10, Y: 10}, {X: 0, Y: 10},
			},
			AlertOnEntry:   true,
			SeverityWeight: 2.0,
			TimeWindow:     &TimeWindowConfig{Start: "22:00", End: "06:00"},
		},
	}
	zoneList, err := ToDomainZones(zoneConfigs)
	require.NoError(t, err)
	require.Len(t, zoneList, 1)
	assert.Equal(t, "R1", zoneList[0].ID)
	assert.True(t, zoneList[0].AlertOnEntry)
	require.NotNil(t, zoneList[0].TimeWindow)
	assert.Equal(t, 22*60, zoneList[0].TimeWindow.StartMinute)
	assert.Equal(t, 6*60, zoneList[0].TimeWindow.EndMinute)
}

func TestConfig_ZoneParsing_RejectsBadTimeWindow(t *testing.T) {
	zoneConfigs := []ZoneConfig{
		{ID: "Z", Type: "NORMAL", Points: []PointConfig{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 1, Y: 1}},
			TimeWindow: &TimeWindowConfig{Start: "not-a-time", End: "06:00"}},
	}
	_, err := ToDomainZones(zoneConfigs)
	assert.Error(t, err)
}
