package config

import (
	"fmt"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tomslee/ridehail-sim/internal/dispatch"
	"github.com/tomslee/ridehail-sim/internal/domain"
	"github.com/tomslee/ridehail-sim/internal/equilibrium"
)

func TestInitConfig_DefaultValues(t *testing.T) {
	cleanup := clearEnvVars()
	defer cleanup()

	cfg, err := InitConfig()
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, "DEBUG", cfg.LogLevel) // Only change in development: DEBUG logging
	assert.Equal(t, 6660, cfg.Port)
	assert.Equal(t, 10, cfg.CitySize)
	assert.Equal(t, 10, cfg.VehicleCount)
	assert.Equal(t, 0.0, cfg.BaseDemand)
	assert.Equal(t, 1000, cfg.TimeBlocks)
	assert.Equal(t, "immediate_nearest", cfg.DispatchMethod)
	assert.Equal(t, "off", cfg.Equilibrate)
	assert.True(t, cfg.IdleVehiclesMoving)
}

func TestInitConfig_EnvironmentVariables(t *testing.T) {
	cleanup := clearEnvVars()
	defer cleanup()

	envVars := map[string]string{
		"ENV":             "production",
		"PORT":            "8080",
		"CITY_SIZE":       "20",
		"VEHICLE_COUNT":   "50",
		"BASE_DEMAND":     "2.5",
		"DISPATCH_METHOD": "queue_nearest",
		"EQUILIBRATE":     "full",
	}
	for key, value := range envVars {
		require.NoError(t, os.Setenv(key, value))
	}

	cfg, err := InitConfig()
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, "production", cfg.Environment)
	assert.Equal(t, "WARN", cfg.LogLevel) // overridden by production defaults
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, 20, cfg.CitySize)
	assert.Equal(t, 50, cfg.VehicleCount)
	assert.Equal(t, 2.5, cfg.BaseDemand)
	assert.Equal(t, "queue_nearest", cfg.DispatchMethod)
	assert.Equal(t, "full", cfg.Equilibrate)
}

func TestEnvironmentDefaults_Testing(t *testing.T) {
	cleanup := clearEnvVars()
	defer cleanup()
	require.NoError(t, os.Setenv("ENV", "testing"))

	cfg, err := InitConfig()
	require.NoError(t, err)

	assert.Equal(t, "WARN", cfg.LogLevel)
	assert.Equal(t, 50, cfg.TimeBlocks)   // shrunk from the 1000 default
	assert.Equal(t, 3, cfg.VehicleCount)  // shrunk from the 10 default
	assert.False(t, cfg.MetricsEnabled)
	assert.False(t, cfg.WebSocketEnabled)
}

func TestEnvironmentDefaults_Production(t *testing.T) {
	cleanup := clearEnvVars()
	defer cleanup()
	require.NoError(t, os.Setenv("ENV", "production"))

	cfg, err := InitConfig()
	require.NoError(t, err)

	assert.Equal(t, "WARN", cfg.LogLevel)
	assert.Equal(t, 30, cfg.RateLimitRPM)
}

func TestConfigValidation_InvalidPort(t *testing.T) {
	tests := []struct {
		name string
		port string
	}{
		{"port zero", "0"},
		{"negative port", "-1"},
		{"port too high", "70000"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cleanup := clearEnvVars()
			defer cleanup()
			require.NoError(t, os.Setenv("PORT", tt.port))

			cfg, err := InitConfig()
			require.Error(t, err)
			assert.Nil(t, cfg)
			assert.Contains(t, err.Error(), "port must be between 1 and 65535")
		})
	}
}

func TestConfigValidation_InvalidCitySize(t *testing.T) {
	tests := []struct {
		name     string
		citySize string
		wantErr  string
	}{
		{"odd city size", "9", "city_size"},
		{"too small", "1", "city_size"},
		{"too large", "4000", "city_size"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cleanup := clearEnvVars()
			defer cleanup()
			require.NoError(t, os.Setenv("CITY_SIZE", tt.citySize))

			cfg, err := InitConfig()
			require.Error(t, err)
			assert.Nil(t, cfg)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestConfigValidation_UnknownDispatchMethod(t *testing.T) {
	cleanup := clearEnvVars()
	defer cleanup()
	require.NoError(t, os.Setenv("DISPATCH_METHOD", "teleport"))

	cfg, err := InitConfig()
	require.Error(t, err)
	assert.Nil(t, cfg)

	var domainErr *domain.Error
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, domain.ErrTypeValidation, domainErr.Type)
}

func TestConfigValidation_UnknownEquilibrateMode(t *testing.T) {
	cleanup := clearEnvVars()
	defer cleanup()
	require.NoError(t, os.Setenv("EQUILIBRATE", "sideways"))

	cfg, err := InitConfig()
	require.Error(t, err)
	assert.Nil(t, cfg)
}

func TestConfigValidation_SequenceParameterRequiresStep(t *testing.T) {
	cleanup := clearEnvVars()
	defer cleanup()
	require.NoError(t, os.Setenv("SEQUENCE_PARAMETER", "vehicle_count"))

	cfg, err := InitConfig()
	require.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "sequence_step")
}

func TestToEngineConfig_TranslatesFields(t *testing.T) {
	cfg := Config{
		CitySize:               8,
		VehicleCount:           5,
		BaseDemand:             1.5,
		TimeBlocks:             100,
		DispatchMethod:         "immediate_batch_nearest",
		Equilibrate:            "supply",
		EquilibrationInterval:  10,
		PickupTime:             2,
		ForwardDispatchEnabled: true,
		ForwardDispatchHorizon: 4,
		MinVehicles:            3,
		MaxVehicles:            20,
		TrailingWindow:         30,
		ResultsWindow:          200,
		RandomNumberSeed:       42,
	}

	engineCfg, err := cfg.ToEngineConfig(nil)
	require.NoError(t, err)

	assert.Equal(t, 8, engineCfg.CitySize)
	assert.Equal(t, 5, engineCfg.VehicleCount)
	assert.Equal(t, dispatch.ImmediateBatchNearest, engineCfg.DispatchMethod)
	assert.Equal(t, equilibrium.Supply, engineCfg.Equilibrate)
	assert.True(t, engineCfg.ForwardDispatchEnabled)
	require.NotNil(t, engineCfg.MinVehicles)
	assert.Equal(t, 3, *engineCfg.MinVehicles)
	require.NotNil(t, engineCfg.MaxVehicles)
	assert.Equal(t, 20, *engineCfg.MaxVehicles)
	require.NotNil(t, engineCfg.RandomNumberSeed)
	assert.Equal(t, int64(42), *engineCfg.RandomNumberSeed)
}

func TestToEngineConfig_SeedOverrideWinsOverEnvSeed(t *testing.T) {
	cfg := Config{CitySize: 4, VehicleCount: 1, TimeBlocks: 1, RandomNumberSeed: 99}
	override := int64(7)

	engineCfg, err := cfg.ToEngineConfig(&override)
	require.NoError(t, err)
	require.NotNil(t, engineCfg.RandomNumberSeed)
	assert.Equal(t, int64(7), *engineCfg.RandomNumberSeed)
}

func TestToEngineConfig_UnclampedVehicleBoundsStayNil(t *testing.T) {
	cfg := Config{CitySize: 4, VehicleCount: 1, TimeBlocks: 1}

	engineCfg, err := cfg.ToEngineConfig(nil)
	require.NoError(t, err)
	assert.Nil(t, engineCfg.MinVehicles)
	assert.Nil(t, engineCfg.MaxVehicles)
}

func TestSequenceValues_SteppedRange(t *testing.T) {
	cfg := Config{SequenceParameter: "vehicle_count", SequenceStart: 5, SequenceEnd: 20, SequenceStep: 5}
	assert.Equal(t, []float64{5, 10, 15, 20}, cfg.SequenceValues())
}

func TestSequenceValues_NilWhenNoParameter(t *testing.T) {
	cfg := Config{}
	assert.Nil(t, cfg.SequenceValues())
}

func TestConfig_EnvironmentMethods(t *testing.T) {
	tests := []struct {
		environment   string
		isProduction  bool
		isDevelopment bool
		isTesting     bool
	}{
		{"production", true, false, false},
		{"prod", true, false, false},
		{"development", false, true, false},
		{"dev", false, true, false},
		{"testing", false, false, true},
		{"test", false, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.environment, func(t *testing.T) {
			cfg := &Config{Environment: tt.environment}
			assert.Equal(t, tt.isProduction, cfg.IsProduction())
			assert.Equal(t, tt.isDevelopment, cfg.IsDevelopment())
			assert.Equal(t, tt.isTesting, cfg.IsTesting())
		})
	}
}

func TestConfig_GetEnvironmentInfo(t *testing.T) {
	cfg := &Config{
		Environment:      "development",
		LogLevel:         "DEBUG",
		Port:             8080,
		MetricsEnabled:   true,
		WebSocketEnabled: true,
	}

	info := cfg.GetEnvironmentInfo()
	expected := map[string]interface{}{
		"environment":       "development",
		"log_level":         "DEBUG",
		"port":              8080,
		"metrics_enabled":   true,
		"websocket_enabled": true,
	}
	assert.Equal(t, expected, info)
}

func clearEnvVars() func() {
	envVars := []string{
		"ENV", "LOG_LEVEL", "PORT",
		"CITY_SIZE", "VEHICLE_COUNT", "BASE_DEMAND", "TIME_BLOCKS",
		"MIN_TRIP_DISTANCE", "MAX_TRIP_DISTANCE", "TRIP_INHOMOGENEITY", "IDLE_VEHICLES_MOVING",
		"DISPATCH_METHOD", "FORWARD_DISPATCH_ENABLED", "FORWARD_DISPATCH_HORIZON", "PICKUP_TIME",
		"EQUILIBRATE", "EQUILIBRATION_INTERVAL", "PRICE", "PLATFORM_COMMISSION",
		"RESERVED_WAGE", "WAIT_COST", "DEMAND_ELASTICITY", "PRICE_STEP_SIZE",
		"MIN_VEHICLES", "MAX_VEHICLES", "TRAILING_WINDOW", "RESULTS_WINDOW",
		"RANDOM_NUMBER_SEED", "SEQUENCE_PARAMETER", "SEQUENCE_START", "SEQUENCE_END", "SEQUENCE_STEP",
		"RATE_LIMIT_RPM", "CORS_ENABLED", "CORS_ALLOWED_ORIGINS",
		"METRICS_ENABLED", "METRICS_PATH", "HEALTH_ENABLED", "HEALTH_PATH", "STRUCTURED_LOGGING",
		"WEBSOCKET_ENABLED", "WEBSOCKET_PATH", "WEBSOCKET_WRITE_TIMEOUT", "WEBSOCKET_MAX_CONNECTIONS",
	}

	original := make(map[string]string)
	for _, v := range envVars {
		original[v] = os.Getenv(v)
		if err := os.Unsetenv(v); err != nil {
			fmt.Printf("failed to unset %s: %v\n", v, err)
		}
	}

	return func() {
		for _, v := range envVars {
			if val, ok := original[v]; ok && val != "" {
				os.Setenv(v, val)
			} else {
				os.Unsetenv(v)
			}
		}
	}
}
