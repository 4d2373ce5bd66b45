// Package config parses the process environment into the ambient settings
// a run needs (process environment name, log level, HTTP port, rate
// limiting, metrics/health toggles) plus the full simulation configuration
// record of spec section 6, and translates the latter into a
// simulation.Config the engine can validate and run. Grounded on
// internal/infra/config/config.go's flat Config + per-environment default
// tightening + validateConfiguration shape; the elevator-specific fields
// (floor ranges, circuit breaker, door timings) are replaced by the
// ride-hail fields the engine actually consumes.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env"

	"github.com/tomslee/ridehail-sim/internal/constants"
	"github.com/tomslee/ridehail-sim/internal/dispatch"
	"github.com/tomslee/ridehail-sim/internal/domain"
	"github.com/tomslee/ridehail-sim/internal/equilibrium"
	"github.com/tomslee/ridehail-sim/internal/simulation"
)

// Config is the process-environment view of a run.
type Config struct {
	// Environment and basic settings
	Environment string `env:"ENV" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"INFO"`

	// HTTP server, serving the observation feed and control endpoints
	Port            int           `env:"PORT" envDefault:"6660"`
	ReadTimeout     time.Duration `env:"SERVER_READ_TIMEOUT" envDefault:"30s"`
	WriteTimeout    time.Duration `env:"SERVER_WRITE_TIMEOUT" envDefault:"30s"`
	IdleTimeout     time.Duration `env:"SERVER_IDLE_TIMEOUT" envDefault:"120s"`
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" envDefault:"30s"`
	ShutdownGrace   time.Duration `env:"SERVER_SHUTDOWN_GRACE" envDefault:"2s"`

	// HTTP middleware
	RateLimitRPM       int    `env:"RATE_LIMIT_RPM" envDefault:"100"`
	CORSEnabled        bool   `env:"CORS_ENABLED" envDefault:"true"`
	CORSAllowedOrigins string `env:"CORS_ALLOWED_ORIGINS" envDefault:"*"`

	// Monitoring
	MetricsEnabled    bool   `env:"METRICS_ENABLED" envDefault:"true"`
	MetricsPath       string `env:"METRICS_PATH" envDefault:"/metrics"`
	HealthEnabled     bool   `env:"HEALTH_ENABLED" envDefault:"true"`
	HealthPath        string `env:"HEALTH_PATH" envDefault:"/health"`
	StructuredLogging bool   `env:"STRUCTURED_LOGGING" envDefault:"true"`

	// Observation feed
	WebSocketEnabled        bool          `env:"WEBSOCKET_ENABLED" envDefault:"true"`
	WebSocketPath           string        `env:"WEBSOCKET_PATH" envDefault:"/ws/observations"`
	WebSocketWriteTimeout   time.Duration `env:"WEBSOCKET_WRITE_TIMEOUT" envDefault:"5s"`
	WebSocketMaxConnections int           `env:"WEBSOCKET_MAX_CONNECTIONS" envDefault:"1000"`

	// City / fleet / run length (spec section 6)
	CitySize     int     `env:"CITY_SIZE" envDefault:"10"`
	VehicleCount int     `env:"VEHICLE_COUNT" envDefault:"10"`
	BaseDemand   float64 `env:"BASE_DEMAND" envDefault:"0"`
	TimeBlocks   int     `env:"TIME_BLOCKS" envDefault:"1000"`

	// Trip endpoint sampling
	MinTripDistance    int     `env:"MIN_TRIP_DISTANCE" envDefault:"0"`
	MaxTripDistance    int     `env:"MAX_TRIP_DISTANCE" envDefault:"0"`
	TripInhomogeneity  float64 `env:"TRIP_INHOMOGENEITY" envDefault:"0"`
	IdleVehiclesMoving bool    `env:"IDLE_VEHICLES_MOVING" envDefault:"true"`

	// Dispatch
	DispatchMethod         string `env:"DISPATCH_METHOD" envDefault:"immediate_nearest"`
	ForwardDispatchEnabled bool   `env:"FORWARD_DISPATCH_ENABLED" envDefault:"false"`
	ForwardDispatchHorizon int    `env:"FORWARD_DISPATCH_HORIZON" envDefault:"0"`
	PickupTime             int    `env:"PICKUP_TIME" envDefault:"0"`

	// Equilibration
	Equilibrate           string  `env:"EQUILIBRATE" envDefault:"off"`
	EquilibrationInterval int     `env:"EQUILIBRATION_INTERVAL" envDefault:"10"`
	Price                 float64 `env:"PRICE" envDefault:"1.0"`
	PlatformCommission    float64 `env:"PLATFORM_COMMISSION" envDefault:"0.25"`
	ReservedWage          float64 `env:"RESERVED_WAGE" envDefault:"0.2"`
	WaitCost              float64 `env:"WAIT_COST" envDefault:"1.0"`
	DemandElasticity      float64 `env:"DEMAND_ELASTICITY" envDefault:"0.5"`
	PriceStepSize         float64 `env:"PRICE_STEP_SIZE" envDefault:"0.01"`

	// MinVehicles/MaxVehicles of 0 mean "unclamped" at this layer; the
	// engine's own Config represents that as a nil pointer, see
	// ToEngineConfig.
	MinVehicles int `env:"MIN_VEHICLES" envDefault:"0"`
	MaxVehicles int `env:"MAX_VEHICLES" envDefault:"0"`

	TrailingWindow int `env:"TRAILING_WINDOW" envDefault:"30"`
	ResultsWindow  int `env:"RESULTS_WINDOW" envDefault:"200"`

	// RandomNumberSeed of 0 means "unset, derive from the clock"; see
	// ToEngineConfig.
	RandomNumberSeed int64 `env:"RANDOM_NUMBER_SEED" envDefault:"0"`

	// Sequence mode (batch runs): vary one parameter across a run of
	// independent simulations, each with its own derived seed.
	SequenceParameter string  `env:"SEQUENCE_PARAMETER" envDefault:""`
	SequenceStart     float64 `env:"SEQUENCE_START" envDefault:"0"`
	SequenceEnd       float64 `env:"SEQUENCE_END" envDefault:"0"`
	SequenceStep      float64 `env:"SEQUENCE_STEP" envDefault:"0"`
}

// InitConfig parses the process environment into a Config, applies
// environment-specific defaults, and validates the result.
func InitConfig() (*Config, error) {
	cfg := Config{}
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment variables: %w", err)
	}

	applyEnvironmentDefaults(&cfg)

	if err := validateConfiguration(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// applyEnvironmentDefaults tightens logging and run size per environment,
// the way the teacher's config layer tightens timeouts per environment.
func applyEnvironmentDefaults(cfg *Config) {
	switch cfg.Environment {
	case "development", "dev":
		applyDevelopmentDefaults(cfg)
	case "testing", "test":
		applyTestingDefaults(cfg)
	case "production", "prod":
		applyProductionDefaults(cfg)
	default:
		// Keep current defaults for unknown environments.
	}
}

func applyDevelopmentDefaults(cfg *Config) {
	if cfg.LogLevel == "INFO" {
		cfg.LogLevel = "DEBUG"
	}
}

// applyTestingDefaults shrinks the default run so acceptance tests driving
// a real process complete quickly, and disables the feed/metrics surfaces
// that would otherwise need a live listener in a test process.
func applyTestingDefaults(cfg *Config) {
	cfg.LogLevel = "WARN"
	if cfg.TimeBlocks == 1000 {
		cfg.TimeBlocks = 50
	}
	if cfg.VehicleCount == 10 {
		cfg.VehicleCount = 3
	}
	cfg.MetricsEnabled = false
	cfg.WebSocketEnabled = false
}

func applyProductionDefaults(cfg *Config) {
	cfg.LogLevel = "WARN"
	cfg.RateLimitRPM = 30
}

// validateConfiguration validates the process-layer fields and, via
// ToEngineConfig and simulation.Config.Validate, the full domain record.
func validateConfiguration(cfg *Config) error {
	if cfg.Port <= 0 || cfg.Port > 65535 {
		return domain.NewValidationError("port must be between 1 and 65535", nil).
			WithContext("port", cfg.Port)
	}

	if cfg.RateLimitRPM <= 0 || cfg.RateLimitRPM > 100000 {
		return domain.NewValidationError("rate limit RPM must be between 1 and 100000", nil).
			WithContext("rate_limit_rpm", cfg.RateLimitRPM)
	}

	if cfg.WebSocketMaxConnections <= 0 || cfg.WebSocketMaxConnections > 10000 {
		return domain.NewValidationError("websocket max connections must be between 1 and 10000", nil).
			WithContext("max_connections", cfg.WebSocketMaxConnections)
	}

	if cfg.SequenceParameter != "" && cfg.SequenceStep == 0 {
		return domain.NewValidationError("sequence_step must be nonzero when sequence_parameter is set", nil).
			WithContext("sequence_parameter", cfg.SequenceParameter)
	}

	engineCfg, err := cfg.ToEngineConfig(nil)
	if err != nil {
		return err
	}
	if verr := engineCfg.Validate(); verr != nil {
		return verr
	}

	return nil
}

func parseDispatchMethod(s string) (dispatch.Method, error) {
	switch s {
	case "immediate_nearest":
		return dispatch.ImmediateNearest, nil
	case "immediate_batch_nearest":
		return dispatch.ImmediateBatchNearest, nil
	case "queue_nearest":
		return dispatch.QueueNearest, nil
	default:
		return 0, domain.NewValidationError("unknown dispatch_method", nil).WithContext("dispatch_method", s)
	}
}

func parseEquilibrateMode(s string) (equilibrium.Mode, error) {
	switch s {
	case "off", "":
		return equilibrium.Off, nil
	case "supply":
		return equilibrium.Supply, nil
	case "demand":
		return equilibrium.Demand, nil
	case "full":
		return equilibrium.Full, nil
	default:
		return 0, domain.NewValidationError("unknown equilibrate mode", nil).WithContext("equilibrate", s)
	}
}

// ToEngineConfig translates the environment-sourced record into the
// engine's own simulation.Config. seedOverride, when non-nil, takes
// precedence over RandomNumberSeed — sequence mode uses this to derive an
// independent seed per run without touching the process environment.
func (c *Config) ToEngineConfig(seedOverride *int64) (simulation.Config, error) {
	method, err := parseDispatchMethod(c.DispatchMethod)
	if err != nil {
		return simulation.Config{}, err
	}
	mode, err := parseEquilibrateMode(c.Equilibrate)
	if err != nil {
		return simulation.Config{}, err
	}

	cfg := simulation.Config{
		CitySize:               c.CitySize,
		VehicleCount:           c.VehicleCount,
		BaseDemand:             c.BaseDemand,
		TimeBlocks:             c.TimeBlocks,
		MinTripDistance:        c.MinTripDistance,
		MaxTripDistance:        c.MaxTripDistance,
		TripInhomogeneity:      c.TripInhomogeneity,
		IdleVehiclesMoving:     c.IdleVehiclesMoving,
		DispatchMethod:         method,
		ForwardDispatchEnabled: c.ForwardDispatchEnabled,
		ForwardDispatchHorizon: c.ForwardDispatchHorizon,
		PickupTime:             c.PickupTime,
		Equilibrate:            mode,
		EquilibrationInterval:  c.EquilibrationInterval,
		Price:                  c.Price,
		PlatformCommission:     c.PlatformCommission,
		ReservedWage:           c.ReservedWage,
		WaitCost:               c.WaitCost,
		DemandElasticity:       c.DemandElasticity,
		RiderUtilityBaseline:   constants.DefaultRiderUtilityBaseline,
		PriceStepSize:          c.PriceStepSize,
		TrailingWindow:         c.TrailingWindow,
		ResultsWindow:          c.ResultsWindow,
	}

	if c.MinVehicles > 0 {
		v := c.MinVehicles
		cfg.MinVehicles = &v
	}
	if c.MaxVehicles > 0 {
		v := c.MaxVehicles
		cfg.MaxVehicles = &v
	}

	switch {
	case seedOverride != nil:
		cfg.RandomNumberSeed = seedOverride
	case c.RandomNumberSeed != 0:
		seed := c.RandomNumberSeed
		cfg.RandomNumberSeed = &seed
	}

	return cfg, nil
}

// IsProduction reports whether Environment names a production run.
func (c *Config) IsProduction() bool {
	return c.Environment == "production" || c.Environment == "prod"
}

// IsDevelopment reports whether Environment names a development run.
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development" || c.Environment == "dev"
}

// IsTesting reports whether Environment names a testing run.
func (c *Config) IsTesting() bool {
	return c.Environment == "testing" || c.Environment == "test"
}

// SequenceValues returns the sequence of parameter values a sequence-mode
// run should step through, inclusive of both ends, per spec section 6. nil
// if no sequence parameter is configured.
func (c *Config) SequenceValues() []float64 {
	if c.SequenceParameter == "" || c.SequenceStep == 0 {
		return nil
	}
	var values []float64
	if c.SequenceStep > 0 {
		for v := c.SequenceStart; v <= c.SequenceEnd; v += c.SequenceStep {
			values = append(values, v)
		}
	} else {
		for v := c.SequenceStart; v >= c.SequenceEnd; v += c.SequenceStep {
			values = append(values, v)
		}
	}
	return values
}

// GetEnvironmentInfo returns environment information for logging/debugging.
func (c *Config) GetEnvironmentInfo() map[string]interface{} {
	return map[string]interface{}{
		"environment":       c.Environment,
		"log_level":         c.LogLevel,
		"port":              c.Port,
		"metrics_enabled":   c.MetricsEnabled,
		"websocket_enabled": c.WebSocketEnabled,
	}
}
