package constants

import "time"

// Application constants centralized in one location to improve type safety
// and eliminate magic strings throughout the codebase.

// Default Configuration Values
const (
	DefaultPort     = 6660
	DefaultLogLevel = "INFO"

	DefaultCitySize      = 10
	DefaultVehicleCount  = 10
	DefaultTimeBlocks    = 1000
	DefaultPickupTime    = 0
	DefaultTrailingWindow = 30
	DefaultResultsWindow  = 200

	DefaultEquilibrationInterval = 10
	DefaultPrice                 = 1.0
	DefaultPlatformCommission    = 0.25
	DefaultReservedWage          = 0.2
	DefaultWaitCost              = 1.0
	DefaultDemandElasticity      = 0.5
	// DefaultRiderUtilityBaseline is U_0 in the rider utility formula
	// (spec section 4.8); the configuration table does not expose it, so
	// it is carried as a fixed engine constant rather than a tunable.
	DefaultRiderUtilityBaseline = 1.0
	DefaultPriceStepSize        = 0.01
	DefaultForwardDispatchHorizon = 0

	// StatusUpdateInterval is a one-second interval that no code reads: the
	// observation websocket feed publishes once per Step, unthrottled.
	StatusUpdateInterval = 1 * time.Second
)

// HTTP Content Types
const (
	ContentTypeJSON      = "application/json"
	ContentTypeTextPlain = "text/plain"
)

// HTTP Methods
const (
	MethodGET  = "GET"
	MethodPOST = "POST"
)

// Component Names for Logging
const (
	ComponentSimulation  = "simulation"
	ComponentDispatch    = "dispatch"
	ComponentEquilibrium = "equilibrium"
	ComponentHistory     = "history"
	ComponentHTTPServer  = "http-server"
	ComponentHTTPHandler = "http_handler"
)

// Grid and trip bounds, used to reject nonsensical configuration values
// before the first block runs.
const (
	MinAllowedCitySize     = 2
	MaxAllowedCitySize     = 2000
	MaxAllowedPickupTime   = 10
	MaxRandomDrawAttempts  = 1000
)

// Metrics
const (
	MetricsNamespace = "ridehail"
)
