package simulation

import (
	"github.com/tomslee/ridehail-sim/internal/constants"
	"github.com/tomslee/ridehail-sim/internal/dispatch"
	"github.com/tomslee/ridehail-sim/internal/domain"
	"github.com/tomslee/ridehail-sim/internal/equilibrium"
)

// Config is the pure, already-validated parameter set of spec section 6 —
// the simulation engine's own view of the run, independent of how it was
// sourced (environment, CLI flags, sequence-mode stepping). The ambient
// config layer (internal/infra/config) parses the process environment and
// produces one of these per run.
type Config struct {
	CitySize        int
	VehicleCount    int
	BaseDemand      float64
	TimeBlocks      int
	MinTripDistance int
	// MaxTripDistance <= 0 means absent (no upper bound).
	MaxTripDistance    int
	TripInhomogeneity  float64
	IdleVehiclesMoving bool

	DispatchMethod         dispatch.Method
	ForwardDispatchEnabled bool
	ForwardDispatchHorizon int

	PickupTime int

	Equilibrate           equilibrium.Mode
	EquilibrationInterval int

	Price                float64
	PlatformCommission   float64
	ReservedWage         float64
	WaitCost             float64
	DemandElasticity     float64
	RiderUtilityBaseline float64
	PriceStepSize        float64

	// MinVehicles/MaxVehicles are nil when unclamped.
	MinVehicles *int
	MaxVehicles *int

	TrailingWindow int
	ResultsWindow  int

	RandomNumberSeed *int64
}

// Default returns a Config populated with the engine's defaults; callers
// override individual fields before calling Validate.
func Default() Config {
	return Config{
		CitySize:              constants.DefaultCitySize,
		VehicleCount:          constants.DefaultVehicleCount,
		BaseDemand:            0,
		TimeBlocks:            constants.DefaultTimeBlocks,
		MinTripDistance:       0,
		MaxTripDistance:       0,
		TripInhomogeneity:     0,
		IdleVehiclesMoving:    true,
		DispatchMethod:        dispatch.ImmediateNearest,
		PickupTime:            constants.DefaultPickupTime,
		Equilibrate:           equilibrium.Off,
		EquilibrationInterval: constants.DefaultEquilibrationInterval,
		Price:                 constants.DefaultPrice,
		PlatformCommission:    constants.DefaultPlatformCommission,
		ReservedWage:          constants.DefaultReservedWage,
		WaitCost:              constants.DefaultWaitCost,
		DemandElasticity:      constants.DefaultDemandElasticity,
		RiderUtilityBaseline:  constants.DefaultRiderUtilityBaseline,
		PriceStepSize:         constants.DefaultPriceStepSize,
		TrailingWindow:        constants.DefaultTrailingWindow,
		ResultsWindow:         constants.DefaultResultsWindow,
	}
}

// Validate reports the first configuration-bounds violation found, per
// spec section 7's "configuration invalid" error kind; nil if the config
// is runnable.
func (c Config) Validate() *domain.Error {
	switch {
	case c.CitySize < constants.MinAllowedCitySize || c.CitySize > constants.MaxAllowedCitySize:
		return domain.NewValidationError("city_size out of range", nil).WithContext("city_size", c.CitySize)
	case c.CitySize%2 != 0:
		return domain.NewValidationError("city_size must be even", nil).WithContext("city_size", c.CitySize)
	case c.VehicleCount < 0:
		return domain.NewValidationError("vehicle_count must be >= 0", nil).WithContext("vehicle_count", c.VehicleCount)
	case c.BaseDemand < 0:
		return domain.NewValidationError("base_demand must be >= 0", nil).WithContext("base_demand", c.BaseDemand)
	case c.TimeBlocks < 1:
		return domain.NewValidationError("time_blocks must be >= 1", nil).WithContext("time_blocks", c.TimeBlocks)
	case c.MinTripDistance < 0:
		return domain.NewValidationError("min_trip_distance must be >= 0", nil).WithContext("min_trip_distance", c.MinTripDistance)
	case c.MaxTripDistance > 0 && c.MaxTripDistance < c.MinTripDistance:
		return domain.NewValidationError("max_trip_distance must be >= min_trip_distance", nil)
	case c.TripInhomogeneity < 0 || c.TripInhomogeneity > 1:
		return domain.NewValidationError("trip_inhomogeneity must be in [0,1]", nil).WithContext("trip_inhomogeneity", c.TripInhomogeneity)
	case c.PickupTime < 0 || c.PickupTime > constants.MaxAllowedPickupTime:
		return domain.NewValidationError("pickup_time out of range", nil).WithContext("pickup_time", c.PickupTime)
	case c.EquilibrationInterval < 1:
		return domain.NewValidationError("equilibration_interval must be >= 1", nil).WithContext("equilibration_interval", c.EquilibrationInterval)
	case c.TrailingWindow < 1:
		return domain.NewValidationError("trailing_window must be >= 1", nil).WithContext("trailing_window", c.TrailingWindow)
	case c.ResultsWindow < 1:
		return domain.NewValidationError("results_window must be >= 1", nil).WithContext("results_window", c.ResultsWindow)
	case c.MinVehicles != nil && *c.MinVehicles < 0:
		return domain.NewValidationError("min_vehicles must be >= 0", nil)
	case c.MaxVehicles != nil && c.MinVehicles != nil && *c.MaxVehicles < *c.MinVehicles:
		return domain.NewValidationError("max_vehicles must be >= min_vehicles", nil)
	}
	return nil
}
