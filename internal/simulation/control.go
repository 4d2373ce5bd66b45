package simulation

import "github.com/tomslee/ridehail-sim/internal/dispatch"

// ControlKind selects which control message of spec section 6 is being
// applied. Control messages are only accepted between blocks.
type ControlKind int

const (
	ControlPause ControlKind = iota
	ControlResume
	ControlStop
	ControlAdjustVehicleCount
	ControlAdjustBaseDemand
	ControlSwitchDispatchMethod
	ControlReset
)

// ControlMessage is one instruction to apply between blocks.
type ControlMessage struct {
	Kind ControlKind

	// VehicleCountDelta is used by ControlAdjustVehicleCount (signed).
	VehicleCountDelta int

	// BaseDemandDelta is used by ControlAdjustBaseDemand (signed).
	BaseDemandDelta float64

	// DispatchMethod is used by ControlSwitchDispatchMethod.
	DispatchMethod dispatch.Method
}
