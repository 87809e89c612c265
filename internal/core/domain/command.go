package domain

import (
	"fmt"
	"strings"
)

type WorkMode string

const (
	WORK_MODE_SELF_CONSUMPTION WorkMode = "self_consumption"
	WORK_MODE_FORCE_CHARGE     WorkMode = "force_charge"
	WORK_MODE_GRID_EXPORT      WorkMode = "grid_export"
	WORK_MODE_PV_EXPORT        WorkMode = "pv_export"
	WORK_MODE_IDLE_BATTERY     WorkMode = "idle_battery"
)

// legacy service names, as called from HA scripts
const workModeServicePrefix = "set_work_mode_"

// ParseWorkMode normalizes "force_charge", "force-charge" and "set_work_mode_force_charge".
// Unknown values are returned as-is and rejected later by the dispatcher.
func ParseWorkMode(value string) WorkMode {
	mode := strings.ToLower(strings.TrimSpace(value))
	mode = strings.ReplaceAll(mode, "-", "_")
	mode = strings.TrimPrefix(mode, workModeServicePrefix)
	if mode == "pv_export_priority" {
		return WORK_MODE_PV_EXPORT
	}
	return WorkMode(mode)
}

// OperatingModeCommand asks for a work mode change on one inverter.
// Params keys are the user-facing ones (target_percent, target_power, ...).
type OperatingModeCommand struct {
	Id            string
	Mode          WorkMode
	HostDeviceRef string
	Params        map[string]any
}

type OutcomeKind int

const (
	OutcomeDelivered OutcomeKind = iota
	OutcomeRetriable
	OutcomeUnresolvable
	OutcomeUnknownMode
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeDelivered:
		return "delivered"
	case OutcomeRetriable:
		return "retriable"
	case OutcomeUnresolvable:
		return "unresolvable"
	case OutcomeUnknownMode:
		return "unknown_mode"
	}
	return fmt.Sprintf("outcome(%d)", int(k))
}

type DispatchOutcome struct {
	Kind       OutcomeKind
	DeviceId   string
	Attempts   int
	LastStatus int
}

func (o DispatchOutcome) Delivered() bool {
	return o.Kind == OutcomeDelivered
}
