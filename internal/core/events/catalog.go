package events

import "strings"

// Metric describes one reading the bridge knows how to expose.
// Key is "<category>.<field>" as found in the device state payload.
type Metric struct {
	Key         string
	EntityType  string
	Name        string
	Unit        string
	Precision   int // -1: no suggested precision
	Icon        string
	DeviceClass string
	StateClass  string
}

func (m Metric) Category() string {
	category, _, _ := strings.Cut(m.Key, ".")
	return category
}

// Categories (hives) scanned in every device payload, in processing order.
var CATEGORIES = []string{"load", "battery", "pv", "grid", "system", "operatingMode"}

var catalog = []Metric{
	powerMetric("pv.power", "pv_power", "PV power", 2, "mdi:solar-power"),
	energyMetric("pv.energyToday", "pv_energy_today", "PV energy today", 2, "mdi:solar-power-variant"),
	powerMetric("load.power", "load_power", "Load power", 2, "mdi:home-lightning-bolt"),
	energyMetric("load.energyToday", "load_energy_today", "Load energy today", 2, "mdi:lightning-bolt"),
	{
		Key:         "battery.stateOfCharge",
		EntityType:  "state_of_charge",
		Name:        "Battery state of charge",
		Unit:        "%",
		Precision:   0,
		Icon:        "mdi:battery",
		DeviceClass: DEVICE_CLASS_BATTERY,
		StateClass:  STATE_CLASS_MEASUREMENT,
	},
	powerMetric("battery.power", "battery_power", "Battery power", 2, "mdi:battery-minus-variant"),
	energyMetric("battery.energyInToday", "battery_energy_in_today", "Battery energy in today", 2, "mdi:battery-plus"),
	energyMetric("battery.energyOutToday", "battery_energy_out_today", "Battery energy out today", 2, "mdi:battery-minus"),
	powerMetric("grid.power", "grid_power", "Grid power", 2, "mdi:transmission-tower"),
	energyMetric("grid.energyInToday", "grid_energy_in_today", "Grid energy in today", 2, "mdi:transmission-tower-export"),
	energyMetric("grid.energyOutToday", "grid_energy_out_today", "Grid energy out today", 2, "mdi:transmission-tower-import"),
	powerMetric("system.power", "system_power", "System power", 2, "mdi:flash"),
	{
		Key:         "system.voltage",
		EntityType:  "system_voltage",
		Name:        "System voltage",
		Unit:        "V",
		Precision:   2,
		Icon:        "mdi:flash",
		DeviceClass: DEVICE_CLASS_VOLTAGE,
		StateClass:  STATE_CLASS_MEASUREMENT,
	},
	{
		Key:        "operatingMode.workMode",
		EntityType: "system_work_mode",
		Name:       "Work mode",
		Precision:  -1,
		Icon:       "mdi:all-inclusive-box-outline",
	},
}

var catalogByKey = func() map[string]Metric {
	m := make(map[string]Metric, len(catalog))
	for _, metric := range catalog {
		m[metric.Key] = metric
	}
	return m
}()

// Catalog returns a copy of the static metric catalog.
func Catalog() []Metric {
	return append([]Metric(nil), catalog...)
}

func LookupMetric(key string) (Metric, bool) {
	m, ok := catalogByKey[key]
	return m, ok
}

func powerMetric(key, entityType, name string, precision int, icon string) Metric {
	return Metric{
		Key:         key,
		EntityType:  entityType,
		Name:        name,
		Unit:        "kW",
		Precision:   precision,
		Icon:        icon,
		DeviceClass: DEVICE_CLASS_POWER,
		StateClass:  STATE_CLASS_MEASUREMENT,
	}
}

func energyMetric(key, entityType, name string, precision int, icon string) Metric {
	return Metric{
		Key:         key,
		EntityType:  entityType,
		Name:        name,
		Unit:        "kWh",
		Precision:   precision,
		Icon:        icon,
		DeviceClass: DEVICE_CLASS_ENERGY,
		StateClass:  STATE_CLASS_TOTAL_INCREASING,
	}
}
