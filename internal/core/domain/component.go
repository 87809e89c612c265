package domain

// HADevice groups entities under one Home Assistant device.
type HADevice struct {
	Id           string
	Name         string
	Version      string
	Model        string
	Manufacturer string
	SerialNumber string
	ViaDevice    string
}

type GenericSensor struct {
	Device            HADevice
	Id                string
	SensorType        string
	Name              string
	UniqueId          string
	UnitOfMeasurement string
	StateClass        string // measurement, total_increasing
	DeviceClass       string // power, energy, battery, voltage, connectivity
	EntityCategory    string // diagnostic, config, nil
	Icon              string
	Precision         *int
}
