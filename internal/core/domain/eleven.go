package domain

import "encoding/json"

const (
	DEVICE_TYPE_HYBRID_INVERTER = "hybridinverter"
	DEFAULT_DEVICE_NAME         = "Eleven Energy"
	MANUFACTURER                = "Eleven Energy"
)

// SiteListing is the body of GET site.
type SiteListing struct {
	Devices []SiteDevice `json:"devices"`
}

type SiteDevice struct {
	DeviceId     string  `json:"deviceId"`
	Type         string  `json:"type"`
	Name         *string `json:"name,omitempty"`
	SerialNumber *string `json:"serialNumber,omitempty"`
}

// DeviceState is the body of GET devices/{id}, keyed by category (hive).
// Categories that are not JSON objects are dropped while decoding.
type DeviceState map[string]map[string]any

// Device is a cloud device known to the bridge. Identity never changes after discovery.
type Device struct {
	Id           string
	Type         string
	Name         string
	SerialNumber string
}

func DeviceFromSite(d SiteDevice) Device {
	dev := Device{
		Id:   d.DeviceId,
		Type: d.Type,
		Name: DEFAULT_DEVICE_NAME,
	}
	if d.Name != nil {
		dev.Name = *d.Name
	}
	if d.SerialNumber != nil {
		dev.SerialNumber = *d.SerialNumber
	}
	return dev
}

func (s *DeviceState) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	state := make(DeviceState, len(raw))
	for hive, body := range raw {
		var fields map[string]any
		if err := json.Unmarshal(body, &fields); err != nil || fields == nil {
			continue
		}
		state[hive] = fields
	}
	*s = state
	return nil
}
