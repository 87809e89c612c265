package events

import (
	"encoding/json"
	"strconv"

	. "github.com/berfenger/eleven2mqtt/internal/core/domain"
)

// ReadingToUpdateEvent maps a reading of a device to the event published on its state topic.
func ReadingToUpdateEvent(deviceId string, metric Metric, value any) (SensorUpdateEvent, bool) {
	id := ObjectId(deviceId, metric.EntityType)
	switch v := value.(type) {
	case float64:
		return FloatSensorUpdateEvent{
			SensorUpdateEventMixIn: SensorUpdateEventMixIn{Id: id},
			Value:                  v,
		}, true
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return nil, false
		}
		return FloatSensorUpdateEvent{
			SensorUpdateEventMixIn: SensorUpdateEventMixIn{Id: id},
			Value:                  f,
		}, true
	case string:
		return TextSensorUpdateEvent{
			SensorUpdateEventMixIn: SensorUpdateEventMixIn{Id: id},
			Value:                  v,
		}, true
	case bool:
		return TextSensorUpdateEvent{
			SensorUpdateEventMixIn: SensorUpdateEventMixIn{Id: id},
			Value:                  strconv.FormatBool(v),
		}, true
	}
	return nil, false
}

func ApiOnlineUpdateEvent(online bool) SensorUpdateEvent {
	return BinarySensorUpdateEvent{
		SensorUpdateEventMixIn: SensorUpdateEventMixIn{
			Id: SENSOR_ID_API_ONLINE,
		},
		Value: online,
	}
}
