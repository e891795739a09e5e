package domain

import (
	"time"

	"github.com/berfenger/hanchu2mqtt/pkg/hanchu"
)

const (
	ACTOR_ID_MASTER        = "master"
	ACTOR_ID_CLOUD         = "cloud"
	ACTOR_ID_MQTT          = "mqtt"
	ACTOR_ID_INVERTER_POLL = "inverter_poll"
	ACTOR_ID_BATTERY_POLL  = "battery_poll"
	ACTOR_ID_WORKMODE      = "workmode"
	ACTOR_ID_HA_DISCOVERY  = "hadiscovery"
)

type GetDevicesInfoRequest struct {
	ActorRequestMixIn
}

type GetDevicesInfoResponse struct {
	ActorResponseMixIn
	Info hanchu.DevicesInfo
}

type GetInverterReadingRequest struct {
	ActorRequestMixIn
}

type GetInverterReadingResponse struct {
	ActorResponseMixIn
	Reading *hanchu.InverterReading
}

type GetBatteryReadingRequest struct {
	ActorRequestMixIn
}

type GetBatteryReadingResponse struct {
	ActorResponseMixIn
	Reading *hanchu.BatteryReading
}

type GetEnergyFlowRequest struct {
	ActorRequestMixIn
	Date string
}

type GetEnergyFlowResponse struct {
	ActorResponseMixIn
	Flow *hanchu.EnergyFlowReading
}

type SetWorkModeRequest struct {
	ActorRequestMixIn
	Mode hanchu.WorkMode
}

type SetWorkModeResponse struct {
	ActorResponseMixIn
	Mode hanchu.WorkMode
}

// Snapshot requests are the pull contract for the coordinators. They are
// answered from coordinator state without touching the cloud.

type GetInverterSnapshotRequest struct {
	ActorRequestMixIn
}

type GetInverterSnapshotResponse struct {
	ActorResponseMixIn
	Reading     *hanchu.InverterReading
	Available   bool
	LastUpdated time.Time
}

type GetBatterySnapshotRequest struct {
	ActorRequestMixIn
}

type GetBatterySnapshotResponse struct {
	ActorResponseMixIn
	Reading     *hanchu.BatteryReading
	Available   bool
	LastUpdated time.Time
}

// PollNowRequest asks a poller to run an extra cycle ahead of schedule.
type PollNowRequest struct {
	ActorRequestMixIn
}

type PublishMessageRequest struct {
	ActorRequestMixIn
	Topic   string
	Payload string
	Retain  bool
}

type PublishMessageResponse struct {
	ActorResponseMixIn
}

type PublishSensorUpdateRequest struct {
	ActorRequestMixIn
	Retain bool
	Event  SensorUpdateEvent
}

type PublishSensorUpdateResponse struct {
	ActorResponseMixIn
}

type PublishDiscoveryRequest struct {
	ActorRequestMixIn
	Sensors []GenericSensor
	Selects []GenericSelect
}

type PublishDiscoveryResponse struct {
	ActorResponseMixIn
}

type ActorHealthRequest struct {
	ActorRequestMixIn
}

type ActorHealthResponse struct {
	ActorResponseMixIn
	Id      string
	Healthy bool
	State   string
}
