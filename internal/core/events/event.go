package events

import (
	. "github.com/berfenger/hanchu2mqtt/internal/core/domain"
	"github.com/berfenger/hanchu2mqtt/pkg/hanchu"
)

func InverterReadingToUpdateEvents(r *hanchu.InverterReading) []any {
	var events []any
	if r == nil {
		return events
	}

	events = appendFloat(events, SENSOR_ID_SOLAR_POWER, r.SolarPowerW, 1)
	events = appendFloat(events, SENSOR_ID_LOAD_POWER, r.LoadPowerW, 1)
	events = appendFloat(events, SENSOR_ID_GRID_POWER, r.GridPowerW, 1)
	events = appendFloat(events, SENSOR_ID_GRID_L1_POWER, r.GridPhasePowerW[0], 1)
	events = appendFloat(events, SENSOR_ID_GRID_L2_POWER, r.GridPhasePowerW[1], 1)
	events = appendFloat(events, SENSOR_ID_GRID_L3_POWER, r.GridPhasePowerW[2], 1)
	events = appendFloat(events, SENSOR_ID_BATTERY_POWER, r.BatteryPowerW, 1)
	events = appendFloat(events, SENSOR_ID_BATTERY_SOC, r.BatterySocPct, 1)

	events = appendFloat(events, SENSOR_ID_SOLAR_ENERGY_TODAY, r.EnergyToday.SolarKWh, 2)
	events = appendFloat(events, SENSOR_ID_GRID_IMPORT_TODAY, r.EnergyToday.GridImportKWh, 2)
	events = appendFloat(events, SENSOR_ID_GRID_EXPORT_TODAY, r.EnergyToday.GridExportKWh, 2)
	events = appendFloat(events, SENSOR_ID_BATTERY_CHARGE_TODAY, r.EnergyToday.BatteryChargeKWh, 2)
	events = appendFloat(events, SENSOR_ID_BATTERY_DISCHARGE_TODAY, r.EnergyToday.BatteryDischargeKWh, 2)
	events = appendFloat(events, SENSOR_ID_LOAD_ENERGY_TODAY, r.EnergyToday.LoadKWh, 2)

	events = appendFloat(events, SENSOR_ID_BMS_DESIGN_CAPACITY, r.BMSDesignCapacityKWh, 2)

	if r.WorkMode != nil {
		events = append(events, WorkModeUpdateEvent(*r.WorkMode))
	}

	return events
}

func WorkModeUpdateEvent(mode hanchu.WorkMode) any {
	return SelectSensorUpdateEvent{
		SensorUpdateEventMixIn: SensorUpdateEventMixIn{
			Id: SELECT_ID_WORK_MODE,
		},
		Value: mode.String(),
	}
}

func InverterAvailabilityUpdateEvent(available bool) any {
	return BinarySensorUpdateEvent{
		SensorUpdateEventMixIn: SensorUpdateEventMixIn{
			Id: SENSOR_ID_INVERTER_AVAILABLE,
		},
		Value: available,
	}
}

func BatteryReadingToUpdateEvents(r *hanchu.BatteryReading) []any {
	var events []any
	if r == nil {
		return events
	}

	events = appendFloat(events, SENSOR_ID_RACK_SOC, r.SocPct, 1)
	events = appendFloat(events, SENSOR_ID_RACK_POWER, r.PowerKW, 3)
	events = appendFloat(events, SENSOR_ID_RACK_VOLTAGE, r.VoltageV, 1)
	events = appendFloat(events, SENSOR_ID_RACK_CURRENT, r.CurrentA, 1)
	events = appendFloat(events, SENSOR_ID_RACK_CAPACITY_REMAINING, r.CapacityRemainingPct, 1)
	events = appendFloat(events, SENSOR_ID_RACK_CAPACITY, r.CapacityKWh, 2)
	events = appendFloat(events, SENSOR_ID_RACK_TEMP_MAX, r.TempMaxC, 1)
	events = appendFloat(events, SENSOR_ID_RACK_TEMP_MIN, r.TempMinC, 1)
	for i, t := range r.ProbeTempsC {
		events = appendFloat(events, RackProbeTempSensorId(i), t, 1)
	}
	events = appendFloat(events, SENSOR_ID_RACK_CHARGE_TODAY, r.EnergyTodayChargeKWh, 2)
	events = appendFloat(events, SENSOR_ID_RACK_DISCHARGE_TODAY, r.EnergyTodayDischargeKWh, 2)
	events = appendFloat(events, SENSOR_ID_RACK_TOTAL_CHARGE, r.EnergyTotalChargeKWh, 1)
	events = appendFloat(events, SENSOR_ID_RACK_TOTAL_DISCHARGE, r.EnergyTotalDischargeKWh, 1)
	events = appendFloat(events, SENSOR_ID_RACK_CYCLE_COUNT, r.CycleCount, 0)
	for i, v := range r.PackVoltagesV {
		events = appendFloat(events, PackVoltageSensorId(i), v, 2)
	}
	for i, t := range r.PackAvgTempsC {
		events = appendFloat(events, PackAvgTempSensorId(i), t, 1)
	}

	events = appendBinary(events, BINARY_SENSOR_ID_CHARGING_RELAY, r.Relays.Charging)
	events = appendBinary(events, BINARY_SENSOR_ID_DISCHARGING_RELAY, r.Relays.Discharging)
	events = appendBinary(events, BINARY_SENSOR_ID_NEG_RELAY, r.Relays.Negative)
	events = appendBinary(events, BINARY_SENSOR_ID_SHUNT_RELAY, r.Relays.Shunt)
	events = appendBinary(events, BINARY_SENSOR_ID_PRE_CHARGE_RELAY, r.Relays.PreCharge)

	return events
}

func BatteryAvailabilityUpdateEvent(available bool) any {
	return BinarySensorUpdateEvent{
		SensorUpdateEventMixIn: SensorUpdateEventMixIn{
			Id: SENSOR_ID_BATTERY_AVAILABLE,
		},
		Value: available,
	}
}

// unknown fields produce no event so the last published value is kept
func appendFloat(events []any, id string, value *float64, decimals uint) []any {
	if value == nil {
		return events
	}
	return append(events, FloatSensorUpdateEvent{
		SensorUpdateEventMixIn: SensorUpdateEventMixIn{
			Id: id,
		},
		Value:    *value,
		Decimals: decimals,
	})
}

func appendBinary(events []any, id string, value *bool) []any {
	if value == nil {
		return events
	}
	return append(events, BinarySensorUpdateEvent{
		SensorUpdateEventMixIn: SensorUpdateEventMixIn{
			Id: id,
		},
		Value: *value,
	})
}
