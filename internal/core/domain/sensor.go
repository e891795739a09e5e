package domain

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"

	"github.com/berfenger/hanchu2mqtt/pkg/hanchu"

	"github.com/carlmjohnson/versioninfo"
)

const (
	SENSOR_ID_BRIDGE_STATE = "bridge"

	// inverter
	SENSOR_ID_SOLAR_POWER             = "solar_power"
	SENSOR_ID_LOAD_POWER              = "load_power"
	SENSOR_ID_GRID_POWER              = "grid_power"
	SENSOR_ID_GRID_L1_POWER           = "grid_l1_power"
	SENSOR_ID_GRID_L2_POWER           = "grid_l2_power"
	SENSOR_ID_GRID_L3_POWER           = "grid_l3_power"
	SENSOR_ID_BATTERY_POWER           = "battery_power"
	SENSOR_ID_BATTERY_SOC             = "battery_soc"
	SENSOR_ID_SOLAR_ENERGY_TODAY      = "solar_energy_today"
	SENSOR_ID_GRID_IMPORT_TODAY       = "grid_import_today"
	SENSOR_ID_GRID_EXPORT_TODAY       = "grid_export_today"
	SENSOR_ID_BATTERY_CHARGE_TODAY    = "battery_charge_today"
	SENSOR_ID_BATTERY_DISCHARGE_TODAY = "battery_discharge_today"
	SENSOR_ID_LOAD_ENERGY_TODAY       = "load_energy_today"
	SENSOR_ID_BMS_DESIGN_CAPACITY     = "bms_design_capacity"
	SENSOR_ID_INVERTER_AVAILABLE      = "inverter_available"
	SELECT_ID_WORK_MODE               = "work_mode"

	// battery rack
	SENSOR_ID_RACK_SOC                = "rack_soc"
	SENSOR_ID_RACK_POWER              = "rack_power"
	SENSOR_ID_RACK_VOLTAGE            = "rack_voltage"
	SENSOR_ID_RACK_CURRENT            = "rack_current"
	SENSOR_ID_RACK_CAPACITY_REMAINING = "rack_capacity_remaining"
	SENSOR_ID_RACK_CAPACITY           = "rack_capacity"
	SENSOR_ID_RACK_TEMP_MAX           = "rack_temp_max"
	SENSOR_ID_RACK_TEMP_MIN           = "rack_temp_min"
	SENSOR_ID_RACK_CHARGE_TODAY       = "rack_charge_today"
	SENSOR_ID_RACK_DISCHARGE_TODAY    = "rack_discharge_today"
	SENSOR_ID_RACK_TOTAL_CHARGE       = "rack_total_charge"
	SENSOR_ID_RACK_TOTAL_DISCHARGE    = "rack_total_discharge"
	SENSOR_ID_RACK_CYCLE_COUNT        = "rack_cycle_count"
	SENSOR_ID_BATTERY_AVAILABLE       = "battery_available"
	BINARY_SENSOR_ID_CHARGING_RELAY   = "charging_relay"
	BINARY_SENSOR_ID_DISCHARGING_RELAY = "discharging_relay"
	BINARY_SENSOR_ID_NEG_RELAY         = "neg_relay"
	BINARY_SENSOR_ID_SHUNT_RELAY       = "shunt_relay"
	BINARY_SENSOR_ID_PRE_CHARGE_RELAY  = "pre_charge_relay"

	STATE_CLASS_MEASUREMENT      = "measurement"
	STATE_CLASS_TOTAL            = "total"
	STATE_CLASS_TOTAL_INCREASING = "total_increasing"
	DEVICE_CLASS_BATTERY         = "battery"
	DEVICE_CLASS_CURRENT         = "current"
	DEVICE_CLASS_ENERGY          = "energy"
	DEVICE_CLASS_ENERGY_STORAGE  = "energy_storage"
	DEVICE_CLASS_POWER           = "power"
	DEVICE_CLASS_TEMPERATURE     = "temperature"
	DEVICE_CLASS_VOLTAGE         = "voltage"
	DEVICE_CLASS_CONNECTIVITY    = "connectivity"
	ENTITY_CLASS_DIAGNOSTIC      = "diagnostic"
	SENSOR_TYPE_SENSOR           = "sensor"
	SENSOR_TYPE_BINARY           = "binary_sensor"
)

func RackProbeTempSensorId(probe int) string {
	return fmt.Sprintf("rack_t%d", probe+1)
}

func PackVoltageSensorId(pack int) string {
	return fmt.Sprintf("pack%d_voltage", pack+1)
}

func PackAvgTempSensorId(pack int) string {
	return fmt.Sprintf("pack%d_avg_temp", pack+1)
}

func BridgeDevice(baseTopic string) Device {
	return Device{
		Id:           fmt.Sprintf("hanchu_bridge_%s", md5HashShort(baseTopic)),
		Manufacturer: "ACasal",
		Model:        "Hanchu2MQTT",
		Version:      versioninfo.Short(),
		Name:         fmt.Sprintf("Hanchu2MQTT %s", md5HashShort(baseTopic)),
	}
}

func InverterDevice(info hanchu.DevicesInfo) Device {
	return Device{
		Id:           fmt.Sprintf("hanchu_inverter_%s", md5HashShort(info.InverterSerial)),
		Manufacturer: "Hanchu ESS",
		Model:        "Inverter",
		Name:         fmt.Sprintf("Hanchu Inverter %s", md5HashShort(info.InverterSerial)),
	}
}

func BatteryDevice(info hanchu.DevicesInfo) Device {
	return Device{
		Id:           fmt.Sprintf("hanchu_battery_%s", md5HashShort(info.BatterySerial)),
		Manufacturer: "Hanchu ESS",
		Model:        "Battery Rack",
		Name:         fmt.Sprintf("Hanchu Battery %s", md5HashShort(info.BatterySerial)),
	}
}

func IdDevice(device Device) Device {
	return Device{
		Id:   device.Id,
		Name: device.Name,
	}
}

func BridgeSensors(bridgeDevice Device) []GenericSensor {

	var sensors []GenericSensor

	// Bridge connection state
	sensors = append(sensors, GenericSensor{
		Device:         bridgeDevice,
		Id:             SENSOR_ID_BRIDGE_STATE,
		SensorType:     SENSOR_TYPE_BINARY,
		Name:           "Connection state",
		DeviceClass:    DEVICE_CLASS_CONNECTIVITY,
		EntityCategory: ENTITY_CLASS_DIAGNOSTIC,
		UniqueId:       uniqueId(bridgeDevice.Id, SENSOR_ID_BRIDGE_STATE),
	})

	return sensors
}

func InverterSensors(inverterDevice Device) []GenericSensor {

	var sensors []GenericSensor

	powerSensor := func(id, name, icon string) GenericSensor {
		return GenericSensor{
			Device:            inverterDevice,
			Id:                id,
			SensorType:        SENSOR_TYPE_SENSOR,
			Name:              name,
			StateClass:        STATE_CLASS_MEASUREMENT,
			DeviceClass:       DEVICE_CLASS_POWER,
			UnitOfMeasurement: "W",
			Icon:              icon,
			UniqueId:          uniqueId(inverterDevice.Id, id),
		}
	}
	energyTodaySensor := func(id, name string) GenericSensor {
		return GenericSensor{
			Device:            inverterDevice,
			Id:                id,
			SensorType:        SENSOR_TYPE_SENSOR,
			Name:              name,
			StateClass:        STATE_CLASS_TOTAL,
			DeviceClass:       DEVICE_CLASS_ENERGY,
			UnitOfMeasurement: "kWh",
			UniqueId:          uniqueId(inverterDevice.Id, id),
		}
	}

	sensors = append(sensors, powerSensor(SENSOR_ID_SOLAR_POWER, "Solar power", "mdi:solar-power"))
	sensors = append(sensors, powerSensor(SENSOR_ID_LOAD_POWER, "Load power", "mdi:home-lightning-bolt"))
	sensors = append(sensors, powerSensor(SENSOR_ID_GRID_POWER, "Grid power", ""))
	sensors = append(sensors, powerSensor(SENSOR_ID_BATTERY_POWER, "Battery power", ""))

	// per-phase grid power, disabled by default like most diagnostics
	for _, s := range []struct{ id, name string }{
		{SENSOR_ID_GRID_L1_POWER, "Grid L1 power"},
		{SENSOR_ID_GRID_L2_POWER, "Grid L2 power"},
		{SENSOR_ID_GRID_L3_POWER, "Grid L3 power"},
	} {
		sensor := powerSensor(s.id, s.name, "")
		sensor.EnabledByDefault = optionalBool(false)
		sensors = append(sensors, sensor)
	}

	// Battery SoC
	sensors = append(sensors, GenericSensor{
		Device:            inverterDevice,
		Id:                SENSOR_ID_BATTERY_SOC,
		SensorType:        SENSOR_TYPE_SENSOR,
		Name:              "Battery SoC",
		StateClass:        STATE_CLASS_MEASUREMENT,
		DeviceClass:       DEVICE_CLASS_BATTERY,
		UnitOfMeasurement: "%",
		UniqueId:          uniqueId(inverterDevice.Id, SENSOR_ID_BATTERY_SOC),
	})

	sensors = append(sensors, energyTodaySensor(SENSOR_ID_SOLAR_ENERGY_TODAY, "Solar energy today"))
	sensors = append(sensors, energyTodaySensor(SENSOR_ID_GRID_IMPORT_TODAY, "Grid import today"))
	sensors = append(sensors, energyTodaySensor(SENSOR_ID_GRID_EXPORT_TODAY, "Grid export today"))
	sensors = append(sensors, energyTodaySensor(SENSOR_ID_BATTERY_CHARGE_TODAY, "Battery charge today"))
	sensors = append(sensors, energyTodaySensor(SENSOR_ID_BATTERY_DISCHARGE_TODAY, "Battery discharge today"))
	sensors = append(sensors, energyTodaySensor(SENSOR_ID_LOAD_ENERGY_TODAY, "Load energy today"))

	// BMS design capacity
	sensors = append(sensors, GenericSensor{
		Device:            inverterDevice,
		Id:                SENSOR_ID_BMS_DESIGN_CAPACITY,
		SensorType:        SENSOR_TYPE_SENSOR,
		Name:              "BMS design capacity",
		StateClass:        STATE_CLASS_MEASUREMENT,
		DeviceClass:       DEVICE_CLASS_ENERGY_STORAGE,
		UnitOfMeasurement: "kWh",
		UniqueId:          uniqueId(inverterDevice.Id, SENSOR_ID_BMS_DESIGN_CAPACITY),
	})

	// Inverter data availability
	sensors = append(sensors, GenericSensor{
		Device:         inverterDevice,
		Id:             SENSOR_ID_INVERTER_AVAILABLE,
		SensorType:     SENSOR_TYPE_BINARY,
		Name:           "Data available",
		DeviceClass:    DEVICE_CLASS_CONNECTIVITY,
		EntityCategory: ENTITY_CLASS_DIAGNOSTIC,
		UniqueId:       uniqueId(inverterDevice.Id, SENSOR_ID_INVERTER_AVAILABLE),
	})

	return sensors
}

func InverterSelects(inverterDevice Device) []GenericSelect {

	var options []string
	for _, m := range hanchu.WorkModes() {
		options = append(options, m.String())
	}

	return []GenericSelect{
		{
			Device:   inverterDevice,
			Id:       SELECT_ID_WORK_MODE,
			Name:     "Work mode",
			UniqueId: uniqueId(inverterDevice.Id, SELECT_ID_WORK_MODE),
			Icon:     "mdi:sun-angle",
			Options:  options,
		},
	}
}

func BatterySensors(batteryDevice Device) []GenericSensor {

	var sensors []GenericSensor

	tempSensor := func(id, name string, enabled bool) GenericSensor {
		return GenericSensor{
			Device:            batteryDevice,
			Id:                id,
			SensorType:        SENSOR_TYPE_SENSOR,
			Name:              name,
			StateClass:        STATE_CLASS_MEASUREMENT,
			DeviceClass:       DEVICE_CLASS_TEMPERATURE,
			UnitOfMeasurement: "°C",
			EnabledByDefault:  optionalBool(enabled),
			UniqueId:          uniqueId(batteryDevice.Id, id),
		}
	}

	// Rack SoC
	sensors = append(sensors, GenericSensor{
		Device:            batteryDevice,
		Id:                SENSOR_ID_RACK_SOC,
		SensorType:        SENSOR_TYPE_SENSOR,
		Name:              "State of charge",
		StateClass:        STATE_CLASS_MEASUREMENT,
		DeviceClass:       DEVICE_CLASS_BATTERY,
		UnitOfMeasurement: "%",
		UniqueId:          uniqueId(batteryDevice.Id, SENSOR_ID_RACK_SOC),
	})

	// Rack power
	sensors = append(sensors, GenericSensor{
		Device:            batteryDevice,
		Id:                SENSOR_ID_RACK_POWER,
		SensorType:        SENSOR_TYPE_SENSOR,
		Name:              "Battery power",
		StateClass:        STATE_CLASS_MEASUREMENT,
		DeviceClass:       DEVICE_CLASS_POWER,
		UnitOfMeasurement: "kW",
		UniqueId:          uniqueId(batteryDevice.Id, SENSOR_ID_RACK_POWER),
	})

	// Rack voltage
	sensors = append(sensors, GenericSensor{
		Device:            batteryDevice,
		Id:                SENSOR_ID_RACK_VOLTAGE,
		SensorType:        SENSOR_TYPE_SENSOR,
		Name:              "Battery voltage",
		StateClass:        STATE_CLASS_MEASUREMENT,
		DeviceClass:       DEVICE_CLASS_VOLTAGE,
		UnitOfMeasurement: "V",
		UniqueId:          uniqueId(batteryDevice.Id, SENSOR_ID_RACK_VOLTAGE),
	})

	// Rack current
	sensors = append(sensors, GenericSensor{
		Device:            batteryDevice,
		Id:                SENSOR_ID_RACK_CURRENT,
		SensorType:        SENSOR_TYPE_SENSOR,
		Name:              "Battery current",
		StateClass:        STATE_CLASS_MEASUREMENT,
		DeviceClass:       DEVICE_CLASS_CURRENT,
		UnitOfMeasurement: "A",
		UniqueId:          uniqueId(batteryDevice.Id, SENSOR_ID_RACK_CURRENT),
	})

	// Capacity remaining
	sensors = append(sensors, GenericSensor{
		Device:            batteryDevice,
		Id:                SENSOR_ID_RACK_CAPACITY_REMAINING,
		SensorType:        SENSOR_TYPE_SENSOR,
		Name:              "Capacity remaining",
		StateClass:        STATE_CLASS_MEASUREMENT,
		DeviceClass:       DEVICE_CLASS_BATTERY,
		UnitOfMeasurement: "%",
		UniqueId:          uniqueId(batteryDevice.Id, SENSOR_ID_RACK_CAPACITY_REMAINING),
	})

	// Rack capacity
	sensors = append(sensors, GenericSensor{
		Device:            batteryDevice,
		Id:                SENSOR_ID_RACK_CAPACITY,
		SensorType:        SENSOR_TYPE_SENSOR,
		Name:              "Battery capacity",
		StateClass:        STATE_CLASS_MEASUREMENT,
		DeviceClass:       DEVICE_CLASS_ENERGY_STORAGE,
		UnitOfMeasurement: "kWh",
		EnabledByDefault:  optionalBool(false),
		UniqueId:          uniqueId(batteryDevice.Id, SENSOR_ID_RACK_CAPACITY),
	})

	sensors = append(sensors, tempSensor(SENSOR_ID_RACK_TEMP_MAX, "Temperature max", true))
	sensors = append(sensors, tempSensor(SENSOR_ID_RACK_TEMP_MIN, "Temperature min", true))
	for i := 0; i < 6; i++ {
		sensors = append(sensors, tempSensor(RackProbeTempSensorId(i), fmt.Sprintf("Rack temperature %d", i+1), false))
	}

	// Daily and total charge / discharge counters
	sensors = append(sensors, GenericSensor{
		Device:            batteryDevice,
		Id:                SENSOR_ID_RACK_CHARGE_TODAY,
		SensorType:        SENSOR_TYPE_SENSOR,
		Name:              "Charge today",
		StateClass:        STATE_CLASS_TOTAL,
		DeviceClass:       DEVICE_CLASS_ENERGY,
		UnitOfMeasurement: "kWh",
		UniqueId:          uniqueId(batteryDevice.Id, SENSOR_ID_RACK_CHARGE_TODAY),
	})
	sensors = append(sensors, GenericSensor{
		Device:            batteryDevice,
		Id:                SENSOR_ID_RACK_DISCHARGE_TODAY,
		SensorType:        SENSOR_TYPE_SENSOR,
		Name:              "Discharge today",
		StateClass:        STATE_CLASS_TOTAL,
		DeviceClass:       DEVICE_CLASS_ENERGY,
		UnitOfMeasurement: "kWh",
		UniqueId:          uniqueId(batteryDevice.Id, SENSOR_ID_RACK_DISCHARGE_TODAY),
	})
	sensors = append(sensors, GenericSensor{
		Device:            batteryDevice,
		Id:                SENSOR_ID_RACK_TOTAL_CHARGE,
		SensorType:        SENSOR_TYPE_SENSOR,
		Name:              "Total charge",
		StateClass:        STATE_CLASS_TOTAL_INCREASING,
		DeviceClass:       DEVICE_CLASS_ENERGY,
		UnitOfMeasurement: "kWh",
		UniqueId:          uniqueId(batteryDevice.Id, SENSOR_ID_RACK_TOTAL_CHARGE),
	})
	sensors = append(sensors, GenericSensor{
		Device:            batteryDevice,
		Id:                SENSOR_ID_RACK_TOTAL_DISCHARGE,
		SensorType:        SENSOR_TYPE_SENSOR,
		Name:              "Total discharge",
		StateClass:        STATE_CLASS_TOTAL_INCREASING,
		DeviceClass:       DEVICE_CLASS_ENERGY,
		UnitOfMeasurement: "kWh",
		UniqueId:          uniqueId(batteryDevice.Id, SENSOR_ID_RACK_TOTAL_DISCHARGE),
	})

	// Cycle count
	sensors = append(sensors, GenericSensor{
		Device:            batteryDevice,
		Id:                SENSOR_ID_RACK_CYCLE_COUNT,
		SensorType:        SENSOR_TYPE_SENSOR,
		Name:              "Cycle count",
		StateClass:        STATE_CLASS_TOTAL_INCREASING,
		UnitOfMeasurement: "cycles",
		EnabledByDefault:  optionalBool(false),
		UniqueId:          uniqueId(batteryDevice.Id, SENSOR_ID_RACK_CYCLE_COUNT),
	})

	// Per-pack voltages and temperatures
	for i := 0; i < 8; i++ {
		sensors = append(sensors, GenericSensor{
			Device:            batteryDevice,
			Id:                PackVoltageSensorId(i),
			SensorType:        SENSOR_TYPE_SENSOR,
			Name:              fmt.Sprintf("Pack %d voltage", i+1),
			StateClass:        STATE_CLASS_MEASUREMENT,
			DeviceClass:       DEVICE_CLASS_VOLTAGE,
			UnitOfMeasurement: "V",
			EnabledByDefault:  optionalBool(false),
			UniqueId:          uniqueId(batteryDevice.Id, PackVoltageSensorId(i)),
		})
		sensors = append(sensors, tempSensor(PackAvgTempSensorId(i), fmt.Sprintf("Pack %d avg temperature", i+1), false))
	}

	// Relay states
	relaySensor := func(id, name string, enabled bool) GenericSensor {
		return GenericSensor{
			Device:           batteryDevice,
			Id:               id,
			SensorType:       SENSOR_TYPE_BINARY,
			Name:             name,
			DeviceClass:      DEVICE_CLASS_CONNECTIVITY,
			EntityCategory:   ENTITY_CLASS_DIAGNOSTIC,
			EnabledByDefault: optionalBool(enabled),
			UniqueId:         uniqueId(batteryDevice.Id, id),
		}
	}
	sensors = append(sensors, relaySensor(BINARY_SENSOR_ID_CHARGING_RELAY, "Charging relay", true))
	sensors = append(sensors, relaySensor(BINARY_SENSOR_ID_DISCHARGING_RELAY, "Discharging relay", true))
	sensors = append(sensors, relaySensor(BINARY_SENSOR_ID_NEG_RELAY, "Negative relay", false))
	sensors = append(sensors, relaySensor(BINARY_SENSOR_ID_SHUNT_RELAY, "Shunt relay", false))
	sensors = append(sensors, relaySensor(BINARY_SENSOR_ID_PRE_CHARGE_RELAY, "Pre-charge relay", false))

	// Battery data availability
	sensors = append(sensors, GenericSensor{
		Device:         batteryDevice,
		Id:             SENSOR_ID_BATTERY_AVAILABLE,
		SensorType:     SENSOR_TYPE_BINARY,
		Name:           "Data available",
		DeviceClass:    DEVICE_CLASS_CONNECTIVITY,
		EntityCategory: ENTITY_CLASS_DIAGNOSTIC,
		UniqueId:       uniqueId(batteryDevice.Id, SENSOR_ID_BATTERY_AVAILABLE),
	})

	return sensors
}

func uniqueId(baseId, id string) string {
	return fmt.Sprintf("uid_%s_%s", baseId, id)
}

func md5Hash(text string) string {
	hash := md5.Sum([]byte(text))
	return hex.EncodeToString(hash[:])
}

func md5HashShort(text string) string {
	hash := md5Hash(text)
	return hash[0:8]
}

func optionalBool(value bool) *bool {
	return &value
}
