package events

import (
	"context"
	"testing"

	"github.com/berfenger/hanchu2mqtt/internal/core/domain"
	"github.com/berfenger/hanchu2mqtt/pkg/hanchu"

	"github.com/stretchr/testify/assert"
)

func TestInverterReadingToUpdateEvents(t *testing.T) {
	reading, err := hanchu.TestInverterReader{}.FetchInverterReading(context.Background())
	assert.NoError(t, err)

	byId := indexEvents(InverterReadingToUpdateEvents(reading))

	solar, ok := byId[domain.SENSOR_ID_SOLAR_POWER].(domain.FloatSensorUpdateEvent)
	assert.True(t, ok)
	assert.Equal(t, *reading.SolarPowerW, solar.Value)

	grid, ok := byId[domain.SENSOR_ID_GRID_POWER].(domain.FloatSensorUpdateEvent)
	assert.True(t, ok)
	assert.Equal(t, *reading.GridPowerW, grid.Value)

	mode, ok := byId[domain.SELECT_ID_WORK_MODE].(domain.SelectSensorUpdateEvent)
	assert.True(t, ok)
	assert.Equal(t, hanchu.WorkModeSelfConsumption.String(), mode.Value)
}

func TestInverterReadingUnknownFieldsProduceNoEvents(t *testing.T) {
	reading, err := hanchu.TestInverterReader{}.FetchInverterReading(context.Background())
	assert.NoError(t, err)
	reading.GridPowerW = nil
	reading.WorkMode = nil
	reading.GridPhasePowerW[2] = nil

	byId := indexEvents(InverterReadingToUpdateEvents(reading))

	assert.NotContains(t, byId, domain.SENSOR_ID_GRID_POWER)
	assert.NotContains(t, byId, domain.SELECT_ID_WORK_MODE)
	assert.NotContains(t, byId, domain.SENSOR_ID_GRID_L3_POWER)
	assert.Contains(t, byId, domain.SENSOR_ID_SOLAR_POWER)
}

func TestReadingNilProducesNoEvents(t *testing.T) {
	assert.Empty(t, InverterReadingToUpdateEvents(nil))
	assert.Empty(t, BatteryReadingToUpdateEvents(nil))
}

func TestBatteryReadingToUpdateEvents(t *testing.T) {
	reading, err := hanchu.TestBatteryReader{}.FetchBatteryReading(context.Background())
	assert.NoError(t, err)

	byId := indexEvents(BatteryReadingToUpdateEvents(reading))

	power, ok := byId[domain.SENSOR_ID_RACK_POWER].(domain.FloatSensorUpdateEvent)
	assert.True(t, ok)
	assert.Equal(t, *reading.PowerKW, power.Value)

	relay, ok := byId[domain.BINARY_SENSOR_ID_CHARGING_RELAY].(domain.BinarySensorUpdateEvent)
	assert.True(t, ok)
	assert.Equal(t, *reading.Relays.Charging, relay.Value)

	// only the known packs get events
	assert.Contains(t, byId, domain.PackVoltageSensorId(0))
	assert.NotContains(t, byId, domain.PackVoltageSensorId(7))
}

func TestAvailabilityUpdateEvents(t *testing.T) {
	ev, ok := InverterAvailabilityUpdateEvent(false).(domain.BinarySensorUpdateEvent)
	assert.True(t, ok)
	assert.False(t, ev.Value)
	assert.Equal(t, domain.SENSOR_ID_INVERTER_AVAILABLE, ev.Id)

	ev, ok = BatteryAvailabilityUpdateEvent(true).(domain.BinarySensorUpdateEvent)
	assert.True(t, ok)
	assert.True(t, ev.Value)
	assert.Equal(t, domain.SENSOR_ID_BATTERY_AVAILABLE, ev.Id)
}

func indexEvents(events []any) map[string]any {
	byId := make(map[string]any)
	for _, ev := range events {
		if sev, ok := ev.(domain.SensorUpdateEvent); ok {
			byId[sev.SensorId()] = ev
		}
	}
	return byId
}
