package hanchu

import (
	"context"
	"fmt"
	"time"
)

// Credentials is immutable after configuration. An empty BatterySerial means
// the battery subsystem is disabled entirely.
type Credentials struct {
	Username       string
	Password       string
	InverterSerial string
	BatterySerial  string
}

func (c Credentials) HasBattery() bool {
	return c.BatterySerial != ""
}

// WorkMode is the inverter operating mode. Only these four values are valid
// on read or write.
type WorkMode int

const (
	WorkModeSelfConsumption WorkMode = 1
	WorkModeUserDefined     WorkMode = 2
	WorkModeOffGrid         WorkMode = 3
	WorkModeBackupPower     WorkMode = 4
)

func (m WorkMode) Valid() bool {
	return m >= WorkModeSelfConsumption && m <= WorkModeBackupPower
}

func (m WorkMode) String() string {
	switch m {
	case WorkModeSelfConsumption:
		return "Self-consumption"
	case WorkModeUserDefined:
		return "User-defined"
	case WorkModeOffGrid:
		return "Off-grid"
	case WorkModeBackupPower:
		return "Backup power"
	default:
		return fmt.Sprintf("WorkMode(%d)", int(m))
	}
}

func ParseWorkMode(s string) (WorkMode, error) {
	for m := WorkModeSelfConsumption; m <= WorkModeBackupPower; m++ {
		if m.String() == s {
			return m, nil
		}
	}
	return 0, fmt.Errorf("invalid work mode %q", s)
}

func WorkModes() []WorkMode {
	return []WorkMode{WorkModeSelfConsumption, WorkModeUserDefined, WorkModeOffGrid, WorkModeBackupPower}
}

// InverterReading is a normalized snapshot of inverter, grid and battery
// summary telemetry. Nil pointer fields mean the cloud did not report a
// usable value for that field.
//
// Sign conventions are fixed by contract: GridPowerW positive means import,
// BatteryPowerW negative means charging.
type InverterReading struct {
	SerialNumber string
	Timestamp    time.Time

	SolarPowerW     *float64
	LoadPowerW      *float64
	GridPowerW      *float64
	GridPhasePowerW [3]*float64
	BatteryPowerW   *float64
	BatterySocPct   *float64

	EnergyToday InverterEnergyToday

	BMSDesignCapacityKWh *float64
	WorkMode             *WorkMode
}

// InverterEnergyToday holds the device-supplied daily counters, in kWh.
type InverterEnergyToday struct {
	SolarKWh            *float64
	GridImportKWh       *float64
	GridExportKWh       *float64
	BatteryChargeKWh    *float64
	BatteryDischargeKWh *float64
	LoadKWh             *float64
}

// BatteryReading is a normalized snapshot of battery rack telemetry.
type BatteryReading struct {
	SerialNumber string
	Timestamp    time.Time

	SocPct               *float64
	PowerKW              *float64
	VoltageV             *float64
	CurrentA             *float64
	CapacityRemainingPct *float64
	CapacityKWh          *float64

	TempMaxC    *float64
	TempMinC    *float64
	ProbeTempsC [6]*float64

	EnergyTodayChargeKWh    *float64
	EnergyTodayDischargeKWh *float64
	EnergyTotalChargeKWh    *float64
	EnergyTotalDischargeKWh *float64
	CycleCount              *float64

	PackVoltagesV [8]*float64
	PackAvgTempsC [8]*float64

	Relays RelayStates
}

// RelayStates reports the rack protection relays. Nil means unknown,
// true means closed.
type RelayStates struct {
	Charging    *bool
	Discharging *bool
	Negative    *bool
	Shunt       *bool
	PreCharge   *bool
}

// EnergyFlowReading holds the daily totals from the energy flow endpoint,
// all in kWh.
type EnergyFlowReading struct {
	Date                string
	SolarKWh            *float64
	GridImportKWh       *float64
	GridExportKWh       *float64
	BatteryChargeKWh    *float64
	BatteryDischargeKWh *float64
	LoadKWh             *float64
}

// DevicesInfo describes the configured devices, derived from credentials.
type DevicesInfo struct {
	InverterSerial string
	BatterySerial  string
	HasBattery     bool
}

type InverterReader interface {
	FetchInverterReading(ctx context.Context) (*InverterReading, error)
	FetchEnergyFlow(ctx context.Context, date string) (*EnergyFlowReading, error)
}

type BatteryReader interface {
	FetchBatteryReading(ctx context.Context) (*BatteryReading, error)
}

type WorkModeController interface {
	SetWorkMode(ctx context.Context, mode WorkMode) error
}
