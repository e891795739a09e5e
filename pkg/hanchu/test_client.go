package hanchu

import (
	"context"
	"time"
)

func CreateTestInverterReader() (InverterReader, error) {
	return TestInverterReader{}, nil
}

func CreateTestBatteryReader() (BatteryReader, error) {
	return TestBatteryReader{}, nil
}

func CreateTestWorkModeController() (WorkModeController, error) {
	return TestWorkModeController{}, nil
}

// Inverter

type TestInverterReader struct {
}

func (r TestInverterReader) FetchInverterReading(_ context.Context) (*InverterReading, error) {
	mode := WorkModeSelfConsumption
	reading := &InverterReading{
		SerialNumber:  "HESI30TEST001",
		Timestamp:     time.Now(),
		SolarPowerW:   f(1820.5),
		LoadPowerW:    f(640),
		GridPowerW:    f(-450.5),
		BatteryPowerW: f(-730),
		BatterySocPct: f(81.5),
		EnergyToday: InverterEnergyToday{
			SolarKWh:            f(12.4),
			GridImportKWh:       f(0.8),
			GridExportKWh:       f(4.1),
			BatteryChargeKWh:    f(5.2),
			BatteryDischargeKWh: f(3.9),
			LoadKWh:             f(9.6),
		},
		BMSDesignCapacityKWh: f(10.24),
		WorkMode:             &mode,
	}
	reading.GridPhasePowerW[0] = f(-150.2)
	reading.GridPhasePowerW[1] = f(-150.1)
	reading.GridPhasePowerW[2] = f(-150.2)
	return reading, nil
}

func (r TestInverterReader) FetchEnergyFlow(_ context.Context, date string) (*EnergyFlowReading, error) {
	return &EnergyFlowReading{
		Date:                date,
		SolarKWh:            f(12.4),
		GridImportKWh:       f(0.8),
		GridExportKWh:       f(4.1),
		BatteryChargeKWh:    f(5.2),
		BatteryDischargeKWh: f(3.9),
		LoadKWh:             f(9.6),
	}, nil
}

// Battery

type TestBatteryReader struct {
}

func (r TestBatteryReader) FetchBatteryReading(_ context.Context) (*BatteryReading, error) {
	reading := &BatteryReading{
		SerialNumber:            "HESB10TEST001",
		Timestamp:               time.Now(),
		SocPct:                  f(81.5),
		PowerKW:                 f(-0.73),
		VoltageV:                f(204.8),
		CurrentA:                f(-3.6),
		CapacityRemainingPct:    f(98),
		CapacityKWh:             f(10.24),
		TempMaxC:                f(24),
		TempMinC:                f(21),
		EnergyTotalChargeKWh:    f(1250.3),
		EnergyTotalDischargeKWh: f(1190.7),
		CycleCount:              f(118),
		Relays: RelayStates{
			Charging:    b(true),
			Discharging: b(true),
			Negative:    b(true),
			Shunt:       b(false),
			PreCharge:   b(false),
		},
	}
	for i := range reading.ProbeTempsC {
		reading.ProbeTempsC[i] = f(22.5)
	}
	// 4-pack rack, slots 5..8 unknown
	for i := 0; i < 4; i++ {
		reading.PackVoltagesV[i] = f(51.2)
		reading.PackAvgTempsC[i] = f(22.8)
	}
	return reading, nil
}

// Work mode

type TestWorkModeController struct {
}

func (c TestWorkModeController) SetWorkMode(_ context.Context, mode WorkMode) error {
	if !mode.Valid() {
		return &RejectedByDeviceError{Msg: "invalid work mode"}
	}
	return nil
}

func f(v float64) *float64 {
	return &v
}

func b(v bool) *bool {
	return &v
}
